package model

import "time"

// ComplianceStatus is the outcome of checking a clause against the rule set.
type ComplianceStatus string

const (
	StatusCompliant    ComplianceStatus = "Compliant"
	StatusNonCompliant ComplianceStatus = "Non-Compliant"
	StatusReviewNeeded ComplianceStatus = "Review Needed"
)

// DefaultRuleRiskScore is applied to rules created without a risk score.
const DefaultRuleRiskScore = 5

// ComplianceRule flags contract language by keyword
type ComplianceRule struct {
	ID          string    `json:"id"`
	Keyword     string    `json:"keyword"`
	Allowed     bool      `json:"allowed"`
	RiskScore   int       `json:"riskScore"`
	Category    string    `json:"category,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

type Recommendation struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type ComplianceIssue struct {
	Issue       string `json:"issue"`
	Rule        string `json:"rule,omitempty"`
	Description string `json:"description"`
}

// Clause is a single extracted provision after analysis
type Clause struct {
	ID               string            `json:"id"`
	Clause           string            `json:"clause"`
	Section          string            `json:"section,omitempty"`
	Page             *int              `json:"page,omitempty"`
	Category         string            `json:"category,omitempty"`
	RiskScore        int               `json:"risk_score"`
	ComplianceStatus ComplianceStatus  `json:"compliance_status"`
	DocumentID       string            `json:"document_id"`
	Completed        bool              `json:"completed"`
	Recommendations  []Recommendation  `json:"recommendations,omitempty"`
	ComplianceIssues []ComplianceIssue `json:"compliance_issues,omitempty"`
}

type Parties struct {
	Party1 string `json:"party1"`
	Party2 string `json:"party2"`
}

type RateCardItem struct {
	Item string `json:"item"`
	Rate string `json:"rate"`
	Unit string `json:"unit,omitempty"`
}

type Fee struct {
	Name        string `json:"name"`
	Amount      string `json:"amount"`
	Frequency   string `json:"frequency,omitempty"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
}

// ContractSummary is the document-level digest, keyed by DocumentID
type ContractSummary struct {
	DocumentID           string         `json:"documentId"`
	Title                string         `json:"title,omitempty"`
	Parties              *Parties       `json:"parties,omitempty"`
	EffectiveDate        string         `json:"effectiveDate,omitempty"`
	TermLength           string         `json:"termLength,omitempty"`
	PaymentTerms         []string       `json:"paymentTerms"`
	RateCard             []RateCardItem `json:"rateCard"`
	Fees                 []Fee          `json:"fees"`
	KeyObligations       []string       `json:"keyObligations"`
	ConfidentialityTerms string         `json:"confidentialityTerms,omitempty"`
	TerminationClauses   []string       `json:"terminationClauses"`
	Digest               []string       `json:"digest,omitempty"`
}

// Financials is the output of the financial extractor
type Financials struct {
	Fees         []Fee          `json:"fees"`
	PaymentTerms []string       `json:"paymentTerms"`
	RateCard     []RateCardItem `json:"rateCard"`
}

// Document is an uploaded contract file
type Document struct {
	ID       string
	Filename string
	MimeType string
	Data     []byte
}
