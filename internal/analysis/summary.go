package analysis

import (
	"regexp"
	"strings"

	"github.com/ericksa/contractlens/internal/model"
)

// Placeholders used when the text does not name a value.
const (
	DefaultParty1          = "Client"
	DefaultParty2          = "Service Provider"
	NotSpecified           = "Not specified"
	DefaultTermination     = "Either party may terminate this agreement by written notice in accordance with its terms."
	DefaultConfidentiality = "Standard confidentiality obligations apply to information exchanged under this agreement."
)

const maxKeyObligations = 3

var (
	partiesPattern = regexp.MustCompile(`(?:[Bb]y and between|[Bb]etween)\s+([A-Z][A-Za-z0-9&'\s\.]+?)\s+(?:and|&)\s+([A-Z][A-Za-z0-9&'\s\.]+?)(?:\s*[,;:(]|\.\s|\s+(?:effective|dated|on|for|as|to)\b)`)
	effectivePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\beffective\s+(?:as\s+of\s+|from\s+|on\s+|date[:\s]+)?([A-Z][a-z]+\s+\d{1,2},?\s+\d{4}|\d{1,2}[/-]\d{1,2}[/-]\d{2,4}|\d{4}-\d{2}-\d{2})`),
		regexp.MustCompile(`(?i)\b(?:dated|commencing(?:\s+on)?)\s+([A-Z][a-z]+\s+\d{1,2},?\s+\d{4}|\d{1,2}[/-]\d{1,2}[/-]\d{2,4}|\d{4}-\d{2}-\d{2})`),
	}
	termPattern = regexp.MustCompile(`(?i)\b(?:term|period)\s+of\s+(?:[a-z-]+\s+\()?(\d+)\)?\s+(months?|years?)`)
)

// SummaryInput is everything the assembler reads.
type SummaryInput struct {
	DocumentID string
	Title      string
	Text       string
	Clauses    []model.Clause
	Financials model.Financials
}

// AssembleSummary builds the document summary from analyzed clauses and the
// financial extraction result.
func AssembleSummary(in SummaryInput) model.ContractSummary {
	s := model.ContractSummary{
		DocumentID:         in.DocumentID,
		Title:              in.Title,
		Parties:            findParties(in.Text),
		EffectiveDate:      findEffectiveDate(in.Text),
		TermLength:         findTermLength(in.Text),
		PaymentTerms:       nonNil(in.Financials.PaymentTerms),
		RateCard:           nonNil(in.Financials.RateCard),
		Fees:               nonNil(in.Financials.Fees),
		KeyObligations:     keyObligations(in.Clauses),
		TerminationClauses: []string{pickClause(in.Clauses, CategoryTermination, "terminat", DefaultTermination)},
	}
	s.ConfidentialityTerms = pickClause(in.Clauses, CategoryConfidentiality, "confiden", DefaultConfidentiality)
	return s
}

func pickClause(clauses []model.Clause, category, needle, fallback string) string {
	for _, c := range clauses {
		if c.Category == category || strings.Contains(strings.ToLower(c.Clause), needle) {
			return c.Clause
		}
	}
	return fallback
}

func keyObligations(clauses []model.Clause) []string {
	out := []string{}
	for _, c := range clauses {
		if len(out) == maxKeyObligations {
			break
		}
		if c.ComplianceStatus == model.StatusCompliant && c.RiskScore < 5 {
			out = append(out, c.Clause)
		}
	}
	return out
}

func findParties(text string) *model.Parties {
	if m := partiesPattern.FindStringSubmatch(text); m != nil {
		p1 := strings.TrimSpace(strings.TrimSuffix(m[1], "."))
		p2 := strings.TrimSpace(strings.TrimSuffix(m[2], "."))
		if p1 != "" && p2 != "" && len(p1) < 100 && len(p2) < 100 {
			return &model.Parties{Party1: p1, Party2: p2}
		}
	}
	return &model.Parties{Party1: DefaultParty1, Party2: DefaultParty2}
}

func findEffectiveDate(text string) string {
	for _, re := range effectivePatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return NotSpecified
}

func findTermLength(text string) string {
	if m := termPattern.FindStringSubmatch(text); m != nil {
		return m[1] + " " + strings.ToLower(m[2])
	}
	return NotSpecified
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
