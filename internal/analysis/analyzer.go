package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cast"

	"github.com/ericksa/contractlens/internal/llm"
	"github.com/ericksa/contractlens/internal/logger"
	"github.com/ericksa/contractlens/internal/model"
)

// Category labels assigned by the analyzer.
const (
	CategoryConfidentiality = "Confidentiality"
	CategoryTermination     = "Termination"
	CategoryPaymentTerms    = "Payment Terms"
	CategoryLiability       = "Liability"
	CategoryIPRights        = "IP Rights"
	CategoryIndemnification = "Indemnification"
	CategoryWarranty        = "Warranty"
	CategoryGoverningLaw    = "Governing Law"
	CategoryGeneral         = "General"
)

// categorySniffs are checked in order; the first hit names the category.
var categorySniffs = []struct {
	category string
	needles  []string
}{
	{CategoryConfidentiality, []string{"confiden"}},
	{CategoryTermination, []string{"terminat"}},
	{CategoryPaymentTerms, []string{"payment", "fee"}},
	{CategoryLiability, []string{"liab"}},
	{CategoryIPRights, []string{"intellectual", "property"}},
	{CategoryIndemnification, []string{"indemnif"}},
}

// Categories is the list a clause with no recognizable topic is drawn from.
var Categories = []string{
	CategoryConfidentiality,
	CategoryTermination,
	CategoryPaymentTerms,
	CategoryLiability,
	CategoryIPRights,
	CategoryIndemnification,
	CategoryWarranty,
	CategoryGoverningLaw,
	CategoryGeneral,
}

// ClauseAnalysis is the classification of one clause.
type ClauseAnalysis struct {
	ComplianceStatus model.ComplianceStatus  `json:"compliance_status"`
	RiskScore        int                     `json:"risk_score"`
	Category         string                  `json:"category"`
	Recommendations  []model.Recommendation  `json:"recommendations,omitempty"`
	ComplianceIssues []model.ComplianceIssue `json:"compliance_issues,omitempty"`
}

const analyzeSystemPrompt = `You are a contract compliance reviewer. Classify the clause against the compliance rules.
Respond with JSON only, shaped as:
{"compliance_status": "Compliant" | "Non-Compliant" | "Review Needed",
 "risk_score": 0-10,
 "category": "short label",
 "recommendations": [{"title": "...", "description": "..."}],
 "compliance_issues": [{"issue": "...", "rule": "keyword", "description": "..."}]}`

// Analyzer scores clauses for risk and compliance.
type Analyzer struct {
	llm  llm.Caller
	rand Rand
	log  *logger.Logger
}

func NewAnalyzer(c llm.Caller, r Rand, log *logger.Logger) *Analyzer {
	if r == nil {
		r = NewRand(0)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Analyzer{llm: c, rand: r, log: log}
}

// Analyze classifies one clause. It never fails: a model error or an unusable
// reply is logged and the heuristic result is returned.
func (a *Analyzer) Analyze(ctx context.Context, clause, section string, rules []model.ComplianceRule) ClauseAnalysis {
	return a.analyze(ctx, a.rand, clause, section, rules)
}

func (a *Analyzer) analyze(ctx context.Context, r Rand, clause, section string, rules []model.ComplianceRule) ClauseAnalysis {
	if a.llm != nil {
		attempt := a.tryModel(ctx, clause, section, rules)
		if attempt.OK() {
			return attempt.Value
		}
		fallbackTotal.WithLabelValues(stageAnalyze).Inc()
		a.log.Warn("AI clause analysis failed, using heuristic", "stage", stageAnalyze, "error", attempt.Err.Error())
	}
	return a.heuristic(r, clause, rules)
}

type modelAnalysis struct {
	ComplianceStatus string                 `json:"compliance_status"`
	RiskScore        any                    `json:"risk_score"`
	Category         string                 `json:"category"`
	Recommendations  []model.Recommendation `json:"recommendations"`
	ComplianceIssues []struct {
		Issue       string `json:"issue"`
		Rule        any    `json:"rule"`
		Description string `json:"description"`
	} `json:"compliance_issues"`
}

func (a *Analyzer) tryModel(ctx context.Context, clause, section string, rules []model.ComplianceRule) llm.Attempt[ClauseAnalysis] {
	var prompt strings.Builder
	prompt.WriteString("Compliance rules:\n")
	prompt.WriteString(FormatRules(rules))
	if section != "" {
		fmt.Fprintf(&prompt, "\nSection: %s\n", section)
	}
	fmt.Fprintf(&prompt, "\nClause:\n%s\n", clause)

	raw := llm.TryJSON[modelAnalysis](ctx, a.llm, analyzeSystemPrompt, prompt.String(), nil)
	if !raw.OK() {
		return llm.Attempt[ClauseAnalysis]{Err: raw.Err}
	}
	res, err := normalizeModelAnalysis(raw.Value, clause)
	return llm.Attempt[ClauseAnalysis]{Value: res, Err: err}
}

func normalizeModelAnalysis(m modelAnalysis, clause string) (ClauseAnalysis, error) {
	status, ok := ParseStatus(m.ComplianceStatus)
	if !ok {
		return ClauseAnalysis{}, fmt.Errorf("unknown compliance status %q", m.ComplianceStatus)
	}
	if m.RiskScore == nil {
		return ClauseAnalysis{}, errors.New("missing risk score")
	}
	score, err := cast.ToFloat64E(m.RiskScore)
	if err != nil {
		return ClauseAnalysis{}, fmt.Errorf("invalid risk score: %w", err)
	}

	res := ClauseAnalysis{
		ComplianceStatus: status,
		RiskScore:        clamp(int(math.Round(score)), 0, 10),
		Category:         strings.TrimSpace(m.Category),
	}
	if res.Category == "" {
		if c, ok := sniffCategory(clause); ok {
			res.Category = c
		} else {
			res.Category = CategoryGeneral
		}
	}
	for _, r := range m.Recommendations {
		if strings.TrimSpace(r.Title) == "" && strings.TrimSpace(r.Description) == "" {
			continue
		}
		res.Recommendations = append(res.Recommendations, r)
	}
	for _, is := range m.ComplianceIssues {
		if strings.TrimSpace(is.Issue) == "" {
			continue
		}
		res.ComplianceIssues = append(res.ComplianceIssues, model.ComplianceIssue{
			Issue:       is.Issue,
			Rule:        cast.ToString(is.Rule),
			Description: is.Description,
		})
	}
	return res, nil
}

// ParseStatus maps the spellings models use onto the three statuses.
func ParseStatus(s string) (model.ComplianceStatus, bool) {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	switch b.String() {
	case "compliant":
		return model.StatusCompliant, true
	case "noncompliant", "notcompliant", "violation":
		return model.StatusNonCompliant, true
	case "reviewneeded", "needsreview", "review", "requiresreview":
		return model.StatusReviewNeeded, true
	}
	return "", false
}

// FormatRules renders the rule set for a prompt, one rule per line.
func FormatRules(rules []model.ComplianceRule) string {
	if len(rules) == 0 {
		return "(no rules defined)\n"
	}
	var b strings.Builder
	for _, r := range rules {
		allowed := "no"
		if r.Allowed {
			allowed = "yes"
		}
		fmt.Fprintf(&b, "- keyword: %q | allowed: %s | riskScore: %d", r.Keyword, allowed, r.RiskScore)
		if r.Category != "" {
			fmt.Fprintf(&b, " | category: %s", r.Category)
		}
		if r.Description != "" {
			fmt.Fprintf(&b, " | description: %s", r.Description)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Heuristic classifies a clause from rule matches alone. Risk is banded by
// status: Non-Compliant 7-9, Review Needed 4-6, Compliant 0-3.
func (a *Analyzer) Heuristic(clause string, rules []model.ComplianceRule) ClauseAnalysis {
	return a.heuristic(a.rand, clause, rules)
}

func (a *Analyzer) heuristic(r Rand, clause string, rules []model.ComplianceRule) ClauseAnalysis {
	violations, allowed := splitMatches(MatchRules(clause, rules))

	status := model.StatusCompliant
	switch {
	case len(violations) > 0:
		status = model.StatusNonCompliant
	case len(allowed) > 0:
		// Allowed matches get an even chance of a second look.
		if r.IntN(2) == 0 {
			status = model.StatusReviewNeeded
		}
	}

	base := r.IntN(10)
	var risk int
	switch status {
	case model.StatusNonCompliant:
		risk = max(7, base)
	case model.StatusReviewNeeded:
		risk = clamp(base, 4, 6)
	default:
		risk = min(3, base)
	}

	category, ok := sniffCategory(clause)
	if !ok {
		category = Categories[r.IntN(len(Categories))]
	}

	recs, issues := templateFindings(status, violations, allowed)
	return ClauseAnalysis{
		ComplianceStatus: status,
		RiskScore:        risk,
		Category:         category,
		Recommendations:  recs,
		ComplianceIssues: issues,
	}
}

func sniffCategory(clause string) (string, bool) {
	text := strings.ToLower(clause)
	for _, s := range categorySniffs {
		for _, n := range s.needles {
			if strings.Contains(text, n) {
				return s.category, true
			}
		}
	}
	return "", false
}

func templateFindings(status model.ComplianceStatus, violations, allowed []Match) ([]model.Recommendation, []model.ComplianceIssue) {
	switch status {
	case model.StatusNonCompliant:
		var recs []model.Recommendation
		var issues []model.ComplianceIssue
		for _, v := range violations {
			kw := v.Rule.Keyword
			recs = append(recs, model.Recommendation{
				Title:       fmt.Sprintf("Revise %q language", kw),
				Description: fmt.Sprintf("This clause contains %q, which the compliance rules do not allow. Remove or renegotiate this wording before signing.", kw),
			})
			desc := v.Rule.Description
			if desc == "" {
				desc = fmt.Sprintf("The clause contains the disallowed keyword %q (rule risk %d).", kw, v.Rule.RiskScore)
			}
			issues = append(issues, model.ComplianceIssue{
				Issue:       "Disallowed term: " + kw,
				Rule:        kw,
				Description: desc,
			})
		}
		return recs, issues
	case model.StatusReviewNeeded:
		return []model.Recommendation{{
			Title:       "Review with legal counsel",
			Description: fmt.Sprintf("This clause references %s. Confirm the wording matches your policy.", keywordList(allowed)),
		}}, nil
	default:
		return []model.Recommendation{{
			Title:       "No changes needed",
			Description: "This clause is consistent with the current compliance rules.",
		}}, nil
	}
}

func keywordList(ms []Match) string {
	kws := make([]string, 0, len(ms))
	for _, m := range ms {
		kws = append(kws, fmt.Sprintf("%q", m.Rule.Keyword))
	}
	return strings.Join(kws, ", ")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
