package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ericksa/contractlens/internal/llm"
	"github.com/ericksa/contractlens/internal/logger"
	"github.com/ericksa/contractlens/internal/model"
)

const (
	maxDigestBullets = 5
	digestRiskyLimit = 5
)

const digestSystemPrompt = `You are a legal assistant summarizing contracts.
Write 3-5 short bullet points covering the parties, key obligations, duration, money and any unusual or risky terms.
Respond with JSON only: an array of strings, one per bullet.`

// DigestBuilder writes the bullet-point digest of a summary.
type DigestBuilder struct {
	llm llm.Caller
	log *logger.Logger
}

func NewDigestBuilder(c llm.Caller, log *logger.Logger) *DigestBuilder {
	if log == nil {
		log = logger.Nop()
	}
	return &DigestBuilder{llm: c, log: log}
}

func (d *DigestBuilder) Build(ctx context.Context, summary model.ContractSummary, clauses []model.Clause) []string {
	if d.llm != nil {
		attempt := d.tryModel(ctx, summary, clauses)
		if attempt.OK() {
			return attempt.Value
		}
		fallbackTotal.WithLabelValues(stageDigest).Inc()
		d.log.Warn("AI digest failed, using template", "stage", stageDigest, "error", attempt.Err.Error())
	}
	return TemplateDigest(summary, clauses)
}

func (d *DigestBuilder) tryModel(ctx context.Context, summary model.ContractSummary, clauses []model.Clause) llm.Attempt[[]string] {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return llm.Attempt[[]string]{Err: err}
	}
	var prompt strings.Builder
	prompt.WriteString("Contract summary:\n")
	prompt.Write(summaryJSON)
	prompt.WriteString("\n\nHighest-risk clauses:\n")
	for _, c := range riskiest(clauses, digestRiskyLimit) {
		fmt.Fprintf(&prompt, "- [%s, risk %d, %s] %s\n", c.ComplianceStatus, c.RiskScore, c.Category, truncateText(c.Clause, 300))
	}

	validate := func(bullets *[]string) error {
		var kept []string
		for _, b := range *bullets {
			b = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(b), "-*• "))
			if b != "" {
				kept = append(kept, b)
			}
		}
		if len(kept) == 0 {
			return errors.New("model returned no bullets")
		}
		if len(kept) > maxDigestBullets {
			kept = kept[:maxDigestBullets]
		}
		*bullets = kept
		return nil
	}
	return llm.TryJSON(ctx, d.llm, digestSystemPrompt, prompt.String(), validate)
}

// TemplateDigest writes the digest from the summary fields alone.
func TemplateDigest(summary model.ContractSummary, clauses []model.Clause) []string {
	var bullets []string

	parties := "the parties"
	if summary.Parties != nil {
		parties = summary.Parties.Party1 + " and " + summary.Parties.Party2
	}
	line := "Agreement between " + parties
	if summary.EffectiveDate != "" && summary.EffectiveDate != NotSpecified {
		line += ", effective " + summary.EffectiveDate
	}
	if summary.TermLength != "" && summary.TermLength != NotSpecified {
		line += ", for a term of " + summary.TermLength
	}
	bullets = append(bullets, line+".")

	counts := map[model.ComplianceStatus]int{}
	for _, c := range clauses {
		counts[c.ComplianceStatus]++
	}
	bullets = append(bullets, fmt.Sprintf("%d clauses analyzed: %d Non-Compliant, %d Review Needed, %d Compliant.",
		len(clauses), counts[model.StatusNonCompliant], counts[model.StatusReviewNeeded], counts[model.StatusCompliant]))

	if top := riskiest(clauses, 1); len(top) == 1 {
		c := top[0]
		bullets = append(bullets, fmt.Sprintf("Highest-risk clause (risk %d, %s): %s", c.RiskScore, c.Category, truncateText(c.Clause, 120)))
	} else {
		bullets = append(bullets, "No clauses were extracted for review.")
	}

	if len(summary.Fees) > 0 {
		parts := make([]string, 0, len(summary.Fees))
		for _, f := range summary.Fees {
			parts = append(parts, fmt.Sprintf("%s (%s)", f.Name, f.Amount))
		}
		bullets = append(bullets, "Fees: "+strings.Join(parts, ", ")+".")
	}
	if len(summary.PaymentTerms) > 0 && len(bullets) < maxDigestBullets {
		bullets = append(bullets, "Payment: "+strings.Join(summary.PaymentTerms, " "))
	}
	return bullets
}

// riskiest returns up to n clauses by descending risk, document order on ties.
func riskiest(clauses []model.Clause, n int) []model.Clause {
	sorted := append([]model.Clause(nil), clauses...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].RiskScore > sorted[j].RiskScore })
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
