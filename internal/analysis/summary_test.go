package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericksa/contractlens/internal/extract"
	"github.com/ericksa/contractlens/internal/model"
)

func clause(text string, status model.ComplianceStatus, risk int, category string) model.Clause {
	return model.Clause{Clause: text, ComplianceStatus: status, RiskScore: risk, Category: category}
}

func TestAssembleSummary_KeyObligations(t *testing.T) {
	clauses := []model.Clause{
		clause("a", model.StatusCompliant, 2, ""),
		clause("b", model.StatusNonCompliant, 8, ""),
		clause("c", model.StatusCompliant, 5, ""),
		clause("d", model.StatusCompliant, 0, ""),
		clause("e", model.StatusReviewNeeded, 4, ""),
		clause("f", model.StatusCompliant, 3, ""),
		clause("g", model.StatusCompliant, 1, ""),
	}
	s := AssembleSummary(SummaryInput{DocumentID: "doc-1", Clauses: clauses})
	assert.Equal(t, []string{"a", "d", "f"}, s.KeyObligations)
}

func TestAssembleSummary_SelectsTerminationAndConfidentiality(t *testing.T) {
	clauses := []model.Clause{
		clause("Fees are payable monthly.", model.StatusCompliant, 1, CategoryPaymentTerms),
		clause("This agreement ends when either party terminates for cause.", model.StatusCompliant, 1, CategoryGeneral),
		clause("Notice periods apply.", model.StatusCompliant, 1, CategoryTermination),
		clause("Neither party may share the other party's trade secrets.", model.StatusCompliant, 1, CategoryConfidentiality),
	}
	s := AssembleSummary(SummaryInput{DocumentID: "doc-1", Clauses: clauses})
	assert.Equal(t, []string{"This agreement ends when either party terminates for cause."}, s.TerminationClauses)
	assert.Equal(t, "Neither party may share the other party's trade secrets.", s.ConfidentialityTerms)
}

func TestAssembleSummary_Defaults(t *testing.T) {
	s := AssembleSummary(SummaryInput{DocumentID: "doc-2", Text: "nothing useful"})
	assert.Equal(t, "doc-2", s.DocumentID)
	require.NotNil(t, s.Parties)
	assert.Equal(t, DefaultParty1, s.Parties.Party1)
	assert.Equal(t, DefaultParty2, s.Parties.Party2)
	assert.Equal(t, NotSpecified, s.EffectiveDate)
	assert.Equal(t, NotSpecified, s.TermLength)
	assert.Equal(t, []string{DefaultTermination}, s.TerminationClauses)
	assert.Equal(t, DefaultConfidentiality, s.ConfidentialityTerms)
	assert.NotNil(t, s.Fees)
	assert.NotNil(t, s.RateCard)
	assert.NotNil(t, s.PaymentTerms)
	assert.NotNil(t, s.KeyObligations)
}

func TestAssembleSummary_ReadsPartiesDateAndTerm(t *testing.T) {
	s := AssembleSummary(SummaryInput{DocumentID: "doc-3", Text: extract.SampleText(1)})
	require.NotNil(t, s.Parties)
	assert.Equal(t, "Acme Corporation", s.Parties.Party1)
	assert.Equal(t, "Globex Services LLC", s.Parties.Party2)
	assert.Equal(t, "January 1, 2024", s.EffectiveDate)
	assert.Equal(t, "12 months", s.TermLength)

	s = AssembleSummary(SummaryInput{Text: "This Agreement is made by and between Initech Inc. and Hooli (the \"Vendor\"), dated 03/15/2023, for a term of three (3) years."})
	assert.Equal(t, "Initech Inc", s.Parties.Party1)
	assert.Equal(t, "Hooli", s.Parties.Party2)
	assert.Equal(t, "03/15/2023", s.EffectiveDate)
	assert.Equal(t, "3 years", s.TermLength)
}

func TestTemplateDigest(t *testing.T) {
	summary := model.ContractSummary{
		Parties:       &model.Parties{Party1: "Acme", Party2: "Globex"},
		EffectiveDate: "January 1, 2024",
		TermLength:    NotSpecified,
		Fees:          []model.Fee{{Name: "Setup Fee", Amount: "$500"}},
		PaymentTerms:  []string{"Payment terms: Net 30 days."},
	}
	clauses := []model.Clause{
		clause("Low risk clause.", model.StatusCompliant, 1, CategoryGeneral),
		clause("Vendor excludes all liability.", model.StatusNonCompliant, 9, CategoryLiability),
	}
	got := TemplateDigest(summary, clauses)
	require.Len(t, got, 5)
	assert.Equal(t, "Agreement between Acme and Globex, effective January 1, 2024.", got[0])
	assert.Equal(t, "2 clauses analyzed: 1 Non-Compliant, 0 Review Needed, 1 Compliant.", got[1])
	assert.Contains(t, got[2], "risk 9, Liability")
	assert.Equal(t, "Fees: Setup Fee ($500).", got[3])
	assert.Equal(t, "Payment: Payment terms: Net 30 days.", got[4])

	empty := TemplateDigest(model.ContractSummary{}, nil)
	assert.Len(t, empty, 3)
}

func TestDigestBuilder(t *testing.T) {
	summary := model.ContractSummary{Parties: &model.Parties{Party1: "A", Party2: "B"}}

	fake := newScriptedLLM(func(ctx context.Context, prompt, system string) (string, error) {
		assert.True(t, strings.HasPrefix(prompt, "Contract summary:"))
		return `["- One", "* Two", "", "Three", "Four", "Five", "Six"]`, nil
	})
	got := NewDigestBuilder(fake, nil).Build(context.Background(), summary, nil)
	assert.Equal(t, []string{"One", "Two", "Three", "Four", "Five"}, got)

	failing := newScriptedLLM(func(ctx context.Context, prompt, system string) (string, error) {
		return "", errors.New("down")
	})
	got = NewDigestBuilder(failing, nil).Build(context.Background(), summary, nil)
	assert.Equal(t, TemplateDigest(summary, nil), got)
}
