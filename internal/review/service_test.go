package review

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericksa/contractlens/internal/analysis"
	"github.com/ericksa/contractlens/internal/extract"
	"github.com/ericksa/contractlens/internal/model"
	"github.com/ericksa/contractlens/internal/store"
)

func docx(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	var body strings.Builder
	for _, p := range paragraphs {
		fmt.Fprintf(&body, `<w:p><w:r><w:t>%s</w:t></w:r></w:p>`, p)
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = fmt.Fprintf(w, `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>%s</w:body></w:document>`, body.String())
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func newService(t *testing.T) *Service {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	p := analysis.New(analysis.Options{Rand: analysis.NewRand(11), Concurrency: 2})
	return NewService(p, st, nil)
}

var contractParagraphs = []string{
	"1. This Agreement is entered into between Acme Corporation and Globex LLC, effective as of March 1, 2024.",
	"2. The Vendor shall not be liable for any indirect damages arising from the services.",
	"3. The Client shall pay a setup fee of $1,000 and a monthly support fee of $200 per month.",
	"4. Invoices are payable Net 30 days from receipt of invoice by the Client's finance team.",
	"5. Consulting services are billed at $150 per hour, with travel reimbursed at cost.",
}

func upload(t *testing.T, svc *Service, id string) *analysis.Result {
	t.Helper()
	res, err := svc.Upload(context.Background(), model.Document{
		ID:       id,
		Filename: "agreement.docx",
		MimeType: extract.MimeDOCX,
		Data:     docx(t, contractParagraphs...),
	})
	require.NoError(t, err)
	return res
}

func TestUpload_PersistsClausesAndSummary(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.CreateRule(ctx, model.ComplianceRule{Keyword: "not be liable"})
	require.NoError(t, err)

	res := upload(t, svc, "doc-1")
	clauses, err := svc.Clauses(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, res.Clauses, clauses)
	require.Len(t, clauses, len(contractParagraphs))
	assert.Equal(t, model.StatusNonCompliant, clauses[1].ComplianceStatus)

	sum, err := svc.Summary(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "agreement", sum.Title)
	assert.Equal(t, res.Summary.Fees, sum.Fees)
}

func TestUpload_ReplacesPreviousDocument(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	upload(t, svc, "doc-1")
	upload(t, svc, "doc-2")

	old, err := svc.Clauses(ctx, "doc-1")
	require.NoError(t, err)
	assert.Empty(t, old)
	current, err := svc.Clauses(ctx, "doc-2")
	require.NoError(t, err)
	assert.NotEmpty(t, current)
}

func TestUpload_ExtractionErrorStoresNothing(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	upload(t, svc, "doc-1")

	_, err := svc.Upload(ctx, model.Document{ID: "bad", Filename: "x.txt", MimeType: "text/plain", Data: []byte("x")})
	assert.ErrorIs(t, err, extract.ErrExtraction)

	clauses, err := svc.Clauses(ctx, "doc-1")
	require.NoError(t, err)
	assert.NotEmpty(t, clauses)
}

func TestExtractFees_DoesNotDuplicate(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	res := upload(t, svc, "doc-1")
	require.NotEmpty(t, res.Summary.Fees)

	first, err := svc.ExtractFees(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 0, first.Added)
	assert.Equal(t, res.Summary.Fees, first.Summary.Fees)

	second, err := svc.ExtractFees(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 0, second.Added)

	sum, err := svc.Summary(ctx, "doc-1")
	require.NoError(t, err)
	assert.Len(t, sum.Fees, len(res.Summary.Fees))
}

func TestExtract_MergesIntoEmptiedSummary(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	res := upload(t, svc, "doc-1")

	sum := res.Summary
	sum.Fees = nil
	sum.RateCard = nil
	sum.PaymentTerms = []string{"Custom negotiated term."}
	require.NoError(t, svc.store.UpsertSummary(ctx, sum))

	fees, err := svc.ExtractFees(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, len(res.Summary.Fees), fees.Added)

	costs, err := svc.ExtractCosts(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, len(res.Summary.RateCard), costs.Added)
	assert.Equal(t, res.Summary.RateCard, costs.Summary.RateCard)

	terms, err := svc.ExtractPaymentTerms(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "Custom negotiated term.", terms.Summary.PaymentTerms[0])
	assert.Equal(t, len(res.Summary.PaymentTerms), terms.Added)

	stored, err := svc.Summary(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, terms.Summary.PaymentTerms, stored.PaymentTerms)
	assert.Equal(t, fees.Summary.Fees, stored.Fees)
}

func TestExtract_Errors(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.ExtractFees(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Extract(ctx, "missing", "totals")
	assert.Error(t, err)
}

func TestMarkReviewedAndReset(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	res := upload(t, svc, "doc-1")

	c, err := svc.MarkReviewed(ctx, res.Clauses[0].ID, true)
	require.NoError(t, err)
	assert.True(t, c.Completed)
	assert.Equal(t, res.Clauses[0].Clause, c.Clause)

	_, err = svc.MarkReviewed(ctx, "nope", true)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.CreateRule(ctx, model.ComplianceRule{Keyword: "terminate"})
	require.NoError(t, err)
	require.NoError(t, svc.Reset(ctx))

	clauses, err := svc.Clauses(ctx, "doc-1")
	require.NoError(t, err)
	assert.Empty(t, clauses)
	_, err = svc.Summary(ctx, "doc-1")
	assert.ErrorIs(t, err, ErrNotFound)
	rules, err := svc.ListRules(ctx)
	require.NoError(t, err)
	assert.Len(t, rules, 1)
}

func TestRules_Validation(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	r, err := svc.CreateRule(ctx, model.ComplianceRule{Keyword: "  indemnify  ", Category: "Indemnification"})
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "indemnify", r.Keyword)
	assert.Equal(t, model.DefaultRuleRiskScore, r.RiskScore)

	_, err = svc.CreateRule(ctx, model.ComplianceRule{Keyword: "   "})
	assert.ErrorIs(t, err, ErrInvalidRule)
	_, err = svc.CreateRule(ctx, model.ComplianceRule{Keyword: "x", RiskScore: 11})
	assert.ErrorIs(t, err, ErrInvalidRule)
	_, err = svc.CreateRule(ctx, model.ComplianceRule{Keyword: "x", RiskScore: -1})
	assert.ErrorIs(t, err, ErrInvalidRule)

	updated, err := svc.UpdateRule(ctx, r.ID, model.ComplianceRule{Keyword: "hold harmless", Allowed: true, RiskScore: 3})
	require.NoError(t, err)
	assert.Equal(t, r.ID, updated.ID)
	assert.Equal(t, r.CreatedAt, updated.CreatedAt)

	_, err = svc.UpdateRule(ctx, "missing", model.ComplianceRule{Keyword: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.UpdateRule(ctx, r.ID, model.ComplianceRule{Keyword: ""})
	assert.ErrorIs(t, err, ErrInvalidRule)

	rules, err := svc.ListRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "hold harmless", rules[0].Keyword)
	assert.True(t, rules[0].Allowed)

	require.NoError(t, svc.DeleteRule(ctx, r.ID))
	assert.ErrorIs(t, svc.DeleteRule(ctx, r.ID), ErrNotFound)
}

func TestUploadText(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	res, err := svc.UploadText(ctx, "pasted", strings.Join(contractParagraphs, "\n\n"))
	require.NoError(t, err)
	assert.NotEmpty(t, res.DocumentID)
	clauses, err := svc.Clauses(ctx, res.DocumentID)
	require.NoError(t, err)
	assert.Len(t, clauses, len(contractParagraphs))

	_, err = svc.UploadText(ctx, "blank", "  \n ")
	assert.ErrorIs(t, err, extract.ErrNoText)
}
