// Package review ties the analysis pipeline to persistent storage: uploads,
// incremental financial re-extraction, review marks and rule management.
package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ericksa/contractlens/internal/analysis"
	"github.com/ericksa/contractlens/internal/extract"
	"github.com/ericksa/contractlens/internal/logger"
	"github.com/ericksa/contractlens/internal/model"
	"github.com/ericksa/contractlens/internal/store"
)

var (
	ErrNotFound    = store.ErrNotFound
	ErrInvalidRule = errors.New("invalid rule")
)

// Extraction kinds accepted by Extract.
const (
	KindFees         = "fees"
	KindCosts        = "costs"
	KindPaymentTerms = "payment-terms"
)

// ExtractionResult reports an incremental merge into a stored summary.
type ExtractionResult struct {
	DocumentID string                `json:"documentId"`
	Kind       string                `json:"kind"`
	Added      int                   `json:"added"`
	Summary    model.ContractSummary `json:"summary"`
}

type Service struct {
	pipeline *analysis.Pipeline
	store    *store.Store
	log      *logger.Logger
	newID    func() string

	// mu serializes writes; only one document's clauses are resident at a time.
	mu sync.Mutex
}

func NewService(p *analysis.Pipeline, st *store.Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		pipeline: p,
		store:    st,
		log:      log.With("service", "Review"),
		newID:    uuid.NewString,
	}
}

// Upload analyzes doc against the current rules and replaces the stored clauses.
func (s *Service) Upload(ctx context.Context, doc model.Document) (*analysis.Result, error) {
	rules, err := s.store.ListRules(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.pipeline.Run(ctx, doc, rules)
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, res, len(rules)); err != nil {
		return nil, err
	}
	return res, nil
}

// UploadText is Upload for text that has already been extracted.
func (s *Service) UploadText(ctx context.Context, title, text string) (*analysis.Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, extract.ErrNoText
	}
	rules, err := s.store.ListRules(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.pipeline.AnalyzeText(ctx, s.newID(), title, text, rules)
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, res, len(rules)); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) persist(ctx context.Context, res *analysis.Result, rules int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.ReplaceDocument(ctx, res.Clauses, res.Summary); err != nil {
		return err
	}
	s.log.Info("document stored", "document_id", res.DocumentID, "clauses", len(res.Clauses), "rules", rules)
	return nil
}

func (s *Service) Clauses(ctx context.Context, documentID string) ([]model.Clause, error) {
	return s.store.ListClauses(ctx, documentID)
}

func (s *Service) Summary(ctx context.Context, documentID string) (model.ContractSummary, error) {
	return s.store.GetSummary(ctx, documentID)
}

func (s *Service) ExtractFees(ctx context.Context, documentID string) (ExtractionResult, error) {
	return s.Extract(ctx, documentID, KindFees)
}

// ExtractCosts merges rate card items.
func (s *Service) ExtractCosts(ctx context.Context, documentID string) (ExtractionResult, error) {
	return s.Extract(ctx, documentID, KindCosts)
}

func (s *Service) ExtractPaymentTerms(ctx context.Context, documentID string) (ExtractionResult, error) {
	return s.Extract(ctx, documentID, KindPaymentTerms)
}

// Extract re-runs financial extraction over the stored clauses and merges
// the chosen field into the stored summary. Existing entries are kept.
func (s *Service) Extract(ctx context.Context, documentID, kind string) (ExtractionResult, error) {
	if kind != KindFees && kind != KindCosts && kind != KindPaymentTerms {
		return ExtractionResult{}, fmt.Errorf("unknown extraction kind %q", kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sum, err := s.store.GetSummary(ctx, documentID)
	if err != nil {
		return ExtractionResult{}, err
	}
	clauses, err := s.store.ListClauses(ctx, documentID)
	if err != nil {
		return ExtractionResult{}, err
	}

	fin := s.pipeline.Financials(ctx, clauses)
	var added int
	switch kind {
	case KindFees:
		sum.Fees, added = analysis.MergeFees(sum.Fees, fin.Fees)
	case KindCosts:
		sum.RateCard, added = analysis.MergeRateCard(sum.RateCard, fin.RateCard)
	case KindPaymentTerms:
		sum.PaymentTerms, added = analysis.MergePaymentTerms(sum.PaymentTerms, fin.PaymentTerms)
	}

	if added > 0 {
		if err := s.store.UpsertSummary(ctx, sum); err != nil {
			return ExtractionResult{}, err
		}
	}
	s.log.Info("financial re-extraction", "document_id", documentID, "kind", kind, "added", added)
	return ExtractionResult{DocumentID: documentID, Kind: kind, Added: added, Summary: sum}, nil
}

func (s *Service) MarkReviewed(ctx context.Context, clauseID string, completed bool) (model.Clause, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.SetCompleted(ctx, clauseID, completed)
}

// Reset drops all clauses and summaries. Rules survive.
func (s *Service) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.ResetClauses(ctx); err != nil {
		return err
	}
	s.log.Info("review state reset")
	return nil
}

// Rules

func (s *Service) ListRules(ctx context.Context) ([]model.ComplianceRule, error) {
	return s.store.ListRules(ctx)
}

func (s *Service) CreateRule(ctx context.Context, r model.ComplianceRule) (model.ComplianceRule, error) {
	if err := NormalizeRule(&r); err != nil {
		return model.ComplianceRule{}, err
	}
	r.ID = s.newID()
	r.CreatedAt = time.Now().UTC()
	if err := s.store.CreateRule(ctx, r); err != nil {
		return model.ComplianceRule{}, err
	}
	return r, nil
}

func (s *Service) UpdateRule(ctx context.Context, id string, r model.ComplianceRule) (model.ComplianceRule, error) {
	existing, err := s.store.GetRule(ctx, id)
	if err != nil {
		return model.ComplianceRule{}, err
	}
	if err := NormalizeRule(&r); err != nil {
		return model.ComplianceRule{}, err
	}
	r.ID = id
	r.CreatedAt = existing.CreatedAt
	if err := s.store.UpdateRule(ctx, r); err != nil {
		return model.ComplianceRule{}, err
	}
	return r, nil
}

func (s *Service) DeleteRule(ctx context.Context, id string) error {
	return s.store.DeleteRule(ctx, id)
}

// NormalizeRule trims the rule and applies the default risk score. A zero
// risk score means unset.
func NormalizeRule(r *model.ComplianceRule) error {
	r.Keyword = strings.TrimSpace(r.Keyword)
	r.Category = strings.TrimSpace(r.Category)
	r.Description = strings.TrimSpace(r.Description)
	if r.Keyword == "" {
		return fmt.Errorf("%w: keyword is required", ErrInvalidRule)
	}
	if r.RiskScore == 0 {
		r.RiskScore = model.DefaultRuleRiskScore
	}
	if r.RiskScore < 1 || r.RiskScore > 10 {
		return fmt.Errorf("%w: riskScore must be between 1 and 10, got %d", ErrInvalidRule, r.RiskScore)
	}
	return nil
}
