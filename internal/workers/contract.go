package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ericksa/contractlens/internal/model"
	"github.com/ericksa/contractlens/internal/review"
)

// ContractWorker exposes the review service as tools
type ContractWorker struct {
	svc      *review.Service
	basePath string
}

func NewContractWorker(svc *review.Service, basePath string) *ContractWorker {
	return &ContractWorker{svc: svc, basePath: basePath}
}

func (w *ContractWorker) GetTools() []ToolDef {
	return []ToolDef{
		{Name: "analyze", Description: "Analyze a contract file (path) or pasted text (content) against the compliance rules"},
		{Name: "clauses", Description: "List analyzed clauses of a document in document order"},
		{Name: "summary", Description: "Get the contract summary of a document"},
		{Name: "extract_fees", Description: "Re-extract fees and merge them into the summary"},
		{Name: "extract_costs", Description: "Re-extract rate card items and merge them into the summary"},
		{Name: "extract_payment_terms", Description: "Re-extract payment terms and merge them into the summary"},
		{Name: "mark_reviewed", Description: "Mark a clause as reviewed (or not)"},
		{Name: "reset", Description: "Delete all analyzed clauses and summaries"},
		{Name: "rules_list", Description: "List compliance rules"},
		{Name: "rules_create", Description: "Create a compliance rule"},
		{Name: "rules_update", Description: "Update a compliance rule"},
		{Name: "rules_delete", Description: "Delete a compliance rule"},
	}
}

func (w *ContractWorker) Execute(ctx context.Context, name string, input json.RawMessage) ([]byte, error) {
	switch strings.TrimPrefix(name, "contract_") {
	case "analyze":
		return w.analyze(ctx, input)
	case "clauses":
		return w.clauses(ctx, input)
	case "summary":
		return w.summary(ctx, input)
	case "extract_fees":
		return w.extract(ctx, input, review.KindFees)
	case "extract_costs":
		return w.extract(ctx, input, review.KindCosts)
	case "extract_payment_terms":
		return w.extract(ctx, input, review.KindPaymentTerms)
	case "mark_reviewed":
		return w.markReviewed(ctx, input)
	case "reset":
		if err := w.svc.Reset(ctx); err != nil {
			return nil, err
		}
		return json.Marshal(map[string]any{"reset": true})
	case "rules_list":
		rules, err := w.svc.ListRules(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(rules)
	case "rules_create":
		return w.createRule(ctx, input)
	case "rules_update":
		return w.updateRule(ctx, input)
	case "rules_delete":
		return w.deleteRule(ctx, input)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
}

type analyzeResponse struct {
	DocumentID string                `json:"document_id"`
	Pages      int                   `json:"pages,omitempty"`
	Synthetic  bool                  `json:"synthetic"`
	Clauses    int                   `json:"clause_count"`
	Counts     map[string]int        `json:"status_counts"`
	Summary    model.ContractSummary `json:"summary"`
}

func (w *ContractWorker) analyze(ctx context.Context, input json.RawMessage) ([]byte, error) {
	var req struct {
		Path    string `json:"path"`
		Content string `json:"content"`
		Title   string `json:"title"`
	}
	if err := decode(input, &req); err != nil {
		return nil, err
	}
	if req.Path == "" && req.Content == "" {
		return nil, errors.New("path or content required")
	}

	var (
		clauses []model.Clause
		resp    analyzeResponse
	)
	if req.Path != "" {
		full, err := resolvePath(w.basePath, req.Path)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(full)
		if err != nil {
			return nil, fmt.Errorf("failed to read document: %w", err)
		}
		res, err := w.svc.Upload(ctx, model.Document{Filename: filepath.Base(full), Data: data})
		if err != nil {
			return nil, err
		}
		clauses = res.Clauses
		resp = analyzeResponse{DocumentID: res.DocumentID, Pages: res.Pages, Synthetic: res.Synthetic, Summary: res.Summary}
	} else {
		res, err := w.svc.UploadText(ctx, req.Title, req.Content)
		if err != nil {
			return nil, err
		}
		clauses = res.Clauses
		resp = analyzeResponse{DocumentID: res.DocumentID, Summary: res.Summary}
	}

	resp.Clauses = len(clauses)
	resp.Counts = map[string]int{}
	for _, c := range clauses {
		resp.Counts[string(c.ComplianceStatus)]++
	}
	return json.Marshal(resp)
}

type documentRequest struct {
	DocumentID string `json:"document_id"`
}

func (w *ContractWorker) documentID(input json.RawMessage) (string, error) {
	var req documentRequest
	if err := decode(input, &req); err != nil {
		return "", err
	}
	if req.DocumentID == "" {
		return "", errors.New("document_id required")
	}
	return req.DocumentID, nil
}

func (w *ContractWorker) clauses(ctx context.Context, input json.RawMessage) ([]byte, error) {
	id, err := w.documentID(input)
	if err != nil {
		return nil, err
	}
	clauses, err := w.svc.Clauses(ctx, id)
	if err != nil {
		return nil, err
	}
	return json.Marshal(clauses)
}

func (w *ContractWorker) summary(ctx context.Context, input json.RawMessage) ([]byte, error) {
	id, err := w.documentID(input)
	if err != nil {
		return nil, err
	}
	sum, err := w.svc.Summary(ctx, id)
	if err != nil {
		return nil, err
	}
	return json.Marshal(sum)
}

func (w *ContractWorker) extract(ctx context.Context, input json.RawMessage, kind string) ([]byte, error) {
	id, err := w.documentID(input)
	if err != nil {
		return nil, err
	}
	res, err := w.svc.Extract(ctx, id, kind)
	if err != nil {
		return nil, err
	}
	return json.Marshal(res)
}

func (w *ContractWorker) markReviewed(ctx context.Context, input json.RawMessage) ([]byte, error) {
	var req struct {
		ClauseID  string `json:"clause_id"`
		Completed *bool  `json:"completed"`
	}
	if err := decode(input, &req); err != nil {
		return nil, err
	}
	if req.ClauseID == "" {
		return nil, errors.New("clause_id required")
	}
	completed := true
	if req.Completed != nil {
		completed = *req.Completed
	}
	c, err := w.svc.MarkReviewed(ctx, req.ClauseID, completed)
	if err != nil {
		return nil, err
	}
	return json.Marshal(c)
}

func (w *ContractWorker) createRule(ctx context.Context, input json.RawMessage) ([]byte, error) {
	var r model.ComplianceRule
	if err := decode(input, &r); err != nil {
		return nil, err
	}
	created, err := w.svc.CreateRule(ctx, r)
	if err != nil {
		return nil, err
	}
	return json.Marshal(created)
}

func (w *ContractWorker) updateRule(ctx context.Context, input json.RawMessage) ([]byte, error) {
	var r model.ComplianceRule
	if err := decode(input, &r); err != nil {
		return nil, err
	}
	if r.ID == "" {
		return nil, errors.New("id required")
	}
	updated, err := w.svc.UpdateRule(ctx, r.ID, r)
	if err != nil {
		return nil, err
	}
	return json.Marshal(updated)
}

func (w *ContractWorker) deleteRule(ctx context.Context, input json.RawMessage) ([]byte, error) {
	var req struct {
		ID string `json:"id"`
	}
	if err := decode(input, &req); err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, errors.New("id required")
	}
	if err := w.svc.DeleteRule(ctx, req.ID); err != nil {
		return nil, err
	}
	return json.Marshal(map[string]any{"deleted": req.ID})
}
