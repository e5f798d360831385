// Package analysis turns contract text into risk-scored, compliance-annotated
// clauses and a contract summary. Every model-backed stage has a heuristic
// fallback, so only a document with no extractable text fails.
package analysis

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ericksa/contractlens/internal/extract"
	"github.com/ericksa/contractlens/internal/llm"
	"github.com/ericksa/contractlens/internal/logger"
	"github.com/ericksa/contractlens/internal/model"
)

// DefaultMaxInputChars bounds the text sent to the model in one call.
const DefaultMaxInputChars = 15000

var sectionPattern = regexp.MustCompile(`^(?:(?i:(section|article|clause))\s+(\d+(?:\.\d+)*)|(\d+(?:\.\d+)+)[.)]?|(\d+)[.)])\s+\S`)

// Options wires a Pipeline. A nil LLM runs every stage on its heuristic.
type Options struct {
	LLM            llm.Caller
	Logger         *logger.Logger
	Rand           Rand
	Concurrency    int
	MaxInputChars  int
	SampleFallback bool
	NewID          func() string
}

type Pipeline struct {
	extractor   *extract.Extractor
	segmenter   *Segmenter
	analyzer    *Analyzer
	financial   *FinancialExtractor
	digest      *DigestBuilder
	rand        Rand
	concurrency int
	log         *logger.Logger
	newID       func() string
}

// Result is one analyzed document.
type Result struct {
	DocumentID string                `json:"documentId"`
	Pages      int                   `json:"pages"`
	Synthetic  bool                  `json:"synthetic"`
	Clauses    []model.Clause        `json:"clauses"`
	Summary    model.ContractSummary `json:"summary"`
}

func New(opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.MaxInputChars <= 0 {
		opts.MaxInputChars = DefaultMaxInputChars
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Rand == nil {
		opts.Rand = NewRand(0)
	}
	log := opts.Logger.With("service", "Pipeline")
	return &Pipeline{
		extractor:   extract.New(opts.SampleFallback),
		segmenter:   NewSegmenter(opts.LLM, opts.MaxInputChars, log),
		analyzer:    NewAnalyzer(opts.LLM, opts.Rand, log),
		financial:   NewFinancialExtractor(opts.LLM, opts.MaxInputChars, log),
		digest:      NewDigestBuilder(opts.LLM, log),
		rand:        opts.Rand,
		concurrency: opts.Concurrency,
		log:         log,
		newID:       opts.NewID,
	}
}

// Run extracts, segments and analyzes one document against a snapshot of the
// rules. Only extraction errors and context cancellation are returned.
func (p *Pipeline) Run(ctx context.Context, doc model.Document, rules []model.ComplianceRule) (*Result, error) {
	start := time.Now()
	defer func() { pipelineSeconds.Observe(time.Since(start).Seconds()) }()

	text, err := p.extractor.Extract(doc.Data, extract.DetectMimeType(doc.Filename, doc.MimeType))
	if err != nil {
		return nil, err
	}
	if text.Synthetic {
		p.log.Warn("document has no text layer, using sample clauses", "filename", doc.Filename, "pages", text.Pages)
	}

	docID := doc.ID
	if docID == "" {
		docID = p.newID()
	}
	res, err := p.analyze(ctx, docID, titleFromFilename(doc.Filename), text, rules)
	if err != nil {
		return nil, err
	}
	res.Pages = text.Pages
	res.Synthetic = text.Synthetic
	p.log.Info("document analyzed",
		"document_id", docID,
		"clauses", len(res.Clauses),
		"duration", time.Since(start).String(),
	)
	return res, nil
}

// AnalyzeText runs every stage after extraction.
func (p *Pipeline) AnalyzeText(ctx context.Context, docID, title, text string, rules []model.ComplianceRule) (*Result, error) {
	return p.analyze(ctx, docID, title, extract.Result{Text: text}, rules)
}

func (p *Pipeline) analyze(ctx context.Context, docID, title string, text extract.Result, rules []model.ComplianceRule) (*Result, error) {
	snapshot := append([]model.ComplianceRule(nil), rules...)

	segments := p.segmenter.Segment(ctx, text.Text)
	pages := segmentPages(text, segments)
	sources := clauseSources(p.rand, len(segments))
	clauses, err := forEachOrdered(ctx, len(segments), p.concurrency, func(ctx context.Context, i int) model.Clause {
		section := sectionLabel(segments[i])
		a := p.analyzer.analyze(ctx, sources[i], segments[i], section, snapshot)
		clausesTotal.WithLabelValues(string(a.ComplianceStatus)).Inc()
		return model.Clause{
			Clause:           segments[i],
			Section:          section,
			Page:             pages[i],
			Category:         a.Category,
			RiskScore:        a.RiskScore,
			ComplianceStatus: a.ComplianceStatus,
			DocumentID:       docID,
			Recommendations:  a.Recommendations,
			ComplianceIssues: a.ComplianceIssues,
		}
	})
	if err != nil {
		return nil, fmt.Errorf("analyze clauses: %w", err)
	}
	// IDs are assigned after the concurrent pass so they follow document order.
	for i := range clauses {
		clauses[i].ID = p.newID()
	}

	fin := p.financial.Extract(ctx, segments)
	summary := AssembleSummary(SummaryInput{
		DocumentID: docID,
		Title:      title,
		Text:       text.Text,
		Clauses:    clauses,
		Financials: fin,
	})
	summary.Digest = p.digest.Build(ctx, summary, clauses)

	return &Result{DocumentID: docID, Clauses: clauses, Summary: summary}, nil
}

// Financials re-runs financial extraction over stored clauses.
func (p *Pipeline) Financials(ctx context.Context, clauses []model.Clause) model.Financials {
	texts := make([]string, 0, len(clauses))
	for _, c := range clauses {
		texts = append(texts, c.Clause)
	}
	return p.financial.Extract(ctx, texts)
}

// segmentPages finds each segment in the page-indexed text, scanning forward
// in document order. Segments the model rewrote are not found and stay nil.
func segmentPages(text extract.Result, segments []string) []*int {
	out := make([]*int, len(segments))
	if len(text.PageStarts) == 0 {
		return out
	}
	cursor := 0
	for i, seg := range segments {
		head := llm.Truncate(strings.TrimSuffix(seg, "."), 60)
		if head == "" {
			continue
		}
		j := strings.Index(text.Text[cursor:], head)
		if j < 0 {
			continue
		}
		cursor += j
		page := text.PageAt(cursor)
		out[i] = &page
	}
	return out
}

func sectionLabel(clause string) string {
	m := sectionPattern.FindStringSubmatch(clause)
	if m == nil {
		return ""
	}
	switch {
	case m[3] != "":
		return "Section " + m[3]
	case m[4] != "":
		return "Section " + m[4]
	}
	return strings.ToUpper(m[1][:1]) + strings.ToLower(m[1][1:]) + " " + m[2]
}

func titleFromFilename(name string) string {
	base := filepath.Base(name)
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
