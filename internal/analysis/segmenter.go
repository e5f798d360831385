package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/ericksa/contractlens/internal/llm"
	"github.com/ericksa/contractlens/internal/logger"
)

// minClauseLen is the length a trimmed paragraph or sentence must exceed to count as a clause.
const minClauseLen = 50

var blankLine = regexp.MustCompile(`\r?\n(?:[ \t]*\r?\n)+`)

const segmentSystemPrompt = `You are a legal document analyst. Split the contract text into individual clauses.
Each clause must be self-contained and keep the original wording.
Respond with JSON only: an array of strings, one per clause.`

// Segmenter splits contract text into clause strings.
type Segmenter struct {
	llm      llm.Caller
	maxChars int
	log      *logger.Logger
}

func NewSegmenter(c llm.Caller, maxChars int, log *logger.Logger) *Segmenter {
	if log == nil {
		log = logger.Nop()
	}
	return &Segmenter{llm: c, maxChars: maxChars, log: log}
}

// Segment asks the model for clauses and falls back to SplitClauses when no
// model is configured, the call fails or it returns nothing.
func (s *Segmenter) Segment(ctx context.Context, text string) []string {
	if s.llm == nil {
		return SplitClauses(text)
	}
	attempt := s.tryModel(ctx, text)
	if attempt.OK() {
		return attempt.Value
	}
	fallbackTotal.WithLabelValues(stageSegment).Inc()
	s.log.Warn("AI segmentation failed, using heuristic", "stage", stageSegment, "error", attempt.Err.Error())
	return SplitClauses(text)
}

func (s *Segmenter) tryModel(ctx context.Context, text string) llm.Attempt[[]string] {
	prompt := "Contract text:\n\n" + llm.Truncate(text, s.maxChars)
	raw := llm.TryJSON[json.RawMessage](ctx, s.llm, segmentSystemPrompt, prompt, nil)
	if !raw.OK() {
		return llm.Attempt[[]string]{Err: raw.Err}
	}
	clauses, err := decodeClauseList(raw.Value)
	if err != nil {
		return llm.Attempt[[]string]{Err: err}
	}
	return llm.Attempt[[]string]{Value: clauses}
}

// decodeClauseList accepts a bare array or an object with a "clauses" array.
func decodeClauseList(raw json.RawMessage) ([]string, error) {
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		var wrapped struct {
			Clauses []string `json:"clauses"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, errors.New("model reply is not a clause list")
		}
		list = wrapped.Clauses
	}
	out := make([]string, 0, len(list))
	for _, c := range list {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("model returned no clauses")
	}
	return out, nil
}

// SplitClauses is the heuristic segmenter: paragraphs first, then sentences,
// then the whole text. It returns at least one clause whenever the trimmed
// text is longer than minClauseLen.
func SplitClauses(text string) []string {
	if clauses := keepLong(blankLine.Split(text, -1), ""); len(clauses) > 0 {
		return clauses
	}
	if clauses := keepLong(strings.Split(text, ". "), "."); len(clauses) > 0 {
		return clauses
	}
	if whole := strings.TrimSpace(text); len(whole) > minClauseLen {
		return []string{whole}
	}
	return nil
}

func keepLong(parts []string, terminator string) []string {
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if len(p) <= minClauseLen {
			continue
		}
		if terminator != "" && !strings.HasSuffix(p, terminator) {
			p += terminator
		}
		out = append(out, p)
	}
	return out
}
