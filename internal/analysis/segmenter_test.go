package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitClauses_Paragraphs(t *testing.T) {
	text := "The Supplier shall deliver the goods within thirty days of the order date.\n\n" +
		"Short heading\n\n" +
		"   \n" +
		"The Customer shall inspect the goods on arrival and report defects promptly.\r\n \r\n" +
		"Payment is due upon acceptance of the goods by the Customer in writing."
	got := SplitClauses(text)
	assert.Equal(t, []string{
		"The Supplier shall deliver the goods within thirty days of the order date.",
		"The Customer shall inspect the goods on arrival and report defects promptly.",
		"Payment is due upon acceptance of the goods by the Customer in writing.",
	}, got)
}

func TestSplitClauses_SentencesAcrossShortParagraphs(t *testing.T) {
	text := "The Supplier shall deliver the goods\n\n" +
		"to the Client warehouse within ten days. The\n\n" +
		"Client shall inspect each delivery and report\n\n" +
		"any defects in writing"
	got := SplitClauses(text)
	assert.Equal(t, []string{
		"The Supplier shall deliver the goods\n\nto the Client warehouse within ten days.",
		"The\n\nClient shall inspect each delivery and report\n\nany defects in writing.",
	}, got)
}

func TestSplitClauses_FallsBackToWholeText(t *testing.T) {
	text := "Definitions.\n\nServices.\n\nFees apply.\n\nTerm and renewal.\n\nNotices."
	got := SplitClauses(text)
	require.Len(t, got, 1)
	assert.Equal(t, strings.TrimSpace(text), got[0])
}

func TestSplitClauses_AtLeastOneClauseForLongText(t *testing.T) {
	inputs := []string{
		strings.Repeat("word ", 11),
		"   " + strings.Repeat("a", 51) + "   ",
		strings.Repeat("tiny.\n\n", 20),
		strings.Repeat("x. ", 30),
		"One sentence that is fairly long and goes on. Another sentence that follows it closely.",
	}
	for _, in := range inputs {
		require.Greater(t, len(strings.TrimSpace(in)), minClauseLen)
		assert.NotEmpty(t, SplitClauses(in), "input %q", in)
	}
	assert.Empty(t, SplitClauses("too short"))
	assert.Empty(t, SplitClauses(""))
}

func TestSegmenter_UsesModelClauses(t *testing.T) {
	fake := newScriptedLLM(func(ctx context.Context, prompt, system string) (string, error) {
		return "```json\n[\"First clause.\", \"  \", \"Second clause.\"]\n```", nil
	})
	s := NewSegmenter(fake, 100, nil)
	assert.Equal(t, []string{"First clause.", "Second clause."}, s.Segment(context.Background(), "irrelevant"))
}

func TestSegmenter_AcceptsWrappedList(t *testing.T) {
	fake := newScriptedLLM(func(ctx context.Context, prompt, system string) (string, error) {
		return `{"clauses": ["Only clause."]}`, nil
	})
	s := NewSegmenter(fake, 100, nil)
	assert.Equal(t, []string{"Only clause."}, s.Segment(context.Background(), "irrelevant"))
}

func TestSegmenter_TruncatesPrompt(t *testing.T) {
	var seen string
	fake := newScriptedLLM(func(ctx context.Context, prompt, system string) (string, error) {
		seen = prompt
		return `["ok"]`, nil
	})
	s := NewSegmenter(fake, 10, nil)
	s.Segment(context.Background(), strings.Repeat("z", 100))
	assert.Equal(t, 10, strings.Count(seen, "z"))
}

func TestSegmenter_FallsBack(t *testing.T) {
	text := "This clause is long enough to survive the heuristic length filter easily."
	replies := map[string]struct {
		reply string
		err   error
	}{
		"error":     {err: errors.New("timeout")},
		"empty":     {reply: `[]`},
		"malformed": {reply: `["unterminated`},
		"wrong":     {reply: `{"items": 3}`},
	}
	for name, r := range replies {
		t.Run(name, func(t *testing.T) {
			fake := newScriptedLLM(func(ctx context.Context, prompt, system string) (string, error) {
				return r.reply, r.err
			})
			got := NewSegmenter(fake, 100, nil).Segment(context.Background(), text)
			assert.Equal(t, []string{text}, got)
		})
	}
}
