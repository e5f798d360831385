package analysis

import (
	"strings"

	"github.com/ericksa/contractlens/internal/model"
)

// Match is one rule whose keyword occurs in a clause.
type Match struct {
	Rule        model.ComplianceRule `json:"rule"`
	IsViolation bool                 `json:"isViolation"`
}

// MatchRules returns every rule whose keyword appears in the clause,
// case-insensitively, in rule order. A match on a disallowed rule is a violation.
func MatchRules(clause string, rules []model.ComplianceRule) []Match {
	text := strings.ToLower(clause)
	var matches []Match
	for _, r := range rules {
		kw := strings.ToLower(strings.TrimSpace(r.Keyword))
		if kw == "" || !strings.Contains(text, kw) {
			continue
		}
		matches = append(matches, Match{Rule: r, IsViolation: !r.Allowed})
	}
	return matches
}

func splitMatches(matches []Match) (violations, allowed []Match) {
	for _, m := range matches {
		if m.IsViolation {
			violations = append(violations, m)
		} else {
			allowed = append(allowed, m)
		}
	}
	return violations, allowed
}
