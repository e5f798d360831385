package analysis

import "github.com/ericksa/contractlens/internal/model"

// MergeFees appends incoming fees whose name is not already present and
// reports how many were added. Existing entries are never changed.
func MergeFees(existing, incoming []model.Fee) ([]model.Fee, int) {
	return mergeBy(existing, incoming, func(f model.Fee) string { return f.Name })
}

// MergeRateCard appends incoming items keyed by item name.
func MergeRateCard(existing, incoming []model.RateCardItem) ([]model.RateCardItem, int) {
	return mergeBy(existing, incoming, func(r model.RateCardItem) string { return r.Item })
}

// MergePaymentTerms appends incoming terms not already present verbatim.
func MergePaymentTerms(existing, incoming []string) ([]string, int) {
	return mergeBy(existing, incoming, func(s string) string { return s })
}

func mergeBy[T any](existing, incoming []T, key func(T) string) ([]T, int) {
	seen := make(map[string]bool, len(existing)+len(incoming))
	out := make([]T, 0, len(existing)+len(incoming))
	for _, e := range existing {
		seen[key(e)] = true
		out = append(out, e)
	}
	added := 0
	for _, in := range incoming {
		k := key(in)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, in)
		added++
	}
	return out, added
}
