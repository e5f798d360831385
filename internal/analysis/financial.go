package analysis

import (
	"context"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/spf13/cast"

	"github.com/ericksa/contractlens/internal/llm"
	"github.com/ericksa/contractlens/internal/logger"
	"github.com/ericksa/contractlens/internal/model"
)

var (
	feeNamePattern   = regexp.MustCompile(`\b(?:a|an|the)\s+([a-z\s]+(?:fee|charge|payment))`)
	amountPattern    = regexp.MustCompile(`\$\s?[\d,]+(?:\.\d+)?|\d+(?:\.\d+)?\s?%`)
	currencyPattern  = regexp.MustCompile(`(?:\$|USD\s?|EUR\s?|€|£)\s?[\d,]+(?:\.\d+)?`)
	frequencyPattern = regexp.MustCompile(`\b(?:per|each|every)\s+([a-z]+)`)
	unitPattern      = regexp.MustCompile(`^\s*(?:per\s+|/\s*|an?\s+)([a-z]+)`)
	sentenceBreak    = regexp.MustCompile(`[.;]\s+`)
	innerArticle     = regexp.MustCompile(`.*\b(?:a|an|the)\s+`)

	netDaysPattern   = regexp.MustCompile(`(?i)\bnet\s*(\d+)\s*days?\b`)
	dueWithinPattern = regexp.MustCompile(`(?i)\bdue\s+within\s+(\d+)\s+days?\b`)
	lateFeePattern   = regexp.MustCompile(`(?i)\blate\s+(?:payment\s+)?fee\s+of\s+(\d+(?:\.\d+)?\s?%)`)
)

// verbatimTermLen is the longest payment clause kept word for word.
const verbatimTermLen = 100

const maxFeeDescription = 200

var (
	feeHints     = []string{"fee", "payment", "cost", "price", "charge"}
	rateHints    = []string{"price", "rate", "cost", "charge", "$", "usd", "eur", "€", "£"}
	paymentHints = []string{"payment", "invoice", "net", "due", "paid"}
)

// connectors are skipped when reading a rate card item name backwards from its amount.
var connectors = map[string]bool{
	"at": true, "of": true, "is": true, "be": true, "shall": true, "will": true,
	"billed": true, "charged": true, "are": true, "rate": true, "a": true, "an": true,
	"the": true, "for": true, "and": true, "or": true, "plus": true, "to": true,
}

var frequencyLabels = map[string]string{
	"hour":    "Hourly",
	"day":     "Daily",
	"week":    "Weekly",
	"month":   "Monthly",
	"quarter": "Quarterly",
	"year":    "Annually",
	"annum":   "Annually",
}

const financialSystemPrompt = `You extract financial terms from contracts.
Respond with JSON only, shaped as:
{"fees": [{"name": "...", "amount": "...", "frequency": "...", "description": "...", "category": "..."}],
 "paymentTerms": ["..."],
 "rateCard": [{"item": "...", "rate": "...", "unit": "..."}]}
Use empty arrays when nothing is found.`

// FinancialExtractor pulls fees, rate card entries and payment terms out of clauses.
type FinancialExtractor struct {
	llm      llm.Caller
	maxChars int
	log      *logger.Logger
}

func NewFinancialExtractor(c llm.Caller, maxChars int, log *logger.Logger) *FinancialExtractor {
	if log == nil {
		log = logger.Nop()
	}
	return &FinancialExtractor{llm: c, maxChars: maxChars, log: log}
}

// Extract asks the model for all three fields at once; each field the model
// leaves empty is filled by its heuristic independently.
func (f *FinancialExtractor) Extract(ctx context.Context, clauses []string) model.Financials {
	var out model.Financials
	if f.llm != nil {
		attempt := f.tryModel(ctx, clauses)
		if attempt.OK() {
			out = attempt.Value
		} else {
			fallbackTotal.WithLabelValues(stageFinancial).Inc()
			f.log.Warn("AI financial extraction failed, using heuristics", "stage", stageFinancial, "error", attempt.Err.Error())
		}
	}

	if len(out.Fees) == 0 {
		if f.llm != nil {
			fallbackTotal.WithLabelValues(stageFees).Inc()
		}
		out.Fees = ExtractFees(clauses)
	}
	if len(out.RateCard) == 0 {
		if f.llm != nil {
			fallbackTotal.WithLabelValues(stageRateCard).Inc()
		}
		out.RateCard = ExtractRateCard(clauses)
	}
	if len(out.PaymentTerms) == 0 {
		if f.llm != nil {
			fallbackTotal.WithLabelValues(stagePayment).Inc()
		}
		out.PaymentTerms = ExtractPaymentTerms(clauses)
	}
	return out
}

type modelFinancials struct {
	Fees []struct {
		Name        string `json:"name"`
		Amount      any    `json:"amount"`
		Frequency   string `json:"frequency"`
		Description string `json:"description"`
		Category    string `json:"category"`
	} `json:"fees"`
	PaymentTerms []any `json:"paymentTerms"`
	RateCard     []struct {
		Item string `json:"item"`
		Rate any    `json:"rate"`
		Unit string `json:"unit"`
	} `json:"rateCard"`
}

func (f *FinancialExtractor) tryModel(ctx context.Context, clauses []string) llm.Attempt[model.Financials] {
	prompt := "Contract text:\n\n" + llm.Truncate(strings.Join(clauses, "\n\n"), f.maxChars)
	raw := llm.TryJSON[modelFinancials](ctx, f.llm, financialSystemPrompt, prompt, nil)
	if !raw.OK() {
		return llm.Attempt[model.Financials]{Err: raw.Err}
	}

	var out model.Financials
	for _, fee := range raw.Value.Fees {
		name := strings.TrimSpace(fee.Name)
		amount := strings.TrimSpace(cast.ToString(fee.Amount))
		if name == "" || amount == "" {
			continue
		}
		out.Fees = append(out.Fees, model.Fee{
			Name:        name,
			Amount:      amount,
			Frequency:   fee.Frequency,
			Description: fee.Description,
			Category:    fee.Category,
		})
	}
	for _, t := range raw.Value.PaymentTerms {
		if s := strings.TrimSpace(cast.ToString(t)); s != "" {
			out.PaymentTerms = append(out.PaymentTerms, s)
		}
	}
	for _, rc := range raw.Value.RateCard {
		item := strings.TrimSpace(rc.Item)
		rate := strings.TrimSpace(cast.ToString(rc.Rate))
		if item == "" || rate == "" {
			continue
		}
		out.RateCard = append(out.RateCard, model.RateCardItem{Item: item, Rate: rate, Unit: rc.Unit})
	}
	out.Fees, _ = MergeFees(nil, out.Fees)
	out.RateCard, _ = MergeRateCard(nil, out.RateCard)
	out.PaymentTerms, _ = MergePaymentTerms(nil, out.PaymentTerms)
	return llm.Attempt[model.Financials]{Value: out}
}

// ExtractFees finds named fees with a dollar or percentage amount. Fees are
// keyed by name; a later mention replaces an earlier one in place.
func ExtractFees(clauses []string) []model.Fee {
	var order []string
	byName := map[string]model.Fee{}
	for _, clause := range clauses {
		if !containsAny(strings.ToLower(clause), feeHints) {
			continue
		}
		for _, sentence := range sentenceBreak.Split(clause, -1) {
			fee, ok := parseFee(sentence)
			if !ok {
				continue
			}
			if _, seen := byName[fee.Name]; !seen {
				order = append(order, fee.Name)
			}
			byName[fee.Name] = fee
		}
	}
	fees := make([]model.Fee, 0, len(order))
	for _, name := range order {
		fees = append(fees, byName[name])
	}
	return fees
}

func parseFee(sentence string) (model.Fee, bool) {
	lower := strings.ToLower(sentence)
	amount := amountPattern.FindString(sentence)
	if amount == "" {
		return model.Fee{}, false
	}

	name := "Additional Fee"
	if m := feeNamePattern.FindStringSubmatch(lower); m != nil {
		// The capture is greedy across words; keep what follows the last article.
		captured := innerArticle.ReplaceAllString(m[1], "")
		if n := titleCase(captured); n != "" {
			name = n
		}
	}

	fee := model.Fee{
		Name:        name,
		Amount:      strings.ReplaceAll(amount, " ", ""),
		Description: truncateText(strings.TrimSpace(sentence), maxFeeDescription),
		Category:    feeCategory(name),
	}
	if m := frequencyPattern.FindStringSubmatch(lower); m != nil {
		fee.Frequency = frequencyLabel(m[1])
	}
	return fee, true
}

func feeCategory(name string) string {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "late") || strings.Contains(n, "penalty"):
		return "Penalty"
	case strings.Contains(n, "setup") || strings.Contains(n, "set up") || strings.Contains(n, "onboarding") || strings.Contains(n, "implementation"):
		return "One-time"
	case strings.Contains(n, "subscription") || strings.Contains(n, "license") || strings.Contains(n, "maintenance") || strings.Contains(n, "monthly") || strings.Contains(n, "annual"):
		return "Recurring"
	}
	return "Service"
}

func frequencyLabel(unit string) string {
	unit = strings.TrimSuffix(strings.ToLower(unit), "s")
	if l, ok := frequencyLabels[unit]; ok {
		return l
	}
	return "Per " + unit
}

// ExtractRateCard finds item / rate / unit triples around currency amounts.
// Items are de-duplicated by name, first mention wins.
func ExtractRateCard(clauses []string) []model.RateCardItem {
	var items []model.RateCardItem
	seen := map[string]bool{}
	for _, clause := range clauses {
		if !containsAny(strings.ToLower(clause), rateHints) {
			continue
		}
		locs := currencyPattern.FindAllStringIndex(clause, -1)
		prev := 0
		for k, loc := range locs {
			item := itemBefore(clause[prev:loc[0]])
			rate := strings.TrimSpace(clause[loc[0]:loc[1]])
			// The unit never reaches into the next amount.
			next := len(clause)
			if k+1 < len(locs) {
				next = locs[k+1][0]
			}
			unit := ""
			end := loc[1]
			rest := strings.ToLower(clause[loc[1]:next])
			if m := unitPattern.FindStringSubmatchIndex(rest); m != nil {
				unit = rest[m[2]:m[3]]
				end = loc[1] + m[1]
			}
			prev = end
			if seen[item] {
				continue
			}
			seen[item] = true
			items = append(items, model.RateCardItem{Item: item, Rate: rate, Unit: unit})
		}
	}
	return items
}

// itemBefore reads up to three words backwards from the end of segment,
// skipping connector words until the first content word.
func itemBefore(segment string) string {
	if i := strings.LastIndexAny(segment, ",;:.()/"); i >= 0 {
		segment = segment[i+1:]
	}
	words := strings.Fields(segment)
	var picked []string
	for i := len(words) - 1; i >= 0 && len(picked) < 3; i-- {
		w := strings.Trim(words[i], `"'`)
		if connectors[strings.ToLower(w)] {
			if len(picked) > 0 {
				break
			}
			continue
		}
		picked = append([]string{w}, picked...)
	}
	if len(picked) == 0 {
		return "Service"
	}
	return titleCase(strings.Join(picked, " "))
}

// ExtractPaymentTerms returns payment clauses of at most 100 characters as
// written, and normalized Net / due-within / late-fee sentences for longer ones.
func ExtractPaymentTerms(clauses []string) []string {
	var terms []string
	seen := map[string]bool{}
	add := func(t string) {
		if t != "" && !seen[t] {
			seen[t] = true
			terms = append(terms, t)
		}
	}
	for _, clause := range clauses {
		clause = strings.TrimSpace(clause)
		if !containsAny(strings.ToLower(clause), paymentHints) {
			continue
		}
		if len(clause) <= verbatimTermLen {
			add(clause)
			continue
		}
		if m := netDaysPattern.FindStringSubmatch(clause); m != nil {
			add("Payment terms: Net " + m[1] + " days.")
		}
		if m := dueWithinPattern.FindStringSubmatch(clause); m != nil {
			add("Payment due within " + m[1] + " days.")
		}
		if m := lateFeePattern.FindStringSubmatch(clause); m != nil {
			add("Late payment fee of " + strings.ReplaceAll(m[1], " ", "") + " applies.")
		}
	}
	return terms
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(llm.Truncate(s, n-3)) + "..."
}
