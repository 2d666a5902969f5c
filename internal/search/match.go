// =============================================================================
// Billing Inquiry - Match Engine
// =============================================================================
//
// Record lookup by account name or number. Matching tolerates punctuation,
// spacing and word order:
//
//   | Query             | Stored name        | Match |
//   |-------------------|--------------------|-------|
//   | "juan dela cruz"  | "Dela Cruz, Juan"  | yes   |
//   | "delacruz"        | "Dela Cruz, Juan"  | yes   |
//   | "100001"          | "100-001-234"      | yes   |
//   | "xyz"             | "Dela Cruz, Juan"  | no    |
//
// The engine is a pure scan over the collection it is given: no state, no
// I/O, safe to call on every keystroke.
//
// =============================================================================

package search

import (
	"strings"
	"unicode/utf8"

	"github.com/ginjaninja78/billing-inquiry/internal/types"
)

// Normalize lower-cases s and removes every rune that is not an ASCII letter
// or digit: "Dela Cruz, Juan" becomes "delacruzjuan".
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// query is a prepared search string.
type query struct {
	full  string
	terms []string
	norms []string
}

func prepare(q string) (query, bool) {
	lowered := strings.ToLower(strings.TrimSpace(q))
	if lowered == "" {
		return query{}, false
	}

	terms := strings.Fields(lowered)
	norms := make([]string, len(terms))
	for i, t := range terms {
		norms[i] = Normalize(t)
	}

	return query{full: Normalize(lowered), terms: terms, norms: norms}, true
}

// matches applies the two match rules to one record.
func (q query) matches(r types.BillingRecord) bool {
	name := strings.ToLower(r.AccountName)
	number := strings.ToLower(r.AccountNumber)
	normName := Normalize(name)
	normNumber := Normalize(number)

	// Whole query, punctuation-insensitive, word order preserved.
	if strings.Contains(normName, q.full) || strings.Contains(normNumber, q.full) {
		return true
	}

	// Every term somewhere, in any order.
	for i, term := range q.terms {
		if strings.Contains(name, term) || strings.Contains(number, term) {
			continue
		}
		if strings.Contains(normName, q.norms[i]) || strings.Contains(normNumber, q.norms[i]) {
			continue
		}
		return false
	}
	return true
}

// Match returns every record whose account name or number matches the query,
// in collection order. A blank query matches nothing.
func Match(records []types.BillingRecord, q string) []types.BillingRecord {
	prepared, ok := prepare(q)
	if !ok {
		return []types.BillingRecord{}
	}

	out := make([]types.BillingRecord, 0)
	for _, r := range records {
		if prepared.matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// Suggest returns at most limit matches for type-ahead. Queries shorter than
// minChars characters as typed, surrounding spaces included, return nothing.
// A limit of 0 or less means no limit.
func Suggest(records []types.BillingRecord, q string, limit, minChars int) []types.BillingRecord {
	if utf8.RuneCountInString(q) < minChars {
		return []types.BillingRecord{}
	}

	prepared, ok := prepare(q)
	if !ok {
		return []types.BillingRecord{}
	}

	out := make([]types.BillingRecord, 0, max(limit, 0))
	for _, r := range records {
		if limit > 0 && len(out) == limit {
			break
		}
		if prepared.matches(r) {
			out = append(out, r)
		}
	}
	return out
}
