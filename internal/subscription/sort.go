package subscription

import (
	"slices"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortByName returns a copy of items ordered by name, ignoring case and
// diacritics. Records with equal names keep their relative order. The input
// slice is not modified.
func SortByName(items []Subscription) []Subscription {
	out := slices.Clone(items)
	c := collate.New(language.Und, collate.IgnoreCase, collate.IgnoreDiacritics)
	slices.SortStableFunc(out, func(a, b Subscription) int {
		return c.CompareString(a.Name, b.Name)
	})
	return out
}
