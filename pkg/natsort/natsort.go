// Package natsort orders page identifiers the way a person reads them.
//
// Identifiers are split into alternating runs of ASCII digits and other
// characters. Digit runs compare by numeric value, of any length, so
// "p2" sorts before "p10". Other runs compare case-insensitively using
// Unicode case folding. When two digit runs have the same value the one
// with less zero-padding sorts first ("1" < "01"). Identifiers that compare
// equal keep their original order: every sort in this package is stable.
//
// Usage:
//
//	names := []string{"p2.png", "p10.png", "p1.png"}
//	natsort.Strings(names) // p1.png p2.png p10.png
package natsort

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

// token is one run of a tokenized identifier.
type token struct {
	text  string
	digit bool
}

// Key is the precomputed sort key of an identifier. Computing keys once
// before sorting avoids folding and tokenizing on every comparison.
type Key []token

// NewKey tokenizes s into a sort key.
func NewKey(s string) Key {
	// A Caser keeps state and must not be shared between goroutines.
	folded := cases.Fold().String(s)

	var key Key
	for i := 0; i < len(folded); {
		j := i
		digit := isDigit(folded[i])
		for j < len(folded) && isDigit(folded[j]) == digit {
			j++
		}
		key = append(key, token{text: folded[i:j], digit: digit})
		i = j
	}
	return key
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// Compare returns -1, 0 or +1 depending on whether a sorts before, equal
// to or after b.
func (a Key) Compare(b Key) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := compareToken(a[i], b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

func compareToken(a, b token) int {
	switch {
	case a.digit && !b.digit:
		return -1
	case !a.digit && b.digit:
		return 1
	case !a.digit:
		return strings.Compare(a.text, b.text)
	}

	av, bv := strings.TrimLeft(a.text, "0"), strings.TrimLeft(b.text, "0")
	if len(av) != len(bv) {
		if len(av) < len(bv) {
			return -1
		}
		return 1
	}
	if c := strings.Compare(av, bv); c != 0 {
		return c
	}
	// Same value: less padding first.
	switch {
	case len(a.text) < len(b.text):
		return -1
	case len(a.text) > len(b.text):
		return 1
	}
	return 0
}

// Compare compares two identifiers in natural order.
func Compare(a, b string) int {
	return NewKey(a).Compare(NewKey(b))
}

// Less reports whether a sorts strictly before b in natural order.
func Less(a, b string) bool {
	return Compare(a, b) < 0
}

// Strings sorts s in natural order. Equal identifiers keep their order.
func Strings(s []string) {
	Sort(s, func(v string) string { return v })
}

// Sort sorts items in natural order of the identifier returned by id.
// The sort is stable, so items whose identifiers compare equal stay in
// discovery order.
func Sort[T any](items []T, id func(T) string) {
	type keyed struct {
		key  Key
		item T
	}
	tmp := make([]keyed, len(items))
	for i, it := range items {
		tmp[i] = keyed{key: NewKey(id(it)), item: it}
	}
	slices.SortStableFunc(tmp, func(a, b keyed) int {
		return a.key.Compare(b.key)
	})
	for i := range tmp {
		items[i] = tmp[i].item
	}
}
