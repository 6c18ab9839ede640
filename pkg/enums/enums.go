// Package enums holds the closed string sets stored in the dispatch tables.
// Values outside a set are rejected at the API and database boundaries.
package enums

import (
	"fmt"
	"slices"
	"strings"
)

func member[T ~string](set []T, v T) bool {
	return slices.Contains(set, v)
}

func parse[T ~string](set []T, kind, raw string) (T, error) {
	v := T(strings.TrimSpace(raw))
	if member(set, v) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, raw)
}
