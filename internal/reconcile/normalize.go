package reconcile

import (
	"strings"

	"golang.org/x/text/cases"
)

// Normalize standardizes an entity name for matching: trims, collapses
// internal whitespace and applies Unicode case folding.
func Normalize(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return ""
	}
	return cases.Fold().String(name)
}
