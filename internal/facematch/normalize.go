package facematch

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeName folds a name for case-insensitive lookup (e.g., "ALICE" and "alice" are equal).
// Composed and decomposed accents compare equal; accents themselves are kept, "José" is not "Jose".
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	name = norm.NFC.String(name)
	// A Caser is stateful, so each call gets its own.
	return cases.Fold().String(name)
}

// SameName reports whether two names refer to the same identity.
func SameName(a, b string) bool {
	return NormalizeName(a) == NormalizeName(b)
}
