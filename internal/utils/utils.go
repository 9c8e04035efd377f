package utils

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// NewConnectionID returns a fresh id for a live connection.
func NewConnectionID() string {
	return uuid.NewString()
}

// GrapeKey folds a grape name to the form used for comparison: lower case,
// accents stripped, dashes and repeated spaces collapsed.
// "Grüner-Veltliner " and "gruner veltliner" share a key.
func GrapeKey(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	folded = strings.ToLower(folded)
	folded = strings.NewReplacer("-", " ", "_", " ", "’", "'").Replace(folded)
	return strings.Join(strings.Fields(folded), " ")
}
