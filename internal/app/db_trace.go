package app

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

const maxTracedQueryBytes = 512

// formatDBQueryForTrace folds a statement onto one line for span names. Long
// batch upserts are cut on a rune boundary and tagged with their full length.
func formatDBQueryForTrace(query string) string {
	folded := strings.Join(strings.Fields(query), " ")
	if len(folded) <= maxTracedQueryBytes {
		return folded
	}

	cut := maxTracedQueryBytes
	for cut > 0 && !utf8.RuneStart(folded[cut]) {
		cut--
	}
	return folded[:cut] + "... (" + strconv.Itoa(len(folded)) + " bytes)"
}
