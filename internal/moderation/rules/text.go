package rules

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldTransformer lowercases and strips combining marks so that decorated
// spellings still hit the term lists.
var foldTransformer = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.In(unicode.Mn)),
	runes.Map(unicode.ToLower),
	norm.NFKC,
)

// Fold normalizes text for matching: lowercased, compatibility-normalized,
// combining marks removed. Returns the lowercased input when the
// transformation fails.
func Fold(s string) string {
	result, _, err := transform.String(foldTransformer, s)
	if err != nil || result == "" {
		return strings.ToLower(s)
	}

	return result
}

// ScriptByName resolves a configured script name to its range table.
// Unknown names fall back to Cyrillic.
func ScriptByName(name string) *unicode.RangeTable {
	switch strings.ToLower(name) {
	case "latin":
		return unicode.Latin
	case "greek":
		return unicode.Greek
	case "arabic":
		return unicode.Arabic
	default:
		return unicode.Cyrillic
	}
}

// Tokenize splits folded text into letter/digit runs.
func Tokenize(folded string) []string {
	return strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// containsAny reports whether any keyword occurs in the folded text.
func containsAny(folded string, keywords []string) bool {
	for _, keyword := range keywords {
		if keyword != "" && strings.Contains(folded, keyword) {
			return true
		}
	}

	return false
}

// letterRatio returns the share of letters in text that belong to the
// given script, with the total letter count. Non-letters are ignored.
func letterRatio(text string, script *unicode.RangeTable) (float64, int) {
	var letters, matched int

	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}

		letters++

		if unicode.Is(script, r) {
			matched++
		}
	}

	if letters == 0 {
		return 0, 0
	}

	return float64(matched) / float64(letters), letters
}

// hasForeignLetters reports whether text contains letters outside the script.
func hasForeignLetters(text string, script *unicode.RangeTable) bool {
	for _, r := range text {
		if unicode.IsLetter(r) && !unicode.Is(script, r) {
			return true
		}
	}

	return false
}
