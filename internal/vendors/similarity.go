package vendors

import (
	"strings"
	"unicode"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// containmentScore is the floor awarded when one normalized name contains the
// other ("ACME" inside "ACME CORP #4521"). Bank descriptions routinely embed
// the vendor name in longer strings, where raw edit distance underestimates.
const containmentScore = 0.85

// Normalize folds a payee string down to its comparable form: lower case,
// punctuation stripped, whitespace collapsed.
func Normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		default:
			// punctuation becomes a separator so "ACME,CORP" splits cleanly
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Similarity scores two free-text names in [0,1] on their normalized forms.
// The same function drives vendor resolution and match scoring so the two
// agree on what "similar" means.
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	distance := levenshtein.DistanceForStrings([]rune(na), []rune(nb), levenshtein.DefaultOptions)
	maxLen := len([]rune(na))
	if l := len([]rune(nb)); l > maxLen {
		maxLen = l
	}
	score := 1 - float64(distance)/float64(maxLen)

	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		if score < containmentScore {
			score = containmentScore
		}
	}
	return score
}
