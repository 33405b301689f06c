package outline

import (
	"strings"
	"unicode"
)

// stemLength truncates tokens so "intro" and "introduction" compare equal.
const stemLength = 5

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "the": {}, "of": {}, "to": {}, "in": {}, "on": {},
	"for": {}, "with": {}, "by": {}, "at": {}, "from": {}, "into": {}, "or": {},
	"is": {}, "are": {}, "as": {}, "its": {}, "this": {}, "that": {},
}

// TitleSimilarity scores two section titles in [0, 1] by token-set overlap:
// shared stems divided by the size of the smaller token set.
func TitleSimilarity(a, b string) float64 {
	ta, tb := titleTokens(a), titleTokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		na, nb := normalizeTitle(a), normalizeTitle(b)
		if na != "" && na == nb {
			return 1
		}
		return 0
	}
	shared := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			shared++
		}
	}
	smaller := len(ta)
	if len(tb) < smaller {
		smaller = len(tb)
	}
	return float64(shared) / float64(smaller)
}

func titleTokens(title string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, f := range splitWords(title) {
		if _, stop := stopwords[f]; stop {
			continue
		}
		r := []rune(f)
		if len(r) > stemLength {
			r = r[:stemLength]
		}
		set[string(r)] = struct{}{}
	}
	return set
}

func normalizeTitle(title string) string {
	return strings.Join(splitWords(title), " ")
}

func splitWords(title string) []string {
	return strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
