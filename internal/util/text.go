package util

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	reSpaces      = regexp.MustCompile(`\s+`)
	reInlineSpace = regexp.MustCompile(`[ \t\f\v\x{00A0}]+`)
)

var glyphs = strings.NewReplacer(
	"…", "...",
	"–", "-", "—", "-",
	"“", `"`, "”", `"`, "„", `"`, "«", `"`, "»", `"`,
	"‘", "'", "’", "'",
	"½", " 1/2", "¼", " 1/4", "¾", " 3/4",
	"º", "°", "˚", "°",
	"\u00A0", " ",
)

// NormalizeText replaces typographic glyphs with plain forms and collapses
// all whitespace to single spaces.
func NormalizeText(input string) string {
	s := glyphs.Replace(input)
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// CollapseSpaces collapses runs of spaces inside each line, keeping line breaks.
func CollapseSpaces(input string) string {
	lines := strings.Split(strings.ReplaceAll(input, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(reInlineSpace.ReplaceAllString(l, " "))
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

// FoldKey lower-cases s, strips accents and replaces punctuation with spaces.
func FoldKey(input string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(t, strings.ToLower(input))
	if err != nil {
		s = strings.ToLower(input)
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)
	return strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
}

// ContainsAny reports whether text contains any keyword as a substring.
func ContainsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// MatchAll returns the keywords contained in text, in keyword order, without duplicates.
func MatchAll(text string, keywords []string) []string {
	return MatchAllFunc(text, keywords, strings.Contains)
}

// MatchAllFunc is MatchAll with a custom matcher.
func MatchAllFunc(text string, keywords []string, match func(text, kw string) bool) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, kw := range keywords {
		if kw == "" || !match(text, kw) {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}

// HasWordPrefix reports whether some word of text starts with kw.
func HasWordPrefix(text, kw string) bool {
	if kw == "" {
		return false
	}
	for start := 0; start < len(text); {
		i := strings.Index(text[start:], kw)
		if i < 0 {
			return false
		}
		i += start
		if !letterBefore(text, i) {
			return true
		}
		start = i + 1
	}
	return false
}

// ContainsWordOrPlural matches kw as a whole word, also in its -s/-es plural.
func ContainsWordOrPlural(text, kw string) bool {
	return ContainsWord(text, kw) || ContainsWord(text, kw+"s") || ContainsWord(text, kw+"es")
}

// ContainsWord reports whether kw occurs in text delimited by non-letters.
func ContainsWord(text, kw string) bool {
	return IndexWord(text, kw) >= 0
}

// IndexWord returns the byte offset of the first occurrence of kw in text
// that is not adjacent to other letters, or -1.
func IndexWord(text, kw string) int {
	if kw == "" {
		return -1
	}
	for start := 0; start < len(text); {
		i := strings.Index(text[start:], kw)
		if i < 0 {
			return -1
		}
		i += start
		if !letterBefore(text, i) && !letterAfter(text, i+len(kw)) {
			return i
		}
		start = i + 1
	}
	return -1
}

func letterBefore(s string, i int) bool {
	if i == 0 {
		return false
	}
	r := []rune(s[:i])
	return unicode.IsLetter(r[len(r)-1])
}

func letterAfter(s string, i int) bool {
	if i >= len(s) {
		return false
	}
	for _, r := range s[i:] {
		return unicode.IsLetter(r)
	}
	return false
}

// Capitalize upper-cases the first letter of s.
func Capitalize(input string) string {
	for i, r := range input {
		return string(unicode.ToUpper(r)) + input[i+len(string(r)):]
	}
	return input
}

func Tokenize(input string) []string {
	parts := strings.Fields(FoldKey(input))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if len([]rune(p)) >= 2 {
			out = append(out, p)
		}
	}
	return out
}

func DiceCoefficient(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	pairs := func(s string) []string {
		r := []rune(s)
		if len(r) < 2 {
			return nil
		}
		out := make([]string, 0, len(r)-1)
		for i := 0; i < len(r)-1; i++ {
			out = append(out, string(r[i:i+2]))
		}
		return out
	}

	aPairs := pairs(a)
	bPairs := pairs(b)
	if len(aPairs) == 0 || len(bPairs) == 0 {
		return 0
	}

	bCount := map[string]int{}
	for _, p := range bPairs {
		bCount[p]++
	}
	inter := 0
	for _, p := range aPairs {
		if bCount[p] > 0 {
			inter++
			bCount[p]--
		}
	}

	return float64(2*inter) / float64(len(aPairs)+len(bPairs))
}
