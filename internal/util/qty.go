package util

import (
	"regexp"
	"strconv"
	"strings"

	"nutridoc/internal/lexicon"
)

type quantityPattern struct {
	re    *regexp.Regexp
	value func(m []string) *float64
}

var glyphValues = map[string]float64{"½": 0.5, "¼": 0.25, "¾": 0.75}

func fixed(v float64) func([]string) *float64 {
	return func([]string) *float64 { return FloatPtr(v) }
}

// Tried in order; the first pattern that matches wins. Number words only
// count at the start of the line.
var quantityPatterns = []quantityPattern{
	{re: regexp.MustCompile(`(\d+)\s*([½¼¾])`), value: func(m []string) *float64 {
		whole, _ := ParseNumber(m[1])
		return FloatPtr(whole + glyphValues[m[2]])
	}},
	{re: regexp.MustCompile(`(\d+)\s+(\d+)\s*/\s*(\d+)`), value: func(m []string) *float64 {
		whole, _ := ParseNumber(m[1])
		return fraction(m[2], m[3], whole)
	}},
	{re: regexp.MustCompile(`(\d+)\s*/\s*(\d+)`), value: func(m []string) *float64 {
		return fraction(m[1], m[2], 0)
	}},
	{re: regexp.MustCompile(`(\d+(?:[.,]\d+)?)(?:\s*-\s*|\s+[ao]\s+)(\d+(?:[.,]\d+)?)`), value: func(m []string) *float64 {
		lo, ok1 := ParseNumber(m[1])
		hi, ok2 := ParseNumber(m[2])
		if !ok1 || !ok2 {
			return nil
		}
		return FloatPtr((lo + hi) / 2)
	}},
	{re: regexp.MustCompile(`\d+(?:[.,]\d+)*`), value: func(m []string) *float64 {
		v, ok := ParseNumber(m[0])
		if !ok {
			return nil
		}
		return FloatPtr(v)
	}},
	{re: regexp.MustCompile(`[½¼¾]`), value: func(m []string) *float64 {
		return FloatPtr(glyphValues[m[0]])
	}},
	{re: regexp.MustCompile(`(?i)\bun\s+poco\s+de\b`), value: fixed(0.1)},
	{re: regexp.MustCompile(`(?i)\buna\s+pizca\s+de\b`), value: fixed(0.05)},
	{re: regexp.MustCompile(`(?i)\bal\s+gusto\b`), value: func([]string) *float64 { return nil }},
	{re: regexp.MustCompile(`(?i)\ba\s+gusto\b`), value: func([]string) *float64 { return nil }},
	{re: regexp.MustCompile(`(?i)^\s*una?\s+`), value: fixed(1)},
	{re: regexp.MustCompile(`(?i)^\s*dos\s+`), value: fixed(2)},
	{re: regexp.MustCompile(`(?i)^\s*tres\s+`), value: fixed(3)},
	{re: regexp.MustCompile(`(?i)^\s*cuatro\s+`), value: fixed(4)},
	{re: regexp.MustCompile(`(?i)^\s*cinco\s+`), value: fixed(5)},
	{re: regexp.MustCompile(`(?i)^\s*media\s+`), value: fixed(0.5)},
	{re: regexp.MustCompile(`(?i)^\s*medio\s+`), value: fixed(0.5)},
}

var (
	reLeadingDe     = regexp.MustCompile(`(?i)^de\s+`)
	reThousandsDot  = regexp.MustCompile(`^[1-9]\d{0,2}(?:\.\d{3})+$`)
	reThousandsBoth = regexp.MustCompile(`^[1-9]\d{0,2}(?:\.\d{3})+,\d+$`)
)

func fraction(num, den string, whole float64) *float64 {
	n, ok1 := ParseNumber(num)
	d, ok2 := ParseNumber(den)
	if !ok1 || !ok2 || d == 0 {
		return nil
	}
	return FloatPtr(whole + n/d)
}

// matchQuantity finds the first quantity expression in text. found is true
// even when the expression carries no numeric value ("al gusto").
func matchQuantity(text string) (value *float64, start, end int, found bool) {
	for _, p := range quantityPatterns {
		loc := p.re.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		m := make([]string, len(loc)/2)
		for i := range m {
			if loc[2*i] >= 0 {
				m[i] = text[loc[2*i]:loc[2*i+1]]
			}
		}
		return p.value(m), loc[0], loc[1], true
	}
	return nil, 0, 0, false
}

// ParseQuantity returns the first quantity found in text.
func ParseQuantity(text string) *float64 {
	v, _, _, _ := matchQuantity(text)
	return v
}

// ExtractQuantityAndUnit splits an ingredient line into quantity, canonical
// unit and the remaining text. The unit must directly follow the quantity,
// or open the line when there is no quantity.
func ExtractQuantityAndUnit(lex *lexicon.Lexicon, text string) (*float64, *string, string) {
	qty, start, end, found := matchQuantity(text)
	before, after := "", text
	if found {
		before, after = text[:start], text[end:]
	}

	var unit *string
	after = strings.TrimLeft(after, " \t")
	if u, matched, ok := lex.MatchUnit(after); ok {
		unit = StringPtr(u.Canonical)
		after = strings.TrimLeft(after[len(matched):], " .\t")
	}
	if found || unit != nil {
		after = reLeadingDe.ReplaceAllString(after, "")
	}

	rest := strings.TrimSpace(reSpaces.ReplaceAllString(before+" "+after, " "))
	rest = strings.Trim(rest, " ,;:-")
	return qty, unit, rest
}

// ParseNumber parses a number written with a decimal comma or dot, accepting
// dot-separated thousands ("1.000").
func ParseNumber(token string) (float64, bool) {
	v, err := strconv.ParseFloat(normalizeNumericToken(token), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func normalizeNumericToken(token string) string {
	compact := strings.ReplaceAll(strings.TrimSpace(token), " ", "")
	if reThousandsDot.MatchString(compact) {
		return strings.ReplaceAll(compact, ".", "")
	}
	if reThousandsBoth.MatchString(compact) {
		return strings.ReplaceAll(strings.ReplaceAll(compact, ".", ""), ",", ".")
	}
	if strings.Contains(compact, ",") && !strings.Contains(compact, ".") {
		return strings.ReplaceAll(compact, ",", ".")
	}
	return compact
}
