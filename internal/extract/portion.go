package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"nutridoc/internal"
	"nutridoc/internal/lexicon"
	"nutridoc/internal/util"
)

const (
	portionBaseConfidence = 0.5
	portionAmountBonus    = 0.2
	portionUnitBonus      = 0.3
	portionBothBonus      = 0.1
	descriptiveConfidence = 0.6
	maxPortionGrams       = 1000
	minPortionGrams       = 1
	servingUnit           = "porcion"
)

type portionFamily struct {
	kind     internal.PortionType
	patterns []*regexp.Regexp
}

type descriptivePortion struct {
	re      *regexp.Regexp
	grams   float64
	amount  float64
	nounArg bool
}

var descriptivePortions = []descriptivePortion{
	{re: regexp.MustCompile(`(?i)\buna?\s+pizca(?:\s+de)?\b`), grams: 0.5},
	{re: regexp.MustCompile(`(?i)\bun\s+poco(?:\s+de)?\b`), grams: 5},
	{re: regexp.MustCompile(`(?i)\b(?:un\s+)?puñado(?:\s+de)?`), grams: 30},
	{re: regexp.MustCompile(`(?i)\bal?\s+gusto\b`), grams: 2},
	{re: regexp.MustCompile(`(?i)\bcantidad\s+(?:necesaria|suficiente)\b|\bc\.\s?n\.|\bq\.\s?s\.`), grams: 10},
	{re: regexp.MustCompile(`(?i)\bmedi[ao]\s+(\pL+)`), amount: 0.5, nounArg: true},
}

var servingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d+)\s*porci[oó]n`),
	regexp.MustCompile(`(?i)(\d+)\s*servings?\b`),
	regexp.MustCompile(`(?i)(\d+)\s*personas?\b`),
	regexp.MustCompile(`(?i)(\d+)\s*people\b`),
	regexp.MustCompile(`(?i)\brinde\s+(\d+)`),
	regexp.MustCompile(`(?i)\bpara\s+(\d+)`),
	regexp.MustCompile(`(?i)\bserves\s+(\d+)`),
}

type PortionExtractor struct {
	lex      *lexicon.Lexicon
	families []portionFamily
}

func NewPortionExtractor(lex *lexicon.Lexicon) *PortionExtractor {
	e := &PortionExtractor{lex: lex}
	for _, cat := range []internal.PortionType{internal.PortionWeight, internal.PortionVolume, internal.PortionUnit} {
		var aliases []string
		for _, u := range lex.UnitsIn(string(cat)) {
			aliases = append(aliases, u.Aliases...)
		}
		if len(aliases) == 0 {
			continue
		}
		sort.SliceStable(aliases, func(i, j int) bool { return len(aliases[i]) > len(aliases[j]) })
		for i, a := range aliases {
			aliases[i] = regexp.QuoteMeta(a)
		}
		re := regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(` + strings.Join(aliases, "|") + `)\b`)
		e.families = append(e.families, portionFamily{kind: cat, patterns: []*regexp.Regexp{re}})
	}
	e.families = append(e.families, portionFamily{
		kind: internal.PortionServing,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(\d+)\s*(porci[oó]n(?:es)?|servings?|raci[oó]n(?:es)?|portions?|personas?|people)\b`),
			regexp.MustCompile(`(?i)\b(?:rinde|serves)\s+(\d+)`),
			regexp.MustCompile(`(?i)\bpara\s+(\d+)\s*personas?\b`),
		},
	})
	return e
}

// FromText collects every portion mention. Each family scans the whole text
// independently; overlapping matches within a family are dropped.
func (e *PortionExtractor) FromText(text string) []internal.Portion {
	text = util.NormalizeText(text)
	if text == "" {
		return nil
	}
	var out []internal.Portion
	for _, fam := range e.families {
		var spans [][]int
		for _, re := range fam.patterns {
			for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
				if overlaps(spans, loc) {
					continue
				}
				spans = append(spans, loc[:2])
				out = append(out, e.numericPortion(fam.kind, text, loc))
			}
		}
	}

	var spans [][]int
	for _, d := range descriptivePortions {
		for _, loc := range d.re.FindAllStringSubmatchIndex(text, -1) {
			if overlaps(spans, loc) {
				continue
			}
			spans = append(spans, loc[:2])
			out = append(out, e.descriptive(d, text, loc))
		}
	}
	return out
}

func overlaps(spans [][]int, loc []int) bool {
	for _, s := range spans {
		if loc[0] < s[1] && s[0] < loc[1] {
			return true
		}
	}
	return false
}

func (e *PortionExtractor) numericPortion(kind internal.PortionType, text string, loc []int) internal.Portion {
	match := text[loc[0]:loc[1]]
	p := internal.Portion{
		PortionType:  kind,
		Description:  match,
		OriginalText: text,
	}
	if v, ok := util.ParseNumber(text[loc[2]:loc[3]]); ok {
		p.Amount = util.FloatPtr(v)
	}

	known := false
	if kind == internal.PortionServing {
		p.Unit = util.StringPtr(servingUnit)
		known = true
	} else if len(loc) > 5 && loc[4] >= 0 {
		if u, ok := e.lex.LookupUnit(text[loc[4]:loc[5]]); ok {
			p.Unit = util.StringPtr(u.Canonical)
			known = true
			if p.Amount != nil {
				if g, ok := e.lex.ToGrams(*p.Amount, u.Canonical, ""); ok {
					p.GramsEquivalent = util.FloatPtr(round2(g))
				}
			}
		}
	}

	c := portionBaseConfidence
	if p.Amount != nil {
		c += portionAmountBonus
	}
	if known {
		c += portionUnitBonus
	}
	if p.Amount != nil && known {
		c += portionBothBonus
	}
	p.Confidence = clamp01(c)
	return p
}

func (e *PortionExtractor) descriptive(d descriptivePortion, text string, loc []int) internal.Portion {
	p := internal.Portion{
		PortionType:  internal.PortionDescriptive,
		Description:  strings.TrimSpace(text[loc[0]:loc[1]]),
		OriginalText: text,
		Confidence:   descriptiveConfidence,
	}
	if !d.nounArg {
		p.GramsEquivalent = util.FloatPtr(d.grams)
		return p
	}
	p.Amount = util.FloatPtr(d.amount)
	noun := text[loc[2]:loc[3]]
	if u, ok := e.lex.LookupUnit(noun); ok {
		p.Unit = util.StringPtr(u.Canonical)
		if g, ok := e.lex.ToGrams(d.amount, u.Canonical, ""); ok {
			p.GramsEquivalent = util.FloatPtr(round2(g))
		}
	} else {
		p.Unit = util.StringPtr(strings.ToLower(noun))
		p.GramsEquivalent = util.FloatPtr(round2(d.amount * e.lex.ItemGrams(noun)))
	}
	return p
}

// Servings reads the number of servings a text states.
func (e *PortionExtractor) Servings(text string) *int {
	for _, re := range servingPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				return util.IntPtr(n)
			}
		}
	}
	return nil
}

// Normalize canonicalizes the unit and fills the gram equivalent when a
// conversion exists.
func (e *PortionExtractor) Normalize(p internal.Portion) internal.Portion {
	if p.Unit == nil {
		return p
	}
	u, ok := e.lex.LookupUnit(*p.Unit)
	if !ok {
		return p
	}
	p.Unit = util.StringPtr(u.Canonical)
	if p.GramsEquivalent == nil && p.Amount != nil {
		if g, ok := e.lex.ToGrams(*p.Amount, u.Canonical, ""); ok {
			p.GramsEquivalent = util.FloatPtr(round2(g))
		}
	}
	return p
}

// ToServings divides amounts, grams and calories by servings.
func (e *PortionExtractor) ToServings(portions []internal.Portion, servings int) []internal.Portion {
	out := make([]internal.Portion, 0, len(portions))
	for _, p := range portions {
		if servings > 0 {
			p.Amount = divide(p.Amount, servings)
			p.GramsEquivalent = divide(p.GramsEquivalent, servings)
			p.CaloriesPerPortion = divide(p.CaloriesPerPortion, servings)
		}
		out = append(out, p)
	}
	return out
}

func divide(v *float64, n int) *float64 {
	if v == nil {
		return nil
	}
	return util.FloatPtr(round2(*v / float64(n)))
}

func (e *PortionExtractor) Validate(portions []internal.Portion) CheckResult {
	res := CheckResult{IsValid: true}
	if len(portions) == 0 {
		res.warn("No portions found")
		return res
	}
	noGrams, heavy, light := 0, 0, 0
	for _, p := range portions {
		switch {
		case p.GramsEquivalent == nil:
			noGrams++
		case *p.GramsEquivalent > maxPortionGrams:
			heavy++
		case *p.GramsEquivalent < minPortionGrams:
			light++
		}
	}
	if noGrams > 0 {
		res.warn(fmt.Sprintf("%d portions without gram equivalent", noGrams))
	}
	if heavy > 0 {
		res.warn(fmt.Sprintf("%d portions over %d g", heavy, maxPortionGrams))
	}
	if light > 0 {
		res.warn(fmt.Sprintf("%d portions under %d g", light, minPortionGrams))
	}
	return res
}
