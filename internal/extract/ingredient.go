package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"nutridoc/internal"
	"nutridoc/internal/document"
	"nutridoc/internal/lexicon"
	"nutridoc/internal/util"
)

const (
	ingredientBaseConfidence  = 0.5
	ingredientQuantityBonus   = 0.2
	ingredientUnitBonus       = 0.2
	ingredientNameBonus       = 0.1
	ingredientDetailBonus     = 0.1
	tableRowConfidence        = 0.8
	lowConfidenceThreshold    = 0.3
	minIngredientFragmentSize = 3
)

var (
	reIngredientsHeader = regexp.MustCompile(`(?i)^\s*ingredientes?\s*:?\s*`)
	reBullet            = regexp.MustCompile(`^[-•*·▪◦–]+\s*`)
	reNumbering         = regexp.MustCompile(`^\d+[.)]\s+`)
	reListMarker        = regexp.MustCompile(`(?:^|\s)\d+[.)]\s`)
	reParens            = regexp.MustCompile(`\(([^)]*)\)`)
)

var nutritionalCategories = map[internal.IngredientType]string{
	internal.IngredientProtein:      "proteina",
	internal.IngredientCarbohydrate: "carbohidrato",
	internal.IngredientVegetable:    "verdura",
	internal.IngredientFruit:        "fruta",
	internal.IngredientDairy:        "lacteo",
	internal.IngredientFat:          "grasa",
	internal.IngredientGrain:        "cereal",
	internal.IngredientLegume:       "legumbre",
}

type IngredientExtractor struct {
	lex *lexicon.Lexicon
}

func NewIngredientExtractor(lex *lexicon.Lexicon) *IngredientExtractor {
	return &IngredientExtractor{lex: lex}
}

// FromText parses a free-text ingredient list.
func (e *IngredientExtractor) FromText(text string) []internal.Ingredient {
	var out []internal.Ingredient
	for _, line := range SplitIngredientLines(text) {
		if ing, ok := e.parseLine(line); ok {
			out = append(out, ing)
		}
	}
	return out
}

// SplitIngredientLines breaks an ingredient list on line breaks, commas
// outside parentheses and numbers, and before "N." list markers.
func SplitIngredientLines(text string) []string {
	text = reIngredientsHeader.ReplaceAllString(util.CollapseSpaces(text), "")
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = reBullet.ReplaceAllString(util.NormalizeText(line), "")
		for _, seg := range splitListMarkers(line) {
			for _, part := range splitCommas(seg) {
				part = strings.TrimSpace(reNumbering.ReplaceAllString(strings.TrimSpace(part), ""))
				part = strings.TrimSpace(reBullet.ReplaceAllString(part, ""))
				if len([]rune(part)) < minIngredientFragmentSize {
					continue
				}
				out = append(out, part)
			}
		}
	}
	return out
}

func splitListMarkers(line string) []string {
	locs := reListMarker.FindAllStringIndex(line, -1)
	if len(locs) < 2 {
		return []string{line}
	}
	var out []string
	prev := 0
	for _, loc := range locs {
		start := loc[0]
		if line[start] == ' ' {
			start++
		}
		if start > prev {
			out = append(out, line[prev:start])
		}
		prev = start
	}
	return append(out, line[prev:])
}

func splitCommas(s string) []string {
	var out []string
	depth, last := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ',', ';':
			if depth > 0 {
				continue
			}
			if s[i] == ',' && i > 0 && i+1 < len(s) && isDigit(s[i-1]) && isDigit(s[i+1]) {
				continue
			}
			out = append(out, s[last:i])
			last = i + 1
		}
	}
	return append(out, s[last:])
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func (e *IngredientExtractor) parseLine(line string) (internal.Ingredient, bool) {
	lower := strings.ToLower(line)
	qty, unit, rest := util.ExtractQuantityAndUnit(e.lex, line)

	var notes []string
	for _, m := range reParens.FindAllStringSubmatch(rest, -1) {
		if n := strings.TrimSpace(m[1]); n != "" {
			notes = append(notes, n)
		}
	}
	name := reParens.ReplaceAllString(rest, " ")

	var alternatives []string
	if idx, kw := e.firstAlternative(strings.ToLower(name)); idx >= 0 {
		alt := name[idx+len(kw):]
		if cut := strings.IndexAny(alt, ",;"); cut >= 0 {
			alt = alt[:cut]
		}
		if alt = strings.TrimSpace(alt); alt != "" {
			alternatives = append(alternatives, alt)
		}
		name = name[:idx]
	}

	var prep *string
	for _, method := range e.lex.PreparationMethods {
		idx := util.IndexWord(strings.ToLower(name), method)
		if idx < 0 {
			continue
		}
		prep = util.StringPtr(method)
		name = name[:idx] + name[idx+len(method):]
		break
	}

	for _, q := range e.lex.NoteQualifiers {
		if util.ContainsWord(lower, q) && !containsString(notes, q) {
			notes = append(notes, q)
		}
	}

	name = cleanName(name)
	if name == "" {
		return internal.Ingredient{}, false
	}

	ing := internal.Ingredient{
		Name:              name,
		Quantity:          qty,
		Unit:              unit,
		IngredientType:    e.ingredientType(name),
		PreparationMethod: prep,
		Notes:             notes,
		Alternatives:      alternatives,
		IsOptional:        util.ContainsAny(lower, e.lex.OptionalIndicators),
		OriginalText:      line,
	}
	if cat, ok := nutritionalCategories[ing.IngredientType]; ok {
		ing.NutritionalCategory = util.StringPtr(cat)
	}

	c := ingredientBaseConfidence
	if qty != nil {
		c += ingredientQuantityBonus
	}
	if unit != nil {
		c += ingredientUnitBonus
	}
	if len([]rune(name)) > 3 {
		c += ingredientNameBonus
	}
	if strings.ContainsAny(line, ",(") {
		c += ingredientDetailBonus
	}
	ing.Confidence = clamp01(c)
	return ing, true
}

func (e *IngredientExtractor) firstAlternative(lower string) (int, string) {
	best, kw := -1, ""
	for _, ind := range e.lex.AlternativeIndicators {
		idx := util.IndexWord(lower, ind)
		if idx < 0 {
			continue
		}
		if best < 0 || idx < best || (idx == best && len(ind) > len(kw)) {
			best, kw = idx, ind
		}
	}
	return best, kw
}

func (e *IngredientExtractor) ingredientType(name string) internal.IngredientType {
	if t, ok := e.lex.IngredientTypes.First(strings.ToLower(name)); ok {
		return internal.IngredientType(t)
	}
	return internal.IngredientOther
}

func cleanName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	name = strings.Trim(name, " ,;:.-")
	for {
		lower := strings.ToLower(name)
		switch {
		case strings.HasPrefix(lower, "de "):
			name = strings.TrimSpace(name[3:])
		case strings.HasSuffix(lower, " de"), strings.HasSuffix(lower, " y"):
			name = strings.TrimSpace(name[:strings.LastIndex(name, " ")])
		default:
			return name
		}
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

var ingredientColumns = map[string][]string{
	"name":        {"ingrediente", "ingredient", "nombre"},
	"quantity":    {"cantidad", "quantity", "porcion"},
	"unit":        {"unidad", "unit", "medida"},
	"preparation": {"preparacion", "preparation", "metodo"},
	"notes":       {"notas", "notes", "observaciones"},
}

// FromTable reads one ingredient per row. Units are kept as written.
func (e *IngredientExtractor) FromTable(t document.Table) []internal.Ingredient {
	cols := MapColumns(t.Headers, ingredientColumns, []string{"name", "quantity", "unit", "preparation", "notes"})
	nameCol, ok := cols["name"]
	if !ok {
		return nil
	}

	var out []internal.Ingredient
	for _, row := range t.Rows {
		if len(row) < len(t.Headers) {
			continue
		}
		name := strings.TrimSpace(row[nameCol])
		if name == "" {
			continue
		}
		ing := internal.Ingredient{
			Name:           name,
			IngredientType: e.ingredientType(name),
			Confidence:     tableRowConfidence,
			OriginalText:   strings.Join(row, " | "),
		}
		if c, ok := cols["quantity"]; ok {
			cell := strings.TrimSpace(row[c])
			ing.Quantity = util.ParseQuantity(cell)
			if _, ok := cols["unit"]; !ok {
				if _, unit, _ := util.ExtractQuantityAndUnit(e.lex, cell); unit != nil {
					ing.Unit = unit
				}
			}
		}
		if c, ok := cols["unit"]; ok {
			if u := strings.TrimSpace(row[c]); u != "" {
				ing.Unit = util.StringPtr(u)
			}
		}
		if c, ok := cols["preparation"]; ok {
			if p := strings.TrimSpace(row[c]); p != "" {
				ing.PreparationMethod = util.StringPtr(p)
			}
		}
		if c, ok := cols["notes"]; ok {
			if n := strings.TrimSpace(row[c]); n != "" {
				ing.Notes = []string{n}
			}
		}
		if cat, ok := nutritionalCategories[ing.IngredientType]; ok {
			ing.NutritionalCategory = util.StringPtr(cat)
		}
		ing.IsOptional = util.ContainsAny(strings.ToLower(ing.OriginalText), e.lex.OptionalIndicators)
		out = append(out, ing)
	}
	return out
}

// MapColumns assigns each role the first header containing one of its
// keywords. Headers and keywords are compared accent-folded. A column
// takes at most one role; roles are tried in order.
func MapColumns(headers []string, keywords map[string][]string, order []string) map[string]int {
	out := map[string]int{}
	taken := map[int]bool{}
	for _, role := range order {
		for i, h := range headers {
			if taken[i] {
				continue
			}
			key := util.FoldKey(h)
			hit := false
			for _, kw := range keywords[role] {
				if strings.Contains(key, util.FoldKey(kw)) {
					hit = true
					break
				}
			}
			if hit {
				out[role] = i
				taken[i] = true
				break
			}
		}
	}
	return out
}

func (e *IngredientExtractor) Validate(ingredients []internal.Ingredient) CheckResult {
	res := CheckResult{IsValid: true}
	if len(ingredients) == 0 {
		res.fail("No ingredients found")
		return res
	}

	unnamed, low := 0, 0
	seen := map[string]int{}
	var dups []string
	for _, ing := range ingredients {
		name := strings.ToLower(strings.TrimSpace(ing.Name))
		if name == "" {
			unnamed++
		} else {
			seen[name]++
			if seen[name] == 2 {
				dups = append(dups, name)
			}
		}
		if ing.Confidence < lowConfidenceThreshold {
			low++
		}
	}
	if unnamed > 0 {
		res.warn(fmt.Sprintf("%d ingredients without names", unnamed))
	}
	if low > 0 {
		res.warn(fmt.Sprintf("%d ingredients with low confidence", low))
	}
	if len(dups) > 0 {
		sort.Strings(dups)
		res.warn("Duplicate ingredients: " + strings.Join(dups, ", "))
	}
	return res
}

// GroupByType buckets ingredients by their type.
func (e *IngredientExtractor) GroupByType(ingredients []internal.Ingredient) map[internal.IngredientType][]internal.Ingredient {
	out := map[internal.IngredientType][]internal.Ingredient{}
	for _, ing := range ingredients {
		out[ing.IngredientType] = append(out[ing.IngredientType], ing)
	}
	return out
}
