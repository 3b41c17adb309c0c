package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nutridoc/internal"
	"nutridoc/internal/document"
	"nutridoc/internal/extract"
	"nutridoc/internal/lexicon"
	"nutridoc/internal/util"
)

const (
	columnConfidence = 0.9
	perPortion       = "porcion"
	quickMinutes     = 15
	mediumMinutes    = 30
)

type base struct {
	deps Deps
	log  *zap.Logger
}

func (base) sealed() {}

// column is a record role and the header keywords that identify it.
type column struct {
	role     string
	keywords []string
}

var nutrientColumns = []column{
	{internal.NutrientCalories, []string{"caloria", "kcal", "calories", "energia"}},
	{internal.NutrientProtein, []string{"proteina", "protein"}},
	{internal.NutrientCarbs, []string{"carbohidrato", "hidratos", "carbs"}},
	{internal.NutrientFat, []string{"grasa", "lipido", "fat"}},
	{internal.NutrientFiber, []string{"fibra", "fiber"}},
}

// mapColumns assigns roles to header positions; earlier sets claim first.
func mapColumns(headers []string, sets ...[]column) map[string]int {
	keywords := map[string][]string{}
	var order []string
	for _, set := range sets {
		for _, c := range set {
			keywords[c.role] = c.keywords
			order = append(order, c.role)
		}
	}
	return extract.MapColumns(headers, keywords, order)
}

func cell(row []string, cols map[string]int, role string) string {
	i, ok := cols[role]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// nameOf reads the name column, falling back to the first non-empty cell.
func nameOf(row []string, cols map[string]int) string {
	if name := clean(cell(row, cols, "name")); name != "" {
		return name
	}
	for _, c := range row {
		if c = clean(c); c != "" {
			return c
		}
	}
	return ""
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// usableRow rejects rows shorter than the header and rows with no content.
func usableRow(row []string, width int) bool {
	if len(row) < width {
		return false
	}
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return true
		}
	}
	return false
}

func firstRow(t document.Table) string {
	if len(t.Rows) == 0 {
		return ""
	}
	return strings.Join(t.Rows[0], " ")
}

// matchWord compares a folded text against a keyword as a whole word,
// singular or plural.
func matchWord(text, kw string) bool {
	return util.ContainsWordOrPlural(text, util.FoldKey(kw))
}

// categoryOf returns the first group matched by the first text that matches
// any group. Texts are tried in order: typically title, headers, first row.
func categoryOf(groups lexicon.Groups, texts ...string) (string, bool) {
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			continue
		}
		if name, ok := groups.FirstFunc(util.FoldKey(t), matchWord); ok {
			return name, true
		}
	}
	return "", false
}

// subcategoryOf finds the first "category/sub" group of groups matched in
// text and returns sub.
func subcategoryOf(groups lexicon.Groups, category, text string) string {
	folded := util.FoldKey(text)
	prefix := category + "/"
	for _, g := range groups {
		if !strings.HasPrefix(g.Name, prefix) {
			continue
		}
		for _, kw := range g.Keywords {
			if matchWord(folded, kw) {
				return strings.TrimPrefix(g.Name, prefix)
			}
		}
	}
	return ""
}

func containsAnyWord(folded string, words ...string) bool {
	for _, w := range words {
		if matchWord(folded, w) {
			return true
		}
	}
	return false
}

var reNumber = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

func firstNumber(s string) (float64, bool) {
	m := reNumber.FindString(s)
	if m == "" {
		return 0, false
	}
	return util.ParseNumber(m)
}

// minutes reads a duration cell; a bare number is taken as minutes.
func minutes(s string) *int {
	if v := extract.ParseMinutes(s); v != nil {
		return v
	}
	if m := reNumber.FindString(s); m != "" {
		if n, err := strconv.Atoi(m); err == nil && n > 0 {
			return util.IntPtr(n)
		}
	}
	return nil
}

// rowNutrition reads the nutrient columns. When there are none, every cell
// is scanned as free text and the first cell stating a nutrient wins.
func (b *base) rowNutrition(row []string, cols map[string]int) internal.NutritionInfo {
	info := internal.NutritionInfo{}
	for _, c := range nutrientColumns {
		if v, ok := firstNumber(cell(row, cols, c.role)); ok {
			info[c.role] = internal.NutritionalValue{
				Value:      v,
				Unit:       extract.NutrientUnits[c.role],
				Confidence: columnConfidence,
				Source:     internal.SourceTableColumn,
				PerUnit:    perPortion,
			}
		}
	}
	if len(info) > 0 {
		return info
	}
	for _, c := range row {
		for k, v := range b.deps.Nutrition.FromText(c) {
			if _, ok := info[k]; !ok {
				info[k] = v
			}
		}
	}
	return info
}

// draft builds the fields every table-row recipe shares.
func (b *base) draft(doc *document.RawDocument, kind internal.DocumentKind, row []string, cols map[string]int) (internal.Recipe, bool) {
	name := nameOf(row, cols)
	if name == "" {
		return internal.Recipe{}, false
	}
	r := internal.Recipe{
		ID:              uuid.NewString(),
		Name:            name,
		Category:        string(kind),
		SourceFile:      doc.Path,
		NutritionalInfo: b.rowNutrition(row, cols),
	}
	if text := cell(row, cols, "ingredients"); text != "" {
		r.IngredientsText = text
		r.Ingredients = b.deps.Ingredients.FromText(text)
	}
	if text := cell(row, cols, "preparation"); text != "" {
		r.PreparationText = text
		r.PreparationSteps = b.deps.Steps.FromText(text)
	}
	if text := cell(row, cols, "portion"); text != "" {
		r.PortionSize = clean(text)
		r.Portions = b.deps.Portions.FromText(text)
		r.Servings = b.deps.Portions.Servings(text)
	}
	if text := cell(row, cols, "cooking_time"); text != "" {
		r.CookingTime = minutes(text)
	}
	r.Difficulty = difficultyOf(cell(row, cols, "difficulty"))
	return r, true
}

var difficultyWords = []struct {
	level string
	words []string
}{
	{"facil", []string{"fácil", "easy", "simple", "sencillo"}},
	{"medio", []string{"medio", "intermedio", "medium", "moderado"}},
	{"dificil", []string{"difícil", "hard", "avanzado", "complejo"}},
}

func difficultyOf(s string) string {
	folded := util.FoldKey(s)
	for _, d := range difficultyWords {
		if containsAnyWord(folded, d.words...) {
			return d.level
		}
	}
	return ""
}

var economicWords = []struct {
	level string
	words []string
}{
	{"bajo", []string{"bajo", "barato", "económico", "low"}},
	{"medio", []string{"medio", "moderado", "medium"}},
	{"alto", []string{"alto", "caro", "premium", "high"}},
}

func economicLevelOf(s string) string {
	folded := util.FoldKey(s)
	for _, e := range economicWords {
		if containsAnyWord(folded, e.words...) {
			return e.level
		}
	}
	return ""
}

func timeTag(minutes *int) string {
	if minutes == nil || *minutes <= 0 {
		return ""
	}
	switch m := *minutes; {
	case m <= quickMinutes:
		return "rapido"
	case m <= mediumMinutes:
		return "medio_tiempo"
	default:
		return "tiempo_largo"
	}
}

// appendUnique appends the non-empty values not already in list.
func appendUnique(list []string, values ...string) []string {
	for _, v := range values {
		if v == "" {
			continue
		}
		dup := false
		for _, have := range list {
			if have == v {
				dup = true
				break
			}
		}
		if !dup {
			list = append(list, v)
		}
	}
	return list
}

func ingredientNames(r internal.Recipe) string {
	names := make([]string, 0, len(r.Ingredients))
	for _, ing := range r.Ingredients {
		names = append(names, ing.Name)
	}
	return strings.Join(names, " ")
}
