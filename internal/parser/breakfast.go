package parser

import (
	"strings"

	"go.uber.org/zap"

	"nutridoc/internal"
	"nutridoc/internal/document"
	"nutridoc/internal/util"
)

var breakfastColumns = []column{
	{"name", []string{"nombre", "receta", "opcion"}},
	{"cooking_time", []string{"tiempo", "duracion"}},
	{"ingredients", []string{"ingrediente", "ingredient"}},
	{"preparation", []string{"preparacion", "instrucciones", "procedimiento", "elaboracion"}},
	{"portion", []string{"porcion", "cantidad", "racion"}},
	{"meal_time", []string{"momento", "horario", "cuando"}},
}

// Checked in order; the two-word moments come before "mañana" and "tarde".
var mealMoments = []struct {
	moment string
	words  []string
}{
	{"media_manana", []string{"media mañana", "colación mañana", "mid morning"}},
	{"media_tarde", []string{"media tarde", "colación tarde", "mid afternoon"}},
	{"desayuno", []string{"desayuno", "breakfast", "mañana", "morning"}},
	{"merienda", []string{"merienda", "tarde", "afternoon"}},
	{"noche", []string{"noche", "evening", "cena"}},
}

var (
	meatWords          = []string{"pollo", "carne", "pescado", "cerdo", "jamón"}
	animalProductWords = []string{"leche", "queso", "yogur", "huevo", "manteca", "miel"}
	breakfastGluten    = []string{"harina", "pan", "trigo", "avena", "galleta"}
	complexWords       = []string{"hornear", "cocinar", "batir", "mezclar", "calentar"}
)

const (
	fewIngredients  = 3
	someIngredients = 6
	instantMinutes  = 5
)

type breakfastParser struct{ base }

func (p *breakfastParser) Kind() internal.DocumentKind { return internal.KindBreakfastSnack }

func (p *breakfastParser) ValidateStructure(doc *document.RawDocument) bool {
	if len(doc.Tables) == 0 {
		p.log.Warn("no tables found", zap.String("file", doc.Path))
		return false
	}
	for _, t := range doc.Tables {
		if _, ok := p.tableCategory(t); ok {
			return true
		}
	}
	p.log.Warn("no recognized categories", zap.String("file", doc.Path))
	return false
}

func (p *breakfastParser) tableCategory(t document.Table) (string, bool) {
	return categoryOf(p.deps.Lex.BreakfastCategories, t.Title, strings.Join(t.Headers, " "), firstRow(t))
}

func (p *breakfastParser) Parse(doc *document.RawDocument) (Result, error) {
	if !p.ValidateStructure(doc) {
		return Result{}, ErrStructure
	}
	res := newResult(p.Kind(), doc)
	for _, t := range doc.Tables {
		category, ok := p.tableCategory(t)
		if !ok {
			continue
		}
		cols := mapColumns(t.Headers, breakfastColumns, nutrientColumns)
		for _, row := range t.Rows {
			if !usableRow(row, len(t.Headers)) {
				continue
			}
			r, ok := p.recipe(doc, category, row, cols)
			if !ok {
				continue
			}
			res.Recipes = append(res.Recipes, r)
			res.Categories[category]++
		}
	}
	res.Total = len(res.Recipes)
	return res, nil
}

func (p *breakfastParser) recipe(doc *document.RawDocument, category string, row []string, cols map[string]int) (internal.Recipe, bool) {
	r, ok := p.draft(doc, p.Kind(), row, cols)
	if !ok {
		return r, false
	}
	r.Subcategory = category
	r.FoodType = subcategoryOf(p.deps.Lex.BreakfastSubcategories, category, strings.Join(row, " "))

	moment := mealMoment(cell(row, cols, "meal_time"))
	if moment != "" {
		r.MealTime = []string{moment}
	}
	r.SuitableFor = breakfastSuitableFor(category, moment, util.FoldKey(r.Name))
	r.DietaryRestrictions = breakfastDietary(util.FoldKey(r.Name + " " + r.IngredientsText))
	if r.Difficulty == "" {
		r.Difficulty = breakfastDifficulty(len(r.Ingredients), r.CookingTime, util.FoldKey(r.PreparationText))
	}

	tags := appendUnique(nil, category, r.FoodType)
	tags = appendUnique(tags, r.SuitableFor...)
	tags = appendUnique(tags, breakfastTimeTag(r.CookingTime))
	r.Tags = appendUnique(tags, preparationTags(util.FoldKey(r.PreparationText))...)
	return r, true
}

func mealMoment(s string) string {
	folded := util.FoldKey(s)
	if folded == "" {
		return ""
	}
	for _, m := range mealMoments {
		for _, w := range m.words {
			if strings.Contains(folded, util.FoldKey(w)) {
				return m.moment
			}
		}
	}
	return ""
}

func breakfastSuitableFor(category, moment, foldedName string) []string {
	out := appendUnique(nil, moment)
	switch category {
	case "dulces":
		out = appendUnique(out, "desayuno", "merienda", "media_manana")
	case "salados":
		out = appendUnique(out, "desayuno", "media_manana")
	case "colaciones":
		out = appendUnique(out, "media_manana", "merienda", "media_tarde")
	}
	switch {
	case containsAnyWord(foldedName, "desayuno", "breakfast"):
		out = appendUnique(out, "desayuno")
	case containsAnyWord(foldedName, "merienda", "tarde"):
		out = appendUnique(out, "merienda")
	case containsAnyWord(foldedName, "colación", "snack"):
		out = appendUnique(out, "media_manana", "media_tarde")
	}
	return out
}

func breakfastDietary(folded string) []string {
	var out []string
	vegetarian := !containsAnyWord(folded, meatWords...)
	if vegetarian {
		out = append(out, "vegetariano")
	}
	if vegetarian && !containsAnyWord(folded, animalProductWords...) {
		out = append(out, "vegano")
	}
	if !containsAnyWord(folded, breakfastGluten...) {
		out = append(out, "sin_gluten")
	}
	if !containsAnyWord(folded, dairyWords...) {
		out = append(out, "sin_lactosa")
	}
	if strings.Contains(folded, "sin azucar") || strings.Contains(folded, "sugar free") {
		out = append(out, "sin_azucar")
	}
	return out
}

// breakfastDifficulty scores ingredient count and time from 1 to 3 each,
// plus one for a demanding technique.
func breakfastDifficulty(ingredients int, cookingTime *int, foldedPrep string) string {
	score := 3
	switch {
	case ingredients <= fewIngredients:
		score = 1
	case ingredients <= someIngredients:
		score = 2
	}
	m := util.DerefInt(cookingTime)
	switch {
	case m <= instantMinutes:
		score++
	case m <= quickMinutes:
		score += 2
	default:
		score += 3
	}
	for _, w := range complexWords {
		if util.HasWordPrefix(foldedPrep, w) {
			score++
			break
		}
	}
	switch {
	case score <= 3:
		return "facil"
	case score <= 5:
		return "medio"
	}
	return "dificil"
}

func breakfastTimeTag(minutes *int) string {
	if minutes == nil || *minutes <= 0 {
		return ""
	}
	switch m := *minutes; {
	case m <= instantMinutes:
		return "instantaneo"
	case m <= quickMinutes:
		return "rapido"
	}
	return "elaborado"
}

func preparationTags(foldedPrep string) []string {
	var out []string
	if util.HasWordPrefix(foldedPrep, "licu") || util.HasWordPrefix(foldedPrep, "batir") {
		out = append(out, "licuado")
	}
	if util.HasWordPrefix(foldedPrep, "cocinar") || util.HasWordPrefix(foldedPrep, "hornear") {
		out = append(out, "cocido")
	}
	if foldedPrep == "" || util.HasWordPrefix(foldedPrep, "mezclar") {
		out = append(out, "crudo")
	}
	return out
}
