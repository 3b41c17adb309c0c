package parser

import (
	"strings"

	"go.uber.org/zap"

	"nutridoc/internal"
	"nutridoc/internal/document"
	"nutridoc/internal/util"
)

var lunchColumns = []column{
	{"name", []string{"nombre", "receta", "plato", "comida"}},
	{"cooking_time", []string{"tiempo", "duracion"}},
	{"ingredients", []string{"ingrediente", "ingredient"}},
	{"preparation", []string{"preparacion", "instrucciones", "procedimiento", "elaboracion"}},
	{"portion", []string{"porcion", "cantidad", "racion"}},
	{"economic_level", []string{"economico", "precio", "costo"}},
	{"difficulty", []string{"dificultad", "nivel"}},
}

var (
	glutenWords = []string{"harina", "pan", "trigo", "avena", "cebada"}
	dairyWords  = []string{"leche", "queso", "yogur", "crema", "manteca"}
)

type lunchParser struct{ base }

func (p *lunchParser) Kind() internal.DocumentKind { return internal.KindLunchDinner }

func (p *lunchParser) ValidateStructure(doc *document.RawDocument) bool {
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

func (p *lunchParser) tableCategory(t document.Table) (string, bool) {
	return categoryOf(p.deps.Lex.LunchCategories, t.Title, strings.Join(t.Headers, " "), firstRow(t))
}

func (p *lunchParser) Parse(doc *document.RawDocument) (Result, error) {
	if !p.ValidateStructure(doc) {
		return Result{}, ErrStructure
	}
	res := newResult(p.Kind(), doc)
	for _, t := range doc.Tables {
		category, ok := p.tableCategory(t)
		if !ok {
			continue
		}
		cols := mapColumns(t.Headers, lunchColumns, nutrientColumns)
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

func (p *lunchParser) recipe(doc *document.RawDocument, category string, row []string, cols map[string]int) (internal.Recipe, bool) {
	r, ok := p.draft(doc, p.Kind(), row, cols)
	if !ok {
		return r, false
	}
	r.Subcategory = category
	r.FoodType = subcategoryOf(p.deps.Lex.LunchSubcategories, category, strings.Join(row, " "))
	r.EconomicLevel = economicLevelOf(cell(row, cols, "economic_level"))
	r.MealTime = []string{"almuerzo", "cena"}
	r.DietaryRestrictions = lunchDietary(category, util.FoldKey(r.Name+" "+r.IngredientsText))
	r.SuitableFor = lunchSuitableFor(category)
	r.Tags = appendUnique(nil,
		category,
		r.FoodType,
		prefixed("dificultad_", r.Difficulty),
		prefixed("economico_", r.EconomicLevel),
		timeTag(r.CookingTime),
	)
	return r, true
}

func lunchDietary(category, folded string) []string {
	var out []string
	if category == "vegetarianos" {
		out = append(out, "vegetariano")
	}
	if !containsAnyWord(folded, glutenWords...) {
		out = append(out, "sin_gluten")
	}
	if !containsAnyWord(folded, dairyWords...) {
		out = append(out, "sin_lactosa")
	}
	if strings.Contains(folded, "sin sal") || strings.Contains(folded, "bajo sodio") {
		out = append(out, "bajo_sodio")
	}
	return out
}

func lunchSuitableFor(category string) []string {
	out := []string{"almuerzo", "cena"}
	switch category {
	case "ensaladas":
		out = append(out, "entrada", "acompañamiento")
	case "pollo", "carne", "pescado", "cerdo", "mariscos":
		out = append(out, "plato_principal")
	case "vegetarianos":
		out = append(out, "vegetariano", "plato_principal")
	}
	return out
}

func prefixed(prefix, v string) string {
	if v == "" {
		return ""
	}
	return prefix + v
}
