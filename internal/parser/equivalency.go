package parser

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nutridoc/internal"
	"nutridoc/internal/document"
	"nutridoc/internal/util"
)

var equivalencyColumns = []column{
	{"food", []string{"alimento", "food", "ingrediente", "nombre"}},
	{"weight", []string{"peso", "gramos", "weight"}},
	{"equivalent", []string{"equivale", "equivalencia", "sustituto", "substitute", "reemplazo"}},
	{"exchange", []string{"intercambio", "exchange"}},
	{"portion", []string{"porcion", "cantidad", "medida", "racion"}},
}

var (
	reWeight      = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(kilogramos?|kgs?|gramos?|grs?|g)\b`)
	reEquivalents = regexp.MustCompile(`(?i)[,;=]|\bequivale\s+a\b|\bigual\s+a\b`)
)

const (
	proteinKcal        = 4
	carbsKcal          = 4
	fatKcal            = 9
	highProteinShare   = 0.5
	highCarbsShare     = 0.6
	highFatShare       = 0.6
	cupMilliliters     = 240
	spoonMilliliters   = 15
	gramsPerKilogram   = 1000
	densityReference   = 100
	unknownSubstitutes = "unknown"
)

var groupNotes = map[string]string{
	"cereales":  "Preferir versiones integrales cuando sea posible",
	"proteinas": "Variar entre fuentes animales y vegetales",
	"lacteos":   "Elegir opciones bajas en grasa si es necesario",
	"frutas":    "Consumir preferentemente enteras, no en jugos",
	"verduras":  "Incluir variedad de colores",
	"grasas":    "Usar con moderación",
}

var nameNotes = []struct {
	word string
	note string
}{
	{"frito", "Limitar consumo por alto contenido de grasas"},
	{"integral", "Excelente fuente de fibra"},
	{"light", "Opción reducida en calorías"},
}

type equivalencyParser struct{ base }

func (p *equivalencyParser) Kind() internal.DocumentKind { return internal.KindEquivalency }

func (p *equivalencyParser) ValidateStructure(doc *document.RawDocument) bool {
	if len(doc.Tables) == 0 {
		p.log.Warn("no tables found", zap.String("file", doc.Path))
		return false
	}
	for _, t := range doc.Tables {
		if _, ok := p.tableGroup(t, p.columns(t)); ok {
			return true
		}
	}
	p.log.Warn("no recognized food groups", zap.String("file", doc.Path))
	return false
}

func (p *equivalencyParser) columns(t document.Table) map[string]int {
	return mapColumns(t.Headers, equivalencyColumns[:1], nutrientColumns, equivalencyColumns[1:])
}

// tableGroup ignores nutrient headers: "Proteínas" or "Grasas" columns say
// nothing about the food group of the table.
func (p *equivalencyParser) tableGroup(t document.Table, cols map[string]int) (string, bool) {
	nutrient := map[int]bool{}
	for _, c := range nutrientColumns {
		if i, ok := cols[c.role]; ok {
			nutrient[i] = true
		}
	}
	var headers []string
	for i, h := range t.Headers {
		if !nutrient[i] {
			headers = append(headers, h)
		}
	}
	return categoryOf(p.deps.Lex.FoodGroups, t.Title, strings.Join(headers, " "), firstRow(t))
}

func (p *equivalencyParser) Parse(doc *document.RawDocument) (Result, error) {
	if !p.ValidateStructure(doc) {
		return Result{}, ErrStructure
	}
	res := newResult(p.Kind(), doc)
	for _, t := range doc.Tables {
		cols := p.columns(t)
		group, ok := p.tableGroup(t, cols)
		if !ok {
			continue
		}
		for _, row := range t.Rows {
			if !usableRow(row, len(t.Headers)) {
				continue
			}
			eq, ok := p.equivalency(doc, group, row, cols)
			if !ok {
				continue
			}
			res.Equivalencies = append(res.Equivalencies, eq)
			res.Categories[group]++
		}
	}
	res.Total = len(res.Equivalencies)
	return res, nil
}

func (p *equivalencyParser) equivalency(doc *document.RawDocument, group string, row []string, cols map[string]int) (internal.Equivalency, bool) {
	name := clean(cell(row, cols, "food"))
	if name == "" {
		name = nameOf(row, nil)
	}
	if name == "" {
		return internal.Equivalency{}, false
	}
	eq := internal.Equivalency{
		ID:              uuid.NewString(),
		FoodName:        name,
		FoodGroup:       group,
		SourceFile:      doc.Path,
		NutritionalInfo: p.rowNutrition(row, cols),
		EquivalentFoods: p.equivalents(cell(row, cols, "equivalent")),
		ExchangeUnit:    exchangeUnit(cell(row, cols, "exchange")),
	}
	if text := cell(row, cols, "portion"); text != "" {
		eq.Portion = clean(text)
		eq.Portions = p.deps.Portions.FromText(text)
	}
	eq.WeightGrams = parseWeight(cell(row, cols, "weight"))
	if eq.WeightGrams == nil {
		eq.WeightGrams = portionWeight(eq.Portions)
	}
	eq.NutritionalDensity = nutritionalDensity(eq.NutritionalInfo, eq.WeightGrams)
	eq.SubstitutionCategory = SubstitutionCategory(eq.NutritionalInfo)
	eq.UsageNotes = usageNotes(group, name)
	eq.ConversionFactors = conversionFactors(group, eq.WeightGrams)
	return eq, true
}

// parseWeight reads grams from a weight cell; kilograms are converted and a
// bare number is taken as grams.
func parseWeight(s string) *float64 {
	if m := reWeight.FindStringSubmatch(s); m != nil {
		v, ok := util.ParseNumber(m[1])
		if !ok {
			return nil
		}
		if strings.HasPrefix(strings.ToLower(m[2]), "k") {
			v *= gramsPerKilogram
		}
		return util.FloatPtr(v)
	}
	if v, ok := firstNumber(s); ok {
		return util.FloatPtr(v)
	}
	return nil
}

func portionWeight(portions []internal.Portion) *float64 {
	for _, p := range portions {
		if p.PortionType == internal.PortionWeight && p.GramsEquivalent != nil {
			return util.FloatPtr(*p.GramsEquivalent)
		}
	}
	return nil
}

// equivalents splits "1 taza de arroz = 2 rodajas de pan; 3 galletas" into
// its foods.
func (p *equivalencyParser) equivalents(s string) []internal.EquivalentFood {
	var out []internal.EquivalentFood
	for _, item := range reEquivalents.Split(s, -1) {
		item = clean(item)
		if item == "" {
			continue
		}
		qty, unit, rest := util.ExtractQuantityAndUnit(p.deps.Lex, item)
		if (qty == nil && unit == nil) || rest == "" {
			out = append(out, internal.EquivalentFood{Food: item})
			continue
		}
		var portion []string
		if qty != nil {
			portion = append(portion, strconv.FormatFloat(*qty, 'f', -1, 64))
		}
		if unit != nil {
			portion = append(portion, *unit)
		}
		out = append(out, internal.EquivalentFood{Food: rest, Portion: strings.Join(portion, " ")})
	}
	return out
}

func exchangeUnit(s string) string {
	folded := util.FoldKey(s)
	switch {
	case folded == "":
		return ""
	case containsAnyWord(folded, "intercambio", "exchange"):
		return "intercambio"
	case containsAnyWord(folded, "porción", "portion"):
		return "porcion"
	case containsAnyWord(folded, "unidad", "unit"):
		return "unidad"
	}
	return clean(s)
}

func nutritionalDensity(info internal.NutritionInfo, weight *float64) map[string]float64 {
	out := map[string]float64{}
	if weight == nil || *weight <= 0 {
		return out
	}
	factor := densityReference / *weight
	for _, n := range internal.Nutrients {
		if v, ok := info[n]; ok {
			out[n+"_per_100g"] = round2(v.Value * factor)
		}
	}
	return out
}

// SubstitutionCategory labels a food by the share of its energy coming from
// each macronutrient.
func SubstitutionCategory(info internal.NutritionInfo) string {
	protein := info[internal.NutrientProtein].Value * proteinKcal
	carbs := info[internal.NutrientCarbs].Value * carbsKcal
	fat := info[internal.NutrientFat].Value * fatKcal
	total := protein + carbs + fat
	switch {
	case total <= 0:
		return unknownSubstitutes
	case protein/total > highProteinShare:
		return "alto_proteina"
	case carbs/total > highCarbsShare:
		return "alto_carbohidrato"
	case fat/total > highFatShare:
		return "alto_grasa"
	}
	return "mixto"
}

func usageNotes(group, name string) []string {
	var out []string
	if note, ok := groupNotes[group]; ok {
		out = append(out, note)
	}
	folded := util.FoldKey(name)
	for _, n := range nameNotes {
		if util.HasWordPrefix(folded, n.word) {
			out = append(out, n.note)
			break
		}
	}
	return out
}

func conversionFactors(group string, weight *float64) map[string]float64 {
	out := map[string]float64{}
	if weight == nil || *weight <= 0 {
		return out
	}
	w := *weight
	out["per_gram"] = 1 / w
	out["per_100g"] = densityReference / w
	switch group {
	case "cereales", "lacteos":
		out["per_cup"] = cupMilliliters / w
	case "grasas":
		out["per_tbsp"] = spoonMilliliters / w
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
