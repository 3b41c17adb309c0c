package extract

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"nutridoc/internal"
	"nutridoc/internal/lexicon"
	"nutridoc/internal/util"
)

const (
	nutritionBaseConfidence    = 0.5
	nutritionKeywordBonus      = 0.3
	nutritionNumericBonus      = 0.2
	nutritionPerBonus          = 0.2
	nutritionPer100gBonus      = 0.3
	ingredientValueConfidence  = 0.7
	defaultMismatchTolerance   = 0.2
	maxPlausibleCaloriesPer100 = 900
	per100g                    = "100g"
)

const num = `(\d+(?:[.,]\d+)?)`

// NutrientUnits maps nutrient keys to the unit values are reported in.
var NutrientUnits = map[string]string{
	internal.NutrientCalories: "kcal",
	internal.NutrientProtein:  "g",
	internal.NutrientCarbs:    "g",
	internal.NutrientFat:      "g",
	internal.NutrientFiber:    "g",
	internal.NutrientSugar:    "g",
	internal.NutrientSodium:   "mg",
	internal.NutrientCalcium:  "mg",
	internal.NutrientIron:     "mg",
	internal.NutrientVitaminC: "mg",
	internal.NutrientVitaminA: "ui",
}

type nutrientPattern struct {
	re      *regexp.Regexp
	keyword bool
}

func numberThenKeyword(unit, keywords string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + num + `\s*` + unit + `\s*(?:de\s+)?(?:` + keywords + `)`)
}

func keywordThenNumber(keywords string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:` + keywords + `)\s*(?:\([^)]*\))?\s*[:=]?\s*` + num)
}

var nutrientPatterns = func() map[string][]nutrientPattern {
	const (
		calories = `kilocalor[ií]as?|calor[ií]as?|calories|kcal|cal\b`
		protein  = `prote[ií]nas?|proteins?`
		carbs    = `carbohidratos?|hidratos\s+de\s+carbono|carbohydrates?|carbs`
		fat      = `grasas?(?:\s+totales)?|l[ií]pidos|fat`
		fiber    = `fibras?|fiber|fibre`
		sugar    = `az[uú]car(?:es)?|sugars?`
		sodium   = `sodio|sodium`
		calcium  = `calcio|calcium`
		iron     = `hierro|iron`
		vitC     = `vitamina\s*c|vitamin\s*c|vit\.?\s*c`
		vitA     = `vitamina\s*a|vitamin\s*a|vit\.?\s*a`
	)
	return map[string][]nutrientPattern{
		internal.NutrientCalories: {
			{re: regexp.MustCompile(`(?i)` + num + `\s*(?:kcal|kilocalor[ií]as?|calor[ií]as?|calories|cal\b)`), keyword: true},
			{re: keywordThenNumber(calories + `|energ[ií]a|energy`), keyword: true},
			{re: regexp.MustCompile(`(?i)valor\s*energ[eé]tico\s*[:\s]*` + num), keyword: true},
		},
		internal.NutrientProtein: {
			{re: numberThenKeyword(`g?`, protein), keyword: true},
			{re: keywordThenNumber(protein), keyword: true},
		},
		internal.NutrientCarbs:    {{re: numberThenKeyword(`g?`, carbs)}, {re: keywordThenNumber(carbs)}},
		internal.NutrientFat:      {{re: numberThenKeyword(`g?`, fat)}, {re: keywordThenNumber(fat)}},
		internal.NutrientFiber:    {{re: numberThenKeyword(`g?`, fiber)}, {re: keywordThenNumber(fiber)}},
		internal.NutrientSugar:    {{re: numberThenKeyword(`g?`, sugar)}, {re: keywordThenNumber(sugar)}},
		internal.NutrientSodium:   {{re: numberThenKeyword(`(?:mg|g)?`, sodium)}, {re: keywordThenNumber(sodium + `|sal\b`)}},
		internal.NutrientCalcium:  {{re: numberThenKeyword(`(?:mg)?`, calcium)}, {re: keywordThenNumber(calcium)}},
		internal.NutrientIron:     {{re: numberThenKeyword(`(?:mg)?`, iron)}, {re: keywordThenNumber(iron)}},
		internal.NutrientVitaminC: {{re: numberThenKeyword(`(?:mg)?`, vitC)}, {re: keywordThenNumber(vitC)}},
		internal.NutrientVitaminA: {{re: numberThenKeyword(`(?:ui|iu)?`, vitA)}, {re: keywordThenNumber(vitA)}},
	}
}()

var (
	rePer     = regexp.MustCompile(`(?i)\b(?:por|per)\b`)
	rePer100g = regexp.MustCompile(`(?i)100\s*g`)
)

// Reference resolves per-100 g nutrient values for a food name that the
// lexicon does not know.
type Reference interface {
	Per100g(name string) (map[string]float64, bool)
}

type NutritionExtractor struct {
	lex *lexicon.Lexicon
	ref Reference

	// MismatchTolerance is the allowed relative gap between stated calories
	// and calories computed from macros.
	MismatchTolerance float64
}

// NewNutritionExtractor builds an extractor. ref may be nil.
func NewNutritionExtractor(lex *lexicon.Lexicon, ref Reference) *NutritionExtractor {
	return &NutritionExtractor{lex: lex, ref: ref, MismatchTolerance: defaultMismatchTolerance}
}

// FromText scans free text for nutrient statements. Each nutrient keeps
// its first matching pattern.
func (e *NutritionExtractor) FromText(text string) internal.NutritionInfo {
	info := internal.NutritionInfo{}
	text = util.NormalizeText(text)
	if text == "" {
		return info
	}
	for _, nutrient := range internal.Nutrients {
		for _, p := range nutrientPatterns[nutrient] {
			loc := p.re.FindStringSubmatchIndex(text)
			if loc == nil {
				continue
			}
			value, ok := util.ParseNumber(text[loc[2]:loc[3]])
			if !ok {
				continue
			}
			info[nutrient] = internal.NutritionalValue{
				Value:      value,
				Unit:       NutrientUnits[nutrient],
				Confidence: matchConfidence(p, text, loc[0], loc[1]),
				Source:     internal.SourceTextExtraction,
				PerUnit:    per100g,
			}
			break
		}
	}
	return info
}

func matchConfidence(p nutrientPattern, text string, start, end int) float64 {
	c := nutritionBaseConfidence + nutritionNumericBonus
	if p.keyword {
		c += nutritionKeywordBonus
	}
	ctxEnd := end + 20
	if ctxEnd > len(text) {
		ctxEnd = len(text)
	}
	for ctxEnd < len(text) && !isRuneStart(text[ctxEnd]) {
		ctxEnd++
	}
	window := text[start:ctxEnd]
	if rePer.MatchString(window) {
		c += nutritionPerBonus
	}
	if rePer100g.MatchString(window) {
		c += nutritionPer100gBonus
	}
	return clamp01(c)
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

// ForIngredient scales the reference values of one ingredient to its
// quantity. Ingredients without a quantity, a known weight or a reference
// yield false.
func (e *NutritionExtractor) ForIngredient(ing internal.Ingredient) (internal.NutritionInfo, bool) {
	if ing.Quantity == nil || strings.TrimSpace(ing.Name) == "" {
		return nil, false
	}
	grams, ok := e.ingredientGrams(ing)
	if !ok {
		return nil, false
	}
	per100, ok := e.reference(ing.Name)
	if !ok {
		return nil, false
	}
	info := internal.NutritionInfo{}
	for nutrient, v := range per100 {
		unit, known := NutrientUnits[nutrient]
		if !known {
			continue
		}
		info[nutrient] = internal.NutritionalValue{
			Value:      v * grams / 100,
			Unit:       unit,
			Confidence: ingredientValueConfidence,
			Source:     internal.SourceIngredientDatabase,
			PerUnit:    "ingredient",
		}
	}
	return info, true
}

// FromIngredients sums ForIngredient over a recipe. Totals carry the highest
// contributing confidence.
func (e *NutritionExtractor) FromIngredients(ingredients []internal.Ingredient) internal.NutritionInfo {
	totals := map[string]float64{}
	confidence := map[string]float64{}
	for _, ing := range ingredients {
		contrib, ok := e.ForIngredient(ing)
		if !ok {
			continue
		}
		for nutrient, v := range contrib {
			totals[nutrient] += v.Value
			confidence[nutrient] = math.Max(confidence[nutrient], v.Confidence)
		}
	}

	info := internal.NutritionInfo{}
	for nutrient, v := range totals {
		info[nutrient] = internal.NutritionalValue{
			Value:      round2(v),
			Unit:       NutrientUnits[nutrient],
			Confidence: confidence[nutrient],
			Source:     internal.SourceIngredientCalculation,
			PerUnit:    "recipe",
		}
	}
	return info
}

func (e *NutritionExtractor) ingredientGrams(ing internal.Ingredient) (float64, bool) {
	if ing.Unit == nil {
		return *ing.Quantity * e.lex.ItemGrams(ing.Name), true
	}
	return e.lex.ToGrams(*ing.Quantity, *ing.Unit, ing.Name)
}

func (e *NutritionExtractor) reference(name string) (map[string]float64, bool) {
	if ref, ok := e.lex.Reference(name); ok {
		return ref.Per100g, true
	}
	if e.ref != nil {
		return e.ref.Per100g(name)
	}
	return nil, false
}

// PerServing divides every value by servings.
func (e *NutritionExtractor) PerServing(info internal.NutritionInfo, servings int) internal.NutritionInfo {
	if servings <= 0 {
		return copyInfo(info)
	}
	out := internal.NutritionInfo{}
	for k, v := range info {
		v.Value = round2(v.Value / float64(servings))
		v.PerUnit = "serving"
		out[k] = v
	}
	return out
}

// NormalizeTo100g rescales values measured over totalGrams to 100 g.
func (e *NutritionExtractor) NormalizeTo100g(info internal.NutritionInfo, totalGrams float64) internal.NutritionInfo {
	if totalGrams <= 0 {
		return copyInfo(info)
	}
	out := internal.NutritionInfo{}
	for k, v := range info {
		v.Value = round2(v.Value * 100 / totalGrams)
		v.PerUnit = per100g
		out[k] = v
	}
	return out
}

var summaryLabels = []struct {
	key, label, format string
}{
	{internal.NutrientCalories, "Calorías", "%.0f"},
	{internal.NutrientProtein, "Proteína", "%.1f"},
	{internal.NutrientCarbs, "Carbohidratos", "%.1f"},
	{internal.NutrientFat, "Grasas", "%.1f"},
	{internal.NutrientFiber, "Fibra", "%.1f"},
}

func (e *NutritionExtractor) Summary(info internal.NutritionInfo) string {
	parts := make([]string, 0, len(summaryLabels))
	for _, l := range summaryLabels {
		v, ok := info[l.key]
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: "+l.format+" %s", l.label, v.Value, v.Unit))
	}
	if len(parts) == 0 {
		return "Sin información nutricional"
	}
	return strings.Join(parts, " | ")
}

// Validate flags missing macros, implausible calories and a mismatch between
// stated calories and 4/4/9 kcal per gram of protein, carbs and fat.
func (e *NutritionExtractor) Validate(info internal.NutritionInfo) CheckResult {
	res := CheckResult{IsValid: true}
	for _, key := range []string{internal.NutrientCalories, internal.NutrientProtein, internal.NutrientCarbs, internal.NutrientFat} {
		if _, ok := info[key]; !ok {
			res.warn(fmt.Sprintf("Missing %s information", key))
		}
	}

	cal, ok := info[internal.NutrientCalories]
	if !ok {
		return res
	}
	// The upper bound is a per-100 g density; recipe, portion and serving
	// totals are only checked for sign.
	if cal.Value < 0 || (cal.PerUnit == per100g && cal.Value > maxPlausibleCaloriesPer100) {
		res.fail(fmt.Sprintf("Calories out of plausible range: %.0f kcal", cal.Value))
	}

	p, okP := info[internal.NutrientProtein]
	c, okC := info[internal.NutrientCarbs]
	f, okF := info[internal.NutrientFat]
	if okP && okC && okF && cal.Value > 0 {
		computed := p.Value*4 + c.Value*4 + f.Value*9
		if math.Abs(computed-cal.Value) > e.MismatchTolerance*cal.Value {
			res.warn(fmt.Sprintf("Calorie mismatch: stated %.0f kcal, macros give %.0f kcal", cal.Value, computed))
		}
	}
	return res
}

func copyInfo(info internal.NutritionInfo) internal.NutritionInfo {
	out := make(internal.NutritionInfo, len(info))
	for k, v := range info {
		out[k] = v
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
