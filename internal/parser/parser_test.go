package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutridoc/internal"
	"nutridoc/internal/document"
	"nutridoc/internal/lexicon"
	"nutridoc/internal/util"
)

func newParser(t *testing.T, kind internal.DocumentKind) Parser {
	t.Helper()
	p, err := New(kind, NewDeps(lexicon.Default(), nil, nil))
	require.NoError(t, err)
	return p
}

func TestNewUnknownKind(t *testing.T) {
	_, err := New(internal.KindUnknown, NewDeps(lexicon.Default(), nil, nil))
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestParseRejectsUnrecognizedStructure(t *testing.T) {
	doc := &document.RawDocument{Path: "vacio.docx"}
	for _, kind := range Kinds() {
		p := newParser(t, kind)
		assert.False(t, p.ValidateStructure(doc), kind)
		_, err := p.Parse(doc)
		assert.ErrorIs(t, err, ErrStructure, kind)
	}

	noCategory := &document.RawDocument{Tables: []document.Table{{
		Headers: []string{"Nombre", "Ingredientes"},
		Rows:    [][]string{{"Mezcla X", "agua"}},
	}}}
	assert.False(t, newParser(t, internal.KindLunchDinner).ValidateStructure(noCategory))
}

func TestLunchParser(t *testing.T) {
	doc := &document.RawDocument{
		Path: "almuerzos.docx",
		Tables: []document.Table{{
			Title:   "Pollo",
			Headers: []string{"Nombre", "Ingredientes", "Preparación", "Tiempo", "Calorías", "Dificultad"},
			Rows: [][]string{
				{"Pechuga grillada", "150 g de pechuga\nsal", "Grillar la pechuga 10 minutos.", "25 min", "320 kcal", "Fácil"},
				{"", "", "", "", "", ""},
				{"Corto"},
			},
		}},
	}
	res, err := newParser(t, internal.KindLunchDinner).Parse(doc)
	require.NoError(t, err)

	assert.Equal(t, internal.KindLunchDinner, res.Type)
	assert.Equal(t, map[string]int{"pollo": 1}, res.Categories)
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, Metadata{FilePath: "almuerzos.docx", TableCount: 1}, res.Metadata)
	require.Len(t, res.Recipes, 1)

	r := res.Recipes[0]
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "Pechuga grillada", r.Name)
	assert.Equal(t, "almuerzos_cenas", r.Category)
	assert.Equal(t, "pollo", r.Subcategory)
	assert.Equal(t, "pechuga", r.FoodType)
	assert.Equal(t, "facil", r.Difficulty)
	assert.Equal(t, 25, util.DerefInt(r.CookingTime))
	assert.Equal(t, []string{"almuerzo", "cena"}, r.MealTime)
	assert.Equal(t, []string{"almuerzo", "cena", "plato_principal"}, r.SuitableFor)
	assert.Equal(t, []string{"sin_gluten", "sin_lactosa"}, r.DietaryRestrictions)
	assert.Equal(t, []string{"pollo", "pechuga", "dificultad_facil", "medio_tiempo"}, r.Tags)
	assert.NotEmpty(t, r.Ingredients)
	assert.NotEmpty(t, r.PreparationSteps)

	cal, ok := r.NutritionalInfo[internal.NutrientCalories]
	require.True(t, ok)
	assert.Equal(t, 320.0, cal.Value)
	assert.Equal(t, internal.SourceTableColumn, cal.Source)
	assert.InDelta(t, 0.9, cal.Confidence, 1e-9)
}

func TestLunchCategoryIgnoresSubstrings(t *testing.T) {
	// "fresco" contains "res" but is not a beef table.
	doc := &document.RawDocument{Tables: []document.Table{{
		Title:   "Platos frescos",
		Headers: []string{"Nombre", "Ingredientes"},
		Rows:    [][]string{{"Salmón rosado", "salmón"}},
	}}}
	res, err := newParser(t, internal.KindLunchDinner).Parse(doc)
	require.NoError(t, err)
	require.Len(t, res.Recipes, 1)
	assert.Equal(t, "pescado", res.Recipes[0].Subcategory)
	assert.Equal(t, "salmon", res.Recipes[0].FoodType)
}

func TestBreakfastParser(t *testing.T) {
	doc := &document.RawDocument{
		Path: "desayunos.docx",
		Tables: []document.Table{{
			Title:   "Opciones dulces",
			Headers: []string{"Nombre", "Ingredientes", "Momento"},
			Rows: [][]string{
				{"Batido de banana", "1 banana\n200 ml de leche", "Media mañana"},
				{"Ensalada de frutas", "1 manzana\n1 naranja", "Desayuno"},
			},
		}},
	}
	res, err := newParser(t, internal.KindBreakfastSnack).Parse(doc)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"dulces": 2}, res.Categories)
	require.Len(t, res.Recipes, 2)

	shake := res.Recipes[0]
	assert.Equal(t, "batidos", shake.FoodType)
	assert.Equal(t, []string{"media_manana"}, shake.MealTime)
	assert.Equal(t, []string{"media_manana", "desayuno", "merienda"}, shake.SuitableFor)
	assert.Equal(t, []string{"vegetariano", "sin_gluten"}, shake.DietaryRestrictions)
	assert.Equal(t, "facil", shake.Difficulty)
	assert.Equal(t, []string{"dulces", "batidos", "media_manana", "desayuno", "merienda", "crudo"}, shake.Tags)

	fruit := res.Recipes[1]
	assert.Equal(t, "frutas", fruit.FoodType)
	assert.Equal(t, []string{"desayuno"}, fruit.MealTime)
	assert.Equal(t, []string{"vegetariano", "vegano", "sin_gluten", "sin_lactosa"}, fruit.DietaryRestrictions)
}

func TestMealMoment(t *testing.T) {
	cases := map[string]string{
		"Media mañana":   "media_manana",
		"colación tarde": "media_tarde",
		"Por la mañana":  "desayuno",
		"Tarde":          "merienda",
		"Noche":          "noche",
		"":               "",
	}
	for in, want := range cases {
		assert.Equal(t, want, mealMoment(in), in)
	}
}

func TestEquivalencyParser(t *testing.T) {
	doc := &document.RawDocument{
		Path: "equivalencias.xlsx",
		Tables: []document.Table{{
			Headers: []string{"Alimento", "Porción", "Peso", "Proteínas", "Carbohidratos", "Grasas", "Equivale a"},
			Rows: [][]string{
				{"Arroz integral", "1 taza", "0,2 kg", "4", "45", "1", "2 rodajas de pan; 3 galletas"},
			},
		}},
	}
	res, err := newParser(t, internal.KindEquivalency).Parse(doc)
	require.NoError(t, err)

	// The nutrient headers must not make this a protein table.
	assert.Equal(t, map[string]int{"cereales": 1}, res.Categories)
	require.Len(t, res.Equivalencies, 1)

	eq := res.Equivalencies[0]
	assert.Equal(t, "Arroz integral", eq.FoodName)
	assert.Equal(t, "cereales", eq.FoodGroup)
	assert.Equal(t, "1 taza", eq.Portion)
	require.NotNil(t, eq.WeightGrams)
	assert.InDelta(t, 200, *eq.WeightGrams, 1e-9)
	assert.Equal(t, "alto_carbohidrato", eq.SubstitutionCategory)

	assert.InDelta(t, 2, eq.NutritionalDensity["protein_per_100g"], 1e-9)
	assert.InDelta(t, 22.5, eq.NutritionalDensity["carbs_per_100g"], 1e-9)
	assert.InDelta(t, 0.005, eq.ConversionFactors["per_gram"], 1e-9)
	assert.InDelta(t, 0.5, eq.ConversionFactors["per_100g"], 1e-9)
	assert.InDelta(t, 1.2, eq.ConversionFactors["per_cup"], 1e-9)
	assert.NotContains(t, eq.ConversionFactors, "per_tbsp")

	assert.Equal(t, []string{
		"Preferir versiones integrales cuando sea posible",
		"Excelente fuente de fibra",
	}, eq.UsageNotes)

	require.Len(t, eq.EquivalentFoods, 2)
	assert.Equal(t, internal.EquivalentFood{Food: "pan", Portion: "2 rodaja"}, eq.EquivalentFoods[0])
}

func TestParseWeight(t *testing.T) {
	assert.InDelta(t, 30, util.DerefFloat(parseWeight("30 g")), 1e-9)
	assert.InDelta(t, 1500, util.DerefFloat(parseWeight("1,5 kg")), 1e-9)
	assert.InDelta(t, 120, util.DerefFloat(parseWeight("120")), 1e-9)
	assert.Nil(t, parseWeight("a gusto"))
}

func TestSubstitutionCategory(t *testing.T) {
	info := func(protein, carbs, fat float64) internal.NutritionInfo {
		return internal.NutritionInfo{
			internal.NutrientProtein: {Value: protein},
			internal.NutrientCarbs:   {Value: carbs},
			internal.NutrientFat:     {Value: fat},
		}
	}
	assert.Equal(t, "unknown", SubstitutionCategory(internal.NutritionInfo{}))
	assert.Equal(t, "alto_proteina", SubstitutionCategory(info(30, 0, 5)))
	assert.Equal(t, "alto_grasa", SubstitutionCategory(info(2, 5, 20)))
	assert.Equal(t, "mixto", SubstitutionCategory(info(10, 20, 5)))
}

func TestDetailedParagraphRecipes(t *testing.T) {
	doc := &document.RawDocument{
		Path: "recetas.docx",
		Paragraphs: []document.Paragraph{
			{Text: "Recetas detalladas", HeadingLevel: 1},
			{Text: "Tortilla de papas", HeadingLevel: 2},
			{Text: "Un clásico de la cocina española para compartir."},
			{Text: "Ingredientes:"},
			{Text: "4 papas"},
			{Text: "3 huevos"},
			{Text: "Preparación:"},
			{Text: "1. Pelar y cortar las papas. 2. Freír las papas en una sartén. 3. Batir los huevos y mezclar."},
			{Text: "Tiempo de cocción: 30 minutos"},
			{Text: "Porciones: 4"},
			{Text: "Consejos:"},
			{Text: "• Usar papas harinosas para mejor textura"},
			{Text: "Receta de flan casero"},
			{Text: "Ingredientes: 1 litro de leche, 6 huevos"},
			{Text: "Tortilla de papas", HeadingLevel: 2},
			{Text: "Ingredientes: 2 papas"},
		},
	}
	p := newParser(t, internal.KindDetailedRecipe)
	require.True(t, p.ValidateStructure(doc))
	res, err := p.Parse(doc)
	require.NoError(t, err)

	require.Len(t, res.Recipes, 2)
	assert.Equal(t, 2, res.Total)

	tortilla := res.Recipes[0]
	assert.Equal(t, "Tortilla de papas", tortilla.Name)
	assert.Equal(t, "recetas_detalladas", tortilla.Category)
	assert.Equal(t, "Un clásico de la cocina española para compartir.", tortilla.Description)
	assert.Equal(t, "4 papas\n3 huevos", tortilla.IngredientsText)
	assert.Len(t, tortilla.Ingredients, 2)
	assert.Len(t, tortilla.PreparationSteps, 3)
	assert.Equal(t, 30, util.DerefInt(tortilla.CookingTime))
	assert.Equal(t, 30, util.DerefInt(tortilla.TotalTime))
	assert.Nil(t, tortilla.PrepTime)
	assert.Equal(t, 4, util.DerefInt(tortilla.Servings))
	assert.Equal(t, []string{"Usar papas harinosas para mejor textura"}, tortilla.Tips)
	assert.Equal(t, "facil", tortilla.Difficulty)
	assert.Equal(t, []string{"dificultad_facil", "medio_tiempo"}, tortilla.Tags)
	assert.NotEmpty(t, tortilla.TechniquesUsed)

	flan := res.Recipes[1]
	assert.Equal(t, "Flan casero", flan.Name)
	assert.Equal(t, "1 litro de leche, 6 huevos", flan.IngredientsText)
}

func TestDetailedTableRows(t *testing.T) {
	doc := &document.RawDocument{Tables: []document.Table{{
		Headers: []string{"Receta", "Ingredientes", "Preparación", "Tiempo de cocción", "Porciones", "Categoría"},
		Rows: [][]string{
			{"Guiso de lentejas", "1 taza de lentejas\n1 cebolla", "Hervir las lentejas. Agregar la cebolla.", "45 min", "4", "Guisos"},
			{"", "sal", "", "", "", ""},
		},
	}}}
	res, err := newParser(t, internal.KindDetailedRecipe).Parse(doc)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"guisos": 1}, res.Categories)
	require.Len(t, res.Recipes, 1)

	r := res.Recipes[0]
	assert.Equal(t, "Guiso de lentejas", r.Name)
	assert.Equal(t, "guisos", r.Subcategory)
	assert.Equal(t, 45, util.DerefInt(r.CookingTime))
	assert.Equal(t, 45, util.DerefInt(r.TotalTime))
	assert.Equal(t, 4, util.DerefInt(r.Servings))
	assert.Len(t, r.PreparationSteps, 2)
	assert.Equal(t, []string{"guisos", "dificultad_facil", "tiempo_largo"}, r.Tags)
}

func TestDetailedNutritionTableAttachesToRecipe(t *testing.T) {
	doc := &document.RawDocument{
		Paragraphs: []document.Paragraph{
			{Text: "Ensalada tibia", HeadingLevel: 2},
			{Text: "Ingredientes: 1 papa, 1 huevo"},
			{Text: "Información nutricional", HeadingLevel: 3},
		},
		Tables: []document.Table{{
			Title:   "Información nutricional",
			Headers: []string{"Nutriente", "Cantidad"},
			Rows:    [][]string{{"Calorías", "250 kcal"}, {"Proteínas", "12 g"}},
		}},
	}
	res, err := newParser(t, internal.KindDetailedRecipe).Parse(doc)
	require.NoError(t, err)
	require.Len(t, res.Recipes, 1)

	info := res.Recipes[0].NutritionalInfo
	assert.Equal(t, 250.0, info[internal.NutrientCalories].Value)
	assert.Equal(t, 12.0, info[internal.NutrientProtein].Value)
	assert.Equal(t, internal.SourceTableColumn, info[internal.NutrientProtein].Source)
}

func TestApplyTimes(t *testing.T) {
	var r internal.Recipe
	applyTimes(&r, "Preparación: 15 min, cocción: 1 hora. Tiempo total: 75 minutos")
	assert.Equal(t, 15, util.DerefInt(r.PrepTime))
	assert.Equal(t, 60, util.DerefInt(r.CookingTime))
	assert.Equal(t, 75, util.DerefInt(r.TotalTime))
}

func TestVariationType(t *testing.T) {
	assert.Equal(t, "dietary", variationType("Versión vegana con leche de almendras"))
	assert.Equal(t, "flavor", variationType("Agregar ají para una versión picante"))
	assert.Equal(t, "preparation", variationType("Se puede hacer en el microondas"))
	assert.Equal(t, "general", variationType("Servir con pan"))
}
