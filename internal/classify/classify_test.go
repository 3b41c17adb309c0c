package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutridoc/internal"
	"nutridoc/internal/lexicon"
	"nutridoc/internal/util"
)

func newClassifier() *Classifier { return New(lexicon.Default()) }

func TestClassifyLunchRecipe(t *testing.T) {
	got := newClassifier().Classify(RecipeSubject{
		Name:            "Pechuga de pollo al horno",
		Description:     "Almuerzo liviano sin gluten",
		IngredientNames: []string{"pollo", "limón"},
		Difficulty:      "facil",
		CookingTime:     util.IntPtr(40),
		EconomicLevel:   "medio",
	})

	assert.Equal(t, "almuerzos_cenas", got.Category)
	require.NotNil(t, got.Subcategory)
	assert.Equal(t, "pollo", *got.Subcategory)
	assert.Equal(t, []string{"sin_gluten", "horneado", "almuerzo", "dificultad_facil", "tiempo_largo", "economico_medio"}, got.Tags)
	assert.InDelta(t, 1.0, got.Confidence, 1e-9)
	assert.Equal(t, []string{
		"Found category keywords: almuerzo",
		"Found subcategory keywords: pollo, pechuga",
		"Multiple relevant tags found: 6",
	}, got.Reasoning)
}

func TestClassifyBreakfastRecipe(t *testing.T) {
	got := newClassifier().Classify(RecipeSubject{
		Name:        "Batido de banana",
		Description: "Desayuno dulce con miel",
		CookingTime: util.IntPtr(10),
	})

	assert.Equal(t, "desayunos_meriendas", got.Category)
	assert.Equal(t, "dulces", util.DerefString(got.Subcategory))
	assert.Equal(t, []string{"desayuno", "rapido"}, got.Tags)
	assert.InDelta(t, 0.9, got.Confidence, 1e-9)
}

func TestClassifyEquivalencyRecipe(t *testing.T) {
	got := newClassifier().Classify(RecipeSubject{Name: "Equivalencia de carne"})
	assert.Equal(t, "equivalencias", got.Category)
	assert.Equal(t, "proteinas", util.DerefString(got.Subcategory))
}

func TestClassifyAmbiguousRecipe(t *testing.T) {
	got := newClassifier().Classify(RecipeSubject{Name: "Mezcla X"})

	assert.Equal(t, "almuerzos_cenas", got.Category)
	assert.Nil(t, got.Subcategory)
	assert.Empty(t, got.Tags)
	assert.InDelta(t, 0.3, got.Confidence, 1e-9)
	assert.Equal(t, []string{"Limited keyword matches found"}, got.Reasoning)
}

func TestClassifyTieGoesToFirstCategory(t *testing.T) {
	got := newClassifier().Classify(RecipeSubject{Name: "almuerzo o desayuno"})
	assert.Equal(t, "almuerzos_cenas", got.Category)
}

func TestClassifyIsDeterministic(t *testing.T) {
	c := newClassifier()
	s := ForRecipe(internal.Recipe{
		Name:        "Ensalada mixta",
		Description: "Cena vegetariana",
		Ingredients: []internal.Ingredient{{Name: "lechuga"}, {Name: "tomate"}},
	})
	first := c.Classify(s)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, c.Classify(s))
	}
}

func TestClassifyIngredient(t *testing.T) {
	c := newClassifier()

	got := c.Classify(IngredientSubject{Ingredient: internal.Ingredient{
		Name:              "Leche sin lactosa",
		IngredientType:    internal.IngredientDairy,
		PreparationMethod: util.StringPtr("descremada"),
		IsOptional:        true,
	}})
	assert.Equal(t, "lacteos", got.Category)
	assert.Equal(t, "dairy", util.DerefString(got.Subcategory))
	assert.Equal(t, 0.8, got.Confidence)
	assert.Equal(t, []string{"sin_lactosa", "preparacion_descremada", "opcional"}, got.Tags)

	other := c.Classify(IngredientSubject{Ingredient: internal.Ingredient{Name: "polvo de hornear", IngredientType: internal.IngredientOther}})
	assert.Equal(t, "otros", other.Category)
	assert.Nil(t, other.Subcategory)
	assert.Equal(t, 0.6, other.Confidence)
	assert.Equal(t, []string{"No specific type identified"}, other.Reasoning)
}

func TestClassifyMealPlan(t *testing.T) {
	c := newClassifier()

	got := c.Classify(MealPlanSubject{
		PlanType:            "semanal",
		Objective:           "Quiero bajar de peso",
		ActivityLevel:       "moderada",
		EconomicLevel:       "bajo",
		DietaryRestrictions: []string{"vegetariano"},
	})
	assert.Equal(t, "plan_nutricional", got.Category)
	assert.Equal(t, "perdida_peso", util.DerefString(got.Subcategory))
	assert.Equal(t, 0.9, got.Confidence)
	assert.Equal(t, []string{"tipo_semanal", "actividad_moderada", "vegetariano", "economico_bajo"}, got.Tags)

	assert.Equal(t, "general", util.DerefString(c.Classify(MealPlanSubject{}).Subcategory))
}

func TestBatch(t *testing.T) {
	out := newClassifier().Batch([]Subject{
		RecipeSubject{Name: "Tostadas de desayuno"},
		IngredientSubject{Ingredient: internal.Ingredient{Name: "arroz", IngredientType: internal.IngredientCarbohydrate}},
		MealPlanSubject{Objective: "ganar masa muscular"},
	})

	require.Len(t, out, 3)
	assert.Equal(t, "desayunos_meriendas", out[0].Category)
	assert.Equal(t, "carbohidratos", out[1].Category)
	assert.Equal(t, "ganancia_peso", util.DerefString(out[2].Subcategory))
}
