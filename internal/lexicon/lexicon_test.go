package lexicon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutridoc/internal"
)

func TestDefaultLoads(t *testing.T) {
	lex := Default()
	require.NotNil(t, lex)
	assert.Equal(t, "protein", lex.IngredientTypes[0].Name)
	assert.Equal(t, []string{"almuerzos_cenas", "desayunos_meriendas", "equivalencias", "recetas_detalladas"}, lex.RecipeCategories.Names())
	assert.Len(t, lex.UnitsIn("weight"), 5)
}

func TestMatchUnit(t *testing.T) {
	lex := Default()
	cases := []struct {
		text      string
		canonical string
		matched   string
	}{
		{text: "cucharadas de aceite", canonical: "cucharada", matched: "cucharadas"},
		{text: "gr de harina", canonical: "g", matched: "gr"},
		{text: "Kg de papas", canonical: "kg", matched: "Kg"},
		{text: "dientes de ajo", canonical: "diente", matched: "dientes"},
		{text: "cditas de sal", canonical: "cucharadita", matched: "cditas"},
		{text: "lata de atún", canonical: "lata", matched: "lata"},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			u, m, ok := lex.MatchUnit(tc.text)
			require.True(t, ok)
			assert.Equal(t, tc.canonical, u.Canonical)
			assert.Equal(t, tc.matched, m)
		})
	}

	_, _, ok := lex.MatchUnit("gotas de limón")
	assert.False(t, ok)
	_, _, ok = lex.MatchUnit("una cebolla")
	assert.False(t, ok)
}

func TestToGrams(t *testing.T) {
	lex := Default()

	g, ok := lex.ToGrams(2, "cucharada", "aceite de oliva")
	require.True(t, ok)
	assert.InDelta(t, 27.6, g, 1e-9)

	g, ok = lex.ToGrams(2, "cucharadas", "agua")
	require.True(t, ok)
	assert.InDelta(t, 30, g, 1e-9)

	g, ok = lex.ToGrams(3, "unidad", "huevos")
	require.True(t, ok)
	assert.InDelta(t, 180, g, 1e-9)

	g, ok = lex.ToGrams(1.5, "kg", "")
	require.True(t, ok)
	assert.InDelta(t, 1500, g, 1e-9)

	_, ok = lex.ToGrams(1, "lata", "atún")
	assert.False(t, ok)
	_, ok = lex.ToGrams(1, "puñado", "")
	assert.False(t, ok)
}

func TestToGramsIsLinear(t *testing.T) {
	lex := Default()
	for _, unit := range []string{"g", "kg", "mg", "oz", "lb", "ml", "l", "taza", "cucharada", "cucharadita", "unidad", "diente", "rodaja"} {
		for _, a := range []float64{0.25, 1, 3.5, 120} {
			one, ok := lex.ToGrams(a, unit, "leche")
			require.True(t, ok, unit)
			two, _ := lex.ToGrams(2*a, unit, "leche")
			assert.Equal(t, 2*one, two, unit)
		}
	}
}

func TestReference(t *testing.T) {
	lex := Default()
	cases := map[string]string{
		"pollo pechuga":     "pollo pechuga",
		"Pechuga de pollo":  "pollo pechuga",
		"arroz blanco":      "arroz blanco",
		"Fideos secos":      "pasta",
		"papas":             "papa",
		"Aceite de oliva":   "aceite oliva",
		"filete de merluza": "pescado blanco",
		"espinacas":         "verduras verdes",
	}
	for name, key := range cases {
		ref, ok := lex.Reference(name)
		require.True(t, ok, name)
		assert.Equal(t, key, ref.Key, name)
	}

	_, ok := lex.Reference("fresas")
	assert.False(t, ok)
}

func TestGroupsFirstIsOrdered(t *testing.T) {
	lex := Default()
	name, ok := lex.IngredientTypes.First("aceite de oliva")
	require.True(t, ok)
	assert.Equal(t, "fat", name)

	name, ok = lex.IngredientTypes.First("pechuga de pollo")
	require.True(t, ok)
	assert.Equal(t, "protein", name)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lex.yaml")
	content := `units:
  - category: weight
    units:
      - {canonical: g, grams: 1, aliases: [g, gramos]}
ingredient_types:
  - name: protein
    keywords: [tofu]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	lex, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1.0, lex.DefaultDensity)
	assert.Equal(t, 100.0, lex.DefaultItemGrams)
	name, ok := lex.IngredientTypes.First("tofu ahumado")
	require.True(t, ok)
	assert.Equal(t, "protein", name)

	_, err = Load([]byte("units:\n  - category: weight\n    units:\n      - {canonical: g}\n"))
	assert.Error(t, err)
}

func TestCookingMethodsMatchEnum(t *testing.T) {
	var want []string
	for _, m := range internal.CookingMethods() {
		want = append(want, string(m))
	}
	assert.Equal(t, want, Default().CookingMethods.Names())
}
