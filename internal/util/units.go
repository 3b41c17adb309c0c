package util

import "nutridoc/internal/lexicon"

// UnitToGrams converts amount of unit into grams for the given ingredient.
// It returns nil when the unit has no known weight.
func UnitToGrams(lex *lexicon.Lexicon, amount float64, unit, ingredient string) *float64 {
	g, ok := lex.ToGrams(amount, unit, ingredient)
	if !ok {
		return nil
	}
	return FloatPtr(g)
}
