package lexicon

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"

	"gopkg.in/yaml.v3"
)

//go:embed lexicon.yaml
var defaultYAML []byte

// Group is a named keyword list. Keywords are lower-case.
type Group struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Groups is scanned in declaration order.
type Groups []Group

// First returns the first group with a keyword contained in text.
// text is expected to be lower-case.
func (gs Groups) First(text string) (string, bool) {
	for _, g := range gs {
		for _, kw := range g.Keywords {
			if strings.Contains(text, kw) {
				return g.Name, true
			}
		}
	}
	return "", false
}

// FirstFunc is First with a custom matcher.
func (gs Groups) FirstFunc(text string, match func(text, kw string) bool) (string, bool) {
	for _, g := range gs {
		for _, kw := range g.Keywords {
			if match(text, kw) {
				return g.Name, true
			}
		}
	}
	return "", false
}

// Hits returns the keywords of every group found in text, keyed by group name.
func (gs Groups) Hits(text string) map[string][]string {
	out := map[string][]string{}
	for _, g := range gs {
		for _, kw := range g.Keywords {
			if strings.Contains(text, kw) {
				out[g.Name] = append(out[g.Name], kw)
			}
		}
	}
	return out
}

// Matches returns the names of every group with a hit, in declaration order.
func (gs Groups) Matches(text string) []string {
	var out []string
	for _, g := range gs {
		for _, kw := range g.Keywords {
			if strings.Contains(text, kw) {
				out = append(out, g.Name)
				break
			}
		}
	}
	return out
}

func (gs Groups) Keywords(name string) []string {
	for _, g := range gs {
		if g.Name == name {
			return g.Keywords
		}
	}
	return nil
}

func (gs Groups) Names() []string {
	out := make([]string, 0, len(gs))
	for _, g := range gs {
		out = append(out, g.Name)
	}
	return out
}

type Unit struct {
	Canonical   string   `yaml:"canonical"`
	Grams       float64  `yaml:"grams"`
	Milliliters float64  `yaml:"milliliters"`
	PerItem     bool     `yaml:"per_item"`
	Aliases     []string `yaml:"aliases"`
	Category    string   `yaml:"-"`
}

type UnitCategory struct {
	Category string `yaml:"category"`
	Units    []Unit `yaml:"units"`
}

type Factor struct {
	Match string  `yaml:"match"`
	Value float64 `yaml:"value"`
}

// ReferenceFood holds nutrient values per 100 g.
type ReferenceFood struct {
	Key     string             `yaml:"key"`
	Head    string             `yaml:"head"`
	Aliases []string           `yaml:"aliases"`
	Per100g map[string]float64 `yaml:"per_100g"`
}

type Lexicon struct {
	Units             []UnitCategory  `yaml:"units"`
	DefaultDensity    float64         `yaml:"default_density"`
	Densities         []Factor        `yaml:"densities"`
	DefaultItemGrams  float64         `yaml:"default_item_grams"`
	ItemWeights       []Factor        `yaml:"item_weights"`
	NutrientReference []ReferenceFood `yaml:"nutrient_reference"`

	IngredientTypes       Groups   `yaml:"ingredient_types"`
	PreparationMethods    []string `yaml:"preparation_methods"`
	AlternativeIndicators []string `yaml:"alternative_indicators"`
	OptionalIndicators    []string `yaml:"optional_indicators"`
	NoteQualifiers        []string `yaml:"note_qualifiers"`

	StepTypes         Groups   `yaml:"step_types"`
	CookingMethods    Groups   `yaml:"cooking_methods"`
	Equipment         []string `yaml:"equipment"`
	Techniques        []string `yaml:"techniques"`
	CommonIngredients []string `yaml:"common_ingredients"`
	SafetyKeywords    []string `yaml:"safety_keywords"`

	RecipeCategories Groups `yaml:"recipe_categories"`
	MealTypes        Groups `yaml:"meal_types"`
	FoodCategories   Groups `yaml:"food_categories"`
	DietaryKeywords  Groups `yaml:"dietary_keywords"`
	CookingStyles    Groups `yaml:"cooking_styles"`
	EquivalencyTypes Groups `yaml:"equivalency_types"`
	PlanObjectives   Groups `yaml:"plan_objectives"`

	LunchCategories        Groups `yaml:"lunch_categories"`
	LunchSubcategories     Groups `yaml:"lunch_subcategories"`
	BreakfastCategories    Groups `yaml:"breakfast_categories"`
	BreakfastSubcategories Groups `yaml:"breakfast_subcategories"`
	FoodGroups             Groups `yaml:"food_groups"`

	units      []Unit
	unitRes    []*regexp.Regexp
	aliasIndex map[string]int
}

var defaultLexicon = sync.OnceValue(func() *Lexicon {
	lex, err := Load(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded lexicon: %v", err))
	}
	return lex
})

// Default returns the embedded lexicon. The value is shared and must not be modified.
func Default() *Lexicon {
	return defaultLexicon()
}

func LoadFile(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon: %w", err)
	}
	return Load(data)
}

func Load(data []byte) (*Lexicon, error) {
	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return nil, fmt.Errorf("parse lexicon: %w", err)
	}
	if err := lex.compile(); err != nil {
		return nil, err
	}
	return &lex, nil
}

func (l *Lexicon) compile() error {
	if l.DefaultDensity <= 0 {
		l.DefaultDensity = 1
	}
	if l.DefaultItemGrams <= 0 {
		l.DefaultItemGrams = 100
	}
	l.aliasIndex = map[string]int{}
	for _, cat := range l.Units {
		for _, u := range cat.Units {
			if u.Canonical == "" || len(u.Aliases) == 0 {
				return fmt.Errorf("lexicon unit in %q: canonical name and aliases required", cat.Category)
			}
			u.Category = cat.Category
			aliases := append([]string(nil), u.Aliases...)
			sort.SliceStable(aliases, func(i, j int) bool { return len(aliases[i]) > len(aliases[j]) })
			quoted := make([]string, 0, len(aliases))
			for _, a := range aliases {
				quoted = append(quoted, regexp.QuoteMeta(a))
			}
			re, err := regexp.Compile(`(?i)^(?:` + strings.Join(quoted, "|") + `)\b`)
			if err != nil {
				return fmt.Errorf("lexicon unit %q: %w", u.Canonical, err)
			}
			idx := len(l.units)
			l.units = append(l.units, u)
			l.unitRes = append(l.unitRes, re)
			l.aliasIndex[strings.ToLower(u.Canonical)] = idx
			for _, a := range u.Aliases {
				if _, ok := l.aliasIndex[strings.ToLower(a)]; !ok {
					l.aliasIndex[strings.ToLower(a)] = idx
				}
			}
		}
	}
	return nil
}

// MatchUnit matches a unit alias at the start of text and returns the unit
// together with the matched text.
func (l *Lexicon) MatchUnit(text string) (Unit, string, bool) {
	for i, re := range l.unitRes {
		if m := re.FindString(text); m != "" {
			return l.units[i], m, true
		}
	}
	return Unit{}, "", false
}

// LookupUnit resolves a canonical name or alias, ignoring case and a trailing dot.
func (l *Lexicon) LookupUnit(token string) (Unit, bool) {
	key := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(token)), ".")
	idx, ok := l.aliasIndex[key]
	if !ok {
		return Unit{}, false
	}
	return l.units[idx], true
}

// UnitsIn returns the units of one category in declaration order.
func (l *Lexicon) UnitsIn(category string) []Unit {
	var out []Unit
	for _, u := range l.units {
		if u.Category == category {
			out = append(out, u)
		}
	}
	return out
}

// ToGrams converts amount of unit into grams. Volume units use the density
// of the ingredient; per-item units use its typical item weight.
func (l *Lexicon) ToGrams(amount float64, unit, ingredient string) (float64, bool) {
	u, ok := l.LookupUnit(unit)
	if !ok {
		return 0, false
	}
	switch {
	case u.Milliliters > 0:
		return amount * u.Milliliters * l.Density(ingredient), true
	case u.PerItem:
		return amount * l.ItemGrams(ingredient), true
	case u.Grams > 0:
		return amount * u.Grams, true
	}
	return 0, false
}

func (l *Lexicon) Density(ingredient string) float64 {
	if f, ok := matchFactor(l.Densities, ingredient); ok {
		return f
	}
	return l.DefaultDensity
}

func (l *Lexicon) ItemGrams(ingredient string) float64 {
	if f, ok := matchFactor(l.ItemWeights, ingredient); ok {
		return f
	}
	return l.DefaultItemGrams
}

// Reference resolves a per-100 g reference food: exact key, then head noun,
// then aliases. Head and alias checks are done per word, tolerating plurals.
func (l *Lexicon) Reference(name string) (ReferenceFood, bool) {
	lower := strings.Join(words(name), " ")
	if lower == "" {
		return ReferenceFood{}, false
	}
	for _, ref := range l.NutrientReference {
		if lower == ref.Key {
			return ref, true
		}
	}
	ws := words(name)
	for _, ref := range l.NutrientReference {
		if ref.Head != "" && hasWord(ws, ref.Head) {
			return ref, true
		}
	}
	for _, ref := range l.NutrientReference {
		for _, a := range ref.Aliases {
			if hasWord(ws, a) {
				return ref, true
			}
		}
	}
	return ReferenceFood{}, false
}

func matchFactor(factors []Factor, ingredient string) (float64, bool) {
	ws := words(ingredient)
	for _, f := range factors {
		if hasWord(ws, f.Match) {
			return f.Value, true
		}
	}
	return 0, false
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func hasWord(ws []string, w string) bool {
	for _, x := range ws {
		if x == w || x == w+"s" || x == w+"es" {
			return true
		}
	}
	return false
}
