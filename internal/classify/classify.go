package classify

import (
	"fmt"
	"strings"

	"nutridoc/internal"
	"nutridoc/internal/lexicon"
	"nutridoc/internal/util"
)

const (
	baseConfidence        = 0.5
	categoryBonus         = 0.2
	subcategoryBonus      = 0.2
	tagsBonus             = 0.1
	ambiguityPenalty      = 0.2
	tagsBonusThreshold    = 2
	ingredientTypedConf   = 0.8
	ingredientUntypedConf = 0.6
	mealPlanConfidence    = 0.9
	mealPlanCategory      = "plan_nutricional"
	defaultObjective      = "general"
	otherIngredients      = "otros"
	quickMinutes          = 15
	mediumMinutes         = 30
)

// Subject is something the classifier knows how to label.
type Subject interface {
	classify(c *Classifier) internal.Classification
}

type RecipeSubject struct {
	Name            string
	Description     string
	IngredientNames []string
	Difficulty      string
	CookingTime     *int
	EconomicLevel   string
}

// ForRecipe builds the subject for a parsed recipe.
func ForRecipe(r internal.Recipe) RecipeSubject {
	s := RecipeSubject{
		Name:          r.Name,
		Description:   r.Description,
		Difficulty:    r.Difficulty,
		CookingTime:   r.CookingTime,
		EconomicLevel: r.EconomicLevel,
	}
	for _, ing := range r.Ingredients {
		s.IngredientNames = append(s.IngredientNames, ing.Name)
	}
	return s
}

type IngredientSubject struct {
	Ingredient internal.Ingredient
}

type MealPlanSubject struct {
	PlanType            string
	Objective           string
	ActivityLevel       string
	EconomicLevel       string
	DietaryRestrictions []string
}

func (s RecipeSubject) classify(c *Classifier) internal.Classification     { return c.recipe(s) }
func (s IngredientSubject) classify(c *Classifier) internal.Classification { return c.ingredient(s) }
func (s MealPlanSubject) classify(c *Classifier) internal.Classification   { return c.mealPlan(s) }

var ingredientCategories = map[internal.IngredientType]string{
	internal.IngredientProtein:      "proteinas",
	internal.IngredientCarbohydrate: "carbohidratos",
	internal.IngredientVegetable:    "verduras",
	internal.IngredientFruit:        "frutas",
	internal.IngredientDairy:        "lacteos",
	internal.IngredientFat:          "grasas",
	internal.IngredientGrain:        "cereales",
	internal.IngredientLegume:       "legumbres",
	internal.IngredientSpice:        "condimentos",
	internal.IngredientCondiment:    "condimentos",
}

var (
	lunchFoodTypes     = []string{"pollo", "carne", "cerdo", "pescado", "mariscos", "vegetarianos", "ensaladas"}
	breakfastFoodTypes = []string{"dulces", "salados", "colaciones"}
)

// Classifier assigns categories, tags and a confidence with its reasoning.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	lex *lexicon.Lexicon
}

func New(lex *lexicon.Lexicon) *Classifier {
	return &Classifier{lex: lex}
}

func (c *Classifier) Classify(s Subject) internal.Classification {
	return s.classify(c)
}

func (c *Classifier) Batch(subjects []Subject) []internal.Classification {
	out := make([]internal.Classification, 0, len(subjects))
	for _, s := range subjects {
		out = append(out, c.Classify(s))
	}
	return out
}

func (c *Classifier) recipe(s RecipeSubject) internal.Classification {
	parts := append([]string{s.Name, s.Description}, s.IngredientNames...)
	text := strings.ToLower(strings.Join(parts, " "))

	category, categoryHits := best(c.lex.RecipeCategories, text)
	subGroups := c.subcategoryGroups(category)
	var sub *string
	var subHits []string
	if name, hits := best(subGroups, text); len(hits) > 0 {
		sub = util.StringPtr(name)
		subHits = hits
	}

	tags := c.recipeTags(text, s)

	conf := baseConfidence
	var reasoning []string
	if len(categoryHits) > 0 {
		conf += categoryBonus
		reasoning = append(reasoning, "Found category keywords: "+strings.Join(categoryHits, ", "))
	}
	if len(subHits) > 0 {
		conf += subcategoryBonus
		reasoning = append(reasoning, "Found subcategory keywords: "+strings.Join(subHits, ", "))
	}
	if len(tags) > tagsBonusThreshold {
		conf += tagsBonus
		reasoning = append(reasoning, fmt.Sprintf("Multiple relevant tags found: %d", len(tags)))
	}
	if len(categoryHits) == 0 && sub == nil {
		conf -= ambiguityPenalty
		reasoning = append(reasoning, "Limited keyword matches found")
	}

	return internal.Classification{
		Category:    category,
		Subcategory: sub,
		Confidence:  clamp01(conf),
		Reasoning:   reasoning,
		Tags:        tags,
	}
}

func (c *Classifier) subcategoryGroups(category string) lexicon.Groups {
	switch internal.DocumentKind(category) {
	case internal.KindLunchDinner:
		return subset(c.lex.FoodCategories, lunchFoodTypes)
	case internal.KindBreakfastSnack:
		return subset(c.lex.FoodCategories, breakfastFoodTypes)
	case internal.KindEquivalency:
		return c.lex.EquivalencyTypes
	}
	return nil
}

func (c *Classifier) recipeTags(text string, s RecipeSubject) []string {
	var tags []string
	tags = append(tags, c.lex.DietaryKeywords.Matches(text)...)
	tags = append(tags, c.lex.CookingStyles.Matches(text)...)
	tags = append(tags, c.lex.MealTypes.Matches(text)...)
	if s.Difficulty != "" {
		tags = append(tags, "dificultad_"+s.Difficulty)
	}
	if s.CookingTime != nil && *s.CookingTime > 0 {
		switch t := *s.CookingTime; {
		case t <= quickMinutes:
			tags = append(tags, "rapido")
		case t <= mediumMinutes:
			tags = append(tags, "medio_tiempo")
		default:
			tags = append(tags, "tiempo_largo")
		}
	}
	if s.EconomicLevel != "" {
		tags = append(tags, "economico_"+s.EconomicLevel)
	}
	return tags
}

func (c *Classifier) ingredient(s IngredientSubject) internal.Classification {
	ing := s.Ingredient
	category, ok := ingredientCategories[ing.IngredientType]
	if !ok {
		category = otherIngredients
	}

	out := internal.Classification{Category: category, Confidence: ingredientUntypedConf}
	if ing.IngredientType != "" && ing.IngredientType != internal.IngredientOther {
		out.Subcategory = util.StringPtr(string(ing.IngredientType))
		out.Confidence = ingredientTypedConf
		out.Reasoning = []string{"Ingredient type: " + string(ing.IngredientType)}
	} else {
		out.Reasoning = []string{"No specific type identified"}
	}

	name := strings.ToLower(ing.Name)
	out.Tags = append(out.Tags, c.lex.DietaryKeywords.Matches(name)...)
	if ing.PreparationMethod != nil && *ing.PreparationMethod != "" {
		out.Tags = append(out.Tags, "preparacion_"+*ing.PreparationMethod)
	}
	if ing.IsOptional {
		out.Tags = append(out.Tags, "opcional")
	}
	return out
}

func (c *Classifier) mealPlan(s MealPlanSubject) internal.Classification {
	objective := defaultObjective
	if name, ok := c.lex.PlanObjectives.First(strings.ToLower(s.Objective)); ok {
		objective = name
	}

	var tags []string
	if s.PlanType != "" {
		tags = append(tags, "tipo_"+s.PlanType)
	}
	if s.ActivityLevel != "" {
		tags = append(tags, "actividad_"+s.ActivityLevel)
	}
	tags = append(tags, s.DietaryRestrictions...)
	if s.EconomicLevel != "" {
		tags = append(tags, "economico_"+s.EconomicLevel)
	}

	return internal.Classification{
		Category:    mealPlanCategory,
		Subcategory: util.StringPtr(objective),
		Confidence:  mealPlanConfidence,
		Reasoning:   []string{"Plan type: " + s.PlanType, "Objective: " + s.Objective},
		Tags:        tags,
	}
}

// best returns the group with the most keyword hits in text; ties go to the
// earlier group. With no groups it returns an empty name.
func best(groups lexicon.Groups, text string) (string, []string) {
	name, top := "", []string(nil)
	hits := groups.Hits(text)
	for i, g := range groups {
		if i == 0 || len(hits[g.Name]) > len(top) {
			name, top = g.Name, hits[g.Name]
		}
	}
	return name, top
}

func subset(groups lexicon.Groups, names []string) lexicon.Groups {
	var out lexicon.Groups
	for _, n := range names {
		for _, g := range groups {
			if g.Name == n {
				out = append(out, g)
			}
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
