package validate

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/olekukonko/tablewriter"

	"nutridoc/internal"
	"nutridoc/internal/extract"
)

const (
	minNameLength        = 3
	maxNameLength        = 100
	minDescriptionLength = 10
	minInstructionLength = 5
)

// Validator checks extracted recipes for completeness and plausibility. It
// only annotates: records are never changed or dropped.
type Validator struct {
	nutrition *extract.NutritionExtractor
}

func New(nutrition *extract.NutritionExtractor) *Validator {
	return &Validator{nutrition: nutrition}
}

func result(level internal.ValidationLevel, field, message, fix string) internal.ValidationResult {
	return internal.ValidationResult{Level: level, Field: field, Message: message, SuggestedFix: fix}
}

func (v *Validator) ValidateRecipe(r internal.Recipe) []internal.ValidationResult {
	var out []internal.ValidationResult
	out = append(out, requiredFields(r)...)
	out = append(out, recommendedFields(r)...)
	out = append(out, numericFields(r)...)
	out = append(out, contentQuality(r)...)
	out = append(out, v.nutritionalData(r.NutritionalInfo)...)
	out = append(out, ingredients(r.Ingredients)...)
	out = append(out, steps(r.PreparationSteps)...)
	return out
}

func requiredFields(r internal.Recipe) []internal.ValidationResult {
	fields := []struct{ field, value string }{
		{"name", r.Name},
		{"category", r.Category},
	}
	var out []internal.ValidationResult
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			out = append(out, result(internal.LevelError, f.field,
				fmt.Sprintf("Required field '%s' is missing or empty", f.field),
				fmt.Sprintf("Add %s to recipe", f.field)))
		}
	}
	return out
}

func recommendedFields(r internal.Recipe) []internal.ValidationResult {
	present := []struct {
		field string
		ok    bool
	}{
		{"ingredients", len(r.Ingredients) > 0},
		{"preparation_steps", len(r.PreparationSteps) > 0},
		{"nutritional_info", len(r.NutritionalInfo) > 0},
	}
	var out []internal.ValidationResult
	for _, p := range present {
		if !p.ok {
			out = append(out, result(internal.LevelWarning, p.field,
				fmt.Sprintf("Recommended field '%s' is missing or empty", p.field),
				fmt.Sprintf("Consider adding %s to recipe", p.field)))
		}
	}
	return out
}

func numericFields(r internal.Recipe) []internal.ValidationResult {
	fields := []struct {
		field string
		value *int
	}{
		{"cooking_time", r.CookingTime},
		{"prep_time", r.PrepTime},
		{"servings", r.Servings},
	}
	var out []internal.ValidationResult
	for _, f := range fields {
		if f.value != nil && *f.value < 0 {
			out = append(out, result(internal.LevelError, f.field,
				fmt.Sprintf("Field '%s' cannot be negative", f.field),
				fmt.Sprintf("Use positive value for %s", f.field)))
		}
	}
	return out
}

func contentQuality(r internal.Recipe) []internal.ValidationResult {
	var out []internal.ValidationResult
	if r.Name != "" {
		switch n := utf8.RuneCountInString(r.Name); {
		case n < minNameLength:
			out = append(out, result(internal.LevelWarning, "name", "Recipe name is too short", "Use more descriptive name"))
		case n > maxNameLength:
			out = append(out, result(internal.LevelWarning, "name", "Recipe name is too long", "Shorten recipe name"))
		}
	}
	if r.Description != "" && utf8.RuneCountInString(r.Description) < minDescriptionLength {
		out = append(out, result(internal.LevelInfo, "description", "Description is very short", "Add more detailed description"))
	}
	return out
}

// nutritionalData reuses the nutrition self-check: implausible calories are
// errors and a macro mismatch is a warning. Missing nutrients are already
// covered by the recommended-field check.
func (v *Validator) nutritionalData(info internal.NutritionInfo) []internal.ValidationResult {
	if len(info) == 0 || v.nutrition == nil {
		return nil
	}
	check := v.nutrition.Validate(info)
	var out []internal.ValidationResult
	for _, msg := range check.Errors {
		out = append(out, result(internal.LevelError, "nutritional_info.calories", msg, "Check calorie calculation"))
	}
	for _, msg := range check.Warnings {
		if strings.HasPrefix(msg, "Calorie mismatch") {
			out = append(out, result(internal.LevelWarning, "nutritional_info", msg, "Verify nutritional calculations"))
		}
	}
	return out
}

func ingredients(list []internal.Ingredient) []internal.ValidationResult {
	var out []internal.ValidationResult
	for i, ing := range list {
		field := fmt.Sprintf("ingredients[%d]", i)
		if strings.TrimSpace(ing.Name) == "" {
			out = append(out, result(internal.LevelError, field+".name", "Ingredient name is missing", "Add ingredient name"))
		}
		switch {
		case ing.Quantity != nil && ing.Unit == nil:
			out = append(out, result(internal.LevelWarning, field+".unit", "Ingredient has quantity but no unit", "Add unit for quantity"))
		case ing.Quantity == nil && ing.Unit != nil:
			out = append(out, result(internal.LevelWarning, field+".quantity", "Ingredient has unit but no quantity", "Add quantity for unit"))
		}
		if ing.Quantity != nil && *ing.Quantity < 0 {
			out = append(out, result(internal.LevelError, field+".quantity", "Ingredient quantity cannot be negative", "Use positive quantity"))
		}
	}
	return out
}

func steps(list []internal.PreparationStep) []internal.ValidationResult {
	var out []internal.ValidationResult
	for i, s := range list {
		field := fmt.Sprintf("preparation_steps[%d]", i)
		instruction := strings.TrimSpace(s.Instruction)
		switch {
		case instruction == "":
			out = append(out, result(internal.LevelError, field+".instruction", "Step instruction is missing", "Add instruction text"))
		case utf8.RuneCountInString(instruction) < minInstructionLength:
			out = append(out, result(internal.LevelWarning, field+".instruction", "Step instruction is too short", "Add more detailed instruction"))
		}
		if s.StepNumber != i+1 {
			out = append(out, result(internal.LevelWarning, field+".step_number", "Step number doesn't match position", "Fix step numbering"))
		}
	}
	return out
}

type Summary struct {
	TotalRecipes        int `json:"total_recipes"`
	ValidRecipes        int `json:"valid_recipes"`
	RecipesWithErrors   int `json:"recipes_with_errors"`
	RecipesWithWarnings int `json:"recipes_with_warnings"`
	TotalErrors         int `json:"total_errors"`
	TotalWarnings       int `json:"total_warnings"`
	TotalInfo           int `json:"total_info"`
}

// Entry is one finding tagged with the recipe it belongs to.
type Entry struct {
	RecipeIndex int    `json:"recipe_index"`
	RecipeName  string `json:"recipe_name"`
	internal.ValidationResult
}

type BatchReport struct {
	Summary Summary `json:"summary"`
	Results []Entry `json:"results"`
}

// ValidateBatch validates every recipe. A recipe counts as valid when it has
// neither errors nor warnings.
func (v *Validator) ValidateBatch(recipes []internal.Recipe) BatchReport {
	rep := BatchReport{Summary: Summary{TotalRecipes: len(recipes)}, Results: []Entry{}}
	for i, r := range recipes {
		var errs, warns int
		for _, res := range v.ValidateRecipe(r) {
			switch res.Level {
			case internal.LevelError:
				errs++
			case internal.LevelWarning:
				warns++
			default:
				rep.Summary.TotalInfo++
			}
			name := r.Name
			if name == "" {
				name = "Unknown"
			}
			rep.Results = append(rep.Results, Entry{RecipeIndex: i, RecipeName: name, ValidationResult: res})
		}
		rep.Summary.TotalErrors += errs
		rep.Summary.TotalWarnings += warns
		switch {
		case errs > 0:
			rep.Summary.RecipesWithErrors++
		case warns > 0:
			rep.Summary.RecipesWithWarnings++
		default:
			rep.Summary.ValidRecipes++
		}
	}
	return rep
}

// Report renders the batch as text: a summary table, then errors and
// warnings one block per finding.
func Report(rep BatchReport) string {
	var b strings.Builder
	b.WriteString("RECIPE VALIDATION REPORT\n")

	s := rep.Summary
	tw := tablewriter.NewWriter(&b)
	tw.SetHeader([]string{"Metric", "Count"})
	for _, row := range []struct {
		label string
		n     int
	}{
		{"Total recipes", s.TotalRecipes},
		{"Valid recipes", s.ValidRecipes},
		{"Recipes with errors", s.RecipesWithErrors},
		{"Recipes with warnings", s.RecipesWithWarnings},
		{"Total errors", s.TotalErrors},
		{"Total warnings", s.TotalWarnings},
		{"Total info", s.TotalInfo},
	} {
		tw.Append([]string{row.label, strconv.Itoa(row.n)})
	}
	tw.Render()

	for _, level := range []internal.ValidationLevel{internal.LevelError, internal.LevelWarning} {
		title := "ERRORS"
		if level == internal.LevelWarning {
			title = "WARNINGS"
		}
		wrote := false
		for _, e := range rep.Results {
			if e.Level != level {
				continue
			}
			if !wrote {
				fmt.Fprintf(&b, "\n%s:\n%s\n", title, strings.Repeat("-", 20))
				wrote = true
			}
			fmt.Fprintf(&b, "Recipe: %s\nField: %s\nMessage: %s\n", e.RecipeName, e.Field, e.Message)
			if e.SuggestedFix != "" {
				fmt.Fprintf(&b, "Fix: %s\n", e.SuggestedFix)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
