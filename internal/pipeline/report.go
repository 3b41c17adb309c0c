package pipeline

import (
	"time"

	"nutridoc/internal"
	"nutridoc/internal/validate"
)

var coverageNutrients = []string{
	internal.NutrientCalories,
	internal.NutrientProtein,
	internal.NutrientCarbs,
	internal.NutrientFat,
	internal.NutrientFiber,
}

type Summary struct {
	TotalFilesProcessed int     `json:"total_files_processed"`
	SuccessfulFiles     int     `json:"successful_files"`
	FailedFiles         int     `json:"failed_files"`
	SkippedFiles        int     `json:"skipped_files"`
	TotalRecipes        int     `json:"total_recipes"`
	TotalEquivalencies  int     `json:"total_equivalencies"`
	ProcessingTime      float64 `json:"processing_time"`
	SuccessRate         float64 `json:"success_rate"`
}

type ProcessingDetails struct {
	StartTime      string                      `json:"start_time"`
	EndTime        string                      `json:"end_time"`
	ProcessedFiles []internal.ProcessingResult `json:"processed_files"`
	Errors         []internal.DocumentError    `json:"errors"`
}

// QualityMetrics are percentages of recipes, except AvgConfidence which is
// the mean classification confidence.
type QualityMetrics struct {
	AvgConfidence          float64 `json:"avg_confidence"`
	CompleteRecipes        float64 `json:"complete_recipes"`
	RecipesWithIngredients float64 `json:"recipes_with_ingredients"`
	RecipesWithPreparation float64 `json:"recipes_with_preparation"`
	RecipesWithNutrition   float64 `json:"recipes_with_nutrition"`
}

type DataSummary struct {
	RecipesByCategory    map[string]int     `json:"recipes_by_category"`
	EquivalenciesByGroup map[string]int     `json:"equivalencies_by_group"`
	NutritionalCoverage  map[string]float64 `json:"nutritional_coverage"`
	QualityMetrics       QualityMetrics     `json:"quality_metrics"`
}

type Report struct {
	RunID             string               `json:"run_id"`
	Summary           Summary              `json:"summary"`
	ProcessingDetails ProcessingDetails    `json:"processing_details"`
	DataSummary       DataSummary          `json:"data_summary"`
	Validation        validate.BatchReport `json:"validation"`
	ProcessedData     internal.Dataset     `json:"processed_data"`
}

// Report summarizes everything processed so far.
func (o *Orchestrator) Report() Report {
	ds := o.dataset
	rep := Report{
		RunID:         o.runID,
		Summary:       summarize(ds),
		DataSummary:   dataSummary(ds),
		Validation:    o.validator.ValidateBatch(ds.Recipes),
		ProcessedData: ds,
		ProcessingDetails: ProcessingDetails{
			StartTime:      isoTime(o.started),
			EndTime:        isoTime(o.finished),
			ProcessedFiles: ds.ProcessedFiles,
			Errors:         ds.Errors,
		},
	}
	if !o.started.IsZero() && !o.finished.IsZero() {
		rep.Summary.ProcessingTime = o.finished.Sub(o.started).Seconds()
	}
	return rep
}

func isoTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func summarize(ds internal.Dataset) Summary {
	s := Summary{
		TotalFilesProcessed: len(ds.ProcessedFiles),
		TotalRecipes:        len(ds.Recipes),
		TotalEquivalencies:  len(ds.Equivalencies),
	}
	for _, f := range ds.ProcessedFiles {
		switch f.Status {
		case internal.StatusCompleted:
			s.SuccessfulFiles++
		case internal.StatusSkipped:
			s.SkippedFiles++
		default:
			s.FailedFiles++
		}
	}
	if s.TotalFilesProcessed > 0 {
		s.SuccessRate = percent(s.SuccessfulFiles, s.TotalFilesProcessed)
	}
	return s
}

func dataSummary(ds internal.Dataset) DataSummary {
	out := DataSummary{
		RecipesByCategory:    map[string]int{},
		EquivalenciesByGroup: map[string]int{},
		NutritionalCoverage:  map[string]float64{},
	}
	for _, r := range ds.Recipes {
		category := "unknown"
		if r.Classification != nil && r.Classification.Category != "" {
			category = r.Classification.Category
		}
		out.RecipesByCategory[category]++
	}
	for _, e := range ds.Equivalencies {
		group := e.FoodGroup
		if group == "" {
			group = "unknown"
		}
		out.EquivalenciesByGroup[group]++
	}

	total := len(ds.Recipes)
	if total == 0 {
		return out
	}
	for _, key := range coverageNutrients {
		n := 0
		for _, r := range ds.Recipes {
			if v, ok := r.NutritionalInfo[key]; ok && v.Value != 0 {
				n++
			}
		}
		out.NutritionalCoverage[key] = percent(n, total)
	}

	var confidence float64
	var complete, withIngredients, withSteps, withNutrition int
	for _, r := range ds.Recipes {
		if r.Classification != nil {
			confidence += r.Classification.Confidence
		}
		hasIngredients := len(r.Ingredients) > 0
		hasSteps := len(r.PreparationSteps) > 0
		hasNutrition := len(r.NutritionalInfo) > 0
		if hasIngredients {
			withIngredients++
		}
		if hasSteps {
			withSteps++
		}
		if hasNutrition {
			withNutrition++
		}
		if hasIngredients && hasSteps && hasNutrition {
			complete++
		}
	}
	out.QualityMetrics = QualityMetrics{
		AvgConfidence:          confidence / float64(total),
		CompleteRecipes:        percent(complete, total),
		RecipesWithIngredients: percent(withIngredients, total),
		RecipesWithPreparation: percent(withSteps, total),
		RecipesWithNutrition:   percent(withNutrition, total),
	}
	return out
}

func percent(n, total int) float64 {
	return float64(n) / float64(total) * 100
}
