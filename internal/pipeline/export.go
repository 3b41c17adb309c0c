package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"nutridoc/internal"
	"nutridoc/internal/validate"
)

const (
	FormatJSON       = "json"
	FormatReport     = "report"
	FormatXLSX       = "xlsx"
	FormatProm       = "prom"
	FormatValidation = "validation"
)

var exportFiles = map[string]string{
	FormatJSON:       "processed_data.json",
	FormatReport:     "processing_report.json",
	FormatXLSX:       "processed_data.xlsx",
	FormatProm:       "metrics.prom",
	FormatValidation: "validation_report.txt",
}

// Export writes the requested formats into dir and returns the written path
// per format. Every format is checked before anything is written.
func (o *Orchestrator) Export(dir string, formats []string) (map[string]string, error) {
	for _, f := range formats {
		if _, ok := exportFiles[f]; !ok {
			return nil, fmt.Errorf("unsupported export format %q", f)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	written := map[string]string{}
	for _, f := range formats {
		path := filepath.Join(dir, exportFiles[f])
		var err error
		switch f {
		case FormatJSON:
			err = writeJSON(path, o.dataset)
		case FormatReport:
			err = writeJSON(path, o.Report())
		case FormatXLSX:
			err = ExportDatasetToXLSX(o.dataset, path)
		case FormatProm:
			err = o.metrics.WriteTextfile(path)
		case FormatValidation:
			text := validate.Report(o.validator.ValidateBatch(o.dataset.Recipes))
			err = os.WriteFile(path, []byte(text), 0o644)
		}
		if err != nil {
			return written, fmt.Errorf("export %s: %w", f, err)
		}
		written[f] = path
	}
	return written, nil
}

func writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// LoadDataset reads a processed_data.json export back.
func LoadDataset(path string) (internal.Dataset, error) {
	var ds internal.Dataset
	blob, err := os.ReadFile(path)
	if err != nil {
		return ds, err
	}
	if err := json.Unmarshal(blob, &ds); err != nil {
		return ds, fmt.Errorf("decode dataset %s: %w", filepath.Base(path), err)
	}
	return ds, nil
}

// ExportDatasetToXLSX writes recipes, equivalencies and file outcomes to one
// sheet each.
func ExportDatasetToXLSX(ds internal.Dataset, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	recipes := f.GetSheetName(0)
	if err := f.SetSheetName(recipes, "Recipes"); err != nil {
		return err
	}
	recipeRows := make([][]any, 0, len(ds.Recipes))
	for _, r := range ds.Recipes {
		category := r.Category
		var confidence any = ""
		if r.Classification != nil {
			category = r.Classification.Category
			confidence = r.Classification.Confidence
		}
		recipeRows = append(recipeRows, []any{
			r.ID, r.Name, category, r.Subcategory, r.SourceFile,
			len(r.Ingredients), len(r.PreparationSteps),
			nutrient(r.NutritionalInfo, internal.NutrientCalories),
			nutrient(r.NutritionalInfo, internal.NutrientProtein),
			nutrient(r.NutritionalInfo, internal.NutrientCarbs),
			nutrient(r.NutritionalInfo, internal.NutrientFat),
			derefInt(r.Servings), derefInt(r.CookingTime), r.Difficulty,
			strings.Join(r.Tags, ", "), confidence, len(r.Validation),
		})
	}
	writeSheet(f, "Recipes", []string{
		"id", "name", "category", "subcategory", "source_file",
		"ingredients", "steps", "calories", "protein", "carbs", "fat",
		"servings", "cooking_time", "difficulty", "tags", "confidence", "findings",
	}, recipeRows)

	if _, err := f.NewSheet("Equivalencies"); err != nil {
		return err
	}
	eqRows := make([][]any, 0, len(ds.Equivalencies))
	for _, e := range ds.Equivalencies {
		eqRows = append(eqRows, []any{
			e.ID, e.FoodName, e.FoodGroup, e.Portion, derefFloat(e.WeightGrams),
			nutrient(e.NutritionalInfo, internal.NutrientCalories),
			e.ExchangeUnit, e.SubstitutionCategory, e.SourceFile,
		})
	}
	writeSheet(f, "Equivalencies", []string{
		"id", "food_name", "food_group", "portion", "weight_grams",
		"calories", "exchange_unit", "substitution_category", "source_file",
	}, eqRows)

	if _, err := f.NewSheet("Files"); err != nil {
		return err
	}
	fileRows := make([][]any, 0, len(ds.ProcessedFiles))
	for _, p := range ds.ProcessedFiles {
		fileRows = append(fileRows, []any{
			filepath.Base(p.FilePath), string(p.FileType), string(p.Status),
			p.RecordsProcessed, p.ProcessingTime, p.Error,
		})
	}
	writeSheet(f, "Files", []string{"file", "type", "status", "records", "seconds", "error"}, fileRows)

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]any) {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for i, row := range rows {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}
		for j, v := range row {
			set(j+1, v)
		}
	}
}

func nutrient(info internal.NutritionInfo, key string) any {
	if v, ok := info[key]; ok {
		return v.Value
	}
	return ""
}

func derefFloat(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

func derefInt(v *int) any {
	if v == nil {
		return ""
	}
	return *v
}
