package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"nutridoc/internal"
	"nutridoc/internal/document"
	"nutridoc/internal/embedding"
	"nutridoc/internal/storage"
)

func writeXLSX(t *testing.T, path, sheet string, rows [][]any) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		t.Fatal(err)
	}
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
}

// fixtureDir holds one lunch workbook, one equivalency workbook, a corrupt
// workbook and an html page with no recognizable layout.
func fixtureDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeXLSX(t, filepath.Join(dir, "almuerzos.xlsx"), "Pollo", [][]any{
		{"Nombre", "Ingredientes", "Preparación", "Tiempo", "Calorías"},
		{"Pechuga grillada", "150 g de pechuga\nsal", "Grillar la pechuga 10 minutos.", "25 min", "320 kcal"},
		{"Pollo al horno", "1 pollo entero\n2 papas", "Hornear a 180 °C durante 50 minutos.", "60 min", ""},
	})
	writeXLSX(t, filepath.Join(dir, "equivalencias.xlsx"), "Cereales", [][]any{
		{"Alimento", "Porción", "Peso", "Proteínas", "Carbohidratos", "Grasas"},
		{"Arroz integral", "1 taza", "200 g", "4", "45", "1"},
	})
	if err := os.WriteFile(filepath.Join(dir, "cenas_rotas.xlsx"), []byte("not a workbook"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notas.html"), []byte("<html><body><p>Hola mundo</p></body></html>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "leeme.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func statuses(ds internal.Dataset) map[string]internal.ProcessingStatus {
	out := map[string]internal.ProcessingStatus{}
	for _, f := range ds.ProcessedFiles {
		out[filepath.Base(f.FilePath)] = f.Status
	}
	return out
}

func TestProcessDirectoryMissing(t *testing.T) {
	o := NewOrchestrator(Options{})
	_, err := o.ProcessDirectory(context.Background(), filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, ErrInputDir) {
		t.Fatalf("expected ErrInputDir, got %v", err)
	}
}

func TestProcessDirectoryIsolatesFailures(t *testing.T) {
	dir := fixtureDir(t)
	o := NewOrchestrator(Options{})
	rep, err := o.ProcessDirectory(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}

	want := map[string]internal.ProcessingStatus{
		"almuerzos.xlsx":     internal.StatusCompleted,
		"cenas_rotas.xlsx":   internal.StatusError,
		"equivalencias.xlsx": internal.StatusCompleted,
		"notas.html":         internal.StatusSkipped,
	}
	got := statuses(o.Dataset())
	if len(got) != len(want) {
		t.Fatalf("processed %v, want %v", got, want)
	}
	for name, status := range want {
		if got[name] != status {
			t.Fatalf("%s: status %s, want %s", name, got[name], status)
		}
	}

	// Files are processed in name order.
	if first := filepath.Base(o.Dataset().ProcessedFiles[0].FilePath); first != "almuerzos.xlsx" {
		t.Fatalf("first processed file = %s", first)
	}

	s := rep.Summary
	if s.TotalFilesProcessed != 4 || s.SuccessfulFiles != 2 || s.FailedFiles != 1 || s.SkippedFiles != 1 {
		t.Fatalf("unexpected summary %+v", s)
	}
	if s.TotalRecipes != 2 || s.TotalEquivalencies != 1 {
		t.Fatalf("unexpected record counts %+v", s)
	}
	if s.SuccessRate != 50 {
		t.Fatalf("success rate = %v", s.SuccessRate)
	}
	if len(rep.ProcessingDetails.Errors) != 2 {
		t.Fatalf("errors = %+v", rep.ProcessingDetails.Errors)
	}
	if rep.RunID == "" || rep.RunID != o.RunID() {
		t.Fatalf("run id %q", rep.RunID)
	}
	if rep.DataSummary.EquivalenciesByGroup["cereales"] != 1 {
		t.Fatalf("equivalencies by group = %v", rep.DataSummary.EquivalenciesByGroup)
	}
	if rep.DataSummary.NutritionalCoverage[internal.NutrientCalories] == 0 {
		t.Fatalf("coverage = %v", rep.DataSummary.NutritionalCoverage)
	}
	if rep.Validation.Summary.TotalRecipes != 2 {
		t.Fatalf("validation summary = %+v", rep.Validation.Summary)
	}
}

func TestProcessFileEnrichesRecords(t *testing.T) {
	dir := fixtureDir(t)
	o := NewOrchestrator(Options{})

	res := o.ProcessFile(context.Background(), filepath.Join(dir, "almuerzos.xlsx"))
	if res.Status != internal.StatusCompleted {
		t.Fatalf("status %s: %s", res.Status, res.Error)
	}
	if res.FileType != internal.KindLunchDinner || res.Metadata.ParserUsed != string(internal.KindLunchDinner) {
		t.Fatalf("unexpected type %s / %+v", res.FileType, res.Metadata)
	}
	if res.Metadata.FileSize == 0 || res.Metadata.ProcessedTimestamp == "" {
		t.Fatalf("missing metadata %+v", res.Metadata)
	}
	if res.RecordsProcessed != 2 || len(res.Recipes) != 2 {
		t.Fatalf("records = %d", res.RecordsProcessed)
	}

	r := res.Recipes[0]
	if r.Classification == nil || r.ProcessingMetadata == nil {
		t.Fatalf("recipe not enriched: %+v", r)
	}
	if r.ProcessingMetadata.Version != "1.0" || len(r.ProcessingMetadata.ExtractorsUsed) == 0 {
		t.Fatalf("processing metadata %+v", r.ProcessingMetadata)
	}
	cal := r.NutritionalInfo[internal.NutrientCalories]
	if cal.Value != 320 || cal.Source != internal.SourceTableColumn {
		t.Fatalf("table calories should win, got %+v", cal)
	}
	if len(r.Ingredients) == 0 || len(r.PreparationSteps) == 0 {
		t.Fatalf("ingredients/steps missing: %+v", r)
	}

	eq := o.ProcessFile(context.Background(), filepath.Join(dir, "equivalencias.xlsx"))
	if eq.Status != internal.StatusCompleted || len(eq.Equivalencies) != 1 {
		t.Fatalf("equivalency result %+v", eq)
	}
	e := eq.Equivalencies[0]
	if e.Classification == nil || e.Classification.Category != "cereales" {
		t.Fatalf("equivalency classification %+v", e.Classification)
	}
	if len(e.Portions) == 0 {
		t.Fatal("equivalency portions not extracted")
	}
}

func TestProcessFileRecoversPanics(t *testing.T) {
	o := NewOrchestrator(Options{})
	o.load = func(string) (*document.RawDocument, error) { panic("boom") }

	res := o.ProcessFile(context.Background(), "almuerzos.xlsx")
	if res.Status != internal.StatusError {
		t.Fatalf("status = %s", res.Status)
	}
	if !strings.Contains(res.Error, "boom") {
		t.Fatalf("error = %q", res.Error)
	}
}

func TestProcessDirectoryStopsOnCancel(t *testing.T) {
	dir := fixtureDir(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := NewOrchestrator(Options{})
	_, err := o.ProcessDirectory(ctx, dir)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if n := len(o.Dataset().ProcessedFiles); n != 0 {
		t.Fatalf("processed %d files after cancel", n)
	}
}

func TestProcessDirectoryFeedsSinks(t *testing.T) {
	dir := fixtureDir(t)
	db, err := storage.Open(filepath.Join(t.TempDir(), "db", "nutridoc.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	ctx := context.Background()
	o := NewOrchestrator(Options{Store: db, Sink: embedding.StoreSink{DB: db}})
	if _, err := o.ProcessDirectory(ctx, dir); err != nil {
		t.Fatal(err)
	}

	recipes, err := db.ListRecipes(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(recipes) != 2 {
		t.Fatalf("stored %d recipes", len(recipes))
	}
	docs, err := db.ListDocuments(ctx, o.RunID())
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 4 {
		t.Fatalf("stored %d documents", len(docs))
	}
	groups, err := db.CountEquivalenciesByGroup(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if groups["cereales"] != 1 {
		t.Fatalf("groups = %v", groups)
	}
	rows, err := db.ListEmbeddings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("stored %d embeddings", len(rows))
	}
}
