package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func processFixtures(t *testing.T) *Orchestrator {
	t.Helper()
	o := NewOrchestrator(Options{})
	if _, err := o.ProcessDirectory(context.Background(), fixtureDir(t)); err != nil {
		t.Fatal(err)
	}
	return o
}

func TestExportAllFormats(t *testing.T) {
	o := processFixtures(t)
	out := filepath.Join(t.TempDir(), "out")

	written, err := o.Export(out, []string{FormatJSON, FormatReport, FormatXLSX, FormatProm, FormatValidation})
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"processed_data.json", "processing_report.json", "processed_data.xlsx", "metrics.prom", "validation_report.txt"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Fatalf("%s not written: %v", name, err)
		}
	}
	if written[FormatJSON] != filepath.Join(out, "processed_data.json") {
		t.Fatalf("written = %v", written)
	}

	report, err := os.ReadFile(written[FormatReport])
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{`"summary"`, `"processing_details"`, `"data_summary"`, `"nutritional_coverage"`, `"quality_metrics"`} {
		if !strings.Contains(string(report), key) {
			t.Fatalf("report missing %s", key)
		}
	}

	prom, err := os.ReadFile(written[FormatProm])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(prom), `nutridoc_documents_total{status="completed",type="almuerzos_cenas"} 1`) {
		t.Fatalf("unexpected metrics:\n%s", prom)
	}

	f, err := excelize.OpenFile(written[FormatXLSX])
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if got := f.GetSheetList(); !reflect.DeepEqual(got, []string{"Recipes", "Equivalencies", "Files"}) {
		t.Fatalf("sheets = %v", got)
	}
	name, err := f.GetCellValue("Recipes", "B2")
	if err != nil {
		t.Fatal(err)
	}
	if name != "Pechuga grillada" {
		t.Fatalf("B2 = %q", name)
	}
	files, err := f.GetRows("Files")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 5 {
		t.Fatalf("files sheet rows = %d", len(files))
	}
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	o := NewOrchestrator(Options{})
	out := filepath.Join(t.TempDir(), "out")
	if _, err := o.Export(out, []string{FormatJSON, "csv"}); err == nil {
		t.Fatal("expected error for csv")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("output dir should not exist, stat err = %v", err)
	}
}

func TestDatasetRoundTrip(t *testing.T) {
	o := processFixtures(t)
	written, err := o.Export(t.TempDir(), []string{FormatJSON})
	if err != nil {
		t.Fatal(err)
	}
	got, err := LoadDataset(written[FormatJSON])
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, o.Dataset()) {
		t.Fatalf("dataset changed across export:\n got %+v\nwant %+v", got, o.Dataset())
	}
}

func TestLoadDatasetRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed_data.json")
	if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadDataset(path); err == nil {
		t.Fatal("expected decode error")
	}
}
