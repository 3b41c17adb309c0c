package document

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type Format string

const (
	FormatDOCX Format = "docx"
	FormatXLSX Format = "xlsx"
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
	FormatEML  Format = "eml"
)

var ErrUnsupportedFormat = errors.New("unsupported document format")

var extensions = map[string]Format{
	".docx": FormatDOCX,
	".xlsx": FormatXLSX,
	".html": FormatHTML,
	".htm":  FormatHTML,
	".pdf":  FormatPDF,
	".eml":  FormatEML,
}

// Table is a grid whose first row became Headers. Title is the sheet name,
// caption or nearest preceding heading, when there is one.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// Paragraph is a block of text. HeadingLevel is 0 for body text.
type Paragraph struct {
	Text         string
	Style        string
	HeadingLevel int
}

// RawDocument is the format-independent view of a loaded file.
type RawDocument struct {
	Path       string
	Format     Format
	Tables     []Table
	Paragraphs []Paragraph
}

// Text joins the paragraph texts with line breaks.
func (d *RawDocument) Text() string {
	parts := make([]string, 0, len(d.Paragraphs))
	for _, p := range d.Paragraphs {
		parts = append(parts, p.Text)
	}
	return strings.Join(parts, "\n")
}

// AllText is Text followed by every table title, header and cell.
func (d *RawDocument) AllText() string {
	var b strings.Builder
	b.WriteString(d.Text())
	for _, t := range d.Tables {
		b.WriteString("\n")
		if t.Title != "" {
			b.WriteString(t.Title + "\n")
		}
		b.WriteString(strings.Join(t.Headers, " "))
		for _, row := range t.Rows {
			b.WriteString("\n" + strings.Join(row, " "))
		}
	}
	return b.String()
}

// FormatOf maps a file extension to a format.
func FormatOf(path string) (Format, bool) {
	f, ok := extensions[strings.ToLower(filepath.Ext(path))]
	return f, ok
}

func Supported(path string) bool {
	_, ok := FormatOf(path)
	return ok
}

func Load(path string) (*RawDocument, error) {
	if !Supported(path) {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupportedFormat)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return LoadBytes(path, data)
}

// LoadBytes parses data in the format implied by name.
func LoadBytes(name string, data []byte) (*RawDocument, error) {
	format, ok := FormatOf(name)
	if !ok {
		return nil, fmt.Errorf("%s: %w", filepath.Base(name), ErrUnsupportedFormat)
	}
	doc := &RawDocument{Path: name, Format: format}
	var err error
	switch format {
	case FormatDOCX:
		err = loadDOCX(doc, data)
	case FormatXLSX:
		err = loadXLSX(doc, data)
	case FormatHTML:
		err = loadHTML(doc, data)
	case FormatPDF:
		err = loadPDF(doc, data)
	case FormatEML:
		err = loadEML(doc, data)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s %s: %w", format, filepath.Base(name), err)
	}
	return doc, nil
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalizeSpaces(input string) string {
	return strings.Join(strings.Fields(input), " ")
}

// newTable turns a grid into a table, taking the first non-empty row as the
// header and padding every row to the header width.
func newTable(title string, grid [][]string) (Table, bool) {
	start := -1
	for i, row := range grid {
		if !emptyRow(row) {
			start = i
			break
		}
	}
	if start < 0 {
		return Table{}, false
	}
	t := Table{Title: title, Headers: normalizeCells(grid[start])}
	for _, row := range grid[start+1:] {
		if emptyRow(row) {
			continue
		}
		cells := normalizeCells(row)
		for len(cells) < len(t.Headers) {
			cells = append(cells, "")
		}
		t.Rows = append(t.Rows, cells)
	}
	return t, true
}

// normalizeCells collapses spaces inside each cell, keeping one line per
// paragraph of multi-paragraph cells.
func normalizeCells(row []string) []string {
	out := make([]string, 0, len(row))
	for _, c := range row {
		lines := splitLines(c)
		for i, l := range lines {
			lines[i] = normalizeSpaces(l)
		}
		out = append(out, strings.Join(lines, "\n"))
	}
	return out
}

func emptyRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
