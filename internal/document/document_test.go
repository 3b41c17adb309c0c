package document

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/jhillyerd/enmime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const docxBody = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Almuerzos de pollo</w:t></w:r></w:p>
<w:p><w:r><w:t xml:space="preserve">Pollo al horno </w:t></w:r><w:r><w:t>con papas</w:t></w:r></w:p>
<w:tbl>
<w:tr><w:tc><w:p><w:r><w:t>Nombre</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>Ingredientes</w:t></w:r></w:p></w:tc></w:tr>
<w:tr><w:tc><w:p><w:r><w:t>Pechuga grillada</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>150 g de pollo</w:t></w:r></w:p><w:p><w:r><w:t>sal</w:t></w:r></w:p></w:tc></w:tr>
<w:tr><w:tc><w:p></w:p></w:tc><w:tc><w:p></w:p></w:tc></w:tr>
</w:tbl>
<w:p><w:pPr><w:pStyle w:val="Title"/></w:pPr><w:r><w:t>Fin</w:t></w:r></w:p>
</w:body>
</w:document>`

func mkDOCX(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func mkXLSX(t *testing.T, sheets map[string][][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	first := true
	for name, rows := range sheets {
		if first {
			require.NoError(t, f.SetSheetName(f.GetSheetName(0), name))
			first = false
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, row := range rows {
			for c, v := range row {
				cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
				require.NoError(t, f.SetCellValue(name, cell, v))
			}
		}
	}
	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

func TestLoadDOCX(t *testing.T) {
	doc, err := LoadBytes("menu.docx", mkDOCX(t, docxBody))
	require.NoError(t, err)

	assert.Equal(t, FormatDOCX, doc.Format)
	require.Len(t, doc.Paragraphs, 3)
	assert.Equal(t, Paragraph{Text: "Almuerzos de pollo", Style: "Heading1", HeadingLevel: 1}, doc.Paragraphs[0])
	assert.Equal(t, "Pollo al horno con papas", doc.Paragraphs[1].Text)
	assert.Equal(t, 0, doc.Paragraphs[1].HeadingLevel)
	assert.Equal(t, 1, doc.Paragraphs[2].HeadingLevel)

	require.Len(t, doc.Tables, 1)
	tbl := doc.Tables[0]
	assert.Equal(t, "Almuerzos de pollo", tbl.Title)
	assert.Equal(t, []string{"Nombre", "Ingredientes"}, tbl.Headers)
	assert.Equal(t, [][]string{{"Pechuga grillada", "150 g de pollo\nsal"}}, tbl.Rows)
}

func TestLoadDOCXWithoutDocumentPart(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err := zw.Create("word/styles.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = LoadBytes("broken.docx", buf.Bytes())
	assert.ErrorContains(t, err, "word/document.xml not found")
}

func TestLoadXLSXPadsShortRows(t *testing.T) {
	blob := mkXLSX(t, map[string][][]any{
		"Desayunos": {
			{"Nombre", "Calorías", "Notas"},
			{"Avena con frutas", 320},
			{},
			{"Tostadas", 210, "integral"},
		},
	})
	doc, err := LoadBytes("desayunos.xlsx", blob)
	require.NoError(t, err)

	require.Len(t, doc.Tables, 1)
	tbl := doc.Tables[0]
	assert.Equal(t, "Desayunos", tbl.Title)
	assert.Equal(t, []string{"Nombre", "Calorías", "Notas"}, tbl.Headers)
	assert.Equal(t, [][]string{
		{"Avena con frutas", "320", ""},
		{"Tostadas", "210", "integral"},
	}, tbl.Rows)
	assert.Empty(t, doc.Paragraphs)
}

func TestLoadHTML(t *testing.T) {
	page := `<html><body>
<h2>Equivalencias de cereales</h2>
<p>Intercambios  por porción.</p>
<table>
  <tr><th>Alimento</th><th>Porción</th></tr>
  <tr><td>Arroz cocido</td><td>1/2 taza</td></tr>
  <tr><td><p>Pan</p></td><td>1 rodaja</td></tr>
</table>
</body></html>`
	doc, err := LoadBytes("equivalencias.html", []byte(page))
	require.NoError(t, err)

	require.Len(t, doc.Paragraphs, 2)
	assert.Equal(t, Paragraph{Text: "Equivalencias de cereales", Style: "h2", HeadingLevel: 2}, doc.Paragraphs[0])
	assert.Equal(t, "Intercambios por porción.", doc.Paragraphs[1].Text)

	require.Len(t, doc.Tables, 1)
	assert.Equal(t, "Equivalencias de cereales", doc.Tables[0].Title)
	assert.Equal(t, []string{"Alimento", "Porción"}, doc.Tables[0].Headers)
	assert.Equal(t, [][]string{{"Arroz cocido", "1/2 taza"}, {"Pan", "1 rodaja"}}, doc.Tables[0].Rows)
}

func TestLoadEMLMergesAttachments(t *testing.T) {
	xlsx := mkXLSX(t, map[string][][]any{
		"Hoja1": {{"Nombre", "Porción"}, {"Manzana", "1 unidad"}},
	})
	part, err := enmime.Builder().
		From("Nutrición", "nutricion@example.com").
		To("Equipo", "equipo@example.com").
		Subject("Equivalencias de frutas").
		Text([]byte("Adjunto la tabla.\nSaludos")).
		AddAttachment(xlsx, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "frutas.xlsx").
		AddAttachment([]byte("not an image"), "image/png", "logo.png").
		Build()
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, part.Encode(&buf))

	doc, err := LoadBytes("mail.eml", buf.Bytes())
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(doc.Paragraphs), 3)
	assert.Equal(t, Paragraph{Text: "Equivalencias de frutas", Style: "subject", HeadingLevel: 1}, doc.Paragraphs[0])
	assert.Equal(t, "Adjunto la tabla.", doc.Paragraphs[1].Text)
	require.Len(t, doc.Tables, 1)
	assert.Equal(t, [][]string{{"Manzana", "1 unidad"}}, doc.Tables[0].Rows)
}

func TestLoadFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "receta.html")
	require.NoError(t, os.WriteFile(path, []byte("<p>Receta de budín</p>"), 0o644))

	doc, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, doc.Path)
	assert.Equal(t, "Receta de budín", doc.Text())

	_, err = Load(filepath.Join(dir, "notas.txt"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Load(filepath.Join(dir, "missing.pdf"))
	assert.Error(t, err)
}

func TestAllTextIncludesTables(t *testing.T) {
	doc := &RawDocument{
		Paragraphs: []Paragraph{{Text: "Desayunos"}},
		Tables:     []Table{{Title: "Dulces", Headers: []string{"Nombre"}, Rows: [][]string{{"Panqueques"}}}},
	}
	assert.Equal(t, "Desayunos\nDulces\nNombre\nPanqueques", doc.AllText())
}

func TestHeadingLevel(t *testing.T) {
	cases := map[string]int{
		"Heading1":  1,
		"heading3":  3,
		"Título 2":  2,
		"Title":     1,
		"Subtitle":  2,
		"Normal":    0,
		"Heading10": 0,
	}
	for style, want := range cases {
		assert.Equal(t, want, headingLevel(style), style)
	}
}
