package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

type docxTable struct {
	rows [][]string
	row  []string
	cell strings.Builder
	inTC bool
}

// loadDOCX reads word/document.xml, keeping body paragraphs (with heading
// levels from their style) and tables in document order.
func loadDOCX(doc *RawDocument, data []byte) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	var docFile *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return errors.New("word/document.xml not found in archive")
	}
	rc, err := docFile.Open()
	if err != nil {
		return fmt.Errorf("open document.xml: %w", err)
	}
	defer rc.Close()

	var (
		tables      []*docxTable
		para        strings.Builder
		style       string
		inParagraph bool
		inText      bool
		lastHeading string
	)
	decoder := xml.NewDecoder(rc)
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("decode document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				tables = append(tables, &docxTable{})
			case "tr":
				if len(tables) > 0 {
					tables[len(tables)-1].row = nil
				}
			case "tc":
				if len(tables) > 0 {
					tbl := tables[len(tables)-1]
					tbl.cell.Reset()
					tbl.inTC = true
				}
			case "p":
				inParagraph = true
				para.Reset()
				style = ""
			case "pStyle":
				if inParagraph {
					style = attr(t, "val")
				}
			case "t":
				inText = inParagraph
			case "tab":
				if inParagraph {
					para.WriteString(" ")
				}
			case "br":
				if inParagraph {
					para.WriteString("\n")
				}
			}

		case xml.CharData:
			if inText {
				para.Write(t)
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if !inParagraph {
					continue
				}
				inParagraph = false
				text := strings.TrimSpace(para.String())
				if text == "" {
					continue
				}
				if len(tables) > 0 && tables[len(tables)-1].inTC {
					tbl := tables[len(tables)-1]
					if tbl.cell.Len() > 0 {
						tbl.cell.WriteString("\n")
					}
					tbl.cell.WriteString(text)
					continue
				}
				level := headingLevel(style)
				if level > 0 {
					lastHeading = text
				}
				doc.Paragraphs = append(doc.Paragraphs, Paragraph{Text: text, Style: style, HeadingLevel: level})
			case "tc":
				if len(tables) > 0 {
					tbl := tables[len(tables)-1]
					tbl.row = append(tbl.row, strings.TrimSpace(tbl.cell.String()))
					tbl.inTC = false
				}
			case "tr":
				if len(tables) > 0 {
					tbl := tables[len(tables)-1]
					tbl.rows = append(tbl.rows, tbl.row)
					tbl.row = nil
				}
			case "tbl":
				if len(tables) == 0 {
					continue
				}
				tbl := tables[len(tables)-1]
				tables = tables[:len(tables)-1]
				if len(tables) > 0 {
					// nested table: flatten into the enclosing cell
					parent := tables[len(tables)-1]
					for _, row := range tbl.rows {
						if parent.cell.Len() > 0 {
							parent.cell.WriteString("\n")
						}
						parent.cell.WriteString(strings.Join(row, " "))
					}
					continue
				}
				if table, ok := newTable(lastHeading, tbl.rows); ok {
					doc.Tables = append(doc.Tables, table)
				}
			}
		}
	}
	return nil
}

func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// headingLevel maps paragraph style names such as "Heading2", "Título 1"
// or "Title" to a heading level.
func headingLevel(style string) int {
	lower := strings.ToLower(strings.ReplaceAll(style, " ", ""))
	switch lower {
	case "title", "titulo", "título":
		return 1
	case "subtitle", "subtitulo", "subtítulo":
		return 2
	}
	for _, prefix := range []string{"heading", "título", "titulo", "encabezado"} {
		if !strings.HasPrefix(lower, prefix) {
			continue
		}
		rest := lower[len(prefix):]
		if len(rest) == 1 && rest[0] >= '1' && rest[0] <= '6' {
			return int(rest[0] - '0')
		}
	}
	return 0
}
