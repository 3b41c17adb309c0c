package document

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// loadXLSX turns every non-empty sheet into a table titled with the sheet name.
func loadXLSX(doc *RawDocument, data []byte) error {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		if t, ok := newTable(sheet, rows); ok {
			doc.Tables = append(doc.Tables, t)
		}
	}
	return nil
}
