package document

import (
	"bytes"
	"fmt"

	pdf "github.com/ledongthuc/pdf"
)

// loadPDF keeps one paragraph per non-empty text line. PDF tables are not
// reconstructed.
func loadPDF(doc *RawDocument, data []byte) error {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("open pdf: %w", err)
	}
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		for _, line := range splitLines(text) {
			doc.Paragraphs = append(doc.Paragraphs, Paragraph{Text: normalizeSpaces(line)})
		}
	}
	return nil
}
