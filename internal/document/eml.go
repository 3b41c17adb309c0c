package document

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jhillyerd/enmime"
)

// loadEML reads the subject as a heading, the body as paragraphs and tables,
// and merges every attachment in a supported format. Attachments that fail
// to parse are skipped.
func loadEML(doc *RawDocument, data []byte) error {
	env, err := enmime.ReadEnvelope(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("read envelope: %w", err)
	}

	if subject := normalizeSpaces(env.GetHeader("Subject")); subject != "" {
		doc.Paragraphs = append(doc.Paragraphs, Paragraph{Text: subject, Style: "subject", HeadingLevel: 1})
	}

	if env.HTML != "" {
		body := &RawDocument{}
		if err := loadHTML(body, []byte(env.HTML)); err == nil {
			doc.Tables = append(doc.Tables, body.Tables...)
			if strings.TrimSpace(env.Text) == "" {
				doc.Paragraphs = append(doc.Paragraphs, body.Paragraphs...)
			}
		}
	}
	for _, line := range splitLines(env.Text) {
		doc.Paragraphs = append(doc.Paragraphs, Paragraph{Text: normalizeSpaces(line)})
	}

	for _, att := range env.Attachments {
		name := strings.TrimSpace(att.FileName)
		if format, ok := FormatOf(name); !ok || format == FormatEML {
			continue
		}
		sub, err := LoadBytes(name, att.Content)
		if err != nil {
			continue
		}
		doc.Tables = append(doc.Tables, sub.Tables...)
		doc.Paragraphs = append(doc.Paragraphs, sub.Paragraphs...)
	}
	return nil
}
