package pipeline

import (
	"path/filepath"
	"strings"

	"nutridoc/internal"
	"nutridoc/internal/document"
	"nutridoc/internal/util"
)

type DetectResult struct {
	Kind   internal.DocumentKind
	Score  float64
	Reason string
}

type kindKeywords struct {
	kind     internal.DocumentKind
	filename []string
	content  []string
}

// Checked in order; the first kind with a hit wins.
var detectKeywords = []kindKeywords{
	{
		kind:     internal.KindLunchDinner,
		filename: []string{"almuerzo", "cena", "lunch", "dinner"},
		content:  []string{"pollo", "carne", "pescado", "ensalada"},
	},
	{
		kind:     internal.KindBreakfastSnack,
		filename: []string{"desayuno", "merienda", "breakfast", "snack"},
		content:  []string{"dulce", "salado", "colacion"},
	},
	{
		kind:     internal.KindEquivalency,
		filename: []string{"equivalencia", "equivalent", "intercambio"},
		content:  []string{"equivale", "intercambio", "porcion"},
	},
	{
		kind:     internal.KindDetailedRecipe,
		filename: []string{"receta", "recipe", "detallada"},
		content:  []string{"ingrediente", "preparacion", "paso"},
	},
}

// DetectKind picks the document layout from the file name, falling back to
// table titles, headers and paragraph text. doc may be nil.
func DetectKind(path string, doc *document.RawDocument) DetectResult {
	name := util.FoldKey(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	for _, k := range detectKeywords {
		if util.ContainsAny(name, k.filename) {
			return DetectResult{Kind: k.kind, Score: 1, Reason: "filename"}
		}
	}
	if doc == nil {
		return DetectResult{Kind: internal.KindUnknown, Reason: "none"}
	}

	text := util.FoldKey(detectText(doc))
	for _, k := range detectKeywords {
		hits := 0
		for _, kw := range k.content {
			if util.HasWordPrefix(text, kw) {
				hits++
			}
		}
		if hits > 0 {
			return DetectResult{Kind: k.kind, Score: float64(hits) / float64(len(k.content)), Reason: "content"}
		}
	}
	return DetectResult{Kind: internal.KindUnknown, Reason: "none"}
}

func detectText(doc *document.RawDocument) string {
	var b strings.Builder
	for _, t := range doc.Tables {
		b.WriteString(t.Title + " " + strings.Join(t.Headers, " ") + "\n")
	}
	b.WriteString(doc.Text())
	return b.String()
}
