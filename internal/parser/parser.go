package parser

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"nutridoc/internal"
	"nutridoc/internal/document"
	"nutridoc/internal/extract"
	"nutridoc/internal/lexicon"
)

var (
	ErrUnknownKind = errors.New("unknown document kind")
	// ErrStructure is returned by Parse when the document does not have the
	// layout the parser expects.
	ErrStructure = errors.New("document structure does not match expected format")
)

// Deps are the shared, read-only collaborators of every parser.
type Deps struct {
	Lex         *lexicon.Lexicon
	Ingredients *extract.IngredientExtractor
	Steps       *extract.PreparationExtractor
	Nutrition   *extract.NutritionExtractor
	Portions    *extract.PortionExtractor
	Log         *zap.Logger
}

// NewDeps builds the extractors over lex. ref may be nil.
func NewDeps(lex *lexicon.Lexicon, ref extract.Reference, log *zap.Logger) Deps {
	if log == nil {
		log = zap.NewNop()
	}
	return Deps{
		Lex:         lex,
		Ingredients: extract.NewIngredientExtractor(lex),
		Steps:       extract.NewPreparationExtractor(lex),
		Nutrition:   extract.NewNutritionExtractor(lex, ref),
		Portions:    extract.NewPortionExtractor(lex),
		Log:         log,
	}
}

type Metadata struct {
	FilePath       string `json:"file_path"`
	TableCount     int    `json:"table_count"`
	ParagraphCount int    `json:"paragraph_count"`
}

// Result is what a parser returns for one document. Categories counts the
// records found per category (food group for equivalencies).
type Result struct {
	Type          internal.DocumentKind  `json:"type"`
	Categories    map[string]int         `json:"categories"`
	Recipes       []internal.Recipe      `json:"recipes"`
	Equivalencies []internal.Equivalency `json:"equivalencies"`
	Total         int                    `json:"total"`
	Metadata      Metadata               `json:"metadata"`
}

// Parser handles one known document layout. The set of implementations is
// closed: lunch/dinner, breakfast/snack, equivalencies and detailed recipes.
type Parser interface {
	Kind() internal.DocumentKind
	ValidateStructure(doc *document.RawDocument) bool
	Parse(doc *document.RawDocument) (Result, error)
	sealed()
}

func New(kind internal.DocumentKind, deps Deps) (Parser, error) {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	b := base{deps: deps, log: deps.Log.With(zap.String("parser", string(kind)))}
	switch kind {
	case internal.KindLunchDinner:
		return &lunchParser{base: b}, nil
	case internal.KindBreakfastSnack:
		return &breakfastParser{base: b}, nil
	case internal.KindEquivalency:
		return &equivalencyParser{base: b}, nil
	case internal.KindDetailedRecipe:
		return &detailedParser{base: b}, nil
	}
	return nil, fmt.Errorf("%s: %w", kind, ErrUnknownKind)
}

// Kinds lists the layouts New accepts, in detection order.
func Kinds() []internal.DocumentKind {
	return []internal.DocumentKind{
		internal.KindLunchDinner,
		internal.KindBreakfastSnack,
		internal.KindEquivalency,
		internal.KindDetailedRecipe,
	}
}

func newResult(kind internal.DocumentKind, doc *document.RawDocument) Result {
	return Result{
		Type:       kind,
		Categories: map[string]int{},
		Metadata: Metadata{
			FilePath:       doc.Path,
			TableCount:     len(doc.Tables),
			ParagraphCount: len(doc.Paragraphs),
		},
	}
}
