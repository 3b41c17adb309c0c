package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"nutridoc/internal"
	"nutridoc/internal/classify"
	"nutridoc/internal/document"
	"nutridoc/internal/embedding"
	"nutridoc/internal/extract"
	"nutridoc/internal/lexicon"
	"nutridoc/internal/metrics"
	"nutridoc/internal/parser"
	"nutridoc/internal/storage"
	"nutridoc/internal/validate"
)

const processingVersion = "1.0"

// ErrInputDir is returned when the input directory cannot be read.
var ErrInputDir = errors.New("input directory not accessible")

var (
	recipeExtractors      = []string{"ingredient", "preparation", "nutritional", "portion", "classification"}
	equivalencyExtractors = []string{"portion", "classification"}
)

// Ingredient type assumed for each equivalency food group.
var groupIngredientTypes = map[string]internal.IngredientType{
	"cereales":  internal.IngredientGrain,
	"proteinas": internal.IngredientProtein,
	"lacteos":   internal.IngredientDairy,
	"frutas":    internal.IngredientFruit,
	"verduras":  internal.IngredientVegetable,
	"grasas":    internal.IngredientFat,
	"azucares":  internal.IngredientCarbohydrate,
	"legumbres": internal.IngredientLegume,
}

type Options struct {
	Lexicon   *lexicon.Lexicon
	Reference extract.Reference
	Logger    *zap.Logger
	Metrics   *metrics.Recorder
	// Store and Sink are optional; nil disables them.
	Store    *storage.DB
	Sink     embedding.Sink
	Embedder embedding.Embedder
}

// Orchestrator runs documents through detection, parsing, enrichment and
// validation, and owns the dataset accumulated over one run.
type Orchestrator struct {
	deps       parser.Deps
	classifier *classify.Classifier
	validator  *validate.Validator
	log        *zap.Logger
	metrics    *metrics.Recorder
	store      *storage.DB
	sink       embedding.Sink
	embedder   embedding.Embedder
	load       func(path string) (*document.RawDocument, error)
	now        func() time.Time

	runID    string
	inputDir string
	started  time.Time
	finished time.Time
	dataset  internal.Dataset
}

func NewOrchestrator(opts Options) *Orchestrator {
	lex := opts.Lexicon
	if lex == nil {
		lex = lexicon.Default()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	rec := opts.Metrics
	if rec == nil {
		rec = metrics.New()
	}
	embedder := opts.Embedder
	if embedder == nil {
		embedder = embedding.HashEmbedder{}
	}
	deps := parser.NewDeps(lex, opts.Reference, log)
	return &Orchestrator{
		deps:       deps,
		classifier: classify.New(lex),
		validator:  validate.New(deps.Nutrition),
		log:        log,
		metrics:    rec,
		store:      opts.Store,
		sink:       opts.Sink,
		embedder:   embedder,
		load:       document.Load,
		now:        time.Now,
		runID:      ulid.Make().String(),
		dataset:    emptyDataset(),
	}
}

func emptyDataset() internal.Dataset {
	return internal.Dataset{
		Recipes:        []internal.Recipe{},
		Equivalencies:  []internal.Equivalency{},
		ProcessedFiles: []internal.ProcessingResult{},
		Errors:         []internal.DocumentError{},
	}
}

func (o *Orchestrator) RunID() string { return o.runID }

func (o *Orchestrator) Dataset() internal.Dataset { return o.dataset }

func (o *Orchestrator) Metrics() *metrics.Recorder { return o.metrics }

// ProcessDirectory processes every supported file in dir, sorted by name.
// Per-document failures are recorded in the dataset; only an unreadable
// directory or a cancelled context stops the run.
func (o *Orchestrator) ProcessDirectory(ctx context.Context, dir string) (Report, error) {
	files, err := findDocuments(dir)
	if err != nil {
		return Report{}, err
	}

	o.inputDir = dir
	o.started = o.now()
	o.log.Info("processing directory", zap.String("dir", dir), zap.Int("files", len(files)), zap.String("run_id", o.runID))

	var runErr error
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		res := o.ProcessFile(ctx, path)
		o.integrate(res)
		o.persistDocument(ctx, res)
		o.log.Debug("progress", zap.Int("done", i+1), zap.Int("total", len(files)))
	}

	o.finished = o.now()
	o.metrics.MarkRun(o.finished)
	report := o.Report()
	o.persistRun(ctx, report)
	o.log.Info("processing finished",
		zap.Int("completed", report.Summary.SuccessfulFiles),
		zap.Int("failed", report.Summary.FailedFiles),
		zap.Int("skipped", report.Summary.SkippedFiles),
		zap.Float64("seconds", report.Summary.ProcessingTime),
	)
	return report, runErr
}

func findDocuments(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInputDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInputDir, dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInputDir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), "~$") || !document.Supported(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// ProcessFile runs one document to a terminal status. It never panics and
// never returns a non-terminal status.
func (o *Orchestrator) ProcessFile(ctx context.Context, path string) (res internal.ProcessingResult) {
	start := o.now()
	res = internal.ProcessingResult{FilePath: path, FileType: internal.KindUnknown, Status: internal.StatusPending}
	log := o.log.With(zap.String("file", filepath.Base(path)))

	defer func() {
		if r := recover(); r != nil {
			res.Status = internal.StatusError
			res.Error = fmt.Sprintf("panic: %v", r)
			res.Recipes, res.Equivalencies, res.RecordsProcessed = nil, nil, 0
			log.Error("document panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
		}
		took := o.now().Sub(start)
		res.ProcessingTime = took.Seconds()
		res.Metadata.ProcessedTimestamp = o.now().UTC().Format(time.RFC3339)
		o.metrics.ObserveDocument(string(res.FileType), string(res.Status), took)
		log.Info("document processed",
			zap.String("type", string(res.FileType)),
			zap.String("status", string(res.Status)),
			zap.Int("records", res.RecordsProcessed),
			zap.Duration("duration", took),
		)
	}()

	res.Status = internal.StatusInProgress
	if info, err := os.Stat(path); err == nil {
		res.Metadata.FileSize = info.Size()
	}
	if det := DetectKind(path, nil); det.Kind != internal.KindUnknown {
		res.FileType = det.Kind
	}
	if err := ctx.Err(); err != nil {
		return fail(res, err)
	}

	doc, err := o.load(path)
	if err != nil {
		log.Error("load failed", zap.Error(err))
		return fail(res, err)
	}

	det := DetectKind(path, doc)
	if det.Kind == internal.KindUnknown {
		res.Status = internal.StatusSkipped
		res.Error = "could not determine file type"
		return res
	}
	res.FileType = det.Kind
	log.Debug("kind detected", zap.String("type", string(det.Kind)), zap.String("reason", det.Reason), zap.Float64("score", det.Score))

	p, err := parser.New(det.Kind, o.deps)
	if err != nil {
		return fail(res, err)
	}
	res.Metadata.ParserUsed = string(p.Kind())
	if !p.ValidateStructure(doc) {
		res.Status = internal.StatusSkipped
		res.Error = parser.ErrStructure.Error()
		return res
	}

	parsed, err := p.Parse(doc)
	if errors.Is(err, parser.ErrStructure) {
		res.Status = internal.StatusSkipped
		res.Error = err.Error()
		return res
	}
	if err != nil {
		log.Error("parse failed", zap.Error(err))
		return fail(res, err)
	}

	processedAt := o.now().UTC().Format(time.RFC3339)
	for _, r := range parsed.Recipes {
		r = o.enrichRecipe(r, processedAt)
		r.Validation = o.validator.ValidateRecipe(r)
		res.Recipes = append(res.Recipes, r)
	}
	for _, e := range parsed.Equivalencies {
		res.Equivalencies = append(res.Equivalencies, o.enrichEquivalency(e, processedAt))
	}
	res.RecordsProcessed = len(res.Recipes) + len(res.Equivalencies)
	res.Status = internal.StatusCompleted
	return res
}

func fail(res internal.ProcessingResult, err error) internal.ProcessingResult {
	res.Status = internal.StatusError
	res.Error = fmt.Sprintf("error processing %s: %v", filepath.Base(res.FilePath), err)
	return res
}

// enrichRecipe fills what the parser left empty. Values a parser already set
// are kept, including nutrients read from table columns.
func (o *Orchestrator) enrichRecipe(r internal.Recipe, processedAt string) internal.Recipe {
	d := o.deps
	if len(r.Ingredients) == 0 && strings.TrimSpace(r.IngredientsText) != "" {
		r.Ingredients = d.Ingredients.FromText(r.IngredientsText)
	}
	if len(r.PreparationSteps) == 0 && strings.TrimSpace(r.PreparationText) != "" {
		r.PreparationSteps = d.Steps.FromText(r.PreparationText)
	}

	nutrition := d.Nutrition.FromText(r.Name + " " + r.Description)
	if len(nutrition) == 0 && len(r.Ingredients) > 0 {
		nutrition = d.Nutrition.FromIngredients(r.Ingredients)
	}
	if len(nutrition) > 0 {
		if r.NutritionalInfo == nil {
			r.NutritionalInfo = internal.NutritionInfo{}
		}
		for key, v := range nutrition {
			if _, ok := r.NutritionalInfo[key]; !ok {
				r.NutritionalInfo[key] = v
			}
		}
	}

	servings := ""
	if r.Servings != nil {
		servings = strconv.Itoa(*r.Servings) + " porciones"
	}
	if portionText := strings.TrimSpace(r.PortionSize + " " + servings); portionText != "" {
		if portions := d.Portions.FromText(portionText); len(portions) > 0 {
			r.Portions = portions
		}
	}

	c := o.classifier.Classify(classify.ForRecipe(r))
	r.Classification = &c
	r.ProcessingMetadata = &internal.ProcessingMetadata{
		ProcessedAt:    processedAt,
		ExtractorsUsed: recipeExtractors,
		Version:        processingVersion,
	}
	return r
}

func (o *Orchestrator) enrichEquivalency(e internal.Equivalency, processedAt string) internal.Equivalency {
	weight := ""
	if e.WeightGrams != nil {
		weight = strconv.FormatFloat(*e.WeightGrams, 'f', -1, 64) + " g"
	}
	if text := strings.TrimSpace(e.Portion + " " + weight); text != "" {
		if portions := o.deps.Portions.FromText(text); len(portions) > 0 {
			e.Portions = portions
		}
	}

	ing := internal.Ingredient{Name: e.FoodName, IngredientType: groupIngredientTypes[e.FoodGroup]}
	c := o.classifier.Classify(classify.IngredientSubject{Ingredient: ing})
	e.Classification = &c
	e.ProcessingMetadata = &internal.ProcessingMetadata{
		ProcessedAt:    processedAt,
		ExtractorsUsed: equivalencyExtractors,
		Version:        processingVersion,
	}
	return e
}

func (o *Orchestrator) integrate(res internal.ProcessingResult) {
	outcome := res
	outcome.Recipes, outcome.Equivalencies = nil, nil
	o.dataset.ProcessedFiles = append(o.dataset.ProcessedFiles, outcome)
	if res.Status != internal.StatusCompleted {
		o.dataset.Errors = append(o.dataset.Errors, internal.DocumentError{File: res.FilePath, Error: firstNonEmpty(res.Error, string(res.Status))})
		return
	}
	o.dataset.Recipes = append(o.dataset.Recipes, res.Recipes...)
	o.dataset.Equivalencies = append(o.dataset.Equivalencies, res.Equivalencies...)

	o.metrics.AddRecords("recipe", len(res.Recipes))
	o.metrics.AddRecords("equivalency", len(res.Equivalencies))
	counts := map[internal.ValidationLevel]int{}
	for _, r := range res.Recipes {
		for _, v := range r.Validation {
			counts[v.Level]++
		}
	}
	for level, n := range counts {
		o.metrics.AddFindings(string(level), n)
	}
}

func (o *Orchestrator) persistDocument(ctx context.Context, res internal.ProcessingResult) {
	if o.store != nil {
		if err := o.store.InsertDocument(ctx, o.runID, res); err != nil {
			o.log.Error("store document", zap.String("file", res.FilePath), zap.Error(err))
		}
		if err := o.store.UpsertRecipes(ctx, o.runID, res.Recipes); err != nil {
			o.log.Error("store recipes", zap.String("file", res.FilePath), zap.Error(err))
		}
		if err := o.store.UpsertEquivalencies(ctx, o.runID, res.Equivalencies); err != nil {
			o.log.Error("store equivalencies", zap.String("file", res.FilePath), zap.Error(err))
		}
	}
	if o.sink != nil && len(res.Recipes) > 0 {
		if _, err := embedding.IndexRecipes(ctx, o.sink, o.embedder, res.Recipes); err != nil {
			o.log.Error("embedding sink", zap.String("file", res.FilePath), zap.Error(err))
		}
	}
}

func (o *Orchestrator) persistRun(ctx context.Context, report Report) {
	if o.store == nil {
		return
	}
	timings := map[string]float64{"total_seconds": report.Summary.ProcessingTime}
	counts := map[string]int{
		"files":         report.Summary.TotalFilesProcessed,
		"completed":     report.Summary.SuccessfulFiles,
		"failed":        report.Summary.FailedFiles,
		"skipped":       report.Summary.SkippedFiles,
		"recipes":       report.Summary.TotalRecipes,
		"equivalencies": report.Summary.TotalEquivalencies,
	}
	if err := o.store.InsertRun(ctx, o.runID, o.inputDir, timings, counts); err != nil {
		o.log.Error("store run", zap.Error(err))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
