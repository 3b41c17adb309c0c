package parser

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nutridoc/internal"
	"nutridoc/internal/document"
	"nutridoc/internal/extract"
	"nutridoc/internal/util"
)

var detailedColumns = []column{
	{"name", []string{"nombre", "receta", "titulo", "title"}},
	{"description", []string{"descripcion", "description"}},
	{"time", []string{"tiempo", "duracion"}},
	{"servings", []string{"porciones", "servings", "rinde", "raciones"}},
	{"difficulty", []string{"dificultad", "difficulty"}},
	{"category", []string{"categoria", "category"}},
	{"tips", []string{"consejo", "tips", "sugerencia"}},
	{"variations", []string{"variacion", "variante", "variations"}},
	{"ingredients", []string{"ingrediente", "ingredient"}},
	{"quantity", []string{"cantidad", "quantity"}},
	{"preparation", []string{"preparacion", "instrucciones", "pasos", "procedimiento", "elaboracion"}},
}

var extraNutrients = []column{
	{internal.NutrientSugar, []string{"azucar", "sugar"}},
	{internal.NutrientSodium, []string{"sodio", "sodium"}},
	{internal.NutrientCalcium, []string{"calcio", "calcium"}},
	{internal.NutrientIron, []string{"hierro", "iron"}},
}

type section int

const (
	sectionNone section = iota
	sectionDescription
	sectionIngredients
	sectionSteps
	sectionTips
	sectionVariations
	sectionNutrition
)

var sectionHeaders = []struct {
	section section
	re      *regexp.Regexp
}{
	{sectionIngredients, regexp.MustCompile(`(?i)^\s*(?:ingredientes|ingrediente|ingredients)\b\s*:?\s*`)},
	{sectionSteps, regexp.MustCompile(`(?i)^\s*(?:modo\s+de\s+preparaci[oó]n|preparaci[oó]n|instrucciones|procedimiento|elaboraci[oó]n|pasos|instructions|steps|method)\b\s*:?\s*`)},
	{sectionTips, regexp.MustCompile(`(?i)^\s*(?:consejos|consejo|tips|sugerencias|trucos)\b\s*:?\s*`)},
	{sectionVariations, regexp.MustCompile(`(?i)^\s*(?:variaciones|variantes|variations)\b\s*:?\s*`)},
	{sectionNutrition, regexp.MustCompile(`(?i)^\s*(?:informaci[oó]n\s+nutricional|valor(?:es)?\s+nutricional(?:es)?|nutrici[oó]n|nutrition(?:al\s+information)?)\b\s*:?\s*`)},
	{sectionDescription, regexp.MustCompile(`(?i)^\s*(?:descripci[oó]n|description)\b\s*:?\s*`)},
}

var (
	reRecipeTitle  = regexp.MustCompile(`(?i)^\s*(?:receta(?:\s+de)?|recipe(?:\s+for)?|c[oó]mo\s+hacer|preparaci[oó]n\s+de)\b[\s:]*`)
	reCasualTitle  = regexp.MustCompile(`(?i)^\pL+\s+(?:caser[oa]s?|f[aá]cil(?:es)?|r[aá]pid[oa]s?)(?:\s|$)`)
	reTimeLine     = regexp.MustCompile(`(?i)^\s*(?:tiempos?|duraci[oó]n|cocci[oó]n|cooking\s+time|prep\s+time|total\s+time)\b`)
	reServingsLine = regexp.MustCompile(`(?i)^\s*(?:porciones|raciones|rinde|comensales|servings|serves|yield|para\s+\d+\s+personas)\b`)
	reClause       = regexp.MustCompile(`[;|\n]|,\s|\.\s`)
	reItemSplit    = regexp.MustCompile(`\n|•|;\s|(?:^|\s)[-*]\s|(?:^|\s)\d+[.)]\s`)
)

const (
	maxTitleLength       = 80
	minDescriptionLength = 20
	minItemLength        = 10
	shortTimeLength      = 25
)

var variationTypes = []struct {
	kind  string
	words []string
}{
	{"dietary", []string{"vegetariano", "vegetariana", "vegano", "vegana", "sin gluten", "sin lactosa", "sin azúcar"}},
	{"flavor", []string{"dulce", "salado", "salada", "picante", "agridulce"}},
	{"preparation", []string{"fácil", "rápido", "rápida", "horno", "microondas", "parrilla", "freidora"}},
}

type tableKind int

const (
	otherTable tableKind = iota
	nutritionTable
	ingredientTable
	rowsTable
	wholeTable
)

type recipeDraft struct {
	recipe           internal.Recipe
	level            int
	fromTable        bool
	text             map[section][]string
	tableIngredients []internal.Ingredient
	nutrition        internal.NutritionInfo
}

func (d *recipeDraft) add(s section, text string) {
	if t := strings.TrimSpace(text); t != "" {
		d.text[s] = append(d.text[s], t)
	}
}

func (d *recipeDraft) hasContent() bool {
	return len(d.text[sectionIngredients]) > 0 || len(d.text[sectionSteps]) > 0 || len(d.tableIngredients) > 0
}

type detailedParser struct{ base }

func (p *detailedParser) Kind() internal.DocumentKind { return internal.KindDetailedRecipe }

func (p *detailedParser) ValidateStructure(doc *document.RawDocument) bool {
	if len(doc.Tables) == 0 && len(doc.Paragraphs) == 0 {
		p.log.Warn("empty document", zap.String("file", doc.Path))
		return false
	}
	parts := []string{doc.Text()}
	for _, t := range doc.Tables {
		parts = append(parts, t.Title, strings.Join(t.Headers, " "))
	}
	folded := util.FoldKey(strings.Join(parts, " "))
	if containsAnyWord(folded, "ingrediente", "ingredient", "preparación", "instrucciones", "instructions", "receta", "recipe") {
		return true
	}
	p.log.Warn("no recipe indicators", zap.String("file", doc.Path))
	return false
}

// Parse reads table recipes first, then paragraph recipes. A recipe whose
// lower-cased name was already seen is dropped.
func (p *detailedParser) Parse(doc *document.RawDocument) (Result, error) {
	if !p.ValidateStructure(doc) {
		return Result{}, ErrStructure
	}
	res := newResult(p.Kind(), doc)

	drafts, owners := p.fromParagraphs(doc)
	all := append(p.fromTables(doc, drafts, owners), drafts...)

	seen := map[string]bool{}
	for _, d := range all {
		if !d.fromTable && !d.hasContent() {
			continue
		}
		r := p.finish(d)
		key := strings.ToLower(strings.TrimSpace(r.Name))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		res.Recipes = append(res.Recipes, r)
		if r.Subcategory != "" {
			res.Categories[r.Subcategory]++
		}
	}
	res.Total = len(res.Recipes)
	return res, nil
}

func (p *detailedParser) newDraft(doc *document.RawDocument, title string, level int) *recipeDraft {
	return &recipeDraft{
		recipe: internal.Recipe{
			ID:         uuid.NewString(),
			Name:       recipeName(title),
			Category:   string(internal.KindDetailedRecipe),
			SourceFile: doc.Path,
		},
		level:     level,
		text:      map[section][]string{},
		nutrition: internal.NutritionInfo{},
	}
}

func recipeName(title string) string {
	name := clean(reRecipeTitle.ReplaceAllString(title, ""))
	if name == "" {
		return clean(title)
	}
	return util.Capitalize(name)
}

// fromParagraphs splits the paragraphs into recipes at headings and title
// phrases. owners maps the folded text of each recipe title and heading to
// the index of its recipe, or -1 when the text heads more than one recipe.
func (p *detailedParser) fromParagraphs(doc *document.RawDocument) ([]*recipeDraft, map[string]int) {
	var drafts []*recipeDraft
	owners := map[string]int{}
	claim := func(text string) {
		key := util.FoldKey(text)
		if key == "" {
			return
		}
		idx := len(drafts) - 1
		if i, ok := owners[key]; ok && i != idx {
			owners[key] = -1
			return
		}
		owners[key] = idx
	}

	var cur *recipeDraft
	sec := sectionNone
	for _, para := range doc.Paragraphs {
		text := strings.TrimSpace(para.Text)
		if text == "" {
			continue
		}
		if p.startsRecipe(para, text, cur) {
			cur = p.newDraft(doc, text, para.HeadingLevel)
			drafts = append(drafts, cur)
			sec = sectionNone
			claim(text)
			continue
		}
		if cur == nil {
			continue
		}
		if para.HeadingLevel > 0 {
			claim(text)
		}
		sec = p.route(cur, text, sec)
	}
	return drafts, owners
}

// startsRecipe treats a heading as a recipe boundary unless it names a
// section or sits below the heading of a recipe that already has content.
// Body paragraphs start a recipe only with a title phrase.
func (p *detailedParser) startsRecipe(para document.Paragraph, text string, cur *recipeDraft) bool {
	if isSectionLine(text) || reTimeLine.MatchString(text) || reServingsLine.MatchString(text) {
		return false
	}
	if para.HeadingLevel > 0 {
		return cur == nil || !cur.hasContent() || cur.level == 0 || para.HeadingLevel <= cur.level
	}
	if strings.HasSuffix(text, ":") || utf8.RuneCountInString(text) > maxTitleLength {
		return false
	}
	return reRecipeTitle.MatchString(text) || reCasualTitle.MatchString(text)
}

func isSectionLine(text string) bool {
	for _, h := range sectionHeaders {
		if h.re.MatchString(text) {
			return true
		}
	}
	return false
}

// route files one paragraph under the recipe and returns the section that
// following paragraphs belong to.
func (p *detailedParser) route(d *recipeDraft, text string, sec section) section {
	if reTimeLine.MatchString(text) {
		applyTimes(&d.recipe, text)
		return sec
	}
	if reServingsLine.MatchString(text) {
		d.recipe.Servings = p.servings(text)
		return sec
	}
	for _, h := range sectionHeaders {
		loc := h.re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		rest := text[loc[1]:]
		if h.section == sectionSteps && len(rest) < shortTimeLength && extract.ParseMinutes(rest) != nil {
			d.recipe.PrepTime = extract.ParseMinutes(rest)
			return sec
		}
		d.add(h.section, rest)
		return h.section
	}
	if sec == sectionNone {
		if d.recipe.Description == "" && utf8.RuneCountInString(text) > minDescriptionLength {
			d.recipe.Description = clean(text)
		}
		return sec
	}
	d.add(sec, text)
	return sec
}

func (p *detailedParser) servings(text string) *int {
	if n := p.deps.Portions.Servings(text); n != nil {
		return n
	}
	if m := reNumber.FindString(text); m != "" {
		if n, err := strconv.Atoi(m); err == nil && n > 0 {
			return util.IntPtr(n)
		}
	}
	return nil
}

// applyTimes reads "Preparación: 15 min, cocción: 30 min" style statements.
// A clause without a qualifier is the cooking time.
func applyTimes(r *internal.Recipe, text string) {
	for _, clause := range reClause.Split(text, -1) {
		m := minutes(clause)
		if m == nil {
			continue
		}
		folded := util.FoldKey(clause)
		switch {
		case strings.Contains(folded, "prep"):
			r.PrepTime = m
		case strings.Contains(folded, "coccion") || strings.Contains(folded, "cooking") || strings.Contains(folded, "horno"):
			r.CookingTime = m
		case strings.Contains(folded, "total"):
			r.TotalTime = m
		case r.CookingTime == nil:
			r.CookingTime = m
		}
	}
}

func (p *detailedParser) fromTables(doc *document.RawDocument, drafts []*recipeDraft, owners map[string]int) []*recipeDraft {
	owner := func(title string) *recipeDraft {
		if i, ok := owners[util.FoldKey(title)]; ok && i >= 0 {
			return drafts[i]
		}
		return nil
	}

	var out []*recipeDraft
	for _, t := range doc.Tables {
		cols := mapColumns(t.Headers, detailedColumns, nutrientColumns)
		switch p.tableKind(t, cols) {
		case nutritionTable:
			if d := owner(t.Title); d != nil {
				mergeNutrition(d.nutrition, p.tableNutrition(t))
			} else {
				p.log.Debug("nutrition table without recipe", zap.String("title", t.Title))
			}
		case ingredientTable:
			if d := owner(t.Title); d != nil {
				d.tableIngredients = append(d.tableIngredients, p.deps.Ingredients.FromTable(t)...)
			} else {
				p.log.Debug("ingredient table without recipe", zap.String("title", t.Title))
			}
		case rowsTable:
			for _, row := range t.Rows {
				if !usableRow(row, len(t.Headers)) {
					continue
				}
				name := clean(cell(row, cols, "name"))
				if name == "" {
					continue
				}
				d := p.newDraft(doc, name, 0)
				d.fromTable = true
				p.fillFromRow(d, t.Headers, row, cols)
				out = append(out, d)
			}
		case wholeTable:
			d := owner(t.Title)
			if d == nil {
				if clean(t.Title) == "" {
					continue
				}
				d = p.newDraft(doc, t.Title, 0)
				d.fromTable = true
				out = append(out, d)
			}
			for _, row := range t.Rows {
				if usableRow(row, len(t.Headers)) {
					p.fillFromRow(d, t.Headers, row, cols)
				}
			}
		}
	}
	return out
}

func (p *detailedParser) tableKind(t document.Table, cols map[string]int) tableKind {
	_, hasName := cols["name"]
	_, hasIngredients := cols["ingredients"]
	_, hasPreparation := cols["preparation"]
	_, hasQuantity := cols["quantity"]
	header := util.FoldKey(t.Title + " " + strings.Join(t.Headers, " "))
	switch {
	case !hasName && containsAnyWord(header, "nutricional", "nutrición", "nutrition", "nutriente", "nutrient"):
		return nutritionTable
	case hasName:
		return rowsTable
	case hasIngredients && hasQuantity && !hasPreparation:
		return ingredientTable
	case hasIngredients || hasPreparation:
		return wholeTable
	case nutrientColumnCount(cols) >= 2:
		return nutritionTable
	}
	return otherTable
}

func nutrientColumnCount(cols map[string]int) int {
	n := 0
	for _, c := range nutrientColumns {
		if _, ok := cols[c.role]; ok {
			n++
		}
	}
	return n
}

func (p *detailedParser) fillFromRow(d *recipeDraft, headers, row []string, cols map[string]int) {
	if v := clean(cell(row, cols, "description")); v != "" && d.recipe.Description == "" {
		d.recipe.Description = v
	}
	d.add(sectionIngredients, cell(row, cols, "ingredients"))
	d.add(sectionSteps, cell(row, cols, "preparation"))
	d.add(sectionTips, cell(row, cols, "tips"))
	d.add(sectionVariations, cell(row, cols, "variations"))
	if v := cell(row, cols, "time"); v != "" {
		applyTimes(&d.recipe, headers[cols["time"]]+": "+v)
	}
	if v := cell(row, cols, "servings"); v != "" {
		d.recipe.Servings = p.servings(v)
	}
	if v := difficultyOf(cell(row, cols, "difficulty")); v != "" {
		d.recipe.Difficulty = v
	}
	if v := clean(cell(row, cols, "category")); v != "" {
		d.recipe.Subcategory = strings.ToLower(v)
	}
	if nutrientColumnCount(cols) > 0 {
		mergeNutrition(d.nutrition, p.rowNutrition(row, cols))
	}
}

// tableNutrition reads either one row of nutrient columns or a two-column
// "nutrient | value" list.
func (p *detailedParser) tableNutrition(t document.Table) internal.NutritionInfo {
	cols := mapColumns(t.Headers, nutrientColumns)
	if len(cols) >= 2 && len(t.Rows) > 0 {
		return p.rowNutrition(t.Rows[0], cols)
	}
	info := internal.NutritionInfo{}
	for _, row := range append([][]string{t.Headers}, t.Rows...) {
		if len(row) < 2 {
			continue
		}
		n, ok := nutrientOf(row[0])
		if !ok {
			continue
		}
		v, ok := firstNumber(row[1])
		if !ok {
			continue
		}
		if _, dup := info[n]; dup {
			continue
		}
		info[n] = internal.NutritionalValue{
			Value:      v,
			Unit:       extract.NutrientUnits[n],
			Confidence: columnConfidence,
			Source:     internal.SourceTableColumn,
			PerUnit:    perPortion,
		}
	}
	return info
}

func nutrientOf(label string) (string, bool) {
	folded := util.FoldKey(label)
	for _, set := range [][]column{nutrientColumns, extraNutrients} {
		for _, c := range set {
			for _, kw := range c.keywords {
				if strings.Contains(folded, kw) {
					return c.role, true
				}
			}
		}
	}
	return "", false
}

func mergeNutrition(dst, src internal.NutritionInfo) {
	for k, v := range src {
		if _, ok := dst[k]; !ok {
			dst[k] = v
		}
	}
}

func (p *detailedParser) finish(d *recipeDraft) internal.Recipe {
	r := d.recipe
	if lines := d.text[sectionIngredients]; len(lines) > 0 {
		r.IngredientsText = strings.Join(lines, "\n")
		r.Ingredients = p.deps.Ingredients.FromText(r.IngredientsText)
	}
	r.Ingredients = append(r.Ingredients, d.tableIngredients...)
	if lines := d.text[sectionSteps]; len(lines) > 0 {
		r.PreparationText = strings.Join(lines, "\n")
		r.PreparationSteps = p.deps.Steps.FromText(r.PreparationText)
	}
	if r.Description == "" {
		r.Description = clean(strings.Join(d.text[sectionDescription], " "))
	}
	r.Tips = splitItems(d.text[sectionTips])
	for _, v := range splitItems(d.text[sectionVariations]) {
		r.Variations = append(r.Variations, internal.Variation{Type: variationType(v), Text: v})
	}

	info := internal.NutritionInfo{}
	mergeNutrition(info, d.nutrition)
	mergeNutrition(info, p.deps.Nutrition.FromText(strings.Join(d.text[sectionNutrition], "\n")))
	r.NutritionalInfo = info

	if r.TotalTime == nil && (r.PrepTime != nil || r.CookingTime != nil) {
		r.TotalTime = util.IntPtr(util.DerefInt(r.PrepTime) + util.DerefInt(r.CookingTime))
	}
	for _, s := range r.PreparationSteps {
		r.EquipmentNeeded = appendUnique(r.EquipmentNeeded, s.Equipment...)
		r.TechniquesUsed = appendUnique(r.TechniquesUsed, s.Techniques...)
	}
	if r.Difficulty == "" {
		r.Difficulty = detailedDifficulty(r)
	}
	r.Tags = appendUnique(nil, r.Subcategory, prefixed("dificultad_", r.Difficulty), timeTag(r.CookingTime))
	if containsAnyWord(util.FoldKey(r.Name+" "+ingredientNames(r)), "vegetariano", "vegetariana") {
		r.Tags = appendUnique(r.Tags, "vegetariano")
	}
	return r
}

// splitItems breaks bullet or numbered lists into items, dropping fragments
// too short to be a tip.
func splitItems(lines []string) []string {
	var out []string
	for _, line := range lines {
		for _, part := range reItemSplit.Split(line, -1) {
			part = clean(part)
			if utf8.RuneCountInString(part) > minItemLength {
				out = append(out, part)
			}
		}
	}
	return out
}

func variationType(text string) string {
	folded := util.FoldKey(text)
	for _, v := range variationTypes {
		if containsAnyWord(folded, v.words...) {
			return v.kind
		}
	}
	return "general"
}

// detailedDifficulty scores the counts of ingredients, steps and distinct
// techniques and the cooking time.
func detailedDifficulty(r internal.Recipe) string {
	score := 0
	score += tier(len(r.Ingredients), 5, 10)
	score += tier(len(r.PreparationSteps), 4, 8)
	score += tier(util.DerefInt(r.CookingTime), 30, 60)
	score += tier(len(r.TechniquesUsed), 3, 5)
	switch {
	case score <= 2:
		return "facil"
	case score <= 4:
		return "medio"
	}
	return "dificil"
}

func tier(v, low, high int) int {
	switch {
	case v > high:
		return 2
	case v > low:
		return 1
	}
	return 0
}
