package extract

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"nutridoc/internal"
	"nutridoc/internal/document"
	"nutridoc/internal/lexicon"
	"nutridoc/internal/util"
)

const (
	stepBaseConfidence = 0.5
	stepSignalBonus    = 0.1
	minStepLength      = 5
	minSentenceLength  = 10
)

var (
	rePrepHeader    = regexp.MustCompile(`(?i)^\s*(?:modo\s+de\s+preparaci[oó]n|preparaci[oó]n|procedimiento|elaboraci[oó]n|instrucciones|pasos)\s*:?\s*`)
	reNumberedStep  = regexp.MustCompile(`(?:^|\s)\d+[.)]\s`)
	reLineNumber    = regexp.MustCompile(`(?m)^\d+\s`)
	reStepIndicator = regexp.MustCompile(`(?i)\b(?:paso\s*\d+|step\s*\d+|primero|segundo|tercero|luego|despu[eé]s|finalmente|para\s+terminar|a\s+continuaci[oó]n|mientras\s+tanto)\b`)
	reSentenceEnd   = regexp.MustCompile(`[.!?]+`)
	reNumberPrefix  = regexp.MustCompile(`^\d+(?:[.)]\s*|\s+(\p{Lu}))`)
	reStripStep     = regexp.MustCompile(`(?i)^(?:paso\s*\d+[\s:.)-]*|step\s*\d+[\s:.)-]*|(?:primero|segundo|tercero|luego|despu[eé]s|finalmente|para\s+terminar|a\s+continuaci[oó]n|mientras\s+tanto)\b[\s,:]*)`)
	reSequencing    = regexp.MustCompile(`(?i)\b(?:primero|luego|despu[eé]s|finalmente)\b`)
	reTip           = regexp.MustCompile(`(?i)\b(?:consejo|tip|sugerencia|nota|importante|recuerda|truco|secreto)\b\s*:?\s*(.+)`)
)

type timePattern struct {
	re      *regexp.Regexp
	minutes func(n float64) int
}

var timePatterns = []timePattern{
	{re: regexp.MustCompile(`(?i)(\d+)(?:\s*(?:-|a)\s*(\d+))?\s*(?:minutos?|mins?)\b`), minutes: func(n float64) int { return int(n) }},
	{re: regexp.MustCompile(`(?i)(\d+)(?:\s*(?:-|a)\s*(\d+))?\s*(?:horas?|hrs?|hours?)\b`), minutes: func(n float64) int { return int(n * 60) }},
	{re: regexp.MustCompile(`(?i)(\d+)(?:\s*(?:-|a)\s*(\d+))?\s*(?:segundos?|segs?|secs?|seconds?)\b`), minutes: func(n float64) int {
		return int(math.Max(1, math.Round(n/60)))
	}},
	{re: regexp.MustCompile(`(?i)\bmedia\s+hora\b|\bhalf\s+(?:an\s+)?hour\b`), minutes: func(float64) int { return 30 }},
	{re: regexp.MustCompile(`(?i)\bcuarto\s+de\s+hora\b|\bquarter\s+(?:of\s+an\s+)?hour\b`), minutes: func(float64) int { return 15 }},
}

var (
	reFahrenheit = regexp.MustCompile(`(?i)(\d+)\s*(?:°\s*f\b|grados\s+fahrenheit|fahrenheit)`)
	reCelsius    = regexp.MustCompile(`(?i)(\d+)\s*(?:°\s*c?|grados(?:\s+celsius|\s+centígrados)?|celsius|c\b)`)
)

var descriptiveHeat = []struct {
	phrases []string
	celsius int
}{
	{[]string{"horno fuerte", "high heat"}, 220},
	{[]string{"horno medio", "horno moderado", "medium heat"}, 180},
	{[]string{"horno suave", "low heat"}, 150},
	{[]string{"fuego alto", "fuego fuerte"}, 200},
	{[]string{"fuego medio", "fuego moderado"}, 150},
	{[]string{"fuego bajo", "fuego suave", "fuego mínimo"}, 100},
}

type PreparationExtractor struct {
	lex *lexicon.Lexicon
}

func NewPreparationExtractor(lex *lexicon.Lexicon) *PreparationExtractor {
	return &PreparationExtractor{lex: lex}
}

// FromText splits free-text instructions into numbered steps.
func (e *PreparationExtractor) FromText(text string) []internal.PreparationStep {
	text = rePrepHeader.ReplaceAllString(util.CollapseSpaces(text), "")
	return e.build(SplitSteps(text))
}

// FromList builds steps from already separated instructions.
func (e *PreparationExtractor) FromList(items []string) []internal.PreparationStep {
	return e.build(items)
}

func (e *PreparationExtractor) build(segments []string) []internal.PreparationStep {
	var out []internal.PreparationStep
	for _, seg := range segments {
		step, ok := e.analyze(seg, len(out)+1)
		if !ok {
			continue
		}
		out = append(out, step)
	}
	return out
}

// SplitSteps tries numbered markers, step indicators, sentences and line
// breaks in that order and keeps the first split with more than one segment.
func SplitSteps(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	flat := strings.ReplaceAll(text, "\n", " ")
	strategies := []func() []string{
		func() []string { return splitNumbered(text) },
		func() []string { return splitBefore(flat, reStepIndicator.FindAllStringIndex(flat, -1)) },
		func() []string { return splitSentences(flat) },
		func() []string { return strings.Split(text, "\n") },
	}
	for _, s := range strategies {
		segs := nonEmpty(s())
		if len(segs) > 1 {
			return segs
		}
	}
	return []string{util.NormalizeText(text)}
}

func splitNumbered(text string) []string {
	var starts [][]int
	for _, loc := range reNumberedStep.FindAllStringIndex(text, -1) {
		start := loc[0]
		if text[start] == ' ' || text[start] == '\n' || text[start] == '\t' {
			start++
		}
		starts = append(starts, []int{start, loc[1]})
	}
	for _, loc := range reLineNumber.FindAllStringIndex(text, -1) {
		starts = append(starts, loc)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i][0] < starts[j][0] })
	return splitBefore(text, starts)
}

func splitBefore(text string, locs [][]int) []string {
	if len(locs) == 0 {
		return []string{text}
	}
	var out []string
	prev := 0
	for _, loc := range locs {
		if loc[0] <= prev {
			continue
		}
		out = append(out, text[prev:loc[0]])
		prev = loc[0]
	}
	return append(out, text[prev:])
}

func splitSentences(text string) []string {
	var out []string
	for _, s := range reSentenceEnd.Split(text, -1) {
		if len([]rune(strings.TrimSpace(s))) > minSentenceLength {
			out = append(out, s)
		}
	}
	return out
}

func nonEmpty(segs []string) []string {
	out := make([]string, 0, len(segs))
	for _, s := range segs {
		if s = util.NormalizeText(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (e *PreparationExtractor) analyze(segment string, number int) (internal.PreparationStep, bool) {
	original := util.NormalizeText(segment)
	instruction := reNumberPrefix.ReplaceAllString(original, "${1}")
	instruction = strings.TrimSpace(reStripStep.ReplaceAllString(instruction, ""))
	instruction = util.Capitalize(strings.TrimLeft(instruction, " .:-"))
	if len([]rune(instruction)) < minStepLength {
		return internal.PreparationStep{}, false
	}
	lower := strings.ToLower(instruction)

	step := internal.PreparationStep{
		StepNumber:           number,
		Instruction:          instruction,
		StepType:             e.stepType(lower),
		CookingMethod:        e.cookingMethod(lower),
		EstimatedTime:        ParseMinutes(lower),
		Temperature:          ParseCelsius(lower),
		Equipment:            util.MatchAllFunc(lower, e.lex.Equipment, util.HasWordPrefix),
		Techniques:           util.MatchAllFunc(lower, e.lex.Techniques, util.HasWordPrefix),
		IngredientsMentioned: util.MatchAllFunc(lower, e.lex.CommonIngredients, util.ContainsWordOrPlural),
		OriginalText:         original,
	}
	for _, kw := range util.MatchAllFunc(lower, e.lex.SafetyKeywords, util.HasWordPrefix) {
		step.SafetyNotes = append(step.SafetyNotes, "Safety note: "+kw)
	}
	if m := reTip.FindStringSubmatch(instruction); m != nil {
		if tip := strings.TrimSpace(m[1]); tip != "" {
			step.Tips = append(step.Tips, tip)
		}
	}
	step.Confidence = stepConfidence(step, strings.ToLower(original))
	return step, true
}

func stepConfidence(step internal.PreparationStep, lowerOriginal string) float64 {
	c := stepBaseConfidence
	signals := []bool{
		len([]rune(step.Instruction)) > 50,
		step.StepType != internal.StepPreparation,
		step.CookingMethod != internal.CookingNone,
		len(step.Equipment) > 0,
		len(step.Techniques) > 0,
		reSequencing.MatchString(lowerOriginal),
	}
	for _, s := range signals {
		if s {
			c += stepSignalBonus
		}
	}
	return clamp01(c)
}

func (e *PreparationExtractor) stepType(lower string) internal.StepType {
	if t, ok := e.lex.StepTypes.FirstFunc(lower, util.HasWordPrefix); ok {
		return internal.StepType(t)
	}
	return internal.StepPreparation
}

func (e *PreparationExtractor) cookingMethod(lower string) internal.CookingMethod {
	if m, ok := e.lex.CookingMethods.FirstFunc(lower, util.HasWordPrefix); ok {
		return internal.CookingMethod(m)
	}
	return internal.CookingNone
}

// ParseMinutes reads a duration in minutes. Ranges resolve to their upper bound.
func ParseMinutes(text string) *int {
	for _, p := range timePatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		var n float64
		if len(m) > 1 && m[1] != "" {
			n, _ = strconv.ParseFloat(m[1], 64)
			if len(m) > 2 && m[2] != "" {
				if hi, err := strconv.ParseFloat(m[2], 64); err == nil && hi > n {
					n = hi
				}
			}
		}
		return util.IntPtr(p.minutes(n))
	}
	return nil
}

// ParseCelsius reads an explicit or descriptive cooking temperature.
func ParseCelsius(text string) *int {
	if m := reFahrenheit.FindStringSubmatch(text); m != nil {
		f, _ := strconv.Atoi(m[1])
		return util.IntPtr(int(math.Round(float64(f-32) * 5 / 9)))
	}
	if m := reCelsius.FindStringSubmatch(text); m != nil {
		c, _ := strconv.Atoi(m[1])
		return util.IntPtr(c)
	}
	lower := strings.ToLower(text)
	for _, h := range descriptiveHeat {
		if util.ContainsAny(lower, h.phrases) {
			return util.IntPtr(h.celsius)
		}
	}
	return nil
}

var stepColumns = map[string][]string{
	"instruction": {"instruccion", "instruction", "descripcion", "preparacion"},
	"step_number": {"paso", "step", "numero", "nro"},
	"time":        {"tiempo", "time", "duracion"},
	"temperature": {"temperatura", "temperature"},
	"equipment":   {"equipo", "equipment", "utensilio"},
	"technique":   {"tecnica", "technique"},
}

// FromTable reads one step per row. Steps are numbered by position; a
// step_number column is kept only in OriginalText.
func (e *PreparationExtractor) FromTable(t document.Table) []internal.PreparationStep {
	cols := MapColumns(t.Headers, stepColumns, []string{"instruction", "step_number", "time", "temperature", "equipment", "technique"})
	instCol, ok := cols["instruction"]
	if !ok {
		return nil
	}

	var out []internal.PreparationStep
	for _, row := range t.Rows {
		if len(row) < len(t.Headers) {
			continue
		}
		step, ok := e.analyze(row[instCol], len(out)+1)
		if !ok {
			continue
		}
		if c, ok := cols["time"]; ok {
			if v := ParseMinutes(row[c]); v != nil {
				step.EstimatedTime = v
			} else if n, err := strconv.Atoi(strings.TrimSpace(row[c])); err == nil {
				step.EstimatedTime = util.IntPtr(n)
			}
		}
		if c, ok := cols["temperature"]; ok {
			if v := ParseCelsius(row[c]); v != nil {
				step.Temperature = v
			}
		}
		if c, ok := cols["equipment"]; ok {
			step.Equipment = splitCell(row[c])
		}
		if c, ok := cols["technique"]; ok {
			step.Techniques = splitCell(row[c])
		}
		step.OriginalText = strings.Join(row, " | ")
		step.Confidence = tableRowConfidence
		out = append(out, step)
	}
	return out
}

func splitCell(cell string) []string {
	var out []string
	for _, p := range strings.FieldsFunc(cell, func(r rune) bool { return r == ',' || r == ';' || r == '/' }) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}

// TotalTime sums the estimated step times, or nil when no step has one.
func (e *PreparationExtractor) TotalTime(steps []internal.PreparationStep) *int {
	total, found := 0, false
	for _, s := range steps {
		if s.EstimatedTime != nil {
			total += *s.EstimatedTime
			found = true
		}
	}
	if !found {
		return nil
	}
	return util.IntPtr(total)
}

func (e *PreparationExtractor) Validate(steps []internal.PreparationStep) CheckResult {
	res := CheckResult{IsValid: true}
	if len(steps) == 0 {
		res.fail("No preparation steps found")
		return res
	}

	seen := map[int]int{}
	var dups []string
	empty, low, safety := 0, 0, 0
	for _, s := range steps {
		seen[s.StepNumber]++
		if seen[s.StepNumber] == 2 {
			dups = append(dups, strconv.Itoa(s.StepNumber))
		}
		if strings.TrimSpace(s.Instruction) == "" {
			empty++
		}
		if s.Confidence < lowConfidenceThreshold {
			low++
		}
		if len(s.SafetyNotes) > 0 {
			safety++
		}
	}
	if len(dups) > 0 {
		res.warn("Duplicate step numbers: " + strings.Join(dups, ", "))
	}
	if empty > 0 {
		res.warn(fmt.Sprintf("%d steps with empty instructions", empty))
	}
	if low > 0 {
		res.warn(fmt.Sprintf("%d steps with low confidence", low))
	}
	if safety > 0 {
		res.warn(fmt.Sprintf("%d steps contain safety notes", safety))
	}
	return res
}
