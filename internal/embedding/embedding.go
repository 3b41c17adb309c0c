// Package embedding turns recipes into searchable text, vectors and prompt
// lines, and hands them to a vector sink.
package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strconv"
	"strings"

	"nutridoc/internal"
	"nutridoc/internal/storage"
	"nutridoc/internal/util"
)

const summarySteps = 3

// Entry is one recipe as stored in a vector sink.
type Entry struct {
	ID       string
	Document string
	Metadata map[string]any
	Vector   []float32
}

type Sink interface {
	Put(ctx context.Context, e Entry) error
}

type Embedder interface {
	Embed(text string) []float32
}

// RecipeText builds the document text a recipe is embedded and searched by.
func RecipeText(r internal.Recipe) string {
	var parts []string
	add := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			parts = append(parts, label+": "+value)
		}
	}

	add("Receta", r.Name)
	add("Descripción", r.Description)
	category, subcategory, tags := classificationOf(r)
	add("Categoría", category)
	add("Subcategoría", subcategory)

	var names []string
	for _, ing := range r.Ingredients {
		if ing.Name != "" {
			names = append(names, ing.Name)
		}
	}
	add("Ingredientes", strings.Join(names, ", "))

	var steps []string
	for _, s := range r.PreparationSteps {
		if s.Instruction != "" && len(steps) < summarySteps {
			steps = append(steps, s.Instruction)
		}
	}
	add("Preparación", strings.Join(steps, " "))
	add("Tags", strings.Join(tags, ", "))

	var nutrition []string
	for _, key := range internal.Nutrients {
		v, ok := r.NutritionalInfo[key]
		if !ok || v.Value == 0 {
			continue
		}
		nutrition = append(nutrition, strings.TrimSpace(fmt.Sprintf("%s: %s %s", key, strconv.FormatFloat(v.Value, 'f', -1, 64), v.Unit)))
	}
	add("Nutrición", strings.Join(nutrition, ", "))

	return strings.Join(parts, " | ")
}

func classificationOf(r internal.Recipe) (category, subcategory string, tags []string) {
	category, subcategory, tags = r.Category, r.Subcategory, r.Tags
	if c := r.Classification; c != nil {
		if c.Category != "" {
			category = c.Category
		}
		if c.Subcategory != nil {
			subcategory = *c.Subcategory
		}
		if len(c.Tags) > 0 {
			tags = c.Tags
		}
	}
	return category, subcategory, tags
}

// Metadata is the filterable side data stored next to a vector. Unset
// optional fields are left out.
func Metadata(r internal.Recipe) map[string]any {
	category, subcategory, tags := classificationOf(r)
	tagsJSON, _ := json.Marshal(tags)
	m := map[string]any{
		"name":              r.Name,
		"category":          category,
		"subcategory":       subcategory,
		"source_file":       r.SourceFile,
		"tags":              string(tagsJSON),
		"has_nutrition":     len(r.NutritionalInfo) > 0,
		"ingredients_count": len(r.Ingredients),
		"steps_count":       len(r.PreparationSteps),
	}
	if r.CookingTime != nil {
		m["cooking_time"] = *r.CookingTime
	}
	if r.Servings != nil {
		m["servings"] = *r.Servings
	}
	if r.Difficulty != "" {
		m["difficulty"] = r.Difficulty
	}
	if r.EconomicLevel != "" {
		m["economic_level"] = r.EconomicLevel
	}
	return m
}

// PromptLines renders one "name [category]: description" line per recipe.
func PromptLines(recipes []internal.Recipe) []string {
	out := make([]string, 0, len(recipes))
	for _, r := range recipes {
		category, _, _ := classificationOf(r)
		line := fmt.Sprintf("%s [%s]", r.Name, category)
		if d := strings.TrimSpace(r.Description); d != "" {
			line += ": " + d
		}
		out = append(out, line)
	}
	return out
}

// HashEmbedder maps folded tokens and adjacent token pairs into a fixed
// number of signed buckets and L2-normalizes the result.
type HashEmbedder struct {
	Dim int
}

func (h HashEmbedder) Embed(text string) []float32 {
	dim := h.Dim
	if dim <= 0 {
		dim = 256
	}
	vec := make([]float32, dim)
	tokens := util.Tokenize(text)
	features := make([]string, 0, 2*len(tokens))
	features = append(features, tokens...)
	for i := 1; i < len(tokens); i++ {
		features = append(features, tokens[i-1]+" "+tokens[i])
	}
	for _, f := range features {
		hasher := fnv.New32a()
		_, _ = hasher.Write([]byte(f))
		sum := hasher.Sum32()
		sign := float32(1)
		if sum&(1<<31) != 0 {
			sign = -1
		}
		vec[int(sum%uint32(dim))] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec
}

func NewEntry(r internal.Recipe, e Embedder) Entry {
	doc := RecipeText(r)
	return Entry{ID: r.ID, Document: doc, Metadata: Metadata(r), Vector: e.Embed(doc)}
}

// IndexRecipes embeds every recipe with an ID and stores it in sink.
func IndexRecipes(ctx context.Context, sink Sink, e Embedder, recipes []internal.Recipe) (int, error) {
	n := 0
	for _, r := range recipes {
		if r.ID == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if err := sink.Put(ctx, NewEntry(r, e)); err != nil {
			return n, fmt.Errorf("store embedding %s: %w", r.ID, err)
		}
		n++
	}
	return n, nil
}

// StoreSink keeps vectors in the sqlite store.
type StoreSink struct {
	DB *storage.DB
}

func (s StoreSink) Put(ctx context.Context, e Entry) error {
	return s.DB.UpsertEmbedding(ctx, storage.EmbeddingRow{ID: e.ID, Document: e.Document, Metadata: e.Metadata, Vector: e.Vector})
}

type Hit struct {
	ID       string
	Document string
	Metadata map[string]any
	Score    float64
}

// Search ranks stored rows by cosine similarity to query. A non-empty
// category keeps only rows whose metadata category matches.
func Search(rows []storage.EmbeddingRow, e Embedder, query, category string, k int) []Hit {
	q := e.Embed(query)
	hits := make([]Hit, 0, len(rows))
	for _, row := range rows {
		if category != "" {
			if c, _ := row.Metadata["category"].(string); c != category {
				continue
			}
		}
		hits = append(hits, Hit{ID: row.ID, Document: row.Document, Metadata: row.Metadata, Score: CosineSimilarity(q, row.Vector)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
