package catalog

import (
	"sort"

	"nutridoc/internal"
	"nutridoc/internal/config"
	"nutridoc/internal/util"
)

const (
	maxCandidates = 5
	// Scored when no token of the query is indexed.
	maxFallbackScan = 1500
)

// Matcher resolves free-text ingredient names to reference foods.
type Matcher struct {
	cfg   config.Config
	index *Index
}

func NewMatcher(cfg config.Config, foods []internal.FoodRecord) *Matcher {
	return &Matcher{cfg: cfg, index: BuildIndex(foods)}
}

// Len is the number of reference foods indexed.
func (m *Matcher) Len() int { return m.index.Len() }

func (m *Matcher) Match(name string) internal.MatchResult {
	normalized := util.FoldKey(name)
	if normalized == "" {
		return notFound(0, nil)
	}

	exact := m.index.ByName[normalized]
	if len(exact) == 1 {
		return internal.MatchResult{
			Status:     internal.MatchOK,
			Confidence: 0.95,
			Reason:     internal.ReasonName,
			Food:       foodPtr(exact[0]),
			Candidates: []internal.MatchCandidate{toCandidate(exact[0], 0.95)},
		}
	}
	if len(exact) > 1 {
		return internal.MatchResult{
			Status:     internal.MatchReview,
			Confidence: 0.78,
			Reason:     internal.ReasonName,
			Candidates: toCandidates(exact, 0.78),
		}
	}

	candidates := m.rankCandidates(normalized)
	if len(candidates) == 0 {
		return notFound(0, candidates)
	}

	top1 := candidates[0]
	gap := top1.Score
	if len(candidates) > 1 {
		gap = top1.Score - candidates[1].Score
	}

	best := m.index.FoodsByID[top1.ID]
	switch {
	case top1.Score >= m.cfg.MatchOKThreshold && gap >= m.cfg.MatchGapThreshold:
		return internal.MatchResult{Status: internal.MatchOK, Confidence: top1.Score, Reason: internal.ReasonFuzzy, Food: foodPtr(best), Candidates: candidates}
	case top1.Score >= m.cfg.MatchReviewThreshold:
		return internal.MatchResult{Status: internal.MatchReview, Confidence: top1.Score, Reason: internal.ReasonFuzzy, Food: foodPtr(best), Candidates: candidates}
	}
	return notFound(top1.Score, candidates)
}

// Per100g returns the nutrients of a confidently matched food. Ambiguous
// matches are not used for nutrition.
func (m *Matcher) Per100g(name string) (map[string]float64, bool) {
	res := m.Match(name)
	if res.Status != internal.MatchOK || res.Food == nil || len(res.Food.Per100g) == 0 {
		return nil, false
	}
	return res.Food.Per100g, true
}

func (m *Matcher) rankCandidates(query string) []internal.MatchCandidate {
	queryTokens := util.Tokenize(query)
	ids := map[int]struct{}{}

	for _, token := range queryTokens {
		for id := range m.index.TokenToFoodIDs[token] {
			ids[id] = struct{}{}
		}
	}

	if len(ids) == 0 {
		for id := range m.index.FoodsByID {
			ids[id] = struct{}{}
			if len(ids) >= maxFallbackScan {
				break
			}
		}
	}

	out := make([]internal.MatchCandidate, 0, len(ids))
	for id := range ids {
		name := m.index.NormalizedNameByID[id]
		score := scoreName(query, name, queryTokens, util.Tokenize(name))
		out = append(out, toCandidate(m.index.FoodsByID[id], score))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > maxCandidates {
		out = out[:maxCandidates]
	}
	return out
}

// scoreName blends character bigram similarity with the share of query
// tokens found in the candidate.
func scoreName(query, candidate string, queryTokens, candidateTokens []string) float64 {
	dice := util.DiceCoefficient(query, candidate)
	if len(queryTokens) == 0 || len(candidateTokens) == 0 {
		return dice
	}

	set := map[string]struct{}{}
	for _, t := range candidateTokens {
		set[t] = struct{}{}
	}
	overlap := 0
	for _, t := range queryTokens {
		if _, ok := set[t]; ok {
			overlap++
		}
	}
	tokenScore := float64(overlap) / float64(len(queryTokens))
	return 0.65*dice + 0.35*tokenScore
}

func notFound(score float64, candidates []internal.MatchCandidate) internal.MatchResult {
	if candidates == nil {
		candidates = []internal.MatchCandidate{}
	}
	return internal.MatchResult{Status: internal.MatchNotFound, Confidence: score, Reason: internal.ReasonNone, Candidates: candidates}
}

func foodPtr(f internal.FoodRecord) *internal.FoodRecord {
	return &f
}

func toCandidate(f internal.FoodRecord, score float64) internal.MatchCandidate {
	return internal.MatchCandidate{ID: f.ID, SyncUID: f.SyncUID, Name: f.Name, Score: score}
}

func toCandidates(foods []internal.FoodRecord, score float64) []internal.MatchCandidate {
	limit := len(foods)
	if limit > maxCandidates {
		limit = maxCandidates
	}
	out := make([]internal.MatchCandidate, 0, limit)
	for i := 0; i < limit; i++ {
		out = append(out, toCandidate(foods[i], score))
	}
	return out
}
