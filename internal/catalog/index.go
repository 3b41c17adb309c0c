package catalog

import (
	"nutridoc/internal"
	"nutridoc/internal/util"
)

// Index holds reference foods keyed for lookup. Names and aliases are
// folded with util.FoldKey.
type Index struct {
	FoodsByID          map[int]internal.FoodRecord
	ByName             map[string][]internal.FoodRecord
	TokenToFoodIDs     map[string]map[int]struct{}
	NormalizedNameByID map[int]string
}

func BuildIndex(foods []internal.FoodRecord) *Index {
	idx := &Index{
		FoodsByID:          map[int]internal.FoodRecord{},
		ByName:             map[string][]internal.FoodRecord{},
		TokenToFoodIDs:     map[string]map[int]struct{}{},
		NormalizedNameByID: map[int]string{},
	}

	for _, f := range foods {
		idx.FoodsByID[f.ID] = f
		normName := util.FoldKey(f.Name)
		idx.NormalizedNameByID[f.ID] = normName

		names := append([]string{normName}, f.Aliases...)
		seen := map[string]struct{}{}
		for i, name := range names {
			if i > 0 {
				name = util.FoldKey(name)
			}
			if _, dup := seen[name]; dup || name == "" {
				continue
			}
			seen[name] = struct{}{}
			idx.ByName[name] = append(idx.ByName[name], f)
			for _, token := range util.Tokenize(name) {
				if _, ok := idx.TokenToFoodIDs[token]; !ok {
					idx.TokenToFoodIDs[token] = map[int]struct{}{}
				}
				idx.TokenToFoodIDs[token][f.ID] = struct{}{}
			}
		}
	}

	return idx
}

func (idx *Index) Len() int { return len(idx.FoodsByID) }
