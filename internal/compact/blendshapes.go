package compact

import (
	"github.com/andresmejia3/facepack/internal/quantize"
	"github.com/andresmejia3/facepack/internal/types"
	"github.com/andresmejia3/facepack/internal/vocab"
)

// BlendshapeItem holds one face's categories as three aligned sequences:
// quantized scores, detector indices and stable category ids.
type BlendshapeItem struct {
	Scores  []int32 `json:"s"`
	Indices []int32 `json:"i"`
	IDs     []int32 `json:"c"`
}

func compactBlendshapes(q quantize.Quantizer, v vocab.Vocabulary, groups []types.ClassificationGroup, include []string) []BlendshapeItem {
	out := make([]BlendshapeItem, 0, len(groups))
	for _, g := range groups {
		cats := g.Categories
		if include != nil {
			cats = pickCategories(cats, include)
		}

		item := BlendshapeItem{
			Scores:  make([]int32, len(cats)),
			Indices: make([]int32, len(cats)),
			IDs:     make([]int32, len(cats)),
		}
		for i, c := range cats {
			item.Scores[i] = q.Quantize(c.Score)
			item.Indices[i] = c.Index
			item.IDs[i] = categoryID(v, c)
		}
		out = append(out, item)
	}
	return out
}

// categoryID resolves the stable id of c, falling back to the detector
// index when there is no vocabulary or the name is unknown to it.
func categoryID(v vocab.Vocabulary, c types.Category) int32 {
	if v != nil {
		if id, ok := v.ID(c.Name); ok {
			return id
		}
	}
	return c.Index
}

func pickCategories(cats []types.Category, include []string) []types.Category {
	byName := make(map[string]int, len(cats))
	for i := len(cats) - 1; i >= 0; i-- {
		byName[cats[i].Name] = i
	}

	picked := make([]types.Category, 0, len(include))
	for _, name := range include {
		if i, ok := byName[name]; ok {
			picked = append(picked, cats[i])
		}
	}
	return picked
}
