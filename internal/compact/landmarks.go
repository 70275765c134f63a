package compact

import (
	"github.com/andresmejia3/facepack/internal/quantize"
	"github.com/andresmejia3/facepack/internal/types"
)

// LandmarkItem is one face's landmarks flattened to x, y[, z] integers.
// HasZ is the same for every item of a record but is carried per item so
// each item decodes on its own.
type LandmarkItem struct {
	Points []int32 `json:"p"`
	HasZ   bool    `json:"z"`
}

// Stride is the number of integers per landmark in Points.
func (it LandmarkItem) Stride() int {
	if it.HasZ {
		return 3
	}
	return 2
}

func compactLandmarks(q quantize.Quantizer, sets []types.LandmarkSet, stripZ bool, include []int) []LandmarkItem {
	stride := 3
	if stripZ {
		stride = 2
	}

	out := make([]LandmarkItem, 0, len(sets))
	for _, set := range sets {
		if include != nil {
			set = pickLandmarks(set, include)
		}

		points := make([]int32, 0, len(set)*stride)
		for _, lm := range set {
			points = append(points, q.Quantize(lm.X), q.Quantize(lm.Y))
			if !stripZ {
				// A missing z still takes its slot so the stride holds.
				var z float64
				if lm.Z != nil {
					z = *lm.Z
				}
				points = append(points, q.Quantize(z))
			}
		}

		out = append(out, LandmarkItem{Points: points, HasZ: !stripZ})
	}
	return out
}

// pickLandmarks returns the landmarks at the given indices. Indices past the
// end of the set are skipped.
func pickLandmarks(set types.LandmarkSet, include []int) types.LandmarkSet {
	picked := make(types.LandmarkSet, 0, len(include))
	for _, idx := range include {
		if idx >= 0 && idx < len(set) {
			picked = append(picked, set[idx])
		}
	}
	return picked
}
