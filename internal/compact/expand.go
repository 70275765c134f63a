package compact

import (
	"fmt"
	"math"

	"github.com/andresmejia3/facepack/internal/types"
)

// Expand rebuilds a detection result from a record. Coordinates and scores
// come back within the quantizer's error bound. Category names are filled
// from the vocabulary when one is configured; otherwise they are empty.
// Components absent from the record are absent from the result.
func (c *Compactor) Expand(r *Record) (types.DetectionResult, error) {
	var dp types.DetectionResult

	if r.Landmarks != nil {
		dp.FaceLandmarks = make([]types.LandmarkSet, len(r.Landmarks))
		for i, item := range r.Landmarks {
			set, err := c.expandLandmarks(item)
			if err != nil {
				return types.DetectionResult{}, fmt.Errorf("l[%d]: %w", i, err)
			}
			dp.FaceLandmarks[i] = set
		}
	}

	if r.Blendshapes != nil {
		dp.FaceBlendshapes = make([]types.ClassificationGroup, len(r.Blendshapes))
		for i, item := range r.Blendshapes {
			g, err := c.expandBlendshapes(item)
			if err != nil {
				return types.DetectionResult{}, fmt.Errorf("b[%d]: %w", i, err)
			}
			dp.FaceBlendshapes[i] = g
		}
	}

	if r.Matrices != nil {
		dp.FacialTransformationMatrixes = make([]types.TransformationMatrix, len(r.Matrices))
		for i, data := range r.Matrices {
			size := int(math.Sqrt(float64(len(data))))
			if size*size != len(data) {
				return types.DetectionResult{}, fmt.Errorf("m[%d]: %w: %d values is not a square matrix", i, ErrMalformedRecord, len(data))
			}
			dp.FacialTransformationMatrixes[i] = types.TransformationMatrix{
				Rows:    size,
				Columns: size,
				Data:    append(make([]float64, 0, len(data)), data...),
			}
		}
	}

	return dp, nil
}

func (c *Compactor) expandLandmarks(item LandmarkItem) (types.LandmarkSet, error) {
	stride := item.Stride()
	if len(item.Points)%stride != 0 {
		return nil, fmt.Errorf("%w: %d points do not divide into stride %d", ErrMalformedRecord, len(item.Points), stride)
	}

	set := make(types.LandmarkSet, len(item.Points)/stride)
	for i := range set {
		p := item.Points[i*stride:]
		set[i] = types.Landmark{
			X: c.quant.Dequantize(p[0]),
			Y: c.quant.Dequantize(p[1]),
		}
		if item.HasZ {
			z := c.quant.Dequantize(p[2])
			set[i].Z = &z
		}
	}
	return set, nil
}

func (c *Compactor) expandBlendshapes(item BlendshapeItem) (types.ClassificationGroup, error) {
	n := len(item.Scores)
	if len(item.Indices) != n || len(item.IDs) != n {
		return types.ClassificationGroup{}, fmt.Errorf("%w: s, i and c have lengths %d, %d, %d",
			ErrMalformedRecord, n, len(item.Indices), len(item.IDs))
	}

	g := types.ClassificationGroup{Categories: make([]types.Category, n)}
	for i := 0; i < n; i++ {
		cat := types.Category{
			Score: c.quant.Dequantize(item.Scores[i]),
			Index: item.Indices[i],
		}
		if c.vocab != nil {
			cat.Name, _ = c.vocab.Name(item.IDs[i])
		}
		g.Categories[i] = cat
	}
	return g, nil
}
