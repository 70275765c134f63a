package compact

import "github.com/andresmejia3/facepack/internal/types"

// passMatrices copies the matrix data through at full precision; matrices
// are never quantized.
func passMatrices(ms []types.TransformationMatrix) [][]float64 {
	out := make([][]float64, len(ms))
	for i, m := range ms {
		out[i] = append(make([]float64, 0, len(m.Data)), m.Data...)
	}
	return out
}
