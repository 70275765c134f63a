package compact

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/andresmejia3/facepack/internal/types"
)

func TestSelect(t *testing.T) {
	present := types.DetectionResult{
		FaceLandmarks:                []types.LandmarkSet{},
		FaceBlendshapes:              []types.ClassificationGroup{},
		FacialTransformationMatrixes: []types.TransformationMatrix{},
	}
	without := func(mutate func(*types.DetectionResult)) types.DetectionResult {
		dp := present
		mutate(&dp)
		return dp
	}
	noMatrices := without(func(dp *types.DetectionResult) { dp.FacialTransformationMatrixes = nil })
	noLandmarks := without(func(dp *types.DetectionResult) { dp.FaceLandmarks = nil })
	noBlendshapes := without(func(dp *types.DetectionResult) { dp.FaceBlendshapes = nil })

	tests := []struct {
		name       string
		sel        Selection
		dp         types.DetectionResult
		wantPlan   Plan
		wantReason Reason
	}{
		{"All present, all requested", Selection{FaceTransformation: true, Landmarks: true, Blendshapes: true}, present, Plan{true, true, true}, ReasonNone},
		{"All present, nothing requested", Selection{}, present, Plan{}, ReasonNone},
		{"Matrices absent, not requested", Selection{Landmarks: true}, noMatrices, Plan{Landmarks: true}, ReasonNone},
		{"Matrices absent, requested", Selection{FaceTransformation: true}, noMatrices, Plan{}, ReasonMissingMatrices},
		{"Landmarks absent, not requested", Selection{Blendshapes: true}, noLandmarks, Plan{}, ReasonMissingLandmarks},
		{"Blendshapes absent, not requested", Selection{Landmarks: true}, noBlendshapes, Plan{}, ReasonMissingBlendshapes},
		{"Matrix check runs first", Selection{FaceTransformation: true}, types.DetectionResult{}, Plan{}, ReasonMissingMatrices},
		{"Landmark check before blendshapes", Selection{}, types.DetectionResult{FacialTransformationMatrixes: []types.TransformationMatrix{}}, Plan{}, ReasonMissingLandmarks},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, reason := Select(tt.sel, tt.dp)
			assert.Equal(t, tt.wantReason, reason)
			assert.Equal(t, tt.wantPlan, plan)
		})
	}
}
