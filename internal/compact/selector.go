package compact

import "github.com/andresmejia3/facepack/internal/types"

// Plan lists the components that will be written to a record.
type Plan struct {
	Matrices    bool
	Landmarks   bool
	Blendshapes bool
}

// Reason explains why a frame produced no record. The zero value means the
// frame is eligible.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonMissingMatrices    Reason = "transformation matrices requested but absent"
	ReasonMissingLandmarks   Reason = "landmarks absent"
	ReasonMissingBlendshapes Reason = "blendshapes absent"
)

// Select applies the availability policy. Nothing is emitted until the
// detector has produced landmarks and blendshapes, whether or not they were
// requested; matrices only block output when requested. Components that
// pass the gate are included iff their flag is set.
//
// TODO: confirm with the data consumers whether landmark-only detectors
// should pass the gate when blendshapes are not requested.
func Select(sel Selection, dp types.DetectionResult) (Plan, Reason) {
	if sel.FaceTransformation && dp.FacialTransformationMatrixes == nil {
		return Plan{}, ReasonMissingMatrices
	}
	if dp.FaceLandmarks == nil {
		return Plan{}, ReasonMissingLandmarks
	}
	if dp.FaceBlendshapes == nil {
		return Plan{}, ReasonMissingBlendshapes
	}

	return Plan{
		Matrices:    sel.FaceTransformation,
		Landmarks:   sel.Landmarks,
		Blendshapes: sel.Blendshapes,
	}, ReasonNone
}
