package types

import "encoding/json"

// FrameTask represents a single captured frame sent to a compaction engine.
// Data holds one input line exactly as it arrived on the wire.
type FrameTask struct {
	Index int
	Data  []byte
}

// FrameInput matches one line of the stream input: a capture timestamp and
// the detector output for that frame.
type FrameInput struct {
	Timestamp float64 `json:"timestamp"`
	// DataPoint stays undecoded so the compaction engine owns decode errors.
	DataPoint json.RawMessage `json:"dataPoint"`
}

// Landmark is one normalized point. Z is nil when the detector produced a
// 2D landmark only.
type Landmark struct {
	X float64  `json:"x"`
	Y float64  `json:"y"`
	Z *float64 `json:"z,omitempty"`
}

// LandmarkSet is the ordered landmark list for one face. The position of a
// landmark identifies the anatomical point, so order is never changed.
type LandmarkSet []Landmark

// Category is one expression classification channel.
type Category struct {
	Score float64 `json:"score"`
	Index int32   `json:"index"`
	Name  string  `json:"categoryName"`
}

// ClassificationGroup holds the categories for one face in detector order.
type ClassificationGroup struct {
	Categories []Category `json:"categories"`
}

// TransformationMatrix is a row-major pose transform, normally 4x4.
type TransformationMatrix struct {
	Rows    int       `json:"rows,omitempty"`
	Columns int       `json:"columns,omitempty"`
	Data    []float64 `json:"data"`
}

// DetectionResult is the upstream detector output for one frame.
//
// A nil field means the detector did not produce that component at all. A
// non-nil empty slice means it ran and found nothing. The two are kept
// apart on the wire: null or a missing key decodes to nil, [] to empty.
type DetectionResult struct {
	FaceLandmarks                []LandmarkSet          `json:"faceLandmarks"`
	FaceBlendshapes              []ClassificationGroup  `json:"faceBlendshapes"`
	FacialTransformationMatrixes []TransformationMatrix `json:"facialTransformationMatrixes"`
}

// CompactedFrame is one encoded record on its way to a sink.
type CompactedFrame struct {
	Seq     int
	T       float64
	DT      float64
	Payload []byte // single text line including the trailing newline
}
