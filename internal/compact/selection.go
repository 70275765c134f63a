package compact

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/andresmejia3/facepack/internal/types"
)

// Selection picks which components appear in a record.
//
// The JSON form uses the capture component's config keys and requires all
// four flags. IncludeLandmarks and IncludeBlendshapes travel as comma
// separated strings there; the YAML form uses plain lists.
type Selection struct {
	FaceTransformation bool `yaml:"face_transformation"`
	Landmarks          bool `yaml:"landmarks"`
	Blendshapes        bool `yaml:"blendshapes"`
	StripZCoordinates  bool `yaml:"strip_z_coordinates"`

	// IncludeLandmarks keeps only these landmark indices, in this order.
	IncludeLandmarks []int `yaml:"include_landmarks,omitempty"`
	// IncludeBlendshapes keeps only categories with these names, in this order.
	IncludeBlendshapes []string `yaml:"include_blendshapes,omitempty"`
}

type selectionJSON struct {
	FaceTransformation *bool  `json:"FaceTransformation"`
	Landmarks          *bool  `json:"Landmarks"`
	Blendshapes        *bool  `json:"Blendshapes"`
	StripZCoordinates  *bool  `json:"StripZCoordinates"`
	IncludeLandmarks   string `json:"IncludeLandmarks,omitempty"`
	IncludeBlendshapes string `json:"IncludeBlendshapes,omitempty"`
	// Older capture configs carry the misspelled key.
	IncludeBlandshapes string `json:"IncludeBlandshapes,omitempty"`
}

// UnmarshalJSON decodes the strict wire form.
func (s *Selection) UnmarshalJSON(data []byte) error {
	var raw selectionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var missing []string
	if raw.FaceTransformation == nil {
		missing = append(missing, "FaceTransformation")
	}
	if raw.Landmarks == nil {
		missing = append(missing, "Landmarks")
	}
	if raw.Blendshapes == nil {
		missing = append(missing, "Blendshapes")
	}
	if raw.StripZCoordinates == nil {
		missing = append(missing, "StripZCoordinates")
	}
	if len(missing) > 0 {
		return &types.MissingFieldError{Object: "config", Fields: missing}
	}

	include, err := ParseLandmarkList(raw.IncludeLandmarks)
	if err != nil {
		return err
	}
	names := raw.IncludeBlendshapes
	if names == "" {
		names = raw.IncludeBlandshapes
	}

	*s = Selection{
		FaceTransformation: *raw.FaceTransformation,
		Landmarks:          *raw.Landmarks,
		Blendshapes:        *raw.Blendshapes,
		StripZCoordinates:  *raw.StripZCoordinates,
		IncludeLandmarks:   include,
		IncludeBlendshapes: ParseNameList(names),
	}
	return nil
}

// MarshalJSON emits the strict wire form accepted by UnmarshalJSON.
func (s Selection) MarshalJSON() ([]byte, error) {
	raw := selectionJSON{
		FaceTransformation: &s.FaceTransformation,
		Landmarks:          &s.Landmarks,
		Blendshapes:        &s.Blendshapes,
		StripZCoordinates:  &s.StripZCoordinates,
		IncludeBlendshapes: strings.Join(s.IncludeBlendshapes, ","),
	}
	if len(s.IncludeLandmarks) > 0 {
		parts := make([]string, len(s.IncludeLandmarks))
		for i, idx := range s.IncludeLandmarks {
			parts[i] = strconv.Itoa(idx)
		}
		raw.IncludeLandmarks = strings.Join(parts, ",")
	}
	return json.Marshal(raw)
}

// ParseLandmarkList parses "1, 4,7" into landmark indices. An empty string
// yields nil, meaning no filtering.
func ParseLandmarkList(list string) ([]int, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}
	parts := strings.Split(list, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		idx, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("IncludeLandmarks: %q is not an index", p)
		}
		if idx < 0 {
			return nil, fmt.Errorf("IncludeLandmarks: negative index %d", idx)
		}
		out = append(out, idx)
	}
	return out, nil
}

// ParseNameList splits a comma separated name list, dropping blanks.
func ParseNameList(list string) []string {
	var out []string
	for _, p := range strings.Split(list, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
