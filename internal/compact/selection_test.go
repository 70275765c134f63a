package compact

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/andresmejia3/facepack/internal/types"
)

func TestSelection_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Selection
	}{
		{
			name: "Flags only",
			in:   `{"FaceTransformation":true,"Landmarks":false,"Blendshapes":true,"StripZCoordinates":true}`,
			want: Selection{FaceTransformation: true, Blendshapes: true, StripZCoordinates: true},
		},
		{
			name: "Include lists",
			in:   `{"FaceTransformation":false,"Landmarks":true,"Blendshapes":true,"StripZCoordinates":false,"IncludeLandmarks":"1, 4,7","IncludeBlendshapes":"jawOpen, mouthSmileLeft"}`,
			want: Selection{
				Landmarks:          true,
				Blendshapes:        true,
				IncludeLandmarks:   []int{1, 4, 7},
				IncludeBlendshapes: []string{"jawOpen", "mouthSmileLeft"},
			},
		},
		{
			name: "Misspelled blendshape key",
			in:   `{"FaceTransformation":false,"Landmarks":false,"Blendshapes":true,"StripZCoordinates":false,"IncludeBlandshapes":"browInnerUp"}`,
			want: Selection{Blendshapes: true, IncludeBlendshapes: []string{"browInnerUp"}},
		},
		{
			name: "Unknown keys ignored",
			in:   `{"FaceTransformation":false,"Landmarks":true,"Blendshapes":false,"StripZCoordinates":false,"enabled":true}`,
			want: Selection{Landmarks: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Selection
			require.NoError(t, json.Unmarshal([]byte(tt.in), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelection_MissingFlags(t *testing.T) {
	var sel Selection
	err := json.Unmarshal([]byte(`{"Landmarks":true,"StripZCoordinates":false}`), &sel)

	var missing *types.MissingFieldError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "config", missing.Object)
	assert.Equal(t, []string{"FaceTransformation", "Blendshapes"}, missing.Fields)
}

func TestSelection_BadLandmarkList(t *testing.T) {
	var sel Selection
	err := json.Unmarshal([]byte(`{"FaceTransformation":false,"Landmarks":true,"Blendshapes":false,"StripZCoordinates":false,"IncludeLandmarks":"1,x"}`), &sel)
	assert.ErrorContains(t, err, `"x" is not an index`)
}

func TestSelection_MarshalRoundTrip(t *testing.T) {
	in := Selection{
		Landmarks:          true,
		StripZCoordinates:  true,
		IncludeLandmarks:   []int{33, 263},
		IncludeBlendshapes: []string{"eyeBlinkLeft", "eyeBlinkRight"},
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"IncludeLandmarks":"33,263"`)

	var out Selection
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestSelection_YAML(t *testing.T) {
	doc := `
face_transformation: true
landmarks: true
blendshapes: false
strip_z_coordinates: true
include_landmarks: [1, 2]
`
	var sel Selection
	require.NoError(t, yaml.Unmarshal([]byte(doc), &sel))
	assert.Equal(t, Selection{
		FaceTransformation: true,
		Landmarks:          true,
		StripZCoordinates:  true,
		IncludeLandmarks:   []int{1, 2},
	}, sel)
}

func TestParseLandmarkList(t *testing.T) {
	got, err := ParseLandmarkList("")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = ParseLandmarkList(" 3 ,, 1 ")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1}, got)

	_, err = ParseLandmarkList("-1")
	assert.ErrorContains(t, err, "negative index")
}

func TestParseNameList(t *testing.T) {
	assert.Nil(t, ParseNameList(""))
	assert.Nil(t, ParseNameList(" , "))
	assert.Equal(t, []string{"a", "b"}, ParseNameList("a, ,b"))
}
