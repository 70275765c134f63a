package compact

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGolden(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestEncodeLineGolden(t *testing.T) {
	tests := []struct {
		name   string
		record *Record
	}{
		{
			name: "full_record",
			record: &Record{
				Landmarks:   []LandmarkItem{{Points: []int32{12345, 67890, 10000}, HasZ: true}},
				Blendshapes: []BlendshapeItem{{Scores: []int32{98765}, Indices: []int32{3}, IDs: []int32{3}}},
				Matrices:    [][]float64{{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, -30.5, 1}},
				T:           1700000000000.5,
				DT:          12.25,
			},
		},
		{
			name: "landmarks_stripped",
			record: &Record{
				Landmarks: []LandmarkItem{{Points: []int32{12345, 67890}, HasZ: false}},
				T:         1000,
				DT:        5,
			},
		},
		{
			name: "empty_components",
			record: &Record{
				Landmarks:   []LandmarkItem{},
				Blendshapes: []BlendshapeItem{},
			},
		},
		{
			name: "float_formats",
			record: &Record{
				Matrices: [][]float64{{1e-7, 2.5e21, -0.000001}},
				T:        -1,
				DT:       0.125,
			},
		},
	}

	g := newGolden(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, err := tt.record.EncodeLine()
			require.NoError(t, err)
			g.Assert(t, tt.name, line)
		})
	}
}

func TestEncodeLineEndsWithOneNewline(t *testing.T) {
	line, err := (&Record{T: 1, DT: 2}).EncodeLine()
	require.NoError(t, err)

	assert.True(t, bytes.HasSuffix(line, []byte("\n")))
	assert.Equal(t, 1, bytes.Count(line, []byte("\n")))
}

func TestEncodeLineRejectsNonFinite(t *testing.T) {
	tests := []struct {
		name   string
		record *Record
		field  string
	}{
		{name: "NaN timestamp", record: &Record{T: math.NaN()}, field: "t:"},
		{name: "Infinite latency", record: &Record{DT: math.Inf(1)}, field: "dt:"},
		{name: "Infinite matrix value", record: &Record{Matrices: [][]float64{{0, math.Inf(-1)}}}, field: "m[0][1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.record.EncodeLine()
			var encErr *EncodeError
			require.True(t, errors.As(err, &encErr), "want *EncodeError, got %v", err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestMarshalJSONMatchesEncodeLine(t *testing.T) {
	rec := &Record{
		Landmarks: []LandmarkItem{{Points: []int32{1, 2}, HasZ: false}},
		T:         10,
		DT:        1,
	}
	line, err := rec.EncodeLine()
	require.NoError(t, err)

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Equal(t, string(bytes.TrimSuffix(line, []byte("\n"))), string(data))
}

func TestNativeOmitsAbsentComponents(t *testing.T) {
	rec := &Record{
		Landmarks: []LandmarkItem{{Points: []int32{12345, 67890}, HasZ: false}},
		T:         1000,
		DT:        5,
	}

	native := rec.Native()
	assert.Equal(t, 1000.0, native["t"])
	assert.Equal(t, 5.0, native["dt"])
	assert.NotContains(t, native, "b")
	assert.NotContains(t, native, "m")

	l, ok := native["l"].([]any)
	require.True(t, ok)
	require.Len(t, l, 1)
	item := l[0].(map[string]any)
	assert.Equal(t, []int32{12345, 67890}, item["p"])
	assert.Equal(t, false, item["z"])
}

func TestNativeKeepsPresentEmptyComponents(t *testing.T) {
	native := (&Record{Blendshapes: []BlendshapeItem{}, Matrices: [][]float64{}}).Native()

	assert.Equal(t, []any{}, native["b"])
	assert.Equal(t, [][]float64{}, native["m"])
	assert.NotContains(t, native, "l")
}

func TestDecodeRecord(t *testing.T) {
	rec, err := DecodeRecord([]byte(`{"l":[{"p":[1,2,3],"z":true}],"b":[],"t":5,"dt":0.5}` + "\n"))
	require.NoError(t, err)

	require.NotNil(t, rec.Landmarks)
	assert.Equal(t, []int32{1, 2, 3}, rec.Landmarks[0].Points)
	assert.True(t, rec.Landmarks[0].HasZ)
	assert.NotNil(t, rec.Blendshapes, "present but empty must stay non-nil")
	assert.Empty(t, rec.Blendshapes)
	assert.Nil(t, rec.Matrices, "absent must stay nil")
	assert.Equal(t, 5.0, rec.T)
	assert.Equal(t, 0.5, rec.DT)
}

func TestDecodeRecordRoundTrip(t *testing.T) {
	orig := &Record{
		Landmarks:   []LandmarkItem{{Points: []int32{-4, 9}, HasZ: false}},
		Blendshapes: []BlendshapeItem{{Scores: []int32{7, 8}, Indices: []int32{0, 1}, IDs: []int32{25, 44}}},
		Matrices:    [][]float64{{0.25, -1}},
		T:           1700000000123.25,
		DT:          3,
	}
	line, err := orig.EncodeLine()
	require.NoError(t, err)

	got, err := DecodeRecord(line)
	require.NoError(t, err)
	assert.Equal(t, orig, got)
}

func TestDecodeRecordRequiresTimes(t *testing.T) {
	_, err := DecodeRecord([]byte(`{"l":[]}`))
	assert.ErrorIs(t, err, ErrMalformedRecord)

	_, err = DecodeRecord([]byte(`{"t":1}`))
	assert.ErrorIs(t, err, ErrMalformedRecord)

	_, err = DecodeRecord([]byte(`not json`))
	assert.Error(t, err)
}
