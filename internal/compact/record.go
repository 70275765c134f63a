package compact

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Record is the compacted form of one frame.
//
// A nil component slice means the component is not part of the record and
// its key is left out of every encoding. A non-nil empty slice is encoded as
// an empty list.
type Record struct {
	Landmarks   []LandmarkItem
	Blendshapes []BlendshapeItem
	Matrices    [][]float64
	T           float64 // capture time, epoch milliseconds
	DT          float64 // time from capture to compaction, milliseconds
}

// EncodeLine renders r as a single JSON line with short keys, terminated by
// exactly one newline.
func (r *Record) EncodeLine() ([]byte, error) {
	var buf bytes.Buffer
	if err := r.writeJSON(&buf); err != nil {
		return nil, &EncodeError{Err: err}
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// MarshalJSON renders r like EncodeLine, without the newline.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := r.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeJSON emits keys in the fixed order l, b, m, t, dt.
func (r *Record) writeJSON(buf *bytes.Buffer) error {
	buf.WriteByte('{')

	if r.Landmarks != nil {
		buf.WriteString(`"l":[`)
		for i, item := range r.Landmarks {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(`{"p":`)
			writeInts(buf, item.Points)
			buf.WriteString(`,"z":`)
			buf.WriteString(strconv.FormatBool(item.HasZ))
			buf.WriteByte('}')
		}
		buf.WriteString("],")
	}

	if r.Blendshapes != nil {
		buf.WriteString(`"b":[`)
		for i, item := range r.Blendshapes {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(`{"s":`)
			writeInts(buf, item.Scores)
			buf.WriteString(`,"i":`)
			writeInts(buf, item.Indices)
			buf.WriteString(`,"c":`)
			writeInts(buf, item.IDs)
			buf.WriteByte('}')
		}
		buf.WriteString("],")
	}

	if r.Matrices != nil {
		buf.WriteString(`"m":[`)
		for i, m := range r.Matrices {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteByte('[')
			for j, v := range m {
				if j > 0 {
					buf.WriteByte(',')
				}
				if err := writeFloat(buf, v); err != nil {
					return fmt.Errorf("m[%d][%d]: %w", i, j, err)
				}
			}
			buf.WriteByte(']')
		}
		buf.WriteString("],")
	}

	buf.WriteString(`"t":`)
	if err := writeFloat(buf, r.T); err != nil {
		return fmt.Errorf("t: %w", err)
	}
	buf.WriteString(`,"dt":`)
	if err := writeFloat(buf, r.DT); err != nil {
		return fmt.Errorf("dt: %w", err)
	}

	buf.WriteByte('}')
	return nil
}

func writeInts(buf *bytes.Buffer, vs []int32) {
	buf.WriteByte('[')
	var scratch [12]byte
	for i, v := range vs {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(strconv.AppendInt(scratch[:0], int64(v), 10))
	}
	buf.WriteByte(']')
}

// writeFloat formats v the way encoding/json does: shortest representation,
// exponent form only for very small or very large magnitudes.
func writeFloat(buf *bytes.Buffer, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("unsupported value %v", v)
	}

	format := byte('f')
	if abs := math.Abs(v); abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		format = 'e'
	}

	var scratch [32]byte
	b := strconv.AppendFloat(scratch[:0], v, format, -1, 64)
	if format == 'e' {
		// e-07 -> e-7
		if n := len(b); n >= 4 && b[n-4] == 'e' && b[n-3] == '-' && b[n-2] == '0' {
			b[n-2] = b[n-1]
			b = b[:n-1]
		}
	}
	buf.Write(b)
	return nil
}

// Native returns r as generic maps and slices keyed by the short field names,
// for callers that hand records to another structured encoder. The returned
// value shares backing arrays with r.
func (r *Record) Native() map[string]any {
	out := map[string]any{
		"t":  r.T,
		"dt": r.DT,
	}

	if r.Landmarks != nil {
		l := make([]any, len(r.Landmarks))
		for i, item := range r.Landmarks {
			l[i] = map[string]any{"p": item.Points, "z": item.HasZ}
		}
		out["l"] = l
	}

	if r.Blendshapes != nil {
		b := make([]any, len(r.Blendshapes))
		for i, item := range r.Blendshapes {
			b[i] = map[string]any{"s": item.Scores, "i": item.Indices, "c": item.IDs}
		}
		out["b"] = b
	}

	if r.Matrices != nil {
		out["m"] = r.Matrices
	}

	return out
}

// UnmarshalJSON parses the textual form. t and dt are required; present but
// empty components decode to empty, non-nil slices.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw struct {
		L  *[]LandmarkItem   `json:"l"`
		B  *[]BlendshapeItem `json:"b"`
		M  *[][]float64      `json:"m"`
		T  *float64          `json:"t"`
		DT *float64          `json:"dt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.T == nil || raw.DT == nil {
		return fmt.Errorf("%w: t and dt are required", ErrMalformedRecord)
	}

	*r = Record{T: *raw.T, DT: *raw.DT}
	if raw.L != nil {
		r.Landmarks = *raw.L
		if r.Landmarks == nil {
			r.Landmarks = []LandmarkItem{}
		}
	}
	if raw.B != nil {
		r.Blendshapes = *raw.B
		if r.Blendshapes == nil {
			r.Blendshapes = []BlendshapeItem{}
		}
	}
	if raw.M != nil {
		r.Matrices = *raw.M
		if r.Matrices == nil {
			r.Matrices = [][]float64{}
		}
	}
	return nil
}

// DecodeRecord parses one textual record, with or without its newline.
func DecodeRecord(line []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(bytes.TrimSpace(line), &r); err != nil {
		return nil, err
	}
	return &r, nil
}
