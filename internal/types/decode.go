package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MissingFieldError reports a required key that was absent from the input.
type MissingFieldError struct {
	Object string
	Fields []string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: missing required field(s) %s", e.Object, strings.Join(e.Fields, ", "))
}

// UnmarshalJSON requires x and y. z stays nil when absent or null.
func (l *Landmark) UnmarshalJSON(data []byte) error {
	var raw struct {
		X *float64 `json:"x"`
		Y *float64 `json:"y"`
		Z *float64 `json:"z"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var missing []string
	if raw.X == nil {
		missing = append(missing, "x")
	}
	if raw.Y == nil {
		missing = append(missing, "y")
	}
	if len(missing) > 0 {
		return &MissingFieldError{Object: "landmark", Fields: missing}
	}

	*l = Landmark{X: *raw.X, Y: *raw.Y, Z: raw.Z}
	return nil
}

// UnmarshalJSON requires score, index and categoryName. displayName and
// any other detector metadata is dropped.
func (c *Category) UnmarshalJSON(data []byte) error {
	var raw struct {
		Score *float64 `json:"score"`
		Index *int32   `json:"index"`
		Name  *string  `json:"categoryName"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var missing []string
	if raw.Score == nil {
		missing = append(missing, "score")
	}
	if raw.Index == nil {
		missing = append(missing, "index")
	}
	if raw.Name == nil {
		missing = append(missing, "categoryName")
	}
	if len(missing) > 0 {
		return &MissingFieldError{Object: "category", Fields: missing}
	}

	*c = Category{Score: *raw.Score, Index: *raw.Index, Name: *raw.Name}
	return nil
}

// UnmarshalJSON requires categories.
func (g *ClassificationGroup) UnmarshalJSON(data []byte) error {
	var raw struct {
		Categories *[]Category `json:"categories"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Categories == nil {
		return &MissingFieldError{Object: "classifications", Fields: []string{"categories"}}
	}
	g.Categories = *raw.Categories
	if g.Categories == nil {
		g.Categories = []Category{}
	}
	return nil
}

// UnmarshalJSON requires data. rows and columns are informational.
func (m *TransformationMatrix) UnmarshalJSON(data []byte) error {
	var raw struct {
		Rows    int        `json:"rows"`
		Columns int        `json:"columns"`
		Data    *[]float64 `json:"data"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Data == nil {
		return &MissingFieldError{Object: "matrix", Fields: []string{"data"}}
	}
	*m = TransformationMatrix{Rows: raw.Rows, Columns: raw.Columns, Data: *raw.Data}
	if m.Data == nil {
		m.Data = []float64{}
	}
	return nil
}
