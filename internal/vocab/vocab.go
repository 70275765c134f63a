// Package vocab maps classification category names to stable integer ids.
//
// Detector category indices are positional and may shift between model
// versions. A vocabulary pins each name to an id that downstream consumers
// can rely on.
package vocab

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Vocabulary resolves category names to stable ids and back.
type Vocabulary interface {
	ID(name string) (int32, bool)
	Name(id int32) (string, bool)
}

// Table is an immutable name list where a name's id is its position.
type Table struct {
	names []string
	ids   map[string]int32
}

// FromNames builds a Table. Duplicate names are rejected because they would
// make the reverse lookup ambiguous.
func FromNames(names []string) (*Table, error) {
	t := &Table{
		names: make([]string, len(names)),
		ids:   make(map[string]int32, len(names)),
	}
	copy(t.names, names)
	for i, name := range names {
		if _, dup := t.ids[name]; dup {
			return nil, fmt.Errorf("vocabulary: duplicate name %q at position %d", name, i)
		}
		t.ids[name] = int32(i)
	}
	return t, nil
}

// ID returns the stable id for name.
func (t *Table) ID(name string) (int32, bool) {
	id, ok := t.ids[name]
	return id, ok
}

// Name returns the name registered at id.
func (t *Table) Name(id int32) (string, bool) {
	if id < 0 || int(id) >= len(t.names) {
		return "", false
	}
	return t.names[id], true
}

// Len returns the number of names.
func (t *Table) Len() int { return len(t.names) }

// Names returns a copy of the names in id order.
func (t *Table) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// file is the on-disk YAML layout of a vocabulary.
type file struct {
	Names []string `yaml:"names"`
}

// LoadFile reads a YAML vocabulary of the form:
//
//	names:
//	  - _neutral
//	  - browDownLeft
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("vocabulary: %w", err)
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("vocabulary: parse %s: %w", path, err)
	}
	if len(f.Names) == 0 {
		return nil, fmt.Errorf("vocabulary: %s has no names", path)
	}
	return FromNames(f.Names)
}

// Resolve turns a config value into a vocabulary: "" means none, "mediapipe"
// selects the built-in blendshape table, anything else is a file path.
func Resolve(source string) (Vocabulary, error) {
	switch source {
	case "", "none", "index":
		return nil, nil
	case "mediapipe":
		return MediaPipe(), nil
	default:
		t, err := LoadFile(source)
		if err != nil {
			return nil, err
		}
		return t, nil
	}
}
