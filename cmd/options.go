package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/facepack/internal/compact"
)

// selectionFlags holds the component selection shared by compact and stream.
type selectionFlags struct {
	Path               string
	Transform          bool
	Landmarks          bool
	Blendshapes        bool
	StripZ             bool
	IncludeLandmarks   string
	IncludeBlendshapes string
}

func (o *selectionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.Path, "selection", "s", "", "JSON capture config with FaceTransformation, Landmarks, Blendshapes and StripZCoordinates")
	cmd.Flags().BoolVar(&o.Transform, "transform", false, "Include facial transformation matrices")
	cmd.Flags().BoolVar(&o.Landmarks, "landmarks", false, "Include landmarks")
	cmd.Flags().BoolVar(&o.Blendshapes, "blendshapes", false, "Include blendshapes")
	cmd.Flags().BoolVar(&o.StripZ, "strip-z", false, "Drop the z coordinate of landmarks")
	cmd.Flags().StringVar(&o.IncludeLandmarks, "include-landmarks", "", "Comma separated landmark indices to keep")
	cmd.Flags().StringVar(&o.IncludeBlendshapes, "include-blendshapes", "", "Comma separated blendshape names to keep")
}

// rawConfig returns the JSON capture config when --selection was given.
func (o *selectionFlags) rawConfig() ([]byte, bool, error) {
	if o.Path == "" {
		return nil, false, nil
	}
	data, err := os.ReadFile(o.Path)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// resolve picks the selection from --selection, then the component flags,
// then the config file.
func (o *selectionFlags) resolve(cmd *cobra.Command) (compact.Selection, error) {
	if data, ok, err := o.rawConfig(); err != nil {
		return compact.Selection{}, err
	} else if ok {
		var sel compact.Selection
		if err := sel.UnmarshalJSON(data); err != nil {
			return compact.Selection{}, &compact.DecodeError{Input: "config", Err: err}
		}
		return sel, nil
	}

	changed := false
	for _, name := range []string{"transform", "landmarks", "blendshapes", "strip-z", "include-landmarks", "include-blendshapes"} {
		changed = changed || cmd.Flags().Changed(name)
	}
	if !changed {
		return cfg.Selection, nil
	}

	include, err := compact.ParseLandmarkList(o.IncludeLandmarks)
	if err != nil {
		return compact.Selection{}, fmt.Errorf("--include-landmarks: %w", err)
	}
	return compact.Selection{
		FaceTransformation: o.Transform,
		Landmarks:          o.Landmarks,
		Blendshapes:        o.Blendshapes,
		StripZCoordinates:  o.StripZ,
		IncludeLandmarks:   include,
		IncludeBlendshapes: compact.ParseNameList(o.IncludeBlendshapes),
	}, nil
}
