package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/andresmejia3/facepack/internal/clock"
	"github.com/andresmejia3/facepack/internal/compact"
	"github.com/andresmejia3/facepack/internal/utils"
)

var (
	compactSel       selectionFlags
	compactInput     string
	compactTimestamp float64
	compactFormat    string
)

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Compact a single detection result",
	Long:  "Reads one detection result (JSON) and writes its compacted record. Frames with nothing to send produce no output.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if compactFormat != "text" && compactFormat != "native" {
			return fmt.Errorf("--format must be text or native, got %q", compactFormat)
		}
		if !cmd.Flags().Changed("timestamp") {
			compactTimestamp = clock.System{}.Now()
		}
		return runCompact(cmd, cmd.OutOrStdout())
	},
}

func init() {
	compactSel.register(compactCmd)
	compactCmd.Flags().StringVarP(&compactInput, "input", "i", "-", "Detection result JSON file (- for stdin)")
	compactCmd.Flags().Float64VarP(&compactTimestamp, "timestamp", "t", 0, "Capture time in epoch milliseconds (default: now)")
	compactCmd.Flags().StringVarP(&compactFormat, "format", "f", "text", "Output format: text (one JSON line) or native (YAML view of the record)")
	rootCmd.AddCommand(compactCmd)
}

func runCompact(cmd *cobra.Command, out io.Writer) error {
	c, err := newCompactor()
	if err != nil {
		return err
	}

	in, err := utils.OpenInput(compactInput)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	datapoint, err := io.ReadAll(in)
	in.Close()
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	asText := compactFormat == "text"
	var res compact.Output
	if raw, ok, err := compactSel.rawConfig(); err != nil {
		return err
	} else if ok {
		res, err = c.CompactRaw(raw, datapoint, compactTimestamp, asText)
		if err != nil {
			return err
		}
	} else {
		sel, err := compactSel.resolve(cmd)
		if err != nil {
			return err
		}
		if res, err = c.CompactSelected(sel, datapoint, compactTimestamp, asText); err != nil {
			return err
		}
	}

	if res.NoData() {
		fmt.Fprintln(cmd.ErrOrStderr(), "⏭️  Nothing to send for this frame.")
		return nil
	}

	if asText {
		_, err = out.Write(res.Text)
		return err
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(res.Native); err != nil {
		return err
	}
	return enc.Close()
}
