package cmd

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/facepack/internal/compact"
	"github.com/andresmejia3/facepack/internal/sink"
	"github.com/andresmejia3/facepack/internal/types"
	"github.com/andresmejia3/facepack/internal/utils"
	"github.com/andresmejia3/facepack/internal/worker"
)

var (
	expandInput   string
	expandSession string
	expandFramed  bool
)

var expandCmd = &cobra.Command{
	Use:   "expand",
	Short: "Turn compacted records back into detection results",
	Long: `Reads compacted records (lines, length-prefixed frames, or a stored session) and
writes one {"timestamp", "dataPoint"} line per record, the same shape stream reads.
Values come back within the quantization error bound.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newCompactor()
		if err != nil {
			return err
		}
		out := bufio.NewWriter(cmd.OutOrStdout())
		defer out.Flush()

		emit := func(payload []byte) error {
			return expandRecord(c, out, payload)
		}

		if expandSession != "" {
			if err := connectDB(cmd.Context()); err != nil {
				return err
			}
			frames, err := DB.SessionFrames(cmd.Context(), expandSession)
			if err != nil {
				return err
			}
			for _, f := range frames {
				if err := emit(f.Payload); err != nil {
					return fmt.Errorf("seq %d: %w", f.Seq, err)
				}
			}
			return nil
		}

		in, err := utils.OpenInput(expandInput)
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		defer in.Close()

		if expandFramed {
			return readFramed(in, emit)
		}
		return readLines(in, emit)
	},
}

func init() {
	expandCmd.Flags().StringVarP(&expandInput, "input", "i", "-", "Compacted records (- for stdin)")
	expandCmd.Flags().StringVar(&expandSession, "session", "", "Read a stored session from PostgreSQL instead")
	expandCmd.Flags().BoolVar(&expandFramed, "framed", false, "Input is length-prefixed records")
	rootCmd.AddCommand(expandCmd)
}

// expandedFrame mirrors types.FrameInput with a decoded datapoint.
type expandedFrame struct {
	Timestamp float64               `json:"timestamp"`
	DataPoint types.DetectionResult `json:"dataPoint"`
}

func expandRecord(c *compact.Compactor, w io.Writer, payload []byte) error {
	rec, err := compact.DecodeRecord(payload)
	if err != nil {
		return err
	}
	dp, err := c.Expand(rec)
	if err != nil {
		return err
	}

	line, err := json.Marshal(expandedFrame{Timestamp: rec.T, DataPoint: dp})
	if err != nil {
		return err
	}
	_, err = w.Write(append(line, '\n'))
	return err
}

func readLines(r io.Reader, emit func([]byte) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), worker.MaxLine)

	n := 0
	for scanner.Scan() {
		n++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := emit(line); err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
	}
	return scanner.Err()
}

func readFramed(r io.Reader, emit func([]byte) error) error {
	for n := 1; ; n++ {
		payload, err := sink.ReadFrame(r)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := emit(payload); err != nil {
			return fmt.Errorf("record %d: %w", n, err)
		}
	}
}
