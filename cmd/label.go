package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/facepack/internal/utils"
)

var labelCmd = &cobra.Command{
	Use:   "label <session_id> <label>",
	Short: "Attach a label to a capture session",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		id := args[0]
		label := strings.TrimSpace(args[1])
		if label == "" {
			utils.Die("Invalid label", fmt.Errorf("label must not be blank"))
		}

		runLabel(cmd, id, label)
	},
}

func init() {
	rootCmd.AddCommand(labelCmd)
}

func runLabel(cmd *cobra.Command, id, label string) {
	ctx := cmd.Context()
	if err := connectDB(ctx); err != nil {
		utils.Die("Database unavailable", err)
	}

	if err := DB.LabelSession(ctx, id, label); err != nil {
		utils.Die("Failed to label session", err)
	}

	fmt.Printf("✅ Session %s labeled as '%s'\n", id, label)
}
