package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/facepack/internal/utils"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List all capture sessions in the database",
	Run: func(cmd *cobra.Command, args []string) {
		runSessions(cmd)
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions(cmd *cobra.Command) {
	ctx := cmd.Context()
	if err := connectDB(ctx); err != nil {
		utils.Die("Database unavailable", err)
	}

	sessions, err := DB.ListSessions(ctx)
	if err != nil {
		utils.Die("Failed to list sessions", err)
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions found in database.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tSERIES\tLABEL\tFRAMES\tCREATED")
	fmt.Fprintln(w, "--\t------\t-----\t------\t-------")

	for _, s := range sessions {
		label := s.Label
		if label == "" {
			label = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", s.ID, s.SeriesType, label, s.Frames, s.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	w.Flush()
}
