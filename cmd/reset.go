package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/facepack/internal/utils"
)

var (
	resetDB    bool
	resetSpool bool
	resetYes   bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset system state (Database, Spool)",
	Long:  "Clears all data. By default, it resets everything. Use flags to clear specific components.",
	Run: func(cmd *cobra.Command, args []string) {
		// If no flags are set, default to clearing EVERYTHING
		if !resetDB && !resetSpool {
			resetDB = true
			resetSpool = true
		}

		reader := bufio.NewReader(cmd.InOrStdin())

		if resetDB {
			if resetYes || confirm(reader, "⚠️  Are you sure you want to DROP all database tables?") {
				if err := connectDB(cmd.Context()); err != nil {
					utils.Die("Database unavailable", err)
				}
				fmt.Println("🗑️  Clearing Database...")
				if err := DB.Reset(cmd.Context()); err != nil {
					utils.Die("Failed to reset database", err)
				}
			}
		}

		if resetSpool {
			path := cfg.Spool.Path
			if path == "" {
				fmt.Println("ℹ️  No spool configured, skipping.")
			} else if resetYes || confirm(reader, fmt.Sprintf("⚠️  Are you sure you want to delete the spool at %s?", path)) {
				fmt.Println("🗑️  Clearing Spool...")
				// SQLite keeps its WAL next to the database file.
				for _, p := range []string{path, path + "-wal", path + "-shm"} {
					removeFile(p)
				}
			}
		}

		fmt.Println("✨ System Reset Complete.")
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetDB, "database", false, "Clear PostgreSQL database")
	resetCmd.Flags().BoolVar(&resetSpool, "spool", false, "Delete the spool file")
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Skip confirmation prompts")
	rootCmd.AddCommand(resetCmd)
}

func confirm(r *bufio.Reader, prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	res, _ := r.ReadString('\n')
	res = strings.TrimSpace(strings.ToLower(res))
	return res == "y" || res == "yes"
}

func removeFile(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "⚠️  Failed to remove %s: %v\n", path, err)
	}
}
