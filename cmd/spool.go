package cmd

import (
	"context"
	"fmt"
	"net/http"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/facepack/internal/sink"
	"github.com/andresmejia3/facepack/internal/spool"
)

var (
	spoolPath    string
	spoolPortal  string
	spoolPersist bool
	spoolLimit   int
)

var spoolCmd = &cobra.Command{
	Use:   "spool",
	Short: "Inspect and resend batches kept after failed deliveries",
}

var spoolListCmd = &cobra.Command{
	Use:   "list",
	Short: "List spooled batches",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sp, err := openSpool()
		if err != nil {
			return err
		}
		defer sp.Close()

		batches, err := sp.Pending(cmd.Context(), spoolLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(batches) == 0 {
			fmt.Fprintln(out, "Spool is empty.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tSESSION\tSERIES\tFRAMES\tATTEMPTS\tSPOOLED")
		fmt.Fprintln(w, "--\t-------\t------\t------\t--------\t-------")
		for _, b := range batches {
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%s\n", b.ID, b.Session, b.SeriesType, len(b.Frames), b.Attempts, b.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		}
		w.Flush()

		nb, nf, err := sp.Count(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\n%d batch(es), %d frame(s) pending\n", nb, nf)
		return nil
	},
}

var spoolFlushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Resend spooled batches to the portal and/or the database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		portal := spoolPortal
		if portal == "" {
			portal = cfg.Webhook.Portal
		}
		if portal == "" && !spoolPersist {
			return fmt.Errorf("nothing to flush to: set --portal or --persist")
		}

		sp, err := openSpool()
		if err != nil {
			return err
		}
		defer sp.Close()

		ctx := cmd.Context()
		if spoolPersist {
			if err := connectDB(ctx); err != nil {
				return err
			}
		}

		batches, err := sp.Pending(ctx, spoolLimit)
		if err != nil {
			return err
		}

		var sent, failed int
		for _, b := range batches {
			if err := resendBatch(ctx, portal, b); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Warn("spooled batch still undeliverable", "id", b.ID, "session", b.Session, "error", err)
				if err := sp.MarkFailed(ctx, b.ID); err != nil {
					return err
				}
				failed++
				continue
			}
			if err := sp.Delete(ctx, b.ID); err != nil {
				return err
			}
			sent++
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✅ Resent %d batch(es), %d still pending\n", sent, failed)
		if failed > 0 {
			return fmt.Errorf("%d batch(es) could not be delivered", failed)
		}
		return nil
	},
}

func init() {
	spoolCmd.PersistentFlags().StringVar(&spoolPath, "path", "", "Spool file (default: spool.path from the config)")
	spoolCmd.PersistentFlags().IntVar(&spoolLimit, "limit", 0, "Only handle the oldest N batches (0 for all)")
	spoolFlushCmd.Flags().StringVar(&spoolPortal, "portal", "", "Time series portal base URL (default: webhook.portal from the config)")
	spoolFlushCmd.Flags().BoolVar(&spoolPersist, "persist", false, "Store the batches in PostgreSQL")

	spoolCmd.AddCommand(spoolListCmd, spoolFlushCmd)
	rootCmd.AddCommand(spoolCmd)
}

func openSpool() (*spool.Spool, error) {
	path := spoolPath
	if path == "" {
		path = cfg.Spool.Path
	}
	if path == "" {
		return nil, fmt.Errorf("no spool configured: set --path or spool.path")
	}
	return spool.Open(path)
}

// resendBatch delivers one spooled batch under the session and series type it
// was captured with.
func resendBatch(ctx context.Context, portal string, b spool.Batch) error {
	var targets []sink.Sink
	if portal != "" {
		wh, err := sink.NewWebhook(portal, b.SeriesType, b.Session,
			sink.WithWebhookRetries(cfg.Webhook.Retries),
			sink.WithWebhookClient(&http.Client{Timeout: cfg.Webhook.Timeout}),
			sink.WithWebhookLogger(logger))
		if err != nil {
			return err
		}
		targets = append(targets, wh)
	}
	if spoolPersist {
		if _, err := DB.EnsureSession(ctx, b.Session, b.SeriesType); err != nil {
			return err
		}
		targets = append(targets, sink.NewStore(DB, b.Session))
	}

	router := sink.NewRouter(logger, targets...)
	defer router.Close()
	return router.Send(ctx, b.Frames)
}
