package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/andresmejia3/facepack/internal/sink"
	"github.com/andresmejia3/facepack/internal/spool"
	"github.com/andresmejia3/facepack/internal/stats"
	"github.com/andresmejia3/facepack/internal/types"
	"github.com/andresmejia3/facepack/internal/utils"
	"github.com/andresmejia3/facepack/internal/worker"
)

// streamOptions holds the flags of the stream command.
type streamOptions struct {
	Selection   selectionFlags
	InputPath   string
	OutputPath  string
	Framed      bool
	Session     string
	SeriesType  string
	Portal      string
	Persist     bool
	SpoolPath   string
	NumEngines  int
	BatchWindow time.Duration
	MaxBatch    int
	NoProgress  bool
}

var streamOpts streamOptions

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Compact a stream of frames with parallel engines",
	Long: `Reads JSON lines of the form {"timestamp": <epoch ms>, "dataPoint": {...}} and
delivers one compacted record per usable frame, in input order.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		applyStreamDefaults(cmd, &streamOpts)
		if err := validateStreamFlags(&streamOpts); err != nil {
			return err
		}
		return runStream(cmd.Context(), cmd, streamOpts)
	},
}

func init() {
	f := streamCmd.Flags()
	streamOpts.Selection.register(streamCmd)
	f.StringVarP(&streamOpts.InputPath, "input", "i", "-", "JSON lines input (- for stdin)")
	f.StringVarP(&streamOpts.OutputPath, "output", "o", "-", "Record output file (- for stdout, empty to disable)")
	f.BoolVar(&streamOpts.Framed, "framed", false, "Write length-prefixed records instead of lines")
	f.StringVar(&streamOpts.Session, "session", "", "Capture session id (default: a new UUID)")
	f.StringVar(&streamOpts.SeriesType, "series-type", "", "Time series type (default: face_landmark)")
	f.StringVar(&streamOpts.Portal, "portal", "", "Time series portal base URL; enables the webhook sink")
	f.BoolVar(&streamOpts.Persist, "persist", false, "Store records in PostgreSQL")
	f.StringVar(&streamOpts.SpoolPath, "spool", "", "SQLite file that keeps batches the portal or database rejected")
	f.IntVarP(&streamOpts.NumEngines, "engines", "e", 0, "Number of parallel compaction engines (default: 1)")
	f.DurationVar(&streamOpts.BatchWindow, "batch-window", 0, "How long a batch collects frames before delivery (default: 2s)")
	f.IntVar(&streamOpts.MaxBatch, "max-batch", 0, "Deliver a batch once it holds this many frames (default: 500)")
	f.BoolVar(&streamOpts.NoProgress, "no-progress", false, "Hide the progress spinner")
	rootCmd.AddCommand(streamCmd)
}

// applyStreamDefaults fills unset flags from the configuration.
func applyStreamDefaults(cmd *cobra.Command, opts *streamOptions) {
	if opts.SeriesType == "" {
		opts.SeriesType = cfg.SeriesType
	}
	if opts.Portal == "" {
		opts.Portal = cfg.Webhook.Portal
	}
	if opts.SpoolPath == "" {
		opts.SpoolPath = cfg.Spool.Path
	}
	if !cmd.Flags().Changed("engines") {
		opts.NumEngines = cfg.Engines
	}
	if opts.BatchWindow <= 0 {
		opts.BatchWindow = cfg.Batch.Window
	}
	if opts.MaxBatch <= 0 {
		opts.MaxBatch = cfg.Batch.MaxBatch
	}
	if opts.Session == "" {
		opts.Session = utils.NewSessionID()
	}
}

// validateStreamFlags ensures all CLI arguments are valid before starting the engines.
func validateStreamFlags(opts *streamOptions) error {
	if opts.NumEngines < 1 {
		return fmt.Errorf("invalid engine count: must be >= 1, got %d", opts.NumEngines)
	}
	if opts.Session != "" && !utils.ValidSessionID(opts.Session) {
		return fmt.Errorf("invalid session id %q: must be a UUID", opts.Session)
	}
	if opts.Framed && opts.OutputPath == "" {
		return fmt.Errorf("--framed needs an --output")
	}
	if opts.SpoolPath != "" && opts.Portal == "" && !opts.Persist {
		return fmt.Errorf("--spool needs --portal or --persist")
	}
	if opts.Portal != "" {
		if _, err := sink.TimeSeriesURL(opts.Portal, opts.SeriesType); err != nil {
			return err
		}
	}
	return nil
}

// runStream orchestrates the streaming process: sinks, engine pool, input
// scanning and progress tracking.
func runStream(ctx context.Context, cmd *cobra.Command, opts streamOptions) error {
	sel, err := opts.Selection.resolve(cmd)
	if err != nil {
		return err
	}
	c, err := newCompactor()
	if err != nil {
		return err
	}

	in, err := utils.OpenInput(opts.InputPath)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer in.Close()

	monitor := stats.NewMonitor(stats.DefaultWindow, nil)
	sinks, err := buildSinks(ctx, cmd, opts, monitor)
	if err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	fmt.Fprintf(stderr, "🎬 Session: %s (%s)\n", opts.Session, opts.SeriesType)
	if sinks.seqBase > 0 {
		fmt.Fprintf(stderr, "➕ Resuming stored session at frame %d\n", sinks.seqBase)
	}
	fmt.Fprintf(stderr, "⚙️  Spawning %d Compaction Engines...\n", opts.NumEngines)

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("🗜  Compacting"),
		progressbar.OptionSetWriter(stderr), // Write bar to Stderr
		progressbar.OptionShowCount(),
		progressbar.OptionSetVisibility(!opts.NoProgress),
	)

	pool := worker.NewPool(c, sel, opts.NumEngines, logger)
	tasks := make(chan types.FrameTask, opts.NumEngines)
	started := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := worker.Scan(gctx, in, tasks)
		return err
	})
	g.Go(func() error {
		return pool.Run(gctx, tasks, func(r worker.Result) error {
			record(monitor, r)
			bar.Describe(liveRates(monitor))
			bar.Add(1)
			if r.Status() != worker.StatusCompacted {
				return nil
			}
			frame := r.Frame()
			frame.Seq += sinks.seqBase
			return sinks.out.Send(gctx, []types.CompactedFrame{frame})
		})
	})
	runErr := g.Wait()

	// Close flushes pending batches even when the stream was interrupted.
	closeErr := sinks.close()
	bar.Finish()

	printStreamSummary(stderr, monitor, time.Since(started))
	if runErr != nil {
		return fmt.Errorf("stream aborted: %w", runErr)
	}
	return closeErr
}

func record(m *stats.Monitor, r worker.Result) {
	m.Incr(stats.Analyzed, 1)
	m.Incr(stats.BytesIn, float64(r.InputBytes))
	switch r.Status() {
	case worker.StatusCompacted:
		m.Incr(stats.Compacted, 1)
		m.Incr(stats.BytesOut, float64(len(r.Output.Text)))
		m.Incr(stats.Latency, r.Output.Record.DT)
	case worker.StatusSkipped:
		m.Incr(stats.Skipped, 1)
	default:
		m.Incr(stats.Failed, 1)
	}
}

// liveRates describes the last window for the progress bar.
func liveRates(m *stats.Monitor) string {
	return fmt.Sprintf("🗜  %.0f fps, %s/s out", m.Recent(stats.Analyzed), utils.HumanBytes(m.Recent(stats.BytesOut)))
}

// streamSinks is the delivery side of a stream.
type streamSinks struct {
	out     sink.Sink
	close   func() error
	seqBase int // first seq of this run within a stored session
}

// buildSinks wires the batched remote deliveries and the local output. The
// local output is opened last so a failing remote setup leaves no
// truncated file behind.
func buildSinks(ctx context.Context, cmd *cobra.Command, opts streamOptions, monitor *stats.Monitor) (*streamSinks, error) {
	var closers []func() error
	fail := func(err error) (*streamSinks, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		return nil, err
	}
	res := &streamSinks{}

	var remote []sink.Sink
	if opts.Portal != "" {
		wh, err := sink.NewWebhook(opts.Portal, opts.SeriesType, opts.Session,
			sink.WithWebhookRetries(cfg.Webhook.Retries),
			sink.WithWebhookClient(&http.Client{Timeout: cfg.Webhook.Timeout}),
			sink.WithWebhookLogger(logger))
		if err != nil {
			return fail(err)
		}
		remote = append(remote, wh)
	}
	if opts.Persist {
		if err := connectDB(ctx); err != nil {
			return fail(err)
		}
		next, err := DB.EnsureSession(ctx, opts.Session, opts.SeriesType)
		if err != nil {
			return fail(fmt.Errorf("failed to register session: %w", err))
		}
		res.seqBase = next
		remote = append(remote, sink.NewStore(DB, opts.Session))
	}

	var all []sink.Sink
	if len(remote) > 0 {
		var next sink.Sink = sink.NewRouter(logger, remote...)
		if opts.SpoolPath != "" {
			sp, err := spool.Open(opts.SpoolPath)
			if err != nil {
				return fail(err)
			}
			closers = append(closers, sp.Close)
			next = sink.NewSpooled(next, sp, opts.Session, opts.SeriesType, logger)
		}

		batcher := sink.NewBatcher(ctx, next,
			sink.BatchConfig{Window: opts.BatchWindow, MaxBatch: opts.MaxBatch},
			sink.WithBatcherLogger(logger),
			sink.WithFlushHook(func(n int, err error) {
				if err == nil {
					monitor.Incr(stats.Posted, float64(n))
				}
			}))
		all = append(all, batcher)
	}

	if opts.OutputPath != "" {
		w, closeW, err := openOutput(cmd, opts.OutputPath)
		if err != nil {
			return fail(err)
		}
		if opts.Framed {
			all = append(all, sink.NewFramed(w))
		} else {
			all = append(all, sink.NewWriter(w))
			closers = append(closers, closeW)
		}
	}

	if len(all) == 0 {
		// Nothing to deliver to; the stream still reports its stats.
		res.out = sink.Discard
		res.close = func() error { return nil }
		return res, nil
	}

	router := sink.NewRouter(logger, all...)
	res.out = router
	res.close = func() error {
		// Closing the router flushes the batcher while the spool is still open.
		err := router.Close()
		for _, c := range closers {
			if cerr := c(); err == nil {
				err = cerr
			}
		}
		return err
	}
	return res, nil
}

// nopWriteCloser keeps stdout open when a sink closes its writer.
type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func openOutput(cmd *cobra.Command, path string) (io.WriteCloser, func() error, error) {
	if path == "-" {
		return nopWriteCloser{cmd.OutOrStdout()}, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output: %w", err)
	}
	return f, f.Close, nil
}

func printStreamSummary(w io.Writer, m *stats.Monitor, elapsed time.Duration) {
	fmt.Fprintf(w, "\n---------------------------------------------------------\n")
	fmt.Fprintf(w, "📊 STREAM SUMMARY\n")
	fmt.Fprintf(w, "---------------------------------------------------------\n")
	fmt.Fprintf(w, "📍 Frames Analyzed:    %.0f\n", m.Total(stats.Analyzed))
	fmt.Fprintf(w, "🗜  Frames Compacted:   %.0f\n", m.Total(stats.Compacted))
	fmt.Fprintf(w, "🚫 Frames Skipped:     %.0f\n", m.Total(stats.Skipped))
	fmt.Fprintf(w, "⚠️  Frames Failed:      %.0f\n", m.Total(stats.Failed))
	if posted := m.Total(stats.Posted); posted > 0 {
		fmt.Fprintf(w, "⬆️  Frames Delivered:   %.0f\n", posted)
	}
	fmt.Fprintf(w, "\n📦 %s in -> %s out (ratio %.3f)\n",
		utils.HumanBytes(m.Total(stats.BytesIn)), utils.HumanBytes(m.Total(stats.BytesOut)), m.Ratio())
	if secs := elapsed.Seconds(); secs > 0 {
		fmt.Fprintf(w, "⏱️  %.1f frames/s over %s\n", m.Total(stats.Analyzed)/secs, elapsed.Round(time.Millisecond))
	}
	if n := m.Total(stats.Compacted); n > 0 {
		fmt.Fprintf(w, "🕒 Mean compaction latency: %.1f ms\n", m.Total(stats.Latency)/n)
	}

	fmt.Fprintf(w, "\n📈 Last %.0fs:\n", stats.DefaultWindow/1000.0)
	for _, st := range m.Snapshot() {
		switch {
		case st.Kind == stats.Average:
			fmt.Fprintf(w, "   %-10s %.1f ms avg\n", st.Name, st.Recent)
		case st.Name == stats.BytesIn || st.Name == stats.BytesOut:
			fmt.Fprintf(w, "   %-10s %s/s\n", st.Name, utils.HumanBytes(st.Recent))
		default:
			fmt.Fprintf(w, "   %-10s %.1f/s\n", st.Name, st.Recent)
		}
	}
	fmt.Fprintf(w, "---------------------------------------------------------\n")
}
