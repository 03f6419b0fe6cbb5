package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/faisal-shah/logmerge/internal/aggregator"
	"github.com/faisal-shah/logmerge/internal/diag"
	"github.com/faisal-shah/logmerge/internal/drainer"
	"github.com/faisal-shah/logmerge/internal/hub"
	"github.com/faisal-shah/logmerge/internal/metrics"
	"github.com/faisal-shah/logmerge/internal/parser"
	"github.com/faisal-shah/logmerge/internal/server"
	"github.com/faisal-shah/logmerge/internal/store"
	"github.com/faisal-shah/logmerge/internal/supervisor"
	"github.com/faisal-shah/logmerge/internal/tailer"
)

var watchCmd = &cobra.Command{
	Use:   "watch [paths...]",
	Short: "Merge log files live until interrupted",
	Long: `Watch one or more log files (or glob patterns) and merge their records
by timestamp as they grow. In follow mode, newly merged records are printed
as they arrive; otherwise the merged view is printed on exit.

Examples:
  logmerge watch a.log b.log
  logmerge watch "/var/log/**/*.log" --schema ./app.toml
  logmerge watch --dir /var/log/app --pattern 'error.*\.log$' --recursive
  logmerge watch app.log --serve :8080 --output json`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	f := watchCmd.Flags()
	f.Duration("poll-interval", tailer.DefaultPollInterval, "how often each file is checked for growth")
	f.Duration("drain-interval", drainer.DefaultInterval, "how often buffered records are merged")
	f.Duration("shutdown-timeout", supervisor.DefaultShutdownTimeout, "time watchers get to stop cooperatively")
	f.Duration("force-terminate-timeout", supervisor.DefaultForceTerminateTimeout, "extra time before stuck watchers are abandoned")
	f.BoolP("follow", "f", true, "print records as they are merged")
	f.Bool("tail", false, "start at the end of each file instead of the beginning")
	f.Bool("notify", true, "use filesystem notifications to poll early")
	f.String("serve", "", "serve the HTTP API on this address (e.g. :8080)")
	f.String("dir", "", "also watch files under this directory")
	f.String("pattern", `.*\.log$`, "regular expression selecting files under --dir")
	f.Bool("recursive", false, "descend into subdirectories of --dir")

	bindFlags(watchCmd, false, "poll_interval", "drain_interval", "shutdown_timeout", "force_terminate_timeout",
		"follow", "tail", "notify", "serve", "dir", "pattern", "recursive")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger()

	v, err := newView(os.Stdout)
	if err != nil {
		return err
	}
	files, err := resolveFiles(args, logger)
	if err != nil {
		return err
	}

	follow := viper.GetBool("follow")
	addr := viper.GetString("serve")

	m := metrics.New()
	p := parser.New(v.schema, m)
	h := hub.New(logger)
	st := store.New(store.WithFollow(
		func() bool { return follow || addr != "" },
		h.Publish,
	))

	sup := supervisor.New(p, st, supervisor.Options{
		PollInterval:          viper.GetDuration("poll_interval"),
		DrainInterval:         viper.GetDuration("drain_interval"),
		ShutdownTimeout:       viper.GetDuration("shutdown_timeout"),
		ForceTerminateTimeout: viper.GetDuration("force_terminate_timeout"),
		FromEnd:               viper.GetBool("tail"),
		Notify:                viper.GetBool("notify"),
		Logger:                logger,
		Diag:                  diag.LogSink{Logger: logger},
		Metrics:               m,
	})

	var tails <-chan store.Tail
	if follow {
		tails = h.Subscribe()
	}
	if addr != "" {
		agg := aggregator.New(h.Subscribe(), aggregator.Sources{
			Dropped:      h.Dropped,
			Rejected:     p.Rejected,
			FilesWatched: func() int { return len(sup.Files()) },
		})
		go agg.Start(ctx)

		srv := server.New(server.Config{
			Addr:       addr,
			Schema:     v.schema,
			Columns:    v.format.Columns(),
			TimeLayout: viper.GetString("time_layout"),
			Supervisor: sup,
			Hub:        h,
			Aggregator: agg,
			Metrics:    m,
			Logger:     logger,
		})
		go func() {
			if err := srv.Start(ctx); err != nil {
				logger.Error("http api stopped", "error", err)
			}
		}()
	}

	// The hub outlives the session so the batch merged by the final drain
	// still reaches the renderer.
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go h.Start(hubCtx)

	rendered := make(chan struct{})
	if follow {
		go func() {
			defer close(rendered)
			renderTails(v, tails, logger)
		}()
	} else {
		close(rendered)
	}

	if err := sup.Start(ctx, files); err != nil {
		return err
	}
	logger.Info("watching files", "count", len(files), "schema", v.schema.Name, "follow", follow)
	for _, f := range files {
		logger.Debug("watching", "file", f)
	}

	<-ctx.Done()

	start := time.Now()
	report := sup.Stop()
	if report.Err != nil {
		logger.Warn("shutdown incomplete", "aborted", report.Aborted, "error", report.Err)
	}
	stopHub()
	<-rendered
	logger.Info("stopped", "records", st.Len(), "rejected", p.Rejected(), "took", time.Since(start))

	if !follow {
		return v.renderAll(st)
	}
	return nil
}

// renderTails prints merged batches until the hub closes the subscription.
func renderTails(v *view, tails <-chan store.Tail, logger *slog.Logger) {
	for t := range tails {
		for _, rec := range t.Records {
			if err := v.render(rec); err != nil {
				logger.Warn("render error", "error", err)
			}
		}
	}
}
