package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"panelsync/internal/app"
	"panelsync/internal/formatting"
	"panelsync/pkg/logging"
)

type runOptions struct {
	duration time.Duration
	rate     float64
	seed     int64
	watch    bool
	notify   bool
	panels   bool
	quiet    bool
	output   string
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Simulate the demonstration world against the scheduler",
		Long: `Runs the scheduler with the configured targets and bindings while a
simulator mutates the demonstration world at --rate changes per second.
When the run ends the scheduler's debug surface is printed.

With --duration 0 the run lasts until interrupted. --watch applies
throttle interval changes from the config file while running.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(cmd, opts)
		},
	}

	cmd.Flags().DurationVar(&opts.duration, "duration", 5*time.Second, "How long to run (0 runs until interrupted)")
	cmd.Flags().Float64Var(&opts.rate, "rate", 50, "World mutations per second")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "Simulation seed (0 picks one)")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Apply interval changes from the config file while running")
	cmd.Flags().BoolVar(&opts.notify, "notify", false, "Send readiness notifications to systemd")
	cmd.Flags().BoolVar(&opts.panels, "panels", false, "Print every rendered panel")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Suppress progress indicators")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "table", "Output format (table, json, yaml)")
	return cmd
}

func runSimulation(cmd *cobra.Command, opts *runOptions) error {
	format, err := formatting.ParseFormat(opts.output)
	if err != nil {
		return err
	}

	cfg := app.NewConfig(debug, configPath)
	cfg.Watch = opts.watch
	cfg.Notify = opts.notify
	cfg.SimulationRate = opts.rate
	cfg.Seed = opts.seed
	if opts.panels {
		cfg.PanelOutput = cmd.OutOrStdout()
	}

	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx, stopSignals := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var report app.Report
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return application.Run(gctx)
	})
	g.Go(func() error {
		defer cancel()
		select {
		case <-application.Ready():
		case <-gctx.Done():
			return nil
		}

		s := newSpinner(opts.quiet || opts.panels, cmd.ErrOrStderr(), opts.duration)
		if s != nil {
			s.Start()
			defer s.Stop()
		}

		var deadline <-chan time.Time
		if opts.duration > 0 {
			timer := time.NewTimer(opts.duration)
			defer timer.Stop()
			deadline = timer.C
		}
		select {
		case <-deadline:
		case <-gctx.Done():
		}

		reportCtx, cancelReport := context.WithTimeout(context.Background(), time.Second)
		defer cancelReport()
		r, err := application.Report(reportCtx)
		if err != nil {
			logging.Warn("Run", "Final statistics unavailable: %v", err)
			return nil
		}
		report = r
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	if report.Panels == nil {
		return nil
	}
	return printReport(cmd.OutOrStdout(), format, report)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func newSpinner(quiet bool, w io.Writer, d time.Duration) *spinner.Spinner {
	if quiet {
		return nil
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	if d > 0 {
		s.Suffix = fmt.Sprintf(" Simulating for %v...", d)
	} else {
		s.Suffix = " Simulating, press Ctrl+C to stop..."
	}
	return s
}

func printReport(w io.Writer, format formatting.OutputFormat, report app.Report) error {
	if format != formatting.FormatTable {
		return formatting.Encode(w, format, report)
	}

	formatting.StatsTable(w, report.Scheduler, report.Panels)
	fmt.Fprintf(w, "%s %d   %s %d (%d rejected)\n",
		text.FgHiBlue.Sprint("Events emitted:"), report.EventsEmitted,
		text.FgHiBlue.Sprint("World changes:"), report.SimulationSteps, report.RejectedSteps)
	if report.FailedEvents > 0 {
		fmt.Fprintf(w, "%s\n", text.FgRed.Sprintf("%d listener failures", report.FailedEvents))
	}
	return nil
}
