package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"panelsync/internal/app"
	"panelsync/internal/config"
	"panelsync/internal/formatting"
	"panelsync/internal/world"
	"panelsync/pkg/logging"
)

// consoleTimeout bounds each command's round trip through the loop.
const consoleTimeout = 2 * time.Second

var errQuit = errors.New("quit")

func newConsoleCmd() *cobra.Command {
	var (
		rate   float64
		panels bool
	)
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Drive the scheduler interactively",
		Long: `Starts the scheduler and opens a prompt for emitting events, marking
properties dirty and inspecting the debug surface. Type 'help' for the
list of commands. Use TAB for completion.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(cmd, rate, panels)
		},
	}
	cmd.Flags().Float64Var(&rate, "rate", 0, "World mutations per second while the console is open")
	cmd.Flags().BoolVar(&panels, "panels", true, "Print panels as they are re-rendered")
	return cmd
}

func runConsole(cmd *cobra.Command, rate float64, showPanels bool) error {
	cfg := app.NewConfig(debug, configPath)
	cfg.SimulationRate = rate

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          text.FgHiGreen.Sprint("panelsync") + "> ",
		HistoryFile:     filepath.Join(os.TempDir(), ".panelsync_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",

		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline instance: %w", err)
	}
	defer rl.Close()

	out := rl.Stdout()
	if showPanels {
		cfg.PanelOutput = out
	}

	logs := logging.InitForConsole(logLevel())
	defer logging.CloseConsoleChannel()
	go drainLogs(logs, out)

	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	rl.Config.AutoComplete = newCompleter(application.Settings())

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- application.Run(ctx)
	}()
	select {
	case <-application.Ready():
	case err := <-done:
		return err
	}

	c := &console{app: application, out: out}
	fmt.Fprintln(out, "Scheduler ready. Type 'help' for available commands.")
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				continue
			}
		} else if err == io.EOF {
			break
		} else if err != nil {
			cancel()
			<-done
			return fmt.Errorf("readline error: %w", err)
		}

		if err := c.exec(line); err != nil {
			if errors.Is(err, errQuit) {
				break
			}
			fmt.Fprintln(out, text.FgRed.Sprint("Error: ")+err.Error())
		}
	}

	cancel()
	return <-done
}

func drainLogs(logs <-chan logging.LogEntry, w io.Writer) {
	for entry := range logs {
		line := fmt.Sprintf("%s [%s] %s", entry.Level, entry.Subsystem, entry.Message)
		if entry.Err != nil {
			line += ": " + entry.Err.Error()
		}
		fmt.Fprintln(w, text.FgHiBlack.Sprint(line))
	}
}

func newCompleter(cfg config.PanelsyncConfig) *readline.PrefixCompleter {
	events := make([]readline.PrefixCompleterInterface, 0, len(cfg.Bindings))
	for _, b := range cfg.Bindings {
		events = append(events, readline.PcItem(b.Event))
	}

	targets := make([]readline.PrefixCompleterInterface, 0, len(cfg.Targets))
	withProps := make([]readline.PrefixCompleterInterface, 0, len(cfg.Targets))
	for _, t := range cfg.Targets {
		targets = append(targets, readline.PcItem(t.Name))
		props := make([]readline.PrefixCompleterInterface, len(t.Properties))
		for i, p := range t.Properties {
			props[i] = readline.PcItem(p)
		}
		withProps = append(withProps, readline.PcItem(t.Name, props...))
	}

	return readline.NewPrefixCompleter(
		readline.PcItem("emit", events...),
		readline.PcItem("mark", withProps...),
		readline.PcItem("mark-all", targets...),
		readline.PcItem("flush", targets...),
		readline.PcItem("history", events...),
		readline.PcItem("stats"),
		readline.PcItem("targets"),
		readline.PcItem("bindings"),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)
}

// console executes prompt commands against a running application.
type console struct {
	app *app.Application
	out io.Writer
}

func (c *console) exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	name, args := fields[0], fields[1:]

	ctx, cancel := context.WithTimeout(context.Background(), consoleTimeout)
	defer cancel()

	switch name {
	case "help", "?":
		c.help()
	case "quit", "exit":
		return errQuit
	case "emit":
		if len(args) == 0 {
			return fmt.Errorf("usage: emit <event> [payload]")
		}
		var payload any
		if len(args) > 1 {
			payload = strings.Join(args[1:], " ")
		}
		if err := c.app.Emit(ctx, args[0], payload); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Emitted %s\n", args[0])
	case "mark":
		if len(args) != 2 {
			return fmt.Errorf("usage: mark <target> <property>")
		}
		if err := c.app.MarkDirty(ctx, args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Marked %s.%s\n", args[0], args[1])
	case "mark-all":
		if len(args) != 1 {
			return fmt.Errorf("usage: mark-all <target>")
		}
		if err := c.app.MarkTargetDirty(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Marked every property of %s\n", args[0])
	case "flush":
		if len(args) != 1 {
			return fmt.Errorf("usage: flush <target>")
		}
		dispatched, err := c.app.Flush(ctx, args[0])
		if err != nil {
			return err
		}
		if dispatched {
			fmt.Fprintf(c.out, "Flushed %s\n", args[0])
		} else {
			fmt.Fprintf(c.out, "%s is throttled, update stays pending\n", args[0])
		}
	case "stats":
		report, err := c.app.Report(ctx)
		if err != nil {
			return err
		}
		formatting.StatsTable(c.out, report.Scheduler, report.Panels)
	case "targets":
		formatting.TargetsTable(c.out, c.app.Settings())
	case "bindings":
		formatting.BindingsTable(c.out, c.app.Settings())
	case "history":
		filter := ""
		if len(args) > 0 {
			filter = args[0]
		}
		formatting.HistoryTable(c.out, c.app.Bus().History(filter))
	default:
		return fmt.Errorf("unknown command %q, type 'help' for the list", name)
	}
	return nil
}

func (c *console) help() {
	fmt.Fprintln(c.out, "Commands:")
	for _, line := range [][2]string{
		{"emit <event> [payload]", "publish an event on the bus"},
		{"mark <target> <property>", "mark one property dirty"},
		{"mark-all <target>", "mark every property of a target dirty"},
		{"flush <target>", "update a target now unless it is throttled"},
		{"stats", "show the scheduler debug surface"},
		{"targets", "list targets and throttle intervals"},
		{"bindings", "list event bindings"},
		{"history [event]", "show recent bus events"},
		{"help", "show this help"},
		{"quit", "leave the console"},
	} {
		fmt.Fprintf(c.out, "  %-26s %s\n", line[0], line[1])
	}
	fmt.Fprintf(c.out, "World events: %s\n", strings.Join(world.Events(), ", "))
}
