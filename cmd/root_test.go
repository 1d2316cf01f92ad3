package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"panelsync/internal/app"
	"panelsync/internal/config"
	"panelsync/internal/formatting"
	"panelsync/internal/viewsync"
)

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		configPath = ""
		debug = false
	})

	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "panelsync", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.True(t, rootCmd.SilenceUsage)

	found := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		found[c.Name()] = true
	}
	for _, name := range []string{"version", "run", "console", "config"} {
		assert.True(t, found[name], "subcommand %s", name)
	}
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("debug"))
}

func TestVersionCommand(t *testing.T) {
	original := GetVersion()
	defer SetVersion(original)
	SetVersion("1.2.3-test")

	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "panelsync version 1.2.3-test\n", out)
}

func TestGetExitCode(t *testing.T) {
	collection := config.NewConfigurationErrorCollection()
	collection.AddError("c.yaml", "targets[0].name", "is required")

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"plain error", fmt.Errorf("boom"), ExitCodeError},
		{"configuration error", fmt.Errorf("load: %w", config.ConfigurationError{ErrorType: "io"}), ExitCodeConfigInvalid},
		{"validation errors", fmt.Errorf("load: %w", collection), ExitCodeConfigInvalid},
		{"scheduler error", viewsync.ErrSchedulerTornDown, ExitCodeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, getExitCode(tt.err))
		})
	}
}

func TestConfigValidate(t *testing.T) {
	out, _, err := execute(t, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "built-in defaults: 6 targets, 13 bindings")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scheduler:\n  failurePolicy:\n    mode: sometimes\n"), 0644))
	_, errOut, err := execute(t, "config", "validate", "--config", path)
	require.Error(t, err)
	assert.Equal(t, ExitCodeConfigInvalid, getExitCode(err))
	assert.Contains(t, errOut, "scheduler.failurePolicy.mode")

	_, _, err = execute(t, "config", "validate", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, ExitCodeConfigInvalid, getExitCode(err))
}

func TestConfigShow(t *testing.T) {
	out, _, err := execute(t, "config", "show", "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "frameInterval: 16ms")
	assert.Contains(t, out, "name: playerInfo")

	out, _, err = execute(t, "config", "show", "-o", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "inventory:item:added")
	assert.Contains(t, out, "300ms")

	_, _, err = execute(t, "config", "show", "-o", "xml")
	assert.Error(t, err)
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "panelsync", "config.yaml")

	out, _, err := execute(t, "config", "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	loaded, _, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, config.GetDefaultConfig(), loaded)

	_, _, err = execute(t, "config", "init", "--config", path)
	assert.ErrorContains(t, err, "already exists")

	_, _, err = execute(t, "config", "init", "--config", path, "--force")
	assert.NoError(t, err)
}

func TestRunCommand(t *testing.T) {
	out, _, err := execute(t, "run", "--duration", "150ms", "--rate", "200", "--seed", "9", "--quiet", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"scheduler": {`)
	assert.Contains(t, out, `"simulation_steps"`)

	_, _, err = execute(t, "run", "-o", "xml")
	assert.ErrorContains(t, err, "unsupported output format")
}

func TestPrintReport(t *testing.T) {
	report := app.Report{
		Scheduler: viewsync.Stats{
			State: "Ready",
			Phase: "Idle",
			Dirty: map[string]map[string]bool{"market": {"prices": false}},
		},
		Panels:          map[string]int{"market": 2},
		EventsEmitted:   7,
		SimulationSteps: 5,
		FailedEvents:    1,
	}

	var buf bytes.Buffer
	require.NoError(t, printReport(&buf, formatting.FormatTable, report))
	assert.Contains(t, buf.String(), "market")
	assert.Contains(t, buf.String(), "1 listener failures")

	buf.Reset()
	require.NoError(t, printReport(&buf, formatting.FormatYAML, report))
	assert.Contains(t, buf.String(), "events_emitted: 7")
}

func TestConsoleExec(t *testing.T) {
	application, err := app.Bootstrap(&app.Config{}, config.GetDefaultConfig(), "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	select {
	case <-application.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("application did not start")
	}

	var out bytes.Buffer
	c := &console{app: application, out: &out}

	run := func(line string) string {
		out.Reset()
		require.NoError(t, c.exec(line), line)
		return out.String()
	}

	assert.Contains(t, run("help"), "mark-all <target>")
	assert.Contains(t, run("emit quest:started"), "Emitted quest:started")
	assert.Contains(t, run("mark market prices"), "Marked market.prices")
	assert.Contains(t, run("mark-all party"), "Marked every property of party")
	assert.Contains(t, run("flush equipment"), "Flushed equipment")
	assert.Contains(t, run("history quest:started"), "quest:started")
	assert.Contains(t, run("targets"), "playerInfo")
	assert.Contains(t, run("bindings"), "companion:added")
	assert.Contains(t, run("stats"), "equipment")
	assert.Empty(t, run("   "))

	assert.ErrorIs(t, c.exec("quit"), errQuit)
	assert.ErrorContains(t, c.exec("mark market"), "usage: mark")
	assert.ErrorIs(t, c.exec("mark ghost x"), viewsync.ErrUnknownTarget)
	assert.ErrorContains(t, c.exec("dance"), `unknown command "dance"`)
}
