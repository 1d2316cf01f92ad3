package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"panelsync/internal/config"
	"panelsync/pkg/logging"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeConfigInvalid indicates the configuration could not be read or
	// failed validation.
	ExitCodeConfigInvalid = 2
)

// configPath is the --config flag shared by every command.
var configPath string

// debug enables verbose logging across the application.
var debug bool

// rootCmd represents the base command for the panelsync application.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "panelsync",
	Short: "Coalesce model changes into throttled, frame-aligned view updates",
	Long: `panelsync runs a view synchronization scheduler: events mark panel
properties dirty, and each panel is re-rendered at most once per frame and
no more often than its throttle interval allows.

A demonstration world (inventory, equipment, party, market, quests) drives
the default panels. Use 'panelsync run' to simulate it, 'panelsync console'
to poke the scheduler by hand and 'panelsync config' to inspect bindings.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.InitForCLI(logLevel(), cmd.ErrOrStderr())
	},
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "panelsync version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	var configErr config.ConfigurationError
	if errors.As(err, &configErr) {
		return ExitCodeConfigInvalid
	}

	var configErrs *config.ConfigurationErrorCollection
	if errors.As(err, &configErrs) {
		return ExitCodeConfigInvalid
	}

	// Default to general error
	return ExitCodeError
}

func logLevel() logging.LogLevel {
	if debug {
		return logging.LevelDebug
	}
	return logging.LevelInfo
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newConsoleCmd())
	rootCmd.AddCommand(newConfigCmd())

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default is $HOME/.config/panelsync/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
}
