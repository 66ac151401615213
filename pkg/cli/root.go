// Package cli implements the sqlite-provider command-line host: it loads
// declarative YAML, plans against tracked state and drives the provider.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"sqlite-provider/internal/config"
)

var (
	version = "dev"
	commit  = "none"
)

// exitError carries a process exit code. A nil err means the command has
// already reported everything it needs to.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd()
	return run(rootCmd, os.Stdout, os.Stderr)
}

func run(rootCmd *cobra.Command, stdout, stderr io.Writer) int {
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}

	code := 1
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		code = exitErr.code
		if exitErr.err == nil {
			return code
		}
	}

	output, _ := rootCmd.PersistentFlags().GetString("output")
	if output == "json" {
		_ = printJSON(stdout, map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return code
}

// globals holds the resolved persistent flags shared by all subcommands.
type globals struct {
	output    string
	logLevel  string
	statePath string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:           "sqlite-provider",
		Short:         "Declarative SQLite schema management",
		Long:          "Manages SQLite tables and indexes from declarative YAML configuration.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(".env"); err != nil {
				return fmt.Errorf("load .env: %w", err)
			}
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return err
			}

			// Apply precedence: flag > env > default
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = g.logLevel
			}
			if cmd.Flags().Changed("state") {
				cfg.StatePath = g.statePath
			}
			g.statePath = cfg.StatePath
			g.cfg = cfg

			if err := validateOutputFormat(g.output); err != nil {
				return err
			}

			g.logger = cfg.NewLogger(cmd.ErrOrStderr())
			for _, w := range cfg.Warnings {
				g.logger.Warn(w)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&g.output, "output", "o", "table", "Output format (table, json)")
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&g.statePath, "state", config.DefaultStatePath, "Path to the state database")

	rootCmd.AddCommand(newVersionCmd())

	// Declarative configuration commands
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newPlanCmd(g))
	rootCmd.AddCommand(newApplyCmd(g))
	rootCmd.AddCommand(newDestroyCmd(g))
	rootCmd.AddCommand(newShowCmd(g))

	// Shell completions
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

func newCompletionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "completion [bash|zsh|fish|powershell]",
		Short:     "Generate shell completion scripts",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}
	return cmd
}
