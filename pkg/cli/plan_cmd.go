package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"sqlite-provider/internal/declarative"
)

func newPlanCmd(g *globals) *cobra.Command {
	var (
		flags   configFlags
		noColor bool
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show changes required to match the declarative configuration",
		Long: "Reads YAML configuration files, compares them with the tracked state, and shows a plan of changes.\n" +
			"Exits with status 2 when the plan is not empty.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// 1. Load and validate desired state from YAML files.
			desired, err := flags.loadValid(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			// 2. Read tracked state.
			store, err := openState(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck
			tracked, err := store.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("read state: %w", err)
			}

			// 3. Diff desired vs tracked.
			plan := declarative.Diff(desired, tracked)

			// 4. Format output.
			switch getOutputFormat(cmd) {
			case "json":
				if err := declarative.FormatJSON(cmd.OutOrStdout(), plan); err != nil {
					return fmt.Errorf("format plan: %w", err)
				}
			default:
				declarative.FormatText(cmd.OutOrStdout(), plan, noColor)
			}

			// 5. Exit code 2 if there are changes (useful for CI).
			if plan.HasChanges() {
				return &exitError{code: 2}
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	return cmd
}
