package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"sqlite-provider/internal/declarative"
)

func newApplyCmd(g *globals) *cobra.Command {
	var (
		flags       configFlags
		autoApprove bool
		noColor     bool
		parallelism int
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply declarative configuration changes to the database",
		Long:  "Reads YAML configuration files, compares them with the tracked state, and applies the changes.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if parallelism < 1 {
				return fmt.Errorf("--parallelism must be at least 1")
			}

			desired, err := flags.loadValid(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			store, err := openState(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck
			tracked, err := store.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("read state: %w", err)
			}

			plan := declarative.Diff(desired, tracked)
			return executePlan(cmd, g, store, desired, plan, applyOptions{
				command:     "apply",
				autoApprove: autoApprove,
				noColor:     noColor,
				parallelism: parallelism,
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&autoApprove, "auto-approve", false, "Skip interactive confirmation prompt")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	cmd.Flags().IntVar(&parallelism, "parallelism", declarative.DefaultParallelism, "Maximum concurrent operations per dependency layer")

	return cmd
}

func newDestroyCmd(g *globals) *cobra.Command {
	var (
		flags       configFlags
		autoApprove bool
		noColor     bool
		parallelism int
	)

	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Delete every tracked table and index",
		Long:  "Deletes all resources recorded in the state database. The configuration directory is only read for its Provider document.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if parallelism < 1 {
				return fmt.Errorf("--parallelism must be at least 1")
			}

			desired, err := flags.loadProviderOnly()
			if err != nil {
				return err
			}

			store, err := openState(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck
			tracked, err := store.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("read state: %w", err)
			}

			plan := declarative.Diff(&declarative.DesiredState{}, tracked)
			return executePlan(cmd, g, store, desired, plan, applyOptions{
				command:     "destroy",
				autoApprove: autoApprove,
				noColor:     noColor,
				parallelism: parallelism,
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&autoApprove, "auto-approve", false, "Skip interactive confirmation prompt")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	cmd.Flags().IntVar(&parallelism, "parallelism", declarative.DefaultParallelism, "Maximum concurrent operations per dependency layer")

	return cmd
}
