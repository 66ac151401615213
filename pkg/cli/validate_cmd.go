package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"sqlite-provider/internal/declarative"
)

func newValidateCmd() *cobra.Command {
	var flags configFlags

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate declarative configuration files offline",
		Long:  "Reads YAML configuration files and checks them for errors without touching any database.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// 1. Load desired state from YAML files.
			desired, err := flags.load()
			if err != nil {
				return err
			}

			// 2. Validate the desired state.
			validationErrs := declarative.Validate(desired)
			if len(validationErrs) > 0 {
				if getOutputFormat(cmd) == "json" {
					errMsgs := make([]string, len(validationErrs))
					for i, ve := range validationErrs {
						errMsgs[i] = ve.Error()
					}
					if err := printJSON(cmd.OutOrStdout(), map[string]interface{}{
						"valid":  false,
						"errors": errMsgs,
					}); err != nil {
						return err
					}
					return &exitError{code: 1}
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Configuration has %d validation error(s):\n", len(validationErrs))
				for _, ve := range validationErrs {
					fmt.Fprintf(cmd.ErrOrStderr(), "  - %s\n", ve.Error())
				}
				return &exitError{code: 1}
			}

			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"valid":   true,
					"tables":  len(desired.Tables),
					"indexes": len(desired.Indexes),
				})
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Configuration is valid (%d table(s), %d index(es)).\n",
				len(desired.Tables), len(desired.Indexes))
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}
