package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"sqlite-provider/internal/state"
)

func newShowCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "List tracked tables and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openState(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck

			records, err := store.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("read state: %w", err)
			}
			last, err := store.LastRun(cmd.Context())
			if err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				if records == nil {
					records = []state.Record{}
				}
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"resources": records,
					"last_run":  last,
				})
			}

			if len(records) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No resources tracked.")
				return nil
			}
			rows := make([][]string, 0, len(records))
			for _, r := range records {
				rows = append(rows, []string{r.Kind, r.Name, r.ID, r.Status.String(), r.UpdatedAt.Format(time.RFC3339)})
			}
			if err := printTable(cmd.OutOrStdout(), []string{"kind", "name", "id", "status", "updated"}, rows); err != nil {
				return err
			}
			if last != nil {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\nLast run: %s %s (%d succeeded, %d failed)\n",
					last.Command, last.StartedAt.Format(time.RFC3339), last.Succeeded, last.Failed)
			}
			return nil
		},
	}
}
