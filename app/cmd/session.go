package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lexcodex/transmute/persistence"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List stored translation sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := persistence.NewFileSessionStore(globalCfg.SessionDir)
			if err != nil {
				return err
			}
			sessions, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no stored sessions")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tLANGUAGES\tSTEPS\tQUALITY")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%s->%s\t%d/%d\t%.2f\n",
					s.ID, s.Status, s.SourceLanguage, s.TargetLanguage,
					s.Metadata.CompletedSteps, s.Metadata.TotalSteps, s.Metadata.QualityScore)
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a stored session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := persistence.NewFileSessionStore(globalCfg.SessionDir)
			if err != nil {
				return err
			}
			return store.Delete(cmd.Context(), args[0])
		},
	})
	return cmd
}
