package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lexcodex/transmute/pattern"
	"github.com/lexcodex/transmute/persistence"
)

func newPatternsCmd() *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "List learned translation patterns",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := persistence.NewPatternStore(globalCfg.PatternDBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			patterns, err := store.ListPatterns(from, to)
			if err != nil {
				return err
			}
			if len(patterns) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no learned patterns")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tLANGUAGES\tCONFIDENCE\tUSAGE\tSUCCESS")
			for _, p := range patterns {
				fmt.Fprintf(w, "%s\t%s\t%s->%s\t%.2f\t%d\t%.2f\n",
					p.ID, p.Name, p.SourceLanguage, p.TargetLanguage,
					p.Confidence, p.UsageCount, p.SuccessRate)
			}
			return w.Flush()
		},
	}
	cmd.PersistentFlags().StringVar(&from, "from", "", "Filter by source language")
	cmd.PersistentFlags().StringVar(&to, "to", "", "Filter by target language")

	cmd.AddCommand(&cobra.Command{
		Use:   "import <patterns.json>",
		Short: "Import patterns from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var patterns []*pattern.TranslationPattern
			if err := json.Unmarshal(data, &patterns); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}
			store, err := persistence.NewPatternStore(globalCfg.PatternDBPath)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.SavePatterns(patterns); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d patterns\n", len(patterns))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "export <patterns.json>",
		Short: "Export patterns to a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := persistence.NewPatternStore(globalCfg.PatternDBPath)
			if err != nil {
				return err
			}
			defer store.Close()
			patterns, err := store.ListPatterns(from, to)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(patterns, "", "  ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[0], data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d patterns\n", len(patterns))
			return nil
		},
	})
	return cmd
}
