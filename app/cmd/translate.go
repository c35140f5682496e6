package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lexcodex/transmute/app/tui"
	"github.com/lexcodex/transmute/ast"
	"github.com/lexcodex/transmute/persistence"
	"github.com/lexcodex/transmute/session"
)

func newTranslateCmd() *cobra.Command {
	var from, to, output string

	cmd := &cobra.Command{
		Use:   "translate <source-ast.json>",
		Short: "Review a source AST translation step by step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if from == "" {
				from = globalCfg.SourceLanguage
			}
			if to == "" {
				to = globalCfg.TargetLanguage
			}

			sourceAST, err := readAST(args[0])
			if err != nil {
				return err
			}

			deps, err := buildEngine()
			if err != nil {
				return err
			}
			defer deps.close()

			sess, err := deps.engine.InitializeSession(cmd.Context(), sourceAST, session.Options{
				SourceLanguage: from,
				TargetLanguage: to,
			})
			if err != nil {
				return err
			}

			if err := tui.Run(cmd.Context(), deps.engine, sess); err != nil {
				return err
			}

			sessions, err := persistence.NewFileSessionStore(globalCfg.SessionDir)
			if err != nil {
				return err
			}
			if err := sessions.Save(cmd.Context(), sess); err != nil {
				return fmt.Errorf("save session: %w", err)
			}

			if sess.Status == session.SessionCompleted && output != "" {
				if err := writeAST(output, sess.TargetAST); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (quality %.2f)\n", output, sess.Metadata.QualityScore)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "session %s: %s, %d/%d steps completed\n",
				sess.ID, sess.Status, sess.Metadata.CompletedSteps, sess.Metadata.TotalSteps)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Source language (default from config)")
	cmd.Flags().StringVar(&to, "to", "", "Target language (default from config)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the target AST to this file")
	return cmd
}

func readAST(path string) (*ast.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var node ast.Node
	if err := json.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	node.Rebind()
	return &node, nil
}

func writeAST(path string, node *ast.Node) error {
	data, err := json.MarshalIndent(node, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
