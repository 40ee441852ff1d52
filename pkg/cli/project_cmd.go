package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"driftscope/internal/artifact"
	"driftscope/internal/service/projection"
)

func newProjectCmd() *cobra.Command {
	var (
		basePath          string
		currentPath       string
		diffPath          string
		columnLineagePath string
		breakingEnabled   bool
	)

	cmd := &cobra.Command{
		Use:   "project",
		Short: "Project the merged lineage graph into a positioned node/edge list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			graph, err := buildGraph(basePath, currentPath, diffPath)
			if err != nil {
				return err
			}
			columnLineage, err := artifact.LoadColumnLineage(columnLineagePath)
			if err != nil {
				return err
			}

			nodes, edges, nodeColumns := projection.Project(graph, projection.Options{
				ColumnLineage:         columnLineage,
				BreakingChangeEnabled: breakingEnabled,
			})

			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"nodes":        nodes,
					"edges":        edges,
					"node_columns": nodeColumns,
				})
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKIND\tPRESENCE\tSTATUS\tX\tY")
			for _, n := range nodes {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.0f\t%.0f\n", n.ID, n.Kind, n.Presence, n.ChangeStatus, n.X, n.Y)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d nodes, %d edges\n", len(nodes), len(edges))
			return nil
		},
	}

	cmd.Flags().StringVar(&basePath, "base", "", "Base snapshot file (json or yaml)")
	cmd.Flags().StringVar(&currentPath, "current", "", "Current snapshot file (json or yaml)")
	cmd.Flags().StringVar(&diffPath, "diff", "", "External diff classification file (optional)")
	cmd.Flags().StringVar(&columnLineagePath, "column-lineage", "", "Resolved column lineage file (optional)")
	cmd.Flags().BoolVar(&breakingEnabled, "breaking", false, "Expand changed columns on modified nodes")
	_ = cmd.MarkFlagRequired("base")
	_ = cmd.MarkFlagRequired("current")

	return cmd
}
