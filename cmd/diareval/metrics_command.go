package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"diareval/internal/metrics"
	"diareval/internal/models"
)

type metricEntry struct {
	ID          string `json:"id"`
	Family      string `json:"family"`
	Description string `json:"description"`
	InAll       bool   `json:"in_all"`
}

func newMetricsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var showModels bool

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "List the metric catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			catalog := metrics.NewCatalog(metrics.Options{Identification: cfg.Evaluation.Identification})
			inAll := make(map[string]bool)
			if ids, err := catalog.Expand(metrics.AllKeyword); err == nil {
				for _, id := range ids {
					inAll[id] = true
				}
			}

			defs := catalog.Definitions()
			entries := make([]metricEntry, 0, len(defs))
			for _, def := range defs {
				entries = append(entries, metricEntry{
					ID:          def.ID,
					Family:      string(def.Family),
					Description: def.Description,
					InAll:       inAll[def.ID],
				})
			}
			if asJSON {
				return writeJSON(cmd, entries)
			}

			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{e.ID, e.Family, yesNo(e.InAll), e.Description})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(tableSpec{
				headers: []string{"ID", "Family", "In all", "Description"},
				rows:    rows,
			}))
			if showModels {
				fmt.Fprintln(out, renderModels(models.Default()))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	cmd.Flags().BoolVar(&showModels, "models", false, "Also list known model names and aliases used in report columns")
	return cmd
}

func renderModels(registry *models.Registry) string {
	var rows [][]string
	for _, kind := range registry.Kinds() {
		for _, m := range registry.Models(kind) {
			rows = append(rows, []string{string(kind), m.Name, strings.Join(m.Aliases, ", ")})
		}
	}
	return renderTable(tableSpec{
		title:   "Known models",
		headers: []string{"Kind", "Name", "Aliases"},
		rows:    rows,
	})
}
