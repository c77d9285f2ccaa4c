package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"diareval/internal/history"
	"diareval/internal/models"
	"diareval/internal/report"
)

const shortIDLength = 8

type runView struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	DurationMS  int64     `json:"duration_ms"`
	Hypotheses  string    `json:"hypotheses_dir"`
	Reference   string    `json:"reference_dir"`
	Metrics     []string  `json:"metrics"`
	CollarMS    int64     `json:"collar_ms"`
	SkipOverlap bool      `json:"skip_overlap"`
	Output      string    `json:"output_path,omitempty"`
	Rows        int       `json:"rows"`
	Errors      int       `json:"errors"`
}

func newRunView(run history.Run) runView {
	return runView{
		ID:          run.ID,
		StartedAt:   run.StartedAt,
		DurationMS:  run.Duration().Milliseconds(),
		Hypotheses:  run.HypothesesDir,
		Reference:   run.ReferenceDir,
		Metrics:     run.Metrics,
		CollarMS:    run.Collar.Milliseconds(),
		SkipOverlap: run.SkipOverlap,
		Output:      run.OutputPath,
		Rows:        run.RowCount,
		Errors:      run.ErrorCount,
	}
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded evaluation runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(ctx, func(store *history.Store) error {
				runs, err := store.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if asJSON {
					views := make([]runView, 0, len(runs))
					for _, run := range runs {
						views = append(views, newRunView(run))
					}
					return writeJSON(cmd, views)
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				rows := make([][]string, 0, len(runs))
				for _, run := range runs {
					rows = append(rows, []string{
						shortID(run.ID),
						run.StartedAt.Local().Format("2006-01-02 15:04:05"),
						run.Duration().Round(time.Millisecond).String(),
						strconv.Itoa(run.RowCount),
						strconv.Itoa(run.ErrorCount),
						run.Collar.String(),
						strings.Join(run.Metrics, ","),
					})
				}
				fmt.Fprintln(out, renderTable(tableSpec{
					headers: []string{"ID", "Started", "Took", "Rows", "Errors", "Collar", "Metrics"},
					rows:    rows,
					aligns:  []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
				}))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")

	cmd.AddCommand(newHistoryShowCommand(ctx))
	cmd.AddCommand(newHistoryDeleteCommand(ctx))
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Print the stored rows of a run (ID prefixes are accepted)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(ctx, func(store *history.Store) error {
				run, err := store.GetRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				rows, err := store.Rows(cmd.Context(), run.ID)
				if err != nil {
					return err
				}
				if asJSON {
					detail := runDetailView{runView: newRunView(run), Results: make([]rowView, 0, len(rows))}
					for _, row := range rows {
						detail.Results = append(detail.Results, newRowView(row))
					}
					return writeJSON(cmd, detail)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Run %s\n", run.ID)
				fmt.Fprintf(out, "  Started:      %s\n", run.StartedAt.Local().Format(time.RFC3339))
				fmt.Fprintf(out, "  Hypotheses:   %s\n", run.HypothesesDir)
				fmt.Fprintf(out, "  Reference:    %s\n", run.ReferenceDir)
				fmt.Fprintf(out, "  Collar:       %s\n", run.Collar)
				fmt.Fprintf(out, "  Skip overlap: %s\n", yesNo(run.SkipOverlap))
				if run.OutputPath != "" {
					fmt.Fprintf(out, "  Report:       %s\n", run.OutputPath)
				}
				if len(rows) == 0 {
					fmt.Fprintln(out, "No rows recorded")
					return nil
				}
				fmt.Fprintln(out, renderReportTable(report.Build(rows, models.Default())))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newHistoryDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete RUN_ID",
		Short: "Remove a run from the history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(ctx, func(store *history.Store) error {
				run, err := store.GetRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if err := store.Delete(cmd.Context(), run.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", run.ID)
				return nil
			})
		},
	}
}

func withHistory(ctx *commandContext, fn func(*history.Store) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	store, err := history.Open(cfg)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()
	return fn(store)
}

// renderReportTable prints the metric columns of a report with flagged rows
// marked by an asterisk.
func renderReportTable(table report.Table) string {
	headers := append([]string{""}, table.Columns...)
	aligns := make([]columnAlignment, len(headers))
	for i := table.MetricStart + 1; i < len(headers)-1; i++ {
		aligns[i] = alignRight
	}
	rows := make([][]string, 0, len(table.Rows))
	for _, row := range table.Rows {
		line := make([]string, 0, len(headers))
		mark := ""
		if row.Flagged {
			mark = "*"
		}
		line = append(line, mark)
		for _, cell := range row.Cells {
			line = append(line, cell.String())
		}
		rows = append(rows, line)
	}
	return renderTable(tableSpec{headers: headers, rows: rows, aligns: aligns})
}

func shortID(id string) string {
	if len(id) <= shortIDLength {
		return id
	}
	return id[:shortIDLength]
}
