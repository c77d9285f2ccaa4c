package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"diareval/internal/evaluation"
)

// rowView is one stored triple in JSON output. Not-applicable metrics encode
// as null.
type rowView struct {
	Audio    string              `json:"audio"`
	Dataset  string              `json:"dataset"`
	Model    string              `json:"model"`
	Family   string              `json:"family"`
	Pipeline string              `json:"pipeline,omitempty"`
	First    string              `json:"first_model,omitempty"`
	Second   string              `json:"second_model,omitempty"`
	Metrics  map[string]*float64 `json:"metrics"`
	Error    string              `json:"error,omitempty"`
}

type runDetailView struct {
	runView
	Results []rowView `json:"results"`
}

func newRowView(row evaluation.MetricsByAudioFile) rowView {
	view := rowView{
		Audio:    row.Triple.Audio,
		Dataset:  row.Triple.Dataset,
		Model:    row.Triple.Model,
		Family:   string(row.Config.Family),
		Pipeline: row.Config.Pipeline,
		First:    row.Config.First,
		Second:   row.Config.Second,
		Metrics:  map[string]*float64{},
		Error:    row.Err,
	}
	if row.Metrics == nil {
		return view
	}
	for _, name := range row.Metrics.Names() {
		v, _ := row.Metrics.Get(name)
		if score, ok := v.Float(); ok {
			view.Metrics[name] = &score
		} else {
			view.Metrics[name] = nil
		}
	}
	return view
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
