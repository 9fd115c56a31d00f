package storage

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"strconv"

	"github.com/san-kum/cstrsim/internal/reactor"
)

type ExportData struct {
	ID           string                `json:"id"`
	Controller   string                `json:"controller"`
	Integrator   string                `json:"integrator"`
	Episode      reactor.EpisodeConfig `json:"episode"`
	Steps        int                   `json:"steps"`
	Halted       bool                  `json:"halted"`
	HaltReason   string                `json:"halt_reason,omitempty"`
	Times        []float64             `json:"times"`
	Observations []reactor.Observation `json:"observations"`
	Actions      []float64             `json:"actions"`
	Metrics      map[string]float64    `json:"metrics"`

	RejectedAction *float64 `json:"rejected_action,omitempty"`
}

func NewExportData(meta *RunMetadata, records []Record) ExportData {
	data := ExportData{
		ID:           meta.ID,
		Controller:   meta.Controller,
		Integrator:   meta.Integrator,
		Episode:      meta.Episode,
		Steps:        meta.Steps,
		Halted:       meta.Halted,
		HaltReason:   meta.HaltReason,
		Times:        make([]float64, len(records)),
		Observations: make([]reactor.Observation, len(records)),
		Actions:      make([]float64, len(records)),
		Metrics:      meta.Metrics,

		RejectedAction: meta.RejectedAction,
	}
	for i, r := range records {
		data.Times[i] = r.Time
		data.Observations[i] = r.Observation
		data.Actions[i] = r.Action
	}
	return data
}

func WriteJSON(w io.Writer, data ExportData) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func ExportJSON(path string, data ExportData) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteJSON(file, data)
}

func ExportJSONStdout(data ExportData) error {
	return WriteJSON(os.Stdout, data)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// WriteCSV writes records with StatesHeader as the first row.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(StatesHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			formatFloat(r.Time),
			formatFloat(r.Observation.Cr),
			formatFloat(r.Observation.Tr),
			formatFloat(r.Observation.Tc),
			formatFloat(r.Observation.Cref),
			formatFloat(r.Observation.Tref),
			formatFloat(r.Action),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
