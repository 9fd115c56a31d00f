package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/cstrsim/internal/experiment"
	"github.com/san-kum/cstrsim/internal/reactor"
)

const (
	metadataFile = "metadata.json"
	statesFile   = "states.csv"
)

// StatesHeader is the column layout of states.csv.
var StatesHeader = []string{"time", "Cr", "Tr", "Tc", "Cref", "Tref", "Tc_adjust"}

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir() string { return s.baseDir }

type RunMetadata struct {
	ID         string                `json:"id"`
	Timestamp  time.Time             `json:"timestamp"`
	Controller string                `json:"controller"`
	Integrator string                `json:"integrator"`
	Seed       int64                 `json:"seed"`
	Params     map[string]float64    `json:"params,omitempty"`
	Episode    reactor.EpisodeConfig `json:"episode"`
	Iterations int                   `json:"iterations"`
	Steps      int                   `json:"steps"`
	Halted     bool                  `json:"halted"`
	HaltReason string                `json:"halt_reason,omitempty"`
	Metrics    map[string]float64    `json:"metrics"`

	RejectedAction *float64 `json:"rejected_action,omitempty"`
}

// Record is one row of states.csv: the observation at Time and the
// adjustment the controller applied from it.
type Record struct {
	Time        float64
	Observation reactor.Observation
	Action      float64
}

func newRunID(now time.Time) string {
	return fmt.Sprintf("%s_%s", now.Format("20060102-150405"), uuid.NewString()[:8])
}

func (s *Store) Save(cfg experiment.Config, result *experiment.Result) (string, error) {
	if result == nil {
		return "", fmt.Errorf("nothing to save")
	}
	now := time.Now()
	runID := newRunID(now)
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:         runID,
		Timestamp:  now,
		Controller: cfg.Controller,
		Integrator: cfg.Integrator,
		Seed:       cfg.Seed,
		Params:     cfg.Params,
		Episode:    cfg.Episode,
		Iterations: cfg.Iterations,
		Steps:      result.Steps,
		Halted:     result.Halted,
		HaltReason: result.HaltReason,
		Metrics:    result.Metrics,

		RejectedAction: result.RejectedAction,
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, statesFile))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	if err := WriteCSV(csvFile, Records(result)); err != nil {
		return "", err
	}
	return runID, nil
}

// Records flattens a result into rows. Row i carries the action applied after
// observation i; the last row carries the rejected adjustment, if any.
func Records(result *experiment.Result) []Record {
	records := make([]Record, len(result.Observations))
	for i, obs := range result.Observations {
		records[i].Observation = obs
		if i < len(result.Times) {
			records[i].Time = result.Times[i]
		}
		if i < len(result.Actions) {
			records[i].Action = result.Actions[i]
		}
	}
	if result.RejectedAction != nil && len(records) > 0 {
		records[len(records)-1].Action = *result.RejectedAction
	}
	return records
}

// List returns every readable run, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].Timestamp.Equal(runs[j].Timestamp) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

func (s *Store) LoadStates(runID string) ([]Record, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, statesFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return []Record{}, nil
	}

	records := make([]Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) < len(StatesHeader) {
			continue
		}
		vals := make([]float64, len(StatesHeader))
		ok := true
		for j := range vals {
			v, err := strconv.ParseFloat(row[j], 64)
			if err != nil {
				ok = false
				break
			}
			vals[j] = v
		}
		if !ok {
			continue
		}
		records = append(records, Record{
			Time: vals[0],
			Observation: reactor.Observation{
				Cr:   vals[1],
				Tr:   vals[2],
				Tc:   vals[3],
				Cref: vals[4],
				Tref: vals[5],
			},
			Action: vals[6],
		})
	}
	return records, nil
}
