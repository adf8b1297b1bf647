// Package report writes the per-run summary file next to the result CSVs.
package report

import (
	"fmt"
	"os"
	"slices"
	"time"

	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"

	"github.com/ocommowi/regeval/internal/evaluate"
	"github.com/ocommowi/regeval/internal/pipeline"
	"github.com/ocommowi/regeval/internal/registration"
)

// FileName is the summary file name inside the results directory.
const FileName = "run_summary.yaml"

// Status is the final state of a strategy in a run.
type Status string

const (
	Evaluated Status = "evaluated"
	Partial   Status = "partial"
	Aborted   Status = "aborted"
	Resumed   Status = "resumed"
	Skipped   Status = "skipped"
)

// Stats summarises a set of scores.
type Stats struct {
	N      int     `yaml:"n"`
	Mean   float64 `yaml:"mean"`
	StdDev float64 `yaml:"stddev"`
}

// NewStats returns the mean and sample standard deviation of values, or nil
// when values is empty.
func NewStats(values []float64) *Stats {
	switch len(values) {
	case 0:
		return nil
	case 1:
		return &Stats{N: 1, Mean: values[0]}
	}
	mean, std := stat.MeanStdDev(values, nil)
	return &Stats{N: len(values), Mean: mean, StdDev: std}
}

// StrategySummary is the summary entry of one strategy.
type StrategySummary struct {
	Name        string   `yaml:"name"`
	Artifact    string   `yaml:"artifact"`
	Status      Status   `yaml:"status"`
	FailedStage string   `yaml:"failed_stage,omitempty"`
	Error       string   `yaml:"error,omitempty"`
	Files       []string `yaml:"files,omitempty"`
	Failures    []string `yaml:"failures,omitempty"`
	Dice        *Stats   `yaml:"parcellation_dice,omitempty"`
	FuzzyDice   *Stats   `yaml:"tracks_fuzzy_dice,omitempty"`
}

// Summary describes one evaluation run.
type Summary struct {
	RunID      string            `yaml:"run_id"`
	Ref        int               `yaml:"ref"`
	Mov        int               `yaml:"mov"`
	Started    time.Time         `yaml:"started"`
	Finished   time.Time         `yaml:"finished"`
	Strategies []StrategySummary `yaml:"strategies"`
}

// AddAborted records a strategy whose registration did not complete.
func (s *Summary) AddAborted(o registration.StrategyOutcome) {
	entry := StrategySummary{
		Name:        o.Strategy.Name,
		Artifact:    o.Strategy.Artifact,
		Status:      Aborted,
		FailedStage: o.FailedStage,
	}
	if o.Err != nil {
		entry.Error = o.Err.Error()
	}
	s.Strategies = append(s.Strategies, entry)
}

// AddResumed records a strategy left untouched because its outputs existed.
func (s *Summary) AddResumed(st *pipeline.Strategy) {
	s.Strategies = append(s.Strategies, StrategySummary{
		Name:     st.Name,
		Artifact: st.Artifact,
		Status:   Resumed,
	})
}

// AddEvaluation records the scores of an evaluated strategy.
func (s *Summary) AddEvaluation(ev *evaluate.Evaluation) {
	entry := StrategySummary{
		Name:     ev.Strategy.Name,
		Artifact: ev.Strategy.Artifact,
		Status:   Evaluated,
		Files:    ev.Files,
	}
	switch {
	case ev.Skipped:
		entry.Status = Skipped
	case len(ev.Errors) > 0:
		entry.Status = Partial
	}
	for _, te := range ev.Errors {
		entry.Failures = append(entry.Failures, te.Error())
	}

	var dice, fuzzy []float64
	for _, r := range ev.Records {
		if !r.Valid {
			continue
		}
		switch r.Metric {
		case evaluate.Dice:
			dice = append(dice, r.Value)
		case evaluate.FuzzyDice:
			fuzzy = append(fuzzy, r.Value)
		}
	}
	entry.Dice = NewStats(dice)
	entry.FuzzyDice = NewStats(fuzzy)
	s.Strategies = append(s.Strategies, entry)
}

// Order sorts the entries by the position of their name in names. The sort
// is stable and names absent from names go last.
func (s *Summary) Order(names []string) {
	rank := func(name string) int {
		if i := slices.Index(names, name); i >= 0 {
			return i
		}
		return len(names)
	}
	slices.SortStableFunc(s.Strategies, func(a, b StrategySummary) int {
		return rank(a.Name) - rank(b.Name)
	})
}

// Write stores s as YAML at path.
func Write(path string, s *Summary) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("error marshaling run summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("error writing run summary: %w", err)
	}
	return nil
}

// Read loads a summary written by Write.
func Read(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading run summary: %w", err)
	}
	s := &Summary{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("error parsing run summary: %w", err)
	}
	return s, nil
}
