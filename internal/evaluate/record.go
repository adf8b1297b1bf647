package evaluate

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ocommowi/regeval/internal/subject"
)

// Metric names an overlap score.
type Metric string

const (
	Dice         Metric = "dice"
	TotalOverlap Metric = "total_overlap"
	FuzzyDice    Metric = "fuzzy_dice"
)

// ParcellationTarget is the target name of parcellation records.
const ParcellationTarget = "parcellation"

// Record is one score of one strategy on one target. For parcellation
// records Region is the position of the region in the tool output; tract
// records use -1.
type Record struct {
	Strategy string
	Target   string
	Region   int
	Metric   Metric
	Value    float64
	Valid    bool
}

// TargetError records a failed evaluation target.
type TargetError struct {
	Target string
	Metric Metric
	Err    error
}

func (e TargetError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Target, e.Metric, e.Err)
}

func (e TargetError) Unwrap() error { return e.Err }

// ResultsDir returns Results/Results_<ref>_<mov> below the data root.
func ResultsDir(dataRoot string, pair subject.Pair) string {
	return filepath.Join(dataRoot, "Results", "Results_"+pair.String())
}

// Outputs lists the CSV files a complete evaluation of artifact writes.
func Outputs(resultsDir, artifact string) []string {
	return []string{
		filepath.Join(resultsDir, artifact+"_parcellation_dice.csv"),
		filepath.Join(resultsDir, artifact+"_parcellation_total_overlap.csv"),
		filepath.Join(resultsDir, artifact+"_tracks_fuzzy_dice.csv"),
	}
}

// Complete reports whether every CSV output of artifact already exists.
func Complete(resultsDir, artifact string) bool {
	for _, p := range Outputs(resultsDir, artifact) {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}
