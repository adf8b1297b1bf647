package evaluate

// Tools names the external executables used for evaluation and the flags
// selecting each overlap metric.
type Tools struct {
	Apply         string
	FibersApply   string
	FibersCounter string
	Overlap       string
	FuzzyDice     string

	DiceFlags         []string
	TotalOverlapFlags []string
}

// DefaultTools returns the Anima tool set.
func DefaultTools() Tools {
	return Tools{
		Apply:             "animaApplyTransformSerie",
		FibersApply:       "animaFibersApplyTransformSerie",
		FibersCounter:     "animaFibersCounter",
		Overlap:           "animaSegPerfAnalyzer",
		FuzzyDice:         "animaFuzzyDiceMeasure",
		DiceFlags:         []string{"-d"},
		TotalOverlapFlags: []string{"-T"},
	}
}

// Toolbox resolves an executable name to its path.
type Toolbox interface {
	Tool(name string) string
}
