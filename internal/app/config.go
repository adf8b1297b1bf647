package app

import (
	"errors"
	"fmt"
	"runtime"
)

// Config holds everything an evaluation run needs.
type Config struct {
	DataRoot string
	RefIndex int
	MovIndex int

	Strategies   []string // empty selects every strategy
	PipelinePath string   // empty uses the embedded pipeline
	Workers      int
	Threads      int

	ResultsDB string // optional SQLite database
	Resume    bool

	// ScratchDir is the parent of the run scratch directory. Empty means
	// the system temporary directory.
	ScratchDir string
}

// NewConfig validates cfg and fills defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.DataRoot == "" {
		return nil, errors.New("data folder is a required configuration field and cannot be empty")
	}
	if cfg.RefIndex < 0 || cfg.MovIndex < 0 {
		return nil, fmt.Errorf("subject indices must be non-negative, got ref=%d mov=%d", cfg.RefIndex, cfg.MovIndex)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Threads < 0 {
		return nil, fmt.Errorf("threads must be non-negative, got %d", cfg.Threads)
	}
	return &cfg, nil
}

// PrepareConfig holds everything a data preparation run needs.
type PrepareConfig struct {
	DataRoot string
	Index    int
}

// NewPrepareConfig validates cfg.
func NewPrepareConfig(cfg PrepareConfig) (*PrepareConfig, error) {
	if cfg.DataRoot == "" {
		return nil, errors.New("data folder is a required configuration field and cannot be empty")
	}
	if cfg.Index < 0 {
		return nil, fmt.Errorf("subject index must be non-negative, got %d", cfg.Index)
	}
	return &cfg, nil
}
