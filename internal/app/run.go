package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ocommowi/regeval/internal/ctxlog"
	"github.com/ocommowi/regeval/internal/evaluate"
	"github.com/ocommowi/regeval/internal/invoke"
	"github.com/ocommowi/regeval/internal/manifest"
	"github.com/ocommowi/regeval/internal/pipeline"
	"github.com/ocommowi/regeval/internal/registration"
	"github.com/ocommowi/regeval/internal/report"
	"github.com/ocommowi/regeval/internal/resultstore"
	"github.com/ocommowi/regeval/internal/subject"
)

// RunResult describes a finished evaluation run.
type RunResult struct {
	RunID      string
	ResultsDir string
	ScratchDir string // removed once Evaluate returns
	Summary    *report.Summary
}

// Evaluate registers the moving subject onto the reference subject with
// every selected strategy and scores each result. Strategies aborted by a
// tool failure are reported together in a *RunError once everything that
// could run has run.
func (a *App) Evaluate(ctx context.Context, cfg *Config) (*RunResult, error) {
	runID := uuid.NewString()
	ctx = ctxlog.WithLogger(ctx, a.logger.With("run_id", runID))
	logger := ctxlog.FromContext(ctx)
	started := time.Now().UTC()

	p, err := a.loadPipeline(ctx, cfg)
	if err != nil {
		return nil, err
	}
	strategies, err := p.Select(cfg.Strategies)
	if err != nil {
		return nil, err
	}

	pair, err := resolvePair(cfg)
	if err != nil {
		return nil, err
	}
	ctx = ctxlog.With(ctx, "pair", pair.String())
	logger = ctxlog.FromContext(ctx)

	resultsDir := evaluate.ResultsDir(cfg.DataRoot, pair)
	if err := os.MkdirAll(resultsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}

	summary := &report.Summary{RunID: runID, Ref: pair.Ref.ID, Mov: pair.Mov.ID, Started: started}
	res := &RunResult{RunID: runID, ResultsDir: resultsDir, Summary: summary}

	var todo []*pipeline.Strategy
	for _, s := range strategies {
		if cfg.Resume && evaluate.Complete(resultsDir, s.Artifact) {
			logger.Info("Results present, skipping strategy.", "strategy", s.Name)
			summary.AddResumed(s)
			continue
		}
		todo = append(todo, s)
	}

	scratch, err := os.MkdirTemp(cfg.ScratchDir, "regeval-"+runID+"-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	res.ScratchDir = scratch
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			logger.Error("Failed to remove scratch directory.", "path", scratch, "error", err)
			return
		}
		logger.Debug("Scratch directory removed.", "path", scratch)
	}()

	logger.Info("🚀 Starting evaluation run.", "strategies", len(todo), "workers", cfg.Workers, "scratch", scratch)

	var (
		outcome *registration.Outcome
		evals   []*evaluate.Evaluation
	)
	if len(todo) > 0 {
		// One limit for registration and evaluation alike, however their
		// goroutines nest.
		inv := invoke.NewLimited(a.invoker, cfg.Workers)
		graph := registration.New(p, inv, a.tools, registration.Options{Scratch: scratch, Workers: cfg.Workers})
		outcome, err = graph.Run(ctx, todo, pair)
		if err != nil {
			return res, fmt.Errorf("registration failed: %w", err)
		}

		agg := evaluate.New(inv, a.tools, pair, evaluate.Options{
			Scratch:    scratch,
			ResultsDir: resultsDir,
			Workers:    cfg.Workers,
		})
		evals, err = a.evaluateAll(ctx, agg, outcome.Succeeded(), cfg.Workers)
		if err != nil {
			return res, err
		}
	} else {
		logger.Warn("Nothing to run, every selected strategy already has results.")
	}

	if outcome != nil {
		for _, so := range outcome.Aborted() {
			summary.AddAborted(so)
		}
	}
	var records []evaluate.Record
	for _, ev := range evals {
		summary.AddEvaluation(ev)
		records = append(records, ev.Records...)
	}
	summary.Order(names(strategies))
	summary.Finished = time.Now().UTC()

	if cfg.ResultsDB != "" {
		if err := storeRecords(ctx, cfg.ResultsDB, runID, pair, records); err != nil {
			return res, err
		}
		logger.Info("Scores stored.", "database", cfg.ResultsDB, "records", len(records))
	}
	if err := report.Write(filepath.Join(resultsDir, report.FileName), summary); err != nil {
		return res, err
	}

	if outcome != nil {
		if aborted := outcome.Aborted(); len(aborted) > 0 {
			logger.Warn("🏁 Evaluation run finished with aborted strategies.", "aborted", len(aborted))
			return res, newRunError(aborted)
		}
	}
	logger.Info("🏁 Evaluation run finished.", "results", resultsDir)
	return res, nil
}

func (a *App) loadPipeline(ctx context.Context, cfg *Config) (*pipeline.Pipeline, error) {
	vars := pipeline.Vars{Threads: cfg.Threads}
	if cfg.PipelinePath == "" {
		return pipeline.Default(ctx, vars)
	}
	p, err := pipeline.Load(ctx, cfg.PipelinePath, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline: %w", err)
	}
	return p, nil
}

func resolvePair(cfg *Config) (subject.Pair, error) {
	if err := subject.CheckRoot(cfg.DataRoot); err != nil {
		return subject.Pair{}, err
	}
	path := manifest.DefaultPath(cfg.DataRoot)
	refID, err := manifest.Resolve(cfg.RefIndex, path)
	if err != nil {
		return subject.Pair{}, err
	}
	movID, err := manifest.Resolve(cfg.MovIndex, path)
	if err != nil {
		return subject.Pair{}, err
	}

	ref, err := subject.Resolve(refID, cfg.DataRoot)
	if err != nil {
		return subject.Pair{}, err
	}
	mov, err := subject.Resolve(movID, cfg.DataRoot)
	if err != nil {
		return subject.Pair{}, err
	}
	return subject.Pair{Ref: ref, Mov: mov}, nil
}

func names(strategies []*pipeline.Strategy) []string {
	out := make([]string, len(strategies))
	for i, s := range strategies {
		out[i] = s.Name
	}
	return out
}

// evaluateAll scores the succeeded strategies concurrently, keeping their
// selection order in the result.
func (a *App) evaluateAll(ctx context.Context, agg *evaluate.Aggregator, done []registration.StrategyOutcome, workers int) ([]*evaluate.Evaluation, error) {
	if len(done) == 0 {
		return nil, nil
	}
	if err := agg.PrepareReferences(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare reference densities: %w", err)
	}

	evals := make([]*evaluate.Evaluation, len(done))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, so := range done {
		i, so := i, so
		g.Go(func() error {
			ev, err := agg.Evaluate(gctx, so.Strategy, so.Composite)
			if err != nil {
				return fmt.Errorf("evaluation of %s failed: %w", so.Strategy.Name, err)
			}
			evals[i] = ev
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return evals, nil
}

func storeRecords(ctx context.Context, path, runID string, pair subject.Pair, records []evaluate.Record) error {
	store, err := resultstore.Open(ctx, path)
	if err != nil {
		return err
	}
	err = store.BeginRun(ctx, runID, pair)
	if err == nil {
		err = store.Insert(ctx, runID, pair, records)
	}
	return errors.Join(err, store.Close())
}
