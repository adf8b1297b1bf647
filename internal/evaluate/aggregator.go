package evaluate

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ocommowi/regeval/internal/ctxlog"
	"github.com/ocommowi/regeval/internal/invoke"
	"github.com/ocommowi/regeval/internal/pipeline"
	"github.com/ocommowi/regeval/internal/subject"
)

// Options tune an Aggregator.
type Options struct {
	// Scratch receives warped bundles and reference densities.
	Scratch string
	// ResultsDir receives the CSV files and the moving densities.
	ResultsDir string
	// Tracts overrides the catalog. Nil means Tracts.
	Tracts []string
	// Workers bounds concurrent tract evaluations. Values below 1 mean 1.
	Workers int
	// Tools overrides DefaultTools.
	Tools *Tools
}

// Aggregator warps held-out labels of the moving subject with a strategy's
// composite transform and scores them against the reference subject.
type Aggregator struct {
	invoker    invoke.Invoker
	toolbox    Toolbox
	tools      Tools
	pair       subject.Pair
	scratch    string
	resultsDir string
	tracts     []string
	workers    int

	prepareOnce sync.Once
	prepareErr  error
	refDensity  []string
	refErr      []error
}

// New creates an Aggregator for pair.
func New(inv invoke.Invoker, toolbox Toolbox, pair subject.Pair, opts Options) *Aggregator {
	tools := DefaultTools()
	if opts.Tools != nil {
		tools = *opts.Tools
	}
	tracts := opts.Tracts
	if tracts == nil {
		tracts = Tracts
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	return &Aggregator{
		invoker:    inv,
		toolbox:    toolbox,
		tools:      tools,
		pair:       pair,
		scratch:    opts.Scratch,
		resultsDir: opts.ResultsDir,
		tracts:     tracts,
		workers:    workers,
	}
}

// ResultsDir returns the directory receiving the CSV files.
func (a *Aggregator) ResultsDir() string { return a.resultsDir }

// Evaluation is the outcome of scoring one strategy.
type Evaluation struct {
	Strategy *pipeline.Strategy
	Records  []Record
	Errors   []TargetError
	Files    []string
	// Skipped is set when the composite transform did not exist.
	Skipped bool
}

// Err joins the target errors, or returns nil.
func (e *Evaluation) Err() error {
	errs := make([]error, 0, len(e.Errors))
	for _, te := range e.Errors {
		errs = append(errs, te)
	}
	return errors.Join(errs...)
}

// PrepareReferences computes the reference fiber-count density of every
// catalog tract. It runs once per Aggregator; later calls return the first
// result. A failed tract is remembered and reported by every Evaluate.
func (a *Aggregator) PrepareReferences(ctx context.Context) error {
	a.prepareOnce.Do(func() {
		a.prepareErr = a.prepareReferences(ctx)
	})
	return a.prepareErr
}

func (a *Aggregator) prepareReferences(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	logger.Info("Computing reference tract densities.", "tracts", len(a.tracts))

	a.refDensity = make([]string, len(a.tracts))
	a.refErr = make([]error, len(a.tracts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, tract := range a.tracts {
		i, tract := i, tract
		g.Go(func() error {
			out := filepath.Join(a.scratch, "ref_"+tract+"_fCount.nii.gz")
			_, err := a.invoker.Invoke(gctx, a.toolbox.Tool(a.tools.FibersCounter),
				"-i", a.pair.Ref.Diffusion.Track(tract),
				"-g", a.pair.Ref.Structural.Anatomy,
				"-o", out)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				logger.Warn("Reference density failed.", "tract", tract, "error", err)
				a.refErr[i] = err
				return nil
			}
			a.refDensity[i] = out
			return nil
		})
	}
	return g.Wait()
}

// Evaluate scores strategy s, whose composite transform is at composite.
// Failures of single targets are recorded in the returned Evaluation and do
// not stop the others. The error is set when the run was cancelled or a
// result file could not be written.
func (a *Aggregator) Evaluate(ctx context.Context, s *pipeline.Strategy, composite string) (*Evaluation, error) {
	ctx = ctxlog.With(ctx, "strategy", s.Name)
	logger := ctxlog.FromContext(ctx)
	ev := &Evaluation{Strategy: s}

	if _, err := os.Stat(composite); err != nil {
		logger.Warn("Composite transform missing, skipping evaluation.", "path", composite)
		ev.Skipped = true
		return ev, nil
	}
	if err := a.PrepareReferences(ctx); err != nil {
		return ev, err
	}
	if err := os.MkdirAll(a.resultsDir, 0o755); err != nil {
		return ev, fmt.Errorf("failed to create results directory: %w", err)
	}

	logger.Info("Evaluating strategy.")
	if err := a.evaluateParcellation(ctx, ev, composite); err != nil {
		return ev, err
	}
	if err := a.evaluateTracts(ctx, ev, composite); err != nil {
		return ev, err
	}
	logger.Info("Strategy evaluated.", "records", len(ev.Records), "failures", len(ev.Errors))
	return ev, nil
}

func (a *Aggregator) evaluateParcellation(ctx context.Context, ev *Evaluation, composite string) error {
	logger := ctxlog.FromContext(ctx)
	art := ev.Strategy.Artifact
	ref := a.pair.Ref.Structural.Parcellation

	warped := filepath.Join(a.resultsDir, art+"_parcellation.nii.gz")
	_, err := a.invoker.Invoke(ctx, a.toolbox.Tool(a.tools.Apply),
		"-i", a.pair.Mov.Structural.Parcellation,
		"-t", composite,
		"-g", ref,
		"-o", warped,
		"-n", "nearest")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		logger.Warn("Parcellation resampling failed.", "error", err)
		ev.Errors = append(ev.Errors,
			TargetError{Target: ParcellationTarget, Metric: Dice, Err: err},
			TargetError{Target: ParcellationTarget, Metric: TotalOverlap, Err: err})
		return nil
	}

	metrics := []struct {
		metric Metric
		flags  []string
	}{
		{Dice, a.tools.DiceFlags},
		{TotalOverlap, a.tools.TotalOverlapFlags},
	}
	for _, m := range metrics {
		tool := a.toolbox.Tool(a.tools.Overlap)
		args := append([]string{"-r", ref, "-t", warped}, m.flags...)
		res, err := a.invoker.Invoke(ctx, tool, args...)
		var scores []float64
		if err == nil {
			scores, err = invoke.ParseScores(tool, res.Stdout)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			logger.Warn("Parcellation overlap failed.", "metric", m.metric, "error", err)
			ev.Errors = append(ev.Errors, TargetError{Target: ParcellationTarget, Metric: m.metric, Err: err})
			continue
		}

		row := make([]string, len(scores))
		for i, v := range scores {
			row[i] = formatScore(v)
			ev.Records = append(ev.Records, Record{
				Strategy: ev.Strategy.Name,
				Target:   ParcellationTarget,
				Region:   i,
				Metric:   m.metric,
				Value:    v,
				Valid:    true,
			})
		}
		path := filepath.Join(a.resultsDir, fmt.Sprintf("%s_parcellation_%s.csv", art, m.metric))
		if err := writeRow(path, row); err != nil {
			return err
		}
		ev.Files = append(ev.Files, path)
	}
	return nil
}

func (a *Aggregator) evaluateTracts(ctx context.Context, ev *Evaluation, composite string) error {
	logger := ctxlog.FromContext(ctx)
	art := ev.Strategy.Artifact

	records := make([]Record, len(a.tracts))
	errs := make([]error, len(a.tracts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, tract := range a.tracts {
		i, tract := i, tract
		g.Go(func() error {
			v, err := a.scoreTract(gctx, i, tract, art, composite)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				logger.Warn("Tract evaluation failed, leaving empty field.", "tract", tract, "error", err)
				errs[i] = err
			}
			records[i] = Record{
				Strategy: ev.Strategy.Name,
				Target:   tract,
				Region:   -1,
				Metric:   FuzzyDice,
				Value:    v,
				Valid:    err == nil,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	row := make([]string, len(a.tracts))
	for i, r := range records {
		if r.Valid {
			row[i] = formatScore(r.Value)
		}
		if errs[i] != nil {
			ev.Errors = append(ev.Errors, TargetError{Target: a.tracts[i], Metric: FuzzyDice, Err: errs[i]})
		}
	}
	ev.Records = append(ev.Records, records...)

	path := filepath.Join(a.resultsDir, art+"_tracks_fuzzy_dice.csv")
	if err := writeRow(path, row); err != nil {
		return err
	}
	ev.Files = append(ev.Files, path)
	return nil
}

func (a *Aggregator) scoreTract(ctx context.Context, i int, tract, art, composite string) (float64, error) {
	if err := a.refErr[i]; err != nil {
		return 0, fmt.Errorf("reference density: %w", err)
	}

	warped := filepath.Join(a.scratch, tract+"_"+art+".vtp")
	if _, err := a.invoker.Invoke(ctx, a.toolbox.Tool(a.tools.FibersApply),
		"-i", a.pair.Mov.Diffusion.Track(tract),
		"-t", composite,
		"-o", warped); err != nil {
		return 0, err
	}

	density := filepath.Join(a.resultsDir, tract+"_"+art+"_fCount.nii.gz")
	if _, err := a.invoker.Invoke(ctx, a.toolbox.Tool(a.tools.FibersCounter),
		"-i", warped,
		"-g", a.pair.Ref.Structural.Anatomy,
		"-o", density); err != nil {
		return 0, err
	}

	tool := a.toolbox.Tool(a.tools.FuzzyDice)
	res, err := a.invoker.Invoke(ctx, tool, "-r", a.refDensity[i], "-t", density)
	if err != nil {
		return 0, err
	}
	return invoke.ParseScore(tool, res.Stdout)
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// writeRow writes a single CSV record terminated by a newline.
func writeRow(path string, fields []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(fields); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
