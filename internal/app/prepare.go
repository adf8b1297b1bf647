package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ocommowi/regeval/internal/ctxlog"
	"github.com/ocommowi/regeval/internal/manifest"
	"github.com/ocommowi/regeval/internal/subject"
)

const (
	dtiEstimatorTool = "animaDTIEstimator"
	mcmScript        = "animaMultiCompartmentModelEstimation.py"
)

// leftoverPatterns match the by-products of model estimation that the
// registration does not read.
var leftoverPatterns = []string{"data_MCM_avg_*.nrrd", "*List.txt", "data_MCM_N*"}

// Prepare estimates the tensor and multi-compartment models of one subject,
// the diffusion inputs the registration stages expect, and removes the
// estimation by-products.
func (a *App) Prepare(ctx context.Context, cfg *PrepareConfig) error {
	if err := subject.CheckRoot(cfg.DataRoot); err != nil {
		return err
	}
	id, err := manifest.Resolve(cfg.Index, manifest.DefaultPath(cfg.DataRoot))
	if err != nil {
		return err
	}
	paths, err := subject.Resolve(id, cfg.DataRoot)
	if err != nil {
		return err
	}
	ctx = ctxlog.WithLogger(ctx, a.logger.With("subject", id))
	logger := ctxlog.FromContext(ctx)
	d := paths.Diffusion

	logger.Info("🚀 Estimating tensors.")
	if _, err := a.invoker.Invoke(ctx, a.tools.Tool(dtiEstimatorTool),
		"-i", d.DWI,
		"-b", d.BVal,
		"-g", d.BVec,
		"-m", d.BrainMask,
		"-o", d.Tensors); err != nil {
		return fmt.Errorf("tensor estimation failed: %w", err)
	}

	logger.Info("Estimating multi-compartment models.")
	if _, err := a.invoker.Invoke(ctx, a.tools.Python,
		a.tools.Script("diffusion", mcmScript),
		"-i", d.DWI,
		"-b", d.BVal,
		"-g", d.BVec,
		"-m", d.BrainMask,
		"-t", "tensor",
		"-n", "3",
		"--hcp"); err != nil {
		return fmt.Errorf("multi-compartment estimation failed: %w", err)
	}

	removed, err := removeLeftovers(d.Images)
	if err != nil {
		return err
	}
	logger.Info("🏁 Subject prepared.", "removed", removed)
	return nil
}

func removeLeftovers(dir string) (int, error) {
	var (
		n    int
		errs []error
	)
	for _, pattern := range leftoverPatterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return n, err
		}
		for _, m := range matches {
			if err := os.RemoveAll(m); err != nil {
				errs = append(errs, err)
				continue
			}
			n++
		}
	}
	return n, errors.Join(errs...)
}
