package registration

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/ocommowi/regeval/internal/ctxlog"
	"github.com/ocommowi/regeval/internal/pipeline"
	"github.com/ocommowi/regeval/internal/subject"
	"github.com/ocommowi/regeval/internal/transform"
)

// Apply-transform tools, one per modality.
const (
	ApplyTool       = "animaApplyTransformSerie"
	TensorApplyTool = "animaTensorApplyTransformSerie"
	MCMApplyTool    = "animaMCMApplyTransformSerie"
)

// StageResult is what a finished stage hands to its dependents.
type StageResult struct {
	Stage     *pipeline.Stage
	Warped    string // moving image resampled by the registration itself
	Transform string // elementary transform written by the stage
	Chain     transform.Chain
	Composite string // serialized Chain
}

// artifact returns the raw file of a subject for a modality.
func artifact(p subject.Paths, m pipeline.Modality) string {
	switch m {
	case pipeline.Tensor:
		return p.Diffusion.Tensors
	case pipeline.MCM:
		return p.Diffusion.MCM
	default:
		return p.Structural.Anatomy
	}
}

func imageExt(m pipeline.Modality) string {
	if m == pipeline.MCM {
		return ".mcm"
	}
	return ".nrrd"
}

func applyTool(m pipeline.Modality) string {
	switch m {
	case pipeline.Tensor:
		return TensorApplyTool
	case pipeline.MCM:
		return MCMApplyTool
	default:
		return ApplyTool
	}
}

// resampleEntry memoizes one (parent stage, modality) resampling.
type resampleEntry struct {
	once sync.Once
	path string
	err  error
}

// runStage executes one registration stage.
func (g *Graph) runStage(ctx context.Context, stage *pipeline.Stage, parent *StageResult, pair subject.Pair) (*StageResult, error) {
	logger := ctxlog.FromContext(ctx).With("stage", stage.ID, "kind", stage.Kind)
	logger.Info("▶️ Starting stage")

	modality := stage.Kind.Modality()
	moving, err := g.movingInput(ctx, parent, modality, pair)
	if err != nil {
		return nil, err
	}

	res := &StageResult{
		Stage:     stage,
		Warped:    filepath.Join(g.scratch, stage.ID+imageExt(modality)),
		Transform: filepath.Join(g.scratch, stage.ID+"_tr"+stage.Kind.TransformExt()),
	}

	args := []string{
		"-r", artifact(pair.Ref, modality),
		"-m", moving,
		"-o", res.Warped,
		"-O", res.Transform,
	}
	args = append(args, stage.Flags...)

	if _, err := g.invoker.Invoke(ctx, g.tools.Tool(stage.Tool), args...); err != nil {
		return nil, fmt.Errorf("stage %s: %w", stage.ID, err)
	}

	if parent != nil {
		res.Chain = parent.Chain.Append(res.Transform)
	} else {
		res.Chain = transform.Chain{res.Transform}
	}

	res.Composite, err = g.composer.Compose(ctx, res.Chain, filepath.Join(g.scratch, stage.ID+"_tr.xml"))
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", stage.ID, err)
	}

	logger.Info("✅ Finished stage", "chain_length", len(res.Chain))
	return res, nil
}

// movingInput returns the moving image of a stage: the raw subject artifact
// for a root stage, otherwise the parent's warped output in this stage's
// modality.
func (g *Graph) movingInput(ctx context.Context, parent *StageResult, m pipeline.Modality, pair subject.Pair) (string, error) {
	if parent == nil {
		return artifact(pair.Mov, m), nil
	}
	if parent.Stage.Kind.Modality() == m {
		return parent.Warped, nil
	}
	return g.resample(ctx, parent, m, pair)
}

// resample warps the raw moving artifact of modality m through the parent's
// composite transform. Each (parent, modality) pair is resampled once.
func (g *Graph) resample(ctx context.Context, parent *StageResult, m pipeline.Modality, pair subject.Pair) (string, error) {
	key := parent.Stage.ID + "/" + m.String()

	g.mu.Lock()
	entry, ok := g.resampled[key]
	if !ok {
		entry = &resampleEntry{}
		g.resampled[key] = entry
	}
	g.mu.Unlock()

	entry.once.Do(func() {
		out := filepath.Join(g.scratch, fmt.Sprintf("%s_%s%s", parent.Stage.ID, m, imageExt(m)))
		ctxlog.FromContext(ctx).Debug("Resampling moving image through parent composite.", "parent", parent.Stage.ID, "modality", m.String())
		_, err := g.invoker.Invoke(ctx, g.tools.Tool(applyTool(m)),
			"-i", artifact(pair.Mov, m),
			"-t", parent.Composite,
			"-g", artifact(pair.Ref, m),
			"-o", out,
		)
		if err != nil {
			entry.err = fmt.Errorf("resampling %s image after stage %s: %w", m, parent.Stage.ID, err)
			return
		}
		entry.path = out
	})
	return entry.path, entry.err
}
