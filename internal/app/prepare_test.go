package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ocommowi/regeval/internal/invoke"
	"github.com/ocommowi/regeval/internal/subject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepare(t *testing.T) {
	a, inv, _ := SetupAppTest(t)
	data := WriteManifest(t, 101, 102)
	paths := subject.Build(102, data)

	images := paths.Diffusion.Images
	require.NoError(t, os.MkdirAll(filepath.Join(images, "data_MCM_N2"), 0o755))
	for _, name := range []string{"data_MCM_avg_weights.nrrd", "bvalList.txt", "data_MCM_avg.mcm", "data.nii.gz"} {
		require.NoError(t, os.WriteFile(filepath.Join(images, name), nil, 0o644))
	}

	cfg, err := NewPrepareConfig(PrepareConfig{DataRoot: data, Index: 1})
	require.NoError(t, err)
	require.NoError(t, a.Prepare(context.Background(), cfg))

	calls := inv.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "animaDTIEstimator", calls[0].Tool)
	assert.Equal(t, paths.Diffusion.Tensors, calls[0].Arg("-o"))
	assert.Equal(t, paths.Diffusion.BrainMask, calls[0].Arg("-m"))

	assert.Equal(t, "python3", calls[1].Tool)
	assert.Equal(t, "/opt/anima-scripts/diffusion/animaMultiCompartmentModelEstimation.py", calls[1].Args[0])
	assert.Equal(t, "tensor", calls[1].Arg("-t"))
	assert.Equal(t, "3", calls[1].Arg("-n"))
	assert.Contains(t, calls[1].Args, "--hcp")

	assert.NoFileExists(t, filepath.Join(images, "data_MCM_avg_weights.nrrd"))
	assert.NoFileExists(t, filepath.Join(images, "bvalList.txt"))
	assert.NoDirExists(t, filepath.Join(images, "data_MCM_N2"))
	assert.FileExists(t, filepath.Join(images, "data_MCM_avg.mcm"))
	assert.FileExists(t, filepath.Join(images, "data.nii.gz"))
}

func TestPrepare_EstimatorFailure(t *testing.T) {
	a, inv, _ := SetupAppTest(t)
	inv.FailTool("animaDTIEstimator", 1)
	data := WriteManifest(t, 101)

	err := a.Prepare(context.Background(), &PrepareConfig{DataRoot: data, Index: 0})
	var toolErr *invoke.ToolExecutionError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, 1, inv.Count("animaDTIEstimator"))
	assert.Zero(t, inv.Count("python3"))
}

func TestPrepare_MissingDataRoot(t *testing.T) {
	a, inv, _ := SetupAppTest(t)
	root := filepath.Join(t.TempDir(), "missing")

	err := a.Prepare(context.Background(), &PrepareConfig{DataRoot: root, Index: 0})
	var pErr *subject.PathError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, root, pErr.Root)
	assert.Empty(t, inv.Calls())
}
