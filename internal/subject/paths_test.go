package subject

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	root := t.TempDir()

	p, err := Resolve(101, root)
	require.NoError(t, err)

	assert.Equal(t, 101, p.ID)
	assert.Equal(t, filepath.Join(root, "Structural_Data_Preprocessed", "101", "Images", "T1w_acpc_dc_restore_brain.nii.gz"), p.Structural.Anatomy)
	assert.Equal(t, filepath.Join(root, "Structural_Data_Preprocessed", "101", "Masks", "brainmask_fs.nii.gz"), p.Structural.BrainMask)
	assert.Equal(t, filepath.Join(root, "Diffusion_Data_Preprocessed", "101", "Images", "data_Tensors.nrrd"), p.Diffusion.Tensors)
	assert.Equal(t, filepath.Join(root, "Diffusion_Data_Preprocessed", "101", "Masks", "nodif_brain_mask.nii.gz"), p.Diffusion.BrainMask)
	assert.Equal(t, filepath.Join(root, "Diffusion_Data_Preprocessed", "101", "Tracks", "CST_left.vtp"), p.Diffusion.Track("CST_left"))
}

func TestResolve_IsDeterministicAndPure(t *testing.T) {
	root := t.TempDir()

	first, err := Resolve(7, root)
	require.NoError(t, err)
	second, err := Resolve(7, root)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries, "path resolution must not touch the filesystem")
}

func TestResolve_MissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "missing")

	_, err := Resolve(1, root)
	var pErr *PathError
	require.True(t, errors.As(err, &pErr))
	assert.Equal(t, root, pErr.Root)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestResolve_RootIsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(file, nil, 0600))

	_, err := Resolve(1, file)
	var pErr *PathError
	assert.True(t, errors.As(err, &pErr))
}

func TestCheckRoot(t *testing.T) {
	assert.NoError(t, CheckRoot(t.TempDir()))

	missing := filepath.Join(t.TempDir(), "missing")
	var pErr *PathError
	require.ErrorAs(t, CheckRoot(missing), &pErr)
	assert.Equal(t, missing, pErr.Root)
}

func TestPairString(t *testing.T) {
	pair := Pair{Ref: Build(101, "d"), Mov: Build(102, "d")}
	assert.Equal(t, "101_102", pair.String())
}
