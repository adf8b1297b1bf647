// Package subject derives the on-disk locations of a subject's structural
// and diffusion data from its identifier and the data root.
package subject

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Data-type folders under the data root.
const (
	StructuralFolder = "Structural_Data_Preprocessed"
	DiffusionFolder  = "Diffusion_Data_Preprocessed"
)

// PathError reports an unusable data root.
type PathError struct {
	Root string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("data folder %s: %v", e.Root, e.Err)
}

func (e *PathError) Unwrap() error { return e.Err }

// Structural holds the anatomical artifacts of a subject.
type Structural struct {
	Dir          string
	Anatomy      string
	Parcellation string
	BrainMask    string
}

// Diffusion holds the diffusion artifacts of a subject.
type Diffusion struct {
	Dir       string
	Images    string
	DWI       string
	BVal      string
	BVec      string
	Tensors   string
	MCM       string
	BrainMask string
	TracksDir string
}

// Track returns the tractography bundle path for a catalog tract name.
func (d Diffusion) Track(name string) string {
	return filepath.Join(d.TracksDir, name+".vtp")
}

// Paths is the full set of locations for one subject.
type Paths struct {
	ID         int
	Structural Structural
	Diffusion  Diffusion
}

// Resolve builds the paths of subject id below dataRoot. Only the data root
// itself is checked; individual files are left to the tools that read them.
func Resolve(id int, dataRoot string) (Paths, error) {
	if err := CheckRoot(dataRoot); err != nil {
		return Paths{}, err
	}
	return Build(id, dataRoot), nil
}

// CheckRoot returns a *PathError unless dataRoot is an existing directory.
func CheckRoot(dataRoot string) error {
	info, err := os.Stat(dataRoot)
	if err != nil {
		return &PathError{Root: dataRoot, Err: err}
	}
	if !info.IsDir() {
		return &PathError{Root: dataRoot, Err: fmt.Errorf("not a directory")}
	}
	return nil
}

// Build is the pure naming convention behind Resolve.
func Build(id int, dataRoot string) Paths {
	sid := strconv.Itoa(id)
	sDir := filepath.Join(dataRoot, StructuralFolder, sid)
	dDir := filepath.Join(dataRoot, DiffusionFolder, sid)
	dImages := filepath.Join(dDir, "Images")

	return Paths{
		ID: id,
		Structural: Structural{
			Dir:          sDir,
			Anatomy:      filepath.Join(sDir, "Images", "T1w_acpc_dc_restore_brain.nii.gz"),
			Parcellation: filepath.Join(sDir, "Images", "aparc+aseg.nii.gz"),
			BrainMask:    filepath.Join(sDir, "Masks", "brainmask_fs.nii.gz"),
		},
		Diffusion: Diffusion{
			Dir:       dDir,
			Images:    dImages,
			DWI:       filepath.Join(dImages, "data.nii.gz"),
			BVal:      filepath.Join(dImages, "data.bval"),
			BVec:      filepath.Join(dImages, "data.bvec"),
			Tensors:   filepath.Join(dImages, "data_Tensors.nrrd"),
			MCM:       filepath.Join(dImages, "data_MCM_avg.mcm"),
			BrainMask: filepath.Join(dDir, "Masks", "nodif_brain_mask.nii.gz"),
			TracksDir: filepath.Join(dDir, "Tracks"),
		},
	}
}

// Pair is a reference/moving subject couple evaluated together.
type Pair struct {
	Ref Paths
	Mov Paths
}

// String renders the pair as "<ref>_<mov>", the suffix of its results folder.
func (p Pair) String() string {
	return fmt.Sprintf("%d_%d", p.Ref.ID, p.Mov.ID)
}
