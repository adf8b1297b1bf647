package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ocommowi/regeval/internal/ctxlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chainIDs(stages []*Stage) []string {
	out := make([]string, 0, len(stages))
	for _, s := range stages {
		out = append(out, s.ID)
	}
	return out
}

func TestDefault(t *testing.T) {
	p, err := Default(ctxlog.Discard(context.Background()), Vars{Threads: 8})
	require.NoError(t, err)

	wantChains := map[string][]string{
		"P1": {"affine"},
		"P2": {"affine", "anat_nl"},
		"P3": {"affine", "dti_nl"},
		"P4": {"affine", "mcm_nl"},
		"P5": {"affine", "anat_nl", "anat_dti_nl"},
		"P6": {"affine", "anat_nl", "anat_mcm_nl"},
		"P7": {"affine", "dti_nl", "dti_mcm_nl"},
		"P8": {"affine", "anat_nl", "anat_dti_nl", "anat_dti_mcm_nl"},
	}

	strategies := p.Strategies()
	require.Len(t, strategies, 8)
	for _, s := range strategies {
		assert.Equal(t, wantChains[s.Name], chainIDs(p.Chain(s.Stage)), s.Name)
	}

	affine, ok := p.Stage("affine")
	require.True(t, ok)
	assert.Equal(t, KindAffine, affine.Kind)
	assert.Equal(t, "animaPyramidalBMRegistration", affine.Tool)
	assert.Equal(t, []string{"-p", "4", "-l", "1", "--sp", "2", "--ot", "2", "--sym-reg", "2", "-T", "8"}, affine.Flags)

	mcm, _ := p.Stage("anat_dti_mcm_nl")
	assert.Equal(t, KindMCMNL, mcm.Kind)
	assert.Equal(t, MCM, mcm.Kind.Modality())
	assert.Equal(t, "animaDenseMCMSVFBMRegistration", mcm.Tool)

	p1, _ := p.Strategy("P1")
	assert.Equal(t, "aff", p1.Artifact)
}

func TestParse_OverridesAndDefaults(t *testing.T) {
	src := `
stage "a" {
  kind = "affine"
  tool = "myAffine"
}
stage "b" {
  kind  = "tensor-nl"
  after = "a"
  flags = ["-T", "${threads * 2}"]
}
strategy "Fast" { stage = "a" }
strategy "Deep" {
  stage    = "b"
  artifact = "deep"
}
`
	p, err := Parse(context.Background(), []byte(src), "custom.hcl", Vars{Threads: 3})
	require.NoError(t, err)

	a, _ := p.Stage("a")
	assert.Equal(t, "myAffine", a.Tool)
	assert.Empty(t, a.Flags)

	b, _ := p.Stage("b")
	assert.Equal(t, []string{"-T", "6"}, b.Flags)

	fast, _ := p.Strategy("Fast")
	assert.Equal(t, "fast", fast.Artifact)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "unknown kind",
			src:  `stage "a" { kind = "rigid" }` + "\n" + `strategy "P" { stage = "a" }`,
			want: `unknown kind "rigid"`,
		},
		{
			name: "unknown parent",
			src: `stage "a" {
  kind  = "affine"
  after = "zz"
}
strategy "P" { stage = "a" }`,
			want: `unknown stage "zz"`,
		},
		{
			name: "duplicate stage",
			src:  `stage "a" { kind = "affine" }` + "\n" + `stage "a" { kind = "affine" }` + "\n" + `strategy "P" { stage = "a" }`,
			want: `duplicate stage "a"`,
		},
		{
			name: "cycle",
			src: `stage "a" {
  kind = "affine"
  after = "b"
}
stage "b" {
  kind = "anatomical-nl"
  after = "a"
}
strategy "P" { stage = "a" }`,
			want: "cycle detected",
		},
		{
			name: "strategy on unknown stage",
			src:  `stage "a" { kind = "affine" }` + "\n" + `strategy "P" { stage = "b" }`,
			want: `unknown stage "b"`,
		},
		{
			name: "shared artifact",
			src: `stage "a" { kind = "affine" }
strategy "P" {
  stage = "a"
  artifact = "x"
}
strategy "Q" {
  stage = "a"
  artifact = "x"
}`,
			want: `share artifact name "x"`,
		},
		{
			name: "no strategies",
			src:  `stage "a" { kind = "affine" }`,
			want: "no strategy defined",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(context.Background(), []byte(tc.src), "bad.hcl", Vars{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidPipeline), "got %v", err)
			assert.ErrorContains(t, err, tc.want)
		})
	}

	t.Run("syntax error", func(t *testing.T) {
		_, err := Parse(context.Background(), []byte(`stage "a" {`), "broken.hcl", Vars{})
		assert.ErrorContains(t, err, "failed to parse pipeline")
	})

	t.Run("unknown attribute", func(t *testing.T) {
		_, err := Parse(context.Background(), []byte(`stage "a" {
  kind = "affine"
  speed = 3
}`), "extra.hcl", Vars{})
		assert.ErrorContains(t, err, "failed to decode pipeline")
	})
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`stage "a" { kind = "affine" }
strategy "P1" { stage = "a" }`), 0600))

	p, err := Load(context.Background(), path, Vars{})
	require.NoError(t, err)
	assert.Len(t, p.Strategies(), 1)

	_, err = Load(context.Background(), filepath.Join(t.TempDir(), "missing.hcl"), Vars{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSelect(t *testing.T) {
	p, err := Default(context.Background(), Vars{Threads: 1})
	require.NoError(t, err)

	all, err := p.Select(nil)
	require.NoError(t, err)
	assert.Len(t, all, 8)

	some, err := p.Select([]string{"P7", "P2"})
	require.NoError(t, err)
	require.Len(t, some, 2)
	assert.Equal(t, "P2", some[0].Name, "declaration order is kept")
	assert.Equal(t, "P7", some[1].Name)

	_, err = p.Select([]string{"P9"})
	assert.ErrorContains(t, err, `unknown strategy "P9"`)
}
