package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ocommowi/regeval/internal/app"
	"github.com/ocommowi/regeval/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeToolConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.txt")
	content := "[anima-scripts]\nanima = /opt/anima/bin\nanima-scripts-public-root = /opt/anima-scripts\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	return exitErr.Code
}

func TestExecute_Help(t *testing.T) {
	out := &bytes.Buffer{}
	err := Execute(context.Background(), []string{"evaluate", "-h"}, out)

	require.NoError(t, err)
	assert.Contains(t, out.String(), "--ref-index")
	assert.Contains(t, out.String(), "--strategies")
}

func TestExecute_UsageErrors(t *testing.T) {
	cfg := writeToolConfig(t)
	testCases := []struct {
		name string
		args []string
		want string
	}{
		{"unknown flag", []string{"evaluate", "--no-such-flag"}, "unknown flag"},
		{"unknown command", []string{"register"}, "unknown command"},
		{"missing indices", []string{"evaluate", "--config", cfg}, "--ref-index, --mov-index"},
		{"missing mov index", []string{"evaluate", "-r", "0", "--config", cfg}, "--mov-index"},
		{"negative index", []string{"evaluate", "-r", "-1", "-m", "0", "--config", cfg}, "non-negative"},
		{"bad log format", []string{"evaluate", "-r", "0", "-m", "1", "--log-format", "xml", "--config", cfg}, "log-format"},
		{"bad int", []string{"prepare", "-i", "abc"}, "invalid argument"},
		{"missing index", []string{"prepare", "--config", cfg}, "--index"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			inv := testutil.NewFakeInvoker()
			err := Execute(context.Background(), tc.args, &bytes.Buffer{}, app.WithInvoker(inv))

			assert.Equal(t, 2, exitCode(t, err))
			assert.Contains(t, err.Error(), tc.want)
			assert.Empty(t, inv.Calls())
		})
	}
}

func TestExecute_MissingToolConfig(t *testing.T) {
	inv := testutil.NewFakeInvoker()
	missing := filepath.Join(t.TempDir(), "absent.txt")

	err := Execute(context.Background(),
		[]string{"evaluate", "-r", "0", "-m", "1", "-d", t.TempDir(), "--config", missing},
		&bytes.Buffer{}, app.WithInvoker(inv))

	assert.Equal(t, 1, exitCode(t, err))
	assert.Contains(t, err.Error(), "anima configuration")
	assert.Empty(t, inv.Calls())
}

func TestExecute_EvaluateRun(t *testing.T) {
	inv := testutil.NewFakeInvoker()
	inv.SetStdout("animaSegPerfAnalyzer", "0.9\n")
	inv.SetStdout("animaFuzzyDiceMeasure", "0.5\n")
	data := app.WriteManifest(t, 101, 102)

	args := []string{"evaluate", "-r", "0", "-m", "1", "-d", data,
		"--strategies", "P1,P2", "--workers", "2", "--threads", "3",
		"--config", writeToolConfig(t), "--scratch-dir", t.TempDir()}
	err := Execute(context.Background(), args, &bytes.Buffer{}, app.WithInvoker(inv))
	require.NoError(t, err)

	affine := inv.CallsTo("animaPyramidalBMRegistration")
	require.Len(t, affine, 1)
	assert.Equal(t, "3", affine[0].Arg("-T"))
	assert.FileExists(t, filepath.Join(data, "Results", "Results_101_102", "anat_nl_tracks_fuzzy_dice.csv"))
}

func TestExecute_EvaluateAbortedExitsOne(t *testing.T) {
	inv := testutil.NewFakeInvoker()
	inv.FailTool("animaPyramidalBMRegistration", 4)
	data := app.WriteManifest(t, 101, 102)

	args := []string{"evaluate", "-r", "0", "-m", "1", "-d", data, "--strategies", "P1",
		"--config", writeToolConfig(t), "--scratch-dir", t.TempDir()}
	err := Execute(context.Background(), args, &bytes.Buffer{}, app.WithInvoker(inv))

	assert.Equal(t, 1, exitCode(t, err))
	assert.Contains(t, err.Error(), "animaPyramidalBMRegistration exited with code 4")
}
