package app

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/ocommowi/regeval/internal/manifest"
	"github.com/ocommowi/regeval/internal/toolconfig"
	"github.com/ocommowi/regeval/internal/testutil"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// SetupAppTest creates an App backed by a fake invoker for system testing.
func SetupAppTest(t *testing.T) (*App, *testutil.FakeInvoker, *SafeBuffer) {
	t.Helper()

	logBuffer := &SafeBuffer{}
	inv := testutil.NewFakeInvoker()
	tools := &toolconfig.Config{AnimaDir: "/opt/anima/bin", ScriptsDir: "/opt/anima-scripts", Python: "python3"}
	testApp := NewApp(logBuffer, LogConfig{Level: "debug", Format: "text"}, tools, WithInvoker(inv))

	t.Cleanup(func() {
		if os.Getenv("REGEVAL_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	return testApp, inv, logBuffer
}

// WriteManifest creates a data folder whose manifest lists ids.
func WriteManifest(t *testing.T, ids ...int) string {
	t.Helper()

	root := t.TempDir()
	lines := make([]string, len(ids))
	for i, id := range ids {
		lines[i] = strconv.Itoa(id)
	}
	path := manifest.DefaultPath(root)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return root
}
