package resultstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/ocommowi/regeval/internal/evaluate"
	"github.com/ocommowi/regeval/internal/subject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_InsertAndQuery(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "results.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	pair := subject.Pair{Ref: subject.Build(101, "/data"), Mov: subject.Build(102, "/data")}
	runID := uuid.NewString()
	require.NoError(t, s.BeginRun(ctx, runID, pair))

	records := []evaluate.Record{
		{Strategy: "P1", Target: evaluate.ParcellationTarget, Region: 0, Metric: evaluate.Dice, Value: 0.8, Valid: true},
		{Strategy: "P1", Target: "CC", Region: -1, Metric: evaluate.FuzzyDice, Value: 0.5, Valid: true},
		{Strategy: "P1", Target: "MCP", Region: -1, Metric: evaluate.FuzzyDice},
	}
	require.NoError(t, s.Insert(ctx, runID, pair, records))

	got, err := s.Scores(ctx, runID)
	require.NoError(t, err)
	if diff := cmp.Diff(records, got); diff != "" {
		t.Errorf("scores mismatch (-want +got):\n%s", diff)
	}

	other, err := s.Scores(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestStore_ReopenKeepsScores(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "results.db")
	pair := subject.Pair{Ref: subject.Build(1, "/d"), Mov: subject.Build(2, "/d")}

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.BeginRun(ctx, "run-a", pair))
	require.NoError(t, s.Insert(ctx, "run-a", pair, []evaluate.Record{
		{Strategy: "P8", Target: "CC", Region: -1, Metric: evaluate.FuzzyDice, Value: 0.7, Valid: true},
	}))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Scores(ctx, "run-a")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "P8", got[0].Strategy)
}

func TestStore_DuplicateRun(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	defer s.Close()

	pair := subject.Pair{Ref: subject.Build(1, "/d"), Mov: subject.Build(2, "/d")}
	require.NoError(t, s.BeginRun(ctx, "run-a", pair))
	assert.Error(t, s.BeginRun(ctx, "run-a", pair))
}
