package invoke

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScore(t *testing.T) {
	v, err := ParseScore("animaFuzzyDiceMeasure", []byte(" 0.8125\n"))
	require.NoError(t, err)
	assert.InDelta(t, 0.8125, v, 1e-12)

	for _, bad := range []string{"", "  \n", "nan-ish", "0.5 0.6"} {
		_, err := ParseScore("animaFuzzyDiceMeasure", []byte(bad))
		var pErr *ParseError
		assert.True(t, errors.As(err, &pErr), "input %q", bad)
	}
}

func TestParseScores(t *testing.T) {
	got, err := ParseScores("animaSegPerfAnalyzer", []byte("0.1,0.2\n0.3 0.4\t0.5\n"))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3, 0.4, 0.5}, got)

	_, err = ParseScores("animaSegPerfAnalyzer", []byte("0.1,label"))
	var pErr *ParseError
	require.True(t, errors.As(err, &pErr))
	assert.Contains(t, err.Error(), "animaSegPerfAnalyzer")

	_, err = ParseScores("animaSegPerfAnalyzer", nil)
	assert.True(t, errors.As(err, &pErr))
}
