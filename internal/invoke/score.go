package invoke

import (
	"errors"
	"strconv"
	"strings"
	"unicode"
)

var errNoValue = errors.New("no value")

// ParseScore reads a single floating-point score from a measurement tool's
// standard output.
func ParseScore(tool string, stdout []byte) (float64, error) {
	text := strings.TrimSpace(string(stdout))
	if text == "" {
		return 0, &ParseError{Tool: tool, Output: text, Err: errNoValue}
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, &ParseError{Tool: tool, Output: text, Err: err}
	}
	return v, nil
}

// ParseScores reads a list of scores separated by commas or whitespace, as
// printed by region-wise overlap tools.
func ParseScores(tool string, stdout []byte) ([]float64, error) {
	text := string(stdout)
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})
	if len(fields) == 0 {
		return nil, &ParseError{Tool: tool, Output: strings.TrimSpace(text), Err: errNoValue}
	}

	scores := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, &ParseError{Tool: tool, Output: strings.TrimSpace(text), Err: err}
		}
		scores = append(scores, v)
	}
	return scores, nil
}
