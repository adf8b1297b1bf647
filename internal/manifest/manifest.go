// Package manifest maps zero-based subject indices to subject identifiers
// listed in a plain-text manifest, one integer identifier per line.
package manifest

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultName is the manifest file shipped with the HCP105 Zenodo corpus.
const DefaultName = "HCP105_Zenodo_Subjects_List.txt"

// DefaultPath returns the manifest location inside a data folder.
func DefaultPath(dataRoot string) string {
	return filepath.Join(dataRoot, "Diffusion_Data_Preprocessed", DefaultName)
}

// Error reports a manifest that cannot serve the requested index.
type Error struct {
	Path  string
	Index int
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("manifest %s: index %d: %s", e.Path, e.Index, e.Msg)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Read returns every line of the manifest in order. A trailing newline does
// not add an entry.
func Read(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// Resolve returns the subject identifier found on line index (0-based).
func Resolve(index int, path string) (int, error) {
	lines, err := Read(path)
	if err != nil {
		return 0, &Error{Path: path, Index: index, Msg: "cannot read manifest", Err: err}
	}
	if index < 0 || index >= len(lines) {
		return 0, &Error{Path: path, Index: index, Msg: fmt.Sprintf("out of range (manifest has %d entries)", len(lines))}
	}

	id, err := strconv.Atoi(strings.TrimSpace(lines[index]))
	if err != nil {
		return 0, &Error{Path: path, Index: index, Msg: fmt.Sprintf("line %q is not an integer subject id", lines[index]), Err: err}
	}
	return id, nil
}
