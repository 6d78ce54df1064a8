package engine

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
)

// ErrEmptyMarks indicates that a marks source yielded no usable
// entries. Marks are the scaling baseline, so an empty mapping is
// batch-fatal.
var ErrEmptyMarks = errors.New("marks mapping is empty")

// suggestionDistance is the maximum edit distance at which a marks key
// is offered as a plausible spelling of a missing lookup key.
const suggestionDistance = 3

// foldKey canonicalises a marks key for caseless lookup. cases.Caser
// is stateful and must not be shared between goroutines, so each call
// builds its own caser.
func foldKey(key string) string {
	return cases.Fold().String(strings.TrimSpace(key))
}

// Marks is the original-marks mapping loaded from the instructor's
// marks file, keyed by student number or group name depending on the
// configured mode. Lookups are Unicode case-folded so "group 1a"
// matches "Group 1A". Immutable after loading.
type Marks struct {
	values map[string]float64
	keys   []string
}

// NewMarks builds a Marks mapping from already-parsed entries.
func NewMarks(entries map[string]float64) (Marks, error) {
	if len(entries) == 0 {
		return Marks{}, ErrEmptyMarks
	}
	m := Marks{values: make(map[string]float64, len(entries))}
	for key, mark := range entries {
		m.values[foldKey(key)] = mark
		m.keys = append(m.keys, strings.TrimSpace(key))
	}
	return m, nil
}

// LoadMarksCSV reads a two-or-three-column marks file: key, mark, and
// an optional comment. Any row whose second column does not parse as a
// float is a header and is skipped, not an error. An empty result is
// fatal.
func LoadMarksCSV(r io.Reader) (Marks, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	entries := make(map[string]float64)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Marks{}, fmt.Errorf("failed to read marks file: %w", err)
		}
		if len(record) < 2 {
			continue
		}
		mark, parseErr := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if parseErr != nil {
			// Header row.
			continue
		}
		entries[strings.TrimSpace(record[0])] = mark
	}

	return NewMarks(entries)
}

// Len returns the number of mark entries.
func (m Marks) Len() int { return len(m.values) }

// Lookup resolves a mark by key, case-folded.
func (m Marks) Lookup(key string) (float64, bool) {
	mark, ok := m.values[foldKey(key)]
	return mark, ok
}

// Suggest returns the known key closest to the given missing key, when
// one is near enough to be a plausible spelling mismatch. Group-name
// typos between the roster and the marks file are the most common way
// a run loses marks, so the suggestion goes straight into the error.
func (m Marks) Suggest(key string) string {
	folded := foldKey(key)
	best := ""
	bestDistance := suggestionDistance + 1
	for _, candidate := range m.keys {
		d := levenshtein.ComputeDistance(folded, foldKey(candidate))
		if d < bestDistance {
			best = candidate
			bestDistance = d
		}
	}
	return best
}
