package engine

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMarksCSV(t *testing.T) {
	t.Run("header rows are skipped", func(t *testing.T) {
		src := strings.Join([]string{
			"Student,Mark,Comment",
			"1001,72.5,good work",
			"1002,64",
			"Total,not-a-mark",
			"1003,58.25,",
		}, "\n")

		marks, err := LoadMarksCSV(strings.NewReader(src))
		require.NoError(t, err)
		assert.Equal(t, 3, marks.Len())

		mark, ok := marks.Lookup("1001")
		require.True(t, ok)
		assert.InDelta(t, 72.5, mark, 1e-9)

		mark, ok = marks.Lookup("1003")
		require.True(t, ok)
		assert.InDelta(t, 58.25, mark, 1e-9)
	})

	t.Run("empty mapping is fatal", func(t *testing.T) {
		_, err := LoadMarksCSV(strings.NewReader("Student,Mark\n"))
		assert.ErrorIs(t, err, ErrEmptyMarks)

		_, err = LoadMarksCSV(strings.NewReader(""))
		assert.ErrorIs(t, err, ErrEmptyMarks)
	})

	t.Run("single column rows are ignored", func(t *testing.T) {
		marks, err := LoadMarksCSV(strings.NewReader("orphan\n1001,70\n"))
		require.NoError(t, err)
		assert.Equal(t, 1, marks.Len())
	})
}

func TestMarksLookupFolded(t *testing.T) {
	marks, err := NewMarks(map[string]float64{"Group 1A": 65})
	require.NoError(t, err)

	for _, key := range []string{"Group 1A", "group 1a", "  GROUP 1A  "} {
		mark, ok := marks.Lookup(key)
		require.True(t, ok, "key %q", key)
		assert.InDelta(t, 65.0, mark, 1e-9)
	}

	_, ok := marks.Lookup("Group 1B")
	assert.False(t, ok)
}

func TestMarksSuggest(t *testing.T) {
	marks, err := NewMarks(map[string]float64{
		"Group One": 60,
		"Group Two": 70,
	})
	require.NoError(t, err)

	assert.Equal(t, "Group One", marks.Suggest("Group 0ne"))
	assert.Equal(t, "Group Two", marks.Suggest("group two "))
	assert.Equal(t, "", marks.Suggest("completely different"))
}

// Lookup and Suggest build a fresh caser per call, so a Marks mapping
// can be read from many goroutines at once. Run with -race.
func TestMarksLookupConcurrent(t *testing.T) {
	marks, err := NewMarks(map[string]float64{"Group 1A": 65})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				mark, ok := marks.Lookup("group 1a")
				assert.True(t, ok)
				assert.InDelta(t, 65.0, mark, 1e-9)
			}
		}()
	}
	wg.Wait()
}

func TestNewMarksEmpty(t *testing.T) {
	_, err := NewMarks(nil)
	assert.ErrorIs(t, err, ErrEmptyMarks)
}
