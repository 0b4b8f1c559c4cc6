package logstore

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, maxChunk int64) *Store {
	t.Helper()
	s, err := New(t.TempDir(), maxChunk)
	require.NoError(t, err)
	return s
}

func TestReadSinceMissingLog(t *testing.T) {
	s := newStore(t, 0)

	chunk, offset, err := s.ReadSince("scrape_abc", 10)
	require.NoError(t, err)
	assert.Equal(t, "", chunk)
	assert.Equal(t, int64(0), offset)
}

func TestAppendAndReadSince(t *testing.T) {
	s := newStore(t, 0)
	require.NoError(t, s.Append("job1", "line1"))
	require.NoError(t, s.Append("job1", "line2\n"))

	chunk, offset, err := s.ReadSince("job1", 0)
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2\n", chunk)
	assert.Equal(t, int64(12), offset)

	chunk, next, err := s.ReadSince("job1", offset)
	require.NoError(t, err)
	assert.Equal(t, "", chunk)
	assert.Equal(t, offset, next)

	require.NoError(t, s.Appendf("job1", "[info] %s", "done"))
	chunk, next, err = s.ReadSince("job1", offset)
	require.NoError(t, err)
	assert.Equal(t, "[info] done\n", chunk)
	assert.Equal(t, offset+int64(len(chunk)), next)
}

func TestReadSincePastEnd(t *testing.T) {
	s := newStore(t, 0)
	require.NoError(t, s.Append("job1", "abc"))

	chunk, offset, err := s.ReadSince("job1", 100)
	require.NoError(t, err)
	assert.Equal(t, "", chunk)
	assert.Equal(t, int64(100), offset)
}

func TestReadSinceRejectsNegativeOffset(t *testing.T) {
	s := newStore(t, 0)
	_, _, err := s.ReadSince("job1", -1)
	assert.ErrorIs(t, err, ErrInvalidOffset)
}

func TestReadSinceCapsAtLineBoundary(t *testing.T) {
	s := newStore(t, 10)
	require.NoError(t, s.Append("job1", "aaaa"))
	require.NoError(t, s.Append("job1", "bbbb"))
	require.NoError(t, s.Append("job1", "cccc"))

	var got []string
	var offset int64
	for i := 0; i < 10; i++ {
		chunk, next, err := s.ReadSince("job1", offset)
		require.NoError(t, err)
		if chunk == "" {
			break
		}
		assert.LessOrEqual(t, len(chunk), 10)
		got = append(got, chunk)
		offset = next
	}
	assert.Equal(t, "aaaa\nbbbb\ncccc\n", strings.Join(got, ""))
	assert.Equal(t, "aaaa\nbbbb\n", got[0])
}

func TestPathRejectsTraversal(t *testing.T) {
	s := newStore(t, 0)
	for _, id := range []string{"", "../etc/passwd", "a/b", "a.b", strings.Repeat("x", 129)} {
		_, err := s.Path(id)
		assert.True(t, errors.Is(err, ErrInvalidID), id)
	}
	assert.Error(t, s.Append("../x", "line"))
}

func TestLineWriter(t *testing.T) {
	s := newStore(t, 0)
	w := s.Writer("job1")

	_, err := fmt.Fprint(w, "first\r\n\nsec")
	require.NoError(t, err)
	_, err = fmt.Fprint(w, "ond\nthird")
	require.NoError(t, err)

	chunk, _, err := s.ReadSince("job1", 0)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", chunk)

	require.NoError(t, w.Flush())
	require.NoError(t, w.Flush())
	chunk, _, err = s.ReadSince("job1", 0)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\nthird\n", chunk)
}

func TestLineWriterSplitsLongLines(t *testing.T) {
	s := newStore(t, 2*MaxLineSize)
	w := s.Writer("job1")

	_, err := w.Write([]byte(strings.Repeat("x", MaxLineSize+3)))
	require.NoError(t, err)
	require.NoError(t, w.Flush())

	chunk, _, err := s.ReadSince("job1", 0)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(chunk, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Len(t, lines[0], MaxLineSize)
	assert.Equal(t, "xxx", lines[1])
}
