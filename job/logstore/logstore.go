// Package logstore keeps one append-only log file per job and serves it back
// from byte offsets.
package logstore

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// DefaultMaxChunk caps the bytes returned by one ReadSince call.
const DefaultMaxChunk = 1 << 20

// MaxLineSize caps one line buffered by a LineWriter. Longer output is
// split into several lines.
const MaxLineSize = 1 << 20

var (
	ErrInvalidID     = errors.New("invalid job id")
	ErrInvalidOffset = errors.New("offset must not be negative")
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// Store writes job logs under a directory.
type Store struct {
	dir      string
	maxChunk int64
	mu       sync.Mutex
}

// New creates the directory if needed. maxChunk <= 0 uses DefaultMaxChunk.
func New(dir string, maxChunk int64) (*Store, error) {
	if dir == "" {
		return nil, errors.New("log directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	if maxChunk <= 0 {
		maxChunk = DefaultMaxChunk
	}
	return &Store{dir: dir, maxChunk: maxChunk}, nil
}

// Path returns the log file of a job.
func (s *Store) Path(id string) (string, error) {
	if !idPattern.MatchString(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return filepath.Join(s.dir, id+".log"), nil
}

// Append writes text to the job log, terminating it with a newline.
func (s *Store) Append(id, text string) error {
	path, err := s.Path(id)
	if err != nil {
		return err
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open job log: %w", err)
	}
	if _, err := f.WriteString(text); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write job log: %w", err)
	}
	return f.Close()
}

// Appendf formats and appends one line.
func (s *Store) Appendf(id, format string, args ...any) error {
	return s.Append(id, fmt.Sprintf(format, args...))
}

// ReadSince returns the log text after offset and the offset to resume from.
// A job without a log yields an empty chunk at offset 0. When more than the
// chunk cap is available the chunk ends at the last complete line inside
// the cap.
func (s *Store) ReadSince(id string, offset int64) (string, int64, error) {
	if offset < 0 {
		return "", 0, ErrInvalidOffset
	}
	path, err := s.Path(id)
	if err != nil {
		return "", 0, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", 0, nil
		}
		return "", 0, fmt.Errorf("failed to open job log: %w", err)
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return "", 0, fmt.Errorf("failed to seek job log: %w", err)
	}

	buf, err := io.ReadAll(io.LimitReader(f, s.maxChunk+1))
	if err != nil {
		return "", 0, fmt.Errorf("failed to read job log: %w", err)
	}

	if int64(len(buf)) > s.maxChunk {
		buf = buf[:s.maxChunk]
		if i := bytes.LastIndexByte(buf, '\n'); i >= 0 {
			buf = buf[:i+1]
		}
	}

	return string(buf), offset + int64(len(buf)), nil
}

// Writer returns an io.Writer that appends every complete, non-empty line
// it receives to the job log. Flush writes a trailing partial line. It is
// not safe for concurrent use.
func (s *Store) Writer(id string) *LineWriter {
	return &LineWriter{store: s, id: id}
}

// LineWriter buffers partial lines between writes.
type LineWriter struct {
	store *Store
	id    string
	buf   []byte
}

func (w *LineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 || i > MaxLineSize {
			if len(w.buf) < MaxLineSize {
				break
			}
			i = MaxLineSize
		}
		line := strings.TrimSuffix(string(w.buf[:i]), "\r")
		if i < len(w.buf) && w.buf[i] == '\n' {
			i++
		}
		w.buf = w.buf[i:]
		if err := w.writeLine(line); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// Flush appends any buffered partial line.
func (w *LineWriter) Flush() error {
	line := strings.TrimSuffix(string(w.buf), "\r")
	w.buf = nil
	return w.writeLine(line)
}

func (w *LineWriter) writeLine(line string) error {
	if line == "" {
		return nil
	}
	return w.store.Append(w.id, line)
}
