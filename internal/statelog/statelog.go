// Package statelog reads and appends the lamp's tab-separated transition log.
//
// Each line is "timestamp<TAB>value<TAB>label" where timestamp is epoch
// seconds, value the lamp level and label a human-readable local date.
package statelog

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/lampd/internal/logic"
)

// HumanLayout renders dates like "Saturday, 30. October 2021 09:06AM".
const HumanLayout = "Monday, 02. January 2006 03:04PM"

// Writer appends transitions to the log file. Every Append is written
// straight to the file so a crash loses at most the line being written.
type Writer struct {
	mu   sync.Mutex
	f    *os.File
	path string
	loc  *time.Location
}

// Open opens path for appending, creating it and its directory if needed.
// Labels are rendered in loc (time.Local if nil).
func Open(path string, loc *time.Location) (*Writer, error) {
	if loc == nil {
		loc = time.Local
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open state log %q: %w", path, err)
	}
	return &Writer{f: f, path: path, loc: loc}, nil
}

// Append writes one transition. An empty label is replaced with the
// human-readable date of the timestamp.
func (w *Writer) Append(t logic.Transition) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := io.WriteString(w.f, FormatLine(t, w.loc)); err != nil {
		return fmt.Errorf("write state log: %w", err)
	}
	return nil
}

// Path returns the file being written.
func (w *Writer) Path() string {
	return w.path
}

// Close closes the file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}

// FormatLine renders t as a newline-terminated log line.
func FormatLine(t logic.Transition, loc *time.Location) string {
	label := t.Label
	if label == "" {
		label = HumanTime(t.Timestamp, loc)
	}
	return strconv.FormatFloat(t.Timestamp, 'f', -1, 64) + "\t" +
		strconv.FormatFloat(t.Value, 'f', -1, 64) + "\t" +
		label + "\n"
}

// HumanTime formats an epoch-seconds timestamp with HumanLayout in loc.
func HumanTime(ts float64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).In(loc).Format(HumanLayout)
}

// LineError describes a log line that could not be parsed.
type LineError struct {
	Line int
	Text string
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// ErrTooFewFields is returned for lines without a timestamp and a value.
var ErrTooFewFields = errors.New("expected at least 2 tab-separated fields")

// Result is the outcome of reading a log.
type Result struct {
	Transitions []logic.Transition
	Malformed   []*LineError
}

// Read parses a log. Blank lines are ignored; malformed lines are skipped
// and reported in Result.Malformed. Order is preserved as written.
func Read(r io.Reader) (Result, error) {
	var res Result
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		t, err := ParseLine(line)
		if err != nil {
			res.Malformed = append(res.Malformed, &LineError{Line: n, Text: line, Err: err})
			continue
		}
		res.Transitions = append(res.Transitions, t)
	}
	if err := sc.Err(); err != nil {
		return res, fmt.Errorf("scan state log: %w", err)
	}
	return res, nil
}

// ParseLine parses a single log line.
func ParseLine(line string) (logic.Transition, error) {
	fields := strings.SplitN(line, "\t", 3)
	if len(fields) < 2 {
		return logic.Transition{}, ErrTooFewFields
	}
	ts, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	if err != nil {
		return logic.Transition{}, fmt.Errorf("timestamp: %w", err)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return logic.Transition{}, fmt.Errorf("value: %w", err)
	}
	t := logic.Transition{Timestamp: ts, Value: v}
	if len(fields) == 3 {
		t.Label = strings.TrimSpace(fields[2])
	}
	return t, nil
}

// ReadFile reads the log at path. A missing file is an empty log.
func ReadFile(path string) (Result, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Result{}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("open state log %q: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}

// FileSource loads training history from a log file.
type FileSource struct {
	path   string
	logger *zap.Logger
}

// NewFileSource creates a source reading path.
func NewFileSource(path string, logger *zap.Logger) *FileSource {
	return &FileSource{path: path, logger: logger}
}

// Load returns every well-formed transition in the file. Malformed lines
// are logged as warnings and skipped.
func (s *FileSource) Load(_ context.Context) ([]logic.Transition, error) {
	res, err := ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	for _, le := range res.Malformed {
		s.logger.Warn("skipping malformed state log line",
			zap.String("path", s.path),
			zap.Int("line", le.Line),
			zap.Error(le.Err),
		)
	}
	return res.Transitions, nil
}
