package watch

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// OrderRecord is one line of the order audit trail: a single submission
// attempt and its outcome.
type OrderRecord struct {
	Time     time.Time `json:"time"`
	Thread   string    `json:"thread"`
	Comment  string    `json:"comment"`
	Author   string    `json:"author"`
	Link     string    `json:"link"`
	Quantity int       `json:"quantity"`
	Order    int64     `json:"order,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// OrderLog appends order records to a newline-delimited JSON file.
//
// It is safe for concurrent use.
type OrderLog struct {
	mu   sync.Mutex
	path string
	file *os.File
	w    *bufio.Writer
}

// NewOrderLog returns a log that appends to path. If path is empty/blank, it
// returns nil; a nil log discards records.
func NewOrderLog(path string) *OrderLog {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	return &OrderLog{path: path}
}

func (l *OrderLog) ensureOpenLocked() error {
	if l.file != nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}

	l.file = f
	l.w = bufio.NewWriterSize(f, 64*1024)
	return nil
}

// Record appends rec as a single JSON object followed by '\n'.
// It flushes the buffered writer to make the record visible to tailers.
func (l *OrderLog) Record(rec OrderRecord) error {
	if l == nil {
		return nil
	}
	if rec.Time.IsZero() {
		rec.Time = time.Now().UTC()
	}

	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ensureOpenLocked(); err != nil {
		return err
	}

	if _, err := l.w.Write(b); err != nil {
		return err
	}
	if err := l.w.WriteByte('\n'); err != nil {
		return err
	}
	return l.w.Flush()
}

// Close flushes any buffered data and closes the underlying file.
func (l *OrderLog) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	if l.w != nil {
		if err := l.w.Flush(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if l.file != nil {
		if err := l.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.w = nil
	l.file = nil

	if firstErr != nil && errors.Is(firstErr, os.ErrClosed) {
		return nil
	}
	return firstErr
}
