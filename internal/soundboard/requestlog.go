package soundboard

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"
)

// ErrRequestLogFull means the request file has grown past its byte cap and
// further requests are denied.
var ErrRequestLogFull = errors.New("request log is full")

const requestTimeLayout = "2006-01-02 15:04:05"

// RequestLog is an append-only file of soundboard asset requests. Once the
// file exceeds maxBytes, appends are rejected rather than rotated, so the
// backlog is bounded until a human empties it.
type RequestLog struct {
	mu       sync.Mutex
	path     string
	maxBytes int64
	now      func() time.Time
}

func NewRequestLog(path string, maxBytes int64) *RequestLog {
	return &RequestLog{path: path, maxBytes: maxBytes, now: time.Now}
}

type Request struct {
	Author string
	URL    string
	Start  string
	End    string
}

func (l *RequestLog) Append(req Request) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	info, err := os.Stat(l.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat request log: %w", err)
	}
	if err == nil && info.Size() > l.maxBytes {
		return ErrRequestLogFull
	}

	line := fmt.Sprintf("[%s] %s requests %s", l.now().Format(requestTimeLayout), req.Author, req.URL)
	if req.Start != "" {
		line += " from " + req.Start
		if req.End != "" {
			line += " to " + req.End
		}
	}
	line += "\n"

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open request log: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("append request: %w", err)
	}
	return nil
}
