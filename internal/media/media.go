package media

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnsupportedSource means the query points at a source this bot cannot
// extract from. It is terminal: retrying will not help.
var ErrUnsupportedSource = errors.New("unsupported media source")

// TransientError wraps an extraction failure that is worth retrying.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient extraction failure: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

type Track struct {
	Title     string
	Uploader  string
	Duration  time.Duration
	StreamURL string
}

func (t *Track) String() string {
	s := fmt.Sprintf("*%s* uploaded by %s", t.Title, t.Uploader)
	if t.Duration > 0 {
		total := int(t.Duration.Seconds())
		s += fmt.Sprintf(" [length: %dm %ds]", total/60, total%60)
	}
	return s
}

// Resolver turns a search term or URL into a playable track.
type Resolver interface {
	Resolve(ctx context.Context, query string) (*Track, error)
}
