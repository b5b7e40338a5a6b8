package session

import "fmt"

// UserError is caused by the requester's own input or by the current voice
// state conflicting with the request. Its message is shown to the
// requester verbatim and it is never logged as a failure.
type UserError struct {
	Message string
}

func (e *UserError) Error() string { return e.Message }

func userError(message string) error {
	return &UserError{Message: message}
}

func userErrorf(format string, args ...any) error {
	return &UserError{Message: fmt.Sprintf(format, args...)}
}

// ExternalError is a collaborator failure (media extraction, transcoding,
// speech synthesis, gateway calls). The requester gets a generic retry
// suggestion; the underlying error goes to the log.
type ExternalError struct {
	Err error
}

func (e *ExternalError) Error() string { return e.Err.Error() }
func (e *ExternalError) Unwrap() error { return e.Err }

func externalError(err error) error {
	if err == nil {
		return nil
	}
	return &ExternalError{Err: err}
}
