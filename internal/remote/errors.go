package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"github.com/BuzzLyutic/task-tracker/internal/model"
)

// Kind classifies why a remote call failed.
type Kind string

const (
	KindNetwork  Kind = "NETWORK"
	KindRejected Kind = "REJECTED"
	KindNotFound Kind = "NOT_FOUND"
	KindUnknown  Kind = "UNKNOWN"
)

// Error is the only error type returned by Client. Status is the HTTP status
// when the store answered, zero otherwise.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError returns an *Error without an HTTP status.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// KindOf reports the kind of err; errors that did not come from this
// package are UNKNOWN.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindUnknown
}

// CheckTask reports an entity the store answered with that cannot be stored
// locally: one without a confirmed id or with a status outside the known set.
func CheckTask(t model.Task) error {
	switch {
	case !t.Confirmed():
		return &Error{Kind: KindUnknown, Message: fmt.Sprintf("store answered with invalid task id %d", t.ID)}
	case !t.Status.Valid():
		return &Error{Kind: KindUnknown, Message: fmt.Sprintf("store answered with unknown status %q", t.Status)}
	}
	return nil
}

func fromStatus(status int, message string) *Error {
	kind := KindUnknown
	switch status {
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		kind = KindRejected
	case http.StatusNotFound:
		kind = KindNotFound
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return &Error{Kind: kind, Message: message, Status: status}
}

func fromTransport(err error) *Error {
	var (
		urlErr *url.Error
		netErr net.Error
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &Error{Kind: KindNetwork, Message: "request timed out", Err: err}
	case errors.As(err, &netErr), errors.As(err, &urlErr):
		return &Error{Kind: KindNetwork, Message: err.Error(), Err: err}
	}
	return &Error{Kind: KindUnknown, Message: err.Error(), Err: err}
}
