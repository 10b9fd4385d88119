package domain

import "errors"

// Error taxonomy shared by every layer. Wrap with fmt.Errorf("%w: reason", ErrX);
// the HTTP boundary matches with errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrForbidden        = errors.New("forbidden")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrExpired          = errors.New("expired")
	ErrUnprocessable    = errors.New("unprocessable")
	ErrDependency       = errors.New("failed dependency")
	ErrProcessing       = errors.New("processing failure")
	ErrInternal         = errors.New("internal failure")
)

// ErrTokenCreation is a DependencyFailure raised when a token could not be persisted.
var ErrTokenCreation = &wrapped{msg: "token creation failure", parent: ErrDependency}

type wrapped struct {
	msg    string
	parent error
}

func (w *wrapped) Error() string { return w.msg }
func (w *wrapped) Unwrap() error { return w.parent }
