package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is an API failure carrying the HTTP status and the stable code clients branch on.
// RunID is set when the failure concerns a single generation run.
type Error struct {
	Status int
	Code   string
	RunID  string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Code
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = fmt.Sprintf("api error (%d)", e.Status)
	}
	if e.RunID != "" {
		return fmt.Sprintf("run %s: %s", e.RunID, msg)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// ForRun returns a copy of e scoped to runID.
func (e *Error) ForRun(runID string) *Error {
	if e == nil {
		return nil
	}
	out := *e
	out.RunID = runID
	return &out
}

// Rule maps errors matching Target (errors.Is) to a status and code.
type Rule struct {
	Target error
	Status int
	Code   string
}

// Match returns an Error for the first rule err satisfies, or a 500 internal_error.
// An err that already is an *Error is returned as is.
func Match(err error, rules []Rule) *Error {
	var ae *Error
	if errors.As(err, &ae) && ae.Status != 0 {
		return ae
	}
	for _, r := range rules {
		if r.Target != nil && errors.Is(err, r.Target) {
			return New(r.Status, r.Code, err)
		}
	}
	return New(http.StatusInternalServerError, "internal_error", err)
}
