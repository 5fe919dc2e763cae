// Package apierr carries the HTTP boundary error for the ingestion API:
// services attach a status and a stable machine-readable code, handlers
// translate it into the response envelope.
package apierr

import "fmt"

// Error pairs an HTTP status with a short code like "file_too_large" or
// "not_found". Err holds the underlying cause for logs; the code is what
// clients branch on.
type Error struct {
	Status int
	Code   string
	Err    error
}

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Err != nil:
		return e.Err.Error()
	case e.Code != "":
		return e.Code
	case e.Status != 0:
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }
