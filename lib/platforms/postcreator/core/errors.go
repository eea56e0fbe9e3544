package core

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrMissingToken     = errors.New("postcard creator: no access token given")
	ErrMissingMailingId = errors.New("postcard creator: draft mailing response has no mailing id in its Location header")
)

// RequestFailedError is returned for any response outside of 200, 201 and 204.
type RequestFailedError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *RequestFailedError) Error() string {
	return fmt.Sprintf(
		"postcard creator: error in request %s %s. status_code: %d, response: %s",
		e.Method, e.Endpoint, e.StatusCode, e.Body,
	)
}

// Unauthorized reports whether the server rejected the access token, in
// which case the caller should authenticate again.
func (e *RequestFailedError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// QuotaExceededError is returned when the account has no free postcard left.
type QuotaExceededError struct {
	// Next is the server reported time the next free postcard becomes available.
	Next string
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("postcard creator: limit of free postcards exceeded, try again at %s", e.Next)
}

// DraftLeftBehindError is returned when a submission fails after the draft
// mailing was created. The draft stays on the server.
type DraftLeftBehindError struct {
	MailingId string
	Step      string
	Err       error
}

func (e *DraftLeftBehindError) Error() string {
	return fmt.Sprintf("postcard creator: %s (draft mailing %s left behind): %v", e.Step, e.MailingId, e.Err)
}

func (e *DraftLeftBehindError) Unwrap() error {
	return e.Err
}
