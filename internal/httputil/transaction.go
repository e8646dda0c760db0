package httputil

import (
	"strconv"

	"github.com/getsentry/sentry-go"
)

const (
	// HTTPStatusCodeTag is the name of the HTTP status code tag.
	HTTPStatusCodeTag = "http.response.status_code"
	// HTTPStatusClassTag groups status codes by hundreds, 2xx, 4xx and so on.
	HTTPStatusClassTag = "http.response.status_class"
)

// SetHTTPStatusCodeTag tags a transaction with the status of the response it
// served, so operator commands rejected with a 400 can be told apart from
// server failures. Tags already set are kept.
func SetHTTPStatusCodeTag(e *sentry.Event, hint *sentry.EventHint) *sentry.Event {
	if hint == nil || hint.Response == nil {
		return e
	}
	if e.Tags == nil {
		e.Tags = make(map[string]string, 2)
	}
	code := hint.Response.StatusCode
	if _, exists := e.Tags[HTTPStatusCodeTag]; !exists {
		e.Tags[HTTPStatusCodeTag] = strconv.Itoa(code)
	}
	if _, exists := e.Tags[HTTPStatusClassTag]; !exists {
		e.Tags[HTTPStatusClassTag] = strconv.Itoa(code/100) + "xx"
	}
	return e
}
