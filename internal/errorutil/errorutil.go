package errorutil

import "errors"

// ErrDataIntegrity is a base error type to use for failures that are due to
// unrecoverable data integrity issues, like a malformed frame event trace.
var ErrDataIntegrity = errors.New("data integrity error")

// ErrTooManyArgs is returned when a dump command carries more arguments than
// the dispatcher accepts. The whole command is rejected.
var ErrTooManyArgs = errors.New("too many arguments")
