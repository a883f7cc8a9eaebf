package reconcile

import "errors"

// Job-level sentinel errors. These fail the whole ProcessJob call before any
// row is touched; row-level failures are recorded in the summary instead.
var (
	ErrJobNotFound        = errors.New("import job not found")
	ErrNoColumnMapping    = errors.New("import job has no column mapping")
	ErrMissingEmailField  = errors.New("column mapping does not map an email field")
	ErrInvalidPolicy      = errors.New("unknown duplicate-handling policy")
	ErrInvalidThreshold   = errors.New("validation threshold must be between 0 and 100")
	ErrSubscriberNotFound = errors.New("subscriber not found")
)
