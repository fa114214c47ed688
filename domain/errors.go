package domain

import "errors"

// Mutation error taxonomy. Not-found and precondition failures are terminal
// and reported to the caller; nothing in this package retries them. A failed
// mutation never produces a broadcast event.
var (
	ErrNotFound           = errors.New("not found")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrForbidden          = errors.New("access denied")
	ErrInvalidOrder       = errors.New("orders are not a permutation of the sibling range")
)
