package usecase

import crerr "github.com/cockroachdb/errors"

var (
	ErrInvalidInput          = crerr.New("invalid input")
	ErrSyncInProgress        = crerr.New("synchronization already in progress")
	ErrListingUnsupported    = crerr.New("source has no listing endpoint for entity")
	ErrDependencyUnavailable = crerr.New("dependency unavailable")
)
