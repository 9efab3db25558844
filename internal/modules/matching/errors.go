// README: Sentinel errors for the matching engine and match lifecycle.
package matching

import (
	"errors"

	"coload/internal/modules/shipment"
)

var (
	ErrNotFound     = errors.New("match not found")
	ErrInvalidState = errors.New("invalid state transition")
	ErrConflict     = errors.New("match state conflict")
	ErrForbidden    = errors.New("caller is not a party to this match")
	ErrNoCompany    = errors.New("caller has no company")
	ErrBadRequest   = errors.New("bad request")
	ErrJobRunning   = errors.New("matching job already running")
	ErrLockLost     = errors.New("matching run lock lost")
	// ErrProvider marks a travel-time provider failure for a bucket.
	ErrProvider = errors.New("travel-time provider failure")
	// ErrMalformedShipment is reported for shipments left out of a run.
	ErrMalformedShipment = shipment.ErrMalformed
)
