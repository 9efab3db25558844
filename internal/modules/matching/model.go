// README: Match aggregate, lifecycle statuses and run bookkeeping types.
package matching

import (
	"time"

	"coload/internal/types"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusRejected  Status = "rejected"
)

// Side names which shipment of a match a caller speaks for.
type Side string

const (
	SideNone  Side = ""
	SideOuter Side = "outer"
	SideInner Side = "inner"
)

// Match pairs an outer (driver) shipment whose truck also carries the inner
// (passenger) shipment's cargo.
type Match struct {
	ID              types.ID
	OuterShipmentID types.ID
	InnerShipmentID types.ID
	// Company ids of both parties, loaded with the match for authorization.
	OuterCompanyID types.ID
	InnerCompanyID types.ID

	Status         Status
	StatusVersion  int
	OuterConfirmed bool
	InnerConfirmed bool

	Schedule  Schedule
	CreatedAt time.Time
}

func (m *Match) ConfirmedBy(side Side) bool {
	switch side {
	case SideOuter:
		return m.OuterConfirmed
	case SideInner:
		return m.InnerConfirmed
	}
	return false
}

// Schedule holds the four estimated instants of a co-loaded trip.
type Schedule struct {
	OuterStart   time.Time
	InnerStart   time.Time
	InnerArrival time.Time
	OuterArrival time.Time
}

// RejectedPair is an archived rejection; the unordered pair is never proposed
// again until an operator clears it.
type RejectedPair struct {
	OuterShipmentID types.ID
	InnerShipmentID types.ID
	RejectedAt      time.Time
}

type Event struct {
	ID         int64
	MatchID    types.ID
	FromStatus Status
	ToStatus   Status
	ActorType  string
	ActorID    *types.ID
	CreatedAt  time.Time
}

// Caller is the authenticated principal acting on a match.
type Caller struct {
	UID       string
	CompanyID types.ID
	Admin     bool
}

// AllowedTransitions represents the match state flow as code.
var AllowedTransitions = map[Status][]Status{
	StatusPending: {StatusConfirmed, StatusRejected},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// RunSummary describes one matching run.
type RunSummary struct {
	RunID     string
	Shipments int
	Malformed int
	Buckets   int
	Skipped   int
	Failed    int
	Proposed  int
	Persisted int
	Duration  time.Duration
}
