package credit

import "time"

// Status tracks the one-directional lifecycle of a credit. Spent and returned
// are terminal; a release or expiry always mints a new available credit
// instead of resurrecting an old one.
type Status string

const (
	StatusAvailable Status = "available"
	StatusEscrowed  Status = "escrowed"
	StatusSpent     Status = "spent"
	StatusReturned  Status = "returned"
)

// Source records how a credit came into existence.
type Source string

const (
	SourceGrant  Source = "grant"
	SourceEarned Source = "earned"
)

// Credit represents one unit of referral currency owned by exactly one profile.
type Credit struct {
	ID        string
	ProfileID string
	Status    Status
	Source    Source
	CreatedAt time.Time
}

// Balance reports credit counts per status for one profile. This is the only
// read surface the ledger exposes to external consumers.
type Balance struct {
	Available int
	Escrowed  int
	Spent     int
	Returned  int
}
