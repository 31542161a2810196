package listing

import "time"

// Type distinguishes demand from supply. Immutable after creation.
type Type string

const (
	TypeAsk  Type = "ask"  // needs a referral
	TypeGive Type = "give" // can refer
)

// Listing is a standing ask or give request owned by one profile.
type Listing struct {
	ID            string
	ProfileID     string
	Type          Type
	Role          *string
	Level         *string
	TargetCompany *string
	Notes         *string
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PublicFilters narrows the browse query for the explore surface.
type PublicFilters struct {
	Type             Type
	ExcludeProfileID string
	Limit            int
}

// Patch carries the owner-editable fields; nil means leave unchanged.
type Patch struct {
	Role          *string
	Level         *string
	TargetCompany *string
	Notes         *string
	Active        *bool
}
