package proof

import "time"

type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
)

// Proof is the giver's evidence that the referral was actually made. A match
// settles when the asker approves one.
type Proof struct {
	ID          string
	MatchID     string
	SubmitterID string
	FileURL     string
	Note        *string
	Status      Status
	ReviewNote  *string
	ReviewedAt  *time.Time
	CreatedAt   time.Time
}
