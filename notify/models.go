package notify

import "time"

// Kind enumerates the notification types the product surfaces.
type Kind string

const (
	KindMatchRequest   Kind = "match_request"
	KindMatchAccepted  Kind = "match_accepted"
	KindMatchExpired   Kind = "match_expired"
	KindNewMessage     Kind = "new_message"
	KindProofSubmitted Kind = "proof_submitted"
	KindProofApproved  Kind = "proof_approved"
	KindProofRejected  Kind = "proof_rejected"
	KindCreditEarned   Kind = "credit_earned"
)

// Notification is an in-app inbox entry for one profile. RefID points at the
// match the event concerns, when there is one.
type Notification struct {
	ID        string
	ProfileID string
	Kind      Kind
	RefID     *string
	Read      bool
	CreatedAt time.Time
}
