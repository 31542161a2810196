package match

import "time"

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusExpired  Status = "expired"
)

// Deadline windows. The submit window is set once at creation and tightened
// when the giver accepts.
const (
	AcknowledgeWindow    = 48 * time.Hour
	SubmitWindowInitial  = 9 * 24 * time.Hour
	SubmitWindowAccepted = 7 * 24 * time.Hour
)

// Match connects one ask listing with one give listing. EscrowCreditID holds
// the asker's escrowed credit from creation until the escrow resolves, then
// clears; a resolved match keeps status accepted, expiry is the only stored
// terminal status.
type Match struct {
	ID             string
	AskListingID   string
	GiveListingID  string
	AskerID        string
	GiverID        string
	EscrowCreditID *string
	Status         Status
	AcknowledgeBy  time.Time
	SubmitBy       time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
