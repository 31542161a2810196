package profile

import "time"

// Profile is the reputation record for one user, keyed by verified email.
// It mirrors the profiles table and carries no JSON annotations so it can be
// reused by different presentation layers.
type Profile struct {
	ID                string
	Email             string
	Name              *string
	Image             *string
	TotalMatches      int
	SuccessfulMatches int
	CompletionRate    float64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CompletionRate returns successful/total as a percentage. A profile with no
// accepted matches yet is treated as fully reliable, matching the convention
// used when the first approval lands before any other match resolves.
func CompletionRate(successful, total int) float64 {
	if total == 0 {
		return 100
	}
	return float64(successful) / float64(total) * 100
}
