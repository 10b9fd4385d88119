package session

import "time"

// Token is an anonymous continuity token. PreviousToken holds the value of the expired token it
// replaced, forming an append-only rotation chain.
type Token struct {
	ID            int64
	Value         string
	CreatedOn     time.Time
	ExpiresOn     time.Time
	PreviousToken *string
}

func (t *Token) Expired(now time.Time) bool { return !now.Before(t.ExpiresOn) }
