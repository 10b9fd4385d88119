package verification

import "time"

type Token struct {
	ID        int64
	Value     string
	Email     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (t *Token) Expired(now time.Time) bool { return !now.Before(t.ExpiresAt) }
