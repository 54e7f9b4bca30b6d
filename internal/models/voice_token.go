package models

import "time"

// VoiceToken is the record persisted for every live voice token, keyed by
// the token word.
type VoiceToken struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	UserEmail string    `json:"userEmail"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// ExpiredAt reports whether the token is dead at now. A token is still valid
// at exactly its expiry instant.
func (t *VoiceToken) ExpiredAt(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// VoiceIdentity is the owner a valid voice token resolves to.
type VoiceIdentity struct {
	UserID    string
	UserEmail string
}

type IssuedVoiceToken struct {
	Token           string
	ExpiresAt       time.Time
	ValidForMinutes int
}

type ActiveVoiceToken struct {
	Token            string
	ExpiresAt        time.Time
	RemainingSeconds int64
}
