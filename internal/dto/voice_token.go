package dto

type VoiceTokenIssueResponse struct {
	Token           string `json:"token"`
	ExpiresAt       string `json:"expiresAt"`
	ValidForMinutes int    `json:"validForMinutes"`
}

type VoiceTokenStatusResponse struct {
	HasActiveToken   bool   `json:"hasActiveToken"`
	Token            string `json:"token,omitempty"`
	ExpiresAt        string `json:"expiresAt,omitempty"`
	RemainingSeconds *int64 `json:"remainingSeconds,omitempty"`
}

type VoiceTokenRevokeResponse struct {
	WasInvalidated bool `json:"wasInvalidated"`
}

type ValidateVoiceTokenRequest struct {
	Token string `json:"token"`
}

// ValidateVoiceTokenResponse never says why a token was rejected.
type ValidateVoiceTokenResponse struct {
	Valid     bool   `json:"valid"`
	UserID    string `json:"userId,omitempty"`
	UserEmail string `json:"userEmail,omitempty"`
}
