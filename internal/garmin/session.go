package garmin

import (
	"encoding/json"
	"time"
)

// Session is the authenticated-state bundle for the Connect API. It is
// persisted as a JSON blob and replaced wholesale on fresh login; validity is
// only ever detected by probing the remote service.
type Session struct {
	Username     string    `json:"username"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	TokenType    string    `json:"tokenType"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Encode serializes the session for key-value storage.
func (s Session) Encode() (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// DecodeSession deserializes a persisted session blob.
func DecodeSession(blob string) (Session, error) {
	var s Session
	if err := json.Unmarshal([]byte(blob), &s); err != nil {
		return Session{}, err
	}
	return s, nil
}
