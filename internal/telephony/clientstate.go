package telephony

import (
	"encoding/base64"
	"encoding/json"
)

// EncodeClientState serializes the state into the compact token format
// the provider accepts: base64 of a small JSON object.
func EncodeClientState(cs ClientState) (string, error) {
	raw, err := json.Marshal(cs)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeClientState decodes a token received on a webhook. A missing or
// corrupt token yields the zero state rather than an error: the router
// falls back to the session's own state field to decide how to proceed.
func DecodeClientState(token string) ClientState {
	if token == "" {
		return ClientState{}
	}
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return ClientState{}
	}
	var cs ClientState
	if err := json.Unmarshal(raw, &cs); err != nil {
		return ClientState{}
	}
	return cs
}
