// Package telephony wraps the provider's Call Control API: outbound
// per-call commands, the opaque client-state token codec, and webhook
// envelope normalization.
package telephony

import (
	"context"
	"time"
)

// Client state tags recognized by the router. The provider echoes the
// encoded token back untouched on the next related webhook, which is
// how a stateless webhook exchange carries conversational context.
const (
	StateTagMenu         = "menu"
	StateTagConversation = "conversation"
	StateTagTransferHold = "transfer_hold"
	StateTagClosed       = "closed"
)

// ClientState is the application context round-tripped through the
// provider. The zero value means "no prior context".
type ClientState struct {
	State      string `json:"state,omitempty"`
	Attempt    int    `json:"attempt,omitempty"`
	Intent     string `json:"intent,omitempty"`
	TransferTo string `json:"transfer_to,omitempty"`
}

// IsZero reports whether the state carries no context.
func (cs ClientState) IsZero() bool {
	return cs == ClientState{}
}

// SpeakRequest is the payload for a text-to-speech command.
type SpeakRequest struct {
	Text     string
	Voice    string
	Language string
}

// GatherSpeakRequest plays a spoken prompt and collects DTMF digits.
type GatherSpeakRequest struct {
	Text        string
	Voice       string
	Language    string
	ValidDigits string
	MaxDigits   int
	Timeout     time.Duration
}

// GatherAudioRequest plays an audio file and collects DTMF digits.
type GatherAudioRequest struct {
	AudioURL    string
	ValidDigits string
	MaxDigits   int
	Timeout     time.Duration
}

// TransferRequest hands the call off to another number.
type TransferRequest struct {
	To   string
	From string
}

// CommandClient is the outbound call-control surface the router drives.
// Every command accepts an optional client state to round-trip; a nil
// state attaches no token. Implementations must fail fast on provider
// trouble rather than stall the webhook responder.
type CommandClient interface {
	Answer(ctx context.Context, callID string, state *ClientState) error
	Speak(ctx context.Context, callID string, req SpeakRequest, state *ClientState) error
	GatherSpeak(ctx context.Context, callID string, req GatherSpeakRequest, state *ClientState) error
	GatherAudio(ctx context.Context, callID string, req GatherAudioRequest, state *ClientState) error
	Transfer(ctx context.Context, callID string, req TransferRequest, state *ClientState) error
	Hangup(ctx context.Context, callID string, state *ClientState) error
}
