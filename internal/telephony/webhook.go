package telephony

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType identifies a Call Control webhook event.
type EventType string

const (
	EventInitiated    EventType = "call.initiated"
	EventAnswered     EventType = "call.answered"
	EventGatherEnded  EventType = "call.gather.ended"
	EventHangup       EventType = "call.hangup"
	EventSpeakStarted EventType = "call.speak.started"
	EventSpeakEnded   EventType = "call.speak.ended"
	EventDTMF         EventType = "call.dtmf.received"
)

// Event is the normalized internal shape of a webhook. Fields absent
// from the wire payload stay at their zero values; normalization never
// fails on missing data, only on unparseable JSON.
type Event struct {
	Type          EventType
	CallID        string
	CallSessionID string
	From          string
	To            string
	Digits        string
	HangupCause   string
	ClientState   string
	OccurredAt    time.Time
}

// webhookEnvelope mirrors the provider's event envelope closely enough
// to pull out the fields the router cares about.
type webhookEnvelope struct {
	Data struct {
		EventType  string    `json:"event_type"`
		OccurredAt time.Time `json:"occurred_at"`
		Payload    struct {
			CallControlID string `json:"call_control_id"`
			CallSessionID string `json:"call_session_id"`
			From          string `json:"from"`
			To            string `json:"to"`
			Digit         string `json:"digit"`
			Digits        string `json:"digits"`
			HangupCause   string `json:"hangup_cause"`
			ClientState   string `json:"client_state"`
		} `json:"payload"`
	} `json:"data"`
}

// ParseWebhook normalizes a raw webhook body into an Event.
func ParseWebhook(body []byte) (Event, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Event{}, fmt.Errorf("parse webhook envelope: %w", err)
	}

	p := env.Data.Payload
	digits := p.Digits
	if digits == "" {
		digits = p.Digit
	}

	return Event{
		Type:          EventType(env.Data.EventType),
		CallID:        p.CallControlID,
		CallSessionID: p.CallSessionID,
		From:          p.From,
		To:            p.To,
		Digits:        digits,
		HangupCause:   p.HangupCause,
		ClientState:   p.ClientState,
		OccurredAt:    env.Data.OccurredAt,
	}, nil
}
