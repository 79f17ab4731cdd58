// Package session holds the per-call state shared by the webhook router.
// A CallSession lives from the first event seen for a call until the
// hangup event has been fully processed, including call logging.
package session

import (
	"time"
)

// State is the position of a call in the answering flow.
type State string

const (
	StateNew          State = "new"
	StateInitiated    State = "initiated"
	StateAnswered     State = "answered"
	StateMenu         State = "menu"
	StateConversation State = "conversation"
	StateTransferring State = "transferring"
	StateTerminated   State = "terminated"
)

// Context carries slots accumulated over the call. Known fields are
// explicit; Slots is the escape hatch for extractor keys that are not
// known in advance.
type Context struct {
	BookingErrors int
	Intent        string
	Slots         map[string]string
}

// TranscriptEntry is one line of the call transcript. The transcript is
// append-only and used only for the final call log, never for control
// decisions.
type TranscriptEntry struct {
	Speaker string    `json:"speaker"`
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

// CallSession is the state for one active phone call, keyed by the
// provider-assigned call control id.
type CallSession struct {
	CallID        string
	CallSessionID string
	From          string
	To            string

	State         State
	Context       Context
	Transcript    []TranscriptEntry
	MenuSelection string
	Intent        string
	StartTime     time.Time
	MenuAttempts  int
}

// Transition moves the session to the given state. A session never
// leaves Terminated; late or duplicate events must not resurrect a
// finished call.
func (s *CallSession) Transition(to State) bool {
	if s.State == StateTerminated {
		return false
	}
	s.State = to
	return true
}

// Terminated reports whether the session has reached its final state.
func (s *CallSession) Terminated() bool {
	return s.State == StateTerminated
}

// AppendTranscript records a line spoken by either party.
func (s *CallSession) AppendTranscript(speaker, text string) {
	if text == "" {
		return
	}
	s.Transcript = append(s.Transcript, TranscriptEntry{
		Speaker: speaker,
		Text:    text,
		At:      time.Now(),
	})
}
