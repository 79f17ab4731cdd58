package ivr

import (
	"strings"
	"time"
)

// MaxMenuAttempts is the number of failed gathers (timeout or invalid
// digit) tolerated before the call escalates to the operator. The
// comparison is >=, so the third failure triggers escalation, never a
// fourth.
const MaxMenuAttempts = 3

const (
	// GatherTimeout is the provider-side wait for a digit. If the
	// caller stays silent the provider emits a gather.ended with empty
	// digits, which is the "no input" retry path.
	GatherTimeout = 10 * time.Second

	// MaxGatherDigits bounds one menu selection.
	MaxGatherDigits = 1
)

// Selection classifies the outcome of a digit pressed at the menu.
type Selection int

const (
	// SelectionInvalid covers both an empty gather (timeout) and a
	// digit with no active menu entry. An unknown digit is always
	// invalid, never silently ignored.
	SelectionInvalid Selection = iota

	// SelectionConversation routes to the automated assistant with
	// the entry's intent attached.
	SelectionConversation

	// SelectionTransfer hands the call to the entry's configured
	// destination, or the default operator number if none is set.
	SelectionTransfer
)

// Menu wraps settings with the prompt and lookup logic the router
// drives at gather time.
type Menu struct {
	settings *Settings
	active   []MenuOption
}

// NewMenu builds a menu over the given settings.
func NewMenu(settings *Settings) *Menu {
	return &Menu{
		settings: settings,
		active:   sortedActiveOptions(settings.MenuOptions),
	}
}

// Settings exposes the underlying configuration.
func (m *Menu) Settings() *Settings { return m.settings }

// UseAudio reports whether the greeting should be played from a
// recorded file instead of TTS.
func (m *Menu) UseAudio() bool {
	return m.settings.UseAudioGreeting && m.settings.GreetingAudioURL != ""
}

// PromptText is the full first-time menu prompt: greeting followed by
// every active option in order.
func (m *Menu) PromptText() string {
	var b strings.Builder
	b.WriteString(m.settings.GreetingText)
	for _, opt := range m.active {
		b.WriteString(" ")
		b.WriteString(opt.OptionText)
	}
	return b.String()
}

// ReplayText is the retry prompt after a silent gather.
func (m *Menu) ReplayText() string {
	return m.settings.ReplayMessage + " " + m.optionsText()
}

// InvalidText is the retry prompt after an unrecognized digit.
func (m *Menu) InvalidText() string {
	return m.settings.InvalidOptionMessage + " " + m.optionsText()
}

func (m *Menu) optionsText() string {
	parts := make([]string, 0, len(m.active))
	for _, opt := range m.active {
		parts = append(parts, opt.OptionText)
	}
	return strings.Join(parts, " ")
}

// ValidDigits is the set of digits the gather should accept.
func (m *Menu) ValidDigits() string {
	var b strings.Builder
	for _, opt := range m.active {
		b.WriteString(opt.KeyPress)
	}
	return b.String()
}

// Select resolves gathered digits against the active menu.
func (m *Menu) Select(digits string) (MenuOption, Selection) {
	digits = strings.TrimSpace(digits)
	if digits == "" {
		return MenuOption{}, SelectionInvalid
	}
	for _, opt := range m.active {
		if opt.KeyPress == digits {
			if opt.ActionType == ActionTransfer {
				return opt, SelectionTransfer
			}
			return opt, SelectionConversation
		}
	}
	return MenuOption{}, SelectionInvalid
}
