// Package escalation decides when a call should leave automation and
// go to a human, and builds the spoken handoff message.
package escalation

import (
	"fmt"
	"strings"
)

// Reason categorizes why a call is being handed to staff.
type Reason string

const (
	ReasonPaymentIssue        Reason = "payment_issue"
	ReasonComplexBooking      Reason = "complex_booking"
	ReasonLargeGroup          Reason = "large_group"
	ReasonSpecialRequirements Reason = "special_requirements"
	ReasonBookingErrors       Reason = "booking_error"
	ReasonMenuAttempts        Reason = "menu_attempts"
	ReasonUserRequested       Reason = "user_requested"
	ReasonHandoff             Reason = "handoff"
)

// largeGroupThreshold: parties above this size need staff coordination.
const largeGroupThreshold = 30

var complexBookingKeywords = []string{
	"multi-day", "multiple days", "recurring", "weekly", "tournament", "league",
}

var specialSetupKeywords = []string{
	"catering", "special setup", "equipment rental", "decorations",
}

// maxBookingErrors: after more than this many booking failures the
// automated flow stops retrying.
const maxBookingErrors = 2

// Entities is the extractor output the rules inspect.
type Entities struct {
	PartySize int
	Text      string
}

// Context is the slice of session context relevant to escalation.
type Context struct {
	BookingErrors int
}

// ShouldEscalate applies the handoff rules in order. Each rule is an
// independent boolean check; order only matters for short-circuiting.
func ShouldEscalate(intent string, ent Entities, ctx Context) bool {
	_, ok := Decide(intent, ent, ctx)
	return ok
}

// Decide returns the first matching reason, if any.
func Decide(intent string, ent Entities, ctx Context) (Reason, bool) {
	if intent == "payment_issue" {
		return ReasonPaymentIssue, true
	}
	if intent == "complex_booking" {
		return ReasonComplexBooking, true
	}
	if ent.PartySize > largeGroupThreshold {
		return ReasonLargeGroup, true
	}
	text := strings.ToLower(ent.Text)
	for _, kw := range complexBookingKeywords {
		if strings.Contains(text, kw) {
			return ReasonComplexBooking, true
		}
	}
	for _, kw := range specialSetupKeywords {
		if strings.Contains(text, kw) {
			return ReasonSpecialRequirements, true
		}
	}
	if ctx.BookingErrors > maxBookingErrors {
		return ReasonBookingErrors, true
	}
	return "", false
}

const holdNotice = " Please hold while I connect you."

// BuildMessage returns the canned spoken message for the handoff. The
// only dynamic content is substitution of known entity values; the
// hold notice is always appended.
func BuildMessage(reason Reason, ent Entities) string {
	var msg string
	switch reason {
	case ReasonPaymentIssue:
		msg = "I understand you need assistance with a payment issue. Let me connect you with our staff who can help resolve this right away."
	case ReasonComplexBooking:
		msg = "I understand you need assistance with a complex booking. Our staff will be able to help you with all the details."
	case ReasonLargeGroup:
		if ent.PartySize > 0 {
			msg = fmt.Sprintf("I understand you need assistance with arrangements for a group of %d people. Our staff can provide specialized service for large groups and corporate events.", ent.PartySize)
		} else {
			msg = "I understand you need assistance with arrangements for a large group. Our staff can provide specialized service for large groups and corporate events."
		}
	case ReasonSpecialRequirements:
		msg = "I understand you need assistance with special requirements for your event. Our staff can coordinate custom setups, equipment, and services."
	case ReasonBookingErrors:
		msg = "I apologize, but I'm experiencing a technical issue with the booking system. Let me connect you with our staff who can complete your reservation manually."
	case ReasonMenuAttempts:
		msg = "I'm having trouble understanding your selection. Let me connect you with a representative who can help you directly."
	case ReasonUserRequested:
		msg = "Of course! Let me connect you with one of our representatives."
	default:
		msg = "I understand you need assistance with your request. Our staff will be happy to assist you personally."
	}
	return msg + holdNotice
}
