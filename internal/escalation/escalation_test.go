package escalation

import (
	"strings"
	"testing"
)

func TestShouldEscalate_Rules(t *testing.T) {
	tests := []struct {
		name   string
		intent string
		ent    Entities
		ctx    Context
		want   bool
		reason Reason
	}{
		{"payment issue", "payment_issue", Entities{}, Context{}, true, ReasonPaymentIssue},
		{"complex booking intent", "complex_booking", Entities{}, Context{}, true, ReasonComplexBooking},
		{"party of 31", "booking", Entities{PartySize: 31}, Context{}, true, ReasonLargeGroup},
		{"party of 30 stays automated", "booking", Entities{PartySize: 30}, Context{}, false, ""},
		{"tournament keyword", "booking", Entities{Text: "we want a tournament next month"}, Context{}, true, ReasonComplexBooking},
		{"recurring keyword", "booking", Entities{Text: "a weekly recurring slot"}, Context{}, true, ReasonComplexBooking},
		{"catering keyword", "party_booking", Entities{Text: "can you do catering for us"}, Context{}, true, ReasonSpecialRequirements},
		{"equipment rental keyword", "booking", Entities{Text: "we need equipment rental too"}, Context{}, true, ReasonSpecialRequirements},
		{"three booking errors", "booking", Entities{}, Context{BookingErrors: 3}, true, ReasonBookingErrors},
		{"two booking errors stay automated", "booking", Entities{}, Context{BookingErrors: 2}, false, ""},
		{"plain booking", "booking", Entities{PartySize: 6, Text: "basketball saturday"}, Context{}, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShouldEscalate(tt.intent, tt.ent, tt.ctx)
			if got != tt.want {
				t.Errorf("ShouldEscalate = %v, want %v", got, tt.want)
			}
			reason, ok := Decide(tt.intent, tt.ent, tt.ctx)
			if ok != tt.want || reason != tt.reason {
				t.Errorf("Decide = (%q, %v), want (%q, %v)", reason, ok, tt.reason, tt.want)
			}
		})
	}
}

func TestShouldEscalate_PaymentIssueIndependent(t *testing.T) {
	// The payment rule must hold regardless of every other field.
	variants := []struct {
		ent Entities
		ctx Context
	}{
		{Entities{}, Context{}},
		{Entities{PartySize: 2}, Context{}},
		{Entities{PartySize: 100, Text: "tournament catering"}, Context{BookingErrors: 9}},
	}
	for _, v := range variants {
		if !ShouldEscalate("payment_issue", v.ent, v.ctx) {
			t.Errorf("payment_issue not escalated with %+v / %+v", v.ent, v.ctx)
		}
	}
}

func TestBuildMessage(t *testing.T) {
	for _, reason := range []Reason{
		ReasonPaymentIssue, ReasonComplexBooking, ReasonLargeGroup,
		ReasonSpecialRequirements, ReasonBookingErrors, ReasonMenuAttempts,
		ReasonUserRequested, ReasonHandoff,
	} {
		msg := BuildMessage(reason, Entities{PartySize: 40})
		if !strings.HasSuffix(msg, "Please hold while I connect you.") {
			t.Errorf("%s: message missing hold notice: %q", reason, msg)
		}
	}

	msg := BuildMessage(ReasonLargeGroup, Entities{PartySize: 45})
	if !strings.Contains(msg, "45") {
		t.Errorf("large group message should substitute party size: %q", msg)
	}
}
