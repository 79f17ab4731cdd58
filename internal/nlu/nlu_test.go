package nlu

import (
	"testing"
)

func TestRuleClassifier_Intents(t *testing.T) {
	c := NewRuleClassifier()

	tests := []struct {
		text string
		want string
	}{
		{"how much does it cost per hour", "pricing"},
		{"is the court available tomorrow", "availability"},
		{"I want to book a reservation", "booking"},
		{"what are your hours", "general_info"},
		{"my credit card was declined", "payment_issue"},
		{"we need a weekly league for our corporate team", "complex_booking"},
		{"", "unknown"},
		{"xyzzy", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := c.Classify(tt.text)
			if got.Intent != tt.want {
				t.Errorf("Classify(%q).Intent = %q, want %q", tt.text, got.Intent, tt.want)
			}
		})
	}
}

func TestRuleClassifier_Entities(t *testing.T) {
	c := NewRuleClassifier()

	res := c.Classify("birthday party for 25 kids, about 3 hours")
	if res.Entities.ServiceType != "birthday_party" {
		t.Errorf("ServiceType = %q", res.Entities.ServiceType)
	}
	if res.Entities.PartySize != 25 {
		t.Errorf("PartySize = %d", res.Entities.PartySize)
	}
	if res.Entities.DurationHrs != 3 {
		t.Errorf("DurationHrs = %d", res.Entities.DurationHrs)
	}

	res = c.Classify("yes that works")
	if res.Entities.Confirmation == nil || !*res.Entities.Confirmation {
		t.Error("Confirmation should be true")
	}

	res = c.Classify("no, something different")
	if res.Entities.Confirmation == nil || *res.Entities.Confirmation {
		t.Error("Confirmation should be false")
	}
}

func TestRuleClassifier_Confidence(t *testing.T) {
	c := NewRuleClassifier()

	if got := c.Classify("random words here").Confidence; got != 0 {
		t.Errorf("unknown confidence = %f", got)
	}

	got := c.Classify("what's the price? the cost, the hourly rate, the fee").Confidence
	if got != 1.0 {
		t.Errorf("heavy match confidence = %f, want capped at 1.0", got)
	}
}
