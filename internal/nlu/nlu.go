// Package nlu is the rule-based intent classifier. It is deliberately a
// leaf: the router consumes its Classify contract and nothing in the
// state machine depends on how matching works, so a model-backed
// implementation can replace the pattern tables without touching the
// call flow.
package nlu

import (
	"regexp"
	"strconv"
	"strings"
)

// Entities are the structured values pulled out of an utterance.
type Entities struct {
	ServiceType  string
	PartySize    int
	DurationHrs  int
	Confirmation *bool
	// Slots captures extractor keys not modeled explicitly.
	Slots map[string]string
}

// Result is one classification outcome.
type Result struct {
	Intent     string
	Entities   Entities
	Confidence float64
	Text       string
}

// Classifier maps an utterance to an intent with entities and a
// confidence score.
type Classifier interface {
	Classify(text string) Result
}

var intentPatterns = map[string][]*regexp.Regexp{
	"pricing": {
		regexp.MustCompile(`\b(price|cost|rate|fee|charge|how much|pricing|expensive|cheap)\b`),
		regexp.MustCompile(`\b(hourly|per hour|package|membership)\b`),
	},
	"availability": {
		regexp.MustCompile(`\b(available|availability|free|open|vacant)\b`),
		regexp.MustCompile(`\b(tomorrow|today|this week|next week|weekend|weekday)\b`),
		regexp.MustCompile(`\b(when can|what times)\b`),
	},
	"booking": {
		regexp.MustCompile(`\b(book|reserve|schedule|rent|hire)\b`),
		regexp.MustCompile(`\b(booking|reservation|appointment)\b`),
	},
	"general_info": {
		regexp.MustCompile(`\b(hours|location|address|information|about|services)\b`),
		regexp.MustCompile(`\b(hello|hi|help|info)\b`),
	},
	"payment_issue": {
		regexp.MustCompile(`\b(payment|pay|credit card|billing|charge|declined)\b`),
		regexp.MustCompile(`\b(card.*declined|payment.*failed|billing.*problem)\b`),
	},
	"complex_booking": {
		regexp.MustCompile(`\b(multiple days|recurring|weekly|daily|tournament|league)\b`),
		regexp.MustCompile(`\b(large group|corporate|team building|company event)\b`),
		regexp.MustCompile(`\b(catering|equipment|special setup)\b`),
	},
}

// Checked in order; the first match wins.
var serviceTypePatterns = []struct {
	service string
	pattern *regexp.Regexp
}{
	{"basketball", regexp.MustCompile(`\b(basketball|hoops|court|full court|half court)\b`)},
	{"birthday_party", regexp.MustCompile(`\b(birthday|party|celebration)\b`)},
	{"multi_sport", regexp.MustCompile(`\b(dodgeball|volleyball|soccer|multi.?sport)\b`)},
}

var (
	partySizePattern = regexp.MustCompile(`\b(\d+)\s*(?:kids|children|people|guests|players)\b`)
	durationPattern  = regexp.MustCompile(`\b(\d+)\s*(?:hours?|hrs?)\b`)
	yesPattern       = regexp.MustCompile(`\b(yes|yeah|yep|sure|okay|ok|correct|right|go ahead)\b`)
	noPattern        = regexp.MustCompile(`\b(no|nope|wrong|different|change)\b`)
)

// RuleClassifier scores the pattern tables above. Confidence is the
// match count normalized to [0,1] at three hits.
type RuleClassifier struct{}

var _ Classifier = (*RuleClassifier)(nil)

// NewRuleClassifier returns the pattern-table classifier.
func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{}
}

// Classify scores the utterance against every intent table and
// extracts entities. An empty utterance is the unknown intent.
func (c *RuleClassifier) Classify(text string) Result {
	if strings.TrimSpace(text) == "" {
		return Result{Intent: "unknown", Text: text}
	}
	lower := strings.ToLower(text)

	bestIntent, bestScore := "unknown", 0
	for intent, patterns := range intentPatterns {
		score := 0
		for _, p := range patterns {
			score += len(p.FindAllString(lower, -1))
		}
		if score > bestScore || (score == bestScore && score > 0 && intent < bestIntent) {
			bestIntent, bestScore = intent, score
		}
	}

	confidence := float64(bestScore) / 3.0
	if confidence > 1.0 {
		confidence = 1.0
	}

	return Result{
		Intent:     bestIntent,
		Entities:   extractEntities(lower),
		Confidence: confidence,
		Text:       text,
	}
}

func extractEntities(lower string) Entities {
	ent := Entities{}

	for _, sp := range serviceTypePatterns {
		if sp.pattern.MatchString(lower) {
			ent.ServiceType = sp.service
			break
		}
	}

	if m := partySizePattern.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			ent.PartySize = n
		}
	}
	if m := durationPattern.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			ent.DurationHrs = n
		}
	}

	if yesPattern.MatchString(lower) {
		v := true
		ent.Confirmation = &v
	} else if noPattern.MatchString(lower) {
		v := false
		ent.Confirmation = &v
	}

	return ent
}
