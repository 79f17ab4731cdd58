package telephony

import (
	"testing"
)

func TestParseWebhook(t *testing.T) {
	body := []byte(`{
		"data": {
			"event_type": "call.gather.ended",
			"occurred_at": "2025-06-01T14:30:00Z",
			"payload": {
				"call_control_id": "cc-abc",
				"call_session_id": "cs-def",
				"from": "+15550001111",
				"to": "+15552223333",
				"digits": "1",
				"client_state": "eyJzdGF0ZSI6Im1lbnUiLCJhdHRlbXB0IjoxfQ=="
			}
		}
	}`)

	ev, err := ParseWebhook(body)
	if err != nil {
		t.Fatalf("ParseWebhook: %v", err)
	}
	if ev.Type != EventGatherEnded {
		t.Errorf("Type = %q", ev.Type)
	}
	if ev.CallID != "cc-abc" || ev.CallSessionID != "cs-def" {
		t.Errorf("ids = %q / %q", ev.CallID, ev.CallSessionID)
	}
	if ev.Digits != "1" {
		t.Errorf("Digits = %q", ev.Digits)
	}
	if cs := DecodeClientState(ev.ClientState); cs.State != StateTagMenu || cs.Attempt != 1 {
		t.Errorf("client state = %+v", cs)
	}
}

func TestParseWebhook_SingleDigitField(t *testing.T) {
	body := []byte(`{"data":{"event_type":"call.dtmf.received","payload":{"call_control_id":"cc-1","digit":"5"}}}`)
	ev, err := ParseWebhook(body)
	if err != nil {
		t.Fatalf("ParseWebhook: %v", err)
	}
	if ev.Digits != "5" {
		t.Errorf("Digits = %q, want single digit promoted", ev.Digits)
	}
}

func TestParseWebhook_MissingFields(t *testing.T) {
	ev, err := ParseWebhook([]byte(`{"data":{"event_type":"call.hangup","payload":{}}}`))
	if err != nil {
		t.Fatalf("ParseWebhook: %v", err)
	}
	if ev.Type != EventHangup || ev.CallID != "" || ev.Digits != "" {
		t.Errorf("event = %+v", ev)
	}
}

func TestParseWebhook_Malformed(t *testing.T) {
	if _, err := ParseWebhook([]byte(`{"data":`)); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}
