package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCallLifecycleCounts(t *testing.T) {
	m := New()

	m.CallStarted()
	m.CallStarted()
	m.CallEnded("completed", 120)
	m.CallEnded("escalated", 45)

	if got := testutil.ToFloat64(m.CallsStarted); got != 2 {
		t.Errorf("CallsStarted = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ActiveCalls); got != 0 {
		t.Errorf("ActiveCalls = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.CallsCompleted.WithLabelValues("completed")); got != 1 {
		t.Errorf("CallsCompleted[completed] = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CallsCompleted.WithLabelValues("escalated")); got != 1 {
		t.Errorf("CallsCompleted[escalated] = %v, want 1", got)
	}
}

func TestLabeledCounters(t *testing.T) {
	m := New()

	m.MenuSelected("1")
	m.MenuSelected("1")
	m.Escalated("payment_issue")
	m.EventReceived("call.answered")
	m.CommandFailed("speak")

	if got := testutil.ToFloat64(m.MenuSelections.WithLabelValues("1")); got != 2 {
		t.Errorf("MenuSelections[1] = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Escalations.WithLabelValues("payment_issue")); got != 1 {
		t.Errorf("Escalations[payment_issue] = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.WebhookEvents.WithLabelValues("call.answered")); got != 1 {
		t.Errorf("WebhookEvents[call.answered] = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CommandErrors.WithLabelValues("speak")); got != 1 {
		t.Errorf("CommandErrors[speak] = %v, want 1", got)
	}
}

func TestHandlerExposition(t *testing.T) {
	m := New()
	m.CallStarted()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "voicedesk_calls_started_total 1") {
		t.Errorf("exposition missing calls_started_total:\n%s", body)
	}
	if !strings.Contains(body, "voicedesk_active_calls 1") {
		t.Errorf("exposition missing active_calls:\n%s", body)
	}
}

func TestIsolatedRegistries(t *testing.T) {
	a, b := New(), New()
	a.CallStarted()

	if got := testutil.ToFloat64(b.CallsStarted); got != 0 {
		t.Errorf("second registry CallsStarted = %v, want 0", got)
	}
}
