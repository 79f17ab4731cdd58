package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type capturedRequest struct {
	path    string
	payload map[string]any
}

func newCaptureServer(t *testing.T, status int) (*httptest.Server, *[]capturedRequest) {
	t.Helper()
	var captured []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		captured = append(captured, capturedRequest{path: r.URL.Path, payload: payload})
		w.WriteHeader(status)
		w.Write([]byte(`{"data":{}}`))
	}))
	return srv, &captured
}

func TestClient_GatherSpeak(t *testing.T) {
	srv, captured := newCaptureServer(t, http.StatusOK)
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	err := c.GatherSpeak(context.Background(), "cc-1", GatherSpeakRequest{
		Text:        "Press 1 for basketball.",
		ValidDigits: "120",
		MaxDigits:   1,
		Timeout:     10 * time.Second,
	}, &ClientState{State: StateTagMenu, Attempt: 1})
	if err != nil {
		t.Fatalf("GatherSpeak: %v", err)
	}

	if len(*captured) != 1 {
		t.Fatalf("captured %d requests", len(*captured))
	}
	req := (*captured)[0]
	if req.path != "/cc-1/actions/gather_using_speak" {
		t.Errorf("path = %q", req.path)
	}
	if req.payload["valid_digits"] != "120" {
		t.Errorf("valid_digits = %v", req.payload["valid_digits"])
	}
	if req.payload["timeout_millis"] != float64(10000) {
		t.Errorf("timeout_millis = %v", req.payload["timeout_millis"])
	}
	if req.payload["command_id"] == "" {
		t.Error("command_id missing")
	}

	token, _ := req.payload["client_state"].(string)
	if got := DecodeClientState(token); got.State != StateTagMenu || got.Attempt != 1 {
		t.Errorf("client_state decoded to %+v", got)
	}
}

func TestClient_AnswerWithoutState(t *testing.T) {
	srv, captured := newCaptureServer(t, http.StatusOK)
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	if err := c.Answer(context.Background(), "cc-2", nil); err != nil {
		t.Fatalf("Answer: %v", err)
	}

	req := (*captured)[0]
	if req.path != "/cc-2/actions/answer" {
		t.Errorf("path = %q", req.path)
	}
	if _, ok := req.payload["client_state"]; ok {
		t.Error("client_state attached with nil state")
	}
}

func TestClient_Transfer(t *testing.T) {
	srv, captured := newCaptureServer(t, http.StatusOK)
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	err := c.Transfer(context.Background(), "cc-3", TransferRequest{
		To:   "+15551234567",
		From: "+15559990000",
	}, nil)
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	req := (*captured)[0]
	if req.payload["to"] != "+15551234567" || req.payload["from"] != "+15559990000" {
		t.Errorf("transfer payload = %v", req.payload)
	}
}

func TestClient_ProviderError(t *testing.T) {
	srv, _ := newCaptureServer(t, http.StatusUnprocessableEntity)
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	err := c.Speak(context.Background(), "cc-4", SpeakRequest{Text: "hello"}, nil)
	if err == nil {
		t.Fatal("expected error on 422")
	}

	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("error type = %T", err)
	}
	if cmdErr.Action != "speak" || cmdErr.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("CommandError = %+v", cmdErr)
	}
}

func TestClient_Unreachable(t *testing.T) {
	c := NewClient("test-key", WithBaseURL("http://127.0.0.1:1"))
	if err := c.Hangup(context.Background(), "cc-5", nil); err == nil {
		t.Fatal("expected transport error")
	}
}
