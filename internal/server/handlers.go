package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/kwhalen/voicedesk/internal/calllog"
	"github.com/kwhalen/voicedesk/internal/telephony"
)

const maxWebhookBody = 1 << 20

// handleWebhook receives a provider event, dispatches it, and always
// acknowledges with 200 unless the body cannot be parsed at all. A
// non-200 would make the provider retry events we have already acted
// on.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}

	ev, err := telephony.ParseWebhook(body)
	if err != nil {
		s.logger.Warn("malformed webhook", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	AddLogField(r.Context(), "call_id", ev.CallID)
	AddLogField(r.Context(), "event_type", string(ev.Type))

	s.deps.Events.Handle(r.Context(), ev)

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"service":      "voicedesk",
		"active_calls": s.deps.Sessions.Len(),
	})
}

func (s *Server) handleActiveCalls(w http.ResponseWriter, _ *http.Request) {
	snapshot := s.deps.Sessions.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(snapshot),
		"calls": snapshot,
	})
}

func (s *Server) handleListCalls(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := calllog.ListOptions{
		Intent:  q.Get("intent"),
		Outcome: q.Get("outcome"),
		Limit:   intParam(q.Get("limit")),
		Offset:  intParam(q.Get("offset")),
	}

	records, err := s.deps.CallLog.ListCalls(r.Context(), opts)
	if err != nil {
		s.logger.Error("list calls failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "call log unavailable"})
		return
	}
	if records == nil {
		records = []*calllog.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(records),
		"calls": records,
	})
}

func (s *Server) handleCallStats(w http.ResponseWriter, r *http.Request) {
	days := intParam(r.URL.Query().Get("days"))
	if days == 0 {
		days = 30
	}

	stats, err := s.deps.CallLog.GetStats(r.Context(), days)
	if err != nil {
		s.logger.Error("call stats failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "call log unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleIVRRefresh drops the cached menu so the next call fetches
// fresh dashboard settings.
func (s *Server) handleIVRRefresh(w http.ResponseWriter, _ *http.Request) {
	s.deps.Settings.Invalidate()
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func intParam(v string) int {
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
