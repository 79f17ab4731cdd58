// Package router turns normalized webhook events into state
// transitions and outbound call control commands. One invocation per
// webhook; the session store serializes events for the same call.
package router

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/kwhalen/voicedesk/internal/calllog"
	"github.com/kwhalen/voicedesk/internal/escalation"
	"github.com/kwhalen/voicedesk/internal/ivr"
	"github.com/kwhalen/voicedesk/internal/metrics"
	"github.com/kwhalen/voicedesk/internal/nlu"
	"github.com/kwhalen/voicedesk/internal/session"
	"github.com/kwhalen/voicedesk/internal/telephony"
)

const (
	closedMessage = "Thank you for calling our sports facility. We're currently closed. " +
		"Our hours are 9 AM to 9 PM daily. Please call back during business hours, " +
		"or visit our website to book online. Have a great day!"

	fallbackMessage = "I'm sorry, we're experiencing technical difficulties. " +
		"Please call back in a few minutes."

	// conversationMaxDigits bounds one conversational DTMF turn. The
	// gather also terminates on '#'.
	conversationMaxDigits = 10
)

// Hours is the business-hours window checked on call.answered.
type Hours struct {
	Start    int // opening hour, inclusive
	End      int // closing hour, exclusive
	Location *time.Location
}

// DefaultHours is 9 AM to 9 PM in the facility's local time.
func DefaultHours() Hours {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	return Hours{Start: 9, End: 21, Location: loc}
}

// Open reports whether t falls inside the window.
func (h Hours) Open(t time.Time) bool {
	if h.Location != nil {
		t = t.In(h.Location)
	}
	return t.Hour() >= h.Start && t.Hour() < h.End
}

// CallLogger persists the record of a finished call.
type CallLogger interface {
	LogCall(ctx context.Context, rec *calllog.Record) error
}

// Config holds the routing knobs.
type Config struct {
	// OperatorNumber is the transfer destination when a menu entry
	// carries none.
	OperatorNumber string
	Hours          Hours
}

// Deps are the collaborators the router drives.
type Deps struct {
	Commands   telephony.CommandClient
	Sessions   *session.Store
	Settings   *ivr.Source
	Classifier nlu.Classifier
	CallLog    CallLogger
	Metrics    *metrics.Metrics
	Logger     *slog.Logger

	// Now is overridable for business-hours tests. Nil means time.Now.
	Now func() time.Time
}

type handlerFunc func(ctx context.Context, ev telephony.Event)

// Router dispatches webhook events through an explicit handler table.
type Router struct {
	commands telephony.CommandClient
	sessions *session.Store
	settings *ivr.Source
	classify nlu.Classifier
	callLog  CallLogger
	metrics  *metrics.Metrics
	logger   *slog.Logger
	cfg      Config
	now      func() time.Time

	handlers map[telephony.EventType]handlerFunc
}

// New wires the router.
func New(cfg Config, deps Deps) *Router {
	if cfg.Hours.End == 0 {
		cfg.Hours = DefaultHours()
	}
	r := &Router{
		commands: deps.Commands,
		sessions: deps.Sessions,
		settings: deps.Settings,
		classify: deps.Classifier,
		callLog:  deps.CallLog,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		cfg:      cfg,
		now:      deps.Now,
	}
	if r.now == nil {
		r.now = time.Now
	}
	r.handlers = map[telephony.EventType]handlerFunc{
		telephony.EventInitiated:    r.onInitiated,
		telephony.EventAnswered:     r.onAnswered,
		telephony.EventGatherEnded:  r.onGatherEnded,
		telephony.EventHangup:       r.onHangup,
		telephony.EventSpeakStarted: r.onSpeakStarted,
		telephony.EventSpeakEnded:   r.onSpeakEnded,
		telephony.EventDTMF:         r.onDTMF,
	}
	return r
}

// Handle processes one event. It never returns an error: every
// internal failure is logged and the webhook acknowledged so the
// provider does not retry into a broken flow.
func (r *Router) Handle(ctx context.Context, ev telephony.Event) {
	r.metrics.EventReceived(string(ev.Type))

	h, ok := r.handlers[ev.Type]
	if !ok {
		r.logger.Info("unhandled event type",
			slog.String("event_type", string(ev.Type)),
			slog.String("call_id", ev.CallID))
		return
	}
	h(ctx, ev)
}

func (r *Router) onInitiated(ctx context.Context, ev telephony.Event) {
	seed := session.Seed{
		CallSessionID: ev.CallSessionID,
		From:          ev.From,
		To:            ev.To,
	}
	r.sessions.GetOrCreate(ev.CallID, seed, func(s *session.CallSession, created bool) {
		if !created {
			// Duplicate initiated event; the first one answered.
			return
		}
		s.Transition(session.StateInitiated)
		r.metrics.CallStarted()
		r.logger.Info("call initiated",
			slog.String("call_id", ev.CallID),
			slog.String("from", ev.From))

		if err := r.commands.Answer(ctx, ev.CallID, nil); err != nil {
			r.commandFailed(ev.CallID, "answer", err)
		}
	})
}

func (r *Router) onAnswered(ctx context.Context, ev telephony.Event) {
	err := r.sessions.Update(ev.CallID, func(s *session.CallSession) {
		// Answered only ever follows our own answer command, so any
		// state past Initiated marks this delivery as a duplicate or
		// out of order. Menu progress and handoffs must survive it.
		if s.State != session.StateNew && s.State != session.StateInitiated {
			r.logger.Warn("stale answered event",
				slog.String("call_id", ev.CallID),
				slog.String("state", string(s.State)))
			return
		}
		if ev.CallSessionID != "" {
			s.CallSessionID = ev.CallSessionID
		}
		s.Transition(session.StateAnswered)

		if !r.cfg.Hours.Open(r.now()) {
			r.logger.Info("call outside business hours",
				slog.String("call_id", ev.CallID))
			s.AppendTranscript("system", closedMessage)
			s.Transition(session.StateTerminated)
			err := r.commands.Speak(ctx, ev.CallID, telephony.SpeakRequest{Text: closedMessage},
				&telephony.ClientState{State: telephony.StateTagClosed})
			if err != nil {
				r.commandFailed(ev.CallID, "speak", err)
				if err := r.commands.Hangup(ctx, ev.CallID, nil); err != nil {
					r.commandFailed(ev.CallID, "hangup", err)
				}
			}
			return
		}

		menu := ivr.NewMenu(r.settings.Settings(ctx))
		s.Transition(session.StateMenu)
		s.MenuAttempts = 0
		r.issueMenuGather(ctx, s, menu, menu.PromptText(), 1)
	})
	if errors.Is(err, session.ErrNotFound) {
		// No session means the call already hung up or was never
		// initiated. Creating one here would leave an entry no
		// remaining event removes.
		r.logger.Warn("answered for unknown call",
			slog.String("call_id", ev.CallID))
	}
}

func (r *Router) onGatherEnded(ctx context.Context, ev telephony.Event) {
	cs := telephony.DecodeClientState(ev.ClientState)

	err := r.sessions.Update(ev.CallID, func(s *session.CallSession) {
		// A gather that lands after the call already terminated or
		// left for a human is stale; acting on it would re-prompt or
		// double-escalate.
		if s.Terminated() || s.State == session.StateTransferring {
			return
		}
		// A corrupt or missing token decodes to the zero state; the
		// session then says where the call is.
		if cs.State == telephony.StateTagConversation || s.State == session.StateConversation {
			r.handleConversationTurn(ctx, s, ev, cs)
			return
		}
		r.handleMenuGather(ctx, s, ev)
	})
	if errors.Is(err, session.ErrNotFound) {
		r.logger.Warn("gather ended for unknown call",
			slog.String("call_id", ev.CallID))
	}
}

func (r *Router) handleMenuGather(ctx context.Context, s *session.CallSession, ev telephony.Event) {
	menu := ivr.NewMenu(r.settings.Settings(ctx))
	opt, sel := menu.Select(ev.Digits)

	switch sel {
	case ivr.SelectionInvalid:
		s.MenuAttempts++
		if s.MenuAttempts >= ivr.MaxMenuAttempts {
			r.escalate(ctx, s, escalation.ReasonMenuAttempts, escalation.Entities{}, "")
			return
		}
		prompt := menu.ReplayText()
		if ev.Digits != "" {
			s.AppendTranscript("caller", ev.Digits)
			prompt = menu.InvalidText()
		}
		r.issueMenuGather(ctx, s, menu, prompt, s.MenuAttempts+1)

	case ivr.SelectionTransfer:
		s.AppendTranscript("caller", ev.Digits)
		s.MenuSelection = opt.KeyPress
		r.metrics.MenuSelected(opt.KeyPress)
		dest := opt.TransferNumber
		if dest == "" {
			dest = r.cfg.OperatorNumber
		}
		greeting := opt.DepartmentGreeting
		if greeting == "" {
			greeting = escalation.BuildMessage(escalation.ReasonUserRequested, escalation.Entities{})
		}
		r.metrics.Escalated(string(escalation.ReasonUserRequested))
		s.Transition(session.StateTransferring)
		r.speakThenTransfer(ctx, s, greeting, dest)

	case ivr.SelectionConversation:
		s.AppendTranscript("caller", ev.Digits)
		s.MenuSelection = opt.KeyPress
		s.Intent = opt.IntentType
		s.Context.Intent = opt.IntentType
		r.metrics.MenuSelected(opt.KeyPress)
		s.Transition(session.StateConversation)
		s.AppendTranscript("system", opt.DepartmentGreeting)

		err := r.commands.GatherSpeak(ctx, s.CallID, telephony.GatherSpeakRequest{
			Text:      opt.DepartmentGreeting,
			MaxDigits: conversationMaxDigits,
			Timeout:   ivr.GatherTimeout,
		}, &telephony.ClientState{
			State:  telephony.StateTagConversation,
			Intent: opt.IntentType,
		})
		if err != nil {
			r.commandFailed(s.CallID, "gather_using_speak", err)
			r.speakFallback(ctx, s.CallID)
		}
	}
}

// handleConversationTurn processes the single automated turn after a
// menu selection. The flow always ends in a handoff; the classifier
// only decides which handoff message the caller hears.
func (r *Router) handleConversationTurn(ctx context.Context, s *session.CallSession, ev telephony.Event, cs telephony.ClientState) {
	if ev.Digits != "" {
		s.AppendTranscript("caller", ev.Digits)
	}

	intent := cs.Intent
	if intent == "" {
		intent = s.Intent
	}

	ent := escalation.Entities{Text: ev.Digits}
	if r.classify != nil && ev.Digits != "" {
		res := r.classify.Classify(ev.Digits)
		if res.Intent != "unknown" {
			intent = res.Intent
			s.Context.Intent = res.Intent
		}
		ent.PartySize = res.Entities.PartySize
	}

	reason, ok := escalation.Decide(intent, ent, escalation.Context{
		BookingErrors: s.Context.BookingErrors,
	})
	if !ok {
		reason = escalation.ReasonHandoff
	}
	r.escalate(ctx, s, reason, ent, "")
}

func (r *Router) onSpeakStarted(_ context.Context, ev telephony.Event) {
	r.logger.Debug("speak started", slog.String("call_id", ev.CallID))
}

// onSpeakEnded runs the continuations parked in the client state: the
// transfer after an escalation announcement, and the hangup after the
// closed message.
func (r *Router) onSpeakEnded(ctx context.Context, ev telephony.Event) {
	cs := telephony.DecodeClientState(ev.ClientState)

	switch cs.State {
	case telephony.StateTagTransferHold:
		dest := cs.TransferTo
		if dest == "" {
			dest = r.cfg.OperatorNumber
		}
		var from string
		_ = r.sessions.Update(ev.CallID, func(s *session.CallSession) {
			from = s.From
		})
		// The session stays in Transferring after the command goes
		// out; the provider's hangup event closes it, and the hangup
		// handler maps Transferring to the escalated outcome.
		err := r.commands.Transfer(ctx, ev.CallID, telephony.TransferRequest{
			To:   dest,
			From: from,
		}, nil)
		if err != nil {
			r.commandFailed(ev.CallID, "transfer", err)
		}

	case telephony.StateTagClosed:
		if err := r.commands.Hangup(ctx, ev.CallID, nil); err != nil {
			r.commandFailed(ev.CallID, "hangup", err)
		}
	}
}

func (r *Router) onDTMF(_ context.Context, ev telephony.Event) {
	r.logger.Debug("dtmf received",
		slog.String("call_id", ev.CallID),
		slog.String("digits", ev.Digits))
}

func (r *Router) onHangup(ctx context.Context, ev telephony.Event) {
	sess := r.sessions.Remove(ev.CallID)
	if sess == nil {
		// Duplicate hangup or a call we never tracked.
		r.logger.Debug("hangup for unknown call", slog.String("call_id", ev.CallID))
		return
	}

	outcome := outcomeFor(sess)
	ended := r.now()
	duration := ended.Sub(sess.StartTime)

	r.metrics.CallEnded(outcome, duration.Seconds())
	r.logger.Info("call ended",
		slog.String("call_id", ev.CallID),
		slog.String("outcome", outcome),
		slog.String("hangup_cause", ev.HangupCause),
		slog.Duration("duration", duration))

	rec := buildRecord(sess, ended, outcome)
	if err := r.callLog.LogCall(ctx, rec); err != nil {
		r.logger.Error("failed to log call",
			slog.String("call_id", ev.CallID),
			slog.String("error", err.Error()))
	}
}

// outcomeFor derives the logged outcome from where the call ended up.
// Only the closed-hours path marks the session Terminated before the
// hangup arrives.
func outcomeFor(s *session.CallSession) string {
	switch s.State {
	case session.StateTerminated:
		return calllog.OutcomeClosed
	case session.StateTransferring:
		return calllog.OutcomeEscalated
	case session.StateConversation:
		return calllog.OutcomeCompleted
	default:
		return calllog.OutcomeAbandoned
	}
}

func buildRecord(s *session.CallSession, ended time.Time, outcome string) *calllog.Record {
	lines := make([]calllog.TranscriptLine, 0, len(s.Transcript))
	for _, t := range s.Transcript {
		lines = append(lines, calllog.TranscriptLine{
			Speaker: t.Speaker,
			Text:    t.Text,
			At:      t.At,
		})
	}

	callCtx := map[string]string{}
	if s.Context.BookingErrors > 0 {
		callCtx["booking_errors"] = strconv.Itoa(s.Context.BookingErrors)
	}
	if s.Context.Intent != "" {
		callCtx["intent"] = s.Context.Intent
	}
	for k, v := range s.Context.Slots {
		callCtx[k] = v
	}

	return &calllog.Record{
		CallID:        s.CallID,
		From:          s.From,
		To:            s.To,
		StartTime:     s.StartTime,
		EndTime:       ended,
		Duration:      int64(ended.Sub(s.StartTime).Seconds()),
		MenuSelection: s.MenuSelection,
		Intent:        s.Intent,
		Outcome:       outcome,
		Transcript:    lines,
		Context:       callCtx,
	}
}

// issueMenuGather sends the menu prompt, via audio when configured,
// and falls back to a plain speak if the gather command itself fails.
func (r *Router) issueMenuGather(ctx context.Context, s *session.CallSession, menu *ivr.Menu, prompt string, attempt int) {
	state := &telephony.ClientState{
		State:   telephony.StateTagMenu,
		Attempt: attempt,
	}

	var err error
	if attempt == 1 && menu.UseAudio() {
		err = r.commands.GatherAudio(ctx, s.CallID, telephony.GatherAudioRequest{
			AudioURL:    menu.Settings().GreetingAudioURL,
			ValidDigits: menu.ValidDigits(),
			MaxDigits:   ivr.MaxGatherDigits,
			Timeout:     ivr.GatherTimeout,
		}, state)
		if err != nil {
			r.commandFailed(s.CallID, "gather_using_audio", err)
		}
	} else {
		s.AppendTranscript("system", prompt)
		err = r.commands.GatherSpeak(ctx, s.CallID, telephony.GatherSpeakRequest{
			Text:        prompt,
			ValidDigits: menu.ValidDigits(),
			MaxDigits:   ivr.MaxGatherDigits,
			Timeout:     ivr.GatherTimeout,
		}, state)
		if err != nil {
			r.commandFailed(s.CallID, "gather_using_speak", err)
		}
	}
	if err != nil {
		r.speakFallback(ctx, s.CallID)
	}
}

// escalate announces the handoff and parks the transfer in the client
// state for the speak.ended continuation.
func (r *Router) escalate(ctx context.Context, s *session.CallSession, reason escalation.Reason, ent escalation.Entities, dest string) {
	if dest == "" {
		dest = r.cfg.OperatorNumber
	}
	r.metrics.Escalated(string(reason))
	r.logger.Info("escalating call",
		slog.String("call_id", s.CallID),
		slog.String("reason", string(reason)))

	s.Transition(session.StateTransferring)
	r.speakThenTransfer(ctx, s, escalation.BuildMessage(reason, ent), dest)
}

// speakThenTransfer announces the transfer and lets the speak.ended
// webhook complete it. If the announcement cannot be issued the
// transfer happens immediately so the caller is not stranded.
func (r *Router) speakThenTransfer(ctx context.Context, s *session.CallSession, message, dest string) {
	s.AppendTranscript("system", message)
	err := r.commands.Speak(ctx, s.CallID, telephony.SpeakRequest{Text: message},
		&telephony.ClientState{
			State:      telephony.StateTagTransferHold,
			TransferTo: dest,
		})
	if err == nil {
		return
	}
	r.commandFailed(s.CallID, "speak", err)

	err = r.commands.Transfer(ctx, s.CallID, telephony.TransferRequest{
		To:   dest,
		From: s.From,
	}, nil)
	if err != nil {
		r.commandFailed(s.CallID, "transfer", err)
	}
}

func (r *Router) speakFallback(ctx context.Context, callID string) {
	err := r.commands.Speak(ctx, callID, telephony.SpeakRequest{Text: fallbackMessage}, nil)
	if err != nil {
		r.commandFailed(callID, "speak", err)
	}
}

func (r *Router) commandFailed(callID, action string, err error) {
	r.metrics.CommandFailed(action)
	r.logger.Error("call control command failed",
		slog.String("call_id", callID),
		slog.String("action", action),
		slog.String("error", err.Error()))
}
