package session

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Sudeeparyan/Laya-sub000/internal/claims"
	"github.com/Sudeeparyan/Laya-sub000/internal/transport"
)

type fakeSubmitter struct {
	mu       sync.Mutex
	requests []claims.Request
	script   []transport.Event
}

func (f *fakeSubmitter) Submit(_ context.Context, req claims.Request) <-chan transport.Event {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	script := f.script
	f.mu.Unlock()

	ch := make(chan transport.Event, len(script)+1)
	for _, ev := range script {
		ch <- ev
	}
	close(ch)
	return ch
}

func (f *fakeSubmitter) lastRequest(t *testing.T) claims.Request {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		t.Fatalf("no request was submitted")
	}
	return f.requests[len(f.requests)-1]
}

func newTestStore() (*Store, *fakeSubmitter) {
	sub := &fakeSubmitter{}
	return NewStore(sub, "", zerolog.Nop()), sub
}

func memberCtx() SendContext {
	return SendContext{MemberID: "MEM-1002"}
}

func TestSendRejectsUsageErrors(t *testing.T) {
	store, sub := newTestStore()
	sess := store.NewSession()

	if _, err := store.Send(context.Background(), sess.ID, "   ", memberCtx()); err != ErrEmptyMessage {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if _, err := store.Send(context.Background(), sess.ID, "claim", SendContext{}); err != ErrNoMember {
		t.Fatalf("expected ErrNoMember, got %v", err)
	}
	if _, err := store.Send(context.Background(), "nope", "claim", memberCtx()); err != ErrNoSession {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}

	sub.mu.Lock()
	submitted := len(sub.requests)
	sub.mu.Unlock()
	if submitted != 0 {
		t.Fatalf("usage errors must not reach the transport, got %d requests", submitted)
	}
	if got, _ := store.Session(sess.ID); len(got.Messages) != 0 {
		t.Fatalf("usage errors must not mutate the transcript, got %d messages", len(got.Messages))
	}
}

func TestSendAppendsUserMessageAndDerivesTitle(t *testing.T) {
	store, _ := newTestStore()
	sess := store.NewSession()

	flight, err := store.Send(context.Background(), sess.ID, "I paid €60 for a GP visit on Tuesday, can I claim it back?", memberCtx())
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if flight.SessionID != sess.ID {
		t.Fatalf("flight bound to wrong session %q", flight.SessionID)
	}

	got, _ := store.Session(sess.ID)
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" {
		t.Fatalf("expected one optimistic user message, got %#v", got.Messages)
	}
	if got.Title == defaultTitle || got.Title == "" {
		t.Fatalf("expected a derived title, got %q", got.Title)
	}
	if !store.InFlight(sess.ID) {
		t.Fatalf("session should be in flight after send")
	}
	if len(got.Trace) != 0 {
		t.Fatalf("live trace must reset on send, got %v", got.Trace)
	}
}

func TestSecondSendWhileInFlightIsRejected(t *testing.T) {
	store, _ := newTestStore()
	sess := store.NewSession()

	if _, err := store.Send(context.Background(), sess.ID, "first", memberCtx()); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := store.Send(context.Background(), sess.ID, "second", memberCtx()); err != ErrBusy {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
}

func TestProgressEventsStayWithBoundSession(t *testing.T) {
	store, _ := newTestStore()
	first := store.NewSession()

	flight, err := store.Send(context.Background(), first.ID, "GP visit claim", memberCtx())
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	// The user switches away mid-flight.
	second := store.NewSession()

	store.Apply(flight.SessionID, transport.Progress{Line: "Setup → Member loaded"})
	store.Apply(flight.SessionID, transport.Progress{Line: "Intake Agent → Form classified"})

	got, _ := store.Session(first.ID)
	if len(got.Trace) != 2 {
		t.Fatalf("expected 2 trace lines on the bound session, got %v", got.Trace)
	}
	other, _ := store.Session(second.ID)
	if len(other.Trace) != 0 || len(other.Messages) != 0 {
		t.Fatalf("in-flight events leaked into the active session: %#v", other)
	}
}

func TestTerminalResultMergesIntoSession(t *testing.T) {
	store, sub := newTestStore()
	sess := store.NewSession()

	flight, err := store.Send(context.Background(), sess.ID, "GP visit claim", memberCtx())
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	store.Apply(flight.SessionID, transport.Progress{Line: "partial line"})
	store.Apply(flight.SessionID, transport.Terminal{Result: claims.Result{
		Decision:      claims.DecisionApproved,
		Reasoning:     "Approved: GP visit #3 of 10.",
		AgentTrace:    []string{"Setup → Member loaded", "Decision Agent → Final: APPROVED"},
		PayoutAmount:  25,
		CorrelationID: "corr-42",
	}})

	got, _ := store.Session(sess.ID)
	if store.InFlight(sess.ID) {
		t.Fatalf("terminal result must clear the in-flight flag")
	}
	if len(got.Messages) != 2 || got.Messages[1].Role != "assistant" {
		t.Fatalf("expected assistant reply appended, got %#v", got.Messages)
	}
	if got.Messages[1].Result == nil || got.Messages[1].Result.Decision != claims.DecisionApproved {
		t.Fatalf("assistant message missing decision metadata: %#v", got.Messages[1])
	}
	if got.LastResult == nil || got.LastResult.PayoutAmount != 25 {
		t.Fatalf("last result not cached: %#v", got.LastResult)
	}
	if len(got.Trace) != 2 || got.Trace[0] != "Setup → Member loaded" {
		t.Fatalf("result trace must supersede the live buffer, got %v", got.Trace)
	}
	if got.CorrelationToken != "corr-42" {
		t.Fatalf("correlation token not adopted, got %q", got.CorrelationToken)
	}

	// The adopted token must ride along on the next request.
	if _, err := store.Send(context.Background(), sess.ID, "and my prescription?", memberCtx()); err != nil {
		t.Fatalf("second send: %v", err)
	}
	if req := sub.lastRequest(t); req.CorrelationID != "corr-42" {
		t.Fatalf("expected correlation token on follow-up request, got %q", req.CorrelationID)
	}
}

func TestFailureAppendsSyntheticAssistantMessage(t *testing.T) {
	store, _ := newTestStore()
	sess := store.NewSession()

	flight, err := store.Send(context.Background(), sess.ID, "GP visit claim", memberCtx())
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	store.Apply(flight.SessionID, transport.Failure{Err: context.DeadlineExceeded})

	got, _ := store.Session(sess.ID)
	if store.InFlight(sess.ID) {
		t.Fatalf("failure must clear the in-flight flag")
	}
	if len(got.Messages) != 2 {
		t.Fatalf("expected user + synthetic assistant message, got %d", len(got.Messages))
	}
	last := got.Messages[1]
	if last.Role != "assistant" || last.Result == nil || last.Result.Decision != claims.DecisionError {
		t.Fatalf("expected synthetic error message, got %#v", last)
	}

	// The session stays usable: the next send goes through.
	if _, err := store.Send(context.Background(), sess.ID, "retry please", memberCtx()); err != nil {
		t.Fatalf("send after failure: %v", err)
	}
}

func TestNewSessionReusesUntouchedActiveSession(t *testing.T) {
	store, _ := newTestStore()
	first := store.NewSession()
	second := store.NewSession()

	if first.ID != second.ID {
		t.Fatalf("an untouched active session should be reused")
	}
	if len(store.Sessions()) != 1 {
		t.Fatalf("expected a single session, got %d", len(store.Sessions()))
	}
}

func TestSelectAndDeleteSessions(t *testing.T) {
	store, _ := newTestStore()
	first := store.NewSession()
	if _, err := store.Send(context.Background(), first.ID, "claim one", memberCtx()); err != nil {
		t.Fatalf("send: %v", err)
	}
	store.Apply(first.ID, transport.Terminal{Result: claims.Result{Decision: claims.DecisionApproved}})
	second := store.NewSession()

	if err := store.SelectSession(first.ID); err != nil {
		t.Fatalf("select: %v", err)
	}
	active, ok := store.Active()
	if !ok || active.ID != first.ID {
		t.Fatalf("expected first session active, got %#v", active)
	}
	if err := store.SelectSession("missing"); err != ErrNoSession {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}

	if err := store.DeleteSession(first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := store.Active(); ok {
		t.Fatalf("deleting the active session must clear the active pointer")
	}
	if _, ok := store.Session(second.ID); !ok {
		t.Fatalf("unrelated session vanished")
	}
}

func TestEventsForDeletedSessionAreDropped(t *testing.T) {
	store, _ := newTestStore()
	sess := store.NewSession()
	flight, err := store.Send(context.Background(), sess.ID, "claim", memberCtx())
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := store.DeleteSession(sess.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// Must not panic or resurrect the session.
	store.Apply(flight.SessionID, transport.Progress{Line: "late line"})
	store.Apply(flight.SessionID, transport.Terminal{Result: claims.Result{Decision: claims.DecisionApproved}})
	if len(store.Sessions()) != 0 {
		t.Fatalf("late events must not resurrect a deleted session")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	sub := &fakeSubmitter{}
	store := NewStore(sub, path, zerolog.Nop())

	sess := store.NewSession()
	if _, err := store.Send(context.Background(), sess.ID, "GP visit claim", memberCtx()); err != nil {
		t.Fatalf("send: %v", err)
	}
	store.Apply(sess.ID, transport.Terminal{Result: claims.Result{
		Decision:      claims.DecisionApproved,
		Reasoning:     "ok",
		CorrelationID: "corr-9",
	}})

	restored := NewStore(sub, path, zerolog.Nop())
	sessions := restored.Sessions()
	if len(sessions) != 1 {
		t.Fatalf("expected 1 restored session, got %d", len(sessions))
	}
	got := sessions[0]
	if got.ID != sess.ID || len(got.Messages) != 2 || got.CorrelationToken != "corr-9" {
		t.Fatalf("snapshot did not round-trip: %#v", got)
	}
	if restored.InFlight(got.ID) {
		t.Fatalf("restored sessions must come back idle")
	}
	active, ok := restored.Active()
	if !ok || active.ID != sess.ID {
		t.Fatalf("active pointer not restored")
	}
}
