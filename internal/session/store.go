// Package session owns every mutable piece of client state: the ordered
// chat sessions, their transcripts, the active-session pointer, and the
// per-session in-flight guard. All mutation goes through Store methods, so
// a streaming progress callback and a session switch can never race.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Sudeeparyan/Laya-sub000/internal/claims"
	"github.com/Sudeeparyan/Laya-sub000/internal/transport"
)

// Usage errors, rejected synchronously before any network activity.
var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrNoMember     = errors.New("no member selected")
	ErrNoSession    = errors.New("no such session")
	ErrBusy         = errors.New("a request is already in flight for this session")
)

const defaultTitle = "New chat"

// Submitter is the transport dependency; satisfied by *transport.Client.
type Submitter interface {
	Submit(ctx context.Context, req claims.Request) <-chan transport.Event
}

// Message is one transcript entry. The transcript is append-only.
type Message struct {
	ID        string         `json:"id"`
	Role      string         `json:"role"` // "user" or "assistant"
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Result    *claims.Result `json:"result,omitempty"`
}

// Session is one conversation with the adjudication service.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	Messages  []Message `json:"messages"`
	// CorrelationToken is the backend-issued session_id enabling multi-turn
	// memory. Once set it is reused for every request in this session.
	CorrelationToken string         `json:"correlation_token,omitempty"`
	LastResult       *claims.Result `json:"last_result,omitempty"`
	// Trace is the live trace buffer while a request is in flight; after the
	// terminal result it holds that result's authoritative trace.
	Trace []string `json:"trace,omitempty"`
}

// Flight binds an in-flight request to the session it was submitted for.
// Events must be applied via Store.Apply with this SessionID, never with
// "whichever session is currently active".
type Flight struct {
	SessionID string
	Events    <-chan transport.Event
}

// Store holds the ordered session list. Safe for concurrent use.
type Store struct {
	mu        sync.Mutex
	submitter Submitter
	log       zerolog.Logger

	sessions []*Session
	activeID string
	inflight map[string]bool

	snapshotPath string
}

// NewStore builds a session store. snapshotPath may be empty to disable
// persistence.
func NewStore(submitter Submitter, snapshotPath string, logger zerolog.Logger) *Store {
	s := &Store{
		submitter:    submitter,
		log:          logger,
		inflight:     map[string]bool{},
		snapshotPath: snapshotPath,
	}
	s.restoreSnapshot()
	return s
}

// NewSession persists the current state and activates a fresh session with
// an empty transcript, no correlation token, and no cached result.
func (s *Store) NewSession() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Reuse an untouched active session instead of stacking empty ones.
	if cur := s.activeLocked(); cur != nil && len(cur.Messages) == 0 && !s.inflight[cur.ID] {
		return cur.clone()
	}

	sess := &Session{
		ID:        uuid.NewString(),
		Title:     defaultTitle,
		CreatedAt: time.Now(),
	}
	s.sessions = append(s.sessions, sess)
	s.activeID = sess.ID
	s.saveSnapshotLocked()
	return sess.clone()
}

// SelectSession persists the current state and activates the target
// session, restoring its transcript and correlation token.
func (s *Store) SelectSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findLocked(id) == nil {
		return ErrNoSession
	}
	s.activeID = id
	s.saveSnapshotLocked()
	return nil
}

// DeleteSession removes a session. Deleting the active session clears the
// active pointer.
func (s *Store) DeleteSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, sess := range s.sessions {
		if sess.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrNoSession
	}
	s.sessions = append(s.sessions[:idx], s.sessions[idx+1:]...)
	delete(s.inflight, id)
	if s.activeID == id {
		s.activeID = ""
	}
	s.saveSnapshotLocked()
	return nil
}

// SendContext carries the request fields that accompany the message text.
type SendContext struct {
	MemberID     string
	UserContext  map[string]any
	ExtractedDoc *claims.ExtractedDocument
}

// Send validates and submits one claim request for the given session. The
// user message is appended optimistically, the session is marked in flight,
// and its live trace buffer is reset. Events from the returned Flight must
// be fed back through Apply.
//
// Exactly one request may be in flight per session; a second Send returns
// ErrBusy. Blank text or a missing member is a usage error and mutates
// nothing.
func (s *Store) Send(ctx context.Context, sessionID, text string, sendCtx SendContext) (*Flight, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if strings.TrimSpace(sendCtx.MemberID) == "" {
		return nil, ErrNoMember
	}

	s.mu.Lock()
	sess := s.findLocked(sessionID)
	if sess == nil {
		s.mu.Unlock()
		return nil, ErrNoSession
	}
	if s.inflight[sessionID] {
		s.mu.Unlock()
		return nil, ErrBusy
	}

	sess.Messages = append(sess.Messages, Message{
		ID:        uuid.NewString(),
		Role:      "user",
		Content:   text,
		Timestamp: time.Now(),
	})
	if sess.Title == defaultTitle || sess.Title == "" {
		sess.Title = deriveTitle(text)
	}
	sess.Trace = nil
	s.inflight[sessionID] = true

	req := claims.Request{
		Message:       text,
		MemberID:      sendCtx.MemberID,
		UserContext:   sendCtx.UserContext,
		ExtractedDoc:  sendCtx.ExtractedDoc,
		CorrelationID: sess.CorrelationToken,
	}
	s.mu.Unlock()

	s.log.Info().Str("session", sessionID).Str("member", sendCtx.MemberID).Msg("submitting claim request")
	return &Flight{SessionID: sessionID, Events: s.submitter.Submit(ctx, req)}, nil
}

// Apply folds one transport event into the session the flight was bound to.
// Events for a deleted session are dropped.
func (s *Store) Apply(sessionID string, ev transport.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.findLocked(sessionID)
	if sess == nil {
		s.log.Debug().Str("session", sessionID).Msg("dropping event for removed session")
		return
	}

	switch ev := ev.(type) {
	case transport.Progress:
		if s.inflight[sessionID] {
			sess.Trace = append(sess.Trace, ev.Line)
		}

	case transport.StatusUpdate:
		// Display-only; no session state to update.

	case transport.Terminal:
		res := ev.Result
		sess.Messages = append(sess.Messages, Message{
			ID:        uuid.NewString(),
			Role:      "assistant",
			Content:   res.Reasoning,
			Timestamp: time.Now(),
			Result:    &res,
		})
		sess.LastResult = &res
		if len(res.AgentTrace) > 0 {
			sess.Trace = append([]string(nil), res.AgentTrace...)
		}
		if res.CorrelationID != "" {
			sess.CorrelationToken = res.CorrelationID
		}
		s.inflight[sessionID] = false
		s.saveSnapshotLocked()

	case transport.Failure:
		res := &claims.Result{
			Decision:  claims.DecisionError,
			Reasoning: "Sorry, your claim could not be processed: " + ev.Err.Error(),
		}
		sess.Messages = append(sess.Messages, Message{
			ID:        uuid.NewString(),
			Role:      "assistant",
			Content:   res.Reasoning,
			Timestamp: time.Now(),
			Result:    res,
		})
		s.inflight[sessionID] = false
		s.log.Error().Err(ev.Err).Str("session", sessionID).Msg("claim request failed")
		s.saveSnapshotLocked()
	}
}

// Active returns a copy of the active session, if any.
func (s *Store) Active() (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.activeLocked()
	if sess == nil {
		return nil, false
	}
	return sess.clone(), true
}

// Session returns a copy of the identified session.
func (s *Store) Session(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.findLocked(id)
	if sess == nil {
		return nil, false
	}
	return sess.clone(), true
}

// Sessions returns copies of every session in creation order.
func (s *Store) Sessions() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Session, len(s.sessions))
	for i, sess := range s.sessions {
		out[i] = sess.clone()
	}
	return out
}

// InFlight reports whether the session has an unresolved request.
func (s *Store) InFlight(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight[id]
}

func (s *Store) activeLocked() *Session {
	if s.activeID == "" {
		return nil
	}
	return s.findLocked(s.activeID)
}

func (s *Store) findLocked(id string) *Session {
	for _, sess := range s.sessions {
		if sess.ID == id {
			return sess
		}
	}
	return nil
}

func (sess *Session) clone() *Session {
	cp := *sess
	cp.Messages = append([]Message(nil), sess.Messages...)
	cp.Trace = append([]string(nil), sess.Trace...)
	if sess.LastResult != nil {
		res := *sess.LastResult
		cp.LastResult = &res
	}
	return &cp
}

func deriveTitle(text string) string {
	title := strings.Join(strings.Fields(text), " ")
	const max = 42
	if len(title) > max {
		title = strings.TrimSpace(title[:max]) + "…"
	}
	return title
}
