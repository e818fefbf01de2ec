// Package conversation ties capture, summarization, Q&A, and saving
// together around the per-user session. All session mutation funnels
// through the Engine, which holds the user's lock for the whole
// operation so concurrent requests for one user serialize.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/engram/internal/content"
	"github.com/kalambet/engram/internal/ledger"
	"github.com/kalambet/engram/internal/llm"
	"github.com/kalambet/engram/internal/routing"
	"github.com/kalambet/engram/internal/session"
)

// ErrNoSession is returned by operations that need an active session
// when the user has none.
var ErrNoSession = errors.New("no active session")

// Extractor turns a source reference into a content unit.
type Extractor interface {
	Extract(ctx context.Context, sourceRef string) (*content.Unit, error)
}

// Completer produces a model completion for a prompt.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message) (string, error)
}

// Router persists a session as a routed knowledge item.
type Router interface {
	Route(ctx context.Context, sess *session.Session, opts routing.Options) (*ledger.Item, error)
}

// Engine runs the capture/ask/save loop for every user.
type Engine struct {
	extractor Extractor
	completer Completer
	prompter  *llm.Prompter
	sessions  *session.Store
	router    Router
	logger    *slog.Logger
}

// New wires an Engine. prompter may be nil, in which case defaults
// apply.
func New(ex Extractor, c Completer, p *llm.Prompter, store *session.Store, r Router) *Engine {
	if p == nil {
		p = llm.NewPrompter(0)
	}
	return &Engine{
		extractor: ex,
		completer: c,
		prompter:  p,
		sessions:  store,
		router:    r,
		logger:    slog.Default(),
	}
}

// CaptureResult reports the outcome of an ingest.
type CaptureResult struct {
	Title           string `json:"title"`
	SourceKind      string `json:"source_kind"`
	Summary         string `json:"summary"`
	ReplacedSession bool   `json:"replaced_session"`
}

// Capture extracts the source, summarizes it, and starts a fresh
// session for the user. A prior session is replaced outright; its
// unsaved conversation is gone. instruction optionally directs the
// summary ("focus on the methodology"). The user's lock is held across
// the gateway calls so overlapping captures from one user run in
// order; without that, a slow earlier capture could land after and
// clobber a later one.
func (e *Engine) Capture(ctx context.Context, userID, sourceRef, instruction string) (*CaptureResult, error) {
	unlock := e.sessions.Lock(userID)
	defer unlock()

	unit, err := e.extractor.Extract(ctx, sourceRef)
	if err != nil {
		return nil, err
	}

	summary, err := e.completer.Complete(ctx, e.prompter.Summary(unit, instruction))
	if err != nil {
		return nil, err
	}

	replaced := e.sessions.Get(userID) != nil
	e.sessions.Put(session.New(userID, unit, summary))

	e.logger.Info("content captured",
		"user", userID, "source", string(unit.SourceKind),
		"title", unit.Title, "replaced", replaced)

	return &CaptureResult{
		Title:           unit.Title,
		SourceKind:      string(unit.SourceKind),
		Summary:         summary,
		ReplacedSession: replaced,
	}, nil
}

// Ask answers a question against the user's active session. The
// question and answer are appended to the history together; a model
// failure leaves the session exactly as it was.
func (e *Engine) Ask(ctx context.Context, userID, question string) (string, error) {
	unlock := e.sessions.Lock(userID)
	defer unlock()

	sess := e.sessions.Get(userID)
	if sess == nil {
		return "", ErrNoSession
	}

	var history []llm.Message
	for _, t := range sess.History[1:] {
		history = append(history, llm.Message{Role: t.Role, Content: t.Text})
	}

	answer, err := e.completer.Complete(ctx,
		e.prompter.Conversation(sess.Unit, sess.Summary(), history, question))
	if err != nil {
		return "", err
	}

	sess.Append("user", question)
	sess.Append("assistant", answer)
	return answer, nil
}

// Status is a read-only projection of a session.
type Status struct {
	Title        string    `json:"title"`
	SourceKind   string    `json:"source_kind"`
	SourceRef    string    `json:"source_ref"`
	Summary      string    `json:"summary"`
	QATurns      int       `json:"qa_turns"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// Status reports the user's active session, or ErrNoSession.
func (e *Engine) Status(ctx context.Context, userID string) (*Status, error) {
	unlock := e.sessions.Lock(userID)
	defer unlock()

	sess := e.sessions.Get(userID)
	if sess == nil {
		return nil, ErrNoSession
	}
	return &Status{
		Title:        sess.Unit.Title,
		SourceKind:   string(sess.Unit.SourceKind),
		SourceRef:    sess.Unit.SourceRef,
		Summary:      sess.Summary(),
		QATurns:      sess.QATurns(),
		CreatedAt:    sess.CreatedAt,
		LastActiveAt: sess.LastActiveAt,
	}, nil
}

// Clear discards the user's session. Clearing when none exists is not
// an error; the result reports whether one was dropped.
func (e *Engine) Clear(ctx context.Context, userID string) bool {
	unlock := e.sessions.Lock(userID)
	defer unlock()
	return e.sessions.Clear(userID)
}

// Save routes the active session into the vault and, only on success,
// clears it. Any failure along the way leaves the session intact for
// a retry.
func (e *Engine) Save(ctx context.Context, userID string, opts routing.Options) (*ledger.Item, error) {
	unlock := e.sessions.Lock(userID)
	defer unlock()

	sess := e.sessions.Get(userID)
	if sess == nil {
		return nil, ErrNoSession
	}

	item, err := e.router.Route(ctx, sess, opts)
	if err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}

	e.sessions.Clear(userID)
	return item, nil
}
