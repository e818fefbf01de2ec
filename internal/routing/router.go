// Package routing decides, at save time, where captured content goes:
// into a project, into a knowledge area backed by an output commitment,
// or provisionally into the inbox with an expiry deadline. Routing is
// total: every save produces exactly one item, categorized or
// provisional, never neither.
package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/engram/internal/ledger"
	"github.com/kalambet/engram/internal/session"
	"github.com/kalambet/engram/internal/vault"
)

// SettingDefaultProject is the ledger setting naming the project that
// receives saves when no destination is given explicitly. Routing never
// falls back to the last-used project implicitly; only this setting or
// a per-save argument selects project routing.
const SettingDefaultProject = "routing.default_project"

// ErrBadDestination marks a destination the user named but that cannot
// accept the save (unknown project/area, or an area with no open
// commitment). These are user errors, not persistence failures.
var ErrBadDestination = errors.New("invalid destination")

// Options selects the save destination and overrides the title.
type Options struct {
	Title      string
	Project    string // explicit project title
	Area       string // explicit area title
	Commitment string // inline commitment description, used when the area has none open
}

// Ledger is the slice of the commitment ledger the router needs.
type Ledger interface {
	GetProjectByTitle(title string) (ledger.Project, error)
	TouchProject(id string, at time.Time) error
	GetAreaByTitle(title string) (ledger.Area, error)
	UnfulfilledCommitment(areaID string) (ledger.Commitment, error)
	CreateCommitment(c ledger.Commitment) error
	SaveItem(i ledger.Item) error
	GetSetting(key string) (string, error)
}

// Router routes sessions into the vault and records the result in the
// ledger.
type Router struct {
	ledger  Ledger
	gateway vault.Gateway
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// New creates a Router. ttl is the provisional-item lifetime; if <= 0
// it defaults to 7 days.
func New(led Ledger, gw vault.Gateway, ttl time.Duration) *Router {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Router{
		ledger:  led,
		gateway: gw,
		ttl:     ttl,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  slog.Default(),
	}
}

// destination is the resolved outcome of the decision policy.
type destination struct {
	category   ledger.Category
	project    ledger.Project
	area       ledger.Area
	commitment ledger.Commitment
	expiresAt  *time.Time

	// inlineCommitment marks a commitment created for this save that
	// must be recorded once the vault write succeeds.
	inlineCommitment bool
}

// Route persists the session as a knowledge item. The vault write is
// the commit point: no ledger state changes before the backend
// acknowledges, and a failure leaves everything (the session included)
// untouched so the caller can retry.
func (r *Router) Route(ctx context.Context, sess *session.Session, opts Options) (*ledger.Item, error) {
	if sess == nil || sess.Unit == nil {
		return nil, fmt.Errorf("session has no content to route")
	}

	now := r.now()
	dest, err := r.resolve(opts, now)
	if err != nil {
		return nil, err
	}

	title := opts.Title
	if title == "" {
		title = sess.Unit.Title
	}

	item := ledger.Item{
		ID:           uuid.New().String(),
		Title:        title,
		Category:     dest.category,
		ProjectID:    dest.project.ID,
		AreaID:       dest.area.ID,
		CommitmentID: dest.commitment.ID,
		CreatedAt:    now,
		ExpiresAt:    dest.expiresAt,
	}

	note := vault.Note{
		ID:         item.ID,
		Title:      title,
		SourceKind: string(sess.Unit.SourceKind),
		SourceRef:  sess.Unit.SourceRef,
		Project:    dest.project.Title,
		Area:       dest.area.Title,
		Commitment: dest.commitment.Description,
		Summary:    sess.Summary(),
		Transcript: transcript(sess),
		CreatedAt:  now,
		ExpiresAt:  dest.expiresAt,
	}
	item.Body = note.Markdown()

	path, err := r.gateway.Write(ctx, note)
	if err != nil {
		return nil, err
	}
	item.Path = path

	// The backend has acknowledged; ledger bookkeeping follows.
	if dest.inlineCommitment {
		if err := r.ledger.CreateCommitment(dest.commitment); err != nil {
			return nil, fmt.Errorf("recording commitment: %w", err)
		}
	}
	if err := r.ledger.SaveItem(item); err != nil {
		return nil, fmt.Errorf("recording item: %w", err)
	}
	if dest.category == ledger.CategoryProject {
		if err := r.ledger.TouchProject(dest.project.ID, now); err != nil {
			r.logger.Warn("touching project failed", "project", dest.project.Title, "error", err)
		}
	}

	r.logger.Info("item routed",
		"id", item.ID, "title", item.Title,
		"category", string(item.Category), "path", item.Path)
	return &item, nil
}

// resolve applies the decision policy in order: explicit/default
// project, then area with an open commitment, then provisional.
func (r *Router) resolve(opts Options, now time.Time) (destination, error) {
	projectTitle := opts.Project
	explicitProject := projectTitle != ""
	if projectTitle == "" && opts.Area == "" {
		if v, err := r.ledger.GetSetting(SettingDefaultProject); err == nil {
			projectTitle = v
		}
	}

	if projectTitle != "" {
		p, err := r.ledger.GetProjectByTitle(projectTitle)
		switch {
		case err == nil:
			return destination{category: ledger.CategoryProject, project: p}, nil
		case errors.Is(err, ledger.ErrNotFound) && explicitProject:
			return destination{}, fmt.Errorf("%w: unknown project %q", ErrBadDestination, projectTitle)
		case errors.Is(err, ledger.ErrNotFound):
			// Stale default setting; fall through to the remaining rules.
			r.logger.Warn("default project not found, ignoring", "project", projectTitle)
		default:
			return destination{}, fmt.Errorf("looking up project: %w", err)
		}
	}

	if opts.Area != "" {
		a, err := r.ledger.GetAreaByTitle(opts.Area)
		if errors.Is(err, ledger.ErrNotFound) {
			return destination{}, fmt.Errorf("%w: unknown area %q", ErrBadDestination, opts.Area)
		}
		if err != nil {
			return destination{}, fmt.Errorf("looking up area: %w", err)
		}

		c, err := r.ledger.UnfulfilledCommitment(a.ID)
		switch {
		case err == nil:
			return destination{category: ledger.CategoryArea, area: a, commitment: c}, nil
		case errors.Is(err, ledger.ErrNotFound) && opts.Commitment != "":
			inline := ledger.Commitment{
				ID:          uuid.New().String(),
				AreaID:      a.ID,
				Description: opts.Commitment,
				CreatedAt:   now,
			}
			return destination{category: ledger.CategoryArea, area: a, commitment: inline, inlineCommitment: true}, nil
		case errors.Is(err, ledger.ErrNotFound):
			return destination{}, fmt.Errorf("%w: area %q has no open output commitment; state one to save here", ErrBadDestination, opts.Area)
		default:
			return destination{}, fmt.Errorf("looking up commitment: %w", err)
		}
	}

	exp := now.Add(r.ttl)
	return destination{expiresAt: &exp}, nil
}

// transcript pairs the post-summary history into Q&A exchanges.
func transcript(sess *session.Session) []vault.QA {
	var out []vault.QA
	history := sess.History
	for i := 1; i < len(history); i++ {
		if history[i].Role != "user" {
			continue
		}
		qa := vault.QA{Question: history[i].Text}
		if i+1 < len(history) && history[i+1].Role == "assistant" {
			qa.Answer = history[i+1].Text
		}
		out = append(out, qa)
	}
	return out
}
