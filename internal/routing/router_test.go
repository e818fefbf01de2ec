package routing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kalambet/engram/internal/content"
	"github.com/kalambet/engram/internal/ledger"
	"github.com/kalambet/engram/internal/session"
	"github.com/kalambet/engram/internal/vault"
)

type fakeLedger struct {
	projects    map[string]ledger.Project
	areas       map[string]ledger.Area
	commitments map[string]ledger.Commitment // by area ID
	settings    map[string]string

	savedItems   []ledger.Item
	createdComms []ledger.Commitment
	touched      []string
	saveErr      error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		projects:    map[string]ledger.Project{},
		areas:       map[string]ledger.Area{},
		commitments: map[string]ledger.Commitment{},
		settings:    map[string]string{},
	}
}

func (f *fakeLedger) GetProjectByTitle(title string) (ledger.Project, error) {
	p, ok := f.projects[title]
	if !ok {
		return ledger.Project{}, ledger.ErrNotFound
	}
	return p, nil
}

func (f *fakeLedger) TouchProject(id string, at time.Time) error {
	f.touched = append(f.touched, id)
	return nil
}

func (f *fakeLedger) GetAreaByTitle(title string) (ledger.Area, error) {
	a, ok := f.areas[title]
	if !ok {
		return ledger.Area{}, ledger.ErrNotFound
	}
	return a, nil
}

func (f *fakeLedger) UnfulfilledCommitment(areaID string) (ledger.Commitment, error) {
	c, ok := f.commitments[areaID]
	if !ok {
		return ledger.Commitment{}, ledger.ErrNotFound
	}
	return c, nil
}

func (f *fakeLedger) CreateCommitment(c ledger.Commitment) error {
	f.createdComms = append(f.createdComms, c)
	return nil
}

func (f *fakeLedger) SaveItem(i ledger.Item) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.savedItems = append(f.savedItems, i)
	return nil
}

func (f *fakeLedger) GetSetting(key string) (string, error) {
	v, ok := f.settings[key]
	if !ok {
		return "", ledger.ErrNotFound
	}
	return v, nil
}

type fakeGateway struct {
	notes    []vault.Note
	writeErr error
}

func (f *fakeGateway) Write(ctx context.Context, n vault.Note) (string, error) {
	if f.writeErr != nil {
		return "", f.writeErr
	}
	f.notes = append(f.notes, n)
	return "Inbox/" + n.ID + ".md", nil
}

func (f *fakeGateway) Delete(ctx context.Context, path string) error { return nil }

func testSession(t *testing.T) *session.Session {
	t.Helper()
	unit := &content.Unit{
		SourceKind: content.KindArticle,
		SourceRef:  "https://example.com/post",
		Title:      "On Note Taking",
		RawText:    "body",
		CapturedAt: time.Now().UTC(),
	}
	s := session.New("u1", unit, "a summary")
	s.Append("user", "what is the point?")
	s.Append("assistant", "retention")
	return s
}

func TestRouteProvisional(t *testing.T) {
	led := newFakeLedger()
	gw := &fakeGateway{}
	r := New(led, gw, 7*24*time.Hour)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return base }

	item, err := r.Route(context.Background(), testSession(t), Options{})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if !item.Provisional() {
		t.Fatalf("expected provisional item, got category %q", item.Category)
	}
	if item.ExpiresAt == nil || !item.ExpiresAt.Equal(base.Add(7*24*time.Hour)) {
		t.Fatalf("wrong expiry: %v", item.ExpiresAt)
	}
	if len(led.savedItems) != 1 {
		t.Fatalf("expected 1 saved item, got %d", len(led.savedItems))
	}
	if led.savedItems[0].Path != item.Path || item.Path == "" {
		t.Fatalf("item path not recorded: %q", item.Path)
	}
	if len(gw.notes) != 1 {
		t.Fatalf("expected 1 vault write, got %d", len(gw.notes))
	}
	if gw.notes[0].Summary != "a summary" {
		t.Errorf("note summary = %q", gw.notes[0].Summary)
	}
	if len(gw.notes[0].Transcript) != 1 || gw.notes[0].Transcript[0].Answer != "retention" {
		t.Errorf("transcript not carried: %+v", gw.notes[0].Transcript)
	}
}

func TestRouteExplicitProject(t *testing.T) {
	led := newFakeLedger()
	led.projects["Thesis"] = ledger.Project{ID: "p1", Title: "Thesis"}
	r := New(led, &fakeGateway{}, 0)

	item, err := r.Route(context.Background(), testSession(t), Options{Project: "Thesis"})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if item.Category != ledger.CategoryProject || item.ProjectID != "p1" {
		t.Fatalf("wrong destination: %+v", item)
	}
	if item.ExpiresAt != nil {
		t.Error("project item must not expire")
	}
	if len(led.touched) != 1 || led.touched[0] != "p1" {
		t.Errorf("project not touched: %v", led.touched)
	}
}

func TestRouteUnknownProject(t *testing.T) {
	r := New(newFakeLedger(), &fakeGateway{}, 0)
	_, err := r.Route(context.Background(), testSession(t), Options{Project: "Nope"})
	if !errors.Is(err, ErrBadDestination) {
		t.Fatalf("expected ErrBadDestination, got %v", err)
	}
}

func TestRouteDefaultProjectSetting(t *testing.T) {
	led := newFakeLedger()
	led.projects["Default"] = ledger.Project{ID: "p2", Title: "Default"}
	led.settings[SettingDefaultProject] = "Default"
	r := New(led, &fakeGateway{}, 0)

	item, err := r.Route(context.Background(), testSession(t), Options{})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if item.Category != ledger.CategoryProject || item.ProjectID != "p2" {
		t.Fatalf("default project not applied: %+v", item)
	}
}

func TestRouteStaleDefaultFallsBackToProvisional(t *testing.T) {
	led := newFakeLedger()
	led.settings[SettingDefaultProject] = "Gone"
	r := New(led, &fakeGateway{}, 0)

	item, err := r.Route(context.Background(), testSession(t), Options{})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if !item.Provisional() {
		t.Fatalf("expected provisional, got %q", item.Category)
	}
}

func TestRouteAreaWithOpenCommitment(t *testing.T) {
	led := newFakeLedger()
	led.areas["Writing"] = ledger.Area{ID: "a1", Title: "Writing"}
	led.commitments["a1"] = ledger.Commitment{ID: "c1", AreaID: "a1", Description: "publish an essay"}
	gw := &fakeGateway{}
	r := New(led, gw, 0)

	item, err := r.Route(context.Background(), testSession(t), Options{Area: "Writing"})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if item.Category != ledger.CategoryArea || item.CommitmentID != "c1" {
		t.Fatalf("wrong destination: %+v", item)
	}
	if gw.notes[0].Commitment != "publish an essay" {
		t.Errorf("commitment not carried into note: %q", gw.notes[0].Commitment)
	}
	// Saving against an open commitment never fulfills it.
	if len(led.createdComms) != 0 {
		t.Errorf("unexpected commitment writes: %v", led.createdComms)
	}
}

func TestRouteAreaWithoutCommitmentRejected(t *testing.T) {
	led := newFakeLedger()
	led.areas["Writing"] = ledger.Area{ID: "a1", Title: "Writing"}
	r := New(led, &fakeGateway{}, 0)

	_, err := r.Route(context.Background(), testSession(t), Options{Area: "Writing"})
	if !errors.Is(err, ErrBadDestination) {
		t.Fatalf("expected ErrBadDestination, got %v", err)
	}
}

func TestRouteAreaInlineCommitment(t *testing.T) {
	led := newFakeLedger()
	led.areas["Writing"] = ledger.Area{ID: "a1", Title: "Writing"}
	r := New(led, &fakeGateway{}, 0)

	item, err := r.Route(context.Background(), testSession(t),
		Options{Area: "Writing", Commitment: "draft a talk"})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if len(led.createdComms) != 1 {
		t.Fatalf("inline commitment not recorded: %v", led.createdComms)
	}
	c := led.createdComms[0]
	if c.AreaID != "a1" || c.Description != "draft a talk" || c.Fulfilled {
		t.Fatalf("bad inline commitment: %+v", c)
	}
	if item.CommitmentID != c.ID {
		t.Errorf("item not linked to commitment")
	}
}

func TestRouteVaultFailureLeavesLedgerUntouched(t *testing.T) {
	led := newFakeLedger()
	gw := &fakeGateway{writeErr: &vault.PersistenceError{Op: "write", Reason: "disk full"}}
	r := New(led, gw, 0)

	_, err := r.Route(context.Background(), testSession(t), Options{})
	var pe *vault.PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if len(led.savedItems) != 0 || len(led.createdComms) != 0 {
		t.Fatal("ledger mutated despite failed write")
	}
}

func TestRouteTitleOverride(t *testing.T) {
	led := newFakeLedger()
	gw := &fakeGateway{}
	r := New(led, gw, 0)

	item, err := r.Route(context.Background(), testSession(t), Options{Title: "Better Title"})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if item.Title != "Better Title" || gw.notes[0].Title != "Better Title" {
		t.Errorf("title override not applied: %q / %q", item.Title, gw.notes[0].Title)
	}
}
