package ledger

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Category is the routed destination kind of a knowledge item.
type Category string

const (
	// CategoryProject marks "doing"-oriented items; they never expire.
	CategoryProject Category = "project"
	// CategoryArea marks "understanding"-oriented items backed by an
	// output commitment; they never expire.
	CategoryArea Category = "area"
	// An empty Category means provisional: the item sits in the inbox
	// with a deadline.
)

// Item is a routed, persisted note. Either Category is set and
// ExpiresAt is nil, or Category is empty and ExpiresAt is set, never
// neither, never both.
type Item struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Category     Category   `json:"category,omitempty"`
	ProjectID    string     `json:"project_id,omitempty"`
	AreaID       string     `json:"area_id,omitempty"`
	CommitmentID string     `json:"commitment_id,omitempty"`
	Body         string     `json:"body"`
	Path         string     `json:"path,omitempty"` // backend location, set after the vault ack
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// Provisional reports whether the item is uncategorized and subject to
// expiry.
func (i *Item) Provisional() bool { return i.Category == "" }

// Project is a "doing" destination.
type Project struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Status     string    `json:"status"` // "active", "completed", "archived"
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
}

// Area is a "learning" destination. An area cannot receive items unless
// it carries at least one unfulfilled commitment.
type Area struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Commitment is a standing promise to produce output from an area.
// Fulfillment is an explicit user action, never a side effect of a save.
type Commitment struct {
	ID          string     `json:"id"`
	AreaID      string     `json:"area_id"`
	Description string     `json:"description"`
	Fulfilled   bool       `json:"fulfilled"`
	CreatedAt   time.Time  `json:"created_at"`
	FulfilledAt *time.Time `json:"fulfilled_at,omitempty"`
}
