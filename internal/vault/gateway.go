// Package vault persists finalized notes to a storage backend. The
// routing engine owns an item until a Gateway acknowledges the write;
// after that, persistence ownership belongs to the backend.
package vault

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// PersistenceError reports a failed backend operation. A save that
// returns one must leave the originating session intact so the user can
// retry.
type PersistenceError struct {
	Op     string // "write" or "delete"
	Reason string
	Err    error
}

func (e *PersistenceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("vault %s failed: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("vault %s failed: %s", e.Op, e.Reason)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// QA is one question/answer exchange carried into the saved note.
type QA struct {
	Question string
	Answer   string
}

// Note is everything a backend needs to persist one routed item.
// Project and Area carry destination titles (for folder layout);
// both empty means the note belongs to the inbox.
type Note struct {
	ID         string
	Title      string
	SourceKind string
	SourceRef  string
	Project    string
	Area       string
	Commitment string // output commitment description, area notes only
	Summary    string
	Transcript []QA
	CreatedAt  time.Time
	ExpiresAt  *time.Time
}

// Gateway is the write/delete capability of a storage backend. Write
// returns the backend-relative location of the persisted note, which
// Delete later accepts to remove it.
type Gateway interface {
	Write(ctx context.Context, note Note) (path string, err error)
	Delete(ctx context.Context, path string) error
}

// Markdown renders the note body: source line, summary, and the Q&A
// transcript when the user asked follow-ups.
func (n Note) Markdown() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", n.Title)
	if n.SourceRef != "" {
		fmt.Fprintf(&b, "## Source\n%s\n\n", n.SourceRef)
	}
	fmt.Fprintf(&b, "## Summary\n%s\n", n.Summary)

	if len(n.Transcript) > 0 {
		b.WriteString("\n## Conversation\n\n")
		for _, qa := range n.Transcript {
			fmt.Fprintf(&b, "**Q:** %s\n\n**A:** %s\n\n", qa.Question, qa.Answer)
		}
	}
	if n.Commitment != "" {
		fmt.Fprintf(&b, "\n## Output commitment\n%s\n", n.Commitment)
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}
