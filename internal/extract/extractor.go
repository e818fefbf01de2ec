// Package extract turns a source reference (URL, file path, or raw
// text) into a normalized content.Unit. Extractors are registered in
// priority order; the first one that recognizes the reference wins.
package extract

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kalambet/engram/internal/content"
)

const maxFetchSize = 5 << 20 // 5MB

// Error reports a failed or unsupported extraction. It is user-facing:
// Reason is safe to surface in a reply.
type Error struct {
	Source string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extracting %s: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("extracting %s: %s", e.Source, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Extractor resolves one kind of source reference.
type Extractor interface {
	Name() string
	CanHandle(sourceRef string) bool
	Extract(ctx context.Context, sourceRef string) (*content.Unit, error)
}

// Registry dispatches a source reference to the first matching
// extractor. Order matters: more specific extractors come first.
type Registry struct {
	extractors []Extractor
}

// NewRegistry creates a registry with the default extractor set.
// The HTTP client is shared by all network-bound extractors; if nil, a
// client with a 15s timeout is used.
func NewRegistry(client *http.Client) *Registry {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	r := &Registry{}
	r.Register(NewYouTubeExtractor(client))
	r.Register(NewPDFExtractor())
	r.Register(NewArticleExtractor(client))
	return r
}

// Register appends an extractor to the dispatch order.
func (r *Registry) Register(e Extractor) {
	r.extractors = append(r.extractors, e)
}

// Extract resolves sourceRef via the first matching extractor. A
// reference no extractor recognizes is treated as raw text.
func (r *Registry) Extract(ctx context.Context, sourceRef string) (*content.Unit, error) {
	for _, e := range r.extractors {
		if e.CanHandle(sourceRef) {
			return e.Extract(ctx, sourceRef)
		}
	}
	return ExtractText(sourceRef), nil
}

// ExtractText wraps raw text in a content.Unit without any fetching.
func ExtractText(text string) *content.Unit {
	title := text
	if len([]rune(title)) > 60 {
		title = string([]rune(title)[:60])
	}
	return &content.Unit{
		SourceKind: content.KindText,
		Title:      title,
		RawText:    text,
		CapturedAt: time.Now().UTC(),
	}
}
