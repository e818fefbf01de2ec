// Package content defines the normalized representation of captured
// material. A Unit is produced by an extractor and owned by whichever
// session references it; it carries no behavior of its own.
package content

import "time"

// SourceKind identifies where a piece of content came from.
type SourceKind string

const (
	KindYouTube SourceKind = "youtube"
	KindArticle SourceKind = "article"
	KindPDF     SourceKind = "pdf"
	KindText    SourceKind = "text"
)

// Unit is extracted content plus provenance. Immutable once created.
type Unit struct {
	SourceKind SourceKind
	SourceRef  string // URL, file path, or empty for raw text
	Title      string
	RawText    string
	CapturedAt time.Time
}
