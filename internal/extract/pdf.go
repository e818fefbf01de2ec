package extract

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/kalambet/engram/internal/content"
)

// PDFExtractor reads the plain text of a local PDF file.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor { return &PDFExtractor{} }

func (e *PDFExtractor) Name() string { return "pdf" }

func (e *PDFExtractor) CanHandle(sourceRef string) bool {
	if !strings.EqualFold(filepath.Ext(sourceRef), ".pdf") {
		return false
	}
	info, err := os.Stat(sourceRef)
	return err == nil && !info.IsDir()
}

func (e *PDFExtractor) Extract(ctx context.Context, sourceRef string) (*content.Unit, error) {
	f, reader, err := pdf.Open(sourceRef)
	if err != nil {
		return nil, &Error{Source: sourceRef, Reason: "cannot open PDF", Err: err}
	}
	defer f.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return nil, &Error{Source: sourceRef, Reason: "cannot read PDF text", Err: err}
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return nil, &Error{Source: sourceRef, Reason: "cannot read PDF text", Err: err}
	}
	text := strings.TrimSpace(buf.String())
	if text == "" {
		return nil, &Error{Source: sourceRef, Reason: "PDF contains no extractable text"}
	}

	title := strings.TrimSuffix(filepath.Base(sourceRef), filepath.Ext(sourceRef))
	return &content.Unit{
		SourceKind: content.KindPDF,
		SourceRef:  sourceRef,
		Title:      title,
		RawText:    text,
		CapturedAt: time.Now().UTC(),
	}, nil
}
