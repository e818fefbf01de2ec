package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/kalambet/engram/internal/content"
)

const articleUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ArticleExtractor fetches a web page and strips it down to readable
// text. It is the catch-all for http(s) references that no more
// specific extractor claims.
type ArticleExtractor struct {
	client *http.Client
}

func NewArticleExtractor(client *http.Client) *ArticleExtractor {
	return &ArticleExtractor{client: client}
}

func (e *ArticleExtractor) Name() string { return "article" }

func (e *ArticleExtractor) CanHandle(sourceRef string) bool {
	u, err := url.Parse(sourceRef)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

func (e *ArticleExtractor) Extract(ctx context.Context, sourceRef string) (*content.Unit, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceRef, nil)
	if err != nil {
		return nil, &Error{Source: sourceRef, Reason: "invalid URL", Err: err}
	}
	req.Header.Set("User-Agent", articleUserAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, &Error{Source: sourceRef, Reason: "page unreachable", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{Source: sourceRef, Reason: fmt.Sprintf("page returned status %d", resp.StatusCode)}
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxFetchSize))
	if err != nil {
		return nil, &Error{Source: sourceRef, Reason: "unparseable HTML", Err: err}
	}

	title := documentTitle(doc)
	if title == "" {
		title = sourceRef
	}
	text := documentText(doc)
	if strings.TrimSpace(text) == "" {
		return nil, &Error{Source: sourceRef, Reason: "page contains no readable text"}
	}

	return &content.Unit{
		SourceKind: content.KindArticle,
		SourceRef:  sourceRef,
		Title:      title,
		RawText:    text,
		CapturedAt: time.Now().UTC(),
	}, nil
}

// documentTitle prefers og:title over the <title> element since the
// latter often carries site-name suffixes.
func documentTitle(doc *html.Node) string {
	var title, ogTitle string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "meta":
				var prop, contentAttr string
				for _, a := range n.Attr {
					switch a.Key {
					case "property", "name":
						prop = a.Val
					case "content":
						contentAttr = a.Val
					}
				}
				if prop == "og:title" && contentAttr != "" {
					ogTitle = contentAttr
				}
			case "title":
				if n.FirstChild != nil && title == "" {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	if ogTitle != "" {
		return ogTitle
	}
	return title
}

// documentText collects visible text, skipping non-content elements.
func documentText(doc *html.Node) string {
	skip := map[string]bool{
		"script": true, "style": true, "noscript": true, "head": true,
		"nav": true, "header": true, "footer": true, "aside": true,
		"form": true, "iframe": true, "svg": true,
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skip[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				b.WriteString(t)
				b.WriteByte('\n')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.TrimRight(b.String(), "\n")
}
