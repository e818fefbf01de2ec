package extract

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/kalambet/engram/internal/content"
)

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`youtube\.com/watch\?(?:.*&)?v=([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`youtu\.be/([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/embed/([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/v/([a-zA-Z0-9_-]{11})`),
}

// captionTracksRe locates the caption track list embedded in the watch
// page's player response JSON.
var captionTracksRe = regexp.MustCompile(`"captionTracks":(\[.*?\])`)

var ogTitleRe = regexp.MustCompile(`<meta property="og:title" content="([^"]*)"`)

// YouTubeExtractor pulls the transcript of a video from its published
// caption track. Videos without captions fail; audio transcription is a
// separate concern outside this extractor.
type YouTubeExtractor struct {
	client  *http.Client
	baseURL string
}

func NewYouTubeExtractor(client *http.Client) *YouTubeExtractor {
	return &YouTubeExtractor{client: client, baseURL: "https://www.youtube.com"}
}

func (e *YouTubeExtractor) Name() string { return "youtube" }

func (e *YouTubeExtractor) CanHandle(sourceRef string) bool {
	return videoID(sourceRef) != ""
}

func videoID(sourceRef string) string {
	for _, p := range videoIDPatterns {
		if m := p.FindStringSubmatch(sourceRef); m != nil {
			return m[1]
		}
	}
	return ""
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" for auto-generated
}

// preferredLanguages orders caption tracks; manual captions in an early
// language beat auto-generated ones.
var preferredLanguages = []string{"en", "zh-Hans", "zh-Hant", "zh", "ja", "ko"}

func (e *YouTubeExtractor) Extract(ctx context.Context, sourceRef string) (*content.Unit, error) {
	id := videoID(sourceRef)
	if id == "" {
		return nil, &Error{Source: sourceRef, Reason: "not a YouTube video URL"}
	}

	page, err := e.fetch(ctx, e.baseURL+"/watch?v="+id)
	if err != nil {
		return nil, &Error{Source: sourceRef, Reason: "video page unreachable", Err: err}
	}

	title := id
	if m := ogTitleRe.FindStringSubmatch(page); m != nil {
		title = htmlUnescape(m[1])
	}

	m := captionTracksRe.FindStringSubmatch(page)
	if m == nil {
		return nil, &Error{Source: sourceRef, Reason: "video has no captions"}
	}
	var tracks []captionTrack
	if err := json.Unmarshal([]byte(m[1]), &tracks); err != nil {
		return nil, &Error{Source: sourceRef, Reason: "unrecognized caption metadata", Err: err}
	}
	track := pickTrack(tracks)
	if track == nil {
		return nil, &Error{Source: sourceRef, Reason: "video has no usable caption track"}
	}

	transcript, err := e.fetchTranscript(ctx, track.BaseURL)
	if err != nil {
		return nil, &Error{Source: sourceRef, Reason: "caption track unreadable", Err: err}
	}

	return &content.Unit{
		SourceKind: content.KindYouTube,
		SourceRef:  sourceRef,
		Title:      title,
		RawText:    transcript,
		CapturedAt: time.Now().UTC(),
	}, nil
}

func pickTrack(tracks []captionTrack) *captionTrack {
	if len(tracks) == 0 {
		return nil
	}
	best := -1
	bestScore := 1 << 30
	for i, t := range tracks {
		score := len(preferredLanguages) * 2
		for j, lang := range preferredLanguages {
			if t.LanguageCode == lang || strings.HasPrefix(t.LanguageCode, lang+"-") {
				score = j * 2
				break
			}
		}
		if t.Kind == "asr" {
			score++
		}
		if score < bestScore {
			best, bestScore = i, score
		}
	}
	return &tracks[best]
}

func (e *YouTubeExtractor) fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", articleUserAgent)
	req.Header.Set("Accept-Language", "en")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchSize))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

type timedText struct {
	Texts []struct {
		Body string `xml:",chardata"`
	} `xml:"text"`
}

func (e *YouTubeExtractor) fetchTranscript(ctx context.Context, trackURL string) (string, error) {
	if _, err := url.Parse(trackURL); err != nil {
		return "", err
	}

	body, err := e.fetch(ctx, trackURL)
	if err != nil {
		return "", err
	}

	var tt timedText
	if err := xml.Unmarshal([]byte(body), &tt); err != nil {
		return "", fmt.Errorf("parsing timedtext: %w", err)
	}

	var b strings.Builder
	for _, t := range tt.Texts {
		line := strings.TrimSpace(htmlUnescape(t.Body))
		if line == "" {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	out := strings.TrimRight(b.String(), "\n")
	if out == "" {
		return "", fmt.Errorf("empty transcript")
	}
	return out, nil
}

var htmlEscapes = strings.NewReplacer(
	"&amp;", "&", "&lt;", "<", "&gt;", ">",
	"&quot;", `"`, "&#39;", "'",
)

func htmlUnescape(s string) string { return htmlEscapes.Replace(s) }
