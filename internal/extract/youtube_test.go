package extract

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestYouTubeExtract(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("v") != "dQw4w9WgXcQ" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `<html><head><meta property="og:title" content="Never Gonna Give You Up"></head>
			<body><script>var ytInitialPlayerResponse = {"captions":{"playerCaptionsTracklistRenderer":
			{"captionTracks":[{"baseUrl":"%s/api/timedtext?v=dQw4w9WgXcQ","languageCode":"en"}]}}};</script></body></html>`,
			srv.URL)
	})
	mux.HandleFunc("/api/timedtext", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0" encoding="utf-8"?>
			<transcript>
				<text start="0" dur="2">We&#39;re no strangers to love</text>
				<text start="2" dur="2">You know the rules</text>
			</transcript>`))
	})

	e := NewYouTubeExtractor(srv.Client())
	e.baseURL = srv.URL

	unit, err := e.Extract(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if unit.Title != "Never Gonna Give You Up" {
		t.Errorf("Title = %q", unit.Title)
	}
	want := "We're no strangers to love\nYou know the rules"
	if unit.RawText != want {
		t.Errorf("RawText = %q, want %q", unit.RawText, want)
	}
}

func TestYouTubeExtractNoCaptions(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><meta property="og:title" content="Silent Film"></head><body></body></html>`))
	})

	e := NewYouTubeExtractor(srv.Client())
	e.baseURL = srv.URL

	_, err := e.Extract(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	if err == nil {
		t.Fatal("expected error for video without captions")
	}
	if !strings.Contains(err.Error(), "no captions") {
		t.Errorf("unexpected error: %v", err)
	}
}
