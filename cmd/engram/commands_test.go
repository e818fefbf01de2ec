package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestCaptureRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /capture": `{"title":"An Article","source_kind":"article","summary":"the gist","replaced_session":false}`,
	})

	client := ts.client()
	resp, err := client.post(ctx, "/capture", map[string]string{
		"user_id":     "local",
		"source":      "https://example.com/a",
		"instruction": "focus on methods",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result struct {
		Title   string `json:"title"`
		Summary string `json:"summary"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result.Title != "An Article" || result.Summary != "the gist" {
		t.Errorf("result = %+v", result)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q", r.Auth)
	}

	var body map[string]string
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["source"] != "https://example.com/a" || body["instruction"] != "focus on methods" {
		t.Errorf("body = %v", body)
	}
}

func TestSaveRequestAndExpiry(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /save": `{"id":"i1","title":"An Article","category":"provisional","path":"Inbox/x.md","expires_at":"2026-09-07T12:00:00Z"}`,
	})

	client := ts.client()
	resp, err := client.post(ctx, "/save", map[string]string{"user_id": "local"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var item struct {
		Category  string  `json:"category"`
		ExpiresAt *string `json:"expires_at"`
	}
	if err := decodeJSON(resp, &item); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if item.Category != "provisional" || item.ExpiresAt == nil {
		t.Errorf("item = %+v", item)
	}
}

func TestErrorEnvelopeDecoding(t *testing.T) {
	ts := newTestServer(t, nil)

	client := ts.client()
	resp, err := client.get(ctx, "/session?user_id=local")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var out any
	err = decodeJSON(resp, &out)
	if err == nil {
		t.Fatal("expected error from 404 response")
	}
	if !strings.Contains(err.Error(), "not found") || !strings.Contains(err.Error(), "not_found") {
		t.Errorf("error = %q, want message and type from envelope", err.Error())
	}
}

func TestClearRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"DELETE /session": `{"cleared":true}`,
	})

	client := ts.client()
	resp, err := client.delete(ctx, "/session?user_id=local")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result struct {
		Cleared bool `json:"cleared"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !result.Cleared {
		t.Error("cleared = false")
	}
	if ts.requests[0].Path != "/session?user_id=local" {
		t.Errorf("path = %q", ts.requests[0].Path)
	}
}

func TestDefaultProjectSetting(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"PUT /settings/routing.default_project": `{"key":"routing.default_project","value":"Thesis"}`,
	})

	client := ts.client()
	resp, err := client.put(ctx, "/settings/routing.default_project", map[string]string{"value": "Thesis"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]string
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result["value"] != "Thesis" {
		t.Errorf("value = %q", result["value"])
	}
}

func TestCaptureCommand_MissingArgs(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"capture"})
	rootCmd.AddCommand(captureCmd)
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing source argument")
	}
	if !strings.Contains(err.Error(), "arg") {
		t.Errorf("error = %q, want it to mention args", err.Error())
	}
}
