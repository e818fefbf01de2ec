// Package api exposes the capture/ask/save loop and the knowledge
// ledger over localhost HTTP, plus an MCP server for agent access.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kalambet/engram/internal/conversation"
	"github.com/kalambet/engram/internal/ledger"
	"github.com/kalambet/engram/internal/routing"
	"github.com/kalambet/engram/internal/sweeper"
)

const maxBodySize = 1 << 20 // 1MB

// SweepRunner triggers a single sweep pass on demand.
type SweepRunner interface {
	RunOnce(ctx context.Context) (sweeper.Report, error)
}

type AppDeps struct {
	Engine  *conversation.Engine
	Ledger  *ledger.Store
	Sweeper SweepRunner
	Token   string
}

func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/capture", handleCapture(deps))
		r.Post("/ask", handleAsk(deps))
		r.Post("/save", handleSave(deps))
		r.Get("/session", handleGetSession(deps))
		r.Delete("/session", handleClearSession(deps))

		r.Get("/projects", handleListProjects(deps))
		r.Post("/projects", handleCreateProject(deps))
		r.Get("/areas", handleListAreas(deps))
		r.Post("/areas", handleCreateArea(deps))
		r.Get("/areas/{id}/commitments", handleListCommitments(deps))
		r.Post("/commitments/{id}/fulfill", handleFulfillCommitment(deps))

		r.Get("/inbox", handleListInbox(deps))
		r.Post("/sweep", handleSweep(deps))

		r.Put("/settings/{key}", handleSetSetting(deps))
		r.Get("/settings/{key}", handleGetSetting(deps))
	})

	return r
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

type captureRequest struct {
	UserID      string `json:"user_id"`
	Source      string `json:"source"`
	Instruction string `json:"instruction"`
}

func handleCapture(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req captureRequest
		if !decode(w, r, &req) {
			return
		}
		if req.UserID == "" || req.Source == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id and source are required")
			return
		}

		res, err := deps.Engine.Capture(r.Context(), req.UserID, req.Source, req.Instruction)
		if err != nil {
			domainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

type askRequest struct {
	UserID   string `json:"user_id"`
	Question string `json:"question"`
}

func handleAsk(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req askRequest
		if !decode(w, r, &req) {
			return
		}
		if req.UserID == "" || req.Question == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id and question are required")
			return
		}

		answer, err := deps.Engine.Ask(r.Context(), req.UserID, req.Question)
		if err != nil {
			domainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
	}
}

type saveRequest struct {
	UserID     string `json:"user_id"`
	Title      string `json:"title"`
	Project    string `json:"project"`
	Area       string `json:"area"`
	Commitment string `json:"commitment"`
}

type itemResponse struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Category  string     `json:"category"`
	Path      string     `json:"path"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func itemToResponse(i ledger.Item) itemResponse {
	category := string(i.Category)
	if i.Provisional() {
		category = "provisional"
	}
	return itemResponse{
		ID:        i.ID,
		Title:     i.Title,
		Category:  category,
		Path:      i.Path,
		CreatedAt: i.CreatedAt,
		ExpiresAt: i.ExpiresAt,
	}
}

func handleSave(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req saveRequest
		if !decode(w, r, &req) {
			return
		}
		if req.UserID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id is required")
			return
		}
		if req.Project != "" && req.Area != "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "project and area are mutually exclusive")
			return
		}

		item, err := deps.Engine.Save(r.Context(), req.UserID, routing.Options{
			Title:      req.Title,
			Project:    req.Project,
			Area:       req.Area,
			Commitment: req.Commitment,
		})
		if err != nil {
			domainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, itemToResponse(*item))
	}
}

func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id query parameter is required")
		return "", false
	}
	return userID, true
}

func handleGetSession(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUserID(w, r)
		if !ok {
			return
		}
		st, err := deps.Engine.Status(r.Context(), userID)
		if err != nil {
			domainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func handleClearSession(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUserID(w, r)
		if !ok {
			return
		}
		cleared := deps.Engine.Clear(r.Context(), userID)
		writeJSON(w, http.StatusOK, map[string]bool{"cleared": cleared})
	}
}

type createProjectRequest struct {
	Title  string `json:"title"`
	Status string `json:"status"`
}

func handleCreateProject(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createProjectRequest
		if !decode(w, r, &req) {
			return
		}
		if req.Title == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "title is required")
			return
		}
		if req.Status == "" {
			req.Status = "active"
		}

		now := time.Now().UTC()
		p := ledger.Project{
			ID:         uuid.New().String(),
			Title:      req.Title,
			Status:     req.Status,
			CreatedAt:  now,
			LastUsedAt: now,
		}
		if err := deps.Ledger.CreateProject(p); err != nil {
			domainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

func handleListProjects(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projects, err := deps.Ledger.ListProjects(r.URL.Query().Get("status"))
		if err != nil {
			domainError(w, err)
			return
		}
		if projects == nil {
			projects = []ledger.Project{}
		}
		writeJSON(w, http.StatusOK, projects)
	}
}

type createAreaRequest struct {
	Title      string `json:"title"`
	Commitment string `json:"commitment"`
}

func handleCreateArea(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createAreaRequest
		if !decode(w, r, &req) {
			return
		}
		if req.Title == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "title is required")
			return
		}

		now := time.Now().UTC()
		a := ledger.Area{
			ID:        uuid.New().String(),
			Title:     req.Title,
			CreatedAt: now,
		}
		if err := deps.Ledger.CreateArea(a); err != nil {
			domainError(w, err)
			return
		}
		if req.Commitment != "" {
			c := ledger.Commitment{
				ID:          uuid.New().String(),
				AreaID:      a.ID,
				Description: req.Commitment,
				CreatedAt:   now,
			}
			if err := deps.Ledger.CreateCommitment(c); err != nil {
				domainError(w, err)
				return
			}
		}
		writeJSON(w, http.StatusCreated, a)
	}
}

func handleListAreas(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		areas, err := deps.Ledger.ListAreas()
		if err != nil {
			domainError(w, err)
			return
		}
		if areas == nil {
			areas = []ledger.Area{}
		}
		writeJSON(w, http.StatusOK, areas)
	}
}

func handleListCommitments(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		commitments, err := deps.Ledger.ListCommitments(chi.URLParam(r, "id"))
		if err != nil {
			domainError(w, err)
			return
		}
		if commitments == nil {
			commitments = []ledger.Commitment{}
		}
		writeJSON(w, http.StatusOK, commitments)
	}
}

func handleFulfillCommitment(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := deps.Ledger.FulfillCommitment(id, time.Now().UTC()); err != nil {
			domainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "fulfilled"})
	}
}

func handleListInbox(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := deps.Ledger.ListProvisional()
		if err != nil {
			domainError(w, err)
			return
		}
		out := make([]itemResponse, len(items))
		for i, item := range items {
			out[i] = itemToResponse(item)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

type settingRequest struct {
	Value string `json:"value"`
}

func handleSetSetting(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req settingRequest
		if !decode(w, r, &req) {
			return
		}
		key := chi.URLParam(r, "key")
		if err := deps.Ledger.SetSetting(key, req.Value); err != nil {
			domainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": req.Value})
	}
}

func handleGetSetting(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		value, err := deps.Ledger.GetSetting(key)
		if err != nil {
			domainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": value})
	}
}

func handleSweep(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := deps.Sweeper.RunOnce(r.Context())
		if err != nil {
			domainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}
