// Package api exposes the edit and control surface consumed by the UI:
// trigger-sweep, item CRUD, alert-rule edits and diagnostics queries.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/maltedev/pricewatch/internal/diag"
	"github.com/maltedev/pricewatch/internal/models"
	"github.com/maltedev/pricewatch/internal/scheduler"
	"github.com/maltedev/pricewatch/internal/store"
	"github.com/maltedev/pricewatch/internal/urlguard"
)

type Server struct {
	store  *store.Store
	sched  *scheduler.Scheduler
	guard  *urlguard.Guard
	diag   *diag.Buffer
	logger *slog.Logger
}

func NewServer(st *store.Store, sched *scheduler.Scheduler, guard *urlguard.Guard, diagBuf *diag.Buffer) *Server {
	return &Server{
		store:  st,
		sched:  sched,
		guard:  guard,
		diag:   diagBuf,
		logger: slog.Default().With("component", "api"),
	}
}

func (s *Server) Router(corsOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	if len(corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsOrigins,
			AllowedMethods: []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/sweep", s.handleTriggerSweep)
		r.Get("/items", s.handleListItems)
		r.Post("/items", s.handleAddItem)
		r.Patch("/items/{id}", s.handleUpdateItem)
		r.Delete("/items/{id}", s.handleDeleteItem)
		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handlePutSettings)
		r.Get("/diagnostics", s.handleDiagnostics)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sweeping": s.sched.Sweeping(),
	})
}

func (s *Server) handleTriggerSweep(w http.ResponseWriter, r *http.Request) {
	if err := s.sched.TriggerAsync(context.Background()); err != nil {
		if errors.Is(err, scheduler.ErrBusy) {
			writeJSON(w, http.StatusConflict, map[string]string{"status": "busy"})
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"items":                   s.store.Snapshot(),
		"currentlySweepingItemId": s.sched.CurrentItemID(),
		"sweeping":                s.sched.Sweeping(),
	})
}

type itemRequest struct {
	URL         string   `json:"url"`
	Name        string   `json:"name"`
	Selector    *string  `json:"selector"`
	TargetPrice *float64 `json:"target_price"`
	ListID      *string  `json:"list_id"`
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	if err := s.guard.Validate(r.Context(), req.URL); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.TargetPrice != nil && *req.TargetPrice <= 0 {
		writeError(w, http.StatusBadRequest, "target_price must be positive")
		return
	}

	name := req.Name
	if name == "" {
		name = req.URL
	}
	item := models.NewItem(req.URL, name)
	if req.Selector != nil {
		item.Selector = *req.Selector
	}
	if req.TargetPrice != nil {
		item.TargetPrice = *req.TargetPrice
	}
	if req.ListID != nil && *req.ListID != "" {
		if !s.store.HasList(*req.ListID) {
			writeError(w, http.StatusBadRequest, "unknown list id")
			return
		}
		item.ListID = *req.ListID
	}

	if err := s.store.Add(item); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.URL != "" {
		if err := s.guard.Validate(r.Context(), req.URL); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.TargetPrice != nil && *req.TargetPrice < 0 {
		writeError(w, http.StatusBadRequest, "target_price must not be negative")
		return
	}
	if req.ListID != nil && *req.ListID != "" && !s.store.HasList(*req.ListID) {
		writeError(w, http.StatusBadRequest, "unknown list id")
		return
	}

	err := s.store.Update(id, func(it *models.Item) error {
		if req.URL != "" {
			it.URL = req.URL
		}
		if req.Name != "" {
			it.Name = req.Name
		}
		if req.Selector != nil {
			it.Selector = *req.Selector
		}
		if req.TargetPrice != nil {
			it.TargetPrice = *req.TargetPrice
		}
		if req.ListID != nil && *req.ListID != "" {
			it.ListID = *req.ListID
		}
		return nil
	})
	if errors.Is(err, store.ErrItemNotFound) {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	item, _ := s.store.Get(id)
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.store.Delete(id)
	if errors.Is(err, store.ErrItemNotFound) {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Settings())
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var incoming models.Settings
	if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if incoming.AlertRules.NotifyCooldownMinutes < 0 ||
		incoming.AlertRules.StaleHours < 0 ||
		incoming.AlertRules.PriceDrop24hPercent < 0 {
		writeError(w, http.StatusBadRequest, "alert rule values must not be negative")
		return
	}
	if len(incoming.Lists) == 0 {
		incoming.Lists = []models.List{{ID: "default", Name: "Default"}}
	}

	err := s.store.UpdateSettings(func(set *models.Settings) error {
		*set = incoming
		return nil
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.store.Settings())
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": s.diag.List(limit)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
