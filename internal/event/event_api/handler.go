package event_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ms-events/internal/auth"
	"ms-events/internal/event"
	"ms-events/internal/logger"
	"ms-events/internal/models"
)

type Handler struct {
	EventService *event.EventService
	Logger       *logger.Logger
}

func NewHandler(service *event.EventService, log *logger.Logger) *Handler {
	return &Handler{EventService: service, Logger: log}
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		http.Error(w, "Unauthenticated", http.StatusUnauthorized)
		return
	}

	var in models.EventInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateEvent: failed to decode body: %v", err))
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if in.Title == "" {
		http.Error(w, "Event title is required", http.StatusBadRequest)
		return
	}

	created, err := h.EventService.Create(r.Context(), userID, in)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateEvent: %v", err))
		http.Error(w, "Could not create event: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(created); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateEvent: failed to encode response: %v", err))
	}
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	found, err := h.EventService.GetByID(r.Context(), eventID)
	if err != nil {
		if errors.Is(err, event.ErrNotFound) {
			http.Error(w, "Event not found", http.StatusNotFound)
			return
		}
		h.Logger.Error("API", fmt.Sprintf("GetEvent: %v", err))
		http.Error(w, "Could not load event: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(found); err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetEvent: failed to encode response: %v", err))
	}
}

func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	eventID := chi.URLParam(r, "eventId")

	var in models.EventInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	updated, err := h.EventService.Update(r.Context(), userID, eventID, in)
	if err != nil {
		switch {
		case errors.Is(err, event.ErrNotFound):
			http.Error(w, "Event not found", http.StatusNotFound)
		case errors.Is(err, event.ErrForbidden):
			http.Error(w, "Only the organizer may update this event", http.StatusForbidden)
		default:
			h.Logger.Error("API", fmt.Sprintf("UpdateEvent: %v", err))
			http.Error(w, "Could not update event: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(updated); err != nil {
		h.Logger.Error("API", fmt.Sprintf("UpdateEvent: failed to encode response: %v", err))
	}
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	eventID := chi.URLParam(r, "eventId")

	if err := h.EventService.Delete(r.Context(), userID, eventID); err != nil {
		switch {
		case errors.Is(err, event.ErrNotFound):
			http.Error(w, "Event not found", http.StatusNotFound)
		case errors.Is(err, event.ErrForbidden):
			http.Error(w, "Only the organizer may delete this event", http.StatusForbidden)
		default:
			h.Logger.Error("API", fmt.Sprintf("DeleteEvent: %v", err))
			http.Error(w, "Could not delete event: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	filter := models.EventFilter{
		Query:    r.URL.Query().Get("query"),
		Category: r.URL.Query().Get("category"),
		Page:     queryInt(r, "page", 1),
		Limit:    queryInt(r, "limit", 6),
	}

	page, err := h.EventService.List(r.Context(), filter)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListEvents: %v", err))
		http.Error(w, "Could not list events: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(page); err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListEvents: failed to encode response: %v", err))
	}
}

func (h *Handler) ListMyEvents(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		http.Error(w, "Unauthenticated", http.StatusUnauthorized)
		return
	}

	page, err := h.EventService.ListByOrganizer(r.Context(), userID,
		queryInt(r, "page", 1), queryInt(r, "limit", 6))
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListMyEvents: %v", err))
		http.Error(w, "Could not list events: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(page); err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListMyEvents: failed to encode response: %v", err))
	}
}

func (h *Handler) ListRelatedEvents(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	page, err := h.EventService.ListRelated(r.Context(), eventID,
		queryInt(r, "page", 1), queryInt(r, "limit", 3))
	if err != nil {
		if errors.Is(err, event.ErrNotFound) {
			http.Error(w, "Event not found", http.StatusNotFound)
			return
		}
		h.Logger.Error("API", fmt.Sprintf("ListRelatedEvents: %v", err))
		http.Error(w, "Could not list related events: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(page); err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListRelatedEvents: failed to encode response: %v", err))
	}
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}
