package category_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"ms-events/internal/category"
	"ms-events/internal/logger"
)

type Handler struct {
	CategoryService *category.CategoryService
	Logger          *logger.Logger
}

func NewHandler(service *category.CategoryService, log *logger.Logger) *Handler {
	return &Handler{CategoryService: service, Logger: log}
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if in.Name == "" {
		http.Error(w, "Category name is required", http.StatusBadRequest)
		return
	}

	created, err := h.CategoryService.Create(r.Context(), in.Name)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateCategory: %v", err))
		http.Error(w, "Could not create category: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(created); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateCategory: failed to encode response: %v", err))
	}
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.CategoryService.List(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListCategories: %v", err))
		http.Error(w, "Could not list categories: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(categories); err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListCategories: failed to encode response: %v", err))
	}
}
