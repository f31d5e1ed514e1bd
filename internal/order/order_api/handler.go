package order_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ms-events/internal/auth"
	"ms-events/internal/logger"
	"ms-events/internal/order"
	"ms-events/internal/order/qr"
)

type Handler struct {
	OrderService *order.OrderService
	QR           *qr.QRGenerator
	Logger       *logger.Logger
}

func NewHandler(service *order.OrderService, qrGen *qr.QRGenerator, log *logger.Logger) *Handler {
	return &Handler{OrderService: service, QR: qrGen, Logger: log}
}

// ListMyOrders returns the caller's purchase history, newest first.
func (h *Handler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		http.Error(w, "Unauthenticated", http.StatusUnauthorized)
		return
	}

	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 0)

	paged, err := h.OrderService.OrdersByBuyer(r.Context(), userID, page, limit)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListMyOrders: %v", err))
		http.Error(w, "Could not load orders: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(paged); err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListMyOrders: failed to encode response: %v", err))
	}
}

// ListOrdersByEvent returns the sales for one event. Only the organizer
// of that event may see them; the optional search param narrows rows to
// orders whose buyer id contains the term.
func (h *Handler) ListOrdersByEvent(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		http.Error(w, "Unauthenticated", http.StatusUnauthorized)
		return
	}

	eventID := chi.URLParam(r, "eventId")
	search := r.URL.Query().Get("search")

	rows, err := h.OrderService.OrdersByEvent(r.Context(), userID, eventID, search)
	if err != nil {
		switch {
		case errors.Is(err, order.ErrEventNotFound):
			http.Error(w, "Event not found", http.StatusNotFound)
		case errors.Is(err, order.ErrForbidden):
			http.Error(w, "Only the event organizer can view its orders", http.StatusForbidden)
		default:
			h.Logger.Error("API", fmt.Sprintf("ListOrdersByEvent: %v", err))
			http.Error(w, "Could not load orders: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(rows); err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListOrdersByEvent: failed to encode response: %v", err))
	}
}

// GetOrderQR streams a PNG QR code for one of the caller's orders.
func (h *Handler) GetOrderQR(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		http.Error(w, "Unauthenticated", http.StatusUnauthorized)
		return
	}

	orderID := chi.URLParam(r, "orderId")

	orderData, err := h.OrderService.GetOrderForBuyer(r.Context(), userID, orderID)
	if err != nil {
		switch {
		case errors.Is(err, order.ErrNotFound):
			http.Error(w, "Order not found", http.StatusNotFound)
		case errors.Is(err, order.ErrForbidden):
			http.Error(w, "Order belongs to another buyer", http.StatusForbidden)
		default:
			h.Logger.Error("API", fmt.Sprintf("GetOrderQR: %v", err))
			http.Error(w, "Could not load order: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}

	png, err := h.QR.GenerateEncryptedQR(*orderData)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetOrderQR: failed to generate QR: %v", err))
		http.Error(w, "Could not generate QR code", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if _, err := w.Write(png); err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetOrderQR: failed to write response: %v", err))
	}
}

// CheckInTicket decrypts a scanned ticket and confirms it against the
// live order. The scanner posts the opaque string read from the QR code;
// only the event's organizer can check tickets in.
func (h *Handler) CheckInTicket(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		http.Error(w, "Unauthenticated", http.StatusUnauthorized)
		return
	}

	var req struct {
		Ticket string `json:"ticket"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Ticket == "" {
		http.Error(w, "Missing ticket payload", http.StatusBadRequest)
		return
	}

	payload, err := h.QR.DecryptPayload(req.Ticket)
	if err != nil {
		http.Error(w, "Invalid ticket", http.StatusBadRequest)
		return
	}

	orderData, err := h.OrderService.ValidateTicket(r.Context(), userID, payload.OrderID, payload.EventID)
	if err != nil {
		switch {
		case errors.Is(err, order.ErrNotFound):
			http.Error(w, "Ticket does not match any order", http.StatusNotFound)
		case errors.Is(err, order.ErrEventNotFound):
			http.Error(w, "Event not found", http.StatusNotFound)
		case errors.Is(err, order.ErrForbidden):
			http.Error(w, "Only the event organizer can check in tickets", http.StatusForbidden)
		default:
			h.Logger.Error("API", fmt.Sprintf("CheckInTicket: %v", err))
			http.Error(w, "Could not validate ticket: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(orderData); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CheckInTicket: failed to encode response: %v", err))
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
