package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/brahimbus/FcmControll/internal/model"
	"github.com/brahimbus/FcmControll/internal/service"
)

// Notifier is the lifecycle surface the handlers expose over HTTP.
type Notifier interface {
	SendNow(ctx context.Context, content string) (service.DispatchResult, error)
	CreateScheduled(ctx context.Context, req service.ScheduleRequest) (int64, error)
	Cancel(ctx context.Context, id int64) error
	ListActive(ctx context.Context) ([]model.ScheduledMessage, error)
	History(ctx context.Context) ([]model.HistoryEntry, error)
}

type Handler struct {
	notifier Notifier
}

func NewHandler(n Notifier) *Handler {
	return &Handler{notifier: n}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) SendNow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := h.notifier.SendNow(r.Context(), req.Content)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Delivery failure is still a 200: the operation completed and the
	// outcome is in the payload.
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) Schedule(w http.ResponseWriter, r *http.Request) {
	var req service.ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	id, err := h.notifier.CreateScheduled(r.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "id": id})
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be an integer")
		return
	}

	if err := h.notifier.Cancel(r.Context(), id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "success"})
}

func (h *Handler) Messages(w http.ResponseWriter, r *http.Request) {
	items, err := h.notifier.ListActive(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []model.ScheduledMessage{}
	}

	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	items, err := h.notifier.History(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []model.HistoryEntry{}
	}

	writeJSON(w, http.StatusOK, items)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"status": "error", "error": msg})
}
