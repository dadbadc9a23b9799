package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/moodlocation/apiserver/internal/services"
	"github.com/moodlocation/apiserver/types"
)

// HistoryHandler serves the visit history endpoints.
type HistoryHandler struct {
	historyService *services.HistoryService
	logger         *slog.Logger
}

func NewHistoryHandler(historyService *services.HistoryService, logger *slog.Logger) *HistoryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryHandler{
		historyService: historyService,
		logger:         logger,
	}
}

// HistoryRouter registers history routes on the given router.
func HistoryRouter(r chi.Router, historyService *services.HistoryService, logger *slog.Logger) {
	handler := NewHistoryHandler(historyService, logger)

	r.Post("/", handler.RecordVisit)
	r.Get("/{userID}", handler.ListVisits)
}

func (h *HistoryHandler) RecordVisit(w http.ResponseWriter, r *http.Request) {
	var req services.HistoryInput
	if err := decodeBody(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	entry, err := h.historyService.Record(r.Context(), req)
	if err != nil {
		var validationErr *services.ValidationError
		if errors.As(err, &validationErr) {
			writeError(w, http.StatusBadRequest, validationErr.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "record history failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save history")
		return
	}

	writeJSON(w, http.StatusCreated, HistoryCreatedResponse{
		Message: "history saved",
		Data:    entry,
	})
}

func (h *HistoryHandler) ListVisits(w http.ResponseWriter, r *http.Request) {
	entries, err := h.historyService.ListByUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list history failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch history")
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

// HistoryCreatedResponse acknowledges a recorded visit.
type HistoryCreatedResponse struct {
	Message string             `json:"message"`
	Data    types.HistoryEntry `json:"data"`
}
