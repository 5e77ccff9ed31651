package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/talx-hub/gopher-billpay/internal/api/dto"
	"github.com/talx-hub/gopher-billpay/internal/model"
	"github.com/talx-hub/gopher-billpay/internal/model/order"
	"github.com/talx-hub/gopher-billpay/internal/service"
	"github.com/talx-hub/gopher-billpay/internal/serviceerrs"
	"github.com/talx-hub/gopher-billpay/internal/utils/logger"
)

type batchService interface {
	Start(ctx context.Context, req service.Request) (string, error)
	Get(id string) (service.Snapshot, error)
	List() []service.Snapshot
	Stop(id string) error
}

type pendingSource interface {
	FetchPendingCodes(ctx context.Context, service order.ServiceType, limit int,
	) ([]order.PendingCode, error)
}

type BatchHandler struct {
	batches batchService
}

func NewBatchHandler(batches batchService) *BatchHandler {
	return &BatchHandler{batches: batches}
}

func (h *BatchHandler) StartBatch(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req dto.StartBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "failed to decode request", http.StatusBadRequest)
		return
	}
	if err := req.IsValid(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := h.batches.Start(r.Context(), service.Request{
		Service: order.ServiceType(req.Service),
		PIN:     req.PIN,
		Amount:  req.Amount,
		Lines:   req.AllLines(),
	})
	switch {
	case errors.Is(err, serviceerrs.ErrSessionBusy):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, serviceerrs.ErrUnknownService):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		log.LogAttrs(r.Context(), slog.LevelError, "failed to start batch",
			slog.Any(model.KeyLoggerError, err))
		http.Error(w, "failed to start batch", http.StatusInternalServerError)
		return
	}

	log.LogAttrs(r.Context(), slog.LevelInfo, "batch started",
		slog.String("id", id), slog.String("service", req.Service))
	writeJSON(r.Context(), w, http.StatusAccepted, dto.StartBatchResponse{ID: id}, log)
}

func (h *BatchHandler) ListBatches(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, h.batches.List(), logger.FromContext(r.Context()))
}

func (h *BatchHandler) GetBatch(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	snap, err := h.batches.Get(chi.URLParam(r, "id"))
	if errors.Is(err, serviceerrs.ErrBatchNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "failed to get batch", http.StatusInternalServerError)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, snap, log)
}

func (h *BatchHandler) StopBatch(w http.ResponseWriter, r *http.Request) {
	err := h.batches.Stop(chi.URLParam(r, "id"))
	if errors.Is(err, serviceerrs.ErrBatchNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "failed to stop batch", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type PendingHandler struct {
	source pendingSource
	limit  int
}

// NewPendingHandler builds the handler; a nil source answers
// 503 since pending codes live only in the order database.
func NewPendingHandler(source pendingSource, limit int) *PendingHandler {
	if limit <= 0 {
		limit = model.DefaultPendingLimit
	}
	return &PendingHandler{
		source: source,
		limit:  limit,
	}
}

func (h *PendingHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	svc, err := order.ParseServiceType(chi.URLParam(r, "service"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if h.source == nil {
		http.Error(w, "order database is not configured", http.StatusServiceUnavailable)
		return
	}

	limit := h.limit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive number", http.StatusBadRequest)
			return
		}
		limit = n
	}

	codes, err := h.source.FetchPendingCodes(r.Context(), svc, limit)
	if err != nil {
		log.LogAttrs(r.Context(), slog.LevelError, "failed to fetch pending codes",
			slog.Any(model.KeyLoggerError, err))
		http.Error(w, "failed to fetch pending codes", http.StatusInternalServerError)
		return
	}

	resp := make([]dto.PendingCodeResponse, 0, len(codes))
	for _, c := range codes {
		resp = append(resp, dto.NewPendingCodeResponse(c))
	}
	writeJSON(r.Context(), w, http.StatusOK, resp, log)
}

// Check reports whether one dependency is healthy.
type Check func(ctx context.Context) error

type HealthHandler struct {
	checks []Check
}

func NewHealthHandler(checks ...Check) *HealthHandler {
	return &HealthHandler{checks: checks}
}

func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	for _, check := range h.checks {
		if err := check(r.Context()); err != nil {
			log.LogAttrs(r.Context(), slog.LevelError, "health check failed",
				slog.Any(model.KeyLoggerError, err))
			http.Error(w, "unhealthy", http.StatusInternalServerError)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}

func writeJSON(ctx context.Context, w http.ResponseWriter, code int, v any, log *slog.Logger) {
	w.Header().Set(model.HeaderContentType, "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.LogAttrs(ctx, slog.LevelError, "failed to encode response",
			slog.Any(model.KeyLoggerError, err))
	}
}
