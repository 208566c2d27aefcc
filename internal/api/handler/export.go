package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mkessler/libmirror/internal/domain"
	"github.com/mkessler/libmirror/internal/service"
)

// ExportHandler handles export-related HTTP requests.
type ExportHandler struct {
	exportSvc *service.ExportService
	logger    *slog.Logger
}

// NewExportHandler creates a new export handler.
func NewExportHandler(exportSvc *service.ExportService, logger *slog.Logger) *ExportHandler {
	return &ExportHandler{
		exportSvc: exportSvc,
		logger:    logger,
	}
}

// ExportStartRequest is the request body for starting an export.
type ExportStartRequest struct {
	RootCollection string          `json:"root_collection"`
	Mask           domain.PathMask `json:"mask,omitempty"`
	OutputRoot     string          `json:"output_root,omitempty"`
}

// ExportStartResponse is the response for starting an export.
type ExportStartResponse struct {
	RunID   string `json:"run_id,omitempty"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Start begins an export run.
func (h *ExportHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req ExportStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	if req.RootCollection == "" {
		http.Error(w, `{"error": "root_collection is required"}`, http.StatusBadRequest)
		return
	}

	opts := service.ExportOptions{
		RootCollection: req.RootCollection,
		Mask:           req.Mask,
		OutputRoot:     req.OutputRoot,
	}

	runID, err := h.exportSvc.StartAsync(opts)
	if err != nil {
		if errors.Is(err, domain.ErrExportInProgress) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(ExportStartResponse{
				Status:  "conflict",
				Message: "an export is already in progress",
			})
			return
		}
		h.logger.Error("failed to start export", "error", err)
		http.Error(w, `{"error": "failed to start export"}`, http.StatusInternalServerError)
		return
	}

	h.logger.Info("export started", "run_id", runID, "collection", req.RootCollection)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(ExportStartResponse{
		RunID:  runID,
		Status: "started",
	})
}

// Status reports the current or most recent run.
func (h *ExportHandler) Status(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.exportSvc.Status())
}

// Cancel stops the active run.
func (h *ExportHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.exportSvc.Cancel(); err != nil {
		if errors.Is(err, service.ErrNoActiveRun) {
			http.Error(w, `{"error": "no active export"}`, http.StatusConflict)
			return
		}
		h.logger.Error("failed to cancel export", "error", err)
		http.Error(w, `{"error": "failed to cancel export"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "cancelling"})
}
