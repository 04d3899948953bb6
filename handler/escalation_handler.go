package handler

import (
	"context"
	"net/http"
	"strconv"

	"grievance/models"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// EscalationService is the engine API the handler needs
type EscalationService interface {
	ProcessEscalations(ctx context.Context) (*models.PassReport, error)
	ManuallyEscalate(ctx context.Context, complaintID int64, targetLevel int, reason string) (*models.Complaint, error)
	GetEscalationStats(ctx context.Context) (*models.EscalationStats, error)
	ListEscalated(ctx context.Context) ([]models.Complaint, error)
	ListConfigs(ctx context.Context) ([]models.EscalationConfig, error)
	SaveConfig(ctx context.Context, cfg *models.EscalationConfig) error
	DeleteConfig(ctx context.Context, level int) error
}

// PassTrigger queues a pass on the background worker
type PassTrigger interface {
	Trigger()
}

// EscalationHandler handles HTTP requests for escalation operations
type EscalationHandler struct {
	service EscalationService
	trigger PassTrigger
	logger  *zap.Logger
}

// NewEscalationHandler creates a new escalation handler. trigger may be nil
// when no background worker runs.
func NewEscalationHandler(service EscalationService, trigger PassTrigger, logger *zap.Logger) *EscalationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EscalationHandler{service: service, trigger: trigger, logger: logger.Named("http")}
}

// ProcessEscalations handles POST /api/v1/admin/escalations/process
// Runs one scan pass synchronously and returns its report.
func (h *EscalationHandler) ProcessEscalations(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.ProcessEscalations(r.Context())
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, report)
}

// TriggerEscalations handles POST /api/v1/admin/escalations/trigger
// Queues a pass on the worker and returns without waiting for it.
func (h *EscalationHandler) TriggerEscalations(w http.ResponseWriter, r *http.Request) {
	if h.trigger == nil {
		respondWithError(w, http.StatusServiceUnavailable, "Worker disabled", "The escalation worker is not running")
		return
	}
	h.trigger.Trigger()
	respondWithJSON(w, http.StatusAccepted, map[string]string{"message": "Escalation pass queued"})
}

// GetStats handles GET /api/v1/admin/escalations/stats
func (h *EscalationHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetEscalationStats(r.Context())
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}

// ListEscalated handles GET /api/v1/admin/complaints/escalated
func (h *EscalationHandler) ListEscalated(w http.ResponseWriter, r *http.Request) {
	complaints, err := h.service.ListEscalated(r.Context())
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.NewComplaintResponses(complaints))
}

// ManualEscalate handles POST /api/v1/admin/complaints/{id}/escalate
func (h *EscalationHandler) ManualEscalate(w http.ResponseWriter, r *http.Request) {
	complaintID, ok := pathInt64(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid request", "Invalid complaint ID")
		return
	}
	var req models.ManualEscalationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request", "Invalid JSON body")
		return
	}

	complaint, err := h.service.ManuallyEscalate(r.Context(), complaintID, req.TargetLevel, req.Reason)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.NewComplaintResponse(complaint))
}

// ListConfigs handles GET /api/v1/admin/escalation-configs
func (h *EscalationHandler) ListConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := h.service.ListConfigs(r.Context())
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, configs)
}

// SaveConfig handles PUT /api/v1/admin/escalation-configs/{level}
// The level in the path wins over any level in the body.
func (h *EscalationHandler) SaveConfig(w http.ResponseWriter, r *http.Request) {
	level, ok := pathLevel(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid request", "Invalid level")
		return
	}
	cfg := models.EscalationConfig{Active: true}
	if err := decodeJSON(r, &cfg); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request", "Invalid JSON body")
		return
	}
	cfg.Level = level

	if err := h.service.SaveConfig(r.Context(), &cfg); err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, cfg)
}

// DeleteConfig handles DELETE /api/v1/admin/escalation-configs/{level}
func (h *EscalationHandler) DeleteConfig(w http.ResponseWriter, r *http.Request) {
	level, ok := pathLevel(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid request", "Invalid level")
		return
	}
	if err := h.service.DeleteConfig(r.Context(), level); err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathLevel(r *http.Request) (int, bool) {
	level, err := strconv.Atoi(mux.Vars(r)["level"])
	if err != nil || level < 1 {
		return 0, false
	}
	return level, true
}
