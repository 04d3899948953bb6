package handler

import (
	"context"
	"net/http"

	"grievance/middleware"
	"grievance/models"

	"go.uber.org/zap"
)

// ComplaintService is the lifecycle API the handler needs
type ComplaintService interface {
	CreateComplaint(ctx context.Context, userID int64, req *models.CreateComplaintRequest) (*models.Complaint, error)
	GetComplaint(ctx context.Context, complaintID int64) (*models.Complaint, error)
	UpdateStatus(ctx context.Context, complaintID int64, req *models.UpdateStatusRequest) (*models.Complaint, error)
}

// HistoryReader reads escalation history
type HistoryReader interface {
	GetHistory(ctx context.Context, complaintID int64) ([]models.EscalationHistory, error)
}

// ComplaintHandler handles HTTP requests for complaints
type ComplaintHandler struct {
	service ComplaintService
	history HistoryReader
	logger  *zap.Logger
}

// NewComplaintHandler creates a new complaint handler
func NewComplaintHandler(service ComplaintService, history HistoryReader, logger *zap.Logger) *ComplaintHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ComplaintHandler{service: service, history: history, logger: logger.Named("http")}
}

// CreateComplaint handles POST /api/v1/complaints
func (h *ComplaintHandler) CreateComplaint(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized", "User ID not found in context")
		return
	}

	var req models.CreateComplaintRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request", "Invalid JSON body")
		return
	}

	complaint, err := h.service.CreateComplaint(r.Context(), userID, &req)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, models.NewComplaintResponse(complaint))
}

// GetComplaint handles GET /api/v1/complaints/{id}
// Only the creator can read a complaint; others get 404.
func (h *ComplaintHandler) GetComplaint(w http.ResponseWriter, r *http.Request) {
	complaint, ok := h.ownedComplaint(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, models.NewComplaintResponse(complaint))
}

// GetHistory handles GET /api/v1/complaints/{id}/escalations
func (h *ComplaintHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	complaint, ok := h.ownedComplaint(w, r)
	if !ok {
		return
	}
	history, err := h.history.GetHistory(r.Context(), complaint.ComplaintID)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, history)
}

// UpdateStatus handles PATCH /api/v1/admin/complaints/{id}/status
func (h *ComplaintHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	complaintID, ok := pathInt64(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid request", "Invalid complaint ID")
		return
	}
	var req models.UpdateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request", "Invalid JSON body")
		return
	}

	complaint, err := h.service.UpdateStatus(r.Context(), complaintID, &req)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.NewComplaintResponse(complaint))
}

func (h *ComplaintHandler) ownedComplaint(w http.ResponseWriter, r *http.Request) (*models.Complaint, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized", "User ID not found in context")
		return nil, false
	}
	complaintID, ok := pathInt64(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid request", "Invalid complaint ID")
		return nil, false
	}

	complaint, err := h.service.GetComplaint(r.Context(), complaintID)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return nil, false
	}
	if complaint.UserID != userID {
		respondWithError(w, http.StatusNotFound, "Not found", "complaint not found")
		return nil, false
	}
	return complaint, true
}
