package routes

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"grievance/handler"
	"grievance/metrics"
	"grievance/models"
	"grievance/utils"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubServices struct{}

func (stubServices) CreateComplaint(ctx context.Context, userID int64, req *models.CreateComplaintRequest) (*models.Complaint, error) {
	return &models.Complaint{ComplaintID: 1, UserID: userID, Title: req.Title}, nil
}

func (stubServices) GetComplaint(ctx context.Context, complaintID int64) (*models.Complaint, error) {
	return &models.Complaint{ComplaintID: complaintID, UserID: 42}, nil
}

func (stubServices) UpdateStatus(ctx context.Context, complaintID int64, req *models.UpdateStatusRequest) (*models.Complaint, error) {
	return &models.Complaint{ComplaintID: complaintID, Status: req.Status}, nil
}

func (stubServices) GetHistory(ctx context.Context, complaintID int64) ([]models.EscalationHistory, error) {
	return []models.EscalationHistory{}, nil
}

func (stubServices) ProcessEscalations(ctx context.Context) (*models.PassReport, error) {
	return &models.PassReport{PassID: "p"}, nil
}

func (stubServices) ManuallyEscalate(ctx context.Context, complaintID int64, targetLevel int, reason string) (*models.Complaint, error) {
	return &models.Complaint{ComplaintID: complaintID}, nil
}

func (stubServices) GetEscalationStats(ctx context.Context) (*models.EscalationStats, error) {
	return &models.EscalationStats{EscalationRate: "0%"}, nil
}

func (stubServices) ListEscalated(ctx context.Context) ([]models.Complaint, error) {
	return nil, nil
}

func (stubServices) ListConfigs(ctx context.Context) ([]models.EscalationConfig, error) {
	return []models.EscalationConfig{}, nil
}

func (stubServices) SaveConfig(ctx context.Context, cfg *models.EscalationConfig) error { return nil }

func (stubServices) DeleteConfig(ctx context.Context, level int) error { return nil }

type pinger struct{ err error }

func (p pinger) PingContext(ctx context.Context) error { return p.err }

func newRouter(t *testing.T, db Pinger) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	m.IncEscalated("auto")
	return CORS(SetupRoutes(Deps{
		Complaints:  handler.NewComplaintHandler(stubServices{}, stubServices{}, nil),
		Escalations: handler.NewEscalationHandler(stubServices{}, nil, nil),
		AdminToken:  "admin-token",
		JWTSecret:   "jwt-secret",
		DB:          db,
		Gatherer:    reg,
	}))
}

func serve(h http.Handler, method, path, auth, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestComplaintRoutesRequireJWT(t *testing.T) {
	router := newRouter(t, pinger{})
	token, err := utils.GenerateJWT(42, []byte("jwt-secret"), time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/api/v1/complaints/5", "", "").Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/v1/complaints/5", "Bearer "+token, "").Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/v1/complaints/5/escalations", "Bearer "+token, "").Code)
	assert.Equal(t, http.StatusCreated, serve(router, http.MethodPost, "/api/v1/complaints", "Bearer "+token, `{"title":"a","description":"b"}`).Code)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	router := newRouter(t, pinger{})

	assert.Equal(t, http.StatusForbidden, serve(router, http.MethodPost, "/api/v1/admin/escalations/process", "", "").Code)
	assert.Equal(t, http.StatusForbidden, serve(router, http.MethodPost, "/api/v1/admin/escalations/process", "Bearer wrong", "").Code)

	admin := "Bearer admin-token"
	assert.Equal(t, http.StatusOK, serve(router, http.MethodPost, "/api/v1/admin/escalations/process", admin, "").Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/v1/admin/escalations/stats", admin, "").Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/v1/admin/complaints/escalated", admin, "").Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodPost, "/api/v1/admin/complaints/5/escalate", admin, `{"target_level":1}`).Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodPatch, "/api/v1/admin/complaints/5/status", admin, `{"status":"RESOLVED"}`).Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/v1/admin/escalation-configs", admin, "").Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodPut, "/api/v1/admin/escalation-configs/2", admin, `{"assignee_role":"X"}`).Code)
	assert.Equal(t, http.StatusNoContent, serve(router, http.MethodDelete, "/api/v1/admin/escalation-configs/2", admin, "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(router, http.MethodPost, "/api/v1/admin/escalations/trigger", admin, "").Code)
	assert.Equal(t, http.StatusForbidden, serve(router, http.MethodPost, "/api/v1/admin/escalations/trigger", "", "").Code)
}

func TestHealthAndMetrics(t *testing.T) {
	rec := serve(newRouter(t, pinger{}), http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = serve(newRouter(t, pinger{err: errors.New("gone")}), http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serve(newRouter(t, pinger{}), http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `grievance_complaints_escalated_total{mode="auto"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	rec := serve(newRouter(t, pinger{}), http.MethodOptions, "/api/v1/complaints", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}
