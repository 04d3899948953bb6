package routes

import (
	"context"
	"net/http"

	"grievance/handler"
	"grievance/middleware"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger reports database health
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps are the handlers and settings the router is built from
type Deps struct {
	Complaints  *handler.ComplaintHandler
	Escalations *handler.EscalationHandler
	AdminToken  string
	JWTSecret   string
	DB          Pinger
	Gatherer    prometheus.Gatherer
}

// SetupRoutes configures all API routes
func SetupRoutes(d Deps) *mux.Router {
	router := mux.NewRouter()
	authMiddleware := middleware.NewAuthMiddleware(d.JWTSecret)

	apiV1 := router.PathPrefix("/api/v1").Subrouter()

	// Complaint routes (user JWT)
	complaints := apiV1.PathPrefix("/complaints").Subrouter()
	complaints.Use(authMiddleware.RequireAuth)
	complaints.HandleFunc("", d.Complaints.CreateComplaint).Methods("POST")
	complaints.HandleFunc("/{id}", d.Complaints.GetComplaint).Methods("GET")
	complaints.HandleFunc("/{id}/escalations", d.Complaints.GetHistory).Methods("GET")

	// Admin routes (ADMIN_TOKEN)
	admin := apiV1.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.RequireAdminAuth(d.AdminToken))
	admin.HandleFunc("/escalations/process", d.Escalations.ProcessEscalations).Methods("POST")
	admin.HandleFunc("/escalations/trigger", d.Escalations.TriggerEscalations).Methods("POST")
	admin.HandleFunc("/escalations/stats", d.Escalations.GetStats).Methods("GET")
	admin.HandleFunc("/complaints/escalated", d.Escalations.ListEscalated).Methods("GET")
	admin.HandleFunc("/complaints/{id}/escalate", d.Escalations.ManualEscalate).Methods("POST")
	admin.HandleFunc("/complaints/{id}/status", d.Complaints.UpdateStatus).Methods("PATCH")
	admin.HandleFunc("/escalation-configs", d.Escalations.ListConfigs).Methods("GET")
	admin.HandleFunc("/escalation-configs/{level}", d.Escalations.SaveConfig).Methods("PUT")
	admin.HandleFunc("/escalation-configs/{level}", d.Escalations.DeleteConfig).Methods("DELETE")

	if d.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if d.DB != nil {
			if err := d.DB.PingContext(r.Context()); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods("GET")

	return router
}

// CORS allows browser clients on any origin
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
