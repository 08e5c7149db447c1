/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/employees/*      Employee master data, assignments, loans, settlements
  /api/components/*     Salary component catalog
  /api/periods/*        Period lifecycle, calculation, results, SIF export
  /api/loans/*          Loan creation and lookup
  /api/settlements/*    Final settlement lifecycle
  /api/attendance/*     Attendance summary ingestion
  /api/approvals/*      Change request workflow
  /api/scenarios/*      Demo scenarios

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Employee routes
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}", h.GetEmployee)
			r.Post("/{id}/components", h.AssignComponent)
			r.Get("/{id}/components/{componentID}", h.GetComponentHistory)
			r.Get("/{id}/components/{componentID}/resolve", h.ResolveComponent)
			r.Post("/{id}/components/{componentID}/supersede", h.SupersedeComponent)
			r.Get("/{id}/loans", h.ListEmployeeLoans)
			r.Get("/{id}/settlements", h.ListEmployeeSettlements)
		})

		// Component catalog routes
		r.Route("/components", func(r chi.Router) {
			r.Get("/", h.ListComponents)
			r.Post("/", h.CreateComponent)
		})

		// Period lifecycle and calculation routes
		r.Route("/periods", func(r chi.Router) {
			r.Get("/", h.ListPeriods)
			r.Post("/", h.CreatePeriod)
			r.Get("/{id}", h.GetPeriod)
			r.Post("/{id}/approve", h.ApprovePeriod)
			r.Post("/{id}/lock", h.LockPeriod)
			r.Post("/{id}/reopen", h.ReopenPeriod)
			r.Get("/{id}/audit", h.GetPeriodAudit)
			r.Post("/{id}/run", h.RunPeriod)
			r.Get("/{id}/results", h.ListResults)
			r.Get("/{id}/deductions", h.ListPeriodDeductions)
			r.Post("/{id}/employees/{employeeID}/calculate", h.CalculateEmployee)
			r.Get("/{id}/employees/{employeeID}/result", h.GetResult)
			r.Get("/{id}/sif", h.ExportSIF)
		})

		// Loan routes
		r.Route("/loans", func(r chi.Router) {
			r.Post("/", h.CreateLoan)
			r.Get("/{id}", h.GetLoan)
		})

		// Settlement routes
		r.Route("/settlements", func(r chi.Router) {
			r.Post("/", h.ComputeSettlement)
			r.Get("/{id}", h.GetSettlement)
			r.Post("/{id}/approve", h.ApproveSettlement)
			r.Post("/{id}/pay", h.PaySettlement)
		})

		// Attendance routes
		r.Route("/attendance", func(r chi.Router) {
			r.Put("/summaries", h.PutSummary)
		})

		// Scenario routes (development/demo only)
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})

		// Approval workflow routes
		r.Route("/approvals", func(r chi.Router) {
			r.Post("/", h.SubmitApproval)
			r.Get("/pending", h.ListPendingApprovals)
			r.Get("/{id}", h.GetApproval)
			r.Post("/{id}/approve", h.ApproveRequest)
			r.Post("/{id}/reject", h.RejectRequest)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
