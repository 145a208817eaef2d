package handlers

import "net/http"

// Handlers groups every handler the router serves
type Handlers struct {
	Profile *ProfileHandler
	Family  *FamilyHandler
	Ledger  *LedgerHandler
	Events  *EventsHandler
	Admin   *AdminHandler
}

// RegisterRoutes wires the JSON API onto mux
func RegisterRoutes(mux *http.ServeMux, h Handlers, middleware *Middleware) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Profile
	mux.HandleFunc("GET /api/me", middleware.RequireAuth(h.Profile.Me))
	mux.HandleFunc("PATCH /api/me", middleware.RequireAuth(h.Profile.UpdateMe))
	mux.HandleFunc("GET /api/me/partner", middleware.RequireAuth(h.Profile.Partner))

	// Pairing
	mux.HandleFunc("POST /api/families", middleware.RequireAuth(h.Family.CreateFamily))
	mux.HandleFunc("GET /api/families/{id}", middleware.RequireAuth(h.Family.GetFamily))
	mux.HandleFunc("GET /api/families/{id}/members", middleware.RequireAuth(h.Family.ListMembers))
	mux.HandleFunc("GET /api/families/{id}/join-requests", middleware.RequireAuth(h.Family.ListJoinRequests))
	mux.HandleFunc("POST /api/join-requests", middleware.RequireAuth(h.Family.RequestJoin))
	mux.HandleFunc("POST /api/join-requests/{id}/approve", middleware.RequireAuth(h.Family.ApproveRequest))
	mux.HandleFunc("POST /api/join-requests/{id}/decline", middleware.RequireAuth(h.Family.DeclineRequest))

	// Ledger
	mux.HandleFunc("POST /api/families/{id}/expenses", middleware.RequireAuth(h.Ledger.RecordExpense))
	mux.HandleFunc("GET /api/families/{id}/expenses", middleware.RequireAuth(h.Ledger.ListExpenses))
	mux.HandleFunc("GET /api/families/{id}/settle-up", middleware.RequireAuth(h.Ledger.SettleUp))
	mux.HandleFunc("POST /api/families/{id}/goals", middleware.RequireAuth(h.Ledger.CreateGoal))
	mux.HandleFunc("GET /api/families/{id}/goals", middleware.RequireAuth(h.Ledger.ListGoals))
	mux.HandleFunc("GET /api/goals/{id}", middleware.RequireAuth(h.Ledger.GetGoal))
	mux.HandleFunc("POST /api/goals/{id}/contributions", middleware.RequireAuth(h.Ledger.Contribute))

	// Realtime
	mux.HandleFunc("GET /api/events", middleware.RequireAuth(h.Events.Stream))

	// Admin
	mux.HandleFunc("POST /admin/reset", middleware.RequireAdmin(h.Admin.Reset))
	mux.HandleFunc("GET /admin/families", middleware.RequireAdmin(h.Admin.ListFamilies))
	mux.HandleFunc("POST /admin/families", middleware.RequireAdmin(h.Admin.CreateFamily))
	mux.HandleFunc("GET /admin/families/{id}/settle-up", middleware.RequireAdmin(h.Admin.SettleUp))
	mux.HandleFunc("POST /admin/users", middleware.RequireAdmin(h.Admin.CreateUser))
	mux.HandleFunc("POST /admin/link-partners", middleware.RequireAdmin(h.Admin.LinkPartners))
	mux.HandleFunc("POST /admin/expire-requests", middleware.RequireAdmin(h.Admin.ExpireRequests))
	mux.HandleFunc("GET /admin/export", middleware.RequireAdmin(h.Admin.ExportDatabase))
	mux.HandleFunc("POST /admin/import", middleware.RequireAdmin(h.Admin.ImportDatabase))
}

// NewRouter returns the full handler chain: logging, rate limiting, routes
func NewRouter(h Handlers, middleware *Middleware) http.Handler {
	mux := http.NewServeMux()
	RegisterRoutes(mux, h, middleware)
	return middleware.Logging(middleware.RateLimit(mux))
}
