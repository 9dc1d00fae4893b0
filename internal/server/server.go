package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/calluna/rewardbox/internal/catalog"
	"github.com/calluna/rewardbox/internal/handler"
	"github.com/calluna/rewardbox/internal/middleware"
	"github.com/calluna/rewardbox/internal/redeem"
	"github.com/calluna/rewardbox/internal/store"
	ws "github.com/calluna/rewardbox/internal/websocket"
)

// Config holds the server knobs read from the environment by main.
type Config struct {
	// AdminKeyHash is the bcrypt hash of the admin API key. Empty disables
	// the administrative surface.
	AdminKeyHash string
	// RedeemRetries bounds conflict retries per redemption attempt.
	RedeemRetries int
	// CatalogTTL bounds how stale the cached catalog browse may get.
	CatalogTTL time.Duration
}

type Server struct {
	db           *sql.DB
	hub          *ws.Hub
	rewardH      *handler.RewardHandler
	redemptionH  *handler.RedemptionHandler
	profileH     *handler.ProfileHandler
	rateLimiter  *middleware.RateLimiter
	adminKeyHash string
	logger       *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	rewardStore := store.NewRewardStore(db)
	profileStore := store.NewProfileStore(db)
	redemptionStore := store.NewRedemptionStore(db)

	cache := catalog.NewCache(rewardStore, cfg.CatalogTTL)
	engine := redeem.NewEngine(db, rewardStore, profileStore, redemptionStore,
		cfg.RedeemRetries, logger.With("component", "engine"))

	return &Server{
		db:           db,
		hub:          hub,
		rewardH:      handler.NewRewardHandler(rewardStore, cache, hub, logger.With("component", "reward")),
		redemptionH:  handler.NewRedemptionHandler(engine, redemptionStore, hub, logger.With("component", "redemption")),
		profileH:     handler.NewProfileHandler(profileStore, engine, logger.With("component", "profile")),
		rateLimiter:  middleware.NewRateLimiter(),
		adminKeyHash: cfg.AdminKeyHash,
		logger:       logger,
	}
}

// RateLimiter returns the limiter for periodic cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))

	// User routes — caller identity comes from the trusted gateway header.
	userMux := http.NewServeMux()
	s.registerUserRoutes(userMux)
	outerMux.Handle("/api/", middleware.RequireUser(userMux))

	// Admin routes — gated by the bearer key.
	adminMux := http.NewServeMux()
	s.registerAdminRoutes(adminMux)
	outerMux.Handle("/api/admin/", middleware.RequireAdmin(s.adminKeyHash)(adminMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) registerUserRoutes(mux *http.ServeMux) {
	// Catalog
	mux.HandleFunc("GET /api/rewards", s.rewardH.List)
	mux.HandleFunc("GET /api/rewards/{id}", s.rewardH.Get)

	// Redemption — rate-limited per user: rapid repeat clicks are the main
	// self-inflicted contention source.
	mux.Handle("POST /api/rewards/{id}/redeem", s.redeemRateLimit(s.redemptionH.Redeem))

	mux.HandleFunc("GET /api/redemptions", s.redemptionH.ListMine)
	mux.HandleFunc("GET /api/redemptions/{id}", s.redemptionH.Get)
	mux.HandleFunc("POST /api/redemptions/{id}/cancel", s.redemptionH.Cancel)
	mux.HandleFunc("POST /api/redemptions/{id}/received", s.redemptionH.ConfirmReceived)

	// Profile
	mux.HandleFunc("GET /api/me/balance", s.profileH.Balance)
	mux.HandleFunc("GET /api/me/ledger", s.profileH.Ledger)
	mux.HandleFunc("GET /api/me/entitlements", s.profileH.Entitlements)
	mux.HandleFunc("GET /api/me/boosts", s.profileH.Boosts)
}

func (s *Server) registerAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/admin/rewards", s.rewardH.Create)
	mux.HandleFunc("GET /api/admin/rewards", s.rewardH.ListAll)
	mux.HandleFunc("PUT /api/admin/rewards/{id}", s.rewardH.Update)
	mux.HandleFunc("DELETE /api/admin/rewards/{id}", s.rewardH.Deactivate)

	mux.HandleFunc("GET /api/admin/redemptions", s.redemptionH.ListByStatus)
	mux.HandleFunc("POST /api/admin/redemptions/{id}/advance", s.redemptionH.Advance)
	mux.HandleFunc("POST /api/admin/redemptions/{id}/refund", s.redemptionH.Refund)

	mux.HandleFunc("POST /api/admin/users/{id}/exp", s.profileH.GrantExp)
	mux.HandleFunc("PUT /api/admin/users/{id}/level", s.profileH.SetLevel)

	mux.HandleFunc("POST /api/admin/repair", s.redemptionH.Repair)
}

func (s *Server) redeemRateLimit(h http.HandlerFunc) http.Handler {
	keyFunc := func(r *http.Request) string {
		return r.Header.Get("X-User-ID")
	}
	return middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)(http.HandlerFunc(h))
}
