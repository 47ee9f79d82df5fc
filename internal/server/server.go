package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/choreledger/internal/handler"
	"github.com/dukerupert/choreledger/internal/middleware"
	"github.com/dukerupert/choreledger/internal/orchestrator"
	"github.com/dukerupert/choreledger/internal/store"
	ws "github.com/dukerupert/choreledger/internal/websocket"
)

type Config struct {
	WriteLimit  int
	WriteWindow time.Duration
}

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	cfg         Config
	memberH     *handler.MemberHandler
	taskH       *handler.TaskHandler
	assignmentH *handler.AssignmentHandler
	rewardH     *handler.RewardHandler
	redemptionH *handler.RedemptionHandler
	pointsH     *handler.PointsHandler
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	if cfg.WriteLimit <= 0 {
		cfg.WriteLimit = 60
	}
	if cfg.WriteWindow <= 0 {
		cfg.WriteWindow = time.Minute
	}

	hub := ws.NewHub(logger)
	svc := orchestrator.New(store.NewDB(db), hub, logger)
	httpLogger := logger.With("component", "http")

	return &Server{
		db:          db,
		hub:         hub,
		cfg:         cfg,
		memberH:     handler.NewMemberHandler(svc, httpLogger),
		taskH:       handler.NewTaskHandler(svc, httpLogger),
		assignmentH: handler.NewAssignmentHandler(svc, httpLogger),
		rewardH:     handler.NewRewardHandler(svc, httpLogger),
		redemptionH: handler.NewRedemptionHandler(svc, httpLogger),
		pointsH:     handler.NewPointsHandler(svc, httpLogger),
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Hub returns the websocket hub that receives committed events.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger))

	// Members
	mux.HandleFunc("GET /api/members", s.memberH.List)
	mux.HandleFunc("POST /api/members", s.limited(s.memberH.Create))
	mux.HandleFunc("DELETE /api/members/{id}", s.limited(s.memberH.Delete))

	// Tasks and assignments
	mux.HandleFunc("GET /api/tasks", s.taskH.List)
	mux.HandleFunc("POST /api/tasks", s.limited(s.taskH.Create))
	mux.HandleFunc("PUT /api/tasks/{id}", s.limited(s.taskH.Update))
	mux.HandleFunc("DELETE /api/tasks/{id}", s.limited(s.taskH.Delete))
	mux.HandleFunc("POST /api/tasks/{id}/assignments", s.limited(s.taskH.Assign))
	mux.HandleFunc("GET /api/assignments/{id}", s.assignmentH.Get)
	mux.HandleFunc("GET /api/members/{id}/assignments", s.assignmentH.ListForChild)
	mux.HandleFunc("POST /api/assignments/{id}/submit", s.limited(s.assignmentH.Submit))
	mux.HandleFunc("POST /api/assignments/{id}/review", s.limited(s.assignmentH.Review))
	mux.HandleFunc("POST /api/assignments/{id}/archive", s.limited(s.assignmentH.Archive))

	// Rewards and redemptions
	mux.HandleFunc("GET /api/rewards", s.rewardH.List)
	mux.HandleFunc("POST /api/rewards", s.limited(s.rewardH.Create))
	mux.HandleFunc("PUT /api/rewards/{id}", s.limited(s.rewardH.Update))
	mux.HandleFunc("GET /api/rewards/{id}/inventory", s.rewardH.Inventory)
	mux.HandleFunc("PUT /api/rewards/{id}/stock", s.limited(s.rewardH.SetStock))
	mux.HandleFunc("POST /api/rewards/{id}/redemptions", s.limited(s.rewardH.Redeem))
	mux.HandleFunc("GET /api/redemptions/pending", s.redemptionH.Pending)
	mux.HandleFunc("GET /api/redemptions/{id}", s.redemptionH.Get)
	mux.HandleFunc("GET /api/members/{id}/redemptions", s.redemptionH.ListForChild)
	mux.HandleFunc("POST /api/redemptions/{id}/review", s.limited(s.redemptionH.Review))
	mux.HandleFunc("POST /api/redemptions/{id}/cancel", s.limited(s.redemptionH.Cancel))
	mux.HandleFunc("POST /api/redemptions/{id}/refund", s.limited(s.redemptionH.Refund))

	// Points
	mux.HandleFunc("GET /api/members/{id}/points", s.pointsH.Balance)
	mux.HandleFunc("GET /api/members/{id}/points/history", s.pointsH.History)
	mux.HandleFunc("GET /api/members/{id}/points/reconcile", s.pointsH.Reconcile)
	mux.HandleFunc("POST /api/members/{id}/points/adjust", s.limited(s.pointsH.Adjust))
	mux.HandleFunc("GET /api/leaderboard", s.pointsH.Leaderboard)

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
		return
	}
	json.NewEncoder(w).Encode(map[string]any{"status": "ok", "clients": s.hub.ClientCount()})
}

func (s *Server) limited(h http.HandlerFunc) http.HandlerFunc {
	return middleware.RateLimit(s.rateLimiter, s.cfg.WriteLimit, s.cfg.WriteWindow)(h).ServeHTTP
}
