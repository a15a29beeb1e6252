package api

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/vetriapp/vetri-backend/internal/api/handler"
	customMiddleware "github.com/vetriapp/vetri-backend/internal/api/middleware"
	"github.com/vetriapp/vetri-backend/internal/config"
	"github.com/vetriapp/vetri-backend/internal/metrics"
	"github.com/vetriapp/vetri-backend/internal/presence"
	"github.com/vetriapp/vetri-backend/internal/ratelimit"
	"github.com/vetriapp/vetri-backend/internal/security"
	"github.com/vetriapp/vetri-backend/internal/store"
	"github.com/vetriapp/vetri-backend/internal/ws"
)

// NewRouter creates and configures the HTTP router
func NewRouter(
	cfg *config.Config,
	db *sql.DB,
	tokens *security.Manager,
	wsServer *ws.Server,
	limiter *ratelimit.Limiter,
	presenceStore *presence.Store,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Stores
	users := store.NewUserStore(db)
	expenses := store.NewExpenseStore(db)
	budgets := store.NewBudgetStore(db)
	messages := store.NewMessageStore(db)

	// Handlers
	authHandler := handler.NewAuthHandler(users, tokens)
	expenseHandler := handler.NewExpenseHandler(expenses)
	budgetHandler := handler.NewBudgetHandler(budgets)
	chatHandler := handler.NewChatHandler(messages)
	newsHandler := handler.NewNewsHandler()
	healthHandler := handler.NewHealthHandler(db, wsServer, presenceStore)

	authMiddleware := customMiddleware.NewAuthMiddleware(tokens)

	rule := ratelimit.RuleAPI
	if cfg.RateLimit.RequestsPerMinute > 0 {
		rule.Limit = cfg.RateLimit.RequestsPerMinute
	}
	rateLimitMiddleware := customMiddleware.NewRateLimitMiddleware(limiter, rule)

	r.Route("/api", func(r chi.Router) {
		// Health
		r.Get("/health", healthHandler.Health)
		r.Get("/ready", healthHandler.Ready)

		// Auth (public)
		r.Post("/signup", authHandler.Signup)
		r.Post("/login", authHandler.Login)

		// Landing feed (public)
		r.Get("/news", newsHandler.List)

		// Public reads
		r.Get("/expenses", expenseHandler.List)
		r.Get("/expenses/{id}", expenseHandler.Get)
		r.Get("/chats", chatHandler.List)
		r.Get("/chats/{id}", chatHandler.Get)
		r.Get("/chat/recent", chatHandler.Recent)

		// Protected writes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Use(rateLimitMiddleware.Limit)

			r.Post("/expenses", expenseHandler.Create)
			r.Put("/expenses/{id}", expenseHandler.Update)
			r.Delete("/expenses/{id}", expenseHandler.Delete)

			r.Route("/budgets", func(r chi.Router) {
				r.Get("/", budgetHandler.List)
				r.Post("/", budgetHandler.Create)
				r.Get("/{id}", budgetHandler.Get)
				r.Put("/{id}", budgetHandler.Update)
				r.Delete("/{id}", budgetHandler.Delete)
			})

			r.Post("/chats", chatHandler.Create)
			r.Put("/chats/{id}", chatHandler.UpdateFlags)
			r.Delete("/chats/{id}", chatHandler.Delete)
		})
	})

	// Realtime endpoint; authentication happens during the upgrade handshake.
	r.Get("/ws", wsServer.HandleUpgrade)

	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, metrics.Handler())
	}

	return r
}
