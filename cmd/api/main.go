package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/civiclabs/ballotbox/internal/http/handlers"
	"github.com/civiclabs/ballotbox/internal/mailer"
	"github.com/civiclabs/ballotbox/internal/repo/postgres"
	"github.com/civiclabs/ballotbox/internal/repo/redisrepo"
	"github.com/civiclabs/ballotbox/internal/service"
	"github.com/civiclabs/ballotbox/pkg/config"
	"github.com/civiclabs/ballotbox/pkg/database"
	"github.com/civiclabs/ballotbox/pkg/events"
	"github.com/civiclabs/ballotbox/pkg/logger"
	mw "github.com/civiclabs/ballotbox/pkg/middleware"
)

func main() {
	cfg := config.Load()

	// Connect to database
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Connect to Redis for rate limiting
	redisClient, err := redisrepo.NewClient(cfg.Redis)
	if err != nil {
		logger.Error("Failed to configure Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// Connect to event bus. The API stays up without it.
	var bus events.Publisher
	if natsBus, err := events.NewNATSEventBus(cfg.NATS.URL); err != nil {
		logger.Warn("NATS unavailable, events will be dropped", "error", err)
		bus = events.NoopPublisher{}
	} else {
		bus = natsBus
	}
	defer bus.Close()

	// Initialize repositories
	userRepo := postgres.NewUserRepository(pool)
	voterRepo := postgres.NewVoterRepository(pool)
	candidateRepo := postgres.NewCandidateRepository(pool)
	voteRepo := postgres.NewVoteRepository(pool)
	otpRepo := postgres.NewOTPRepository(pool)
	auditRepo := postgres.NewAuditRepository(pool)
	rateLimitRepo := redisrepo.NewRateLimitRepository(redisClient)

	// Initialize services
	mail := mailer.FromConfig(cfg.Email)
	authService := service.NewAuthService(userRepo, voterRepo, candidateRepo, bus, cfg)
	otpService := service.NewOTPService(userRepo, voterRepo, otpRepo, auditRepo, mail, cfg)
	votingService := service.NewVotingService(voterRepo, candidateRepo, voteRepo, otpRepo, auditRepo, bus, cfg)
	adminService := service.NewAdminService(voterRepo, candidateRepo, voteRepo, auditRepo, bus, cfg)
	candidateService := service.NewCandidateService(candidateRepo)

	// Expired unconsumed codes pile up; sweep them in the background.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			n, err := otpRepo.DeleteExpired(context.Background())
			if err != nil {
				logger.Warn("Failed to purge expired codes", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("Purged expired codes", "count", n)
			}
		}
	}()

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, rateLimitRepo, cfg)
	voteHandler := handlers.NewVoteHandler(votingService, otpService, rateLimitRepo, cfg)
	adminHandler := handlers.NewAdminHandler(adminService, cfg)
	candidateHandler := handlers.NewCandidateHandler(candidateService, cfg)
	resultsHandler := handlers.NewResultsHandler(votingService)

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.Logging)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.ErrorContext(r.Context(), "Panic recovered", "error", err)
					http.Error(w, "Internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	})

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Use(mw.Health)

	// API routes
	r.Route("/v1", func(r chi.Router) {
		r.Mount("/auth", authHandler.Routes())
		r.Mount("/vote", voteHandler.Routes())
		r.Mount("/admin", adminHandler.Routes())
		r.Mount("/candidate", candidateHandler.Routes())
		r.Mount("/results", resultsHandler.Routes())
	})

	// Start server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down API...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Shutdown error", "error", err)
		}
	}()

	logger.Info("Starting API", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}
