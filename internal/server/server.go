// Package server contains HTTP and WebSocket handlers for the job board API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "jobboard/docs" // swagger docs
	"jobboard/internal/bootstrap"
	"jobboard/internal/config"
	"jobboard/internal/featureflags"
	"jobboard/internal/middleware"
	"jobboard/internal/models"
	"jobboard/internal/notifications"
	"jobboard/internal/repository"
	"jobboard/internal/service"
	"jobboard/internal/storage"
	"jobboard/internal/validation"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	runtime        *bootstrap.Runtime
	kv             storage.KV
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	notifier       *notifications.Notifier
	hub            *notifications.Hub
	featureFlags   *featureflags.Manager
	postService    *service.PostService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	rt, err := bootstrap.InitRuntime(cfg)
	if err != nil {
		return nil, fmt.Errorf("runtime initialization failed: %w", err)
	}
	return NewServerWithDeps(cfg, rt), nil
}

// NewServerWithDeps creates a Server using an already-initialized runtime.
// Use this in tests or when a command establishes storage itself.
func NewServerWithDeps(cfg *config.Config, rt *bootstrap.Runtime) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	hub := notifications.NewHub()
	notifier := notifications.NewNotifier(rt.Redis, hub)

	board := repository.NewPostRepository(rt.KV, cfg.StorageKey)
	archive := repository.NewPostRepository(rt.KV, repository.HiddenKey(cfg.StorageKey))

	return &Server{
		config:         cfg,
		runtime:        rt,
		kv:             rt.KV,
		redis:          rt.Redis,
		promMiddleware: middleware.InitMetrics("jobboard-api"),
		shutdownCtx:    ctx,
		shutdownFn:     cancel,
		notifier:       notifier,
		hub:            hub,
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		postService: service.NewPostService(board, archive, notifier, service.PostServiceConfig{
			ReportThreshold: cfg.ReportThreshold,
			TTL:             cfg.PostTTL,
			Limits:          validation.Limits{MaxPixels: cfg.ImageMaxPixels},
		}),
	}
}

// PostService exposes the board store, e.g. for the sweep scheduler.
func (s *Server) PostService() *service.PostService {
	return s.postService
}

// NewApp builds a Fiber app with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "Job Board API",
		// base64 data-URLs are a third larger than the image they carry
		BodyLimit:    s.config.MaxUploadBytes()*2 + 64*1024,
		ErrorHandler: errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
	}
	middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
	return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Spans must exist before ContextMiddleware copies the trace ID
	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	// Context Middleware to propagate Request ID and trace ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		MaxAge:       86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, please try again later.",
				Code:  middleware.CodeRateLimited,
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	// Swagger documentation
	api.Get("/swagger/*", swagger.HandlerDefault)

	posts := api.Group("/posts")
	posts.Get("/", s.GetPosts)
	posts.Post("/", middleware.RateLimit(
		s.redis, 5, 10*time.Minute, "create_post"), s.CreatePost)
	// Define specific /:id/:resource routes
	posts.Post("/:id/like", s.LikePost)
	posts.Post("/:id/report", middleware.RateLimit(
		s.redis, 10, time.Minute, "report_post"), s.ReportPost)
	posts.Get("/:id/image", s.GetPostImage)

	api.Get("/moderation/hidden", s.GetHiddenPosts)
	api.Get("/features", s.GetFeatureFlags)

	app.Get("/ws/posts", s.LiveFeedUpgrade(), s.LiveFeedHandler())
}

// LivenessCheck reports that the process is up
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports whether storage is reachable
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	storageStatus := "healthy"
	if err := s.kv.Ping(ctx); err != nil {
		storageStatus = "unhealthy"
	}

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if storageStatus != "healthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"storage": storageStatus,
			"backend": s.kv.Backend(),
			"redis":   redisStatus,
		},
		"time": time.Now(),
	})
}

// Start wires the live feed and serves HTTP until Shutdown.
func (s *Server) Start() error {
	s.app = s.NewApp()

	if err := s.notifier.Start(s.shutdownCtx); err != nil {
		middleware.Logger.Warn("live feed redis wiring failed", slog.String("error", err.Error()))
	}

	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop the subscriber goroutine
	s.shutdownFn()

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down live feed hub", slog.String("error", err.Error()))
	}

	if s.runtime != nil {
		if err := s.runtime.Close(); err != nil {
			middleware.Logger.Error("error closing storage", slog.String("error", err.Error()))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
