package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/planforge/api/internal/auth"
	"github.com/planforge/api/internal/client"
	"github.com/planforge/api/internal/config"
	"github.com/planforge/api/internal/handler"
	"github.com/planforge/api/internal/middleware"
	"github.com/planforge/api/internal/service"
	"github.com/planforge/api/internal/store"
	"github.com/planforge/api/internal/worker"
	ws "github.com/planforge/api/internal/websocket"
)

// @title          PlanForge API
// @version        1.0
// @description    Backend API for PlanForge — AI-generated business plan reports.
// @host           localhost:8000
// @BasePath       /
// @schemes        http https
// @securityDefinitions.apikey BearerAuth
// @in             header
// @name           Authorization
// @description    Enter your bearer token in the format **Bearer &lt;token&gt;**
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		// Development runs on mock fallbacks; everywhere else a missing
		// workflow or gateway must fail at boot, not on the first report.
		if strings.EqualFold(cfg.Server.Env, "development") {
			log.Printf("Warning: incomplete configuration: %v", err)
		} else {
			log.Fatalf("Invalid configuration: %v", err)
		}
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Initialize stores (Postgres, or in-memory when unconfigured)
	var reportStore store.ReportStore
	var profileStore store.ProfileStore
	if cfg.Database.URL != "" {
		pg, err := store.NewPostgresStore(&cfg.Database)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer pg.Close()
		reportStore = pg
		profileStore = pg
	} else {
		log.Println("Info: database not configured, using in-memory stores")
		mem := store.NewMemoryStore()
		reportStore = mem
		profileStore = mem
	}

	// Initialize R2 client (optional - continues if not configured)
	var storageClient client.StorageClient
	if cfg.R2.AccessKeyID != "" && cfg.R2.SecretAccessKey != "" {
		r2Client, err := client.NewR2Client(&cfg.R2)
		if err != nil {
			log.Printf("Warning: R2 client not initialized: %v", err)
		} else {
			storageClient = r2Client
		}
	} else {
		log.Println("Info: R2 storage not configured, using mock URLs")
	}

	// Initialize workflow client (required for dispatch to operate)
	var workflowClient client.WorkflowDispatcher
	if wf, err := client.NewWorkflowClient(&cfg.Workflow); err != nil {
		log.Printf("Warning: workflow client not initialized: %v", err)
	} else {
		workflowClient = wf
	}

	// Initialize payment gateway client
	var paymentGateway client.PaymentGateway
	if pc, err := client.NewPaymentClient(&cfg.Payment); err != nil {
		log.Printf("Warning: payment client not initialized: %v", err)
	} else {
		paymentGateway = pc
	}

	// Initialize JWKS verifier (optional - falls back to legacy JWT)
	var jwksVerifier *auth.JWKSVerifier
	if cfg.OIDC.Issuer != "" {
		var err error
		jwksVerifier, err = auth.NewJWKSVerifier(&cfg.OIDC)
		if err != nil {
			log.Printf("Warning: JWKS verifier not initialized: %v", err)
		} else {
			defer jwksVerifier.Close()
		}
	}

	// Initialize services
	reportService := service.NewReportService(reportStore, asynqClient, hub)
	accessService := service.NewAccessService(reportStore, profileStore, storageClient)
	paymentService := service.NewPaymentService(paymentGateway, profileStore,
		cfg.Payment.KeyID, cfg.Payment.KeySecret, cfg.Payment.Currency)

	// Initialize handlers
	reportHandler := handler.NewReportHandler(reportService, accessService, validate)
	callbackHandler := handler.NewCallbackHandler(reportService)
	paymentHandler := handler.NewPaymentHandler(paymentService, validate)

	// Initialize auth handler for ForwardAuth verification
	var tokenVerifier auth.TokenVerifier
	if jwksVerifier != nil {
		tokenVerifier = jwksVerifier
	}
	authHandler := handler.NewAuthHandler(tokenVerifier, cfg.JWT.Secret)

	// Initialize middleware (with fallback support)
	var apiAuthMiddleware fiber.Handler
	if cfg.Gateway.Enabled {
		// Behind Traefik: auth is handled by ForwardAuth, read X-User-* headers
		log.Println("Info: Gateway mode enabled — using header-based auth")
		apiAuthMiddleware = middleware.GatewayAuthMiddleware()
	} else {
		// Direct mode: auth is handled by the backend itself
		var authMiddleware *middleware.AuthMiddleware
		if jwksVerifier != nil && cfg.JWT.Secret != "" {
			authMiddleware = middleware.NewAuthMiddlewareWithFallback(jwksVerifier, cfg.JWT.Secret)
		} else if jwksVerifier != nil {
			authMiddleware = middleware.NewAuthMiddleware(jwksVerifier)
		} else {
			authMiddleware = middleware.NewLegacyAuthMiddleware(cfg.JWT.Secret)
		}
		apiAuthMiddleware = authMiddleware.Authenticate()
	}
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    10 * 1024 * 1024, // 10MB
	})

	// Global middleware
	app.Use(recover.New())
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body} ${reqHeaders}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"workflow": workflowClient != nil && workflowClient.IsConfigured(),
				"storage":  storageClient != nil,
				"database": cfg.Database.URL != "",
				"payments": paymentGateway != nil,
				"auth":     jwksVerifier != nil || cfg.JWT.Secret != "",
			},
		})
	})

	// ForwardAuth verification endpoint (internal, called by Traefik)
	app.Get("/auth/verify", authHandler.Verify)

	// Workflow callback (shared-token auth, not user auth)
	app.Post("/callbacks/generation",
		middleware.CallbackAuthMiddleware(cfg.Workflow.CallbackToken),
		callbackHandler.Generation)

	// API routes
	api := app.Group("/api", apiAuthMiddleware)

	// Report routes
	reports := api.Group("/reports")
	reports.Post("/", rateLimiter.ReportsLimit(cfg.RateLimit.ReportsPerHour), reportHandler.Create)
	reports.Get("/:reportId/status", reportHandler.Status)
	reports.Get("/:reportId/access", rateLimiter.AccessLimit(cfg.RateLimit.AccessPerMin), reportHandler.Access)

	// Payment routes
	payments := api.Group("/payments", rateLimiter.PaymentsLimit(cfg.RateLimit.PaymentsPerHour))
	payments.Post("/order", paymentHandler.CreateOrder)
	payments.Post("/verify", paymentHandler.Verify)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/reports/:reportId", websocket.New(func(c *websocket.Conn) {
		reportID := c.Params("reportId")
		hub.HandleConnection(c, reportID)
	}))

	// Start Asynq worker server
	go startWorkerServer(cfg, reportService, workflowClient)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(
	cfg *config.Config,
	reportService *service.ReportService,
	workflowClient client.WorkflowDispatcher,
) {
	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"dispatch": 10,
			},
			LogLevel: asynqLogLevel,
		},
	)

	dispatchWorker := worker.NewDispatchWorker(reportService, workflowClient)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeDispatch, dispatchWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
