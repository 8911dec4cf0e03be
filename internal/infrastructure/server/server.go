package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	httpHandlers "github.com/learnmap/core/internal/adapters/http"
	"github.com/learnmap/core/internal/adapters/repository"
	"github.com/learnmap/core/internal/application/services"
	"github.com/learnmap/core/internal/domain/entities"
	"github.com/learnmap/core/internal/infrastructure/config"
	"github.com/learnmap/core/internal/infrastructure/database"
	"github.com/learnmap/core/internal/infrastructure/logger"
	"github.com/learnmap/core/internal/ports"
)

// Server represents the HTTP server
type Server struct {
	echo   *echo.Echo
	config *config.Config
	logger *logger.Logger
	db     *database.DB
}

// CustomValidator wraps the validator
type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates structs
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// New creates a new server instance
func New(cfg *config.Config, db *database.DB, appLogger *logger.Logger) (*Server, error) {
	e := echo.New()

	// Set custom validator
	e.Validator = &CustomValidator{validator: validator.New()}

	// Configure Echo
	e.HideBanner = true
	e.HidePort = true

	// Custom error handler
	e.HTTPErrorHandler = customErrorHandler(appLogger)

	// Initialize the store and services
	store := repository.NewStore(db)

	userService := services.NewUserService(store, appLogger)
	topicService := services.NewTopicService(store, appLogger)
	taskService := services.NewTaskService(store, appLogger)
	actionService := services.NewActionService(store, appLogger)
	hierarchyService := services.NewHierarchyService(store, appLogger)
	compatService := services.NewCompatService(taskService, topicService, store, appLogger)

	// Initialize handlers
	profileHandler := httpHandlers.NewProfileHandler(userService, appLogger)
	topicHandler := httpHandlers.NewTopicHandler(topicService, hierarchyService, appLogger)
	taskHandler := httpHandlers.NewTaskHandler(taskService, actionService, hierarchyService, appLogger)
	compatHandler := httpHandlers.NewCompatHandler(compatService, appLogger)

	server := &Server{
		echo:   e,
		config: cfg,
		logger: appLogger,
		db:     db,
	}

	// Setup middleware
	server.setupMiddleware()

	// Setup routes
	server.setupRoutes(profileHandler, topicHandler, taskHandler, compatHandler)

	// Setup metrics
	if cfg.Metrics.Enabled {
		server.setupMetrics()
	}

	return server, nil
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.echo.Use(middleware.Recover())

	// Logger middleware
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogError:     true,
		LogRemoteIP:  true,
		LogUserAgent: true,
		LogValuesFunc: func(c echo.Context, values middleware.RequestLoggerValues) error {
			fields := []interface{}{
				"method", values.Method,
				"uri", values.URI,
				"status", values.Status,
				"latency_ms", float64(values.Latency.Nanoseconds()) / 1000000,
				"remote_ip", values.RemoteIP,
				"user_agent", values.UserAgent,
			}

			if values.Error != nil {
				fields = append(fields, "error", values.Error.Error())
				s.logger.Errorw("HTTP request failed", fields...)
			} else {
				s.logger.Infow("HTTP request", fields...)
			}

			return nil
		},
	}))

	// CORS middleware
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: strings.Split(s.config.Security.CORSAllowedOrigins, ","),
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, "X-User-ID"},
		AllowMethods: []string{echo.GET, echo.HEAD, echo.PUT, echo.PATCH, echo.POST, echo.DELETE},
	}))

	// Rate limiting middleware
	s.echo.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{Rate: rate.Limit(s.config.Security.RateLimitRequests), Burst: s.config.Security.RateLimitRequests, ExpiresIn: s.config.Security.RateLimitWindow},
		),
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			id := ctx.RealIP()
			return id, nil
		},
		ErrorHandler: func(context echo.Context, err error) error {
			return context.JSON(http.StatusForbidden, map[string]string{"message": "rate limit exceeded"})
		},
		DenyHandler: func(context echo.Context, identifier string, err error) error {
			return context.JSON(http.StatusTooManyRequests, map[string]string{"message": "rate limit exceeded"})
		},
	}))

	// Security headers
	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'self'",
	}))

	// Request ID middleware
	s.echo.Use(middleware.RequestID())

	// Timeout middleware
	s.echo.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: 30 * time.Second,
	}))
}

// identityMiddleware resolves the caller's profile ID from the X-User-ID
// header. Session handling lives in front of this service, so the header
// is trusted as-is.
func (s *Server) identityMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("X-User-ID")
			if header == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing X-User-ID header")
			}

			userID, err := uuid.Parse(header)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid X-User-ID header")
			}

			c.Set(httpHandlers.UserIDKey, userID)
			return next(c)
		}
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(profileHandler *httpHandlers.ProfileHandler, topicHandler *httpHandlers.TopicHandler, taskHandler *httpHandlers.TaskHandler, compatHandler *httpHandlers.CompatHandler) {
	// Health check routes
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/health/detailed", s.detailedHealthCheck)
	s.echo.GET("/ready", s.readinessCheck)

	// API v1 routes
	v1 := s.echo.Group("/api/v1")

	// Profile routes: registration is open, the rest carry an identity
	v1.POST("/profiles", profileHandler.CreateProfile)

	identified := v1.Group("", s.identityMiddleware())
	identified.GET("/profiles/me", profileHandler.GetCurrentProfile)
	identified.GET("/profiles/:id", profileHandler.GetProfile)

	// Topic and goal routes
	topicGroup := identified.Group("/topics")
	topicGroup.GET("", topicHandler.ListTopics)
	topicGroup.POST("", topicHandler.CreateTopic)
	topicGroup.GET("/:id", topicHandler.GetTopic)
	topicGroup.GET("/:id/structure", topicHandler.GetTopicStructure)
	topicGroup.PUT("/:id", topicHandler.UpdateTopic)
	topicGroup.DELETE("/:id", topicHandler.DeleteTopic)
	topicGroup.POST("/:id/restore", topicHandler.RestoreTopic)
	topicGroup.POST("/:id/collaborators", topicHandler.AddCollaborator)
	topicGroup.DELETE("/:id/collaborators/:userId", topicHandler.RemoveCollaborator)
	topicGroup.POST("/:id/goals", topicHandler.CreateGoal)

	goalGroup := identified.Group("/goals")
	goalGroup.PUT("/:id", topicHandler.UpdateGoal)
	goalGroup.DELETE("/:id", topicHandler.DeleteGoal)
	goalGroup.POST("/:id/restore", topicHandler.RestoreGoal)
	goalGroup.PUT("/:goalId/tasks/order", taskHandler.ReorderTasks)

	// Task routes
	taskGroup := identified.Group("/tasks")
	taskGroup.GET("/active", taskHandler.ListActiveTasks)
	taskGroup.POST("", taskHandler.CreateTask)
	taskGroup.GET("/:id", taskHandler.GetTask)
	taskGroup.PUT("/:id", taskHandler.UpdateTask)
	taskGroup.DELETE("/:id", taskHandler.DeleteTask)
	taskGroup.POST("/:id/restore", taskHandler.RestoreTask)
	taskGroup.POST("/:id/complete", taskHandler.MarkCompleted)
	taskGroup.POST("/:id/start", taskHandler.MarkInProgress)
	taskGroup.POST("/:id/reopen", taskHandler.MarkTodo)

	// Progress action routes
	taskGroup.POST("/:id/actions", taskHandler.PerformAction)
	taskGroup.POST("/:id/check-in", taskHandler.CheckIn)
	taskGroup.DELETE("/:id/check-in", taskHandler.CancelCheckIn)
	taskGroup.POST("/:id/count", taskHandler.AddCount)
	taskGroup.POST("/:id/amount", taskHandler.AddAmount)
	taskGroup.POST("/:id/reset", taskHandler.ResetProgress)

	// Legacy unversioned routes
	compatGroup := identified.Group("/compat")
	compatGroup.PUT("/tasks/:id", compatHandler.UpdateTask)
	compatGroup.PUT("/goals/:id", compatHandler.UpdateGoal)
	compatGroup.POST("/tasks/:id/complete", compatHandler.MarkCompleted)
	compatGroup.POST("/tasks/:id/start", compatHandler.MarkInProgress)
	compatGroup.POST("/tasks/:id/reopen", compatHandler.MarkTodo)
}

// setupMetrics configures Prometheus metrics
func (s *Server) setupMetrics() {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	versionConflicts := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "version_conflicts_total",
			Help: "Total number of optimistic concurrency conflicts returned to clients",
		},
	)

	registry.MustRegister(requestsTotal, requestDuration, versionConflicts)

	// Custom metrics middleware
	s.echo.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			duration := time.Since(start)
			status := c.Response().Status

			requestsTotal.WithLabelValues(
				c.Request().Method,
				c.Path(),
				fmt.Sprintf("%d", status),
			).Inc()

			requestDuration.WithLabelValues(
				c.Request().Method,
				c.Path(),
			).Observe(duration.Seconds())

			if entities.IsVersionConflict(err) {
				versionConflicts.Inc()
			}

			return err
		}
	})

	// Metrics endpoint
	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	s.echo.GET("/metrics", echo.WrapHandler(metricsHandler))
}

// Health check handlers
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) detailedHealthCheck(c echo.Context) error {
	status := "ok"
	checks := make(map[string]interface{})

	// Database health check
	if err := s.db.HealthCheck(); err != nil {
		status = "error"
		checks["database"] = map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		}
	} else {
		checks["database"] = map[string]interface{}{
			"status": "ok",
			"stats":  s.db.GetConnectionInfo(),
		}
	}

	response := map[string]interface{}{
		"status": status,
		"time":   time.Now().UTC().Format(time.RFC3339),
		"checks": checks,
		"version": map[string]string{
			"app": s.config.App.Version,
		},
	}

	if status == "ok" {
		return c.JSON(http.StatusOK, response)
	}
	return c.JSON(http.StatusServiceUnavailable, response)
}

func (s *Server) readinessCheck(c echo.Context) error {
	// Check if server is ready to accept requests
	if err := s.db.Ping(); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": "database_not_ready",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Start starts the HTTP server
func (s *Server) Start(address string) error {
	s.logger.Info("Starting server", "address", address)
	return s.echo.Start(address)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server")
	return s.echo.Shutdown(ctx)
}

// customErrorHandler maps domain errors onto HTTP status codes
func customErrorHandler(logger *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		var (
			code = http.StatusInternalServerError
			msg  interface{}
		)

		var (
			httpErr      *echo.HTTPError
			conflictErr  *entities.VersionConflictError
			duplicateErr *entities.DuplicateActionError
			paramErr     *entities.InvalidParameterError
			stateErr     *entities.InvalidStateError
			validateErrs validator.ValidationErrors
		)

		switch {
		case errors.As(err, &httpErr):
			code = httpErr.Code
			msg = httpErr.Message
			if httpErr.Internal != nil {
				err = fmt.Errorf("%v, %v", err, httpErr.Internal)
			}
		case errors.As(err, &conflictErr):
			code = http.StatusConflict
			msg = ports.ConflictResponse{
				Message:        conflictErr.Error(),
				CurrentVersion: conflictErr.Actual,
			}
		case errors.As(err, &duplicateErr):
			code = http.StatusConflict
			msg = ports.ErrorResponse{Message: duplicateErr.Error()}
		case errors.As(err, &paramErr):
			code = http.StatusBadRequest
			msg = ports.ErrorResponse{Message: paramErr.Error()}
		case errors.As(err, &stateErr):
			code = http.StatusUnprocessableEntity
			msg = ports.ErrorResponse{Message: stateErr.Error()}
		case errors.Is(err, entities.ErrTopicNotFound),
			errors.Is(err, entities.ErrGoalNotFound),
			errors.Is(err, entities.ErrTaskNotFound),
			errors.Is(err, entities.ErrUserNotFound):
			code = http.StatusNotFound
			msg = ports.ErrorResponse{Message: "Not found"}
		case errors.Is(err, entities.ErrCollaboratorExists):
			code = http.StatusConflict
			msg = ports.ErrorResponse{Message: "Collaborator already added"}
		case errors.Is(err, entities.ErrCollaboratorNotFound):
			code = http.StatusNotFound
			msg = ports.ErrorResponse{Message: "Collaborator not found"}
		case errors.As(err, &validateErrs):
			code = http.StatusBadRequest
			msg = map[string]string{"message": "validation failed", "details": validateErrs.Error()}
		default:
			msg = map[string]string{"message": http.StatusText(code)}
		}

		if code == http.StatusInternalServerError {
			logger.Error("Internal server error", "error", err, "path", c.Request().URL.Path)
		}

		// Send response
		if !c.Response().Committed {
			if c.Request().Method == echo.HEAD {
				err = c.NoContent(code)
			} else {
				err = c.JSON(code, msg)
			}
			if err != nil {
				logger.Error("Error sending response", "error", err)
			}
		}
	}
}
