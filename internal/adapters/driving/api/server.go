package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/cors"

	"github.com/custodia-labs/nexus/internal/core/domain"
	"github.com/custodia-labs/nexus/internal/core/ports/driving"
	"github.com/custodia-labs/nexus/internal/logger"
)

// multipartOverhead is allowed on top of the upload limit for form framing.
const multipartOverhead = 1 << 20

// Services are the driving ports the API calls into.
type Services struct {
	Auth      driving.AuthService
	Search    driving.SearchService
	Documents driving.DocumentService
	Users     driving.UserService
}

// Server serves the HTTP API.
type Server struct {
	echo     *echo.Echo
	handler  http.Handler
	settings domain.ServerSettings
	services Services
	limiter  *ipLimiter
}

// NewServer builds the router and middleware chain.
func NewServer(settings domain.ServerSettings, services Services) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:     e,
		settings: settings,
		services: services,
		limiter:  newIPLimiter(settings.RateLimitRPS, settings.RateLimitBurst),
	}
	e.HTTPErrorHandler = s.handleError

	e.Use(requestID())
	e.Use(requestLogger())
	e.Use(echoMiddleware.Recover())
	e.Use(s.limiter.middleware())

	e.GET("/healthz", s.health)

	api := e.Group("/api")
	api.POST("/register", s.register)
	api.POST("/login", s.login)

	authed := api.Group("", s.requireAuth)
	authed.POST("/logout", s.logout)
	authed.GET("/search", s.search)
	authed.GET("/user", s.user)
	authed.GET("/documents", s.listDocuments)
	authed.GET("/documents/:id", s.getDocument)
	authed.DELETE("/documents/:id", s.deleteDocument)

	uploadLimit := settings.MaxUploadBytes
	if uploadLimit <= 0 {
		uploadLimit = domain.DefaultQuotaBytes
	}
	authed.POST("/upload", s.upload,
		echoMiddleware.BodyLimit(strconv.FormatInt(uploadLimit+multipartOverhead, 10)))

	s.handler = cors.New(cors.Options{
		AllowedOrigins:   settings.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Origin", "Accept"},
		ExposedHeaders:   []string{echo.HeaderXRequestID},
		AllowCredentials: true,
	}).Handler(e)

	return s
}

// Handler returns the full handler, CORS included.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.settings.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Listening on %s", s.settings.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving %s: %w", s.settings.Addr, err)
	case <-ctx.Done():
	}

	timeout := s.settings.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logger.Info("Shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}
