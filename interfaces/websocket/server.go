package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"rhealth-backend/internal/middleware"
	"rhealth-backend/pkg/api"
	"rhealth-backend/pkg/auth"
	"rhealth-backend/pkg/observability"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ServerConfig holds WebSocket server configuration
type ServerConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	AllowedOrigins  []string
	Client          ClientConfig
}

// DefaultServerConfig returns default WebSocket server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		AllowedOrigins:  []string{"*"},
		Client:          DefaultClientConfig(),
	}
}

// Server serves the roster WebSocket endpoint plus health and metrics
type Server struct {
	hub        *Hub
	dispatcher Dispatcher
	validator  *auth.JWTValidator
	upgrader   websocket.Upgrader
	config     ServerConfig
	metrics    *observability.Collector
	logger     *zap.Logger
}

// NewServer creates a new WebSocket server. A nil validator disables
// authentication and a nil metrics collector disables /metrics.
func NewServer(
	hub *Hub,
	dispatcher Dispatcher,
	validator *auth.JWTValidator,
	config ServerConfig,
	metrics *observability.Collector,
	logger *zap.Logger,
) *Server {
	s := &Server{
		hub:        hub,
		dispatcher: dispatcher,
		validator:  validator,
		config:     config,
		metrics:    metrics,
		logger:     logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  config.ReadBufferSize,
		WriteBufferSize: config.WriteBufferSize,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Routes builds the HTTP router
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(s.logger))
	r.Use(middleware.Logging(s.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ws", s.HandleWebSocket)
	r.Get("/api/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	return r
}

// HandleWebSocket handles WebSocket upgrade requests
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	identity, err := s.authenticateRequest(r)
	if err != nil {
		s.logger.Warn("WebSocket authentication failed",
			zap.Error(err),
			zap.String("remoteAddr", r.RemoteAddr),
		)
		api.Error(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if !s.hub.Admit() {
		s.logger.Warn("Connection limit reached", zap.Int("connections", s.hub.Admitted()))
		api.Error(w, http.StatusServiceUnavailable, "Connection limit exceeded")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.hub.Release()
		s.logger.Error("Failed to upgrade connection",
			zap.Error(err),
			zap.String("remoteAddr", r.RemoteAddr),
		)
		return
	}

	client := NewClient(identity.UserID, conn, s.dispatcher, s.config.Client, s.logger)
	if err := client.Start(r.Context()); err != nil {
		s.hub.Release()
		s.logger.Error("Failed to register connection", zap.String("connectionID", client.ID()), zap.Error(err))
		return
	}

	s.logger.Info("New WebSocket connection established",
		zap.String("userID", identity.UserID),
		zap.Strings("roles", identity.Roles),
		zap.String("connectionID", client.ID()),
		zap.String("remoteAddr", r.RemoteAddr),
	)
}

// authenticateRequest validates the JWT token from the request
func (s *Server) authenticateRequest(r *http.Request) (auth.Identity, error) {
	if s.validator == nil {
		return auth.Anonymous, nil
	}

	token := auth.TokenFromRequest(r)
	if token == "" {
		return auth.Identity{}, auth.ErrMissingToken
	}

	claims, err := s.validator.ValidateToken(token)
	if err != nil {
		return auth.Identity{}, fmt.Errorf("invalid token: %w", err)
	}
	return claims.Identity(), nil
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.config.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// StartWithContext serves until ctx is cancelled, then shuts down gracefully
func (s *Server) StartWithContext(ctx context.Context, address string) error {
	server := &http.Server{
		Addr:              address,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info("Starting WebSocket server", zap.String("address", address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down WebSocket server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("WebSocket server shutdown error: %w", err)
		}

		// Hijacked connections aren't tracked by http.Server
		s.hub.CloseAll()

		s.logger.Info("WebSocket server stopped gracefully")
		return nil

	case err := <-serverErr:
		return fmt.Errorf("WebSocket server error: %w", err)
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	api.Success(w, http.StatusOK, api.HealthResponse{Status: "OK", Message: "Server is running"})
}
