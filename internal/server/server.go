package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"casgate/internal/constants"
	"casgate/internal/logger"
)

// Server wraps the HTTP server with graceful shutdown.
type Server struct {
	httpServer *http.Server
	app        *App
	logger     *logger.Logger
}

// NewServer creates a new HTTP server.
func NewServer(app *App, addr string) *Server {
	mux := http.NewServeMux()

	s := &Server{
		app:    app,
		logger: app.Logger,
	}

	s.registerRoutes(mux)

	// Middleware chain: RequestID → SecurityHeaders → handler. Capability
	// authentication is applied per route: the bootstrap and refresh
	// endpoints establish credentials rather than require them.
	handler := Chain(mux, RequestID, SecurityHeaders)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  constants.HTTPReadTimeout,
		WriteTimeout: constants.HTTPWriteTimeout,
		IdleTimeout:  constants.HTTPIdleTimeout,
	}

	return s
}

// registerRoutes sets up all API routes.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	protect := s.app.AuthMW.Protect

	// Credential endpoints: no capability context required.
	mux.HandleFunc("/api/auth/root", s.handleBootstrapRoot)
	mux.HandleFunc("/api/auth/refresh", s.handleRefresh)

	// Delegate lifecycle.
	mux.Handle("/api/delegates", protect(http.HandlerFunc(s.handleDelegates)))
	mux.Handle("/api/delegates/", protect(http.HandlerFunc(s.handleDelegateRoutes)))

	// Node graph.
	mux.Handle("/api/nodes", protect(http.HandlerFunc(s.handleNodeUpload)))
	mux.Handle("/api/nodes/", protect(http.HandlerFunc(s.handleNodeFetch)))

	// Possession claims.
	mux.Handle("/api/claims", protect(http.HandlerFunc(s.handleClaim)))

	// Depots.
	mux.Handle("/api/depots", protect(http.HandlerFunc(s.handleDepots)))
	mux.Handle("/api/depots/", protect(http.HandlerFunc(s.handleDepotRoutes)))

	// Audit trail.
	mux.Handle("/api/audit", protect(http.HandlerFunc(s.handleAuditQuery)))

	// Service info.
	mux.HandleFunc("/api/info", s.handleServiceInfo)
}

// Start runs the server and blocks until shutdown signal.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, shutdownSignals...)

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case sig := <-stop:
		s.logger.Info("Received signal %v, shutting down...", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.ShutdownTimeoutSecs)*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("Shutdown error: %v", err)
	}

	s.app.Close()
	s.logger.Info("Server stopped")
	return nil
}

// Handler returns the HTTP handler for testing purposes.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
