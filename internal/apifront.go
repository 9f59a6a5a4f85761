// Package internal wires the api-front application together.
package internal

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dottapps/api-front/internal/backendauth"
	"github.com/dottapps/api-front/internal/config"
	"github.com/dottapps/api-front/internal/exchange"
	"github.com/dottapps/api-front/internal/idp"
	jsonwriter "github.com/dottapps/api-front/internal/json"
	"github.com/dottapps/api-front/internal/log"
	"github.com/dottapps/api-front/internal/proxy"
	"github.com/dottapps/api-front/internal/server"
)

// backendProxyPrefix is the local route prefix for forwarded backend calls
const backendProxyPrefix = "/api/backend"

// APIFront represents the complete credential-exchange front application
type APIFront struct {
	config     config.Config
	httpServer *server.HTTPServer
}

// NewAPIFront creates the application with all dependencies built
func NewAPIFront(ctx context.Context, cfg config.Config) (*APIFront, error) {
	front := cfg.Front

	log.LogInfoWithFields("apifront", "Building api-front application", map[string]any{
		"addr":       front.Addr,
		"backendApi": front.BackendAPIURL,
		"authMode":   string(front.Mode),
	})

	var provider idp.Provider
	if front.Mode == config.AuthModeDirectProvider {
		p, err := idp.NewAuth0Provider(idp.Auth0Config{
			Domain:       front.Provider.Domain,
			ClientID:     string(front.Provider.ClientID),
			ClientSecret: string(front.Provider.ClientSecret),
			Audience:     front.Provider.Audience,
			Timeout:      front.ExchangeTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build identity provider: %w", err)
		}
		provider = p
	}

	backendClient := backendauth.NewClient(front.BackendAPIURL, front.ExchangeTimeout)

	defaultConnection := ""
	if front.Provider != nil {
		defaultConnection = front.Provider.Connection
	}
	exchanger := exchange.New(front.Mode, provider, backendClient, defaultConnection)

	handler := buildHTTPHandler(front, exchanger)
	httpServer := server.NewHTTPServer(handler, front.Addr)

	return &APIFront{
		config:     cfg,
		httpServer: httpServer,
	}, nil
}

// Run starts the application and blocks until shutdown
func (a *APIFront) Run() error {
	log.LogInfoWithFields("apifront", "Starting api-front application", map[string]any{
		"addr": a.config.Front.Addr,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Channel to signal errors that should trigger shutdown
	errChan := make(chan error, 1)

	go func() {
		if err := a.httpServer.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var shutdownReason string
	select {
	case sig := <-sigChan:
		shutdownReason = fmt.Sprintf("signal %v", sig)
		log.LogInfoWithFields("apifront", "Received shutdown signal", map[string]any{
			"signal": sig.String(),
		})
	case err := <-errChan:
		shutdownReason = fmt.Sprintf("error: %v", err)
		log.LogErrorWithFields("apifront", "Shutting down due to error", map[string]any{
			"error": err.Error(),
		})
	case <-ctx.Done():
		shutdownReason = "context cancelled"
		log.LogInfoWithFields("apifront", "Context cancelled, shutting down", nil)
	}

	log.LogInfoWithFields("apifront", "Starting graceful shutdown", map[string]any{
		"reason":  shutdownReason,
		"timeout": "30s",
	})
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		log.LogErrorWithFields("apifront", "HTTP server shutdown error", map[string]any{
			"error": err.Error(),
		})
		return err
	}

	log.LogInfoWithFields("apifront", "Application shutdown complete", map[string]any{
		"reason": shutdownReason,
	})
	return nil
}

// buildHTTPHandler assembles routes and middleware
func buildHTTPHandler(front config.FrontConfig, exchanger *exchange.Exchanger) http.Handler {
	mux := http.NewServeMux()

	authHandlers := server.NewAuthHandlers(exchanger)
	mux.HandleFunc("/api/auth/authenticate", authHandlers.AuthenticateHandler)
	// Kept for clients still calling the original route name
	mux.HandleFunc("/api/auth/login", authHandlers.AuthenticateHandler)
	mux.HandleFunc("/api/auth/logout", authHandlers.LogoutHandler)

	backendProxy := proxy.NewBackendProxy(front.BackendAPIURL, backendProxyPrefix, front.ProxyTimeout)
	mux.Handle(backendProxyPrefix+"/", backendProxy)

	mux.Handle("/health", server.NewHealthHandler())

	if front.Admin != nil {
		adminHandlers := server.NewAdminHandlers(*front.Admin)
		mux.Handle("/admin/", adminHandlers.Handler())
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		jsonwriter.WriteNotFound(w, "Not found")
	})

	return server.ChainMiddleware(
		mux,
		server.NewCORSMiddleware(front.AllowedOrigins),
		server.NewLoggerMiddleware("http"),
		// Recovery middleware should be last (outermost)
		server.NewRecoverMiddleware("http"),
	)
}
