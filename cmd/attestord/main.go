package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/openwallet/nmc-attestor/pkg/app/errors"
	"github.com/openwallet/nmc-attestor/pkg/auth"
	"github.com/openwallet/nmc-attestor/pkg/bindingstore"
	"github.com/openwallet/nmc-attestor/pkg/config"
	"github.com/openwallet/nmc-attestor/pkg/identity"
	"github.com/openwallet/nmc-attestor/pkg/namecoin"
	"github.com/openwallet/nmc-attestor/pkg/names"
	"github.com/openwallet/nmc-attestor/pkg/pgutil"
	"github.com/openwallet/nmc-attestor/pkg/reconciler"
	"github.com/openwallet/nmc-attestor/pkg/unlock"
	"github.com/openwallet/nmc-attestor/pkg/verifier"
)

var (
	configPath = flag.String("config", "config.yaml", "Path to configuration file")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting Namecoin credential attestor")

	// Initialize database
	db, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	store := bindingstore.NewStore(db)

	// Initialize Namecoin client
	nmcClient, err := namecoin.NewClient(&cfg.Namecoin, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Namecoin client", zap.Error(err))
	}

	// Initialize identity client
	idClient, err := identity.NewClient(&cfg.Identity, logger)
	if err != nil {
		logger.Fatal("Failed to initialize identity client", zap.Error(err))
	}

	// Wallet unlock flow: interactive when a terminal is attached, otherwise
	// the configured passphrase (which may be empty, turning every unlock
	// into a cancel).
	var prompter unlock.Prompter
	if tp, err := unlock.NewTerminalPrompter(); err == nil {
		prompter = tp
	} else {
		logger.Info("No terminal attached, using configured wallet passphrase")
		prompter = unlock.NewStaticPrompter(cfg.Namecoin.WalletPassphrase)
	}
	unlocker := unlock.NewCoordinator(nmcClient, prompter, logger)

	ctx := context.Background()
	warnLowBalance(ctx, nmcClient, cfg.Namecoin.MinBalance, logger)

	manager, err := names.New(ctx, store, nmcClient, unlocker, idClient, cfg.Namecoin.Namespace, logger)
	if err != nil {
		logger.Fatal("Failed to reload pending bindings", zap.Error(err))
	}

	vrf := verifier.New(nmcClient, cfg.Namecoin.Namespace, logger)

	rec := reconciler.New(manager, cfg.Reconciliation.Interval, logger)
	rec.Start()
	defer rec.Stop()

	validator := auth.NewJWTValidator(cfg.Auth.JWTSecret, cfg.Auth.Issuer)

	// Setup HTTP server for API and metrics
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint (liveness)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Readiness endpoint
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("NOT_READY"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("READY"))
	})

	// Metrics endpoint
	if cfg.Monitoring.Enabled {
		r.Handle("/metrics", promhttp.Handler())
		logger.Info("Metrics enabled")
	}

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/verify", handleVerify(vrf, logger))
		r.Get("/bindings", handleListBindings(store, logger))
		r.Get("/pending", handleListPending(manager, logger))
		// Binding names contain a slash, so this is a catch-all param.
		r.Get("/bindings/*", handleGetBinding(store, logger))

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(validator, logger))
			r.Post("/registrations", handleStartRegistration(manager, logger))
			r.Post("/reconcile", handleReconcile(rec))
		})
	})

	// Start HTTP server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("address", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutdown signal received, gracefully shutting down...")

	shutdownTimeout := cfg.Shutdown.Timeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	logger.Info("Attestor stopped")
}

// warnLowBalance logs when the wallet balance is below the configured
// threshold. Name operations burn coins, so running dry strands pending
// bindings mid-flight.
func warnLowBalance(ctx context.Context, client *namecoin.Client, minBalance string, logger *zap.Logger) {
	if minBalance == "" {
		return
	}
	threshold, err := decimal.NewFromString(minBalance)
	if err != nil {
		logger.Warn("Invalid min_balance setting", zap.String("min_balance", minBalance), zap.Error(err))
		return
	}

	balance, err := client.GetBalance(ctx)
	if err != nil {
		logger.Warn("Failed to query wallet balance", zap.Error(err))
		return
	}
	if balance.LessThan(threshold) {
		logger.Warn("Wallet balance below threshold, name operations may fail",
			zap.String("balance", balance.String()),
			zap.String("threshold", threshold.String()))
	}
}

type registrationRequest struct {
	NymID          string `json:"nym_id"`
	CredentialHash string `json:"credential_hash"`
}

func handleStartRegistration(manager *names.Manager, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registrationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.NymID == "" || req.CredentialHash == "" {
			http.Error(w, "nym_id and credential_hash are required", http.StatusBadRequest)
			return
		}

		b, err := manager.StartRegistration(r.Context(), req.NymID, req.CredentialHash)
		if err != nil {
			logger.Error("Failed to start registration", zap.Error(err))
			writeServiceError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		if err := json.NewEncoder(w).Encode(b); err != nil {
			logger.Error("Failed to encode response", zap.Error(err))
		}
	}
}

func handleVerify(vrf *verifier.Verifier, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		credentialHash := r.URL.Query().Get("credential_hash")
		source := r.URL.Query().Get("source")
		if credentialHash == "" || source == "" {
			http.Error(w, "credential_hash and source are required", http.StatusBadRequest)
			return
		}

		reason, err := vrf.VerifyWithReason(r.Context(), credentialHash, source)
		if err != nil {
			logger.Error("Verification failed", zap.Error(err))
			http.Error(w, "verification unavailable", http.StatusBadGateway)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		resp := map[string]interface{}{
			"valid":  reason == verifier.ReasonValid,
			"reason": reason.String(),
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.Error("Failed to encode response", zap.Error(err))
		}
	}
}

func handleListBindings(store bindingstore.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bindings, err := store.ListBindings(r.Context(), 100)
		if err != nil {
			logger.Error("Failed to list bindings", zap.Error(err))
			http.Error(w, "Failed to list bindings", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]interface{}{"bindings": bindings}); err != nil {
			logger.Error("Failed to encode response", zap.Error(err))
		}
	}
}

func handleListPending(manager *names.Manager, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]interface{}{"pending": manager.PendingStatuses()}); err != nil {
			logger.Error("Failed to encode response", zap.Error(err))
		}
	}
}

func handleGetBinding(store bindingstore.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "*")
		b, err := store.GetBinding(r.Context(), name)
		if err != nil {
			if errors.Is(err, bindingstore.ErrBindingNotFound) {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			logger.Error("Failed to get binding", zap.Error(err), zap.String("name", name))
			http.Error(w, "Failed to get binding", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(b); err != nil {
			logger.Error("Failed to encode response", zap.Error(err))
		}
	}
}

func handleReconcile(rec *reconciler.Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !rec.RunOnce(r.Context()) {
			http.Error(w, "reconciliation already in progress", http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	var serr *apperrors.ServiceError
	if errors.As(err, &serr) {
		http.Error(w, serr.Message, serr.StatusCode())
		return
	}
	http.Error(w, "internal error", http.StatusInternalServerError)
}
