package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/grandcat/zeroconf"

	"summitsafeguard/go-tracker-server/internal/auth"
	"summitsafeguard/go-tracker-server/internal/config"
	"summitsafeguard/go-tracker-server/internal/model"
	"summitsafeguard/go-tracker-server/internal/query"
	"summitsafeguard/go-tracker-server/internal/store"
)

// App wires together the dashboard services and manages their lifecycle.
// The ingestion pipeline runs in a separate process; the two share only the
// database file.
type App struct {
	cfg     config.Config
	logger  *slog.Logger
	store   *store.Store
	queries *query.Service
	mdns    *zeroconf.Server
}

// New constructs a new application instance.
func New(cfg config.Config, logger *slog.Logger) *App {
	return &App{cfg: cfg, logger: logger}
}

// Run starts the web server and blocks until the context is cancelled or an
// error occurs.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.JWTSecret == "" {
		return fmt.Errorf("TRACKER_JWT_SECRET must be set")
	}

	db, err := store.Open(a.cfg.DatabasePath)
	if err != nil {
		return err
	}
	a.store = db

	if err := a.store.InitSchema(ctx); err != nil {
		return err
	}

	defer func() {
		if cerr := a.store.Close(); cerr != nil {
			a.logger.Error("close store", "error", cerr)
		}
	}()

	if err := a.ensureBootstrapAccount(ctx); err != nil {
		return err
	}

	a.queries = query.NewService(a.store)

	if a.cfg.EnableMDNS {
		if err := a.startMDNS(a.cfg.HTTPPort); err != nil {
			a.logger.Warn("mDNS advertisement failed", "error", err)
		}
		defer a.stopMDNS()
	}

	httpErrCh := make(chan error, 1)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.HTTPPort),
		Handler: a.routes(),
	}

	go func() {
		a.logger.Info("http server started", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErrCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		a.logger.Info("http server stopped")
		return nil
	case err := <-httpErrCh:
		return err
	}
}

// ensureBootstrapAccount seeds the first rescuer from the environment so a
// fresh deployment has a way to log in and create further accounts.
func (a *App) ensureBootstrapAccount(ctx context.Context) error {
	count, err := a.store.CountAccounts(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if a.cfg.AdminUser == "" || a.cfg.AdminPassword == "" {
		a.logger.Warn("no accounts exist and no bootstrap credentials configured; logins will fail")
		return nil
	}

	hash, err := auth.HashPassword(a.cfg.AdminPassword)
	if err != nil {
		return err
	}

	if _, err := a.store.CreateAccount(ctx, model.Account{
		Username:     a.cfg.AdminUser,
		PasswordHash: hash,
		Role:         model.RoleRescuer,
	}); err != nil {
		return fmt.Errorf("bootstrap account: %w", err)
	}

	a.logger.Info("bootstrap rescuer account created", "username", a.cfg.AdminUser)
	return nil
}

func (a *App) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", a.handleHealthz)
	mux.HandleFunc("/readyz", a.handleReadyz)
	mux.HandleFunc("/api/login", a.handleLogin)
	mux.HandleFunc("/api/hikers", a.requireAuth(a.handleHikers))
	mux.HandleFunc("/api/data/", a.requireAuth(a.handleHikerData))
	mux.HandleFunc("/api/accounts", a.requireRescuer(a.handleAccounts))
	mux.HandleFunc("/api/accounts/", a.requireRescuer(a.handleAccountByID))
	mux.HandleFunc("/static/", func(w http.ResponseWriter, r *http.Request) {
		http.StripPrefix("/static/", http.FileServer(http.Dir("web"))).ServeHTTP(w, r)
	})
	mux.HandleFunc("/", a.handleIndex)

	return mux
}

func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (a *App) handleReadyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if a.store == nil || a.queries == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"starting"}`))
		return
	}
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}

func (a *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	fileServer := http.FileServer(http.Dir("web"))
	fileServer.ServeHTTP(w, r)
}
