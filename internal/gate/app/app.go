package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	gatehttp "github.com/quollsoft/recordgate/internal/gate/http"
	"github.com/quollsoft/recordgate/internal/gate/mcp"
	"github.com/quollsoft/recordgate/internal/gate/service"
	"github.com/quollsoft/recordgate/internal/gate/store"
	"github.com/quollsoft/recordgate/internal/gate/store/drivers/memory"
	"github.com/quollsoft/recordgate/internal/gate/store/drivers/sqlite"
	"github.com/quollsoft/recordgate/pkg/slogx"

	"golang.org/x/sync/errgroup"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Application owns the full object graph and its lifecycle: storage,
// services, the HTTP server, and the session table.
type Application struct {
	cfg Config
	log *slog.Logger

	store    store.Store
	clients  *service.ClientService
	ledger   *service.LedgerService
	sessions *mcp.SessionRegistry

	server *http.Server
}

// New builds the application: opens the store, runs migrations, warms the
// client cache, and seeds the bootstrap account if one is configured.
func New(cfg Config) (*Application, error) {
	log := slogx.New(slogx.Config{
		Service: "recordgate",
		Version: Version,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})

	var (
		st  store.Store
		err error
	)
	switch cfg.StoreBackend {
	case "memory":
		st = memory.NewStore()
	default:
		st, err = sqlite.NewStore(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
	}

	if err := st.ApplyMigrations(); err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	credentials := &service.CredentialService{Store: st}
	clients := &service.ClientService{Store: st, SecretTTL: cfg.ClientSecretTTL}
	ledger := &service.LedgerService{
		Store:           st,
		CodeTTL:         cfg.CodeTTL,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
	}
	authorize := &service.AuthorizeService{
		Credentials: credentials,
		Clients:     clients,
		Ledger:      ledger,
		LoginPath:   "/login",
	}

	ctx := context.Background()
	if err := clients.WarmCache(ctx); err != nil {
		return nil, fmt.Errorf("warm client cache: %w", err)
	}

	if cfg.BootstrapEmail != "" && cfg.BootstrapPassword != "" {
		user, err := credentials.EnsureUser(ctx, cfg.BootstrapEmail, cfg.BootstrapName, cfg.BootstrapPassword)
		if err != nil {
			return nil, fmt.Errorf("seed bootstrap user: %w", err)
		}
		if err := seedWelcomeRecord(ctx, st, user.ID); err != nil {
			return nil, fmt.Errorf("seed welcome record: %w", err)
		}
		log.Info("bootstrap user ready", slog.String("user_id", user.ID))
	}

	sessions := mcp.NewSessionRegistry()
	handlers := &gatehttp.Handlers{
		Authorize:     authorize,
		Clients:       clients,
		Ledger:        ledger,
		Sessions:      sessions,
		Store:         st,
		Issuer:        cfg.Issuer,
		LoginResponse: gatehttp.LoginResponseMode(cfg.LoginResponse),
		ServerName:    "recordgate",
		ServerVersion: Version,
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           slogx.HTTPMiddleware(log)(gatehttp.NewRouter(handlers)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Application{
		cfg:      cfg,
		log:      log,
		store:    st,
		clients:  clients,
		ledger:   ledger,
		sessions: sessions,
		server:   server,
	}, nil
}

// Run serves until the context is cancelled or a termination signal
// arrives, then drains: the listener stops, every open session closes, and
// background work flushes, all within the configured grace window.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info("listening", slog.String("addr", a.cfg.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(a.cfg.HousekeepingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := a.ledger.PurgeExpired(gctx); err != nil {
					a.log.Warn("housekeeping failed", slog.Any("error", err))
				}
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		return a.shutdown()
	})

	return g.Wait()
}

func (a *Application) shutdown() error {
	a.log.Info("shutting down", slog.Duration("grace", a.cfg.ShutdownGrace))

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownGrace)
	defer cancel()

	// Closing sessions first unblocks any event streams the server is
	// still holding open, so Shutdown can finish within the grace window.
	if err := a.sessions.CloseAll(ctx); err != nil {
		a.log.Warn("session drain incomplete", slog.Any("error", err))
	}

	if err := a.server.Shutdown(ctx); err != nil {
		a.log.Warn("server shutdown incomplete", slog.Any("error", err))
	}

	a.clients.Flush()

	if err := a.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}

	a.log.Info("shutdown complete")
	return nil
}
