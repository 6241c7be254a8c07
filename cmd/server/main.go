package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"recently-viewed/server/internal/auth"
	"recently-viewed/server/internal/catalog"
	"recently-viewed/server/internal/config"
	"recently-viewed/server/internal/httpapi"
	"recently-viewed/server/internal/lifecycle"
	"recently-viewed/server/internal/logging"
	"recently-viewed/server/internal/metrics"
	"recently-viewed/server/internal/recent"
	"recently-viewed/server/internal/storage"
	"recently-viewed/server/internal/view"
	"recently-viewed/server/internal/visitor"
)

const version = "1.0.0"

// dotenvFiles are read before the environment; existing variables win.
var dotenvFiles = []string{".env"}

type options struct {
	uninstall bool
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.BoolVar(&opts.uninstall, "uninstall", false, "remove the installed version marker and exit")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	dotenvErr := godotenv.Load(dotenvFiles...)
	cfg := config.Load()
	log := logging.New(cfg.LogLevel)
	if dotenvErr != nil {
		log.Debug("config.dotenv_missing", "err", dotenvErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.uninstall {
		if err := uninstall(ctx, cfg, log); err != nil {
			log.Error("lifecycle.uninstall_failed", "err", err)
			os.Exit(1)
		}
		return
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server.exit", "err", err)
		os.Exit(1)
	}
}

// uninstall removes the version marker so the next start installs afresh.
func uninstall(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	sqlite, err := storage.OpenSQLite(cfg.SQLitePath)
	if err != nil {
		return err
	}
	defer sqlite.Close()
	if err := sqlite.Init(ctx); err != nil {
		return err
	}
	if err := lifecycle.Deactivate(ctx, sqlite); err != nil {
		return err
	}
	log.Info("lifecycle.uninstalled", "path", cfg.SQLitePath)
	return nil
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	sqlite, err := storage.OpenSQLite(cfg.SQLitePath)
	if err != nil {
		return err
	}
	defer sqlite.Close()
	if err := sqlite.Init(ctx); err != nil {
		return err
	}
	if _, err := lifecycle.Activate(ctx, sqlite, version, log); err != nil {
		return err
	}
	if cfg.ProductsFile != "" {
		if err := importProducts(ctx, sqlite, cfg.ProductsFile, log); err != nil {
			return err
		}
	}

	m := metrics.New()

	var cache storage.Cache = sqlite
	if cfg.CacheBackend == config.CacheBackendMemory {
		memory := storage.NewMemoryCache(cfg.CacheSize)
		defer memory.Close()
		cache = memory
	} else {
		go purgeTransients(ctx, sqlite, cfg.PurgeInterval, m, log)
	}

	pages, err := view.New()
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	var handler http.Handler = mux
	switch {
	case cfg.OIDCEnabled():
		manager, err := auth.NewManager(auth.Config{
			IssuerURL:    cfg.OIDCIssuerURL,
			ClientID:     cfg.OIDCClientID,
			ClientSecret: cfg.OIDCClientSecret,
			RedirectURL:  cfg.OIDCRedirectURL,
			SessionKey:   cfg.SessionKey,
			CookieSecure: cfg.CookieSecure,
		})
		if err != nil {
			return err
		}
		if err := manager.RegisterRoutes(mux); err != nil {
			return err
		}
		handler = manager.WithUser(handler)
	case cfg.DevUser != "":
		log.Warn("auth.dev_user", "user", cfg.DevUser)
		handler = auth.DevUserMiddleware(cfg.DevUser)(handler)
	}

	items := catalog.NewSQLCatalog(sqlite)
	resolver := visitor.NewResolver(auth.ContextSessions{}, cfg.TrustProxy)
	store := recent.NewStore(sqlite, cache, recent.StoreOptions{
		AnonymousTTL: cfg.AnonymousTTL,
		Logger:       log,
		Metrics:      m,
	})
	server := httpapi.NewServer(httpapi.Deps{
		Catalog:  items,
		Resolver: resolver,
		Store:    store,
		Tracker: recent.NewTracker(resolver, store, items, recent.TrackerOptions{
			MaxItems: cfg.MaxItems,
			Logger:   log,
			Metrics:  m,
		}),
		Renderer: recent.NewRenderer(resolver, store, items, pages, recent.RendererOptions{
			Logger:  log,
			Metrics: m,
		}),
		Pages:   pages,
		Health:  sqlite,
		Log:     log,
		Metrics: m,
	})
	server.RegisterRoutes(mux)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           logging.WithRequestLogging(handler, log),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server.listening", "addr", cfg.HTTPAddr, "cache", cfg.CacheBackend, "max_items", cfg.MaxItems)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	log.Info("server.shutdown")
	return httpServer.Shutdown(shutdownCtx)
}

func importProducts(ctx context.Context, store *storage.SQLiteStore, path string, log *slog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open products file: %w", err)
	}
	defer f.Close()
	n, err := store.ImportProducts(ctx, f)
	if err != nil {
		return err
	}
	log.Info("catalog.imported", "path", path, "count", n)
	return nil
}

func purgeTransients(ctx context.Context, store *storage.SQLiteStore, interval time.Duration, m *metrics.Metrics, log *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.PurgeExpired(ctx)
			if err != nil {
				log.Warn("transients.purge_failed", "err", err)
				continue
			}
			m.Purged(n)
			if n > 0 {
				log.Debug("transients.purged", "count", n)
			}
		}
	}
}
