package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/atmx/portfolio-engine/internal/config"
	"github.com/atmx/portfolio-engine/internal/ledger"
	"github.com/atmx/portfolio-engine/internal/metrics"
	"github.com/atmx/portfolio-engine/internal/seed"
	"github.com/atmx/portfolio-engine/internal/simulator"
	"github.com/atmx/portfolio-engine/internal/store"
	"github.com/atmx/portfolio-engine/internal/trade"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Initialize journal ---
	journal, cleanup, err := openJournal(ctx, cfg)
	if err != nil {
		slog.Error("journal setup failed", "err", err)
		os.Exit(1)
	}
	defer cleanup()

	// --- Ledger ---
	sim := simulator.New(nil)
	initial := seed.State(sim, cfg.StartingCash, cfg.HistoryWindow, time.Now().UTC())
	book := ledger.NewBook(initial, ledger.Reducer{})
	slog.Info("ledger seeded",
		"instruments", initial.Catalog.Len(),
		"holdings", len(initial.Holdings),
		"cash", initial.Cash.String(),
		"net_worth", initial.NetWorth().StringFixed(2),
	)

	// --- WebSocket hub ---
	wsHub := trade.NewWSHub()

	// --- Trade service ---
	tradeSvc := trade.NewService(book, journal, wsHub)

	// --- Price simulator ---
	runner := simulator.NewRunner(sim, tradeSvc, cfg.TickSchedule)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS for the dashboard frontend.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"portfolio-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for price ticks and executed trades.
		r.Get("/ws", wsHub.HandleWS)

		tradeSvc.Routes(r)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return wsHub.Run(ctx) })
	group.Go(func() error { return runner.Run(ctx) })
	group.Go(func() error {
		slog.Info("portfolio-engine listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	// Graceful shutdown.
	group.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down portfolio-engine...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		slog.Error("portfolio-engine exited", "err", err)
		os.Exit(1)
	}
	fmt.Println("portfolio-engine stopped")
}

// openJournal selects the audit journal: PostgreSQL when DATABASE_URL is
// set, wrapped in a Redis cache when REDIS_URL is also set, otherwise
// in-memory.
func openJournal(ctx context.Context, cfg *config.Config) (store.Journal, func(), error) {
	var cleanup []func()
	closeAll := func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}

	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL not set, using in-memory journal (audit trail will not persist)",
			"price_retention", cfg.JournalRetention)
		return store.NewMemoryJournal(cfg.JournalRetention), closeAll, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, closeAll, fmt.Errorf("database connection: %w", err)
	}
	cleanup = append(cleanup, pool.Close)

	pg := store.NewPostgresJournal(pool)
	if err := pg.EnsureSchema(ctx); err != nil {
		closeAll()
		return nil, func() {}, err
	}
	slog.Info("connected to PostgreSQL")

	var journal store.Journal = pg

	// Wrap with Redis read-through cache if configured.
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
		journal = store.NewCachedJournal(pg, rdb, cfg.CacheTTL)
		slog.Info("Redis cache enabled", "ttl", cfg.CacheTTL)
	}

	return journal, closeAll, nil
}
