package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/finbook/finbook/internal/config"
	"github.com/finbook/finbook/internal/dictionary"
	"github.com/finbook/finbook/internal/finance"
	"github.com/finbook/finbook/internal/httpapi"
	"github.com/finbook/finbook/internal/storage/memory"
	pgstore "github.com/finbook/finbook/internal/storage/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := buildLogger(cfg)
	slog.SetDefault(logger)

	var store httpapi.Storage
	var closeFn func()

	if cfg.DatabaseURL != "" {
		if err := pgstore.RunMigrations(cfg.DatabaseURL); err != nil {
			logger.Error("migrations failed", "err", err)
			os.Exit(1)
		}
		pg, err := pgstore.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to postgres", "err", err)
			os.Exit(1)
		}
		closeFn = pg.Close
		if cfg.DevSeed {
			user, accs, err := pg.SeedDev(ctx)
			if err != nil {
				logger.Error("dev seed failed", "err", err)
			} else {
				logDevSeed(logger, "postgres", user, accs)
				printDevSeedBanner(user, accs)
			}
		}
		store = pg
		logger.Info("storage backend: postgres")
	} else {
		mem := memory.New()
		user, accs := seedMemory(mem)
		logDevSeed(logger, "memory", user, accs)
		printDevSeedBanner(user, accs)
		store = mem
		logger.Info("storage backend: memory")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpapi.New(store, logger).Handler(),
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("finbook service listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error("server shutdown error", "err", err)
		}
	case err := <-errCh:
		logger.Error("server error", "err", err)
	}
	if closeFn != nil {
		closeFn()
	}
}

// seedMemory fills the in-memory store with a user, two accounts and the
// curated default categories so the API is usable out of the box.
func seedMemory(store *memory.Store) (finance.User, []finance.Account) {
	user := finance.User{ID: uuid.New()}
	store.SeedUser(user)
	zero, _ := money.NewAmountFromMinorUnits("GBP", 0)
	now := time.Now().UTC()
	checking := finance.Account{ID: uuid.New(), UserID: user.ID, Name: "Checking", Currency: "GBP", Balance: zero, Active: true, CreatedAt: now, UpdatedAt: now}
	savings := finance.Account{ID: uuid.New(), UserID: user.ID, Name: "Savings", Currency: "GBP", Balance: zero, Active: true, CreatedAt: now, UpdatedAt: now}
	store.SeedAccount(checking)
	store.SeedAccount(savings)
	for _, typ := range finance.Types() {
		for _, def := range dictionary.CategoriesFor(&typ) {
			store.SeedCategory(finance.Category{ID: uuid.New(), UserID: user.ID, Name: def.Label, Type: typ, Active: true})
		}
	}
	return user, []finance.Account{checking, savings}
}

// logDevSeed emits structured logs with useful IDs
func logDevSeed(l *slog.Logger, backend string, user finance.User, accs []finance.Account) {
	ids := map[string]string{}
	for _, a := range accs {
		ids[a.Name] = a.ID.String()
	}
	l.Info("DEV seed ("+backend+")", "user_id", user.ID.String(), "account_ids", ids)
}

// printDevSeedBanner prints a simple banner to stdout for easy copy/paste of IDs
func printDevSeedBanner(user finance.User, accs []finance.Account) {
	fmt.Println("==================== DEV SEED ====================")
	fmt.Printf("user_id: %s\n", user.ID.String())
	for _, a := range accs {
		fmt.Printf("%s_account_id: %s\n", a.Name, a.ID.String())
	}
	fmt.Println("==================================================")
}

// parseLogLevel maps env values to slog.Leveler
func parseLogLevel(s string) slog.Leveler {
	switch s {
	case "DEBUG", "debug":
		return slog.LevelDebug
	case "WARN", "WARNING", "warn", "warning":
		return slog.LevelWarn
	case "ERROR", "ERR", "error", "err":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildLogger(cfg *config.Config) *slog.Logger {
	level := parseLogLevel(cfg.LogLevel)
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
