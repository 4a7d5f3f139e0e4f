package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/brahimbus/FcmControll/internal/api"
	"github.com/brahimbus/FcmControll/internal/cache"
	"github.com/brahimbus/FcmControll/internal/config"
	"github.com/brahimbus/FcmControll/internal/fcm"
	"github.com/brahimbus/FcmControll/internal/scheduler"
	"github.com/brahimbus/FcmControll/internal/service"
	"github.com/brahimbus/FcmControll/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAll()
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()

	db, err := openDB(cfg.Database.PostgresURL)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	st := store.NewPostgresStore(db)
	if err := st.InitSchema(ctx); err != nil {
		log.Fatal(err)
	}

	var attempts cache.AttemptCache
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		attempts = cache.NewRedisCache(rdb, cfg.Redis.TTL)
	}

	tokens, err := loadTokenSource(ctx, cfg.FCM.CredentialsFile)
	if err != nil {
		log.Fatal(err)
	}
	client := fcm.NewClient(cfg.FCM.Endpoint, tokens, cfg.FCM.TTL)

	sched := scheduler.New()
	notifier := service.NewNotifier(st, sched, client, cfg.History.Limit).
		WithAttemptCache(attempts)

	// Trigger state is in-memory only; rebuild it from the active rows
	// before the engine starts firing.
	if err := notifier.Reconcile(ctx); err != nil {
		log.Fatal(err)
	}
	sched.Start()

	handler := api.NewHandler(notifier)
	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: loggingMiddleware(api.Router(handler, cfg.Server.AllowedOrigin)),
	}

	go func() {
		slog.Info("fcmcontrol listening", "addr", cfg.Server.Address, "redis", cfg.Redis.Enabled)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server crashed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	slog.Info("shutting down", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown error", "error", err)
	}

	// Wait for in-flight fires to drain.
	select {
	case <-sched.Stop().Done():
	case <-shutdownCtx.Done():
		slog.Warn("scheduler drain timed out")
	}
}

func openDB(url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, err
	}

	for i := 0; i < 5; i++ {
		if err = db.Ping(); err == nil {
			return db, nil
		}
		slog.Info("waiting for database", "attempt", i+1)
		time.Sleep(2 * time.Second)
	}
	return nil, fmt.Errorf("could not connect to postgres: %w", err)
}

func loadTokenSource(ctx context.Context, credFile string) (oauth2.TokenSource, error) {
	data, err := os.ReadFile(credFile)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}

	creds, err := google.CredentialsFromJSON(ctx, data, fcm.Scope)
	if err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}

	// creds.TokenSource caches the token until expiry and refreshes
	// once per expiry, so concurrent dispatches share one fetch.
	return creds.TokenSource, nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
