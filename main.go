package main

import (
	"context"
	"crypto/rand"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nobugs-bank/auth"
	"nobugs-bank/bankapi"
	"nobugs-bank/config"
	"nobugs-bank/database"
	"nobugs-bank/handlers"
	"nobugs-bank/models"
	"nobugs-bank/session"
	"nobugs-bank/telemetry"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg := config.Load()
	shutdownTelemetry := telemetry.Setup(context.Background(), "nobugs-bank-shell")
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			log.Fatalf("session secret: %v", err)
		}
		log.Println("SESSION_SECRET not set, sessions will not survive a restart")
	}

	store, closeStore := openStore(cfg, secret)
	defer closeStore()

	client := bankapi.New(cfg.BaseURL(), bankapi.WithTimeout(cfg.APITimeout))
	elevated := session.New(cfg.DirectoryUser, models.RoleAdmin, cfg.DirectoryPassword)
	directory := bankapi.NewDirectory(client, &elevated)
	sessions := auth.NewManager(secret, cfg.SessionTTL, store)
	handler := handlers.NewHandler(client, directory, sessions)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(handlers.LoggingMiddleware(handler.Routes()), "nobugs-bank-shell"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.WriteTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("shell listening addr=%s backend=%s", server.Addr, client.BaseURL())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// openStore keeps sessions in Postgres or MySQL when DB_DSN is set, in
// memory otherwise. The returned func releases the connection.
func openStore(cfg config.Config, secret []byte) (session.Store, func()) {
	if cfg.DatabaseURL == "" {
		log.Println("DB_DSN not set, keeping sessions in memory")
		store := session.NewMemoryStore()
		go purgeLoop(store.PurgeExpired)
		return store, func() {}
	}

	sealer, err := session.NewSealer(secret)
	if err != nil {
		log.Fatalf("session sealer: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if session.IsPostgresDSN(cfg.DatabaseURL) {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db connect: %v", err)
		}
		store := session.NewPostgresStore(pool, sealer)
		if err := store.Migrate(ctx); err != nil {
			log.Fatalf("db migrate: %v", err)
		}
		log.Println("keeping sessions in postgres")
		go purgeLoop(store.PurgeExpired)
		return store, pool.Close
	}

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	go purgeLoop(func(ctx context.Context, now time.Time) (int64, error) {
		return database.PurgeExpired(ctx, db, now)
	})
	return session.NewSQLStore(db, sealer), func() { _ = db.Close() }
}

func purgeLoop(purge func(context.Context, time.Time) (int64, error)) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		n, err := purge(ctx, time.Now())
		cancel()
		if err != nil {
			log.Printf("purge sessions error=%v", err)
			continue
		}
		if n > 0 {
			log.Printf("purged expired sessions count=%d", n)
		}
	}
}
