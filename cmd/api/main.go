package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"accesscore.io/internal/access"
	"accesscore.io/internal/httpapi"
	"accesscore.io/internal/obs"
	"accesscore.io/internal/store/pg"
)

var version = "0.3.0"

// logDelivery writes issued credentials to the structured log. It
// stands in for the mail/SMS channel until one is wired up; the
// secret itself is never logged.
type logDelivery struct{}

func (logDelivery) Send(ctx context.Context, ev access.CredentialIssued) error {
	obs.LogEvent(map[string]any{
		"event":   "credential_issued",
		"user_id": ev.User.ID,
		"email":   ev.User.Email,
	})
	return nil
}

func envInt(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Fatalf("parse %s: %v", key, err)
	}
	return n
}

func main() {
	obs.Init()

	// Store selection: Postgres when a DSN is given, in-memory otherwise.
	// The in-memory store is enough for demos and single-node trials.
	var (
		db    *sql.DB
		store access.Store
	)
	if dsn := os.Getenv("ACCESSCORE_PG_DSN"); dsn != "" {
		var err error
		db, err = pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)

		pgStore := pg.New(db)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			cancel()
			log.Fatalf("ensure schema: %v", err)
		}
		cancel()
		store = pgStore
	} else {
		log.Printf("ACCESSCORE_PG_DSN not set, using in-memory store")
		store = access.NewMemoryStore()
	}

	catalog := access.DefaultCatalog()
	registry, err := access.NewRegistry(store, catalog)
	if err != nil {
		log.Fatalf("registry: %v", err)
	}
	directory, err := access.NewDirectory(store, catalog)
	if err != nil {
		log.Fatalf("directory: %v", err)
	}
	provisioner, err := access.NewProvisioner(directory, logDelivery{})
	if err != nil {
		log.Fatalf("provisioner: %v", err)
	}

	api := httpapi.New(httpapi.Config{
		Registry:    registry,
		Directory:   directory,
		Provisioner: provisioner,
		Catalog:     catalog,
		ReadyProbe:  httpapi.ReadyProbe{DB: db},
		Version:     version,
	})

	handler := httpapi.Logging(
		httpapi.SecurityHeaders(
			httpapi.RateLimit(
				httpapi.MaxBodyBytes(api.Handler(), 1<<20),
				envInt("ACCESSCORE_RATE_BURST", 20),
				envInt("ACCESSCORE_RATE_PER_SECOND", 10),
			),
		),
	)

	addr := os.Getenv("ACCESSCORE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting accesscore-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
