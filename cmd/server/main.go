/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the jewellery ledger server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present), then parse command-line flags
  2. Initialize SQLite store
  3. Bootstrap the admin account from the environment
  4. Configure HTTP router
  5. Start server with graceful shutdown

CONFIGURATION:
  Flags take precedence over environment:
    -port    HTTP server port        (env LEDGER_PORT, default 8080)
    -db      SQLite database path    (env LEDGER_DB, default ledger.db)
             Use ":memory:" for an in-memory database

  Environment only:
    LEDGER_JWT_SECRET       Session token signing secret (required)
    LEDGER_ADMIN_EMAIL      Bootstrap admin email
    LEDGER_ADMIN_PASSWORD   Bootstrap admin password (min 8 chars)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM: stop accepting connections, wait up to 30s for
  active requests, close the database, exit.

SEE ALSO:
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/karat/ledger-engine/api"
	"github.com/karat/ledger-engine/auth"
	"github.com/karat/ledger-engine/inventory"
	"github.com/karat/ledger-engine/store/sqlite"
)

func main() {
	// .env is optional; real env vars win over file values.
	_ = godotenv.Load()

	port := flag.Int("port", envInt("LEDGER_PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("LEDGER_DB", "ledger.db"), "SQLite database path")
	flag.Parse()

	secret := os.Getenv("LEDGER_JWT_SECRET")
	if secret == "" {
		log.Fatal("LEDGER_JWT_SECRET is required")
	}

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	authSvc := auth.NewService(store, auth.NewTokenIssuer(secret, 12*time.Hour))
	if err := authSvc.Bootstrap(context.Background(),
		os.Getenv("LEDGER_ADMIN_EMAIL"), os.Getenv("LEDGER_ADMIN_PASSWORD")); err != nil {
		log.Fatalf("Failed to bootstrap admin account: %v", err)
	}

	handler := api.NewHandler(store, inventory.NewService(store), authSvc)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Ledger server starting on http://localhost:%d", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
