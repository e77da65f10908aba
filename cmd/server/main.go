package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"homie/internal/config"
	"homie/internal/database"
	"homie/internal/feature"
	"homie/internal/handler"
	"homie/internal/policy"
	"homie/internal/session"
	"homie/internal/supabase"
	"homie/internal/user"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("error closing database: %v", err)
		}
	}()
	log.Printf("database opened at %s", cfg.Database.Path)

	// Schema setup runs to completion before the server accepts traffic.
	initCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.InitSchema(initCtx); err != nil {
		cancel()
		log.Fatalf("failed to initialize schema: %v", err)
	}
	cancel()
	log.Println("database schema ready")

	accessControl := policy.New(cfg.AccessControl.AdminEmails, cfg.AccessControl.AllowedEmails)
	log.Printf("access control: %d admin emails, %d allowed emails",
		len(cfg.AccessControl.AdminEmails), len(cfg.AccessControl.AllowedEmails))

	deps := &handler.Deps{
		Config:   cfg,
		DB:       db,
		Users:    user.NewManager(user.NewDatastore(db)),
		Sessions: session.NewManager(cfg.Session.Secret, cfg.Session.Lifetime, cfg.Session.CookieSecure),
		Features: feature.NewStore(db),
		Policy:   accessControl,
		Provider: supabase.New(cfg.Supabase.URL, cfg.Supabase.Key),
	}

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, deps)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: mux,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)

	go func() {
		log.Printf("Homie server starting on :%s", cfg.Port)
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	case sig := <-shutdown:
		log.Printf("received signal %v, initiating graceful shutdown...", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		log.Println("waiting for in-flight requests to complete...")
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("graceful shutdown failed: %v, forcing shutdown", err)
			if err := server.Close(); err != nil {
				log.Fatalf("forced shutdown failed: %v", err)
			}
		}

		log.Println("server shutdown complete")
	}
}
