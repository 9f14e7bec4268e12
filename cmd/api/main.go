package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/evandrarf/neurocase-be/database"
	"github.com/evandrarf/neurocase-be/internal/config"
	"github.com/evandrarf/neurocase-be/internal/pkg/validate"
	"golang.org/x/sync/errgroup"
)

func main() {
	viperConfig := config.NewViper()

	log := config.NewLogger(viperConfig)
	db := database.New(viperConfig)
	validator := validate.NewValidator()
	api := config.NewAPI(viperConfig, log)

	// Run migrations
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Info("Migrations completed successfully")

	// Run seeders
	if err := database.SeedMCQs(db, log); err != nil {
		log.Fatalf("Failed to seed MCQs: %v", err)
	}
	log.Info("Seeders completed successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	defer stop()

	rt, err := config.Bootstrap(ctx, &config.BootstrapConfig{
		Config:    viperConfig,
		Log:       log,
		Api:       api,
		Validator: validator,
		DB:        db,
	})
	if err != nil {
		log.Fatalf("Failed to bootstrap: %v", err)
	}
	defer rt.Close()

	port := viperConfig.GetInt("api.port")
	if port == 0 {
		port = 8080
	}
	listenAddr := fmt.Sprintf(":%d", port)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := api.Listen(listenAddr); err != nil {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return rt.Worker.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := api.ShutdownWithContext(shutdownCtx); err != nil {
			log.Errorf("API shutdown error: %v", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Errorf("Server stopped with error: %v", err)
	}
}
