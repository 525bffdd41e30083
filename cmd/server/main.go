package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"playforge/internal/api"
	"playforge/internal/assembly"
	"playforge/internal/config"
	"playforge/internal/logger"
	"playforge/internal/manifest"
)

const shutdownTimeout = 5 * time.Second

func main() {
	// .env is optional; system environment and defaults cover its absence.
	_ = config.Load()
	settings := config.FromEnv()

	log := logger.NewLogger(settings.LogLevel)
	log.Infof("Starting playback pipeline assembly daemon...")
	log.Infof("Log level set to: %s", settings.LogLevel)

	catalog, err := config.LoadCatalog(settings.CatalogPath)
	if err != nil {
		log.Errorf("Failed to load sample catalog: %v", err)
		os.Exit(1)
	}
	profile, err := config.LoadDeviceProfile(settings.ProfilePath)
	if err != nil {
		log.Errorf("Failed to load device profile: %v", err)
		os.Exit(1)
	}
	log.Infof("Loaded %d catalog samples and a device profile with %d decoders", len(catalog.Samples()), len(profile.Capabilities.Decoders))

	manifests := manifest.NewClient(log.Component("manifest"), settings.UserAgent)
	manager := assembly.NewManager(log.Component("assembly"), catalog, profile, manifests, assembly.ManagerOptions{
		UserAgent:     settings.UserAgent,
		LoaderWorkers: settings.LoaderWorkers,
	})
	manager.Start()

	router := api.New(log.Component("api"), catalog, manager)
	server := &http.Server{
		Addr:    settings.ListenAddr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("Server starting on %s", settings.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Infof("Server is shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	manager.Stop()
	if err != nil {
		log.Errorf("Server error: %v", err)
		os.Exit(1)
	}
	log.Infof("Server exited gracefully")
}
