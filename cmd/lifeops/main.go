package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/lifeops-dev/lifeops/internal/auth"
	"github.com/lifeops-dev/lifeops/internal/config"
	"github.com/lifeops-dev/lifeops/internal/httpapi"
	"github.com/lifeops-dev/lifeops/internal/lifeops"
	"github.com/lifeops-dev/lifeops/internal/metrics"
	"github.com/lifeops-dev/lifeops/internal/remote"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatalf("invalid timezone %q: %v", cfg.Timezone, err)
	}

	cache, err := lifeops.BuildCacheFromDSN(cfg.CacheDSN)
	if err != nil {
		log.Fatalf("failed to initialize cache backend: %v", err)
	}
	defer cache.Close()

	sessions := auth.NewSessionManager(cfg.SecureCookies())
	authSvc := auth.NewService(auth.ServiceOptions{
		ClientID:     cfg.OAuthClientID,
		ClientSecret: cfg.OAuthClientSecret,
		RedirectURL:  cfg.RedirectURL(),
		Cache:        cache,
		Sessions:     sessions,
		Logger:       log.Default(),
	})

	client := remote.NewClient(remote.ClientOptions{
		CalendarID:    cfg.CalendarID,
		TokenProvider: authSvc.TokenProvider(),
		Observer:      metrics.ObserveRemoteRequest,
		UserAgent:     "lifeops/1.0",
	})
	resolver := lifeops.NewResolver(client, client, cache, log.Default())

	hub := httpapi.NewHub(log.Default())
	routines := lifeops.NewRoutineStore(lifeops.RoutineStoreOptions{
		Resolver: resolver,
		Sheets:   client,
		Notifier: hub,
		Logger:   log.Default(),
		Location: location,
	})
	anchors := lifeops.NewAnchorStore(lifeops.AnchorStoreOptions{
		Calendar: client,
		Cache:    cache,
		Notifier: hub,
		Logger:   log.Default(),
		Location: location,
	})
	documents := lifeops.NewDocumentStore(lifeops.DocumentStoreOptions{
		Drive:    client,
		Resolver: resolver,
		Cache:    cache,
		Notifier: hub,
		Logger:   log.Default(),
	})
	daylog := lifeops.NewDayLogStore(lifeops.DayLogStoreOptions{
		Resolver: resolver,
		Sheets:   client,
		Notifier: hub,
		Location: location,
	})

	server := httpapi.NewServer(httpapi.ServerOptions{
		Auth:      authSvc,
		Routines:  routines,
		Anchors:   anchors,
		Documents: documents,
		DayLog:    daylog,
		Hub:       hub,
		Logger:    log.Default(),
	})

	scheduler := cron.New(cron.WithLocation(location))
	if _, err := scheduler.AddFunc(cfg.MaterializeCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		_, runErr := routines.Today(ctx)
		metrics.CountSyncRun("routines", runErr)
		if runErr != nil {
			log.Printf("scheduled materialize failed: %v", runErr)
		}
	}); err != nil {
		log.Fatalf("invalid materialize cron spec %q: %v", cfg.MaterializeCron, err)
	}
	if _, err := scheduler.AddFunc(cfg.AnchorSyncCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		runErr := anchors.SyncAll(ctx)
		metrics.CountSyncRun("anchors", runErr)
		if runErr != nil {
			log.Printf("scheduled anchor sync failed: %v", runErr)
		}
	}); err != nil {
		log.Fatalf("invalid anchor sync cron spec %q: %v", cfg.AnchorSyncCron, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	if cfg.DocumentsDir != "" {
		mirror := lifeops.NewMirror(documents, cfg.DocumentsDir, log.Default())
		go func() {
			if err := mirror.Run(context.Background()); err != nil && err != context.Canceled {
				log.Printf("document mirror stopped: %v", err)
			}
		}()
	}

	log.Printf("lifeops listening on %s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, server.Router()); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
