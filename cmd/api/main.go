package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"offboarding-workflow/internal/api"
	"offboarding-workflow/internal/app"
	"offboarding-workflow/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := app.ConfigureLogging(cfg.LogConfig); err != nil {
		log.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("assemble services: %v", err)
	}
	defer a.Close(context.Background())

	h := api.NewHandler(cfg, a.Engine, a.Scheduler, a.Directory, a.Store, a.Objects)
	router := api.NewRouter(h, promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("api listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.RemindersEnabled {
		g.Go(func() error {
			log.Printf("in-process reminder loop every %s", cfg.ReminderInterval)
			return a.Scheduler.Run(gctx)
		})
	}
	if cfg.MappingRefreshInterval > 0 {
		g.Go(func() error {
			return a.Directory.Run(gctx, clock.WallClock, cfg.MappingRefreshInterval)
		})
	}

	if err := g.Wait(); err != nil {
		log.Fatalf("api stopped with error: %v", err)
	}
}
