package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/juju/loggo"

	"offboarding-workflow/internal/app"
	"offboarding-workflow/internal/config"
	"offboarding-workflow/internal/events"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if !cfg.MinioEnabled {
		log.Fatalf("event-handler needs MINIO_ENABLED=true")
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

	source := events.NewMinioMappingEventSource(a.Minio.Client(), a.Minio.Bucket(), cfg.MappingObjectPrefix)
	handler := events.ImportHandler(a.Minio, a.Directory, loggo.GetLogger("offboarding.events"))

	log.Printf("event-handler listening for mapping uploads on bucket=%s prefix=%s", a.Minio.Bucket(), cfg.MappingObjectPrefix)
	if err := source.Run(ctx, handler); err != nil {
		log.Fatalf("event-handler stopped with error: %v", err)
	}
}
