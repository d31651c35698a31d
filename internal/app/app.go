// Package app assembles the offboarding services from configuration. The api,
// worker and event-handler binaries share it.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/juju/clock"
	"github.com/juju/loggo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"offboarding-workflow/internal/capability"
	"offboarding-workflow/internal/config"
	"offboarding-workflow/internal/directory"
	"offboarding-workflow/internal/engine"
	"offboarding-workflow/internal/metrics"
	"offboarding-workflow/internal/notify"
	"offboarding-workflow/internal/reminder"
	"offboarding-workflow/internal/storage"
)

var logger = loggo.GetLogger("offboarding.app")

// Store is everything the services need from a submission backend.
type Store interface {
	engine.Store
	reminder.Store
	directory.Store
	notify.EmailLog
	Ping(ctx context.Context) error
}

// ObjectStore is the MinIO bucket holding mapping sheets and the mail outbox.
type ObjectStore interface {
	PutObject(ctx context.Context, objectKey, contentType string, content []byte) error
	GetObject(ctx context.Context, objectKey string) ([]byte, error)
	ArchiveUndelivered(ctx context.Context, submissionID, template string, at time.Time, message []byte) (string, error)
}

type App struct {
	Config     config.Config
	Store      Store
	Minio      *storage.MinioStore
	Objects    ObjectStore
	Metrics    *metrics.Collector
	Registry   *prometheus.Registry
	Tokens     *capability.Service
	Directory  *directory.Directory
	Recipients directory.Router
	Mailer     *notify.Mailer
	Engine     *engine.Engine
	Scheduler  *reminder.Scheduler

	closers []func(context.Context) error
}

// ConfigureLogging applies a loggo specification such as "<root>=INFO;offboarding.engine=DEBUG".
func ConfigureLogging(spec string) error {
	if err := loggo.ConfigureLoggers(spec); err != nil {
		return fmt.Errorf("configure loggers %q: %w", spec, err)
	}
	return nil
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close(context.Background())
		}
	}()

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	a.Store = store

	if cfg.MinioEnabled {
		blob, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL, cfg.MinioBucket)
		if err != nil {
			return nil, fmt.Errorf("connect minio: %w", err)
		}
		a.Minio = blob
		a.Objects = blob
	}

	a.Metrics = metrics.NewCollector()
	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		a.Metrics,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	clk := clock.WallClock
	a.Tokens, err = capability.NewService(capability.Config{
		Secret:  []byte(cfg.SigningSecret),
		TTL:     cfg.TokenTTL,
		Clock:   clk,
		Logger:  loggo.GetLogger("offboarding.capability"),
		Metrics: a.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("capability service: %w", err)
	}

	a.Directory = directory.New(store, loggo.GetLogger("offboarding.directory"))
	if err := a.Directory.Refresh(ctx); err != nil {
		logger.Warningf("starting with an empty leader directory: %v", err)
	}
	a.Recipients = directory.Router{
		Directory:     a.Directory,
		HREmail:       cfg.HREmail,
		ITEmail:       cfg.ITEmail,
		DefaultLocale: cfg.DefaultLocale,
	}

	a.Mailer, err = a.newMailer(clk)
	if err != nil {
		return nil, err
	}

	a.Engine, err = engine.New(engine.Config{
		Store:      store,
		Tokens:     a.Tokens,
		Dispatcher: a.Mailer,
		Recipients: a.Recipients,
		Clock:      clk,
		Logger:     loggo.GetLogger("offboarding.engine"),
		Metrics:    a.Metrics,
		BaseURL:    cfg.AppBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	a.Scheduler, err = reminder.New(reminder.Config{
		Store:      store,
		Tokens:     a.Tokens,
		Dispatcher: a.Mailer,
		Recipients: a.Recipients,
		Clock:      clk,
		Logger:     loggo.GetLogger("offboarding.reminder"),
		Metrics:    a.Metrics,
		BaseURL:    cfg.AppBaseURL,
		Threshold:  cfg.ReminderThreshold,
		Interval:   cfg.ReminderInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("reminder scheduler: %w", err)
	}

	ok = true
	return a, nil
}

func (a *App) openStore(ctx context.Context) (Store, error) {
	cfg := a.Config
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pg, err := storage.NewPostgresStore(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return pg.Close() })
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := pg.Ping(pingCtx); err != nil {
			return nil, fmt.Errorf("postgres ping: %w", err)
		}
		return pg, nil
	case config.StoreDriverMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		mg, err := storage.NewMongoStore(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, mg.Close)
		return mg, nil
	case config.StoreDriverMemory:
		logger.Warningf("using the in-memory store; submissions are lost on restart")
		return storage.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

func (a *App) newMailer(clk clock.Clock) (*notify.Mailer, error) {
	cfg := a.Config
	catalog, err := notify.NewCatalog(cfg.DefaultLocale)
	if err != nil {
		return nil, fmt.Errorf("load message catalog: %w", err)
	}
	mailLogger := loggo.GetLogger("offboarding.notify")

	var transport notify.Transport
	switch cfg.MailMode {
	case config.MailModeSMTP:
		transport = notify.NewSMTPTransport(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.SMTPFrom,
		})
	default:
		transport = notify.LogTransport{Logger: mailLogger}
	}

	mc := notify.MailerConfig{
		Catalog:   catalog,
		Transport: transport,
		From:      cfg.SMTPFrom,
		Clock:     clk,
		Logger:    mailLogger,
		Metrics:   a.Metrics,
		EmailLog:  a.Store,
	}
	if a.Objects != nil {
		mc.Outbox = a.Objects
	}
	mailer, err := notify.NewMailer(mc)
	if err != nil {
		return nil, fmt.Errorf("mailer: %w", err)
	}
	return mailer, nil
}

// Close releases store connections in reverse order of opening.
func (a *App) Close(ctx context.Context) error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
