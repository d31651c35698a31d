package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPPort          = "8080"
	defaultStoreDriver       = "postgres"
	defaultMongoDatabase     = "offboarding"
	defaultTokenTTLHours     = 24
	defaultReminderHours     = 24
	defaultReminderInterval  = 300
	defaultAppBaseURL        = "http://localhost:8080"
	defaultMailMode          = "log"
	defaultSMTPPort          = 587
	defaultLocale            = "en"
	defaultLogConfig         = "<root>=INFO"
	defaultTemporalAddress   = "localhost:7233"
	defaultTemporalNS        = "default"
	defaultTaskQueue         = "offboarding-task-queue"
	defaultReminderWorkflow  = "offboarding-reminder-sweep"
	defaultReminderCron      = "*/5 * * * *"
	defaultMinioEndpoint     = "localhost:9000"
	defaultMinioBucket       = "offboarding"
	defaultMappingPrefix     = "mappings/"
	defaultMappingRefreshSec = 300
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
	StoreDriverMemory   = "memory"

	MailModeSMTP = "smtp"
	MailModeLog  = "log"
)

type Config struct {
	HTTPPort      string
	StoreDriver   string
	PostgresDSN   string
	MongoURI      string
	MongoDatabase string

	SigningSecret          string
	TokenTTL               time.Duration
	ReminderThreshold      time.Duration
	ReminderInterval       time.Duration
	RemindersEnabled       bool
	AppBaseURL             string
	StaffAPIToken          string
	AllowedUploadBytes     int64
	MappingRefreshInterval time.Duration

	HREmail       string
	ITEmail       string
	MailMode      string
	SMTPHost      string
	SMTPPort      int
	SMTPUser      string
	SMTPPass      string
	SMTPFrom      string
	DefaultLocale string

	LogConfig string

	TemporalAddress    string
	TemporalNamespace  string
	TemporalTaskQueue  string
	ReminderWorkflowID string
	ReminderCron       string

	MinioEnabled        bool
	MinioEndpoint       string
	MinioAccessKey      string
	MinioSecretKey      string
	MinioBucket         string
	MinioUseSSL         bool
	MappingObjectPrefix string
}

func Load() (Config, error) {
	cfg := Config{
		HTTPPort:      getenv("HTTP_PORT", defaultHTTPPort),
		StoreDriver:   strings.ToLower(getenv("STORE_DRIVER", defaultStoreDriver)),
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		MongoURI:      os.Getenv("MONGODB_URI"),
		MongoDatabase: getenv("MONGODB_DATABASE", defaultMongoDatabase),

		SigningSecret:          os.Getenv("SIGNING_SECRET"),
		TokenTTL:               time.Duration(getenvInt("TOKEN_TTL_HOURS", defaultTokenTTLHours)) * time.Hour,
		ReminderThreshold:      time.Duration(getenvInt("REMINDER_THRESHOLD_HOURS", defaultReminderHours)) * time.Hour,
		ReminderInterval:       time.Duration(getenvInt("REMINDER_INTERVAL_SEC", defaultReminderInterval)) * time.Second,
		RemindersEnabled:       getenvBool("REMINDERS_ENABLED", true),
		AppBaseURL:             getenv("APP_BASE_URL", defaultAppBaseURL),
		StaffAPIToken:          os.Getenv("STAFF_API_TOKEN"),
		AllowedUploadBytes:     int64(getenvInt("MAX_UPLOAD_BYTES", 1024*1024)),
		MappingRefreshInterval: time.Duration(getenvInt("MAPPING_REFRESH_SEC", defaultMappingRefreshSec)) * time.Second,

		HREmail:       os.Getenv("HR_EMAIL"),
		ITEmail:       os.Getenv("IT_EMAIL"),
		MailMode:      strings.ToLower(getenv("MAIL_MODE", defaultMailMode)),
		SMTPHost:      os.Getenv("SMTP_HOST"),
		SMTPPort:      getenvInt("SMTP_PORT", defaultSMTPPort),
		SMTPUser:      os.Getenv("SMTP_USER"),
		SMTPPass:      os.Getenv("SMTP_PASS"),
		SMTPFrom:      os.Getenv("SMTP_FROM"),
		DefaultLocale: getenv("DEFAULT_LOCALE", defaultLocale),

		LogConfig: getenv("LOG_CONFIG", defaultLogConfig),

		TemporalAddress:    getenv("TEMPORAL_ADDRESS", defaultTemporalAddress),
		TemporalNamespace:  getenv("TEMPORAL_NAMESPACE", defaultTemporalNS),
		TemporalTaskQueue:  getenv("TEMPORAL_TASK_QUEUE", defaultTaskQueue),
		ReminderWorkflowID: getenv("REMINDER_WORKFLOW_ID", defaultReminderWorkflow),
		ReminderCron:       getenv("REMINDER_CRON", defaultReminderCron),

		MinioEnabled:        getenvBool("MINIO_ENABLED", false),
		MinioEndpoint:       getenv("MINIO_ENDPOINT", defaultMinioEndpoint),
		MinioAccessKey:      os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey:      os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:         getenv("MINIO_BUCKET", defaultMinioBucket),
		MinioUseSSL:         getenvBool("MINIO_USE_SSL", false),
		MappingObjectPrefix: getenv("MAPPING_OBJECT_PREFIX", defaultMappingPrefix),
	}

	if cfg.SigningSecret == "" {
		return Config{}, fmt.Errorf("SIGNING_SECRET is required")
	}
	if cfg.TokenTTL <= 0 {
		return Config{}, fmt.Errorf("TOKEN_TTL_HOURS must be positive")
	}
	if cfg.ReminderThreshold <= 0 {
		return Config{}, fmt.Errorf("REMINDER_THRESHOLD_HOURS must be positive")
	}
	if cfg.RemindersEnabled && cfg.ReminderInterval <= 0 {
		return Config{}, fmt.Errorf("REMINDER_INTERVAL_SEC must be positive when REMINDERS_ENABLED is set")
	}
	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.PostgresDSN == "" {
			return Config{}, fmt.Errorf("POSTGRES_DSN is required")
		}
	case StoreDriverMongo:
		if cfg.MongoURI == "" {
			return Config{}, fmt.Errorf("MONGODB_URI is required")
		}
	case StoreDriverMemory:
	default:
		return Config{}, fmt.Errorf("STORE_DRIVER must be postgres, mongo or memory, got %q", cfg.StoreDriver)
	}
	switch cfg.MailMode {
	case MailModeSMTP:
		if cfg.SMTPHost == "" || cfg.SMTPFrom == "" {
			return Config{}, fmt.Errorf("SMTP_HOST and SMTP_FROM are required when MAIL_MODE=smtp")
		}
	case MailModeLog:
	default:
		return Config{}, fmt.Errorf("MAIL_MODE must be smtp or log, got %q", cfg.MailMode)
	}

	return cfg, nil
}

func getenv(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
