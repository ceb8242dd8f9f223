package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig encapsulates all runtime configuration knobs.
type AppConfig struct {
	App        AppSettings
	HTTP       HTTPSettings
	Auth       AuthSettings
	Log        LogSettings
	Database   DatabaseSettings
	SFTP       SFTPSettings
	Ingestion  IngestionSettings
	Redis      RedisSettings
	Tasks      TaskSettings
	Scheduling ScheduleSettings
}

type AppSettings struct {
	Name        string
	Version     string
	Environment string
	Timezone    string
}

type HTTPSettings struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type AuthSettings struct {
	Enabled       bool
	IssuerURI     string
	JWKSetURI     string
	ClockSkew     time.Duration
	BypassPaths   []string
	RequiredScope string
}

type LogSettings struct {
	Level string
}

type DatabaseSettings struct {
	Driver          string // pgx or gorm
	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	RunMigrations   bool
}

type SFTPSettings struct {
	Host                  string
	Port                  int
	User                  string
	Password              string
	PrivateKeyPath        string
	KnownHostsPath        string
	InsecureIgnoreHostKey bool
	Timeout               time.Duration
	RemoteRoot            string
	OpenGCsRoot           string
	BreakerMaxFailures    int
	BreakerCooldown       time.Duration
}

// IngestionSettings controls a discovery cycle and its persistence.
type IngestionSettings struct {
	DownloadDir         string
	CleanupLocal        bool
	MaxFilesPerBatch    int
	NCWorkers           int
	NCPolicy            string
	Encodings           []string
	BatchSizeCompanies  int
	BatchSizeFiliais    int
	BatchSizeInvoices   int
	BatchSizeLines      int
	BatchSizeLinks      int
	DeleteOpenGCsRemote bool
}

type RedisSettings struct {
	URL                      string
	CacheInvalidationEnabled bool
	TaskResultTTL            time.Duration
}

type TaskSettings struct {
	Workers       int
	QueueSize     int
	MaxRetries    int
	RetryDelay    time.Duration
	SoftTimeLimit time.Duration
	TimeLimit     time.Duration
}

type ScheduleSettings struct {
	Enabled         bool
	Interval        time.Duration
	OpenGCsInterval time.Duration
}

// Load resolves the configuration from the environment, reading a .env file first when present.
// Variables already set in the environment win over the file.
func Load() (AppConfig, error) {
	_ = godotenv.Load()

	cfg := AppConfig{
		App: AppSettings{
			Name:        getEnv("APP_NAME", "saftprocessor"),
			Version:     getEnv("APP_VERSION", "0.1.0"),
			Environment: getEnv("APP_ENV", "local"),
			Timezone:    getEnv("TIMEZONE", "Europe/Lisbon"),
		},
		HTTP: HTTPSettings{
			Port:            getEnvAsInt("APP_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvAsDuration("HTTP_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Auth: AuthSettings{
			Enabled:       getEnvAsBool("AUTH_ENABLED", true),
			IssuerURI:     strings.TrimSpace(os.Getenv("JWT_ISSUER_URI")),
			JWKSetURI:     strings.TrimSpace(os.Getenv("JWT_JWK_SET_URI")),
			ClockSkew:     getEnvAsDuration("AUTH_CLOCK_SKEW", 2*time.Minute),
			BypassPaths:   getEnvAsCSV("AUTH_BYPASS_PATHS", []string{"/health"}),
			RequiredScope: strings.TrimSpace(os.Getenv("AUTH_REQUIRED_SCOPE")),
		},
		Log: LogSettings{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseSettings{
			Driver:          strings.ToLower(getEnv("STORE_DRIVER", "pgx")),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			Database:        getEnv("DB_NAME", "saft"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			RunMigrations:   getEnvAsBool("DB_RUN_MIGRATIONS", false),
		},
		SFTP: SFTPSettings{
			Host:                  strings.TrimSpace(os.Getenv("SFTP_HOST")),
			Port:                  getEnvAsInt("SFTP_PORT", 22),
			User:                  strings.TrimSpace(os.Getenv("SFTP_USER")),
			Password:              os.Getenv("SFTP_PASSWORD"),
			PrivateKeyPath:        strings.TrimSpace(os.Getenv("SFTP_PRIVATE_KEY_PATH")),
			KnownHostsPath:        strings.TrimSpace(os.Getenv("SFTP_KNOWN_HOSTS")),
			InsecureIgnoreHostKey: getEnvAsBool("SFTP_INSECURE_IGNORE_HOST_KEY", false),
			Timeout:               getEnvAsDuration("SFTP_TIMEOUT", 30*time.Second),
			RemoteRoot:            getEnv("SFTP_REMOTE_ROOT", "uploads"),
			OpenGCsRoot:           getEnv("SFTP_OPENGCS_ROOT", "/home/mydreami/myDream"),
			BreakerMaxFailures:    getEnvAsInt("SFTP_BREAKER_MAX_FAILURES", 5),
			BreakerCooldown:       getEnvAsDuration("SFTP_BREAKER_COOLDOWN", time.Minute),
		},
		Ingestion: IngestionSettings{
			DownloadDir:         getEnv("DOWNLOAD_DIR", "./downloads"),
			CleanupLocal:        getEnvAsBool("CLEANUP_AFTER_PROCESSING", true),
			MaxFilesPerBatch:    getEnvAsInt("MAX_FILES_PER_BATCH", 50),
			NCWorkers:           getEnvAsInt("NC_WORKERS", 4),
			NCPolicy:            getEnv("NC_POLICY", "soft"),
			Encodings:           getEnvAsCSV("DECODE_ENCODINGS", []string{"utf-8", "latin-1", "iso-8859-1", "cp1252"}),
			BatchSizeCompanies:  getEnvAsInt("BATCH_SIZE_COMPANIES", 1000),
			BatchSizeFiliais:    getEnvAsInt("BATCH_SIZE_FILIAIS", 1000),
			BatchSizeInvoices:   getEnvAsInt("BATCH_SIZE_INVOICES", 500),
			BatchSizeLines:      getEnvAsInt("BATCH_SIZE_LINES", 2000),
			BatchSizeLinks:      getEnvAsInt("BATCH_SIZE_LINKS", 500),
			DeleteOpenGCsRemote: getEnvAsBool("OPENGCS_DELETE_REMOTE", false),
		},
		Redis: RedisSettings{
			URL:                      strings.TrimSpace(os.Getenv("REDIS_URL")),
			CacheInvalidationEnabled: getEnvAsBool("CACHE_INVALIDATION_ENABLED", true),
			TaskResultTTL:            getEnvAsDuration("TASK_RESULT_TTL", 24*time.Hour),
		},
		Tasks: TaskSettings{
			Workers:       getEnvAsInt("TASK_WORKERS", 2),
			QueueSize:     getEnvAsInt("TASK_QUEUE_SIZE", 16),
			MaxRetries:    getEnvAsInt("TASK_MAX_RETRIES", 3),
			RetryDelay:    getEnvAsDuration("TASK_RETRY_DELAY", time.Minute),
			SoftTimeLimit: getEnvAsDuration("TASK_SOFT_TIME_LIMIT", 25*time.Minute),
			TimeLimit:     getEnvAsDuration("TASK_TIME_LIMIT", 30*time.Minute),
		},
		Scheduling: ScheduleSettings{
			Enabled:         getEnvAsBool("SCHEDULE_ENABLED", true),
			Interval:        getEnvAsDuration("SCHEDULE_INTERVAL", 300*time.Second),
			OpenGCsInterval: getEnvAsDuration("OPENGCS_SCHEDULE_INTERVAL", 0),
		},
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the cross-field rules Load cannot express with defaults.
func (c AppConfig) Validate() error {
	var errs []error

	if c.Auth.Enabled {
		if c.Auth.IssuerURI == "" {
			errs = append(errs, errors.New("JWT_ISSUER_URI is required when AUTH_ENABLED=true"))
		}
		if c.Auth.JWKSetURI == "" {
			errs = append(errs, errors.New("JWT_JWK_SET_URI is required when AUTH_ENABLED=true"))
		}
	}
	if c.Database.Driver != "pgx" && c.Database.Driver != "gorm" {
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be pgx or gorm, got %q", c.Database.Driver))
	}
	if c.SFTP.KnownHostsPath == "" && !c.SFTP.InsecureIgnoreHostKey && c.SFTP.Host != "" {
		errs = append(errs, errors.New("SFTP_KNOWN_HOSTS is required unless SFTP_INSECURE_IGNORE_HOST_KEY=true"))
	}
	if c.Ingestion.MaxFilesPerBatch < 0 {
		errs = append(errs, errors.New("MAX_FILES_PER_BATCH cannot be negative"))
	}
	if c.Ingestion.NCWorkers <= 0 {
		errs = append(errs, errors.New("NC_WORKERS must be greater than 0"))
	}
	switch strings.ToLower(c.Ingestion.NCPolicy) {
	case "soft", "hard":
	default:
		errs = append(errs, fmt.Errorf("NC_POLICY must be soft or hard, got %q", c.Ingestion.NCPolicy))
	}
	for name, size := range map[string]int{
		"BATCH_SIZE_COMPANIES": c.Ingestion.BatchSizeCompanies,
		"BATCH_SIZE_FILIAIS":   c.Ingestion.BatchSizeFiliais,
		"BATCH_SIZE_INVOICES":  c.Ingestion.BatchSizeInvoices,
		"BATCH_SIZE_LINES":     c.Ingestion.BatchSizeLines,
		"BATCH_SIZE_LINKS":     c.Ingestion.BatchSizeLinks,
	} {
		if size <= 0 {
			errs = append(errs, fmt.Errorf("%s must be greater than 0", name))
		}
	}
	if c.Tasks.SoftTimeLimit > c.Tasks.TimeLimit {
		errs = append(errs, errors.New("TASK_SOFT_TIME_LIMIT cannot exceed TASK_TIME_LIMIT"))
	}
	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("TIMEZONE %q: %w", c.App.Timezone, err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Address returns the HTTP listen address in host:port form.
func (h HTTPSettings) Address() string {
	return fmt.Sprintf(":%d", h.Port)
}

// Location resolves the configured timezone. Validate has already checked it.
func (a AppSettings) Location() *time.Location {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("5m") and bare seconds ("300").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	value = strings.TrimSpace(value)
	if !ok || value == "" {
		return fallback
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func getEnvAsCSV(key string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	if len(values) == 0 {
		return fallback
	}
	return values
}
