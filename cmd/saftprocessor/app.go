package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	auditpg "3tcapital/saftprocessor/internal/adapters/audit/postgres"
	rediscache "3tcapital/saftprocessor/internal/adapters/cache/redis"
	opengcspg "3tcapital/saftprocessor/internal/adapters/opengcs/postgres"
	"3tcapital/saftprocessor/internal/adapters/remote/sftp"
	"3tcapital/saftprocessor/internal/adapters/store/gormstore"
	storepg "3tcapital/saftprocessor/internal/adapters/store/postgres"
	"3tcapital/saftprocessor/internal/application/extract"
	"3tcapital/saftprocessor/internal/application/ingest"
	"3tcapital/saftprocessor/internal/application/persistence"
	"3tcapital/saftprocessor/internal/application/reconcile"
	"3tcapital/saftprocessor/internal/core/audit"
	"3tcapital/saftprocessor/internal/core/saft"
	"3tcapital/saftprocessor/internal/infrastructure/config"
	"3tcapital/saftprocessor/internal/infrastructure/database"
	"3tcapital/saftprocessor/internal/infrastructure/redisclient"
	"3tcapital/saftprocessor/internal/infrastructure/resilience"
	"3tcapital/saftprocessor/internal/infrastructure/xmltree"
)

// app holds the collaborators shared by every command that runs a cycle.
type app struct {
	cfg          config.AppConfig
	log          *slog.Logger
	pool         *pgxpool.Pool
	store        saft.Repository
	audit        audit.Repository
	redis        *redis.Client
	source       *sftp.Source
	orchestrator *ingest.Orchestrator
	closers      []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func databaseConfig(cfg config.DatabaseSettings) database.Config {
	return database.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		Database:        cfg.Database,
		User:            cfg.User,
		Password:        cfg.Password,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}
}

// newApp connects the store, the optional Redis and the SFTP source, then assembles the pipeline.
// Redis is optional: when it cannot be reached the service runs without cache invalidation
// and keeps task records in memory.
func newApp(ctx context.Context, cfg config.AppConfig, log *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	dbCfg := databaseConfig(cfg.Database)
	pool, err := database.NewPool(ctx, dbCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a.pool = pool
	a.closers = append(a.closers, pool.Close)
	log.Info("Database connection established", "database", cfg.Database.Database, "driver", cfg.Database.Driver)

	if cfg.Database.RunMigrations {
		if err := database.RunMigrations(ctx, pool, log); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	switch cfg.Database.Driver {
	case "gorm":
		db, err := gormstore.Open("postgres", dbCfg.DSN())
		if err != nil {
			return nil, err
		}
		if sqlDB, err := db.DB(); err == nil {
			a.closers = append(a.closers, func() { _ = sqlDB.Close() })
		}
		a.store = gormstore.NewRepository(db, log)
	default:
		a.store = storepg.NewRepository(pool, log)
	}
	a.audit = auditpg.NewRepositoryWithLogger(pool, log)

	var cache saft.CacheInvalidator
	if cfg.Redis.URL != "" {
		rdb, err := redisclient.New(ctx, cfg.Redis.URL)
		if err != nil {
			log.Warn("Redis unavailable, continuing without cache invalidation and with in-memory task records", "error", err)
		} else {
			a.redis = rdb
			a.closers = append(a.closers, func() { _ = rdb.Close() })
			if cfg.Redis.CacheInvalidationEnabled {
				cache = rediscache.NewInvalidator(rdb, log)
			}
		}
	}

	decoder, err := xmltree.NewDecoder(cfg.Ingestion.Encodings...)
	if err != nil {
		return nil, fmt.Errorf("build decoder: %w", err)
	}
	policy, err := reconcile.ParsePolicy(cfg.Ingestion.NCPolicy)
	if err != nil {
		return nil, err
	}

	a.source = sftp.NewSource(sftp.Config{
		Host:                  cfg.SFTP.Host,
		Port:                  cfg.SFTP.Port,
		User:                  cfg.SFTP.User,
		Password:              cfg.SFTP.Password,
		PrivateKeyPath:        cfg.SFTP.PrivateKeyPath,
		KnownHostsPath:        cfg.SFTP.KnownHostsPath,
		InsecureIgnoreHostKey: cfg.SFTP.InsecureIgnoreHostKey,
		Timeout:               cfg.SFTP.Timeout,
		RemoteRoot:            cfg.SFTP.RemoteRoot,
		OpenGCsRoot:           cfg.SFTP.OpenGCsRoot,
		DownloadDir:           cfg.Ingestion.DownloadDir,
		Breaker: resilience.Settings{
			MaxFailures: cfg.SFTP.BreakerMaxFailures,
			Cooldown:    cfg.SFTP.BreakerCooldown,
		},
	}, log)
	a.closers = append(a.closers, func() { _ = a.source.Close() })

	processor, err := ingest.NewProcessor(ingest.Dependencies{
		Source:    a.source,
		Decoder:   decoder,
		Extractor: extract.NewExtractor(log),
		Persister: persistence.NewEngine(a.store, cache, persistence.BatchSizes{
			Companies: cfg.Ingestion.BatchSizeCompanies,
			Invoices:  cfg.Ingestion.BatchSizeInvoices,
			Lines:     cfg.Ingestion.BatchSizeLines,
			Links:     cfg.Ingestion.BatchSizeLinks,
		}, log),
		Reconciler: reconcile.NewEngine(a.store, policy, log),
		Snapshots:  opengcspg.NewRepository(pool, log),
		Audit:      a.audit,
	}, ingest.Options{
		CleanupLocal:        cfg.Ingestion.CleanupLocal,
		DeleteOpenGCsRemote: cfg.Ingestion.DeleteOpenGCsRemote,
		Location:            cfg.App.Location(),
	}, log)
	if err != nil {
		return nil, err
	}

	a.orchestrator = ingest.NewOrchestrator(a.source, processor, cfg.Ingestion.MaxFilesPerBatch, cfg.Ingestion.NCWorkers, log)
	ok = true
	return a, nil
}

func (a *app) runIngestion(ctx context.Context) (any, error) {
	return a.orchestrator.RunCycle(ctx)
}

func (a *app) runOpenGCs(ctx context.Context) (any, error) {
	return a.orchestrator.RunOpenGCsCycle(ctx)
}
