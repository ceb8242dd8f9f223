package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"3tcapital/saftprocessor/internal/adapters/http/admin"
	healthhttp "3tcapital/saftprocessor/internal/adapters/http/health"
	taskmemory "3tcapital/saftprocessor/internal/adapters/task/memory"
	taskredis "3tcapital/saftprocessor/internal/adapters/task/redis"
	"3tcapital/saftprocessor/internal/application/health"
	apptask "3tcapital/saftprocessor/internal/application/task"
	coretask "3tcapital/saftprocessor/internal/core/task"
	"3tcapital/saftprocessor/internal/infrastructure/http/middleware"
	"3tcapital/saftprocessor/internal/infrastructure/http/server"
)

func newServeCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the admin API, the task dispatcher and the cycle scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()
			return serve(ctx, e)
		},
	}
}

func serve(ctx context.Context, e *env) error {
	cfg, log := e.cfg, e.log

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	var store coretask.Store
	if a.redis != nil {
		store = taskredis.NewStore(a.redis, cfg.Redis.TaskResultTTL)
	} else {
		store = taskmemory.NewStore(cfg.Redis.TaskResultTTL)
		log.Info("Task records kept in memory")
	}

	dispatcher := apptask.NewDispatcher(store, apptask.Settings{
		Workers:       cfg.Tasks.Workers,
		QueueSize:     cfg.Tasks.QueueSize,
		MaxRetries:    cfg.Tasks.MaxRetries,
		RetryDelay:    cfg.Tasks.RetryDelay,
		SoftTimeLimit: cfg.Tasks.SoftTimeLimit,
		TimeLimit:     cfg.Tasks.TimeLimit,
	}, log)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	jobs := map[coretask.Kind]apptask.Func{
		coretask.KindIngestionCycle: a.runIngestion,
		coretask.KindOpenGCsCycle:   a.runOpenGCs,
	}

	if cfg.Scheduling.Enabled {
		scheduler := apptask.NewScheduler(dispatcher, []apptask.Entry{
			{Kind: coretask.KindIngestionCycle, Interval: cfg.Scheduling.Interval, Run: a.runIngestion},
			{Kind: coretask.KindOpenGCsCycle, Interval: cfg.Scheduling.OpenGCsInterval, Run: a.runOpenGCs},
		}, log)
		go scheduler.Run(ctx)
	}

	checks := []health.Check{
		{Name: "store", Critical: true, Probe: a.store.Ping},
		{Name: "sftp", Probe: a.source.Check},
	}
	if a.redis != nil {
		checks = append(checks, health.Check{Name: "redis", Probe: func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		}})
	}
	healthService := health.NewService(health.Metadata{
		Service:     cfg.App.Name,
		Version:     cfg.App.Version,
		Environment: cfg.App.Environment,
	}, checks...)

	auth, err := middleware.NewJWTAuthenticator(cfg.Auth, log)
	if err != nil {
		return err
	}
	defer auth.Close()

	srv, err := server.New(server.Options{
		Config:        cfg,
		Logger:        log,
		HealthHandler: http.HandlerFunc(healthhttp.NewHandler(healthService, log).Status),
		AdminRoutes:   admin.NewHandler(dispatcher, store, a.audit, jobs, log).Register,
		Auth:          auth.Middleware,
	})
	if err != nil {
		return err
	}

	err = srv.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
