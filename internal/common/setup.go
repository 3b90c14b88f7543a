package common

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"jastip-settlement-go/internal/audit"
	"jastip-settlement-go/internal/database"
	"jastip-settlement-go/internal/jobs"
	"jastip-settlement-go/internal/models"
	"jastip-settlement-go/internal/notify"
	"jastip-settlement-go/internal/xendit"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Try to load .env file - if it doesn't exist, that's okay
	// Environment variables can be set via other means (shell export, docker, etc.)
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	DbService *database.Service
	Gateway   *xendit.Service
	Scheduler *jobs.Scheduler
	Sink      audit.Sink
	Notifier  notify.Notifier

	closers []func()
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices opens the ledger and builds the scheduler with every
// job registered. Redis, Kafka and the payment gateway are optional and only
// wired when configured.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	services := &Services{DbService: dbService}

	sinks := audit.Multi{audit.NewLogSink(zap.L())}
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSink, err := audit.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			services.Close()
			return nil, err
		}
		services.closers = append(services.closers, func() {
			if err := kafkaSink.Close(); err != nil {
				zap.L().Warn("Failed to close kafka sink", zap.Error(err))
			}
		})
		sinks = append(sinks, kafkaSink)
	}
	services.Sink = sinks

	services.Notifier = notify.NewLogNotifier(zap.L())
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.PushTopic != "" {
		notifier, err := notify.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.PushTopic)
		if err != nil {
			services.Close()
			return nil, err
		}
		services.closers = append(services.closers, func() {
			if err := notifier.Close(); err != nil {
				zap.L().Warn("Failed to close kafka notifier", zap.Error(err))
			}
		})
		services.Notifier = notifier
	}

	var locker jobs.Locker
	if cfg.Redis.Url != "" {
		client, err := jobs.ConnectRedis(cfg.Redis.Url)
		if err != nil {
			services.Close()
			return nil, err
		}
		services.closers = append(services.closers, func() {
			if err := client.Close(); err != nil {
				zap.L().Warn("Failed to close redis client", zap.Error(err))
			}
		})

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			services.Close()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		locker = jobs.NewRedisLocker(client, cfg.Redis.LockTTL)
		zap.L().Info("Redis job lease enabled", zap.Duration("ttl", cfg.Redis.LockTTL))
	}

	if cfg.Xendit.SecretKey != "" {
		gateway, err := xendit.NewService(cfg.Xendit)
		if err != nil {
			services.Close()
			return nil, err
		}
		services.Gateway = gateway
	} else {
		zap.L().Warn("XENDIT_SECRET_KEY not set, top-up endpoints disabled")
	}

	services.Scheduler = jobs.NewScheduler(jobs.SchedulerConfig{Locker: locker, Sink: sinks})
	if err := RegisterJobs(services.Scheduler, cfg.Jobs, dbService, sinks); err != nil {
		services.Close()
		return nil, err
	}

	return services, nil
}

// RegisterJobs adds the settlement, return timeout and cart cleanup jobs,
// applying JOBS_FILE overrides. Disabled jobs stay triggerable on demand.
func RegisterJobs(scheduler *jobs.Scheduler, cfg models.JobsConfig, dbService *database.Service, sink audit.Sink) error {
	var overrides map[string]ResolvedSchedule
	if cfg.ScheduleFile != "" {
		var err error
		overrides, err = LoadJobSchedule(cfg.ScheduleFile)
		if err != nil {
			return err
		}
	}

	registrations := []struct {
		job      jobs.Job
		interval time.Duration
	}{
		{
			job: jobs.NewSettlementJob(jobs.SettlementJobConfig{
				Store: dbService, Sink: sink, GracePeriod: cfg.SettlementGracePeriod, PageSize: cfg.PageSize,
			}),
			interval: cfg.SettlementInterval,
		},
		{
			job: jobs.NewReturnTimeoutJob(jobs.ReturnTimeoutJobConfig{
				Store: dbService, Sink: sink, TimeoutWindow: cfg.ReturnTimeoutWindow, PageSize: cfg.PageSize,
			}),
			interval: cfg.ReturnTimeoutInterval,
		},
		{
			job:      jobs.NewCartCleanupJob(dbService),
			interval: cfg.CartCleanupInterval,
		},
	}

	for _, reg := range registrations {
		interval, enabled := reg.interval, true
		if o, ok := overrides[reg.job.Name()]; ok {
			enabled = o.Enabled
			if o.Interval > 0 {
				interval = o.Interval
			}
		}

		var err error
		if enabled {
			err = scheduler.Register(reg.job, interval)
		} else {
			err = scheduler.RegisterManual(reg.job)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// InitializeDatabaseOnly initializes just the database service
// Useful for read-only operations like querying balances
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

func (cs *Services) Close() {
	for i := len(cs.closers) - 1; i >= 0; i-- {
		cs.closers[i]()
	}
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
