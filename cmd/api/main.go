package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finlink/internal/infrastructure/postgres/listener"
	"finlink/internal/interfaces/scheduler"
	"finlink/internal/shared/config"
	"finlink/internal/shared/telemetry"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName:  cfg.Telemetry.ServiceName,
			Environment:  cfg.Telemetry.Environment,
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			MetricsPort:  cfg.Telemetry.MetricsPort,
		})
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTelemetry(ctx); err != nil {
				log.Printf("Telemetry shutdown error: %v", err)
			}
		}()
		if err != nil {
			return err
		}
	} else {
		log.Println("Telemetry is disabled")
	}

	deps, err := NewDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	syncJobs := scheduler.UserSyncJobs(deps.Credentials, deps.Aggregator)

	var bg Background
	var submit func(scheduler.Job) error
	if cfg.Scheduler.Enabled {
		bg.Scheduler, err = scheduler.NewScheduler(scheduler.Config{
			ScheduleTimes: cfg.Scheduler.ScheduleTimes,
			WorkerCount:   cfg.Scheduler.WorkerCount,
			JobDelay:      cfg.Scheduler.JobDelay,
			QueueSize:     cfg.Scheduler.QueueSize,
			RunOnStartup:  cfg.Scheduler.RunOnStartup,
			JobProvider:   syncJobs,
		})
		if err != nil {
			return err
		}
		bg.Scheduler.Start()
		submit = bg.Scheduler.Submit
	} else {
		log.Println("Scheduler is disabled")
		bg.Pool = scheduler.NewWorkerPool(cfg.Scheduler.WorkerCount, cfg.Scheduler.JobDelay, cfg.Scheduler.QueueSize)
		bg.Pool.Start()
		submit = bg.Pool.Submit
	}

	if cfg.Database.ListenerEnabled {
		delay := cfg.Database.ListenerRepairDelay
		bg.Listener = listener.NewCredentialListener(cfg.Database.ConnectionString(),
			func(ctx context.Context, n listener.CredentialLinked) {
				// The link request is still pulling accounts when the row
				// commits; check back once it has had time to finish.
				time.AfterFunc(delay, func() {
					job := scheduler.NewCredentialRepairJob(n.UserID, n.CredentialID, deps.Aggregator)
					if err := submit(job); err != nil {
						log.Printf("User %s: failed to queue repair for credential %s: %v", n.UserID, n.CredentialID, err)
					}
				})
			})
		bg.Listener.Start(ctx)
	}

	handler := SetupRoutes(deps, cfg)
	srv := StartServer(cfg.Server.Host+":"+cfg.Server.Port, handler)

	<-ctx.Done()
	GracefulShutdown(srv, bg, shutdownTimeout)
	return nil
}
