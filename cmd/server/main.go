package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ci-runner-service/internal/adapters/primary/fswatch"
	"ci-runner-service/internal/adapters/primary/http/handlers"
	"ci-runner-service/internal/adapters/primary/http/middleware"
	"ci-runner-service/internal/adapters/secondary/artifacts"
	"ci-runner-service/internal/adapters/secondary/docker"
	"ci-runner-service/internal/adapters/secondary/kube"
	"ci-runner-service/internal/adapters/secondary/postgres"
	"ci-runner-service/internal/adapters/secondary/shell"
	"ci-runner-service/internal/config"
	"ci-runner-service/internal/core/ports/output"
	"ci-runner-service/internal/core/services"
	"ci-runner-service/internal/runner"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	initLogger(cfg)

	// Create database pool
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN())
	if err != nil {
		log.Fatalf("parse db config: %v", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.Database.MaxIdleConns)
	poolCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		log.Fatalf("create db pool: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(context.Background()); err != nil {
		log.Fatalf("ping db: %v", err)
	}
	log.Info("database connection established")

	// Secondary adapters
	workflowRepo := postgres.NewWorkflowRepository(pool)
	runRepo := postgres.NewRunRepository(pool)
	jobRepo := postgres.NewJobRepository(pool)
	store := artifacts.NewStore(cfg.Storage.ArtifactDir, cfg.Storage.LogDir, cfg.Storage.MaxArtifactSize)

	executor, err := newExecutor(cfg)
	if err != nil {
		log.Fatalf("init %s executor: %v", cfg.Runner.Executor, err)
	}
	log.WithField("executor", executor.Name()).Info("step executor initialized")

	// Dispatcher
	dispatcher := runner.NewDispatcher(workflowRepo, runRepo, jobRepo, executor, store, runner.Options{
		Workers:      cfg.Runner.Workers,
		PollInterval: cfg.Runner.PollInterval,
		StepTimeout:  cfg.Runner.StepTimeout,
		WorkDir:      cfg.Runner.WorkDir,
	})

	runCtx, stopRunner := context.WithCancel(context.Background())
	defer stopRunner()
	go dispatcher.Start(runCtx)

	// Core services
	workflowSvc := services.NewWorkflowService(workflowRepo, runRepo)
	triggerSvc := services.NewTriggerService(workflowRepo, runRepo)
	runSvc := services.NewRunService(runRepo, jobRepo, workflowRepo, store, dispatcher)
	artifactSvc := services.NewArtifactService(store, jobRepo)

	// Workflow directory loader
	if cfg.Workflows.Dir != "" {
		loader := fswatch.NewLoader(cfg.Workflows.Dir, workflowSvc)
		if err := loader.LoadAll(runCtx); err != nil {
			log.Fatalf("load workflow directory: %v", err)
		}
		if cfg.Workflows.Watch {
			go func() {
				if err := loader.Watch(runCtx); err != nil {
					log.WithError(err).Error("workflow watcher stopped")
				}
			}()
		}
	}

	// Primary adapter (HTTP handlers)
	h := handlers.New(workflowSvc, triggerSvc, runSvc, artifactSvc, cfg.Webhook.Secret)

	// Setup router
	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Logging(), gin.Recovery())

	api := router.Group("/api/v1/ci")
	h.RegisterRoutes(api)

	// Health check with DB ping
	router.GET("/healthz", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Infof("starting server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server...")

	stopRunner()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("server forced shutdown: %v", err)
	}

	log.Info("server stopped")
}

func newExecutor(cfg *config.Config) (ports.StepExecutor, error) {
	switch cfg.Runner.Executor {
	case "docker":
		return docker.NewExecutor(cfg.Docker.Image, cfg.Docker.WorkDir)
	case "kubernetes":
		return kube.NewExecutor(&cfg.Kubernetes)
	case "shell", "":
		return shell.NewExecutor(), nil
	default:
		return nil, fmt.Errorf("unknown executor %q", cfg.Runner.Executor)
	}
}

func initLogger(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Logger.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}
