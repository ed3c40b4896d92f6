package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"bay-scheduler-backend/config"
	"bay-scheduler-backend/internal/alert"
	"bay-scheduler-backend/internal/api"
	"bay-scheduler-backend/internal/audit"
	"bay-scheduler-backend/internal/db"
	"bay-scheduler-backend/internal/lock"
	"bay-scheduler-backend/internal/logging"
	"bay-scheduler-backend/internal/scheduling"
	"bay-scheduler-backend/internal/store"
)

var (
	configPath string
	cfg        *config.Config
	logger     *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "bayd",
	Short: "Repair-shop bay scheduler",
	Long:  "bayd allocates service bays to repair tasks and serves the live availability board.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the integrity audit",
	RunE:  runServe,
}

func init() {
	defaultPath := os.Getenv("CONFIG_PATH")
	if defaultPath == "" {
		defaultPath = "./config/config.yaml"
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultPath, "path to the YAML configuration file")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() error {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config from %s: %w", configPath, err)
	}
	logger, err = logging.New(cfg.Log.Level, cfg.Log.Format, "bayd")
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	return nil
}

func initDatabase() (*gorm.DB, error) {
	gormDB, err := db.Init(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	return gormDB, nil
}

func newLocker() (lock.Locker, func(), error) {
	switch cfg.Lock.Backend {
	case "", "memory":
		return lock.NewLocal(), func() {}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Lock.RedisAddr,
			Password: cfg.Lock.RedisPassword,
			DB:       cfg.Lock.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("ping redis at %s: %w", cfg.Lock.RedisAddr, err)
		}
		return lock.NewRedis(client, cfg.Lock.Lease, cfg.Lock.Retry, logger), func() { client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown lock backend %q", cfg.Lock.Backend)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	defer logger.Sync()

	gormDB, err := initDatabase()
	if err != nil {
		return err
	}
	appStore := store.NewGormStore(gormDB)

	locker, closeLocker, err := newLocker()
	if err != nil {
		return err
	}
	defer closeLocker()
	logger.Info("bay lock ready", zap.String("backend", cfg.Lock.Backend))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	alerts := alert.NewWorkerPool(cfg.Alerts.WorkerPoolSize, cfg.Alerts.QueueSize, appStore, logger)
	alerts.Start(ctx)

	auditSvc := audit.NewService(cfg.Audit, appStore, alerts, logger)
	go auditSvc.Run(ctx)

	svc := scheduling.NewService(appStore, locker, alerts, cfg.Scheduling, logger)
	router := api.NewRouter(cfg.Server, svc, logger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server ListenAndServe", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutdown signal received, stopping services")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}

	logger.Info("server gracefully stopped")
	return nil
}
