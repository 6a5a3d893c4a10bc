// Package main はアプリケーションのエントリーポイントを提供します。
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/stsysd/taskstation/api"
	"github.com/stsysd/taskstation/config"
	"github.com/stsysd/taskstation/db"
	"github.com/stsysd/taskstation/metrics"
	"github.com/stsysd/taskstation/service"
	"github.com/stsysd/taskstation/storage"
	"github.com/stsysd/taskstation/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serve := newServeCmd()
	root := &cobra.Command{
		Use:          "taskstation",
		Short:        "SLA付きタスク管理APIサーバー",
		SilenceUsage: true,
		RunE:         serve.RunE,
	}
	root.AddCommand(serve, newSweepCmd(), newMigrateCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "APIサーバーを起動します",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "期限を過ぎたタスクをOVERDUEとして保存します",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd.Context())
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "データベースのマイグレーションを実行します",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate()
		},
	}
}

// openStore は設定に従ってSQLiteストアを初期化します。
func openStore(cfg *config.Config) (*store.SQLiteStore, error) {
	// SQLiteストアの初期化（マイグレーション関数を渡す）
	sqliteStore, err := store.NewSQLiteStore(cfg.DataDir, db.Migrate)
	if err != nil {
		return nil, err
	}
	return sqliteStore, nil
}

// newTaskService はストアと設定からタスクサービスを作成します。
func newTaskService(ctx context.Context, cfg *config.Config, sqliteStore *store.SQLiteStore, m *metrics.Metrics) (*service.TaskService, error) {
	var uploader service.FileUploader
	if cfg.ExternalStorage {
		s3Storage, err := storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			PublicBaseURL:   cfg.S3.PublicBaseURL,
			UsePathStyle:    cfg.S3.UsePathStyle,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		uploader = s3Storage
		log.Printf("Using external storage: bucket %s", cfg.S3.Bucket)
	}

	return service.New(sqliteStore, uploader, service.Options{
		ExternalStorage: cfg.ExternalStorage,
		Metrics:         m,
	})
}

func runServe(ctx context.Context) error {
	// 設定の読み込み
	cfg, err := config.NewConfig()
	if err != nil {
		return err
	}

	sqliteStore, err := openStore(cfg)
	if err != nil {
		log.Printf("Failed to initialize SQLite store: %v", err)
		return err
	}
	defer sqliteStore.Close()

	if err := sqliteStore.Ping(ctx); err != nil {
		log.Printf("Failed to connect to database: %v", err)
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	tasks, err := newTaskService(ctx, cfg, sqliteStore, m)
	if err != nil {
		log.Printf("Failed to initialize task service: %v", err)
		return err
	}

	// サーバーインスタンスの作成
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewServer(tasks, cfg, m, registry),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err, ok := <-errCh:
		if ok {
			log.Printf("Server failed: %v", err)
			return err
		}
		return nil
	case <-stop:
		log.Printf("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown failed: %v", err)
		return err
	}

	log.Printf("Server stopped gracefully")
	return nil
}

func runSweep(ctx context.Context) error {
	cfg, err := config.NewConfig()
	if err != nil {
		return err
	}

	sqliteStore, err := openStore(cfg)
	if err != nil {
		log.Printf("Failed to initialize SQLite store: %v", err)
		return err
	}
	defer sqliteStore.Close()

	// スイープでは添付ファイルを扱わないため、アップローダーは不要
	tasks, err := service.New(sqliteStore, nil, service.Options{})
	if err != nil {
		return err
	}

	n, err := tasks.SweepOverdue(ctx)
	if err != nil {
		log.Printf("Failed to sweep overdue tasks: %v", err)
		return err
	}
	log.Printf("Marked %d task(s) as overdue", n)
	return nil
}

func runMigrate() error {
	cfg, err := config.NewConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return err
	}

	conn, err := store.Open(store.DBPath(cfg.DataDir))
	if err != nil {
		log.Printf("Failed to open database: %v", err)
		return err
	}
	defer conn.Close()

	if err := db.Migrate(conn); err != nil {
		log.Printf("Failed to run migrations: %v", err)
		return err
	}

	version, err := db.MigrationVersion(conn)
	if err != nil {
		return err
	}
	log.Printf("Database is at migration version %d", version)
	return nil
}
