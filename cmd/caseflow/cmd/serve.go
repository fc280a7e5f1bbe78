package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/solatis/caseflow/internal/core/api"
	"github.com/solatis/caseflow/internal/core/auth"
	"github.com/solatis/caseflow/internal/core/config"
	"github.com/solatis/caseflow/internal/core/db"
	"github.com/solatis/caseflow/internal/core/schemas"
	"github.com/solatis/caseflow/internal/core/server"
	"github.com/solatis/caseflow/internal/rules"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC form rules service",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "gRPC server host")
	serveCmd.Flags().Int("port", 50051, "gRPC server port")
	serveCmd.Flags().String("metrics-addr", ":9090", "Prometheus metrics listen address (empty disables)")
	serveCmd.Flags().Int("max-form-fields", 1000, "maximum form_data entries per evaluation")
	serveCmd.Flags().String("data-dir", "./data", "directory for the evaluation audit log")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	url, err := requireDBURL()
	if err != nil {
		return err
	}
	database, err := db.Open(url)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	if err := db.RequireMigrated(database); err != nil {
		return err
	}

	queries, err := db.LoadQueries(database)
	if err != nil {
		return fmt.Errorf("failed to load queries: %w", err)
	}

	secrets, err := config.LoadSecrets()
	if err != nil {
		return fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	if len(secrets) == 0 {
		return config.ErrNoSecrets
	}

	authenticator := auth.NewAuthenticator(secrets, queries, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	service, err := api.NewFormRulesService(
		schemas.NewStore(queries, logger),
		rules.NewEngine(logger),
		cfg,
		api.NewMetrics(registry),
		logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	grpcServer, err := server.NewGRPCServer(cfg, service, authenticator, registry, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting caseflow form rules service",
		"version", Version,
		"host", cfg.Host,
		"port", cfg.Port,
		"metrics_addr", cfg.MetricsAddr)

	errChan := make(chan error, 1)
	go func() {
		errChan <- grpcServer.Start(ctx)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutting down gracefully")
		return grpcServer.Shutdown(context.Background())
	}
}
