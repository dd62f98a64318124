package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"prism-insight/internal/tracker/config"
	delivery "prism-insight/internal/tracker/delivery/http"
	"prism-insight/internal/tracker/dto"
	"prism-insight/internal/tracker/service"
	"prism-insight/pkg/logger"
	"prism-insight/pkg/utils"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
)

var (
	configPath string
	outputPath string
	force      bool
)

var runCmd = &cobra.Command{
	Use:       "run <morning|afternoon>",
	Short:     "Runs one tracker cycle and exits",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(dto.RunModeMorning), string(dto.RunModeAfternoon)},
	RunE:      runOnce,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the scheduled tracker with its HTTP API",
	Run:   runServe,
}

func setup() (*config.Config, *logger.Logger) {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	return cfg, appLogger
}

func runOnce(cmd *cobra.Command, args []string) error {
	mode, err := dto.ParseRunMode(args[0])
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, appLogger := setup()
	defer func() { _ = appLogger.Sync() }()

	a, err := newApp(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Error("Failed to initialize tracker", logger.ErrorField(err))
		return err
	}
	defer a.Close()

	summary, err := a.tracker.Run(ctx, mode, service.RunOptions{Force: force})
	if err != nil {
		return err
	}

	emitSummary(cmd.OutOrStdout(), outputPath, summary, appLogger)
	return nil
}

// emitSummary prints the summary and writes it to path when set. The run has
// already been committed, so output failures are only logged.
func emitSummary(w io.Writer, path string, summary *dto.RunSummary, appLogger *logger.Logger) {
	if err := service.RenderSummary(w, summary); err != nil {
		appLogger.Warn("Failed to render run summary", logger.ErrorField(err))
	}
	if path == "" {
		return
	}
	if err := service.WriteSummary(path, summary); err != nil {
		appLogger.Warn("Failed to write run summary", logger.ErrorField(err), logger.StringField("path", path))
		return
	}
	appLogger.Info("Run summary written", logger.StringField("path", path))
}

func runServe(cmd *cobra.Command, args []string) {
	// Create a context that is canceled on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, appLogger := setup()
	defer func() { _ = appLogger.Sync() }()

	appLogger.Info("Starting Tracker Service", logger.Field("name", cfg.App.Name))

	a, err := newApp(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize tracker", logger.ErrorField(err))
	}
	defer a.Close()

	schedulerSvc := service.NewSchedulerService(cfg, a.tracker, appLogger)
	schedulerDone := make(chan struct{})
	utils.GoSafe(func() {
		defer close(schedulerDone)
		if err := schedulerSvc.Start(ctx); err != nil {
			appLogger.Error("Scheduler failed to start", logger.ErrorField(err))
			stop()
		}
	})

	// Initialize Echo server
	e := echo.New()
	e.HideBanner = true

	apiV1 := e.Group("/api/v1")
	delivery.NewPortfolioHandler(a.portfolio, appLogger).RegisterRoutes(apiV1)
	delivery.NewRunHandler(ctx, a.tracker, a.db, appLogger).RegisterRoutes(apiV1)

	// Start server
	utils.GoSafe(func() {
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		appLogger.Info("HTTP server starting", logger.Field("address", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("HTTP server failed to start", logger.ErrorField(err))
			stop() // trigger shutdown
		}
	})

	// Wait for shutdown signal
	<-ctx.Done()

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", logger.ErrorField(err))
	}
	<-schedulerDone

	appLogger.Info("Server exiting")
}

func main() {
	rootCmd := &cobra.Command{Use: "tracker"}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config-tracker.yaml", "Path to the configuration file")

	runCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the run summary to this file (.json, .yaml or .yml)")
	runCmd.Flags().BoolVar(&force, "force", false, "Run even when the market calendar says closed")

	rootCmd.AddCommand(runCmd, serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing tracker CLI: %s\n", err)
		os.Exit(1)
	}
}
