package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/orgoj/logchannel/internal/channel"
	"github.com/orgoj/logchannel/internal/config"
	"github.com/orgoj/logchannel/internal/logger"
	"github.com/orgoj/logchannel/internal/provider/all"
	"github.com/orgoj/logchannel/internal/server"
	"github.com/orgoj/logchannel/internal/version"
)

func main() {
	// --- Configuration --- //
	configPath := flag.String("config", "config/config.yaml", "Path to the configuration file")
	testConfigShort := flag.Bool("t", false, "Test configuration and exit (nginx style)")
	testConfigLong := flag.Bool("test", false, "Test configuration and exit (nginx style)")
	showVersion := flag.Bool("version", false, "Show version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.VersionInfo())
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("[CRITICAL] Failed to load configuration from '%s': %v\n", *configPath, err)
		os.Exit(1)
	}

	if err := config.ValidateConfig(cfg); err != nil {
		fmt.Printf("[CRITICAL] Configuration validation failed for '%s':\n%v\n", *configPath, err)
		os.Exit(1)
	}

	if *testConfigShort || *testConfigLong {
		fmt.Printf("Configuration '%s' is valid.\n", *configPath)
		os.Exit(0)
	}

	appLogger := logger.GetAppLogger()
	if err := appLogger.Configure(cfg.AppLog); err != nil {
		fmt.Printf("[CRITICAL] Failed to configure application log: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Close()

	appLogger.Warn("%s", version.VersionInfo())
	gin.SetMode(gin.ReleaseMode)

	// --- Dependency Initialization --- //

	registry := channel.NewRegistry(
		channel.WithEnvironment(all.NewEnvironment()),
		channel.WithLogger(appLogger.FieldLogger()),
	)

	// A destination that cannot be resolved is reported and left out; a
	// broker that is merely down is retried on the first record.
	loggerManager := logger.NewManager(registry, appLogger)
	if err := loggerManager.InitLoggers(cfg.Channels, cfg.Resolvers); err != nil {
		appLogger.Error("%v", err)
	}
	if len(loggerManager.GetAllEnabledLoggerNames()) == 0 {
		appLogger.Warn("No channel destination is active, every record will be skipped")
	}

	srv := server.NewServer(server.Dependencies{
		Config:        cfg,
		LoggerManager: loggerManager,
		AppLogger:     appLogger,
	})

	// --- Graceful Shutdown --- //

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Start()
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			appLogger.Error("Server error: %v", err)
			loggerManager.CloseAll()
			os.Exit(1)
		}
	case <-ctx.Done():
		appLogger.Info("Received shutdown signal.")
	}

	timeout, _ := config.ParseDuration(cfg.Server.ShutdownTimeout)
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown: %v", err)
	}

	loggerManager.CloseAll()
	appLogger.Info("LogChannel shut down gracefully.")
}
