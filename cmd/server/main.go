package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/clipq-go/api"
	"github.com/yourusername/clipq-go/api/handlers"
	"github.com/yourusername/clipq-go/internal/app"
	"github.com/yourusername/clipq-go/internal/domain"
	"github.com/yourusername/clipq-go/internal/infrastructure"
	"github.com/yourusername/clipq-go/pkg/logger"
)

var (
	serverMode = flag.Bool("server-mode", false, "Internal flag: run in server mode (called by daemon)")
	foreground = flag.Bool("foreground", false, "Run in the foreground instead of detaching")
	configPath = flag.String("config", "", "Path to config file")
)

func main() {
	flag.Parse()

	if !*serverMode && !*foreground {
		startAsDaemon()
		return
	}

	runServer()
}

// startAsDaemon re-executes the binary detached from the terminal
func startAsDaemon() {
	execPath, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get executable path: %v\n", err)
		os.Exit(1)
	}

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "/"
	}

	args := []string{"-server-mode"}
	if *configPath != "" {
		args = append(args, "-config", *configPath)
	}
	cmd := exec.Command(execPath, args...)
	cmd.Dir = cwd
	cmd.Env = os.Environ()
	detach(cmd)

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open %s: %v\n", os.DevNull, err)
		os.Exit(1)
	}
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull

	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start daemon: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Server started as daemon (PID: %d)\n", cmd.Process.Pid)
	os.Exit(0)
}

func runServer() {
	config, err := app.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logConfig := logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
	}
	if *serverMode {
		// detached from the terminal that started us
		logConfig.DetachedPath = filepath.Join(config.Download.LogsDir, "server.log")
	}
	log, err := logger.New(logConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// queue, error and download categories each get a daily file
	multiLog, err := logger.NewMultiLogger(logger.MultiLoggerConfig{
		Level:   config.Logging.Level,
		LogsDir: config.Download.LogsDir,
	})
	if err != nil {
		log.Fatal("Failed to initialize category logs", zap.Error(err))
	}
	defer multiLog.Close()
	logs := logger.NewLoggerAdapter(multiLog)

	if err := os.MkdirAll(config.Download.DestDir, 0755); err != nil {
		log.Fatal("Failed to create destination directory", zap.Error(err))
	}

	library := infrastructure.NewLibraryExtractor(logs)
	cli := infrastructure.NewCLIExtractor(&config.Extractor, logs)
	var gateway *app.ExtractorGateway
	if config.Extractor.PreferLibrary {
		gateway = app.NewExtractorGateway(library, nil, nil)
	} else {
		gateway = app.NewExtractorGateway(library, cli, cli.Available)
	}

	var thumbs domain.ThumbnailFetcher
	if config.Thumbnail.Enabled {
		thumbs = infrastructure.NewHTTPThumbnailFetcher(config.Thumbnail.Timeout)
	}

	engine := app.NewQueueEngine(app.EngineOptions{
		Config:     config,
		Gateway:    gateway,
		Trimmer:    app.NewTrimmer(infrastructure.NewFFmpegTranscoder(&config.Transcoder, logs), log),
		Thumbnails: thumbs,
		Notifier:   infrastructure.NewNotificationService(&config.Notification, log),
		Logs:       logs,
	})

	log.Info("Starting clipq server",
		zap.String("version", handlers.Version),
		zap.String("host", config.Server.Host),
		zap.Int("port", config.Server.Port),
		zap.String("dest_dir", config.Download.DestDir),
		zap.Bool("ytdlp_available", cli.Available()),
		zap.Bool("prefer_library", config.Extractor.PreferLibrary))

	ctx, cancel := context.WithCancel(context.Background())
	engineDone := make(chan struct{})
	go func() {
		engine.Run(ctx)
		close(engineDone)
	}()

	router := api.SetupRouter(engine, log, logs, config.Download.LogsDir)

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	// aborts the running job and waits for initializations
	cancel()
	select {
	case <-engineDone:
	case <-shutdownCtx.Done():
		log.Warn("Queue engine did not stop in time")
	}

	log.Info("Server exited")
}
