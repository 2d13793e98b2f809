package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ironsheep/ocr-annotate/internal/annotate"
	"github.com/ironsheep/ocr-annotate/internal/blobstore"
	"github.com/ironsheep/ocr-annotate/internal/config"
	"github.com/ironsheep/ocr-annotate/internal/logging"
	"github.com/ironsheep/ocr-annotate/internal/metrics"
	"github.com/ironsheep/ocr-annotate/internal/ocr"
	"github.com/ironsheep/ocr-annotate/internal/pipeline"
	"github.com/ironsheep/ocr-annotate/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("ocr-annotate %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			printHelp()
			return
		}
	}

	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ocr-annotate: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Server.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ocr-annotate: failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", zap.Error(err))
		logging.Sync(logger)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("ocr-annotate - web service that outlines detected text on uploaded images")
	fmt.Println()
	fmt.Println("Usage: ocr-annotate [-config config.yaml]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -config PATH     YAML config file (missing file uses defaults)")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println()
	fmt.Println("Environment variables (also read from .env):")
	fmt.Println("  OCRANNOTATE_SERVER_PORT=:5000         Listen address")
	fmt.Println("  OCRANNOTATE_STORAGE_DRIVER=fs|redis   Upload storage")
	fmt.Println("  OCRANNOTATE_OCR_ENGINE=tesseract      tesseract, remote or heuristic")
	fmt.Println("  OCRANNOTATE_OCR_LANGUAGES=spa         Comma separated language codes")
	fmt.Println("  OCRANNOTATE_LOG_LEVEL=debug           Enable debug logging")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting ocr-annotate",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("commit", GitCommit))

	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	detector, engine, err := openDetector(cfg.OCR, logger)
	if err != nil {
		return err
	}

	palette, err := cfg.Palette()
	if err != nil {
		return err
	}
	annotator, err := annotate.New(
		annotate.WithLogger(logger),
		annotate.WithPalette(palette),
		annotate.WithFontSize(cfg.Annotate.FontSize),
	)
	if err != nil {
		return fmt.Errorf("failed to init annotator: %w", err)
	}

	m := metrics.New()
	srv, err := server.New(server.Options{
		Store:     store,
		Pipeline:  pipeline.New(store, detector, annotator, logger, m),
		Logger:    logger,
		Metrics:   m,
		Mode:      cfg.Server.Mode,
		MaxUpload: cfg.Server.MaxUpload,
		Build: server.BuildInfo{
			Version:   Version,
			BuildTime: BuildTime,
			GitCommit: GitCommit,
			Engine:    engine,
			Languages: cfg.OCR.Languages,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to build server: %w", err)
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Server.Port), zap.String("engine", engine))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// openStore returns the configured store and a function that releases it.
func openStore(cfg *config.Config, logger *zap.Logger) (blobstore.Store, func(), error) {
	switch cfg.Storage.Driver {
	case config.DriverRedis:
		r := blobstore.NewRedis(cfg.Redis)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.Ping(ctx); err != nil {
			r.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		logger.Info("using redis storage", zap.String("addr", cfg.Redis.Addr))
		return r, func() {
			if err := r.Close(); err != nil {
				logger.Warn("failed to close redis", zap.Error(err))
			}
		}, nil
	default:
		fs, err := blobstore.NewFS(cfg.Storage.Dir)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using filesystem storage", zap.String("dir", fs.Dir()))
		return fs, func() {}, nil
	}
}

// openDetector builds the configured engine. A Tesseract build without cgo
// falls back to the heuristic locator.
func openDetector(cfg ocr.Config, logger *zap.Logger) (ocr.Detector, string, error) {
	d, err := ocr.NewDetector(cfg, logger)
	if errors.Is(err, ocr.ErrEngineUnavailable) {
		logger.Warn("ocr engine not compiled in, falling back to heuristic regions",
			zap.String("engine", cfg.Engine), zap.Error(err))
		cfg.Engine = ocr.EngineHeuristic
		d, err = ocr.NewDetector(cfg, logger)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to init ocr engine: %w", err)
	}
	return d, cfg.Engine, nil
}
