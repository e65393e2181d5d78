package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	inspection "github.com/developer-overheid-nl/don-defect-register/pkg/inspection"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/blobstore"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/config"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/database"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/handler"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/metrics"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/middleware"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/oracle"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/repositories"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/services"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/staging"
	"github.com/developer-overheid-nl/don-defect-register/pkg/jobs"
	"github.com/gin-gonic/gin"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration", "err", err)
	}

	logger := newLogger(cfg.LogLevel)
	if cfg.GeneratedKey {
		logger.Warn("SESSION_SECRET not set; using a random secret, sessions and tokens will not survive a restart")
	}
	if logger.GetLevel() > log.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DBDriver, cfg.DBDSN, logger)
	if err != nil {
		logger.Fatal("database unavailable", "driver", cfg.DBDriver, "err", err)
	}

	blobs, err := blobstore.New(cfg.UploadDir)
	if err != nil {
		logger.Fatal("upload directory unavailable", "dir", cfg.UploadDir, "err", err)
	}
	defer blobs.Close()

	var scorer oracle.Scorer
	if cfg.OracleURL != "" {
		scorer = oracle.NewHTTPScorer(cfg.OracleURL, &http.Client{Timeout: cfg.OracleTimeout})
	} else {
		logger.Warn("ORACLE_URL not set; every intake gets the placeholder outcome")
	}

	pending := staging.NewTTLStore(cfg.PendingTTL)
	pending.Start()
	defer pending.Stop()

	registry := metrics.NewRegistry()
	m, err := metrics.NewInspectionMetrics(registry)
	if err != nil {
		logger.Fatal("metrics registration failed", "err", err)
	}

	detections := repositories.NewDetectionRepository(db)
	authService := services.NewAuthService(repositories.NewUserRepository(db), cfg.SessionSecret, logger)
	authService.StartJanitor(ctx)
	intakeService := services.NewIntakeService(blobs, oracle.NewAdapter(scorer, cfg.OracleTimeout), pending, m, logger)
	historyService := services.NewHistoryService(detections, blobs, m, logger)
	sweeper := services.NewSweeper(detections, blobs, m, logger)

	if _, err := jobs.ScheduleBlobSweep(ctx, sweeper, cfg.SweepSchedule, cfg.SweepGrace, logger.WithPrefix("jobs")); err != nil {
		logger.Fatal("blob sweep not scheduled", "err", err)
	}

	sess := middleware.NewSessions(cfg.SessionSecret, cfg.CookieSecure)
	router := inspection.NewRouter(version, inspection.RouterDeps{
		Auth:           handler.NewAuthController(authService, sess),
		Inspection:     handler.NewInspectionController(intakeService, historyService, sess, blobs, cfg.MaxUploadBytes, logger),
		Sessions:       sess,
		Principals:     authService,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Registry:       registry,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", "err", err)
		}
	}()

	logger.Info("server is running", "addr", cfg.HTTPAddr, "version", version, "db", cfg.DBDriver)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server stopped", "err", err)
	}
	logger.Info("server stopped")
}

func newLogger(level string) *log.Logger {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           lvl,
	})
	log.SetDefault(logger)
	return logger
}
