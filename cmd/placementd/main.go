package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	api "github.com/mind-engage/mindengage-placement/internal/api/http"
	auth "github.com/mind-engage/mindengage-placement/internal/auth/middleware"
	"github.com/mind-engage/mindengage-placement/internal/config"
	"github.com/mind-engage/mindengage-placement/internal/db"
	"github.com/mind-engage/mindengage-placement/internal/directory"
	"github.com/mind-engage/mindengage-placement/internal/logger"
	"github.com/mind-engage/mindengage-placement/internal/metrics"
	"github.com/mind-engage/mindengage-placement/internal/quiz"
	"github.com/mind-engage/mindengage-placement/internal/results"
	storage "github.com/mind-engage/mindengage-placement/internal/storage"
	syncx "github.com/mind-engage/mindengage-placement/internal/sync"
)

func main() {
	cfg := config.Load()
	log := logger.New("placementd", cfg.LogLevel)

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.WithError(err).Fatal("db open failed")
	}
	defer dbh.Close()

	bs, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		log.WithError(err).Fatal("blob store")
	}

	// --- Engine ---
	var obs quiz.Observer
	var m *metrics.Metrics
	if cfg.EnableMetrics {
		m = metrics.New()
		obs = m
	}
	clock := quiz.SystemClock()
	store := quiz.NewSQLStore(dbh, cfg.DBDriver, quiz.WithStoreClock(clock))
	dir := directory.NewSQLDirectory(dbh)

	gateOpts := []quiz.GateOption{quiz.WithGateClock(clock), quiz.WithGateLogger(log)}
	recOpts := []quiz.RecorderOption{
		quiz.WithTimeLimit(cfg.EnforceTimeLimit, cfg.TimeLimitGrace),
		quiz.WithRecorderLogger(log),
	}
	if obs != nil {
		gateOpts = append(gateOpts, quiz.WithGateObserver(obs))
		recOpts = append(recOpts, quiz.WithRecorderObserver(obs))
	}
	gate := quiz.NewGate(store, dir, gateOpts...)

	router := api.NewRouter(api.Deps{
		Catalog:     quiz.NewCatalog(store, clock, log),
		Gate:        gate,
		Recorder:    quiz.NewRecorder(store, gate, recOpts...),
		Results:     results.NewAggregator(store, dir),
		Events:      syncx.NewEventRepo(dbh),
		Blobs:       bs,
		Auth:        auth.NewAuthService(cfg.AuthSecret, cfg.TokenTTL),
		Admin:       auth.Admin{Username: cfg.AdminUser, PasswordHash: cfg.AdminPassHash},
		Students:    dir,
		DB:          dbh,
		Metrics:     m,
		CORSOrigins: cfg.CORSOrigins(),
		Log:         log,
	})
	if cfg.AdminPassHash == "" {
		log.Warn("ADMIN_PASS_HASH is empty; admin login disabled")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"addr": cfg.HTTPAddr,
			"mode": cfg.Mode,
			"db":   cfg.DBDriver,
		}).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown")
	}
	log.Info("stopped")
}
