package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/evdnx/gosignal/config"
	"github.com/evdnx/gosignal/executor"
	"github.com/evdnx/gosignal/logger"
	"github.com/evdnx/gosignal/provider"
	"github.com/evdnx/gosignal/recorder"
	"github.com/evdnx/gosignal/runner"
	"github.com/evdnx/gosignal/strategy"
)

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// bootLogger is used until the configured level is known. It never
// returns nil.
func bootLogger(level string) logger.Logger {
	l, err := logger.NewZapLogger(level)
	if err != nil {
		return logger.NewNop()
	}
	return l
}

func main() {
	boot := bootLogger("info")

	cfg, err := config.LoadWithEnv(env("CONFIG_PATH", "configs/strategy.yaml"), env("ENV_FILE", ".env"))
	if err != nil {
		boot.Error("load_config_failed", logger.Err(err))
		os.Exit(1)
	}
	log, err := logger.NewZapLogger(cfg.LogLevel)
	if err != nil {
		boot.Error("init_logger_failed", logger.Err(err))
		os.Exit(1)
	}
	log.Info("gosignal_starting", logger.String("strategy", cfg.Name), logger.Strings("symbols", cfg.Symbols))

	var rec recorder.Recorder = recorder.NewNoopRecorder()
	if cfg.RecorderPath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.RecorderPath, log)
		if err != nil {
			log.Warn("recorder_init_failed_using_noop", logger.Err(err))
		} else {
			rec = sr
			defer sr.Close()
		}
	}

	eng, err := strategy.Build(*cfg, log, rec)
	if err != nil {
		log.Error("build_strategy_failed", logger.Err(err))
		os.Exit(1)
	}

	equity, err := strconv.ParseFloat(env("PAPER_EQUITY", "100000"), 64)
	if err != nil {
		log.Error("invalid_paper_equity", logger.Err(err))
		os.Exit(1)
	}
	book := executor.NewPaperPortfolio(equity, log)
	log.Info("paper_book_ready", logger.Float64("equity", book.Equity()))
	src := provider.Snapshot{Path: env("SNAPSHOT_PATH", "data/snapshot.yaml")}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := runner.New(ctx, eng, src, book, book, rec, log)
	r.Timeout = time.Minute
	if _, err := r.Register(); err != nil {
		log.Error("register_cycle_failed", logger.Err(err))
		os.Exit(1)
	}
	r.Start()
	defer r.Stop()

	if addr := os.Getenv("METRICS_ADDR"); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics_server_failed", logger.Err(err))
			}
		}()
		defer srv.Close()
		log.Info("metrics_listening", logger.String("addr", addr))
	}

	if os.Getenv("RUN_ON_START") == "true" {
		go func() {
			if _, err := r.RunOnce(ctx); err != nil {
				log.Error("cycle_failed", logger.Err(err))
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown_signal_received")
	cancel()
}
