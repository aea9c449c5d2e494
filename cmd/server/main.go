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

	"github.com/jengzang/machine-efficiency-go/internal/api"
	"github.com/jengzang/machine-efficiency-go/internal/app"
	"github.com/jengzang/machine-efficiency-go/internal/config"
	"github.com/jengzang/machine-efficiency-go/internal/inference"
	"github.com/jengzang/machine-efficiency-go/internal/logger"
	"github.com/jengzang/machine-efficiency-go/internal/service"
	"github.com/jengzang/machine-efficiency-go/pkg/apperr"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (default $CONFIG_FILE)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// 加载配置
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	lg, err := logger.New(logger.Config{Dir: cfg.LogDir, Level: cfg.LogLevel})
	if err != nil {
		return err
	}
	defer lg.Close()
	log := lg.Logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 初始化数据库
	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := os.MkdirAll(cfg.Paths.ArtifactRoot, 0o755); err != nil {
		return fmt.Errorf("failed to create artifact root: %w", err)
	}

	holder := inference.NewHolder()
	watcher := inference.NewWatcher(cfg.Paths.Current(), holder, log)
	if _, err := watcher.Reload(); err != nil && !errors.Is(err, apperr.ArtifactNotFound) {
		log.Warn("no usable model at startup", "error", err)
	}
	if !holder.IsReady() {
		go func() {
			select {
			case <-holder.Ready():
				log.Info("model available", "run_id", holder.Load().RunID)
			case <-ctx.Done():
			}
		}()
	}
	go func() {
		if err := watcher.Run(ctx); err != nil {
			log.Error("model watcher stopped", "error", err)
		}
	}()

	// 初始化路由
	router := api.SetupRouter(ctx, api.Deps{
		Predictions:     service.NewPredictionService(holder, a.Evals),
		Runs:            service.NewRunService(a.Runs, a.Evals, a.Chains),
		Logger:          log,
		RateLimit:       cfg.RateLimit.Requests,
		RateLimitWindow: cfg.RateLimit.Window,
	})

	srv := &http.Server{
		Addr:              cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("server starting", "addr", cfg.Port, "log_file", lg.Path())
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
