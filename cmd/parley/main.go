package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	log "log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"Parley/internal/api/config"
	"Parley/internal/pkg/cron"
	"Parley/internal/pkg/logger"
	"Parley/internal/wire"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ./configs/config.yaml)")
	flag.Parse()

	// 加载配置
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Error("Fatal error: failed to load configuration", "err", err)
		os.Exit(1)
	}

	// 初始化日志
	logger.InitLogger(cfg.Log)
	gin.SetMode(cfg.Server.Mode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 依赖注入
	app, err := wire.BuildApplication(ctx, cfg)
	if err != nil {
		log.Error("Fatal error: failed to create application", "err", err)
		os.Exit(1)
	}

	g, ctx := errgroup.WithContext(ctx)

	// 定时任务
	if app.CronMgr != nil {
		if err = cron.InitCron(app.CronMgr); err != nil {
			log.Error("Fatal error: failed to start cron jobs", "err", err)
			_ = app.Close(context.Background())
			os.Exit(1)
		}
		g.Go(func() error {
			<-ctx.Done()
			log.Info("Cron Jobs stopping...")
			app.CronMgr.Stop()
			return nil
		})
	}

	// HTTP 服务器
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: app.Router,
	}
	g.Go(func() error {
		log.Info("HTTP Server starting...", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// 优雅退出
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case <-ctx.Done():
		case sig := <-quit:
			log.Info("Received signal, shutting down...", "signal", sig)
			cancel()
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP Server shutdown failed", "err", err)
		}
		if err := app.Close(shutdownCtx); err != nil {
			log.Error("Release resources failed", "err", err)
		}
		return nil
	})

	if err = g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("App exited with error", "err", err)
		os.Exit(1)
	}
	log.Info("App exited successfully.")
}
