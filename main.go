package main

import (
	"context"
	"os"

	"roomrelay/internal/config"
	"roomrelay/internal/http/http_server"
	"roomrelay/internal/ws"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	zap.ReplaceGlobals(Log)

	// 1. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	if cfg.IsProd() {
		prodLog, err := zap.NewProduction()
		if err != nil {
			Log.Fatal("Failed to build production logger", zap.Error(err))
		}
		Log = prodLog
		zap.ReplaceGlobals(Log)
		gin.SetMode(gin.ReleaseMode)
	}
	defer Log.Sync()
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Room registry + broadcaster
	registry := ws.NewRegistry()
	hub := ws.NewHub(registry)

	// 3. WebSocket server (liveness sweep starts here)
	wsSrv := ws.NewWsServer(hub, cfg)

	// 4. HTTP + WS server
	httpServer := http_server.NewHttpServer(cfg, wsSrv, registry)
	go func() {
		if err := httpServer.Start(); err != nil {
			Log.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// 5. Block until SIGINT/SIGTERM, then vacate rooms and release the listener
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": func(ctx context.Context) error {
				Log.Info("Graceful shutdown initiated")
				return httpServer.Dispose(ctx)
			},
		},
	)

	exitCode := <-wait
	Log.Info("Server exited", zap.Int("code", exitCode))
	_ = Log.Sync()
	os.Exit(exitCode)
}
