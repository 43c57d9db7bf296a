package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"TeethAnnotationServer/annotator"
	"TeethAnnotationServer/api"
	"TeethAnnotationServer/config"
	"TeethAnnotationServer/engine"
	"TeethAnnotationServer/logger"
	"TeethAnnotationServer/monitor"
	"TeethAnnotationServer/registry"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func GetOutboundIP() (string, error) {
	// no packet is sent; dialing UDP only resolves the outbound interface
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.yaml", "path to the yaml config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Debug); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 模型只在启动时加载一次，之后才接收请求
	backend, err := engine.LoadEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	svc := annotator.NewService(backend)
	srv := &http.Server{
		Addr:    fmt.Sprintf("0.0.0.0:%d", cfg.HTTPPort),
		Handler: api.SetupRouter(svc),
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		monitor.StartMon(ctx, cfg.AdhocPort)
	}()

	if cfg.UseRegServer {
		ip, err := GetOutboundIP()
		if err != nil {
			logger.Log().Warn("Failed to get outbound IP, registration skipped", zap.Error(err))
		} else {
			hb := registry.NewHeartbeat(registry.RegServerConfig{Addr: cfg.RegServerHost, Port: cfg.RegServerPort}, ip, cfg.HTTPPort, backend.ModelID())
			wg.Add(1)
			go hb.Run(ctx, &wg)
		}
	} else {
		logger.Log().Info("UseRegServer is set to false, skipping registration")
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Log().Info("Teeth annotation server listening",
			zap.String("addr", srv.Addr),
			zap.String("model", backend.ModelID()),
			zap.Int("metricsPort", cfg.AdhocPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Log().Warn("Shutting down")
	case err = <-serveErr:
		cancel()
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Log().Error("Server forced to shut down", zap.Error(shutdownErr))
	}
	wg.Wait()
	logger.Log().Info("Safely exited")
	return err
}
