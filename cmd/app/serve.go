package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"github.com/untibullet/sprint-rollover/internal/config"
	"github.com/untibullet/sprint-rollover/internal/handlers"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Graceful shutdown
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	logger := a.logger
	logger.Info("starting sprint rollover service",
		zap.String("server_address", a.cfg.Server.GetAddress()),
		zap.String("database_driver", a.cfg.Database.Driver))

	e := newServer(a.cfg.Server, handlers.New(a.planning, a.backlog, logger), logger)

	// Запуск сервера в горутине
	serverErr := make(chan error, 1)
	go func() {
		addr := a.cfg.Server.GetAddress()
		logger.Info("server listening", zap.String("address", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Ожидание сигнала завершения
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		logger.Error("server start failed", zap.Error(err))
		return err
	}
	logger.Info("shutting down server gracefully")

	// Таймаут для graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	logger.Info("server stopped")
	return nil
}

// newServer настраивает Echo: middleware и маршруты
func newServer(cfg config.ServerConfig, h *handlers.Handler, logger *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogError:    true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error == nil {
				logger.Info("request",
					zap.String("method", c.Request().Method),
					zap.String("uri", v.URI),
					zap.Int("status", v.Status),
					zap.Duration("latency", v.Latency),
				)
			} else {
				logger.Error("request error",
					zap.String("method", c.Request().Method),
					zap.String("uri", v.URI),
					zap.Int("status", v.Status),
					zap.Error(v.Error),
				)
			}
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	if cfg.RateLimit > 0 {
		e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(cfg.RateLimit),
				Burst:     cfg.RateBurst,
				ExpiresIn: 3 * time.Minute,
			},
		)))
	}

	// Регистрация роутов
	h.RegisterRoutes(e)

	return e
}
