package main

import (
	"context"
	"fmt"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/edgeless-project/edgeless/internal/bootstrap"
	"github.com/edgeless-project/edgeless/internal/obs/server"
	"github.com/edgeless-project/edgeless/internal/proxy"
	"github.com/edgeless-project/edgeless/internal/wire/httpapi"
)

func main() {
	ctx := context.Background()

	components, err := bootstrap.Setup(ctx, "proxy")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to bootstrap proxy: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	cfg := components.Config
	log := components.Logger

	raw := redis.NewClient(&redis.Options{Addr: cfg.Proxy.RedisAddr, DB: cfg.Proxy.RedisDB})
	store := proxy.NewRedisStore(raw, log)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok", "service": "proxy"})
	})
	components.MountTelemetryWS(e)

	httpapi.RegisterProxyRoutes(e, store)

	srv := server.New("proxy", cfg.Proxy.HTTPPort, e, log)
	log.Info("proxy listening", "port", cfg.Proxy.HTTPPort, "redis_addr", cfg.Proxy.RedisAddr)
	if err := srv.Start(); err != nil {
		log.Error("proxy stopped", "error", err)
		os.Exit(1)
	}
}
