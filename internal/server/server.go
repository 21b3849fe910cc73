package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/harwoodlabs/kingfisher/config"
	"github.com/harwoodlabs/kingfisher/internal/cache"
	"github.com/harwoodlabs/kingfisher/internal/chat"
	"github.com/harwoodlabs/kingfisher/internal/llm"
	"github.com/harwoodlabs/kingfisher/internal/telemetry"
	"github.com/harwoodlabs/kingfisher/tools"
	"github.com/harwoodlabs/kingfisher/tools/images"
	"github.com/harwoodlabs/kingfisher/tools/weather"
	"github.com/harwoodlabs/kingfisher/tools/web_search"
)

// Run wires the whole service together and serves until the listener fails.
func Run(cfg *config.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{cfg.Server.AllowOrigin},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	reg := prometheus.NewRegistry()
	var metrics *telemetry.Metrics
	if cfg.Telemetry.Enabled {
		metrics = telemetry.NewMetrics(reg)
		e.Use(requestMetrics(metrics))
	}

	store, err := buildCache(cfg)
	if err != nil {
		return err
	}

	provider, err := llm.NewOpenAIProvider(cfg.LLM)
	if err != nil {
		return err
	}

	registry, err := buildRegistry(cfg, store)
	if err != nil {
		return err
	}
	fetcher := images.NewFetcher(cfg.Images, cfg.Tools.Offline)

	planner := chat.NewPlanner(provider, cfg.LLM, cfg.General.Timezone)
	coordinator := chat.NewCoordinator(registry, fetcher, cfg.Tools.CallTimeout, cfg.Tools.GlobalBudget, metrics)
	orch := chat.NewOrchestrator(planner, coordinator, cfg.LLM.Model)

	registerOps(e, provider, cfg.Server.ReadyBudget, reg)
	api := e.Group("/api")
	(&ChatHandler{Orch: orch}).Register(api)

	baseLogger.Printf("listening on %s", cfg.Server.Address)
	return e.Start(cfg.Server.Address)
}

// buildCache selects the shared TTL cache backend.
func buildCache(cfg *config.Config) (cache.Cache, error) {
	switch cfg.Cache.Backend {
	case "redis":
		return cache.NewRedis(context.Background(), cfg.Cache.Redis)
	default:
		return cache.NewMemory(cfg.Cache.MaxSize), nil
	}
}

// buildRegistry registers every tool adapter over the shared cache. The tides
// kind stays unregistered; calls for it resolve through the registry's empty
// fallback.
func buildRegistry(cfg *config.Config, store cache.Cache) (*tools.Registry, error) {
	registry := tools.NewRegistry()

	search, err := web_search.NewSearchTool(cfg.Tools.Search, store, cfg.Cache.TTL, cfg.Tools.Offline)
	if err != nil {
		return nil, err
	}
	registry.Register(search)

	opts := weather.Options{
		Cache:        store,
		TTL:          cfg.Cache.TTL,
		Offline:      cfg.Tools.Offline,
		ForecastDays: cfg.Tools.ForecastDays,
		DefaultPlace: cfg.General.DefaultPlace,
		HTTPTimeout:  cfg.Tools.CallTimeout,
	}
	registry.Register(weather.NewWeatherTool(opts))
	registry.Register(weather.NewMarineTool(opts))
	return registry, nil
}

// requestMetrics records per-endpoint request counts and latencies.
func requestMetrics(m *telemetry.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			m.ObserveRequest(c.Path(), strconv.Itoa(status), time.Since(start))
			return err
		}
	}
}
