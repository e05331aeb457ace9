package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/fakhrymubarak/weather-widget/internal/config"
	"github.com/fakhrymubarak/weather-widget/internal/handler"
	"github.com/fakhrymubarak/weather-widget/internal/metrics"
	"github.com/fakhrymubarak/weather-widget/internal/middleware"
	"github.com/fakhrymubarak/weather-widget/internal/redis"
	"github.com/fakhrymubarak/weather-widget/internal/repository"
	"github.com/fakhrymubarak/weather-widget/internal/service"
	"github.com/fakhrymubarak/weather-widget/internal/session"
)

// newRouter wires the widget surface, the metrics endpoint and the common middleware.
func newRouter(h *handler.WidgetHandler) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logging(config.GetLogger()))
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	h.Register(router)
	return router
}

func newStatePublisher(ctx context.Context) *redis.StatePublisher {
	log := config.GetLogger()
	if !config.IsRedisEnabled() {
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := redis.Ping(pingCtx); err != nil {
		log.Warnw("Redis unavailable, widget states will not be published", "addr", config.GetRedisAddr(), "error", err)
		return nil
	}
	log.Infow("Publishing widget states to Redis", "addr", config.GetRedisAddr())
	return redis.NewStatePublisher(redis.GetClient(), config.GetRedisChannelPrefix(), log)
}

func main() {
	log := config.GetLogger()
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if config.GetOpenWeatherMapAPIKey() == "" {
		log.Warnw("OPENWEATHERMAP_API_KEY is not set, every search will fail")
	}

	svc := service.NewWidgetService(repository.NewWeatherRepository(), newStatePublisher(ctx))
	sessions := session.NewRegistry(svc.Mount, config.GetSessionIdleTimeout(), log)
	sessions.StartCleanup(ctx, time.Minute)
	middleware.StartRateLimiterCleanup(ctx, time.Minute)

	widgetHandler := handler.NewWidgetHandler(sessions, config.GetHalveHumidity(), log)

	srv := &http.Server{
		Addr:              ":" + config.GetServerPort(),
		Handler:           newRouter(widgetHandler),
		ReadHeaderTimeout: config.GetServerTimeoutDuration("read_header_timeout", 15*time.Second),
		ReadTimeout:       config.GetServerTimeoutDuration("read_timeout", 15*time.Second),
		WriteTimeout:      config.GetServerTimeoutDuration("write_timeout", 10*time.Second),
		IdleTimeout:       config.GetServerTimeoutDuration("idle_timeout", 30*time.Second),
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("Weather widget server running", "port", config.GetServerPort())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case <-ctx.Done():
	}

	log.Infow("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Graceful shutdown failed", "error", err)
	}
	sessions.UnmountAll()
	if config.IsRedisEnabled() {
		_ = redis.GetClient().Close()
	}
}
