package service

import (
	"go.uber.org/zap"

	"github.com/fakhrymubarak/weather-widget/internal/config"
	"github.com/fakhrymubarak/weather-widget/internal/redis"
	"github.com/fakhrymubarak/weather-widget/internal/repository"
	"github.com/fakhrymubarak/weather-widget/internal/widget"
)

// WidgetService mounts controllers with the process-wide settings: the
// weather repository, the race policy and, when enabled, the Redis fan-out.
type WidgetService struct {
	Repo         repository.WeatherRepository
	Publisher    *redis.StatePublisher
	DiscardStale bool
	Log          *zap.SugaredLogger
}

// NewWidgetService builds the service from configuration. A nil repo is
// replaced with the configured OpenWeatherMap repository.
func NewWidgetService(repo repository.WeatherRepository, publisher *redis.StatePublisher) *WidgetService {
	if repo == nil {
		repo = repository.NewWeatherRepository()
	}
	return &WidgetService{
		Repo:         repo,
		Publisher:    publisher,
		DiscardStale: config.GetDiscardStaleResults(),
		Log:          config.GetLogger(),
	}
}

// Mount creates the controller for session id. It matches session.Factory.
func (s *WidgetService) Mount(id string) *widget.Controller {
	opts := []widget.Option{
		widget.WithDiscardStale(s.DiscardStale),
		widget.WithLogger(s.Log.With("session", id)),
	}
	if s.Publisher != nil {
		opts = append(opts, widget.WithObserver(s.Publisher.Observer(id)))
	}
	return widget.New(s.Repo, opts...)
}
