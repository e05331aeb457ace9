package integrationtest

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/mux"

	"github.com/fakhrymubarak/weather-widget/internal/config"
	"github.com/fakhrymubarak/weather-widget/internal/handler"
	"github.com/fakhrymubarak/weather-widget/internal/middleware"
	"github.com/fakhrymubarak/weather-widget/internal/redis"
	"github.com/fakhrymubarak/weather-widget/internal/repository"
	"github.com/fakhrymubarak/weather-widget/internal/service"
	"github.com/fakhrymubarak/weather-widget/internal/session"
)

const londonBody = `{"name":"London","sys":{"country":"GB"},"main":{"temp":300,"humidity":60},"weather":[{"description":"clear sky"}]}`

// mockOWM records the queries it receives and answers per city.
type mockOWM struct {
	mu      sync.Mutex
	queries []string
	keys    []string
}

func (m *mockOWM) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		m.mu.Lock()
		m.queries = append(m.queries, q)
		m.keys = append(m.keys, r.URL.Query().Get("appid"))
		m.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch q {
		case "London":
			_, _ = w.Write([]byte(londonBody))
		case "Broken":
			_, _ = w.Write([]byte(`{"name":`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"cod":"404","message":"city not found"}`))
		}
	})
}

func (m *mockOWM) seen() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

func createMockRedisServer() *miniredis.Miniredis {
	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		panic(err)
	}
	return mr
}

// setupIntegrationTestServer wires the whole widget stack the way main does,
// against whatever provider URL and Redis address are configured.
func setupIntegrationTestServer() (*httptest.Server, *session.Registry, *redis.StatePublisher) {
	log := config.GetLogger()
	publisher := redis.NewStatePublisher(redis.GetClient(), config.GetRedisChannelPrefix(), log)
	svc := service.NewWidgetService(repository.NewWeatherRepository(), publisher)
	sessions := session.NewRegistry(svc.Mount, time.Minute, log)

	router := mux.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logging(log))
	handler.NewWidgetHandler(sessions, config.GetHalveHumidity(), log).Register(router)

	return httptest.NewServer(router), sessions, publisher
}
