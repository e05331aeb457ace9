package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch outcomes used as the "outcome" label of FetchCycles.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeDiscarded = "discarded"
)

var (
	FetchCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_widget_fetch_cycles_total",
			Help: "Weather fetch cycles by outcome.",
		},
		[]string{"outcome"},
	)

	MountedWidgets = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "weather_widget_mounted",
			Help: "Widgets currently mounted.",
		},
	)

	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_widget_http_requests_total",
			Help: "Total requests by route, method and status.",
		},
		[]string{"route", "method", "status"},
	)
)

func init() {
	prometheus.MustRegister(FetchCycles, MountedWidgets, RequestCounter)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
