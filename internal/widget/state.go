// Package widget holds the view state of the city weather widget and the
// controller that drives its fetch cycles.
package widget

import "github.com/fakhrymubarak/weather-widget/internal/model"

// State is everything the widget surface displays. WeatherData and Error
// are nil when absent.
type State struct {
	City        string                `json:"city"`
	ShowWeather bool                  `json:"showWeather"`
	Loading     bool                  `json:"loading"`
	WeatherData *model.WeatherPayload `json:"weatherData"`
	Error       *string               `json:"error"`
}

// Action is one of the transitions accepted by Reduce.
type Action interface {
	isAction()
}

type SetCity struct {
	City string
}

type ToggleShowWeather struct{}

type FetchRequested struct{}

type FetchSucceeded struct {
	Payload *model.WeatherPayload
}

type FetchFailed struct {
	Message string
}

func (SetCity) isAction()           {}
func (ToggleShowWeather) isAction() {}
func (FetchRequested) isAction()    {}
func (FetchSucceeded) isAction()    {}
func (FetchFailed) isAction()       {}

// Reduce returns the state that follows s under a. It never mutates s.
//
// A fetch outcome sets only its own field: a failure keeps the last
// WeatherData and a success keeps the last Error.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case SetCity:
		s.City = a.City
	case ToggleShowWeather:
		s.ShowWeather = !s.ShowWeather
	case FetchRequested:
		s.Loading = true
		s.Error = nil
	case FetchSucceeded:
		s.Loading = false
		s.WeatherData = a.Payload
	case FetchFailed:
		msg := a.Message
		s.Loading = false
		s.Error = &msg
	}
	return s
}
