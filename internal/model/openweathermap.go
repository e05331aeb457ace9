package model

import "errors"

// WeatherPayload is the current-weather document returned by OpenWeatherMap.
// Temperatures are in Kelvin since no units parameter is sent.
type WeatherPayload struct {
	Name string `json:"name"`
	Sys  struct {
		Country string `json:"country"`
	} `json:"sys"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		TempMin   float64 `json:"temp_min"`
		TempMax   float64 `json:"temp_max"`
		Pressure  int     `json:"pressure"`
		Humidity  float64 `json:"humidity"`
	} `json:"main"`
	Weather []WeatherCondition `json:"weather"`
}

type WeatherCondition struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// ErrIncompletePayload reports a payload without a weather condition to describe.
var ErrIncompletePayload = errors.New("weather payload has no conditions")

// Condition returns the first weather condition, which is the one the widget shows.
func (p *WeatherPayload) Condition() (WeatherCondition, error) {
	if p == nil || len(p.Weather) == 0 {
		return WeatherCondition{}, ErrIncompletePayload
	}
	return p.Weather[0], nil
}
