package model

// WeatherView is what the widget surface draws for one view state.
type WeatherView struct {
	City        string `json:"city"`
	ShowWeather bool   `json:"showWeather"`
	Loading     bool   `json:"loading"`
	Error       string `json:"error,omitempty"`

	HasWeather   bool    `json:"hasWeather"`
	Location     string  `json:"location,omitempty"`
	Country      string  `json:"country,omitempty"`
	TemperatureC int     `json:"temperatureC"`
	Description  string  `json:"description,omitempty"`
	Humidity     float64 `json:"humidity"`
}
