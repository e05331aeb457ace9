package widget

import (
	"math"

	"github.com/fakhrymubarak/weather-widget/internal/model"
)

const kelvinOffset = 273.15

// CelsiusFromKelvin converts at display time and rounds to the nearest
// degree, halves going up (-1.5 shows as -1).
func CelsiusFromKelvin(k float64) int {
	return int(math.Floor(k - kelvinOffset + 0.5))
}

// DisplayHumidity returns the humidity figure the widget shows. With halve
// set it reproduces the long-standing divide-by-two display, which is not a
// unit conversion.
func DisplayHumidity(percent float64, halve bool) float64 {
	if halve {
		return percent / 2
	}
	return percent
}

// Render derives what the surface draws from s. Weather fields are filled
// only while results are visible and a payload is stored; a payload with no
// condition yields model.ErrIncompletePayload alongside the partial view.
func Render(s State, halveHumidity bool) (model.WeatherView, error) {
	view := model.WeatherView{
		City:        s.City,
		ShowWeather: s.ShowWeather,
		Loading:     s.Loading,
	}
	if s.Error != nil {
		view.Error = *s.Error
	}
	if !s.ShowWeather || s.WeatherData == nil {
		return view, nil
	}

	cond, err := s.WeatherData.Condition()
	if err != nil {
		return view, err
	}
	view.HasWeather = true
	view.Location = s.WeatherData.Name
	view.Country = s.WeatherData.Sys.Country
	view.TemperatureC = CelsiusFromKelvin(s.WeatherData.Main.Temp)
	view.Description = cond.Description
	view.Humidity = DisplayHumidity(s.WeatherData.Main.Humidity, halveHumidity)
	return view, nil
}
