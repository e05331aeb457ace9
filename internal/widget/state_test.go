package widget

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fakhrymubarak/weather-widget/internal/model"
)

func strPtr(s string) *string { return &s }

func samplePayload(name string) *model.WeatherPayload {
	p := &model.WeatherPayload{Name: name}
	p.Sys.Country = "GB"
	p.Main.Temp = 300
	p.Main.Humidity = 60
	p.Weather = []model.WeatherCondition{{Description: "clear sky"}}
	return p
}

func TestReduce_SetCityOnlyTouchesCity(t *testing.T) {
	start := State{ShowWeather: true, Loading: true, WeatherData: samplePayload("Paris"), Error: strPtr("boom")}

	s := start
	for _, city := range []string{"Lon", "London", "", "  "} {
		s = Reduce(s, SetCity{City: city})
		assert.Equal(t, city, s.City)
		assert.Equal(t, start.ShowWeather, s.ShowWeather)
		assert.Equal(t, start.Loading, s.Loading)
		assert.Same(t, start.WeatherData, s.WeatherData)
		assert.Same(t, start.Error, s.Error)
	}
}

func TestReduce_ToggleFlipsOnlyVisibility(t *testing.T) {
	start := State{City: "London", Loading: true, Error: strPtr("x")}

	once := Reduce(start, ToggleShowWeather{})
	assert.True(t, once.ShowWeather)
	once.ShowWeather = false
	assert.Equal(t, start, once)

	twice := Reduce(Reduce(start, ToggleShowWeather{}), ToggleShowWeather{})
	assert.Equal(t, start, twice)
}

func TestReduce_FetchRequestedClearsError(t *testing.T) {
	data := samplePayload("London")
	for _, prev := range []*string{nil, strPtr(""), strPtr("Network Error")} {
		s := Reduce(State{City: "London", Error: prev, WeatherData: data}, FetchRequested{})
		assert.True(t, s.Loading)
		assert.Nil(t, s.Error)
		assert.Same(t, data, s.WeatherData)
		assert.Equal(t, "London", s.City)
	}
}

func TestReduce_FetchSucceededKeepsError(t *testing.T) {
	prevErr := strPtr("old failure")
	data := samplePayload("London")

	s := Reduce(State{Loading: true, Error: prevErr}, FetchSucceeded{Payload: data})
	assert.False(t, s.Loading)
	assert.Same(t, data, s.WeatherData)
	assert.Same(t, prevErr, s.Error)
}

func TestReduce_FetchFailedKeepsWeatherData(t *testing.T) {
	data := samplePayload("London")

	s := Reduce(State{Loading: true, WeatherData: data}, FetchFailed{Message: "Network Error"})
	assert.False(t, s.Loading)
	assert.Same(t, data, s.WeatherData)
	if assert.NotNil(t, s.Error) {
		assert.Equal(t, "Network Error", *s.Error)
	}
}

func TestReduce_UnknownActionIsNoop(t *testing.T) {
	start := State{City: "London", ShowWeather: true}
	assert.Equal(t, start, Reduce(start, nil))
}

func TestReduce_DoesNotMutateInput(t *testing.T) {
	start := State{City: "London"}
	_ = Reduce(start, FetchFailed{Message: "x"})
	assert.Nil(t, start.Error)
	assert.False(t, start.Loading)
}
