package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/fakhrymubarak/weather-widget/internal/config"
	"github.com/fakhrymubarak/weather-widget/internal/model"
)

var ErrAPIKeyMissing = errors.New("API key missing")

// FetchError is the single failure kind of a weather fetch. Message is the
// human readable text shown to the user.
type FetchError struct {
	Message    string
	StatusCode int
	// Detail is the provider's own message for non-2xx answers, if any.
	Detail string
	Err    error
}

func (e *FetchError) Error() string {
	return e.Message
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// WeatherRepository defines the interface for weather data access
type WeatherRepository interface {
	FetchCurrent(ctx context.Context, city string) (*model.WeatherPayload, error)
}

// weatherRepository implements WeatherRepository against OpenWeatherMap.
type weatherRepository struct {
	httpClient *http.Client
	apiURL     string
	apiKey     string
}

// NewWeatherRepository creates a repository with the endpoint and credential
// taken from configuration. An optional http.Client replaces the default one.
func NewWeatherRepository(httpClient ...*http.Client) WeatherRepository {
	client := &http.Client{Timeout: config.GetOpenWeatherTimeout()}
	if len(httpClient) > 0 && httpClient[0] != nil {
		client = httpClient[0]
	}
	return &weatherRepository{
		httpClient: client,
		apiURL:     config.GetOpenWeatherApiUrl(),
		apiKey:     config.GetOpenWeatherMapAPIKey(),
	}
}

// FetchCurrent issues one GET for the current weather of city. The city is
// sent as given; callers decide whether a blank query is worth fetching.
func (r *weatherRepository) FetchCurrent(ctx context.Context, city string) (*model.WeatherPayload, error) {
	if r.apiKey == "" {
		return nil, &FetchError{Message: ErrAPIKeyMissing.Error(), Err: ErrAPIKeyMissing}
	}

	endpoint, err := r.buildURL(city)
	if err != nil {
		return nil, &FetchError{Message: err.Error(), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &FetchError{Message: err.Error(), Err: err}
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, statusError(resp)
	}

	var data model.WeatherPayload
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, &FetchError{Message: err.Error(), Err: err}
	}
	if _, err := data.Condition(); err != nil {
		return nil, &FetchError{Message: err.Error(), Err: err}
	}

	config.GetLogger().Debugw("Fetched current weather", "city", city, "name", data.Name)
	return &data, nil
}

func (r *weatherRepository) buildURL(city string) (string, error) {
	u, err := url.Parse(r.apiURL)
	if err != nil {
		return "", fmt.Errorf("invalid provider url: %w", err)
	}
	q := u.Query()
	q.Set("q", city)
	q.Set("appid", r.apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// transportError surfaces the transport's own message, without the
// method and URL that net/http prefixes to it.
func transportError(err error) *FetchError {
	msg := err.Error()
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		msg = urlErr.Err.Error()
	}
	return &FetchError{Message: msg, Err: err}
}

func statusError(resp *http.Response) *FetchError {
	fe := &FetchError{
		Message:    fmt.Sprintf("Request failed with status code %d", resp.StatusCode),
		StatusCode: resp.StatusCode,
	}
	var body struct {
		Message string `json:"message"`
	}
	if b, err := io.ReadAll(io.LimitReader(resp.Body, 4096)); err == nil {
		if json.Unmarshal(b, &body) == nil {
			fe.Detail = body.Message
		}
	}
	return fe
}
