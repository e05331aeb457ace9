package widget

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakhrymubarak/weather-widget/internal/model"
	"github.com/fakhrymubarak/weather-widget/internal/repository"
)

const londonBody = `{"name":"London","sys":{"country":"GB"},"main":{"temp":300,"humidity":60},"weather":[{"description":"clear sky"}]}`

// countingClient records every outgoing request and answers with respond.
type countingClient struct {
	mu      sync.Mutex
	queries []string
}

func (cc *countingClient) client(respond func() (*http.Response, error)) *http.Client {
	return repository.NewMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		cc.mu.Lock()
		cc.queries = append(cc.queries, req.URL.Query().Get("q"))
		cc.mu.Unlock()
		return respond()
	})
}

func (cc *countingClient) calls() []string {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return append([]string(nil), cc.queries...)
}

type reply struct {
	payload *model.WeatherPayload
	err     error
}

type pendingCall struct {
	city  string
	reply chan reply
}

// gatedRepo parks every fetch until the test answers it.
type gatedRepo struct {
	calls chan pendingCall
}

func newGatedRepo() *gatedRepo {
	return &gatedRepo{calls: make(chan pendingCall, 8)}
}

func (g *gatedRepo) FetchCurrent(ctx context.Context, city string) (*model.WeatherPayload, error) {
	r := make(chan reply, 1)
	g.calls <- pendingCall{city: city, reply: r}
	rep := <-r
	return rep.payload, rep.err
}

func (g *gatedRepo) next(t *testing.T) pendingCall {
	t.Helper()
	select {
	case c := <-g.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("expected a fetch")
		return pendingCall{}
	}
}

func waitIdle(t *testing.T, c *Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Wait(ctx))
}

func TestSearch_BlankCityTogglesWithoutFetching(t *testing.T) {
	for _, city := range []string{"", "   ", "\t"} {
		cc := &countingClient{}
		repo := repository.NewTestRepository(cc.client(func() (*http.Response, error) {
			return repository.JSONResponse(http.StatusOK, londonBody), nil
		}), "https://example.test/weather", "k")
		c := New(repo)
		c.SetCity(city)

		c.Search()
		waitIdle(t, c)

		s := c.State()
		assert.True(t, s.ShowWeather)
		assert.False(t, s.Loading)
		assert.Nil(t, s.WeatherData)
		assert.Nil(t, s.Error)
		assert.Empty(t, cc.calls())
	}
}

func TestSearch_LondonSuccess(t *testing.T) {
	cc := &countingClient{}
	repo := repository.NewTestRepository(cc.client(func() (*http.Response, error) {
		return repository.JSONResponse(http.StatusOK, londonBody), nil
	}), "https://example.test/weather", "k")
	c := New(repo)
	c.SetCity("London")

	c.Search()
	waitIdle(t, c)

	assert.Equal(t, []string{"London"}, cc.calls())

	s := c.State()
	assert.False(t, s.Loading)
	assert.True(t, s.ShowWeather)
	assert.Nil(t, s.Error)
	require.NotNil(t, s.WeatherData)
	assert.Equal(t, "London", s.WeatherData.Name)
	assert.Equal(t, "GB", s.WeatherData.Sys.Country)
	assert.Equal(t, 300.0, s.WeatherData.Main.Temp)
	assert.Equal(t, 60.0, s.WeatherData.Main.Humidity)
	assert.Equal(t, "clear sky", s.WeatherData.Weather[0].Description)

	view, err := Render(s, true)
	require.NoError(t, err)
	assert.Equal(t, 27, view.TemperatureC)
	assert.Equal(t, 30.0, view.Humidity)
}

func TestSearch_SetsLoadingBeforeReturning(t *testing.T) {
	repo := newGatedRepo()
	c := New(repo)
	c.SetCity("London")

	c.Search()
	assert.True(t, c.State().Loading)

	call := repo.next(t)
	assert.Equal(t, "London", call.city)
	call.reply <- reply{payload: samplePayload("London")}
	waitIdle(t, c)
	assert.False(t, c.State().Loading)
}

func TestSearch_TransportFailureKeepsPreviousData(t *testing.T) {
	fail := false
	repo := repository.NewTestRepository(repository.NewMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		if fail {
			return nil, errors.New("Network Error")
		}
		return repository.JSONResponse(http.StatusOK, londonBody), nil
	}), "https://example.test/weather", "k")
	c := New(repo)
	c.SetCity("London")
	c.Search()
	waitIdle(t, c)
	before := c.State().WeatherData
	require.NotNil(t, before)

	fail = true
	c.Search()
	waitIdle(t, c)

	s := c.State()
	assert.False(t, s.Loading)
	require.NotNil(t, s.Error)
	assert.Equal(t, "Network Error", *s.Error)
	assert.Same(t, before, s.WeatherData)
	assert.False(t, s.ShowWeather, "second search hides the results")
}

func TestSearch_ErrorClearedByNextRequest(t *testing.T) {
	repo := newGatedRepo()
	c := New(repo)
	c.SetCity("Nowhere")

	c.Search()
	repo.next(t).reply <- reply{err: &repository.FetchError{Message: "Request failed with status code 404", StatusCode: 404}}
	waitIdle(t, c)
	require.NotNil(t, c.State().Error)
	assert.Equal(t, "Request failed with status code 404", *c.State().Error)

	c.Search()
	assert.Nil(t, c.State().Error)
	repo.next(t).reply <- reply{payload: samplePayload("Nowhere")}
	waitIdle(t, c)
}

func TestOverlappingFetches_LastCompletionWins(t *testing.T) {
	repo := newGatedRepo()
	c := New(repo)

	c.SetCity("Paris")
	c.Search()
	first := repo.next(t)

	c.SetCity("Berlin")
	c.Search()
	second := repo.next(t)
	assert.Equal(t, "Paris", first.city)
	assert.Equal(t, "Berlin", second.city)

	second.reply <- reply{payload: samplePayload("Berlin")}
	require.Eventually(t, func() bool {
		d := c.State().WeatherData
		return d != nil && d.Name == "Berlin"
	}, 2*time.Second, 5*time.Millisecond)

	first.reply <- reply{payload: samplePayload("Paris")}
	waitIdle(t, c)

	assert.Equal(t, "Paris", c.State().WeatherData.Name)
	assert.False(t, c.State().Loading)
}

func TestOverlappingFetches_DiscardStale(t *testing.T) {
	repo := newGatedRepo()
	c := New(repo, WithDiscardStale(true))

	c.SetCity("Paris")
	c.Search()
	first := repo.next(t)

	c.SetCity("Berlin")
	c.Search()
	second := repo.next(t)

	second.reply <- reply{payload: samplePayload("Berlin")}
	require.Eventually(t, func() bool {
		d := c.State().WeatherData
		return d != nil && d.Name == "Berlin"
	}, 2*time.Second, 5*time.Millisecond)

	first.reply <- reply{err: errors.New("late failure")}
	waitIdle(t, c)

	s := c.State()
	assert.Equal(t, "Berlin", s.WeatherData.Name)
	assert.Nil(t, s.Error)
}

func TestDiscardStale_LoadingHeldUntilLatestResolves(t *testing.T) {
	repo := newGatedRepo()
	c := New(repo, WithDiscardStale(true))

	c.SetCity("Paris")
	c.Search()
	first := repo.next(t)
	c.Search()
	second := repo.next(t)

	first.reply <- reply{payload: samplePayload("Paris")}
	// the stale answer is dropped, so loading stays on
	time.Sleep(20 * time.Millisecond)
	assert.True(t, c.State().Loading)
	assert.Nil(t, c.State().WeatherData)

	second.reply <- reply{payload: samplePayload("Paris")}
	waitIdle(t, c)
	assert.False(t, c.State().Loading)
	assert.NotNil(t, c.State().WeatherData)
}

func TestToggleShowWeather_ReactiveFetch(t *testing.T) {
	repo := newGatedRepo()
	c := New(repo)
	c.SetCity("Oslo")

	c.ToggleShowWeather()
	call := repo.next(t)
	assert.Equal(t, "Oslo", call.city)
	call.reply <- reply{payload: samplePayload("Oslo")}
	waitIdle(t, c)

	// hiding never fetches
	c.ToggleShowWeather()
	waitIdle(t, c)
	assert.Empty(t, repo.calls)
	assert.False(t, c.State().ShowWeather)
}

func TestToggleShowWeather_BlankCityDoesNotFetch(t *testing.T) {
	repo := newGatedRepo()
	c := New(repo)

	c.ToggleShowWeather()
	waitIdle(t, c)
	assert.Empty(t, repo.calls)
	assert.True(t, c.State().ShowWeather)
}

func TestSearch_IssuesOneFetchPerSubmit(t *testing.T) {
	cc := &countingClient{}
	repo := repository.NewTestRepository(cc.client(func() (*http.Response, error) {
		return repository.JSONResponse(http.StatusOK, londonBody), nil
	}), "https://example.test/weather", "k")
	c := New(repo)
	c.SetCity("London")

	c.Search()
	waitIdle(t, c)
	c.Search()
	waitIdle(t, c)

	assert.Equal(t, []string{"London", "London"}, cc.calls())
}

func TestObserver_SeesTransitionsInOrder(t *testing.T) {
	repo := newGatedRepo()
	var mu sync.Mutex
	var seen []State
	c := New(repo, WithObserver(func(s State) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	}))

	c.SetCity("Rome")
	c.Search()
	repo.next(t).reply <- reply{payload: samplePayload("Rome")}
	waitIdle(t, c)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 4)
	assert.Equal(t, "Rome", seen[0].City)
	assert.True(t, seen[1].ShowWeather)
	assert.True(t, seen[2].Loading)
	assert.False(t, seen[3].Loading)
	assert.NotNil(t, seen[3].WeatherData)
}

func TestUnmount_DropsLateCompletion(t *testing.T) {
	repo := newGatedRepo()
	notified := 0
	c := New(repo)
	c.SetCity("Lima")
	c.Search()
	call := repo.next(t)

	c.Subscribe(func(State) { notified++ })
	c.Unmount()
	call.reply <- reply{payload: samplePayload("Lima")}
	waitIdle(t, c)

	assert.True(t, c.Unmounted())
	assert.True(t, c.State().Loading, "no transition after unmount")
	assert.Nil(t, c.State().WeatherData)
	assert.Zero(t, notified)

	c.Search()
	assert.Empty(t, repo.calls)
}

func TestWait_HonoursContext(t *testing.T) {
	repo := newGatedRepo()
	c := New(repo)
	c.SetCity("Quito")
	c.Search()
	call := repo.next(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.Wait(ctx), context.DeadlineExceeded)

	call.reply <- reply{payload: samplePayload("Quito")}
	waitIdle(t, c)
}

func TestObserver_SlowObserverDoesNotBlockState(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	c := New(newGatedRepo(), WithObserver(func(s State) {
		if s.City == "Oslo" {
			close(entered)
			<-release
		}
	}))

	go c.SetCity("Oslo")
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("observer was not called")
	}

	got := make(chan State, 1)
	go func() { got <- c.State() }()
	select {
	case s := <-got:
		assert.Equal(t, "Oslo", s.City)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("State blocked behind a running observer")
	}
	close(release)
}

func TestObserver_OrderKeptAcrossConcurrentTransitions(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	c := New(newGatedRepo(), WithObserver(func(s State) {
		mu.Lock()
		seen = append(seen, s.City)
		mu.Unlock()
		time.Sleep(time.Millisecond)
	}))

	var wg sync.WaitGroup
	for _, city := range []string{"a", "b", "c", "d", "e"} {
		wg.Add(1)
		go func(city string) {
			defer wg.Done()
			c.SetCity(city)
		}(city)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 5)
	assert.Equal(t, c.State().City, seen[len(seen)-1], "the last state observed is the current one")
}
