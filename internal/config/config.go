package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var once sync.Once
var logger *zap.SugaredLogger
var loggerOnce sync.Once

// isTestRun returns true if the current process is a Go test binary.
func isTestRun() bool {
	return flag.Lookup("test.v") != nil || filepath.Ext(os.Args[0]) == ".test"
}

func setDefaults() {
	viper.SetDefault("openweathermap.api_url", "https://api.openweathermap.org/data/2.5/weather")
	viper.SetDefault("openweathermap.timeout", "0s")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_header_timeout", "15s")
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "10s")
	viper.SetDefault("server.idle_timeout", "30s")
	viper.SetDefault("server.search_wait_timeout", "8s")
	viper.SetDefault("widget.discard_stale_results", false)
	viper.SetDefault("widget.session_idle_timeout", "30m")
	viper.SetDefault("display.halve_humidity", true)
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.channel_prefix", "widget")
}

func initConfig() {
	once.Do(func() {
		setDefaults()
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		viper.AutomaticEnv()

		root, err := getProjectRoot()
		if err != nil {
			GetLogger().Errorw("Error finding project root", "error", err)
			return
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
		viper.AddConfigPath(root)
		if err = viper.ReadInConfig(); err != nil {
			GetLogger().Warnw("Error reading config file, using defaults", "error", err)
		}

		if isTestRun() {
			viper.SetConfigName("config_test")
			if err = viper.MergeInConfig(); err != nil {
				GetLogger().Debugw("No test config merged", "error", err)
			}
		}
	})
}

func getProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

// parseDuration reads key as a duration, falling back to def when unset or invalid.
func parseDuration(key string, def time.Duration) time.Duration {
	initConfig()
	return durationOr(viper.GetString(key), def)
}

func durationOr(durStr string, def time.Duration) time.Duration {
	if durStr == "" {
		return def
	}
	dur, err := time.ParseDuration(durStr)
	if err != nil {
		return def
	}
	return dur
}

func GetOpenWeatherApiUrl() string {
	initConfig()
	return viper.GetString("openweathermap.api_url")
}

func GetOpenWeatherMapAPIKey() string {
	_ = godotenv.Load()
	return os.Getenv("OPENWEATHERMAP_API_KEY")
}

// GetOpenWeatherTimeout returns the HTTP client timeout for provider calls. Zero means no timeout.
func GetOpenWeatherTimeout() time.Duration {
	return parseDuration("openweathermap.timeout", 0)
}

func GetRedisAddr() string {
	initConfig()
	return viper.GetString("redis.addr")
}

// IsRedisEnabled reports whether state snapshots are published to Redis.
func IsRedisEnabled() bool {
	initConfig()
	return viper.GetBool("redis.enabled")
}

func GetRedisChannelPrefix() string {
	initConfig()
	return viper.GetString("redis.channel_prefix")
}

func GetServerPort() string {
	initConfig()
	serverPort := viper.GetString("server.port")
	return serverPort
}

func GetServerTimeout(key string) string {
	initConfig()
	return viper.GetString("server." + key)
}

// GetServerTimeoutDuration is GetServerTimeout parsed as a time.Duration.
func GetServerTimeoutDuration(key string, def time.Duration) time.Duration {
	return durationOr(GetServerTimeout(key), def)
}

// GetSearchWaitTimeout bounds how long a search request waits for its fetch
// cycle before answering with the loading state.
func GetSearchWaitTimeout() time.Duration {
	return GetServerTimeoutDuration("search_wait_timeout", 8*time.Second)
}

// GetDiscardStaleResults reports whether fetch completions that are not the
// most recently issued cycle are dropped instead of applied.
func GetDiscardStaleResults() bool {
	initConfig()
	return viper.GetBool("widget.discard_stale_results")
}

// GetHalveHumidity reports whether rendered humidity is divided by two.
func GetHalveHumidity() bool {
	initConfig()
	return viper.GetBool("display.halve_humidity")
}

// GetSessionIdleTimeout returns how long a mounted widget may go untouched
// before it is unmounted. Defaults to 30m.
func GetSessionIdleTimeout() time.Duration {
	return parseDuration("widget.session_idle_timeout", 30*time.Minute)
}

// ReloadConfigForTest resets the config singleton and reloads Viper config. Use only in tests.
func ReloadConfigForTest() {
	once = sync.Once{}
	initConfig()
}

func GetLogger() *zap.SugaredLogger {
	loggerOnce.Do(func() {
		l, err := zap.NewDevelopment()
		if err != nil {
			panic(err)
		}
		logger = l.Sugar()
	})
	return logger
}

// GetRateLimiterCleanupTimeout returns the rate limiter cleanup timeout as a time.Duration.
// Defaults to 3m if not set or invalid.
func GetRateLimiterCleanupTimeout() time.Duration {
	return parseDuration("rate_limiter.cleanup_timeout", 3*time.Minute)
}

// GetGlobalRateLimiterConfig returns the rate and burst for the global rate limiter from config.
func GetGlobalRateLimiterConfig() (rate float64, burst int) {
	initConfig()
	rate = viper.GetFloat64("rate_limiter.global.rate")
	if rate == 0 {
		rate = 10
	}
	burst = viper.GetInt("rate_limiter.global.burst")
	if burst == 0 {
		burst = 10
	}
	return
}

// GetParamRateLimiterConfig returns the rate and burst for the param rate limiter from config.
func GetParamRateLimiterConfig() (rate float64, burst int) {
	initConfig()
	rate = viper.GetFloat64("rate_limiter.param.rate")
	if rate == 0 {
		rate = 2
	}
	burst = viper.GetInt("rate_limiter.param.burst")
	if burst == 0 {
		burst = 2
	}
	return
}
