package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/fakhrymubarak/weather-widget/internal/config"
	"github.com/fakhrymubarak/weather-widget/internal/model"
)

// paramKey is the form/query field used for per-param rate limiting (default: "city").
var paramKey = "city"

// SetParamKey sets the field for per-param rate limiting. Used primarily for testing.
func SetParamKey(key string) {
	paramKey = key
}

// visitor holds a rate limiter and the last time it was used.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

var (
	// globalVisitors maps client IPs to their search limiter.
	globalVisitors = make(map[string]*visitor)
	// paramVisitors maps client IPs and city values to their limiter.
	paramVisitors = make(map[string]map[string]*visitor)
	muGlobal      sync.Mutex
	muParam       sync.Mutex
)

// perMinute turns a configured requests-per-minute figure into a rate.Limit.
func perMinute(n float64) rate.Limit {
	return rate.Limit(n / 60.0)
}

// getGlobalLimiter returns the limiter for ip, creating one if it does not exist.
func getGlobalLimiter(ip string) *rate.Limiter {
	muGlobal.Lock()
	defer muGlobal.Unlock()
	v, exists := globalVisitors[ip]
	if !exists {
		r, burst := config.GetGlobalRateLimiterConfig()
		limiter := rate.NewLimiter(perMinute(r), burst)
		globalVisitors[ip] = &visitor{limiter, time.Now()}
		return limiter
	}
	v.lastSeen = time.Now()
	return v.limiter
}

// getParamLimiter returns the limiter for ip and param, creating one if it does not exist.
func getParamLimiter(ip, param string) *rate.Limiter {
	muParam.Lock()
	defer muParam.Unlock()
	if _, ok := paramVisitors[ip]; !ok {
		paramVisitors[ip] = make(map[string]*visitor)
	}
	v, exists := paramVisitors[ip][param]
	if !exists {
		r, burst := config.GetParamRateLimiterConfig()
		limiter := rate.NewLimiter(perMinute(r), burst)
		paramVisitors[ip][param] = &visitor{limiter, time.Now()}
		return limiter
	}
	v.lastSeen = time.Now()
	return v.limiter
}

// cleanupVisitors removes entries not seen for longer than maxIdle.
func cleanupVisitors(maxIdle time.Duration) {
	muGlobal.Lock()
	for ip, v := range globalVisitors {
		if time.Since(v.lastSeen) > maxIdle {
			delete(globalVisitors, ip)
		}
	}
	muGlobal.Unlock()

	muParam.Lock()
	for ip, paramMap := range paramVisitors {
		for param, v := range paramMap {
			if time.Since(v.lastSeen) > maxIdle {
				delete(paramMap, param)
			}
		}
		if len(paramMap) == 0 {
			delete(paramVisitors, ip)
		}
	}
	muParam.Unlock()
}

// StartRateLimiterCleanup drops stale visitors every interval until ctx is done.
func StartRateLimiterCleanup(ctx context.Context, interval time.Duration) {
	maxIdle := config.GetRateLimiterCleanupTimeout()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cleanupVisitors(maxIdle)
			}
		}
	}()
}

// ResetVisitors clears all visitor states. Used primarily for testing.
func ResetVisitors() {
	muGlobal.Lock()
	clear(globalVisitors)
	muGlobal.Unlock()
	muParam.Lock()
	clear(paramVisitors)
	muParam.Unlock()
}

// getIP extracts the client's IP address, honouring X-Forwarded-For.
func getIP(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr // fallback
	}
	return ip
}

// getParam reads the configured field from the query string or a form body.
func getParam(r *http.Request) string {
	return strings.ToLower(strings.TrimSpace(r.FormValue(paramKey)))
}

func tooManyRequests(w http.ResponseWriter, errMsg, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	resp := model.ErrorResponse(errMsg)
	resp.Message = message
	_ = json.NewEncoder(w).Encode(resp)
}

// RateLimitMiddleware enforces the global and per-city search limits.
// Rejected requests get a 429 with a JSON error body.
func RateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := getIP(r)
		param := getParam(r)
		if param == "" {
			// If param is missing, treat as a single bucket
			param = "__none__"
		}
		if !getGlobalLimiter(ip).Allow() {
			limit, _ := config.GetGlobalRateLimiterConfig()
			tooManyRequests(w,
				fmt.Sprintf("Rate limit exceeded: max %g searches per minute per user/IP", limit),
				"Too Many Requests (global limit)")
			return
		}
		if !getParamLimiter(ip, param).Allow() {
			limit, _ := config.GetParamRateLimiterConfig()
			tooManyRequests(w,
				fmt.Sprintf("Rate limit exceeded: max %g searches per minute per city per user/IP", limit),
				"Too Many Requests (per-city limit)")
			return
		}
		next.ServeHTTP(w, r)
	})
}
