package pipeline

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Rate limit response headers.
const (
	HeaderRouteLimit  = "X-RateLimit-Route-Limit"
	HeaderRouteWindow = "X-RateLimit-Route-WindowMilliseconds"
	HeaderIsGlobal    = "X-RateLimit-IsGlobal"
	HeaderResetsAt    = "X-RateLimit-ResetsAt"
	HeaderRetryAfter  = "Retry-After"
)

// maxWindowMilliseconds is the largest window that fits in a time.Duration.
const maxWindowMilliseconds = math.MaxInt64 / int64(time.Millisecond)

// routeLimitHeaders reads the route limit and window. ok is false when either
// header is absent. err is set when they are present but unusable.
func routeLimitHeaders(h http.Header) (limit int, window time.Duration, ok bool, err error) {
	limitValue := h.Get(HeaderRouteLimit)
	windowValue := h.Get(HeaderRouteWindow)
	if limitValue == "" || windowValue == "" {
		return 0, 0, false, nil
	}

	limit, err = strconv.Atoi(strings.TrimSpace(limitValue))
	if err != nil {
		return 0, 0, false, err
	}
	ms, err := strconv.ParseInt(strings.TrimSpace(windowValue), 10, 64)
	if err != nil {
		return 0, 0, false, err
	}
	if limit < 1 || ms < 1 || ms > maxWindowMilliseconds {
		return 0, 0, false, strconv.ErrRange
	}
	return limit, time.Duration(ms) * time.Millisecond, true, nil
}

// resetsAt parses X-RateLimit-ResetsAt as an RFC 3339 timestamp.
func resetsAt(h http.Header) (time.Time, bool) {
	value := strings.TrimSpace(h.Get(HeaderResetsAt))
	if value == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// retryAfter parses Retry-After as whole delay seconds or an HTTP date.
// Negative delays are treated as zero.
func retryAfter(h http.Header, now time.Time) (time.Time, bool) {
	value := strings.TrimSpace(h.Get(HeaderRetryAfter))
	if value == "" {
		return time.Time{}, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		seconds = max(seconds, 0)
		if int64(seconds) > maxRetryAfterSeconds {
			seconds = int(maxRetryAfterSeconds)
		}
		return now.Add(time.Duration(seconds) * time.Second), true
	}
	if parsed, err := http.ParseTime(value); err == nil {
		return parsed, true
	}
	return time.Time{}, false
}

// maxRetryAfterSeconds caps Retry-After so the delay fits in a time.Duration.
const maxRetryAfterSeconds = math.MaxInt64 / int64(time.Second)

func isGlobal(h http.Header) (value, present bool) {
	v := strings.TrimSpace(h.Get(HeaderIsGlobal))
	if v == "" {
		return false, false
	}
	return strings.EqualFold(v, "true"), true
}
