package spotify

import (
	"net/http"
	"strconv"
	"time"

	zlog "github.com/rs/zerolog/log"

	"dynaplay/internal/app/breaker"
)

// breakerTransport observes rate-limit responses at the HTTP layer and
// trips the shared breaker with the server-advised Retry-After value. It
// does not gate requests; gating happens before each page-fetch sequence.
type breakerTransport struct {
	base    http.RoundTripper
	breaker *breaker.Breaker
}

func (t *breakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return resp, err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		t.breaker.Trip(retryAfter)
		zlog.Warn().Msgf("Rate limit hit (429), circuit breaker engaged for %s", retryAfterOrDefault(retryAfter))
	}

	return resp, nil
}

func retryAfterOrDefault(d time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return breaker.DefaultCooldown
}

// parseRetryAfter handles both forms the header may take: delay seconds or
// an HTTP date.
func parseRetryAfter(value string) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		if remaining := time.Until(at); remaining > 0 {
			return remaining, true
		}
	}
	return 0, false
}
