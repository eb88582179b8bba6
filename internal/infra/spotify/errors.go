package spotify

import (
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"

	"dynaplay/internal/app/breaker"
)

// ErrUnauthenticated indicates missing or unusable credentials. The caller
// must re-authenticate; the error is never retried internally.
var ErrUnauthenticated = errors.New("not authenticated with Spotify")

// ErrNotFound indicates the remote resource does not exist or is not
// accessible with the current credentials.
var ErrNotFound = errors.New("not found on Spotify")

// classify maps an API error into the structured taxonomy at the remote
// boundary: the status code and retry hint are read here so that no caller
// ever has to match on error message text. A 429 trips the shared breaker.
func (c *Client) classify(err error) error {
	if err == nil {
		return nil
	}

	var apiErr spotify.Error
	if !errors.As(err, &apiErr) {
		return err
	}

	switch apiErr.Status {
	case http.StatusTooManyRequests:
		// The transport has already tripped the breaker with the parsed
		// Retry-After header; surface the remaining wait.
		wait := c.breaker.Remaining()
		if wait <= 0 {
			wait = breaker.DefaultCooldown
			c.breaker.Trip(wait)
		}
		return errors.WithSecondaryError(&breaker.RateLimitedError{Wait: wait}, err)
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.Mark(err, ErrUnauthenticated)
	case http.StatusNotFound:
		return errors.Mark(err, ErrNotFound)
	default:
		return err
	}
}

// IsRateLimited reports whether err carries a rate-limit signal and, if so,
// the advised wait.
func IsRateLimited(err error) (time.Duration, bool) {
	var rle *breaker.RateLimitedError
	if errors.As(err, &rle) {
		return rle.Wait, true
	}
	return 0, false
}
