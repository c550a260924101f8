package tiles

import (
	"net/http"
	"time"

	"github.com/woozymasta/chargermap/internal/metrics"

	"github.com/rs/zerolog/log"
)

// loggingTransport logs every outgoing tile request.
type loggingTransport struct {
	next http.RoundTripper
}

// NewLoggingTransport wraps next (http.DefaultTransport if nil) with request logging.
func NewLoggingTransport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	if _, ok := next.(*loggingTransport); ok {
		return next
	}

	return &loggingTransport{next: next}
}

// RoundTrip performs the request and records its outcome.
func (t *loggingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	start := time.Now()

	resp, err := t.next.RoundTrip(r)
	elapsed := time.Since(start)
	metrics.TileRequestDuration.Observe(elapsed.Seconds())

	if err != nil {
		log.Trace().
			Err(err).
			Str("method", r.Method).
			Str("url", r.URL.String()).
			Dur("duration", elapsed).
			Msg("Tile request failed")

		return nil, err
	}

	log.Trace().
		Str("method", r.Method).
		Str("url", r.URL.String()).
		Int("status", resp.StatusCode).
		Dur("duration", elapsed).
		Msg("Tile request processed")

	return resp, nil
}
