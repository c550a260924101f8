package tiles

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/woozymasta/chargermap/internal/metrics"

	"github.com/chai2010/webp"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/webp"
)

// ErrTileNotFound is returned for tiles the server does not have (HTTP 404).
var ErrTileNotFound = errors.New("tile not found")

// BasemapFetchError reports a tile that could not be downloaded after all retries.
type BasemapFetchError struct {
	Err  error
	URL  string
	Tile TileCoordinate
}

func (e *BasemapFetchError) Error() string {
	return fmt.Sprintf("basemap: tile %s (%s): %v", e.Tile, e.URL, e.Err)
}

func (e *BasemapFetchError) Unwrap() error { return e.Err }

// Options configures a Fetcher.
type Options struct {
	URLTemplate string
	UserAgent   string
	CacheDir    string // empty disables the disk cache
	Timeout     time.Duration
	Backoff     time.Duration
	Retries     int // attempts per tile, at least 1
	Concurrency int
}

// Fetcher downloads tiles with a bounded retry policy and an optional disk cache.
type Fetcher struct {
	client *http.Client
	opts   Options
}

// NewFetcher returns a fetcher. The client transport is wrapped with request logging.
func NewFetcher(client *http.Client, opts Options) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	if opts.Retries < 1 {
		opts.Retries = 1
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}

	wrapped := *client
	wrapped.Transport = NewLoggingTransport(client.Transport)

	return &Fetcher{client: &wrapped, opts: opts}
}

type result struct {
	Img   image.Image
	Err   error
	Coord TileCoordinate
}

// FetchAll downloads every tile with a worker pool.
// Missing tiles are left out of the map, any other failure aborts the whole fetch.
func (f *Fetcher) FetchAll(ctx context.Context, coords []TileCoordinate) (map[TileCoordinate]image.Image, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan TileCoordinate, len(coords))
	results := make(chan result, len(coords))

	for _, c := range coords {
		jobs <- c
	}
	close(jobs)

	var wg sync.WaitGroup
	for i := 0; i < min(f.opts.Concurrency, len(coords)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				if ctx.Err() != nil {
					results <- result{Coord: c, Err: &BasemapFetchError{Tile: c, URL: buildURL(f.opts.URLTemplate, c), Err: ctx.Err()}}
					continue
				}

				img, err := f.Fetch(ctx, c)
				if err != nil && !errors.Is(err, ErrTileNotFound) {
					cancel()
				}
				results <- result{Coord: c, Img: img, Err: err}
			}
		}()
	}
	wg.Wait()
	close(results)

	tiles := make(map[TileCoordinate]image.Image, len(coords))
	var firstErr error
	for res := range results {
		switch {
		case res.Err == nil:
			tiles[res.Coord] = res.Img
		case errors.Is(res.Err, ErrTileNotFound):
			log.Debug().Stringer("tile", res.Coord).Msg("Tile not available, leaving blank")
		case firstErr == nil || errors.Is(firstErr, context.Canceled):
			firstErr = res.Err
		}
	}

	if firstErr != nil {
		return nil, firstErr
	}

	// a provider without any of the requested tiles is as unusable as one that is down
	if len(tiles) == 0 && len(coords) > 0 {
		return nil, &BasemapFetchError{
			Tile: coords[0],
			URL:  buildURL(f.opts.URLTemplate, coords[0]),
			Err:  fmt.Errorf("none of %d tiles available: %w", len(coords), ErrTileNotFound),
		}
	}

	return tiles, nil
}

// Fetch returns one tile from the cache or the network.
func (f *Fetcher) Fetch(ctx context.Context, c TileCoordinate) (image.Image, error) {
	if img, ok := f.fromCache(c); ok {
		metrics.TilesTotal.WithLabelValues("cache").Inc()
		return img, nil
	}

	url := buildURL(f.opts.URLTemplate, c)

	var lastErr error
	for attempt := 1; attempt <= f.opts.Retries; attempt++ {
		if attempt > 1 {
			metrics.TileRetries.Inc()
			delay := f.opts.Backoff * time.Duration(attempt-1)
			log.Debug().
				Stringer("tile", c).
				Int("attempt", attempt).
				Dur("delay", delay).
				Err(lastErr).
				Msg("Retrying tile download")

			select {
			case <-ctx.Done():
				return nil, &BasemapFetchError{Tile: c, URL: url, Err: ctx.Err()}
			case <-time.After(delay):
			}
		}

		img, err := f.download(ctx, url)
		if err == nil {
			metrics.TilesTotal.WithLabelValues("network").Inc()
			f.toCache(c, img)
			return img, nil
		}
		if errors.Is(err, ErrTileNotFound) {
			metrics.TilesTotal.WithLabelValues("missing").Inc()
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, &BasemapFetchError{Tile: c, URL: url, Err: ctx.Err()}
		}

		lastErr = err
	}

	metrics.TileErrors.Inc()

	return nil, &BasemapFetchError{Tile: c, URL: url, Err: fmt.Errorf("%d attempts: %w", f.opts.Retries, lastErr)}
}

func (f *Fetcher) download(ctx context.Context, url string) (image.Image, error) {
	if f.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if f.opts.UserAgent != "" {
		req.Header.Set("User-Agent", f.opts.UserAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrTileNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status code %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("decode failed: %w", err)
	}

	return img, nil
}

// cacheKey names the cache subdirectory of a tile source.
func cacheKey(tpl string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(tpl))
	return fmt.Sprintf("%016x", h.Sum64())
}

func (f *Fetcher) cachePath(c TileCoordinate) string {
	c = c.Wrapped()
	return filepath.Join(
		f.opts.CacheDir,
		cacheKey(f.opts.URLTemplate),
		fmt.Sprintf("%d", c.Z),
		fmt.Sprintf("%d", c.X),
		fmt.Sprintf("%d", c.Y)+".webp",
	)
}

func (f *Fetcher) fromCache(c TileCoordinate) (image.Image, bool) {
	if f.opts.CacheDir == "" {
		return nil, false
	}

	data, err := os.ReadFile(f.cachePath(c))
	if err != nil || len(data) == 0 {
		return nil, false
	}

	img, err := webp.Decode(bytes.NewReader(data))
	if err != nil {
		log.Warn().Err(err).Stringer("tile", c).Msg("Corrupted cached tile, downloading again")
		return nil, false
	}

	return img, true
}

// toCache stores the tile as webp, errors are logged and ignored.
func (f *Fetcher) toCache(c TileCoordinate, img image.Image) {
	if f.opts.CacheDir == "" {
		return
	}

	outPath := f.cachePath(c)
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		log.Warn().Err(err).Msg("Failed to create tile cache dir")
		return
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Lossless: false, Quality: 80}); err != nil {
		log.Warn().Err(err).Stringer("tile", c).Msg("Failed to encode webp")
		return
	}

	if err := os.WriteFile(outPath, buf.Bytes(), 0644); err != nil {
		log.Warn().Err(err).Str("path", outPath).Msg("Failed to write cached tile")
	}
}
