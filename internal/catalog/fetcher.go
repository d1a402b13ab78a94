package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/giftlist/internal/metrics"
	"github.com/Kerhoff/giftlist/internal/models"
	"github.com/Kerhoff/giftlist/internal/repository"
)

const (
	// DefaultCacheTTL is how long a cached catalog short-circuits network access.
	DefaultCacheTTL = 15 * time.Second
	// DefaultFetchTimeout bounds each access path attempt.
	DefaultFetchTimeout = 10 * time.Second

	maxExportBytes = 8 << 20
)

// ErrFetchExhausted is matched by the error returned when every access path
// failed and no cached catalog exists.
var ErrFetchExhausted = errors.New("catalog fetch exhausted")

// PathError is the failure of a single access path.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string { return fmt.Sprintf("access path %s: %v", e.Path, e.Err) }
func (e *PathError) Unwrap() error { return e.Err }

// ExhaustedError carries the failure of every access path.
type ExhaustedError struct {
	Failures *multierror.Error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%v: %v", ErrFetchExhausted, e.Failures.ErrorOrNil())
}

func (e *ExhaustedError) Is(target error) bool { return target == ErrFetchExhausted }

func (e *ExhaustedError) Unwrap() error { return e.Failures.ErrorOrNil() }

// AccessPath is one URL through which the export can be retrieved.
type AccessPath struct {
	Name string
	URL  string
	// Envelope marks relays that wrap the payload as {"contents": "..."}.
	Envelope bool
}

// ExportURL returns the delimited-text export URL of a spreadsheet tab.
func ExportURL(spreadsheetID, gid string) string {
	return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/export?format=csv&gid=%s", spreadsheetID, gid)
}

// DirectPath fetches the export URL as is.
func DirectPath(exportURL string) AccessPath {
	return AccessPath{Name: "Direct", URL: exportURL}
}

// RelayPath fetches exportURL through a relay taking the target as an escaped
// query parameter appended to prefix.
func RelayPath(name, prefix, exportURL string) AccessPath {
	return AccessPath{Name: name, URL: prefix + url.QueryEscape(exportURL)}
}

// EnvelopePath is a RelayPath whose response is a JSON envelope.
func EnvelopePath(name, prefix, exportURL string) AccessPath {
	p := RelayPath(name, prefix, exportURL)
	p.Envelope = true
	return p
}

// RelayName derives a short label for a relay prefix from its host.
func RelayName(prefix string) string {
	u, err := url.Parse(prefix)
	if err != nil || u.Host == "" {
		return "Relay"
	}
	return u.Host
}

// Fetcher retrieves the catalog through an ordered list of access paths,
// backed by a durable cache.
type Fetcher struct {
	paths   []AccessPath
	cache   repository.CatalogCacheRepository
	client  *http.Client
	logger  *logrus.Logger
	metrics *metrics.Metrics
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time
}

// FetcherOption customises a Fetcher.
type FetcherOption func(*Fetcher)

func WithHTTPClient(c *http.Client) FetcherOption    { return func(f *Fetcher) { f.client = c } }
func WithCacheTTL(d time.Duration) FetcherOption     { return func(f *Fetcher) { f.ttl = d } }
func WithFetchTimeout(d time.Duration) FetcherOption { return func(f *Fetcher) { f.timeout = d } }
func WithClock(now func() time.Time) FetcherOption   { return func(f *Fetcher) { f.now = now } }
func WithMetrics(m *metrics.Metrics) FetcherOption   { return func(f *Fetcher) { f.metrics = m } }

// NewFetcher creates a Fetcher trying paths in order.
func NewFetcher(paths []AccessPath, cache repository.CatalogCacheRepository, logger *logrus.Logger, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		paths:   paths,
		cache:   cache,
		client:  &http.Client{},
		logger:  logger,
		ttl:     DefaultCacheTTL,
		timeout: DefaultFetchTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Paths returns the configured access paths.
func (f *Fetcher) Paths() []AccessPath {
	return append([]AccessPath(nil), f.paths...)
}

// Fetch returns the current catalog. A cache entry younger than the TTL is
// returned without network access. Otherwise paths are tried in order and the
// first one yielding at least one gift wins. When all fail, the cached entry
// is returned regardless of age; without one, the error matches
// ErrFetchExhausted.
func (f *Fetcher) Fetch(ctx context.Context) ([]models.Gift, error) {
	cached := f.loadCache(ctx)
	if cached.IsFresh(f.now(), f.ttl) {
		f.metrics.CacheResult("fresh")
		f.logger.WithField("source", cached.Source).Debug("Using cached catalog")
		return cached.Gifts, nil
	}

	var failures *multierror.Error
	for i, path := range f.paths {
		log := f.logger.WithFields(logrus.Fields{
			"path":    path.Name,
			"attempt": fmt.Sprintf("%d/%d", i+1, len(f.paths)),
		})

		res, err := f.fetchPath(ctx, path)
		if err != nil {
			f.metrics.FetchAttempt(path.Name, "error")
			log.WithError(err).Warn("Catalog access path failed")
			failures = multierror.Append(failures, &PathError{Path: path.Name, Err: err})
			if ctx.Err() != nil {
				break
			}
			continue
		}

		f.metrics.FetchAttempt(path.Name, "ok")
		log.WithFields(logrus.Fields{
			"gifts":   len(res.Gifts),
			"hidden":  res.Hidden,
			"invalid": res.Invalid,
		}).Info("Catalog loaded")

		if err := f.cache.Put(ctx, res.Gifts, path.Name); err != nil {
			f.logger.WithError(err).Warn("Failed to cache catalog")
		}
		return res.Gifts, nil
	}

	if cached != nil {
		f.metrics.CacheResult("stale_fallback")
		f.logger.WithFields(logrus.Fields{
			"source": cached.Source,
			"age":    cached.Age(f.now()).Round(time.Second).String(),
		}).Warn("All catalog access paths failed, using stale cache")
		return cached.Gifts, nil
	}

	f.metrics.CacheResult("miss")
	if failures == nil {
		failures = multierror.Append(failures, errors.New("no access paths configured"))
	}
	return nil, &ExhaustedError{Failures: failures}
}

func (f *Fetcher) loadCache(ctx context.Context) *models.CacheEntry {
	entry, err := f.cache.Get(ctx)
	if err != nil {
		f.logger.WithError(err).Warn("Ignoring unreadable catalog cache")
		return nil
	}
	return entry
}

func (f *Fetcher) fetchPath(ctx context.Context, path AccessPath) (ParseResult, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path.URL, nil)
	if err != nil {
		return ParseResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/plain, text/csv, */*")

	resp, err := f.client.Do(req)
	if err != nil {
		return ParseResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ParseResult{}, fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxExportBytes))
	if err != nil {
		return ParseResult{}, fmt.Errorf("read body: %w", err)
	}

	text := string(body)
	if path.Envelope {
		if text, err = unwrapEnvelope(body); err != nil {
			return ParseResult{}, err
		}
	}

	if !isValidCSV(text) {
		return ParseResult{}, errors.New("payload is not delimited text")
	}

	res := ParseCSV(text)
	if len(res.Gifts) == 0 {
		return res, errors.New("no gifts decoded")
	}
	return res, nil
}

type envelope struct {
	Contents *string `json:"contents"`
}

func unwrapEnvelope(body []byte) (string, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", fmt.Errorf("decode envelope: %w", err)
	}
	if env.Contents == nil {
		return "", errors.New("envelope has no contents field")
	}
	return *env.Contents, nil
}

func isValidCSV(text string) bool {
	return strings.Contains(text, ",") && len(strings.Split(text, "\n")) > 1
}

// PathReport is the outcome of probing one access path.
type PathReport struct {
	Path    AccessPath
	Result  ParseResult
	Err     error
	Elapsed time.Duration
}

// Probe tries every access path once, bypassing and leaving the cache
// untouched. It is meant for diagnostics.
func (f *Fetcher) Probe(ctx context.Context) []PathReport {
	reports := make([]PathReport, 0, len(f.paths))
	for _, path := range f.paths {
		start := f.now()
		res, err := f.fetchPath(ctx, path)
		reports = append(reports, PathReport{
			Path:    path,
			Result:  res,
			Err:     err,
			Elapsed: f.now().Sub(start),
		})
	}
	return reports
}
