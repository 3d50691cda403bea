package version

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/julget/julget/internal/safety"
)

const (
	listingTimeout       = 15 * time.Second
	maxListingBytes      = 16 * 1024 * 1024
	listingUserAgent     = "julget/1.0"
	listingCacheLifetime = 1 * time.Hour
)

// UpstreamUnavailableError reports that one upstream's version listing could
// not be fetched. Callers recover by asking the next-ranked upstream.
type UpstreamUnavailableError struct {
	Upstream string
	URL      string
	Err      error
}

func (e *UpstreamUnavailableError) Error() string {
	return fmt.Sprintf("upstream %s unavailable (%s): %v", e.Upstream, e.URL, e.Err)
}

func (e *UpstreamUnavailableError) Unwrap() error { return e.Err }

// Listing fetches published version identifiers from upstream version
// endpoints, with a short-lived in-memory cache keyed by endpoint URL.
type Listing struct {
	client *http.Client
	logger *slog.Logger
	cache  *listingCache
}

// NewListing creates a listing client.
func NewListing(logger *slog.Logger) *Listing {
	return &Listing{
		client: safety.NewHTTPClient(listingTimeout),
		logger: logger,
		cache:  newListingCache(listingCacheLifetime),
	}
}

// Versions returns every published version identifier from the endpoint,
// sorted ascending by semantic version. The listing document is a JSON
// object keyed by version string.
func (l *Listing) Versions(ctx context.Context, upstream, endpoint string) ([]string, error) {
	if cached, ok := l.cache.get(endpoint); ok {
		return cached, nil
	}

	if _, err := safety.ValidateHTTPURL(endpoint); err != nil {
		return nil, &UpstreamUnavailableError{Upstream: upstream, URL: endpoint, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &UpstreamUnavailableError{Upstream: upstream, URL: endpoint, Err: err}
	}
	req.Header.Set("User-Agent", listingUserAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, &UpstreamUnavailableError{Upstream: upstream, URL: endpoint, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamUnavailableError{
			Upstream: upstream,
			URL:      endpoint,
			Err:      fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	body, err := safety.ReadAllWithLimit(resp.Body, maxListingBytes)
	if err != nil {
		return nil, &UpstreamUnavailableError{Upstream: upstream, URL: endpoint, Err: err}
	}

	versions, err := parseListing(body)
	if err != nil {
		return nil, &UpstreamUnavailableError{Upstream: upstream, URL: endpoint, Err: err}
	}

	l.logger.Debug("fetched version listing", "upstream", upstream, "endpoint", endpoint, "versions", len(versions))
	l.cache.set(endpoint, versions)
	return versions, nil
}

// parseListing extracts and orders the version keys of a listing document.
// Keys that do not parse as versions are skipped rather than failing the
// whole listing.
func parseListing(data []byte) ([]string, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing version listing: %w", err)
	}

	type entry struct {
		raw string
		v   *semver.Version
	}
	entries := make([]entry, 0, len(doc))
	for raw := range doc {
		v, err := semver.StrictNewVersion(strings.TrimPrefix(raw, "v"))
		if err != nil {
			continue
		}
		entries = append(entries, entry{raw: raw, v: v})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].v.LessThan(entries[j].v) })

	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.raw
	}
	return out, nil
}
