package version

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/julget/julget/internal/fallback"
	"github.com/julget/julget/internal/placeholder"
	"github.com/julget/julget/internal/registry"
)

// Resolver maps specifiers to concrete releases by consulting upstream
// version listings.
type Resolver struct {
	listing *Listing
	logger  *slog.Logger
}

// NewResolver creates a resolver backed by the given listing client.
func NewResolver(listing *Listing, logger *slog.Logger) *Resolver {
	return &Resolver{listing: listing, logger: logger}
}

// Resolve narrows spec to a single concrete release for (system, arch).
// Upstreams are consulted in the given order and the first successful
// listing wins, so callers should pass them ranked best-first. A nightly
// specifier resolves immediately without any upstream query.
func (r *Resolver) Resolve(ctx context.Context, spec Specifier, system placeholder.System, arch placeholder.Arch, upstreams []registry.UpstreamSource) (ResolvedRelease, error) {
	if spec.IsNightly() {
		rel := ResolvedRelease{Version: placeholder.LatestVersion, System: system, Arch: arch}
		if !placeholder.ValidRelease(rel.Version, system, arch) {
			return ResolvedRelease{}, fmt.Errorf("nightly builds are not published for %s/%s", system, arch)
		}
		return rel, nil
	}

	published, err := r.Published(ctx, upstreams)
	if err != nil {
		return ResolvedRelease{}, err
	}

	best, err := spec.selectBest(published)
	if err != nil {
		return ResolvedRelease{}, err
	}
	if !placeholder.ValidRelease(best, system, arch) {
		return ResolvedRelease{}, fmt.Errorf("release %s is not published for %s/%s", best, system, arch)
	}

	r.logger.Debug("resolved version", "specifier", spec.String(), "version", best, "system", system, "arch", arch)
	return ResolvedRelease{Version: best, System: system, Arch: arch}, nil
}

// Published returns the full ordered set of release identifiers, asking
// upstreams in the given order and accepting the first successful listing.
// Requiring every mirror to be reachable would defeat the point of having
// more than one.
func (r *Resolver) Published(ctx context.Context, upstreams []registry.UpstreamSource) ([]string, error) {
	if len(upstreams) == 0 {
		return nil, fmt.Errorf("no upstreams to query")
	}

	published, err := fallback.Attempt(ctx, upstreams,
		func(u registry.UpstreamSource) string { return u.Name },
		func(ctx context.Context, u registry.UpstreamSource) ([]string, error) {
			endpoint, err := u.VersionsEndpoint()
			if err != nil {
				return nil, err
			}
			return r.listing.Versions(ctx, u.Name, endpoint)
		})
	if err != nil {
		var exhausted *fallback.ExhaustedError
		if errors.As(err, &exhausted) {
			r.logger.Warn("no upstream answered the version listing query", "error", err)
		}
		return nil, err
	}
	return published, nil
}
