// Package fetch walks a mirror ranking and downloads a resolved release
// from the first upstream that can serve it.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/julget/julget/internal/download"
	"github.com/julget/julget/internal/fallback"
	"github.com/julget/julget/internal/placeholder"
	"github.com/julget/julget/internal/registry"
	"github.com/julget/julget/internal/version"
)

// AllMirrorsExhaustedError is the final failure after every ranked mirror
// has been attempted.
type AllMirrorsExhaustedError struct {
	Release  version.ResolvedRelease
	Attempts error
}

func (e *AllMirrorsExhaustedError) Error() string {
	return fmt.Sprintf("every mirror failed for %s: %v", e.Release, e.Attempts)
}

func (e *AllMirrorsExhaustedError) Unwrap() error { return e.Attempts }

// ArtifactURL renders the concrete download URL an upstream serves for the
// release. Nightly releases use the latest_urls template.
func ArtifactURL(u registry.UpstreamSource, rel version.ResolvedRelease) (string, error) {
	ctx, err := placeholder.NewContext(rel.Version, rel.System, rel.Arch)
	if err != nil {
		return "", err
	}
	// filename and latest_filename are nested templates: render them first,
	// then substitute the results as plain values.
	if ctx.Filename, err = placeholder.Render(u.Filename(), ctx); err != nil {
		return "", err
	}
	if ctx.LatestFilename, err = placeholder.Render(u.LatestFilename(), ctx); err != nil {
		return "", err
	}

	tmpl := u.URLTemplate
	if rel.IsNightly() {
		if u.LatestURLTemplate == "" {
			return "", fmt.Errorf("upstream %s does not serve nightly builds", u.Name)
		}
		tmpl = u.LatestURLTemplate
	}
	return placeholder.Render(tmpl, ctx)
}

// ArtifactFilename renders the mirror-independent local filename for the
// release, using the default filename templates.
func ArtifactFilename(rel version.ResolvedRelease) (string, error) {
	ctx, err := placeholder.NewContext(rel.Version, rel.System, rel.Arch)
	if err != nil {
		return "", err
	}
	tmpl := registry.DefaultFilenameTemplate
	if rel.IsNightly() {
		tmpl = registry.DefaultLatestFilenameTemplate
	}
	return placeholder.Render(tmpl, ctx)
}

// Orchestrator downloads resolved releases with fallback across mirrors.
type Orchestrator struct {
	client *download.Client
	logger *slog.Logger
}

// NewOrchestrator creates an orchestrator around the given transfer client.
func NewOrchestrator(client *download.Client, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{client: client, logger: logger}
}

// Result pairs the transfer outcome with the mirror that served it.
type Result struct {
	Download *download.Result
	Upstream string
}

// Fetch attempts the transfer against each upstream in order, advancing on
// any failure. The walk is strictly sequential: a later mirror is only
// tried after the preceding one has definitively failed. On success the
// artifact is at destPath; on failure destPath is untouched.
func (o *Orchestrator) Fetch(ctx context.Context, rel version.ResolvedRelease, upstreams []registry.UpstreamSource, destPath string, onProgress download.ProgressFunc) (*Result, error) {
	if len(upstreams) == 0 {
		return nil, fmt.Errorf("no mirrors to fetch %s from", rel)
	}

	result, err := fallback.Attempt(ctx, upstreams,
		func(u registry.UpstreamSource) string { return u.Name },
		func(ctx context.Context, u registry.UpstreamSource) (*Result, error) {
			url, err := ArtifactURL(u, rel)
			if err != nil {
				return nil, err
			}
			o.logger.Info("fetching artifact", "release", rel.String(), "upstream", u.Name, "url", url)
			dl, err := o.client.Download(ctx, download.Options{
				URL:        url,
				DestPath:   destPath,
				TempSuffix: tempSuffix(u.Name),
				OnProgress: onProgress,
			})
			if err != nil {
				return nil, err
			}
			return &Result{Download: dl, Upstream: u.Name}, nil
		})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &AllMirrorsExhaustedError{Release: rel, Attempts: err}
	}
	return result, nil
}

// tempSuffix derives a filesystem-safe per-mirror suffix so concurrent
// attempts against the same destination never share a temp file.
func tempSuffix(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}
