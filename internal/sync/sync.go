// Package sync implements mirror replication: fetching the full release
// catalog into a local directory so it can serve as a new mirror. The local
// layout mirrors the upstream /bin tree.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	gosync "sync"
	"time"

	"github.com/julget/julget/internal/fetch"
	"github.com/julget/julget/internal/mirror"
	"github.com/julget/julget/internal/placeholder"
	"github.com/julget/julget/internal/registry"
	"github.com/julget/julget/internal/safety"
	"github.com/julget/julget/internal/store"
	"github.com/julget/julget/internal/version"
)

// Options configures a replication run.
type Options struct {
	OutDir  string
	Period  time.Duration // zero means single pass
	Workers int
	// Systems and Arches restrict the catalog; empty means every supported
	// combination.
	Systems []placeholder.System
	Arches  []placeholder.Arch
	// Series restricts stable releases to matching version lines; empty
	// means every published release.
	Series         []version.Specifier
	IncludeNightly bool
}

// Report summarizes one pass.
type Report struct {
	Planned          int
	Downloaded       int
	Skipped          int
	Failed           int
	BytesTransferred int64
	Duration         time.Duration
}

// Mirrorer drives resolution, ranking, and download across the catalog.
type Mirrorer struct {
	registry     *registry.Registry
	selector     *mirror.Selector
	resolver     *version.Resolver
	orchestrator *fetch.Orchestrator
	store        *store.Store
	logger       *slog.Logger
}

// NewMirrorer wires the replication loop. store may be nil, in which case
// no bookkeeping is recorded.
func NewMirrorer(reg *registry.Registry, sel *mirror.Selector, res *version.Resolver, orch *fetch.Orchestrator, st *store.Store, logger *slog.Logger) *Mirrorer {
	return &Mirrorer{
		registry:     reg,
		selector:     sel,
		resolver:     res,
		orchestrator: orch,
		store:        st,
		logger:       logger,
	}
}

// Run executes replication passes until the context is cancelled. With a
// zero period it runs exactly one pass. A pass with failures does not stop
// the loop; failures are reported and the next pass retries them.
func (m *Mirrorer) Run(ctx context.Context, opts Options) error {
	for {
		report, err := m.RunOnce(ctx, opts)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.logger.Error("mirror pass failed", "error", err)
		} else {
			m.logger.Info("mirror pass complete",
				"planned", report.Planned,
				"downloaded", report.Downloaded,
				"skipped", report.Skipped,
				"failed", report.Failed,
				"bytes", report.BytesTransferred,
				"duration", report.Duration,
			)
		}

		if opts.Period <= 0 {
			if err != nil {
				return err
			}
			if report.Failed > 0 {
				return fmt.Errorf("mirror pass completed with %d failures", report.Failed)
			}
			return nil
		}

		m.logger.Info("sleeping until next mirror pass", "period", opts.Period)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(opts.Period):
		}
	}
}

// RunOnce performs a single full-catalog pass. Artifacts already present in
// the output directory are skipped, so re-running against an unchanged
// catalog downloads nothing.
func (m *Mirrorer) RunOnce(ctx context.Context, opts Options) (*Report, error) {
	start := time.Now()

	ranking := m.selector.Rank(ctx, m.registry.Upstreams())
	upstreams := ranking.Upstreams()

	tasks, err := m.plan(ctx, opts, upstreams)
	if err != nil {
		return nil, err
	}

	run := &store.SyncRun{StartTime: start, Status: "running"}
	if m.store != nil {
		if err := m.store.CreateSyncRun(run); err != nil {
			m.logger.Warn("failed to record sync run", "error", err)
		}
	}

	report := &Report{Planned: len(tasks)}
	results := m.execute(ctx, opts, upstreams, tasks)
	for _, res := range results {
		switch {
		case res.skipped:
			report.Skipped++
		case res.err != nil:
			report.Failed++
			m.logger.Warn("release failed on every mirror", "release", res.task.release.String(), "error", res.err)
		default:
			report.Downloaded++
			report.BytesTransferred += res.size
		}
	}
	report.Duration = time.Since(start)

	if m.store != nil && run.ID != 0 {
		run.EndTime = time.Now()
		run.Downloaded = report.Downloaded
		run.Skipped = report.Skipped
		run.Failed = report.Failed
		run.BytesTransferred = report.BytesTransferred
		run.Status = "success"
		if report.Failed > 0 {
			run.Status = "partial"
		}
		if err := m.store.UpdateSyncRun(run); err != nil {
			m.logger.Warn("failed to update sync run", "error", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// task is one (version, system, architecture) artifact to ensure locally.
type task struct {
	release  version.ResolvedRelease
	destPath string
}

type taskResult struct {
	task     task
	skipped  bool
	size     int64
	upstream string
	err      error
}

// plan enumerates the catalog for the configured systems and architectures.
// The version listing is fetched once (through ranked fallback) and reused
// across combinations.
func (m *Mirrorer) plan(ctx context.Context, opts Options, upstreams []registry.UpstreamSource) ([]task, error) {
	published, err := m.resolver.Published(ctx, upstreams)
	if err != nil {
		return nil, fmt.Errorf("enumerating catalog: %w", err)
	}

	systems := opts.Systems
	if len(systems) == 0 {
		systems = placeholder.Systems()
	}
	arches := opts.Arches
	if len(arches) == 0 {
		arches = placeholder.Arches()
	}

	var tasks []task
	for _, sys := range systems {
		for _, arch := range arches {
			for _, raw := range published {
				v, ok := version.Normalize(raw)
				if !ok || !placeholder.ValidRelease(v, sys, arch) {
					continue
				}
				if !matchesSeries(opts.Series, raw) {
					continue
				}
				rel := version.ResolvedRelease{Version: v, System: sys, Arch: arch}
				dest, err := m.localPath(opts.OutDir, rel)
				if err != nil {
					m.logger.Warn("skipping release with unusable local path", "release", rel.String(), "error", err)
					continue
				}
				tasks = append(tasks, task{release: rel, destPath: dest})
			}

			if opts.IncludeNightly && placeholder.ValidRelease(placeholder.LatestVersion, sys, arch) {
				rel := version.ResolvedRelease{Version: placeholder.LatestVersion, System: sys, Arch: arch}
				dest, err := m.localPath(opts.OutDir, rel)
				if err == nil {
					tasks = append(tasks, task{release: rel, destPath: dest})
				}
			}
		}
	}
	return tasks, nil
}

// execute fans tasks out over a bounded worker pool. Each task targets a
// distinct output file, so workers never contend on a final path; per-mirror
// temp names keep even retries collision-free. After cancellation the
// remaining tasks fail fast with the context error.
func (m *Mirrorer) execute(ctx context.Context, opts Options, upstreams []registry.UpstreamSource, tasks []task) []taskResult {
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}

	results := make([]taskResult, len(tasks))
	taskCh := make(chan int)
	var wg gosync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range taskCh {
				if err := ctx.Err(); err != nil {
					results[i] = taskResult{task: tasks[i], err: err}
					continue
				}
				results[i] = m.ensure(ctx, upstreams, tasks[i])
			}
		}()
	}

	for i := range tasks {
		taskCh <- i
	}
	close(taskCh)
	wg.Wait()
	return results
}

// ensure makes a single artifact present locally, skipping when it already is.
func (m *Mirrorer) ensure(ctx context.Context, upstreams []registry.UpstreamSource, t task) taskResult {
	res := taskResult{task: t}

	// Nightlies are a moving target; refetch rather than skip.
	if !t.release.IsNightly() {
		if _, err := os.Stat(t.destPath); err == nil {
			res.skipped = true
			return res
		}
	}

	fetched, err := m.orchestrator.Fetch(ctx, t.release, upstreams, t.destPath, nil)
	if err != nil {
		res.err = err
		return res
	}
	res.size = fetched.Download.Size
	res.upstream = fetched.Upstream

	if m.store != nil {
		rec := &store.Artifact{
			Path:      t.destPath,
			Version:   t.release.Version,
			System:    string(t.release.System),
			Arch:      string(t.release.Arch),
			Upstream:  fetched.Upstream,
			Size:      fetched.Download.Size,
			SHA256:    fetched.Download.SHA256,
			FetchedAt: time.Now(),
		}
		if err := m.store.UpsertArtifact(rec); err != nil {
			m.logger.Warn("failed to record artifact", "path", t.destPath, "error", err)
		}
	}
	return res
}

// localPath renders the artifact's position under outdir, mirroring the
// upstream /bin tree (bin/<sys>/<arch>/<minor>/<filename>, nightlies at
// bin/<sys>/<arch>/<latest_filename>).
func (m *Mirrorer) localPath(outDir string, rel version.ResolvedRelease) (string, error) {
	pctx, err := placeholder.NewContext(rel.Version, rel.System, rel.Arch)
	if err != nil {
		return "", err
	}
	tmpl := registry.DefaultFilenameTemplate
	pathTmpl := "bin/$sys/$arch/$minor_version/$filename"
	if rel.IsNightly() {
		tmpl = registry.DefaultLatestFilenameTemplate
		pathTmpl = "bin/$sys/$arch/$latest_filename"
	}
	if pctx.Filename, err = placeholder.Render(tmpl, pctx); err != nil {
		return "", err
	}
	pctx.LatestFilename = pctx.Filename
	relPath, err := placeholder.Render(pathTmpl, pctx)
	if err != nil {
		return "", err
	}
	return safety.JoinUnder(outDir, relPath)
}

// matchesSeries reports whether raw belongs to one of the configured
// version lines. No configured series means everything matches.
func matchesSeries(series []version.Specifier, raw string) bool {
	if len(series) == 0 {
		return true
	}
	for _, s := range series {
		if s.MatchesVersion(raw) {
			return true
		}
	}
	return false
}
