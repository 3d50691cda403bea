package mirror

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/julget/julget/internal/registry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func upstreamFor(name, versionsURL string) registry.UpstreamSource {
	return registry.UpstreamSource{
		Name:        name,
		URLTemplate: "https://example.test/bin/$sys/$arch/$minor_version/$filename",
		VersionsURL: versionsURL,
	}
}

func TestRankOrdersByLatency(t *testing.T) {
	fast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	t.Cleanup(fast.Close)
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	t.Cleanup(slow.Close)
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadURL := dead.URL
	dead.Close()

	s := NewSelector(testLogger())
	ranking := s.Rank(context.Background(), []registry.UpstreamSource{
		upstreamFor("Dead", deadURL+"/bin/versions.json"),
		upstreamFor("Slow", slow.URL+"/bin/versions.json"),
		upstreamFor("Fast", fast.URL+"/bin/versions.json"),
	})

	if len(ranking) != 3 {
		t.Fatalf("ranking has %d entries, want 3", len(ranking))
	}
	wantOrder := []string{"Fast", "Slow", "Dead"}
	for i, want := range wantOrder {
		if ranking[i].Upstream.Name != want {
			t.Errorf("ranking[%d] = %q, want %q", i, ranking[i].Upstream.Name, want)
		}
	}
	if !ranking[0].Reachable() || !ranking[1].Reachable() {
		t.Error("fast and slow mirrors should be reachable")
	}
	if ranking[2].Reachable() {
		t.Error("dead mirror should be unreachable")
	}
}

func TestRankKeepsUnreachableUpstreams(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadURL := dead.URL
	dead.Close()

	s := NewSelector(testLogger())
	ranking := s.Rank(context.Background(), []registry.UpstreamSource{
		upstreamFor("A", deadURL+"/a.json"),
		upstreamFor("B", deadURL+"/b.json"),
	})

	// Every probe fails, but no upstream is dropped and declaration order
	// survives the stable sort.
	ups := ranking.Upstreams()
	if len(ups) != 2 || ups[0].Name != "A" || ups[1].Name != "B" {
		t.Errorf("upstreams = %v", ups)
	}
}

func TestRankSlowProbeBoundedByTimeout(t *testing.T) {
	stuck := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	t.Cleanup(stuck.Close)

	s := NewSelector(testLogger())
	s.timeout = 200 * time.Millisecond

	start := time.Now()
	ranking := s.Rank(context.Background(), []registry.UpstreamSource{
		upstreamFor("Stuck", stuck.URL+"/bin/versions.json"),
	})
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Rank took %v despite a %v probe timeout", elapsed, s.timeout)
	}
	if ranking[0].Reachable() {
		t.Error("stuck mirror should be marked unreachable")
	}
}
