package version

import (
	"errors"
	"testing"
)

func TestParseSpecifier(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		nightly bool
		wantErr bool
	}{
		{in: "", want: "stable"},
		{in: "stable", want: "stable"},
		{in: "nightly", want: "nightly", nightly: true},
		{in: "latest", want: "nightly", nightly: true},
		{in: "1", want: "1"},
		{in: "1.3", want: "1.3"},
		{in: "1.3.1", want: "1.3.1"},
		{in: "v1.3.1", want: "1.3.1"},
		{in: "1.4.0-rc1", want: "1.4.0-rc1"},
		{in: "abc", wantErr: true},
		{in: "1.x", wantErr: true},
		{in: "1.2.3.4", wantErr: true},
	}
	for _, c := range cases {
		spec, err := ParseSpecifier(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseSpecifier(%q) should fail", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseSpecifier(%q) failed: %v", c.in, err)
			continue
		}
		if spec.String() != c.want {
			t.Errorf("ParseSpecifier(%q).String() = %q, want %q", c.in, spec.String(), c.want)
		}
		if spec.IsNightly() != c.nightly {
			t.Errorf("ParseSpecifier(%q).IsNightly() = %v", c.in, spec.IsNightly())
		}
	}
}

func TestSelectBestPartial(t *testing.T) {
	published := []string{"1.3.0", "1.3.1", "1.3.0-rc1", "1.4.0"}

	spec, err := ParseSpecifier("1.3")
	if err != nil {
		t.Fatalf("ParseSpecifier failed: %v", err)
	}
	got, err := spec.selectBest(published)
	if err != nil {
		t.Fatalf("selectBest failed: %v", err)
	}
	if got != "1.3.1" {
		t.Errorf("selectBest = %q, want 1.3.1", got)
	}
}

func TestSelectBestStableSkipsPrereleases(t *testing.T) {
	spec, err := ParseSpecifier("stable")
	if err != nil {
		t.Fatalf("ParseSpecifier failed: %v", err)
	}
	got, err := spec.selectBest([]string{"1.3.1", "1.4.0-rc1", "1.4.0-rc2"})
	if err != nil {
		t.Fatalf("selectBest failed: %v", err)
	}
	if got != "1.3.1" {
		t.Errorf("selectBest = %q, want 1.3.1", got)
	}
}

func TestSelectBestMajorIncludesPrereleases(t *testing.T) {
	// A partial specifier admits prereleases, but ordering still prefers
	// the release over its own candidates.
	spec, err := ParseSpecifier("1.4")
	if err != nil {
		t.Fatalf("ParseSpecifier failed: %v", err)
	}
	got, err := spec.selectBest([]string{"1.3.1", "1.4.0-rc1"})
	if err != nil {
		t.Fatalf("selectBest failed: %v", err)
	}
	if got != "1.4.0-rc1" {
		t.Errorf("selectBest = %q, want 1.4.0-rc1", got)
	}

	got, err = spec.selectBest([]string{"1.4.0-rc1", "1.4.0"})
	if err != nil {
		t.Fatalf("selectBest failed: %v", err)
	}
	if got != "1.4.0" {
		t.Errorf("selectBest = %q, want 1.4.0", got)
	}
}

func TestSelectBestExactPrerelease(t *testing.T) {
	spec, err := ParseSpecifier("1.4.0-rc1")
	if err != nil {
		t.Fatalf("ParseSpecifier failed: %v", err)
	}
	got, err := spec.selectBest([]string{"1.4.0", "1.4.0-rc1", "1.4.0-rc2"})
	if err != nil {
		t.Fatalf("selectBest failed: %v", err)
	}
	if got != "1.4.0-rc1" {
		t.Errorf("selectBest = %q, want 1.4.0-rc1", got)
	}
}

func TestSelectBestNoMatch(t *testing.T) {
	spec, err := ParseSpecifier("2.0")
	if err != nil {
		t.Fatalf("ParseSpecifier failed: %v", err)
	}
	_, err = spec.selectBest([]string{"1.3.1", "1.4.0"})
	var noMatch *NoMatchingVersionError
	if !errors.As(err, &noMatch) {
		t.Fatalf("expected NoMatchingVersionError, got %v", err)
	}
}

func TestMatchesVersion(t *testing.T) {
	spec, err := ParseSpecifier("1.3")
	if err != nil {
		t.Fatalf("ParseSpecifier failed: %v", err)
	}
	if !spec.MatchesVersion("v1.3.1") {
		t.Error("v1.3.1 should match 1.3")
	}
	if spec.MatchesVersion("1.4.0") {
		t.Error("1.4.0 should not match 1.3")
	}
	if spec.MatchesVersion("not-a-version") {
		t.Error("garbage should not match")
	}
}

func TestNormalize(t *testing.T) {
	if got, ok := Normalize("v1.3.1"); !ok || got != "1.3.1" {
		t.Errorf("Normalize(v1.3.1) = %q, %v", got, ok)
	}
	if _, ok := Normalize("latest"); ok {
		t.Error("Normalize(latest) should report false")
	}
}
