package registry

import (
	"errors"
	"testing"
)

const publicDoc = `{
  "upstream": [
    {
      "name": "Official",
      "urls": "https://julialang-s3.julialang.org/bin/$sys/$arch/$minor_version/$filename",
      "latest_urls": "https://julialangnightlies-s3.julialang.org/bin/$sys/$arch/$latest_filename"
    },
    {
      "name": "Alpha",
      "urls": "https://alpha.test/bin/$sys/$arch/$minor_version/$filename"
    }
  ]
}`

func TestMergePublicOnly(t *testing.T) {
	reg, err := Merge([]byte(publicDoc), nil)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if reg.Len() != 2 {
		t.Fatalf("Len = %d, want 2", reg.Len())
	}
	ups := reg.Upstreams()
	if ups[0].Name != "Official" || ups[1].Name != "Alpha" {
		t.Errorf("order = %q, %q", ups[0].Name, ups[1].Name)
	}
}

func TestMergeReplaceByName(t *testing.T) {
	userDoc := `{
	  "upstream": [
	    {
	      "name": "Alpha",
	      "urls": "https://alpha.internal/bin/$sys/$arch/$minor_version/$filename"
	    },
	    {
	      "name": "Beta",
	      "urls": "https://beta.test/bin/$sys/$arch/$minor_version/$filename"
	    }
	  ]
	}`
	reg, err := Merge([]byte(publicDoc), []byte(userDoc))
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if reg.Len() != 3 {
		t.Fatalf("Len = %d, want 3", reg.Len())
	}

	// Replacement keeps the public entry's position; new entries append.
	ups := reg.Upstreams()
	wantOrder := []string{"Official", "Alpha", "Beta"}
	for i, want := range wantOrder {
		if ups[i].Name != want {
			t.Errorf("upstream[%d] = %q, want %q", i, ups[i].Name, want)
		}
	}

	alpha, ok := reg.Get("Alpha")
	if !ok {
		t.Fatal("Alpha not found")
	}
	if alpha.URLTemplate != "https://alpha.internal/bin/$sys/$arch/$minor_version/$filename" {
		t.Errorf("Alpha was not replaced: %q", alpha.URLTemplate)
	}
}

func TestMergeDuplicateNameWithinFile(t *testing.T) {
	doc := `{
	  "upstream": [
	    {"name": "Dup", "urls": "https://a.test/$filename"},
	    {"name": "Dup", "urls": "https://b.test/$filename"}
	  ]
	}`
	_, err := Merge([]byte(doc), nil)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if cfgErr.Upstream != "Dup" {
		t.Errorf("Upstream = %q, want Dup", cfgErr.Upstream)
	}
}

func TestMergeRejectsUnknownPlaceholder(t *testing.T) {
	doc := `{
	  "upstream": [
	    {"name": "Bad", "urls": "https://bad.test/bin/$sys/$totally_made_up/$filename"}
	  ]
	}`
	_, err := Merge([]byte(doc), nil)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestMergeRejectsMissingFields(t *testing.T) {
	for name, doc := range map[string]string{
		"missing name": `{"upstream": [{"urls": "https://x.test/$filename"}]}`,
		"missing urls": `{"upstream": [{"name": "NoURL"}]}`,
	} {
		if _, err := Merge([]byte(doc), nil); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestMergeRejectsSelfReferentialFilename(t *testing.T) {
	doc := `{
	  "upstream": [
	    {
	      "name": "Loop",
	      "urls": "https://loop.test/bin/$filename",
	      "filename": "julia-$filename"
	    }
	  ]
	}`
	if _, err := Merge([]byte(doc), nil); err == nil {
		t.Error("expected error for self-referential filename template")
	}
}

func TestFilenameDefaults(t *testing.T) {
	u := UpstreamSource{Name: "X", URLTemplate: "https://x.test/$filename"}
	if u.Filename() != DefaultFilenameTemplate {
		t.Errorf("Filename = %q", u.Filename())
	}
	if u.LatestFilename() != DefaultLatestFilenameTemplate {
		t.Errorf("LatestFilename = %q", u.LatestFilename())
	}

	u.FilenameTemplate = "custom-$version.$extension"
	if u.Filename() != "custom-$version.$extension" {
		t.Errorf("Filename = %q", u.Filename())
	}
}

func TestVersionsEndpoint(t *testing.T) {
	u := UpstreamSource{
		Name:        "X",
		URLTemplate: "https://mirror.test/julia/bin/$sys/$arch/$minor_version/$filename",
	}
	got, err := u.VersionsEndpoint()
	if err != nil {
		t.Fatalf("VersionsEndpoint failed: %v", err)
	}
	if got != "https://mirror.test/bin/versions.json" {
		t.Errorf("VersionsEndpoint = %q", got)
	}

	u.VersionsURL = "https://mirror.test/custom/versions.json"
	got, err = u.VersionsEndpoint()
	if err != nil {
		t.Fatalf("VersionsEndpoint failed: %v", err)
	}
	if got != u.VersionsURL {
		t.Errorf("VersionsEndpoint = %q, want declared override", got)
	}
}

func TestLoadEmbeddedSources(t *testing.T) {
	reg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if reg.Len() == 0 {
		t.Fatal("embedded source list is empty")
	}
	if _, ok := reg.Get("Official"); !ok {
		t.Error("embedded list is missing the Official upstream")
	}
}
