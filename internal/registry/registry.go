// Package registry loads and merges the list of upstream servers that host
// release artifacts. A built-in public list ships with the binary; a user
// override file can replace or extend its entries.
package registry

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/julget/julget/internal/placeholder"
)

// Default filename templates, used when an upstream does not declare its own.
const (
	DefaultFilenameTemplate       = "julia-$version-$osarch.$extension"
	DefaultLatestFilenameTemplate = "julia-latest-$osbit.$extension"
)

//go:embed sources.json
var publicSources []byte

// UpstreamSource describes one registered upstream. Identity is Name;
// entries are immutable once loaded.
type UpstreamSource struct {
	Name                   string `json:"name"`
	URLTemplate            string `json:"urls"`
	LatestURLTemplate      string `json:"latest_urls"`
	FilenameTemplate       string `json:"filename,omitempty"`
	LatestFilenameTemplate string `json:"latest_filename,omitempty"`
	VersionsURL            string `json:"versions_url,omitempty"`
}

// Filename returns the upstream's artifact filename template.
func (u UpstreamSource) Filename() string {
	if u.FilenameTemplate != "" {
		return u.FilenameTemplate
	}
	return DefaultFilenameTemplate
}

// LatestFilename returns the upstream's nightly filename template.
func (u UpstreamSource) LatestFilename() string {
	if u.LatestFilenameTemplate != "" {
		return u.LatestFilenameTemplate
	}
	return DefaultLatestFilenameTemplate
}

// VersionsEndpoint returns the URL of the upstream's version listing. When
// the registry entry does not declare one, it is derived from the host of
// the urls template: every mirror replicates the /bin tree, so the listing
// lives at /bin/versions.json.
func (u UpstreamSource) VersionsEndpoint() (string, error) {
	if u.VersionsURL != "" {
		return u.VersionsURL, nil
	}
	parsed, err := url.Parse(u.URLTemplate)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", &ConfigError{Upstream: u.Name, Reason: fmt.Sprintf("cannot derive versions endpoint from urls template %q", u.URLTemplate)}
	}
	return parsed.Scheme + "://" + parsed.Host + "/bin/versions.json", nil
}

// ConfigError reports a malformed or inconsistent registry entry. It is
// fatal: nothing can be fallen back to when the registry itself is broken.
type ConfigError struct {
	Upstream string
	Reason   string
}

func (e *ConfigError) Error() string {
	if e.Upstream == "" {
		return "registry config: " + e.Reason
	}
	return fmt.Sprintf("registry config: upstream %q: %s", e.Upstream, e.Reason)
}

// Registry is the merged, validated upstream set. Immutable after Load;
// callers rank and iterate it per request.
type Registry struct {
	upstreams []UpstreamSource
}

type sourcesFile struct {
	Upstream []UpstreamSource `json:"upstream"`
}

// Load builds the registry from the embedded public list, merged with the
// optional user override file at userPath (empty path means no override).
func Load(userPath string) (*Registry, error) {
	var user []byte
	if userPath != "" {
		data, err := os.ReadFile(userPath)
		if err != nil {
			return nil, fmt.Errorf("reading upstream override file: %w", err)
		}
		user = data
	}
	return Merge(publicSources, user)
}

// Merge parses and merges two registry documents. A user entry with the
// same name as a public entry replaces it entirely; user-only entries are
// appended in file order. No network I/O happens here.
func Merge(public, user []byte) (*Registry, error) {
	pub, err := parseSources(public)
	if err != nil {
		return nil, err
	}

	merged := make([]UpstreamSource, len(pub))
	copy(merged, pub)
	index := make(map[string]int, len(merged))
	for i, u := range merged {
		index[u.Name] = i
	}

	if len(user) > 0 {
		usr, err := parseSources(user)
		if err != nil {
			return nil, err
		}
		for _, u := range usr {
			if i, ok := index[u.Name]; ok {
				merged[i] = u
				continue
			}
			index[u.Name] = len(merged)
			merged = append(merged, u)
		}
	}

	for _, u := range merged {
		if err := validate(u); err != nil {
			return nil, err
		}
	}
	return &Registry{upstreams: merged}, nil
}

// Upstreams returns the merged entries in declaration order. The order is
// the stable tie-break used when ranking mirrors.
func (r *Registry) Upstreams() []UpstreamSource {
	out := make([]UpstreamSource, len(r.upstreams))
	copy(out, r.upstreams)
	return out
}

// Get looks up an upstream by name.
func (r *Registry) Get(name string) (UpstreamSource, bool) {
	for _, u := range r.upstreams {
		if u.Name == name {
			return u, true
		}
	}
	return UpstreamSource{}, false
}

// Len returns the number of registered upstreams.
func (r *Registry) Len() int {
	return len(r.upstreams)
}

func parseSources(data []byte) ([]UpstreamSource, error) {
	var f sourcesFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, &ConfigError{Reason: "parsing sources file: " + err.Error()}
	}
	seen := make(map[string]bool, len(f.Upstream))
	for _, u := range f.Upstream {
		if seen[u.Name] {
			return nil, &ConfigError{Upstream: u.Name, Reason: "duplicate name within one sources file"}
		}
		seen[u.Name] = true
	}
	return f.Upstream, nil
}

// validate checks the entry before any network activity: required fields
// present and every template token inside the recognized vocabulary.
func validate(u UpstreamSource) error {
	if u.Name == "" {
		return &ConfigError{Reason: "entry is missing name"}
	}
	if u.URLTemplate == "" {
		return &ConfigError{Upstream: u.Name, Reason: "entry is missing urls template"}
	}
	templates := map[string]string{
		"urls":            u.URLTemplate,
		"latest_urls":     u.LatestURLTemplate,
		"filename":        u.Filename(),
		"latest_filename": u.LatestFilename(),
	}
	for field, tmpl := range templates {
		for _, tok := range placeholder.Tokens(tmpl) {
			if !placeholder.Recognized(tok) {
				return &ConfigError{Upstream: u.Name, Reason: fmt.Sprintf("%s references unrecognized placeholder $%s", field, tok)}
			}
			// Filename templates are rendered first and substituted as plain
			// values; letting them reference themselves would never terminate.
			if strings.HasSuffix(field, "filename") && (tok == "filename" || tok == "latest_filename") {
				return &ConfigError{Upstream: u.Name, Reason: fmt.Sprintf("%s template may not reference $%s", field, tok)}
			}
		}
	}
	return nil
}
