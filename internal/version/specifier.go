// Package version resolves a user-supplied, possibly partial version
// specifier into a concrete published release by consulting upstream
// version listings.
package version

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/julget/julget/internal/placeholder"
)

type specKind int

const (
	// kindStable matches every stable release (no prerelease tag).
	kindStable specKind = iota
	// kindNightly is the moving nightly target; it resolves without any
	// upstream query.
	kindNightly
	// kindMajor matches releases sharing the requested major component.
	kindMajor
	// kindMajorMinor matches releases sharing major and minor.
	kindMajorMinor
	// kindExact matches a single fully-qualified release.
	kindExact
)

// Specifier is a parsed version request. Immutable after ParseSpecifier.
type Specifier struct {
	kind  specKind
	major uint64
	minor uint64
	exact *semver.Version
	raw   string
}

// ParseSpecifier interprets user input:
//
//	""/"stable"      newest stable release
//	"nightly"/"latest"  the nightly moving target
//	"1"              newest release in the 1.x line
//	"1.3"            newest release in the 1.3 line
//	"1.4.0-rc1"      exactly that release
func ParseSpecifier(s string) (Specifier, error) {
	raw := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "v"))
	switch raw {
	case "", "stable":
		return Specifier{kind: kindStable, raw: raw}, nil
	case "nightly", "latest":
		return Specifier{kind: kindNightly, raw: raw}, nil
	}

	if v, err := semver.StrictNewVersion(raw); err == nil {
		return Specifier{kind: kindExact, exact: v, raw: raw}, nil
	}

	parts := strings.Split(raw, ".")
	nums := make([]uint64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return Specifier{}, fmt.Errorf("invalid version specifier %q", s)
		}
		nums = append(nums, n)
	}
	switch len(nums) {
	case 1:
		return Specifier{kind: kindMajor, major: nums[0], raw: raw}, nil
	case 2:
		return Specifier{kind: kindMajorMinor, major: nums[0], minor: nums[1], raw: raw}, nil
	}
	return Specifier{}, fmt.Errorf("invalid version specifier %q", s)
}

// IsNightly reports whether the specifier targets the nightly build.
func (s Specifier) IsNightly() bool { return s.kind == kindNightly }

func (s Specifier) String() string {
	switch s.kind {
	case kindStable:
		return "stable"
	case kindNightly:
		return "nightly"
	}
	return s.raw
}

// matches reports whether a published release satisfies the specifier.
func (s Specifier) matches(v *semver.Version) bool {
	switch s.kind {
	case kindStable:
		return v.Prerelease() == ""
	case kindMajor:
		return v.Major() == s.major
	case kindMajorMinor:
		return v.Major() == s.major && v.Minor() == s.minor
	case kindExact:
		return v.Equal(s.exact) && v.Prerelease() == s.exact.Prerelease()
	}
	return false
}

// MatchesVersion reports whether a raw published identifier satisfies the
// specifier. Used by the mirror loop to restrict the catalog to configured
// version series.
func (s Specifier) MatchesVersion(raw string) bool {
	v, err := semver.StrictNewVersion(strings.TrimPrefix(raw, "v"))
	if err != nil {
		return false
	}
	return s.matches(v)
}

// Normalize canonicalizes a published identifier ("v1.3.1" -> "1.3.1").
// The second return is false for identifiers that are not versions.
func Normalize(raw string) (string, bool) {
	v, err := semver.StrictNewVersion(strings.TrimPrefix(raw, "v"))
	if err != nil {
		return "", false
	}
	return v.String(), true
}

// ResolvedRelease is a fully concrete (version, system, architecture)
// triple. Version is either an exact identifier like "1.3.1" or the
// nightly sentinel.
type ResolvedRelease struct {
	Version string
	System  placeholder.System
	Arch    placeholder.Arch
}

// IsNightly reports whether the release is the nightly moving target.
func (r ResolvedRelease) IsNightly() bool {
	return r.Version == placeholder.LatestVersion
}

func (r ResolvedRelease) String() string {
	return fmt.Sprintf("%s/%s/%s", r.Version, r.System, r.Arch)
}

// NoMatchingVersionError reports a specifier that matched nothing an
// upstream publishes. It is a user-facing failure, never retried.
type NoMatchingVersionError struct {
	Specifier string
}

func (e *NoMatchingVersionError) Error() string {
	return fmt.Sprintf("no published release matches %q", e.Specifier)
}

// selectBest narrows the published identifiers to the highest release
// satisfying the specifier. Releases with a prerelease tag sort strictly
// below the same version without one.
func (s Specifier) selectBest(published []string) (string, error) {
	var best *semver.Version
	for _, raw := range published {
		v, err := semver.StrictNewVersion(strings.TrimPrefix(raw, "v"))
		if err != nil {
			continue
		}
		if !s.matches(v) {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best = v
		}
	}
	if best == nil {
		return "", &NoMatchingVersionError{Specifier: s.String()}
	}
	return best.String(), nil
}
