// Package placeholder renders upstream URL templates. Templates contain
// $name tokens drawn from a closed vocabulary; values are derived
// deterministically from a (version, system, architecture) triple.
package placeholder

import (
	"fmt"
	"sort"
	"strings"
)

// System identifies a target operating system.
type System string

const (
	Windows System = "windows"
	MacOS   System = "macos"
	Linux   System = "linux"
	FreeBSD System = "freebsd"
)

// Arch identifies a target CPU architecture.
type Arch string

const (
	I686  Arch = "i686"
	X8664 Arch = "x86_64"
	ARMv7 Arch = "ARMv7"
	ARMv8 Arch = "ARMv8"
)

// LatestVersion is the sentinel for a moving nightly target. It passes
// through every version-derived placeholder unchanged.
const LatestVersion = "latest"

// Systems lists all supported systems in a stable order.
func Systems() []System {
	return []System{Windows, MacOS, Linux, FreeBSD}
}

// Arches lists all supported architectures in a stable order.
func Arches() []Arch {
	return []Arch{I686, X8664, ARMv7, ARMv8}
}

// ParseSystem validates a system name.
func ParseSystem(s string) (System, error) {
	switch System(strings.ToLower(s)) {
	case Windows, MacOS, Linux, FreeBSD:
		return System(strings.ToLower(s)), nil
	}
	return "", fmt.Errorf("unknown system %q (expected windows, macos, linux or freebsd)", s)
}

// ParseArch validates an architecture name, accepting common aliases.
func ParseArch(s string) (Arch, error) {
	switch strings.ToLower(s) {
	case "i686", "x86", "386", "i386":
		return I686, nil
	case "x86_64", "x64", "amd64":
		return X8664, nil
	case "armv7", "armv7l", "arm":
		return ARMv7, nil
	case "armv8", "aarch64", "arm64":
		return ARMv8, nil
	}
	return "", fmt.Errorf("unknown architecture %q (expected i686, x86_64, ARMv7 or ARMv8)", s)
}

// ValidRelease reports whether upstreams publish artifacts for the
// combination at all.
func ValidRelease(version string, system System, arch Arch) bool {
	if system == Windows && arch != I686 && arch != X8664 {
		return false
	}
	if (system == MacOS || system == FreeBSD) && arch != X8664 {
		return false
	}
	if version == LatestVersion {
		if arch != I686 && arch != X8664 {
			return false
		}
		if system == FreeBSD {
			return false
		}
	}
	return true
}

// Context holds one value per recognized placeholder. A fixed struct rather
// than a map: unknown keys cannot exist, so template problems surface at
// registry load time instead of deep inside a download attempt.
type Context struct {
	System       string
	Sys          string
	OS           string
	Architecture string
	Arch         string
	OSArch       string
	OSBit        string
	Bit          string
	Extension    string

	Version       string
	MajorVersion  string
	MinorVersion  string
	PatchVersion  string
	VMajorVersion string
	VMinorVersion string
	VPatchVersion string

	// Filename and LatestFilename are themselves rendered from nested
	// templates before the context is used on a URL template.
	Filename       string
	LatestFilename string
}

var sysRules = map[System]string{Windows: "winnt"}

var osRules = map[System]string{Windows: "win"}

var archRules = map[Arch]string{
	I686:  "x86",
	X8664: "x64",
	ARMv8: "aarch64",
	ARMv7: "armv7l",
}

var osarchRules = map[string]string{
	"win-i686":     "win32",
	"win-x86_64":   "win64",
	"macos-x86_64": "mac64",
	"linux-ARMv7":  "linux-armv7l",
	"linux-ARMv8":  "linux-aarch64",
}

var osbitRules = map[string]string{
	"macos64": "mac64",
}

var bitRules = map[Arch]string{
	I686:  "32",
	X8664: "64",
	ARMv8: "64",
	ARMv7: "32",
}

var extensionRules = map[System]string{
	Windows: "exe",
	Linux:   "tar.gz",
	MacOS:   "dmg",
	FreeBSD: "tar.gz",
}

// NewContext derives the full placeholder mapping for a concrete release.
// It rejects (system, architecture) combinations no upstream publishes.
func NewContext(version string, system System, arch Arch) (*Context, error) {
	if !ValidRelease(version, system, arch) {
		return nil, fmt.Errorf("no %s release is published for %s/%s", version, system, arch)
	}

	osName := string(system)
	if v, ok := osRules[system]; ok {
		osName = v
	}
	sysName := string(system)
	if v, ok := sysRules[system]; ok {
		sysName = v
	}
	archName := string(arch)
	if v, ok := archRules[arch]; ok {
		archName = v
	}
	osarch := osName + "-" + string(arch)
	if v, ok := osarchRules[osName+"-"+string(arch)]; ok {
		osarch = v
	}
	bit := bitRules[arch]
	osbit := osName + bit
	if v, ok := osbitRules[osbit]; ok {
		osbit = v
	}

	c := &Context{
		System:       string(system),
		Sys:          sysName,
		OS:           osName,
		Architecture: string(arch),
		Arch:         archName,
		OSArch:       osarch,
		OSBit:        osbit,
		Bit:          bit,
		Extension:    extensionRules[system],
	}
	c.setVersion(version)
	return c, nil
}

// setVersion fills the version-derived placeholders. The latest sentinel
// (and any other non-numeric identifier) passes through unchanged.
func (c *Context) setVersion(version string) {
	c.Version = version

	plain := strings.TrimPrefix(version, "v")
	parts := strings.Split(plain, ".")
	major := parts[0]
	minor := plain
	if len(parts) >= 2 {
		minor = parts[0] + "." + parts[1]
	}
	patch := strings.SplitN(plain, "-", 2)[0]

	c.MajorVersion = major
	c.MinorVersion = minor
	c.PatchVersion = patch

	if version == LatestVersion {
		c.VMajorVersion = version
		c.VMinorVersion = version
		c.VPatchVersion = version
		return
	}
	c.VMajorVersion = "v" + major
	c.VMinorVersion = "v" + minor
	c.VPatchVersion = "v" + patch
}

// value returns the rendered value for a placeholder name.
func (c *Context) value(name string) (string, bool) {
	switch name {
	case "system":
		return c.System, true
	case "sys":
		return c.Sys, true
	case "os":
		return c.OS, true
	case "architecture":
		return c.Architecture, true
	case "arch":
		return c.Arch, true
	case "osarch":
		return c.OSArch, true
	case "osbit":
		return c.OSBit, true
	case "bit":
		return c.Bit, true
	case "extension":
		return c.Extension, true
	case "version":
		return c.Version, true
	case "major_version":
		return c.MajorVersion, true
	case "minor_version":
		return c.MinorVersion, true
	case "patch_version":
		return c.PatchVersion, true
	case "vmajor_version":
		return c.VMajorVersion, true
	case "vminor_version":
		return c.VMinorVersion, true
	case "vpatch_version":
		return c.VPatchVersion, true
	case "filename":
		return c.Filename, true
	case "latest_filename":
		return c.LatestFilename, true
	}
	return "", false
}

// names is the recognized vocabulary sorted longest-first so that template
// scanning always takes the longest match ($osarch is never read as $os).
var names = func() []string {
	n := []string{
		"system", "sys", "os",
		"architecture", "arch", "osarch", "osbit", "bit",
		"extension", "filename", "latest_filename",
		"patch_version", "minor_version", "major_version", "version",
		"vpatch_version", "vminor_version", "vmajor_version",
	}
	sort.Slice(n, func(i, j int) bool { return len(n[i]) > len(n[j]) })
	return n
}()

// Recognized reports whether name belongs to the placeholder vocabulary.
func Recognized(name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// UnknownPlaceholderError reports a $token outside the recognized vocabulary.
type UnknownPlaceholderError struct {
	Template string
	Token    string
}

func (e *UnknownPlaceholderError) Error() string {
	return fmt.Sprintf("template %q references unknown placeholder $%s", e.Template, e.Token)
}

// Render substitutes every $name token in template with its context value.
// Identical inputs always produce identical output.
func Render(template string, ctx *Context) (string, error) {
	var b strings.Builder
	rest := template
	for {
		i := strings.IndexByte(rest, '$')
		if i < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		b.WriteString(rest[:i])
		rest = rest[i+1:]

		name := matchName(rest)
		if name == "" {
			tok := tokenAt(rest)
			if tok == "" {
				// A bare trailing or punctuation-adjacent $ is literal.
				b.WriteByte('$')
				continue
			}
			return "", &UnknownPlaceholderError{Template: template, Token: tok}
		}
		v, _ := ctx.value(name)
		b.WriteString(v)
		rest = rest[len(name):]
	}
}

// Tokens returns every $name token found in template, unknown ones included.
// Registry validation uses it to reject bad templates before any network
// activity.
func Tokens(template string) []string {
	var toks []string
	rest := template
	for {
		i := strings.IndexByte(rest, '$')
		if i < 0 {
			return toks
		}
		rest = rest[i+1:]
		if name := matchName(rest); name != "" {
			toks = append(toks, name)
			rest = rest[len(name):]
			continue
		}
		if tok := tokenAt(rest); tok != "" {
			toks = append(toks, tok)
			rest = rest[len(tok):]
		}
	}
}

// matchName returns the longest recognized placeholder name prefixing s,
// or "" when none matches.
func matchName(s string) string {
	for _, n := range names {
		if strings.HasPrefix(s, n) {
			return n
		}
	}
	return ""
}

// tokenAt extracts the identifier run at the start of s.
func tokenAt(s string) string {
	end := 0
	for end < len(s) {
		ch := s[end]
		if ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') {
			end++
			continue
		}
		break
	}
	return s[:end]
}
