package engine

import (
	"fmt"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// Version is a parsed engine version.
type Version struct {
	Major int    `json:"major"`
	Minor int    `json:"minor"`
	Patch int    `json:"patch"`
	Raw   string `json:"raw"`
}

func (v Version) String() string {
	if v.Raw != "" {
		return v.Raw
	}
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Oldest engine versions the tool is known to work against.
var minimumVersions = map[Kind]string{
	KindDocker: "20.10.0",
	KindPodman: "4.0.0",
}

// ParseVersion parses an engine-reported version string. Pre-release and
// build suffixes are tolerated ("24.0.7-ce" parses as 24.0.7).
func ParseVersion(raw string) (Version, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "v")
	parsed, err := goversion.NewVersion(trimmed)
	if err != nil {
		return Version{Raw: raw}, fmt.Errorf("parse version %q: %w", raw, err)
	}

	v := Version{Raw: raw}
	segs := parsed.Segments()
	if len(segs) > 0 {
		v.Major = segs[0]
	}
	if len(segs) > 1 {
		v.Minor = segs[1]
	}
	if len(segs) > 2 {
		v.Patch = segs[2]
	}
	return v, nil
}

// BelowMinimum reports whether v is older than the minimum supported version
// for the given engine kind. Unparseable versions are not flagged.
func BelowMinimum(kind Kind, v Version) bool {
	min, ok := minimumVersions[kind]
	if !ok {
		return false
	}
	parsed, err := goversion.NewVersion(strings.TrimPrefix(strings.TrimSpace(v.Raw), "v"))
	if err != nil {
		return false
	}
	return parsed.LessThan(goversion.Must(goversion.NewVersion(min)))
}
