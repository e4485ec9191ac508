package valueobjects

import (
	"regexp"
	"strings"

	goversion "github.com/hashicorp/go-version"

	pkgerrors "catalog/pkg/errors"
)

// semverPattern is stricter than go-version's parser: the catalog requires
// the full MAJOR.MINOR.PATCH form with an optional pre-release tag.
var semverPattern = regexp.MustCompile(`^\d+\.\d+\.\d+(-[0-9A-Za-z.-]+)?$`)

// Version is the semantic version of a resource
type Version struct {
	raw    string
	parsed *goversion.Version
}

// NewVersion validates and creates a semantic version
func NewVersion(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Version{}, pkgerrors.NewInvalid("version cannot be empty")
	}
	if !semverPattern.MatchString(s) {
		return Version{}, pkgerrors.NewInvalidf("version %q is not a semantic version (MAJOR.MINOR.PATCH[-tag])", s)
	}
	v, err := goversion.NewSemver(s)
	if err != nil {
		return Version{}, pkgerrors.NewInvalidf("version %q is not a semantic version: %v", s, err)
	}
	return Version{raw: s, parsed: v}, nil
}

// MustVersion creates a version and panics on invalid input. Test helper.
func MustVersion(s string) Version {
	v, err := NewVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the original version string
func (v Version) String() string {
	return v.raw
}

// IsZero checks if the version is unset
func (v Version) IsZero() bool {
	return v.raw == ""
}

// LessThan compares two versions by semantic version ordering
func (v Version) LessThan(other Version) bool {
	if v.parsed == nil || other.parsed == nil {
		return false
	}
	return v.parsed.LessThan(other.parsed)
}
