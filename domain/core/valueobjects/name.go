package valueobjects

import (
	"regexp"
	"strings"

	pkgerrors "catalog/pkg/errors"
)

var (
	namePattern      = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,62}[A-Za-z0-9]$`)
	namespacePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,62}[a-z0-9]$`)
)

// Name is the human-readable identifier of a resource.
// It must start and end with an alphanumeric character, may contain
// dots, underscores and dashes in between, and is at most 64 characters.
type Name struct {
	value string
}

// NewName validates and creates a resource name
func NewName(s string) (Name, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Name{}, pkgerrors.NewInvalid("name cannot be empty")
	}
	if !namePattern.MatchString(s) {
		return Name{}, pkgerrors.NewInvalidf("name %q does not match required pattern", s)
	}
	return Name{value: s}, nil
}

// String returns the string representation
func (n Name) String() string {
	return n.value
}

// IsZero checks if the name is unset
func (n Name) IsZero() bool {
	return n.value == ""
}

// Namespace optionally scopes a resource name. Lowercase DNS-label style.
type Namespace struct {
	value string
}

// NewNamespace validates and creates a namespace. An empty string yields the
// zero Namespace, meaning "no namespace".
func NewNamespace(s string) (Namespace, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Namespace{}, nil
	}
	if !namespacePattern.MatchString(s) {
		return Namespace{}, pkgerrors.NewInvalidf("namespace %q does not match required pattern", s)
	}
	return Namespace{value: s}, nil
}

// String returns the string representation
func (n Namespace) String() string {
	return n.value
}

// IsZero reports whether the namespace is absent
func (n Namespace) IsZero() bool {
	return n.value == ""
}
