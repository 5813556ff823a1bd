package api

import (
	"fmt"
	"regexp"
	"strings"
)

var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.\-]*$`)

// Metadata is the class-level description of a plug-in. It never changes
// between operations.
type Metadata struct {
	Name  string
	Kind  Kind
	Label string
	Icon  string
	Color string
	Order int

	// Priority orders thumbnail resolvers, lowest first.
	Priority int

	// Families and Representations are the two compatibility axes of a
	// Loader. "*" matches anything on its axis.
	Families        []string
	Representations []string

	// Family is the single family a Creator produces.
	Family   string
	Defaults []string

	// ThumbnailTypes lists the thumbnail types a resolver answers for.
	ThumbnailTypes []string
}

// Validate ensures metadata is well-formed.
func (m Metadata) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("plugin metadata requires a non-empty Name")
	}
	if !namePattern.MatchString(m.Name) {
		return fmt.Errorf("plugin '%s' has an invalid Name (expected an identifier)", m.Name)
	}
	if !m.Kind.Valid() {
		return fmt.Errorf("plugin '%s' has no valid Kind", m.Name)
	}
	if m.Kind == KindCreator && strings.TrimSpace(m.Family) == "" {
		return fmt.Errorf("creator '%s' metadata requires Family", m.Name)
	}
	return nil
}

// DisplayLabel returns Label, falling back to Name.
func (m Metadata) DisplayLabel() string {
	if m.Label != "" {
		return m.Label
	}
	return m.Name
}
