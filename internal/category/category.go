// Package category holds the closed set of upload categories. A single Set is
// built from configuration and shared by every read and write path.
package category

import (
	"fmt"
	"regexp"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// NamePattern matches a plain category name: it can never contain a path
// separator, a dot segment or a leading dot.
var NamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// Set is an immutable allow-list of category names.
type Set struct {
	names map[string]struct{}
}

// New builds a Set from names. Empty lists, duplicates and names that are not
// plain directory names are rejected.
func New(names ...string) (*Set, error) {
	if err := Validate(names); err != nil {
		return nil, err
	}
	s := &Set{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		s.names[n] = struct{}{}
	}
	return s, nil
}

// MustNew is like New but panics on invalid input.
func MustNew(names ...string) *Set {
	s, err := New(names...)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks a category list without building a Set.
func Validate(names []string) error {
	if err := validation.Validate(names, validation.Required.Error("at least one category is required")); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if err := validation.Validate(n,
			validation.Required,
			validation.Match(NamePattern).Error("must be a plain directory name"),
		); err != nil {
			return fmt.Errorf("category %q: %w", n, err)
		}
		if _, dup := seen[n]; dup {
			return fmt.Errorf("category %q: listed more than once", n)
		}
		seen[n] = struct{}{}
	}
	return nil
}

// Contains reports whether name is an allowed category. Matching is exact.
func (s *Set) Contains(name string) bool {
	if s == nil || name == "" {
		return false
	}
	_, ok := s.names[name]
	return ok
}

// Names returns the categories in sorted order.
func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.names))
	for n := range s.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of categories.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}

// Rule returns an ozzo-validation rule accepting only members of s.
func (s *Set) Rule() validation.Rule {
	names := s.Names()
	in := make([]interface{}, len(names))
	for i, n := range names {
		in[i] = n
	}
	return validation.In(in...).Error("unknown category")
}
