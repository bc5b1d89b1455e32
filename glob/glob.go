// Package glob matches names against shell-like patterns.
package glob

import (
	"fmt"

	"github.com/gobwas/glob"
)

type Glob interface {
	Match(name string) bool
	Pattern() string
}

type globber struct {
	pattern string
	glob    glob.Glob
}

func MustCompile(pattern string, separators ...rune) Glob {
	g := glob.MustCompile(pattern, separators...)

	return &globber{pattern: pattern, glob: g}
}

func Compile(pattern string, separators ...rune) (Glob, error) {
	g, err := glob.Compile(pattern, separators...)
	if err != nil {
		return nil, err
	}

	return &globber{pattern: pattern, glob: g}, nil
}

func (g *globber) Match(name string) bool {
	return g.glob.Match(name)
}

func (g *globber) Pattern() string {
	return g.pattern
}

// Match returns whether the name matches the glob pattern, also considering
// one or several optionnal separator. An error is only returned if the pattern
// is invalid.
func Match(pattern, name string, separators ...rune) (bool, error) {
	g, err := Compile(pattern, separators...)
	if err != nil {
		return false, err
	}

	return g.Match(name), nil
}

// QuoteMeta escapes all characters of s that have a meaning in a pattern.
func QuoteMeta(s string) string {
	return glob.QuoteMeta(s)
}

// Set is a list of patterns. A name matches the set if it matches any of them.
type Set []Glob

// CompileSet compiles all patterns. The first invalid pattern is reported.
func CompileSet(patterns []string, separators ...rune) (Set, error) {
	set := make(Set, 0, len(patterns))

	for _, pattern := range patterns {
		g, err := Compile(pattern, separators...)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern '%s': %w", pattern, err)
		}

		set = append(set, g)
	}

	return set, nil
}

func (s Set) Match(name string) bool {
	for _, g := range s {
		if g.Match(name) {
			return true
		}
	}

	return false
}
