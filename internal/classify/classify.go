// Package classify assigns a Category and a usefulness Score to filesystem
// entries from their name, location and metadata.
package classify

import (
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Category orders entries from "never touch" to "safe to remove".
type Category int

const (
	MustKeep Category = iota
	System
	Regular
	Useless
)

func (c Category) String() string {
	switch c {
	case MustKeep:
		return "MustKeep"
	case System:
		return "System"
	case Regular:
		return "Regular"
	case Useless:
		return "Useless"
	default:
		return "Unknown"
	}
}

// ParseCategory accepts the names produced by String, case-insensitively.
func ParseCategory(s string) (Category, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mustkeep", "must_keep", "protected":
		return MustKeep, true
	case "system":
		return System, true
	case "regular":
		return Regular, true
	case "useless":
		return Useless, true
	}
	return Regular, false
}

// Score is a usefulness value in [MinScore, MaxScore]; lower means more
// likely to be worth deleting.
type Score float64

const (
	MinScore     Score = 0
	MaxScore     Score = 100
	NeutralScore Score = 50
)

// Input is everything Classify looks at. Now is passed in so that the result
// depends on nothing but the input.
type Input struct {
	Path    string
	Name    string
	Ext     string
	IsDir   bool
	Size    int64
	ModTime time.Time
	Now     time.Time

	// Empty marks a directory with no children.
	Empty bool
	// AggregateKnown reports whether Size holds a computed directory total.
	AggregateKnown bool
}

// Classifier holds the protected-name policy. The zero value protects nothing;
// use New for the default policy.
type Classifier struct {
	patterns map[string]Category
	roots    map[string]bool
}

// New builds a classifier from a {pattern: category} policy. Patterns are
// matched case-insensitively with path.Match against the entry name, or
// against the whole slash-separated path when the pattern contains a slash.
// Mount roots are always MustKeep.
func New(patterns map[string]Category, roots ...string) *Classifier {
	c := &Classifier{
		patterns: make(map[string]Category, len(patterns)),
		roots:    make(map[string]bool, len(roots)),
	}
	for p, cat := range patterns {
		c.patterns[strings.ToLower(p)] = cat
	}
	for _, r := range roots {
		c.roots[filepath.Clean(r)] = true
	}
	return c
}

// Default returns a classifier using DefaultProtected.
func Default(roots ...string) *Classifier {
	return New(DefaultProtected(), roots...)
}

// Protected reports whether name/path matches a MustKeep pattern.
func (c *Classifier) Protected(p, name string) bool {
	cat, ok := c.match(p, name)
	return ok && cat == MustKeep
}

func (c *Classifier) match(p, name string) (Category, bool) {
	if c == nil || len(c.patterns) == 0 {
		return Regular, false
	}
	lowerName := strings.ToLower(name)
	if cat, ok := c.patterns[lowerName]; ok {
		return cat, true
	}
	lowerPath := strings.ToLower(filepath.ToSlash(p))
	found := false
	best := Useless
	for pattern, cat := range c.patterns {
		target := lowerName
		if strings.Contains(pattern, "/") {
			target = lowerPath
		}
		if ok, _ := path.Match(pattern, target); ok {
			// Several patterns may match; the most protective one wins so the
			// result does not depend on map order.
			if !found || cat < best {
				best = cat
				found = true
			}
		}
	}
	return best, found
}

func (c *Classifier) isRoot(p string) bool {
	if p == "" {
		return false
	}
	clean := filepath.Clean(p)
	if c != nil && c.roots[clean] {
		return true
	}
	return isDriveRoot(clean)
}

// Classify returns the category and usefulness score for one entry.
func (c *Classifier) Classify(in Input) (Category, Score) {
	if in.Name == "" {
		in.Name = filepath.Base(in.Path)
	}
	if in.Ext == "" && !in.IsDir {
		in.Ext = filepath.Ext(in.Name)
	}
	cat := c.category(in)
	return cat, score(cat, in)
}

func (c *Classifier) category(in Input) Category {
	if c.isRoot(in.Path) {
		return MustKeep
	}
	if cat, ok := c.match(in.Path, in.Name); ok {
		return cat
	}
	if isDisposable(in) {
		return Useless
	}
	if isSystem(in) {
		return System
	}
	return Regular
}

func isDriveRoot(p string) bool {
	if p == "/" || p == `\` {
		return true
	}
	// C:\ or C:/ style volume roots.
	if len(p) == 3 && p[1] == ':' && (p[2] == '\\' || p[2] == '/') {
		return true
	}
	return len(p) == 2 && p[1] == ':'
}

func isDisposable(in Input) bool {
	if in.IsDir {
		return in.Empty || disposableDirs[strings.ToLower(in.Name)]
	}
	name := strings.ToLower(in.Name)
	if disposableExtensions[strings.ToLower(in.Ext)] {
		return true
	}
	if strings.HasPrefix(name, "~$") || strings.HasSuffix(name, "~") {
		return true
	}
	if disposableFiles[name] {
		return true
	}
	// Only the immediate parent counts; a cache directory deep in the
	// ancestry says nothing about project files below it.
	return in.Path != "" && disposableDirs[strings.ToLower(filepath.Base(filepath.Dir(in.Path)))]
}

func isSystem(in Input) bool {
	if strings.HasPrefix(in.Name, ".") && in.Name != "." && in.Name != ".." {
		return true
	}
	if !in.IsDir && systemExtensions[strings.ToLower(in.Ext)] {
		return true
	}
	lower := strings.ToLower(filepath.ToSlash(in.Path))
	for _, prefix := range systemPrefixes {
		if lower == prefix || strings.HasPrefix(lower, prefix+"/") {
			return true
		}
	}
	for _, fragment := range systemFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}

const (
	kib = int64(1) << 10
	mib = kib << 10
	gib = mib << 10

	day = 24 * time.Hour
)

func score(cat Category, in Input) Score {
	if cat == MustKeep {
		return MaxScore
	}
	s := baseScore[cat]

	if in.IsDir && !in.AggregateKnown {
		if cat == Regular {
			return NeutralScore
		}
		return s
	}

	ext := strings.ToLower(in.Ext)
	switch {
	case in.Size > gib:
		s -= 15
		if archiveExtensions[ext] {
			s -= 5
		}
	case in.Size > 100*mib:
		s -= 5
	case in.Size < mib && !in.IsDir:
		s += 5
	}

	if !in.ModTime.IsZero() && !in.Now.IsZero() {
		age := in.Now.Sub(in.ModTime)
		switch {
		case age > 365*day:
			s -= 10
		case age > 90*day:
			s -= 5
		case age >= 0 && age < 7*day:
			s += 10
		}
	}

	if !in.IsDir && valuableExtensions[ext] {
		s += 10
	}

	return clamp(s)
}

func clamp(s Score) Score {
	if s < MinScore {
		return MinScore
	}
	if s > MaxScore {
		return MaxScore
	}
	return s
}

var baseScore = map[Category]Score{
	MustKeep: 100,
	System:   85,
	Regular:  60,
	Useless:  5,
}
