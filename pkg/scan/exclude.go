package scan

import (
	"path/filepath"
	"strings"
)

// StateDir holds the fingerprint cache and is never indexed
const StateDir = ".mediatidy"

// builtinExcludes are applied on top of user patterns
var builtinExcludes = []string{StateDir + "/", ".mediatidy-*.tmp"}

// Matcher decides which paths a walk skips.
// Patterns support:
//   - Simple glob patterns: *.tmp, *.part
//   - Directory patterns: .git/, @eaDir/
//   - Path patterns: export/*, **/cache/*
type Matcher struct {
	patterns []string
}

// NewMatcher creates a matcher from user patterns plus the built-in ones
func NewMatcher(patterns []string) *Matcher {
	all := make([]string, 0, len(patterns)+len(builtinExcludes))
	all = append(all, builtinExcludes...)
	for _, p := range patterns {
		if p != "" {
			all = append(all, filepath.ToSlash(p))
		}
	}
	return &Matcher{patterns: all}
}

// Match reports whether relPath (relative to the walk root) is excluded.
// A directory pattern matches the directory itself and everything below it.
func (m *Matcher) Match(relPath string, isDir bool) bool {
	path := filepath.ToSlash(relPath)
	base := filepath.Base(relPath)

	for _, pattern := range m.patterns {
		if dir, ok := strings.CutSuffix(pattern, "/"); ok {
			if matchDir(path, base, dir, isDir) {
				return true
			}
			continue
		}

		if suffix, ok := strings.CutPrefix(pattern, "**/"); ok {
			if matchGlob(base, suffix) ||
				path == suffix || strings.HasSuffix(path, "/"+suffix) ||
				matchAnyComponent(path, suffix) {
				return true
			}
			continue
		}

		if strings.Contains(pattern, "/") {
			if matched, _ := filepath.Match(pattern, path); matched {
				return true
			}
			if strings.HasSuffix(path, pattern) {
				return true
			}
			continue
		}

		if matchGlob(base, pattern) {
			return true
		}
	}

	return false
}

func matchDir(path, base, dir string, isDir bool) bool {
	if isDir && (path == dir || matchGlob(base, dir)) {
		return true
	}
	return strings.HasPrefix(path, dir+"/") || strings.Contains(path, "/"+dir+"/")
}

// matchGlob performs glob matching on a single path component
func matchGlob(name, pattern string) bool {
	matched, _ := filepath.Match(pattern, name)
	return matched
}

// matchAnyComponent checks if any component of the path matches the pattern
func matchAnyComponent(path, pattern string) bool {
	for _, part := range strings.Split(path, "/") {
		if matchGlob(part, pattern) {
			return true
		}
	}
	return false
}
