// Package filter decides which inbox entries are eligible for processing.
//
// A Filter is evaluated against the parent directory and the entry name so that
// name-only rules (globs, regexps) stay cheap while type-aware rules can still
// stat the candidate.
package filter

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Filter reports whether the entry name inside dir should be processed.
type Filter func(dir, name string) bool

// Accept evaluates f against a full path. A nil filter accepts everything.
func (f Filter) Accept(path string) bool {
	if f == nil {
		return true
	}
	return f(filepath.Dir(path), filepath.Base(path))
}

// All accepts every entry.
func All() Filter {
	return func(string, string) bool { return true }
}

// Glob accepts names matching any of the shell patterns (e.g. "*.jsonl", "*.xml").
// Empty patterns are ignored; malformed patterns never match.
func Glob(patterns ...string) Filter {
	cleaned := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return func(_ string, name string) bool {
		for _, p := range cleaned {
			if ok, err := filepath.Match(p, name); err == nil && ok {
				return true
			}
		}
		return false
	}
}

// Regexp accepts names matching re.
func Regexp(re *regexp.Regexp) Filter {
	return func(_ string, name string) bool {
		return re.MatchString(name)
	}
}

// Directories accepts sub-directories that are not temporary.
func Directories() Filter {
	return func(dir, name string) bool {
		if IsTemp(name) {
			return false
		}
		info, err := os.Stat(filepath.Join(dir, name))
		return err == nil && info.IsDir()
	}
}

// Files accepts regular files.
func Files() Filter {
	return func(dir, name string) bool {
		info, err := os.Stat(filepath.Join(dir, name))
		return err == nil && info.Mode().IsRegular()
	}
}

// NotTemp rejects temporary and hidden names, see IsTemp.
func NotTemp() Filter {
	return func(_ string, name string) bool {
		return !IsTemp(name)
	}
}

// And accepts entries accepted by every filter.
func And(filters ...Filter) Filter {
	return func(dir, name string) bool {
		for _, f := range filters {
			if f != nil && !f(dir, name) {
				return false
			}
		}
		return true
	}
}

// Any accepts entries accepted by at least one filter.
func Any(filters ...Filter) Filter {
	return func(dir, name string) bool {
		for _, f := range filters {
			if f != nil && f(dir, name) {
				return true
			}
		}
		return false
	}
}

// Not inverts f.
func Not(f Filter) Filter {
	return func(dir, name string) bool {
		return !f(dir, name)
	}
}

var tempSuffixes = []string{".tmp", ".temp", ".part", ".partial", ".crdownload", "~"}

// IsTemp reports whether name looks like an in-progress or hidden file: dot files,
// editor backups and the usual partial-download suffixes.
func IsTemp(name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~") {
		return true
	}
	lower := strings.ToLower(name)
	for _, s := range tempSuffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}
