package local

import (
	"bufio"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// IgnoreFile is read from the root of an OS provider when present.
const IgnoreFile = ".pendingignore"

// Ignore holds name patterns hidden from listings.
type Ignore struct {
	patterns []ignorePattern
}

type ignorePattern struct {
	pattern string
	dirOnly bool // trailing / in source line
}

// NewIgnore compiles patterns; blank lines and "#" comments are skipped.
func NewIgnore(lines []string) *Ignore {
	ig := &Ignore{}
	for _, line := range lines {
		ig.add(line)
	}
	return ig
}

// LoadIgnore reads an ignore file from fsys. A missing or unreadable file
// yields an empty Ignore (nothing is ignored).
func LoadIgnore(fsys afero.Fs, name string) *Ignore {
	ig := &Ignore{}

	f, err := fsys.Open(name)
	if err != nil {
		return ig
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		ig.add(scanner.Text())
	}
	return ig
}

func (ig *Ignore) add(line string) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}
	p := ignorePattern{pattern: line}
	if strings.HasSuffix(line, "/") {
		p.pattern = strings.TrimSuffix(line, "/")
		p.dirOnly = true
	}
	ig.patterns = append(ig.patterns, p)
}

// Merge appends other's patterns.
func (ig *Ignore) Merge(other *Ignore) {
	if other == nil {
		return
	}
	ig.patterns = append(ig.patterns, other.patterns...)
}

// Match reports whether name matches any pattern. Directory-only patterns
// need isDir.
func (ig *Ignore) Match(name string, isDir bool) bool {
	if ig == nil {
		return false
	}
	for _, p := range ig.patterns {
		if p.dirOnly && !isDir {
			continue
		}
		if matched, _ := path.Match(p.pattern, name); matched {
			return true
		}
	}
	return false
}
