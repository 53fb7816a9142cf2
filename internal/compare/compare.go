// Package compare reduces two scan line sets to comparable subsets and
// surfaces only genuinely new write-access grants.
package compare

import (
	"fmt"
	"os"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"achk/internal/scan"
)

// DirProbe answers "is this path an existing directory". The default probe
// hits the filesystem; tests inject their own.
type DirProbe func(path string) bool

func statProbe(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// DirCache memoizes directory confirmations under a lower-cased key. It is
// owned by the session and cleared at scan completion to bound memory.
type DirCache struct {
	probe DirProbe
	cache map[string]bool
}

func NewDirCache(probe DirProbe) *DirCache {
	if probe == nil {
		probe = statProbe
	}
	return &DirCache{probe: probe, cache: make(map[string]bool)}
}

// IsDir reports whether path is a confirmed directory, consulting the cache
// first.
func (c *DirCache) IsDir(path string) bool {
	if path == "" {
		return false
	}
	key := strings.ToLower(path)
	if v, ok := c.cache[key]; ok {
		return v
	}
	v := c.probe(path)
	c.cache[key] = v
	return v
}

// Clear drops all memoized confirmations.
func (c *DirCache) Clear() {
	c.cache = make(map[string]bool)
}

// Len returns the number of cached confirmations.
func (c *DirCache) Len() int { return len(c.cache) }

// Engine computes the baseline/compare diff over filtered line sets.
type Engine struct {
	dirs *DirCache
}

func NewEngine(dirs *DirCache) *Engine {
	if dirs == nil {
		dirs = NewDirCache(nil)
	}
	return &Engine{dirs: dirs}
}

// Synthetic-record tags excluded from comparison. These never describe a
// permission, only pipeline noise.
var excludedTags = []string{"[erreur]", "[info]", "[exception]"}

// FilterForDiff reduces raw scan lines to the comparable subset: directory
// header lines whose path is a confirmed directory, and pathless
// RW-prefixed permission rows. Everything else is noise for diff purposes.
func (e *Engine) FilterForDiff(lines []string) []string {
	var filtered []string
	for _, line := range lines {
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		tagged := false
		for _, tag := range excludedTags {
			if strings.Contains(lower, tag) {
				tagged = true
				break
			}
		}
		if tagged {
			continue
		}

		if path := scan.ExtractFirstPath(line); path != "" {
			if e.dirs.IsDir(path) {
				filtered = append(filtered, line)
			}
		} else if scan.HasRWPrefix(line) {
			// A permission row whose header was filtered elsewhere still
			// carries comparison value.
			filtered = append(filtered, line)
		}
	}
	return filtered
}

// Diff filters both line sets, computes a unified line diff, and keeps only
// the lines that represent genuinely new grants (plus directory context).
// An empty result is meaningful: no differences.
func (e *Engine) Diff(baseLines, currentLines []string) ([]string, error) {
	baseFiltered := e.FilterForDiff(baseLines)
	currentFiltered := e.FilterForDiff(currentLines)

	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:       withNewlines(baseFiltered),
		B:       withNewlines(currentFiltered),
		Context: 3,
	})
	if err != nil {
		return nil, fmt.Errorf("computing diff: %w", err)
	}

	var diffLines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" ||
			strings.HasPrefix(line, "---") ||
			strings.HasPrefix(line, "+++") ||
			strings.HasPrefix(line, "@@") {
			continue
		}
		diffLines = append(diffLines, line)
	}

	return reduceNewGrants(diffLines), nil
}

// reduceNewGrants keeps an added RW line only when its content does not also
// appear among the removed RW lines: a permission row that merely moved
// position is not a new grant. A directory header (added or context) is
// retained only once a surviving row under it is kept, so unchanged sections
// never leak into the result.
func reduceNewGrants(diffLines []string) []string {
	removed := make(map[string]bool)
	for _, line := range diffLines {
		if strings.HasPrefix(line, "-") && strings.Contains(line, "RW") {
			removed[strings.TrimSpace(line[1:])] = true
		}
	}

	var kept []string
	pendingHeader := ""
	for _, line := range diffLines {
		hasRW := strings.Contains(line, "RW")
		if !hasRW && scan.ExtractFirstPath(line) != "" && !strings.HasPrefix(line, "-") {
			pendingHeader = line
			continue
		}
		if !strings.HasPrefix(line, "+") || !hasRW {
			continue
		}
		if removed[strings.TrimSpace(line[1:])] {
			continue
		}
		if pendingHeader != "" {
			kept = append(kept, pendingHeader)
			pendingHeader = ""
		}
		kept = append(kept, line)
	}
	return kept
}

func withNewlines(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l + "\n"
	}
	return out
}
