// Package keypath computes ordered fallback key paths from a key and a
// ConfigContext.
package keypath

import (
	"fmt"
	"regexp"
	"strings"
)

// Context is the open mapping of resolution dimensions. Any dimension
// may be absent (empty string).
type Context struct {
	ClientID    string
	TenantID    string
	UserID      string
	Environment string
	Region      string
	ActorID     string
	// Extensions holds arbitrary string-valued dimensions not part of
	// the recognized set; they never participate in path enumeration
	// (only the fixed priority dimensions do).
	Extensions map[string]string
}

// dimension is a single named, present-or-absent resolution axis in the
// fixed priority order defined here.
type dimension struct {
	name  string
	value string
}

func (c Context) orderedDimensions() []dimension {
	candidates := []dimension{
		{"clientId", c.ClientID},
		{"tenantId", c.TenantID},
		{"userId", c.UserID},
		{"environment", c.Environment},
		{"region", c.Region},
	}
	present := make([]dimension, 0, len(candidates))
	for _, d := range candidates {
		if d.value != "" {
			present = append(present, d)
		}
	}
	return present
}

const globalPartition = "global"

var validPathChars = regexp.MustCompile(`^[A-Za-z0-9_/-]+$`)

// Validate rejects empty paths, leading/trailing "/", "//", or any
// character outside [A-Za-z0-9_/-].
func Validate(path string) error {
	if path == "" {
		return fmt.Errorf("keypath: empty path")
	}
	if strings.HasPrefix(path, "/") || strings.HasSuffix(path, "/") {
		return fmt.Errorf("keypath: %q has leading or trailing slash", path)
	}
	if strings.Contains(path, "//") {
		return fmt.Errorf("keypath: %q contains consecutive slashes", path)
	}
	if !validPathChars.MatchString(path) {
		return fmt.Errorf("keypath: %q contains characters outside [A-Za-z0-9_/-]", path)
	}
	return nil
}

// FallbackPaths enumerates, in try-order, every path a consumer should
// attempt for key K under context C:
//
//  1. all non-empty subsets of the present dimensions, sorted by
//     decreasing cardinality (ties broken by the fixed priority order),
//     each subset joined with "/" and suffixed with "/K";
//  2. the bare key K;
//  3. "global/K" as the terminal fallback.
func FallbackPaths(key string, ctx Context) []string {
	dims := ctx.orderedDimensions()
	n := len(dims)

	var subsets [][]dimension
	for mask := 1; mask < (1 << n); mask++ {
		var subset []dimension
		for i := 0; i < n; i++ {
			if mask&(1<<i) != 0 {
				subset = append(subset, dims[i])
			}
		}
		subsets = append(subsets, subset)
	}

	// Stable sort by decreasing cardinality; within equal cardinality,
	// preserve the enumeration order, which already reflects priority
	// because dims is in priority order and masks are enumerated in
	// increasing bit-pattern order matching that same priority.
	sortByCardinalityDesc(subsets)

	paths := make([]string, 0, len(subsets)+2)
	for _, subset := range subsets {
		values := make([]string, 0, len(subset))
		for _, d := range subset {
			values = append(values, d.value)
		}
		paths = append(paths, strings.Join(values, "/")+"/"+key)
	}
	paths = append(paths, key)
	paths = append(paths, globalPartition+"/"+key)
	return paths
}

func sortByCardinalityDesc(subsets [][]dimension) {
	// Simple stable insertion sort: n is at most 5 dimensions, so at
	// most 31 subsets. A full sort package pull-in isn't worth it for
	// this size, and stability must be preserved exactly.
	for i := 1; i < len(subsets); i++ {
		j := i
		for j > 0 && len(subsets[j]) > len(subsets[j-1]) {
			subsets[j], subsets[j-1] = subsets[j-1], subsets[j]
			j--
		}
	}
}
