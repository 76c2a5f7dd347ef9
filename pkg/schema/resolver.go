// Package schema maps logical query columns onto the physical column
// catalogs of segments. Matching is by case-insensitive exact name, and for
// cross-segment lookups by name and type.
package schema

import (
	"strings"

	"github.com/ajitpratap0/packscan/pkg/scanerrors"
	"github.com/ajitpratap0/packscan/pkg/segment"
)

// Wildcard paths select every column of a table.
const (
	Star       = "*"
	DoubleStar = "**"
)

// IsStar reports whether paths contains a wildcard entry.
func IsStar(paths []string) bool {
	for _, p := range paths {
		trimmed := strings.TrimSpace(p)
		if trimmed == Star || trimmed == DoubleStar {
			return true
		}
	}
	return false
}

// StripTablePrefix lowercases path and removes a leading "{table}." from it.
// The table name is matched case-insensitively.
func StripTablePrefix(path, table string) string {
	lower := strings.ToLower(path)
	if table == "" {
		return lower
	}
	return strings.TrimPrefix(lower, strings.ToLower(table)+".")
}

// Resolve returns the first descriptor of catalog named name, compared
// case-insensitively, with its position.
func Resolve(catalog segment.Catalog, name string) (segment.ColumnDescriptor, int, error) {
	for i, d := range catalog {
		if strings.EqualFold(d.Name, name) {
			return d, i, nil
		}
	}
	return segment.ColumnDescriptor{}, -1, scanerrors.Newf(scanerrors.ErrorTypeColumnNotFound,
		"[%s] not found in %s", name, catalog).
		WithDetail("column", name)
}

// ResolvePath strips the table prefix from a logical path and resolves the
// remaining column name against catalog.
func ResolvePath(table string, catalog segment.Catalog, path string) (segment.ColumnDescriptor, int, error) {
	return Resolve(catalog, StripTablePrefix(path, table))
}

// ResolveAcrossSchemas returns the position in catalog of the column that
// has desc's name and type. ok is false when there is no such column; that
// is a statement about the segment, not an error.
func ResolveAcrossSchemas(desc segment.ColumnDescriptor, catalog segment.Catalog) (index int, ok bool) {
	for i, d := range catalog {
		if d.Type == desc.Type && strings.EqualFold(d.Name, desc.Name) {
			return i, true
		}
	}
	return -1, false
}

type resolveKey struct {
	segmentID string
	column    string
}

type resolveResult struct {
	index int
	ok    bool
}

// Resolver memoizes cross-schema resolution per (segment, column). A
// segment's catalog is immutable for the lifetime of its handle, so a
// cached answer stays valid until Reset. Not safe for concurrent use.
type Resolver struct {
	cache  map[resolveKey]resolveResult
	hits   int
	misses int
}

// NewResolver creates an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{cache: make(map[resolveKey]resolveResult)}
}

// Lookup resolves desc in the catalog of segmentID, consulting the cache
// first. The catalog is only scanned on a miss.
func (r *Resolver) Lookup(segmentID string, catalog segment.Catalog, desc segment.ColumnDescriptor) (int, bool) {
	key := resolveKey{segmentID: segmentID, column: strings.ToLower(desc.Name) + "\x00" + desc.Type.String()}
	if res, found := r.cache[key]; found {
		r.hits++
		return res.index, res.ok
	}
	r.misses++
	index, ok := ResolveAcrossSchemas(desc, catalog)
	r.cache[key] = resolveResult{index: index, ok: ok}
	return index, ok
}

// Stats returns cache hits and misses since creation or the last Reset.
func (r *Resolver) Stats() (hits, misses int) {
	return r.hits, r.misses
}

// Reset drops every cached answer.
func (r *Resolver) Reset() {
	r.cache = make(map[resolveKey]resolveResult)
	r.hits, r.misses = 0, 0
}
