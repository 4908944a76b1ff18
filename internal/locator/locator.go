// Package locator resolves catalog instances from tree positions.
//
// FindCatalog answers "which instance of this catalog type covers this
// resource" by nearest-ancestor search; FindAllCatalogs enumerates the
// full extent of a type for bulk operations.
package locator

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/treedex/treedex/internal/catalog"
	"github.com/treedex/treedex/internal/resource"
)

// DefaultCacheSize bounds the resolution cache.
const DefaultCacheSize = 1024

type cacheKey struct {
	ref   catalog.Ref
	ctype string
}

// Locator finds catalog instances in a resource tree.
type Locator struct {
	cache *lru.Cache[cacheKey, *catalog.Catalog]
}

// New creates a locator with the default resolution cache.
func New() *Locator {
	return NewWithCacheSize(DefaultCacheSize)
}

// NewWithCacheSize creates a locator with a bounded resolution cache.
// size <= 0 disables caching.
func NewWithCacheSize(size int) *Locator {
	l := &Locator{}
	if size > 0 {
		// lru.New only fails on a non-positive size.
		l.cache, _ = lru.New[cacheKey, *catalog.Catalog](size)
	}
	return l
}

// FindCatalog walks the ancestor chain of start (the resource itself,
// then its parent, and so on) and at each node inspects catalog-service
// children for an instance of ctype. The first match on the nearest
// ancestor wins; ties at the same depth resolve by service registration
// order. Returns false if no ancestor has a matching instance - a valid
// "not indexed here", not an error.
func (l *Locator) FindCatalog(start resource.Resource, ctype string) (*catalog.Catalog, bool) {
	if start == nil {
		return nil, false
	}

	key := cacheKey{ref: start.Ref(), ctype: ctype}
	if l.cache != nil {
		if cat, ok := l.cache.Get(key); ok {
			return cat, true
		}
	}

	for node := start; node != nil; {
		if cat, ok := findInServices(node, ctype); ok {
			if l.cache != nil {
				l.cache.Add(key, cat)
			}
			return cat, true
		}
		parent, ok := node.Parent()
		if !ok {
			break
		}
		node = parent
	}
	return nil, false
}

// FindAllCatalogs traverses the subtree under root depth-first in
// pre-order and returns every catalog instance of ctype: the type's
// extent. Repeated calls against an unchanged tree yield the same
// sequence.
func (l *Locator) FindAllCatalogs(root resource.Resource, ctype string) []*catalog.Catalog {
	var out []*catalog.Catalog
	var walk func(node resource.Resource)
	walk = func(node resource.Resource) {
		if svc, ok := node.(resource.Service); ok {
			for _, cat := range svc.Catalogs() {
				if cat.Type() == ctype {
					out = append(out, cat)
				}
			}
		}
		for _, child := range node.Children() {
			walk(child)
		}
	}
	if root != nil {
		walk(root)
	}
	return out
}

// Reset drops all cached resolutions. Call after the tree shape or the
// set of hosted catalogs changes.
func (l *Locator) Reset() {
	if l.cache != nil {
		l.cache.Purge()
	}
}

// findInServices scans node's service children, in child order, for an
// instance of ctype.
func findInServices(node resource.Resource, ctype string) (*catalog.Catalog, bool) {
	for _, child := range node.Children() {
		svc, ok := child.(resource.Service)
		if !ok {
			continue
		}
		for _, cat := range svc.Catalogs() {
			if cat.Type() == ctype {
				return cat, true
			}
		}
	}
	return nil, false
}
