package catalog

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/google/uuid"

	"github.com/treedex/treedex/internal/errors"
)

// Catalog is an ordered, named collection of indexes of one catalog
// type, placed at one location in the resource tree.
//
// All operations lock a per-instance reader-writer mutex: queries may
// run concurrently with each other but are excluded from concurrent
// writes, so a torn forward/reverse map is never observed.
type Catalog struct {
	id    string
	ctype string

	mu      sync.RWMutex
	order   []string
	indexes map[string]Index
}

// New creates an empty catalog instance of the given type with an
// auto-assigned instance id.
func New(ctype string) *Catalog {
	return NewWithID(ctype, uuid.NewString())
}

// NewWithID creates an empty catalog instance with an explicit id,
// used when restoring persisted instances.
func NewWithID(ctype, id string) *Catalog {
	return &Catalog{
		id:      id,
		ctype:   ctype,
		indexes: make(map[string]Index),
	}
}

// ID returns the catalog instance id.
func (c *Catalog) ID() string { return c.id }

// Type returns the catalog type name.
func (c *Catalog) Type() string { return c.ctype }

// AddIndex adds an index to the catalog.
// Fails with DuplicateIndexName if the name is already present.
func (c *Catalog) AddIndex(idx Index) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := idx.Name()
	if _, exists := c.indexes[name]; exists {
		return errors.Newf(errors.ErrCodeDuplicateIndexName,
			"catalog %q already has an index named %q", c.ctype, name)
	}
	c.indexes[name] = idx
	c.order = append(c.order, name)
	return nil
}

// RemoveIndex removes the named index and its contents.
// Fails with IndexNotFound if absent.
func (c *Catalog) RemoveIndex(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.indexes[name]; !exists {
		return errors.Newf(errors.ErrCodeIndexNotFound,
			"catalog %q has no index named %q", c.ctype, name)
	}
	delete(c.indexes, name)
	for i, n := range c.order {
		if n == name {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

// ReplaceIndex swaps in a rebuilt index under the same name, keeping
// its position in the catalog order. Used by the synchronizer when a
// spec has drifted. Fails with IndexNotFound if absent.
func (c *Catalog) ReplaceIndex(idx Index) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := idx.Name()
	if _, exists := c.indexes[name]; !exists {
		return errors.Newf(errors.ErrCodeIndexNotFound,
			"catalog %q has no index named %q", c.ctype, name)
	}
	c.indexes[name] = idx
	return nil
}

// Index returns the named index.
func (c *Catalog) Index(name string) (Index, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, ok := c.indexes[name]
	return idx, ok
}

// IndexNames returns the index names in catalog order.
func (c *Catalog) IndexNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// IndexDoc runs every index's discriminator against view and applies
// the result to that index. A failing discriminator is isolated: the
// remaining indexes still update, and the failures are aggregated into
// the returned PartialError.
func (c *Catalog) IndexDoc(ref Ref, view any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.indexDocLocked(ref, view, nil)
}

// IndexDocInto behaves like IndexDoc restricted to the named indexes.
// Used by the synchronizer to populate freshly added or rebuilt indexes
// without touching converged ones.
func (c *Catalog) IndexDocInto(ref Ref, view any, names []string) error {
	only := make(map[string]bool, len(names))
	for _, n := range names {
		only[n] = true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.indexDocLocked(ref, view, only)
}

// indexDocLocked applies view to the selected indexes. Caller holds the
// write lock. only==nil means all indexes.
func (c *Catalog) indexDocLocked(ref Ref, view any, only map[string]bool) error {
	var failures map[string]error

	for _, name := range c.order {
		if only != nil && !only[name] {
			continue
		}
		idx := c.indexes[name]

		value, ok, err := discriminate(idx, view)
		if err == nil {
			if ok {
				err = idx.Index(ref, value)
			} else {
				// Absence sentinel: equivalent to unindex.
				idx.Unindex(ref)
			}
		}
		if err != nil {
			if failures == nil {
				failures = make(map[string]error)
			}
			failures[name] = err
			slog.Warn("index update failed",
				slog.String("catalog_type", c.ctype),
				slog.String("index", name),
				slog.Uint64("ref", ref),
				slog.String("error", err.Error()))
		}
	}

	if failures != nil {
		return &PartialError{Ref: ref, CatalogType: c.ctype, Failures: failures}
	}
	return nil
}

// discriminate invokes the index's discriminator, converting a panic in
// user-supplied extraction code into an isolated failure.
func discriminate(idx Index, view any) (value any, ok bool, err error) {
	spec := idx.Spec()
	if spec.Discriminate == nil {
		return nil, false, errors.Newf(errors.ErrCodeDiscriminatorFailed,
			"index %q has no discriminator attached", idx.Name())
	}
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf(errors.ErrCodeDiscriminatorFailed,
				"discriminator for index %q panicked: %v", idx.Name(), r)
		}
	}()
	value, ok, err = spec.Discriminate(view)
	if err != nil {
		err = errors.Wrap(errors.ErrCodeDiscriminatorFailed, err)
	}
	return value, ok, err
}

// UnindexDoc removes ref from every contained index, unconditionally.
func (c *Catalog) UnindexDoc(ref Ref) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, name := range c.order {
		c.indexes[name].Unindex(ref)
	}
}

// Reindex unindexes then reindexes ref from view under one lock
// acquisition. Atomicity of intent, not of storage.
func (c *Catalog) Reindex(ref Ref, view any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, name := range c.order {
		c.indexes[name].Unindex(ref)
	}
	return c.indexDocLocked(ref, view, nil)
}

// EvalLookup evaluates a point lookup on the named index under the
// read lock.
func (c *Catalog) EvalLookup(name string, value any) (*roaring64.Bitmap, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, ok := c.indexes[name]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeIndexNotFound,
			"catalog %q has no index named %q", c.ctype, name)
	}
	return idx.Lookup(value)
}

// EvalRange evaluates a range lookup on the named index under the
// read lock.
func (c *Catalog) EvalRange(name string, lo, hi any, incLo, incHi bool) (*roaring64.Bitmap, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, ok := c.indexes[name]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeIndexNotFound,
			"catalog %q has no index named %q", c.ctype, name)
	}
	return idx.LookupRange(lo, hi, incLo, incHi)
}

// EvalDomain returns the named index's domain under the read lock.
func (c *Catalog) EvalDomain(name string) (*roaring64.Bitmap, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, ok := c.indexes[name]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeIndexNotFound,
			"catalog %q has no index named %q", c.ctype, name)
	}
	return idx.Domain(), nil
}

// EstimateLookup returns the cardinality a point lookup would produce,
// used as the AND-ordering hint. Unknown probes estimate zero.
func (c *Catalog) EstimateLookup(name string, value any) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, ok := c.indexes[name]
	if !ok {
		return 0
	}
	bm, err := idx.Lookup(value)
	if err != nil {
		return 0
	}
	return bm.GetCardinality()
}

// Snapshot captures the catalog and all index contents for persistence.
func (c *Catalog) Snapshot() *CatalogSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := &CatalogSnapshot{
		ID:   c.id,
		Type: c.ctype,
	}
	for _, name := range c.order {
		snap.Indexes = append(snap.Indexes, c.indexes[name].Snapshot())
	}
	return snap
}

// PartialError reports the per-index failures of one IndexDoc call.
// The indexes not listed in Failures were updated successfully.
type PartialError struct {
	Ref         Ref
	CatalogType string
	Failures    map[string]error
}

// Error implements the error interface.
func (e *PartialError) Error() string {
	names := make([]string, 0, len(e.Failures))
	for n := range e.Failures {
		names = append(names, n)
	}
	sort.Strings(names)
	return fmt.Sprintf("indexing ref %d into catalog %q failed for %d of its indexes: %s",
		e.Ref, e.CatalogType, len(e.Failures), strings.Join(names, ", "))
}
