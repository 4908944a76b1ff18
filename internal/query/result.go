package query

import (
	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/treedex/treedex/internal/catalog"
)

// Result is the materialized outcome of executing a query: an unordered
// set of resource refs. Any presentation ordering is the caller's
// responsibility.
type Result struct {
	bm *roaring64.Bitmap
}

func newResult(bm *roaring64.Bitmap) *Result {
	if bm == nil {
		bm = roaring64.New()
	}
	return &Result{bm: bm}
}

// Refs returns the matching refs in ascending order.
func (r *Result) Refs() []catalog.Ref {
	return r.bm.ToArray()
}

// Contains reports whether ref is in the result.
func (r *Result) Contains(ref catalog.Ref) bool {
	return r.bm.Contains(ref)
}

// Len returns the number of matching refs.
func (r *Result) Len() int {
	return int(r.bm.GetCardinality())
}

// IsEmpty reports whether the result has no matches.
func (r *Result) IsEmpty() bool {
	return r.bm.IsEmpty()
}
