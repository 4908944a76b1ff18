// Package query provides boolean combinators over catalog indexes.
//
// Queries are immutable expression trees built from comparison leaves
// on specific indexes, possibly spanning catalog instances of different
// types. Nothing is evaluated until Execute is called; execution never
// mutates any index. NOT complements against the union of the domains
// of the indexes its operand touches, so no global resource enumeration
// is needed.
package query

import (
	"context"
	"sort"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/treedex/treedex/internal/catalog"
	"github.com/treedex/treedex/internal/errors"
)

// Query is a lazily evaluated boolean expression over index contents.
type Query interface {
	// Execute forces evaluation and returns the matching refs.
	Execute(ctx context.Context) (*Result, error)

	// estimate is the sizing hint used to order AND operands.
	estimate() uint64

	// universe is the union of the domains of every index this
	// subtree touches, the complement space for NOT.
	universe() (*roaring64.Bitmap, error)
}

// Eq matches refs indexed under exactly value in the named index.
func Eq(cat *catalog.Catalog, index string, value any) Query {
	return &eqQuery{cat: cat, index: index, value: value}
}

// NotEq matches refs present in the index but not indexed under value.
func NotEq(cat *catalog.Catalog, index string, value any) Query {
	return &notEqQuery{cat: cat, index: index, value: value}
}

// Range matches refs whose indexed value falls between lo and hi.
// A nil bound is unbounded on that side.
func Range(cat *catalog.Catalog, index string, lo, hi any, incLo, incHi bool) Query {
	return &rangeQuery{cat: cat, index: index, lo: lo, hi: hi, incLo: incLo, incHi: incHi}
}

// Gt matches values strictly greater than v.
func Gt(cat *catalog.Catalog, index string, v any) Query {
	return Range(cat, index, v, nil, false, false)
}

// Ge matches values greater than or equal to v.
func Ge(cat *catalog.Catalog, index string, v any) Query {
	return Range(cat, index, v, nil, true, false)
}

// Lt matches values strictly less than v.
func Lt(cat *catalog.Catalog, index string, v any) Query {
	return Range(cat, index, nil, v, false, false)
}

// Le matches values less than or equal to v.
func Le(cat *catalog.Catalog, index string, v any) Query {
	return Range(cat, index, nil, v, false, true)
}

// And intersects the operands. Execution evaluates the smallest
// operand first and stops early once the intersection is empty.
func And(qs ...Query) Query { return &andQuery{operands: qs} }

// Or unions the operands.
func Or(qs ...Query) Query { return &orQuery{operands: qs} }

// Not complements q against the union of the domains of the indexes
// it touches.
func Not(q Query) Query { return &notQuery{operand: q} }

type eqQuery struct {
	cat   *catalog.Catalog
	index string
	value any
}

func (q *eqQuery) Execute(ctx context.Context) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bm, err := q.cat.EvalLookup(q.index, q.value)
	if err != nil {
		return nil, err
	}
	return newResult(bm), nil
}

func (q *eqQuery) estimate() uint64 {
	return q.cat.EstimateLookup(q.index, q.value)
}

func (q *eqQuery) universe() (*roaring64.Bitmap, error) {
	return q.cat.EvalDomain(q.index)
}

type notEqQuery struct {
	cat   *catalog.Catalog
	index string
	value any
}

func (q *notEqQuery) Execute(ctx context.Context) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	domain, err := q.cat.EvalDomain(q.index)
	if err != nil {
		return nil, err
	}
	matched, err := q.cat.EvalLookup(q.index, q.value)
	if err != nil {
		return nil, err
	}
	domain.AndNot(matched)
	return newResult(domain), nil
}

func (q *notEqQuery) estimate() uint64 {
	domain, err := q.cat.EvalDomain(q.index)
	if err != nil {
		return 0
	}
	card := domain.GetCardinality()
	eq := q.cat.EstimateLookup(q.index, q.value)
	if eq > card {
		return 0
	}
	return card - eq
}

func (q *notEqQuery) universe() (*roaring64.Bitmap, error) {
	return q.cat.EvalDomain(q.index)
}

type rangeQuery struct {
	cat          *catalog.Catalog
	index        string
	lo, hi       any
	incLo, incHi bool
}

func (q *rangeQuery) Execute(ctx context.Context) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bm, err := q.cat.EvalRange(q.index, q.lo, q.hi, q.incLo, q.incHi)
	if err != nil {
		return nil, err
	}
	return newResult(bm), nil
}

func (q *rangeQuery) estimate() uint64 {
	// No per-range statistics; the index domain bounds the result.
	domain, err := q.cat.EvalDomain(q.index)
	if err != nil {
		return 0
	}
	return domain.GetCardinality()
}

func (q *rangeQuery) universe() (*roaring64.Bitmap, error) {
	return q.cat.EvalDomain(q.index)
}

type andQuery struct {
	operands []Query
}

func (q *andQuery) Execute(ctx context.Context) (*Result, error) {
	if len(q.operands) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidQuery, "AND requires at least one operand", nil)
	}

	// Smallest operand first bounds the intersection cost.
	ordered := make([]Query, len(q.operands))
	copy(ordered, q.operands)
	sortByEstimate(ordered)

	acc, err := ordered[0].Execute(ctx)
	if err != nil {
		return nil, err
	}
	bm := acc.bm
	for _, op := range ordered[1:] {
		if bm.IsEmpty() {
			break
		}
		next, err := op.Execute(ctx)
		if err != nil {
			return nil, err
		}
		bm.And(next.bm)
	}
	return newResult(bm), nil
}

func (q *andQuery) estimate() uint64 {
	if len(q.operands) == 0 {
		return 0
	}
	min := q.operands[0].estimate()
	for _, op := range q.operands[1:] {
		if e := op.estimate(); e < min {
			min = e
		}
	}
	return min
}

func (q *andQuery) universe() (*roaring64.Bitmap, error) {
	return unionUniverse(q.operands)
}

type orQuery struct {
	operands []Query
}

func (q *orQuery) Execute(ctx context.Context) (*Result, error) {
	if len(q.operands) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidQuery, "OR requires at least one operand", nil)
	}
	out := roaring64.New()
	for _, op := range q.operands {
		res, err := op.Execute(ctx)
		if err != nil {
			return nil, err
		}
		out.Or(res.bm)
	}
	return newResult(out), nil
}

func (q *orQuery) estimate() uint64 {
	var sum uint64
	for _, op := range q.operands {
		sum += op.estimate()
	}
	return sum
}

func (q *orQuery) universe() (*roaring64.Bitmap, error) {
	return unionUniverse(q.operands)
}

type notQuery struct {
	operand Query
}

func (q *notQuery) Execute(ctx context.Context) (*Result, error) {
	if q.operand == nil {
		return nil, errors.New(errors.ErrCodeInvalidQuery, "NOT requires an operand", nil)
	}
	uni, err := q.operand.universe()
	if err != nil {
		return nil, err
	}
	res, err := q.operand.Execute(ctx)
	if err != nil {
		return nil, err
	}
	uni.AndNot(res.bm)
	return newResult(uni), nil
}

func (q *notQuery) estimate() uint64 {
	uni, err := q.operand.universe()
	if err != nil {
		return 0
	}
	card := uni.GetCardinality()
	inner := q.operand.estimate()
	if inner > card {
		return 0
	}
	return card - inner
}

func (q *notQuery) universe() (*roaring64.Bitmap, error) {
	return q.operand.universe()
}

// sortByEstimate orders queries by ascending size estimate, stable.
func sortByEstimate(qs []Query) {
	type sized struct {
		q   Query
		est uint64
	}
	pairs := make([]sized, len(qs))
	for i, q := range qs {
		pairs[i] = sized{q: q, est: q.estimate()}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].est < pairs[j].est })
	for i, p := range pairs {
		qs[i] = p.q
	}
}

func unionUniverse(qs []Query) (*roaring64.Bitmap, error) {
	out := roaring64.New()
	for _, q := range qs {
		u, err := q.universe()
		if err != nil {
			return nil, err
		}
		out.Or(u)
	}
	return out, nil
}
