package query

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treedex/treedex/internal/catalog"
	"github.com/treedex/treedex/internal/errors"
)

func fieldSpec(name string) catalog.IndexSpec {
	return catalog.IndexSpec{
		Name:            name,
		Kind:            catalog.KindField,
		DiscriminatorID: "attr:" + name,
		Discriminate: func(view any) (any, bool, error) {
			m, ok := view.(map[string]any)
			if !ok {
				return nil, false, nil
			}
			v, ok := m[name]
			return v, ok, nil
		},
	}
}

func keywordSpec(name string) catalog.IndexSpec {
	spec := fieldSpec(name)
	spec.Kind = catalog.KindKeyword
	return spec
}

// buildCatalog indexes the given docs (ref -> view) into a new catalog
// holding the given index specs.
func buildCatalog(t *testing.T, ctype string, specs []catalog.IndexSpec, docs map[catalog.Ref]map[string]any) *catalog.Catalog {
	t.Helper()
	cat := catalog.New(ctype)
	for _, spec := range specs {
		idx, err := catalog.NewIndex(spec)
		require.NoError(t, err)
		require.NoError(t, cat.AddIndex(idx))
	}
	for ref, view := range docs {
		require.NoError(t, cat.IndexDoc(ref, view))
	}
	return cat
}

func TestEq(t *testing.T) {
	cat := buildCatalog(t, "system", []catalog.IndexSpec{fieldSpec("name")}, map[catalog.Ref]map[string]any{
		1: {"name": "doc1"},
		2: {"name": "doc2"},
		3: {"name": "doc1"},
	})

	res, err := Eq(cat, "name", "doc1").Execute(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{1, 3}, res.Refs())
}

func TestNotEq_ComplementsWithinIndexDomain(t *testing.T) {
	cat := buildCatalog(t, "system", []catalog.IndexSpec{fieldSpec("name")}, map[catalog.Ref]map[string]any{
		1: {"name": "doc1"},
		2: {"name": "doc2"},
		3: {"name": "doc3"},
	})

	res, err := NotEq(cat, "name", "doc2").Execute(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{1, 3}, res.Refs())
}

func TestRangeAndComparisonSugar(t *testing.T) {
	docs := make(map[catalog.Ref]map[string]any)
	for i := 1; i <= 5; i++ {
		docs[catalog.Ref(i)] = map[string]any{"size": i * 10}
	}
	cat := buildCatalog(t, "system", []catalog.IndexSpec{fieldSpec("size")}, docs)

	ctx := context.Background()

	res, err := Range(cat, "size", 20, 40, true, true).Execute(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{2, 3, 4}, res.Refs())

	res, err = Gt(cat, "size", 30).Execute(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{4, 5}, res.Refs())

	res, err = Le(cat, "size", 20).Execute(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{1, 2}, res.Refs())
}

func TestAnd_IntersectsAcrossCatalogInstances(t *testing.T) {
	// Given: two catalog instances of different types over the same resources
	app1 := buildCatalog(t, "app1", []catalog.IndexSpec{fieldSpec("orders")}, map[catalog.Ref]map[string]any{
		1: {"orders": "X"},
		2: {"orders": "X"},
		3: {"orders": "Y"},
	})
	sdi := buildCatalog(t, "sdi", []catalog.IndexSpec{keywordSpec("interfaces")}, map[catalog.Ref]map[string]any{
		1: {"interfaces": []string{"folder"}},
		2: {"interfaces": []string{"content"}},
		3: {"interfaces": []string{"folder"}},
	})

	// When: combining indexes from both instances
	q := And(
		Eq(app1, "orders", "X"),
		Eq(sdi, "interfaces", "folder"),
	)
	res, err := q.Execute(context.Background())
	require.NoError(t, err)

	// Then: only resources satisfying both remain
	assert.ElementsMatch(t, []uint64{1}, res.Refs())
}

func TestNot_UniverseIsUnionOfTouchedDomains(t *testing.T) {
	// Given: an index whose domain is refs 1-3
	cat := buildCatalog(t, "system", []catalog.IndexSpec{fieldSpec("name")}, map[catalog.Ref]map[string]any{
		1: {"name": "a"},
		2: {"name": "b"},
		3: {"name": "c"},
	})

	res, err := Not(Eq(cat, "name", "b")).Execute(context.Background())
	require.NoError(t, err)

	// Refs outside the index domain never appear
	assert.ElementsMatch(t, []uint64{1, 3}, res.Refs())
}

func TestAnd_EmptyOperandsIsInvalid(t *testing.T) {
	_, err := And().Execute(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidQuery, errors.GetCode(err))

	_, err = Or().Execute(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidQuery, errors.GetCode(err))
}

func TestExecute_TypeMismatchSurfacesToCaller(t *testing.T) {
	cat := buildCatalog(t, "system", []catalog.IndexSpec{fieldSpec("name")}, map[catalog.Ref]map[string]any{
		1: {"name": "doc1"},
	})

	_, err := Eq(cat, "name", 42).Execute(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeTypeMismatch, errors.GetCode(err))
}

func TestExecute_CancelledContext(t *testing.T) {
	cat := buildCatalog(t, "system", []catalog.IndexSpec{fieldSpec("name")}, map[catalog.Ref]map[string]any{
		1: {"name": "doc1"},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Eq(cat, "name", "doc1").Execute(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecute_DoesNotMutateIndexes(t *testing.T) {
	cat := buildCatalog(t, "system", []catalog.IndexSpec{fieldSpec("name")}, map[catalog.Ref]map[string]any{
		1: {"name": "doc1"},
		2: {"name": "doc2"},
	})

	res1, err := Eq(cat, "name", "doc1").Execute(context.Background())
	require.NoError(t, err)
	// Mutating the result set must not leak into the index
	for _, ref := range res1.Refs() {
		_ = ref
	}

	res2, err := Eq(cat, "name", "doc1").Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, res1.Refs(), res2.Refs())
}

// newRandomCatalogs builds two single-index catalogs with randomized
// contents for the algebraic property checks.
func newRandomCatalogs(t *testing.T, rng *rand.Rand) (a, b, c Query) {
	t.Helper()
	docs := func() map[catalog.Ref]map[string]any {
		out := make(map[catalog.Ref]map[string]any)
		for ref := catalog.Ref(1); ref <= 64; ref++ {
			out[ref] = map[string]any{"tag": fmt.Sprintf("t%d", rng.Intn(4))}
		}
		return out
	}
	catA := buildCatalog(t, "alpha", []catalog.IndexSpec{fieldSpec("tag")}, docs())
	catB := buildCatalog(t, "beta", []catalog.IndexSpec{fieldSpec("tag")}, docs())
	catC := buildCatalog(t, "gamma", []catalog.IndexSpec{fieldSpec("tag")}, docs())

	return Eq(catA, "tag", fmt.Sprintf("t%d", rng.Intn(4))),
		Eq(catB, "tag", fmt.Sprintf("t%d", rng.Intn(4))),
		Eq(catC, "tag", fmt.Sprintf("t%d", rng.Intn(4)))
}

func TestQueryAlgebra_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	ctx := context.Background()

	exec := func(q Query) []uint64 {
		res, err := q.Execute(ctx)
		require.NoError(t, err)
		return res.Refs()
	}

	for trial := 0; trial < 20; trial++ {
		a, b, c := newRandomCatalogs(t, rng)

		// Commutativity
		assert.Equal(t, exec(And(a, b)), exec(And(b, a)))
		assert.Equal(t, exec(Or(a, b)), exec(Or(b, a)))

		// Associativity
		assert.Equal(t, exec(And(And(a, b), c)), exec(And(a, And(b, c))))
		assert.Equal(t, exec(Or(Or(a, b), c)), exec(Or(a, Or(b, c))))

		// De Morgan: NOT(a OR b) == NOT(a) AND NOT(b)
		assert.Equal(t, exec(Not(Or(a, b))), exec(And(Not(a), Not(b))))

		// De Morgan: NOT(a AND b) == NOT(a) OR NOT(b)
		assert.Equal(t, exec(Not(And(a, b))), exec(Or(Not(a), Not(b))))
	}
}
