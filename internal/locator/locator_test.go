package locator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treedex/treedex/internal/catalog"
	"github.com/treedex/treedex/internal/resource"
)

// buildTree constructs:
//
//	root
//	├── catalogs        (service: system=rootSys, app1=rootApp)
//	└── dept
//	    ├── catalogs    (service: system=deptSys)
//	    └── docs
//	        └── doc1
func buildTree(t *testing.T) (root, doc1 *resource.Node, rootSys, rootApp, deptSys *catalog.Catalog) {
	t.Helper()

	root = resource.NewNode(1, "root")
	rootSvc := resource.NewServiceNode(2, "catalogs")
	root.AddChild(rootSvc)
	rootSys = rootSvc.AddCatalog(catalog.New("system"))
	rootApp = rootSvc.AddCatalog(catalog.New("app1"))

	dept := root.AddChild(resource.NewNode(3, "dept"))
	deptSvc := resource.NewServiceNode(4, "catalogs")
	dept.AddChild(deptSvc)
	deptSys = deptSvc.AddCatalog(catalog.New("system"))

	docs := dept.AddChild(resource.NewNode(5, "docs"))
	doc1 = docs.AddChild(resource.NewNode(6, "doc1"))
	return root, doc1, rootSys, rootApp, deptSys
}

func TestFindCatalog_NearestAncestorWins(t *testing.T) {
	// Given: "system" instances at two ancestor depths
	_, doc1, rootSys, _, deptSys := buildTree(t)

	l := NewWithCacheSize(0)

	// When: resolving from a deep leaf
	cat, ok := l.FindCatalog(doc1, "system")

	// Then: the closer instance is chosen
	require.True(t, ok)
	assert.Equal(t, deptSys.ID(), cat.ID())
	assert.NotEqual(t, rootSys.ID(), cat.ID())
}

func TestFindCatalog_WalksPastUncoveredTypes(t *testing.T) {
	_, doc1, _, rootApp, _ := buildTree(t)

	l := NewWithCacheSize(0)

	// app1 only exists at the root; the walk continues upward
	cat, ok := l.FindCatalog(doc1, "app1")
	require.True(t, ok)
	assert.Equal(t, rootApp.ID(), cat.ID())
}

func TestFindCatalog_MissIsNotAnError(t *testing.T) {
	_, doc1, _, _, _ := buildTree(t)

	l := New()
	cat, ok := l.FindCatalog(doc1, "ghost")
	assert.False(t, ok)
	assert.Nil(t, cat)

	cat, ok = l.FindCatalog(nil, "system")
	assert.False(t, ok)
	assert.Nil(t, cat)
}

func TestFindCatalog_TieBrokenByRegistrationOrder(t *testing.T) {
	// Given: two services under the same node, both hosting "system"
	root := resource.NewNode(1, "root")
	svcA := resource.NewServiceNode(2, "a")
	svcB := resource.NewServiceNode(3, "b")
	root.AddChild(svcA)
	root.AddChild(svcB)
	first := svcA.AddCatalog(catalog.New("system"))
	svcB.AddCatalog(catalog.New("system"))

	leaf := root.AddChild(resource.NewNode(4, "leaf"))

	l := NewWithCacheSize(0)
	cat, ok := l.FindCatalog(leaf, "system")
	require.True(t, ok)
	assert.Equal(t, first.ID(), cat.ID())
}

func TestFindCatalog_CacheServesRepeatLookups(t *testing.T) {
	root, doc1, _, _, deptSys := buildTree(t)

	l := New()
	cat, ok := l.FindCatalog(doc1, "system")
	require.True(t, ok)
	require.Equal(t, deptSys.ID(), cat.ID())

	// Tree mutation without Reset: the cached resolution still serves
	dept := root.Children()[1].(*resource.Node)
	svc := dept.Children()[0].(*resource.Node)
	dept.RemoveChild(svc)

	cat, ok = l.FindCatalog(doc1, "system")
	require.True(t, ok)
	assert.Equal(t, deptSys.ID(), cat.ID())

	// After Reset the walk re-runs and finds the root instance
	l.Reset()
	cat, ok = l.FindCatalog(doc1, "system")
	require.True(t, ok)
	assert.NotEqual(t, deptSys.ID(), cat.ID())
}

func TestFindAllCatalogs_DepthFirstPreOrder(t *testing.T) {
	root, _, rootSys, _, deptSys := buildTree(t)

	l := New()
	extent := l.FindAllCatalogs(root, "system")

	// Pre-order: the root service comes before the dept service
	require.Len(t, extent, 2)
	assert.Equal(t, rootSys.ID(), extent[0].ID())
	assert.Equal(t, deptSys.ID(), extent[1].ID())

	// Deterministic across calls
	again := l.FindAllCatalogs(root, "system")
	require.Len(t, again, 2)
	assert.Equal(t, extent[0].ID(), again[0].ID())
	assert.Equal(t, extent[1].ID(), again[1].ID())
}

func TestFindAllCatalogs_EmptyExtent(t *testing.T) {
	root, _, _, _, _ := buildTree(t)
	l := New()
	assert.Empty(t, l.FindAllCatalogs(root, "ghost"))
	assert.Empty(t, l.FindAllCatalogs(nil, "system"))
}
