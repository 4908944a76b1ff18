package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treedex/treedex/internal/catalog"
	"github.com/treedex/treedex/internal/locator"
	"github.com/treedex/treedex/internal/resource"
)

func nameIndex(t *testing.T) catalog.Index {
	t.Helper()
	idx, err := catalog.NewIndex(catalog.IndexSpec{
		Name:            "name",
		Kind:            catalog.KindField,
		DiscriminatorID: "attr:name",
		Discriminate:    resource.AttrDiscriminator("name"),
	})
	require.NoError(t, err)
	return idx
}

// fixture is a tree with a system catalog at the root and an app1
// catalog one level down:
//
//	root
//	├── catalogs (system)
//	└── site
//	    ├── catalogs (app1)
//	    └── doc1
func fixture(t *testing.T) (doc1 *resource.Node, system, app1 *catalog.Catalog) {
	t.Helper()

	root := resource.NewNode(1, "root")
	rootSvc := resource.NewServiceNode(2, "catalogs")
	root.AddChild(rootSvc)
	system = rootSvc.AddCatalog(catalog.New("system"))
	require.NoError(t, system.AddIndex(nameIndex(t)))

	site := root.AddChild(resource.NewNode(3, "site"))
	siteSvc := resource.NewServiceNode(4, "catalogs")
	site.AddChild(siteSvc)
	app1 = siteSvc.AddCatalog(catalog.New("app1"))
	require.NoError(t, app1.AddIndex(nameIndex(t)))

	doc1 = site.AddChild(resource.NewNode(5, "doc1"))
	doc1.SetAttr("name", "doc1")
	return doc1, system, app1
}

func lookupRefs(t *testing.T, cat *catalog.Catalog, name, value string) []uint64 {
	t.Helper()
	bm, err := cat.EvalLookup(name, value)
	require.NoError(t, err)
	return bm.ToArray()
}

func TestHandle_CreatedIndexesIntoSystemCatalog(t *testing.T) {
	// Given: a tree and a dispatcher with no extra metadata
	doc1, system, app1 := fixture(t)
	d := New(locator.New(), nil)

	// When: a created event arrives
	d.Handle(resource.Event{Operation: resource.OpCreated, Resource: doc1})

	// Then: only the implicit system interest applies
	assert.Equal(t, []uint64{5}, lookupRefs(t, system, "name", "doc1"))
	assert.Empty(t, lookupRefs(t, app1, "name", "doc1"))
}

func TestHandle_MetadataOptIn(t *testing.T) {
	doc1, system, app1 := fixture(t)
	doc1.SetAttr("catalogs", map[string]Policy{"app1": {Enabled: true}})
	d := New(locator.New(), AttrMetadata{})

	d.Handle(resource.Event{Operation: resource.OpCreated, Resource: doc1})

	// app1 resolves to the nearer instance under site
	assert.Equal(t, []uint64{5}, lookupRefs(t, system, "name", "doc1"))
	assert.Equal(t, []uint64{5}, lookupRefs(t, app1, "name", "doc1"))
}

func TestHandle_MetadataOptOutOfSystem(t *testing.T) {
	doc1, system, _ := fixture(t)
	doc1.SetAttr("catalogs", map[string]Policy{SystemCatalogType: {Enabled: false}})
	d := New(locator.New(), AttrMetadata{})

	d.Handle(resource.Event{Operation: resource.OpCreated, Resource: doc1})

	assert.Empty(t, lookupRefs(t, system, "name", "doc1"))
}

func TestHandle_ViewFactoryOverridesDefaultView(t *testing.T) {
	doc1, _, app1 := fixture(t)
	doc1.SetAttr("catalogs", map[string]Policy{
		"app1": {
			Enabled: true,
			Factory: func(res resource.Resource) any {
				return resource.NewNode(res.Ref(), "view").SetAttr("name", "projected")
			},
		},
	})
	d := New(locator.New(), AttrMetadata{})

	d.Handle(resource.Event{Operation: resource.OpCreated, Resource: doc1})

	assert.Equal(t, []uint64{5}, lookupRefs(t, app1, "name", "projected"))
	assert.Empty(t, lookupRefs(t, app1, "name", "doc1"))
}

func TestHandle_ModifiedReindexes(t *testing.T) {
	doc1, system, _ := fixture(t)
	d := New(locator.New(), nil)
	d.Handle(resource.Event{Operation: resource.OpCreated, Resource: doc1})

	// When: the resource changes and a modified event arrives
	doc1.SetAttr("name", "renamed")
	d.Handle(resource.Event{Operation: resource.OpModified, Resource: doc1})

	// Then: the old value is gone, not duplicated
	assert.Empty(t, lookupRefs(t, system, "name", "doc1"))
	assert.Equal(t, []uint64{5}, lookupRefs(t, system, "name", "renamed"))
}

func TestHandle_RemovedUnindexes(t *testing.T) {
	doc1, system, _ := fixture(t)
	d := New(locator.New(), nil)
	d.Handle(resource.Event{Operation: resource.OpCreated, Resource: doc1})

	d.Handle(resource.Event{Operation: resource.OpRemoved, Resource: doc1})

	assert.Empty(t, lookupRefs(t, system, "name", "doc1"))
}

func TestHandle_UncoveredTypeSkippedSilently(t *testing.T) {
	doc1, _, _ := fixture(t)
	doc1.SetAttr("catalogs", map[string]Policy{"ghost": {Enabled: true}})
	d := New(locator.New(), AttrMetadata{})

	// No ghost catalog anywhere in the chain; must not panic or error
	d.Handle(resource.Event{Operation: resource.OpCreated, Resource: doc1})
}

func TestHandle_PartialIndexFailureStillIndexesRest(t *testing.T) {
	// Given: a system catalog with one healthy and one panicking index
	root := resource.NewNode(1, "root")
	svc := resource.NewServiceNode(2, "catalogs")
	root.AddChild(svc)
	system := svc.AddCatalog(catalog.New("system"))
	require.NoError(t, system.AddIndex(nameIndex(t)))
	bad, err := catalog.NewIndex(catalog.IndexSpec{
		Name:            "bad",
		Kind:            catalog.KindField,
		DiscriminatorID: "boom",
		Discriminate:    func(any) (any, bool, error) { panic("boom") },
	})
	require.NoError(t, err)
	require.NoError(t, system.AddIndex(bad))

	doc := root.AddChild(resource.NewNode(3, "doc")).SetAttr("name", "doc")
	d := New(locator.New(), nil)

	d.Handle(resource.Event{Operation: resource.OpCreated, Resource: doc})

	assert.Equal(t, []uint64{3}, lookupRefs(t, system, "name", "doc"))
}

func TestRun_ConsumesBusUntilClosed(t *testing.T) {
	doc1, system, _ := fixture(t)
	bus := resource.NewMemoryBus(8)
	d := New(locator.New(), nil)

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background(), bus) }()

	bus.Publish(resource.OpCreated, doc1)
	bus.Close()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop on bus close")
	}
	assert.Equal(t, []uint64{5}, lookupRefs(t, system, "name", "doc1"))
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	bus := resource.NewMemoryBus(1)
	defer bus.Close()
	d := New(locator.New(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, bus) }()
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop on cancel")
	}
}

func TestRemove_ServiceSubtreeResetsLocatorCache(t *testing.T) {
	// Given: a cached resolution through the nearer app1 instance
	doc1, _, app1 := fixture(t)
	loc := locator.New()
	cached, ok := loc.FindCatalog(doc1, "app1")
	require.True(t, ok)
	require.Equal(t, app1.ID(), cached.ID())

	site := doc1
	parent, _ := site.Parent()
	siteNode := parent.(*resource.Node)
	svc := siteNode.Children()[0].(*resource.Node)

	// When: the service node is removed (event first, then detach)
	d := New(loc, nil)
	d.Handle(resource.Event{Operation: resource.OpRemoved, Resource: svc})
	siteNode.RemoveChild(svc)

	// Then: resolution re-runs instead of serving the stale entry
	_, ok = loc.FindCatalog(doc1, "app1")
	assert.False(t, ok)
}

func TestCreated_CatalogHostResetsLocatorCache(t *testing.T) {
	// Given: doc1 indexed into the root system catalog and the
	// resolution cached there
	doc1, system, _ := fixture(t)
	d := New(locator.New(), nil)
	d.Handle(resource.Event{Operation: resource.OpCreated, Resource: doc1})
	require.Equal(t, []uint64{5}, lookupRefs(t, system, "name", "doc1"))

	// When: a nearer system catalog appears under site
	parent, ok := doc1.Parent()
	require.True(t, ok)
	site := parent.(*resource.Node)
	svc := resource.NewServiceNode(6, "catalogs2")
	site.AddChild(svc)
	nearer := svc.AddCatalog(catalog.New("system"))
	require.NoError(t, nearer.AddIndex(nameIndex(t)))
	d.Handle(resource.Event{Operation: resource.OpCreated, Resource: svc})
	d.Handle(resource.Event{Operation: resource.OpModified, Resource: doc1})

	// Then: the reindex lands in the nearer instance, not the stale
	// cached one
	assert.Equal(t, []uint64{5}, lookupRefs(t, nearer, "name", "doc1"))
}
