package resource

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treedex/treedex/internal/catalog"
)

func TestNode_TreeLinks(t *testing.T) {
	root := NewNode(1, "root")
	docs := root.AddChild(NewNode(2, "docs"))
	a := docs.AddChild(NewNode(3, "a"))

	parent, ok := a.Parent()
	require.True(t, ok)
	assert.Equal(t, catalog.Ref(2), parent.Ref())

	_, ok = root.Parent()
	assert.False(t, ok)

	children := root.Children()
	require.Len(t, children, 1)
	assert.Equal(t, "docs", children[0].Name())

	root.RemoveChild(docs)
	assert.Empty(t, root.Children())
	_, ok = docs.Parent()
	assert.False(t, ok)
}

func TestNode_ServiceHostsCatalogs(t *testing.T) {
	svc := NewServiceNode(10, "catalogs")
	assert.True(t, svc.IsService())
	assert.False(t, NewNode(11, "plain").IsService())

	first := svc.AddCatalog(catalog.New("system"))
	second := svc.AddCatalog(catalog.New("system"))

	cats := svc.Catalogs()
	require.Len(t, cats, 2)
	// Registration order is preserved
	assert.Equal(t, first.ID(), cats[0].ID())
	assert.Equal(t, second.ID(), cats[1].ID())
}

func TestAttrDiscriminator(t *testing.T) {
	n := NewNode(1, "doc").SetAttr("name", "doc1")
	disc := AttrDiscriminator("name")

	v, ok, err := disc(n)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "doc1", v)

	// Missing attribute is the absence sentinel
	_, ok, err = disc(NewNode(2, "bare"))
	require.NoError(t, err)
	assert.False(t, ok)

	// Non-node views are absent, not an error
	_, ok, err = disc("not a node")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryBus_PublishAndClose(t *testing.T) {
	bus := NewMemoryBus(4)
	n := NewNode(1, "doc")

	bus.Publish(OpCreated, n)
	bus.Publish(OpModified, n)

	ev := <-bus.Events()
	assert.Equal(t, OpCreated, ev.Operation)
	assert.Equal(t, catalog.Ref(1), ev.Resource.Ref())
	assert.WithinDuration(t, time.Now(), ev.Timestamp, time.Minute)

	ev = <-bus.Events()
	assert.Equal(t, OpModified, ev.Operation)

	bus.Close()
	bus.Close() // safe to call twice
	bus.Publish(OpRemoved, n)

	_, open := <-bus.Events()
	assert.False(t, open)
}

func TestOperation_String(t *testing.T) {
	assert.Equal(t, "CREATED", OpCreated.String())
	assert.Equal(t, "MODIFIED", OpModified.String())
	assert.Equal(t, "REMOVED", OpRemoved.String())
	assert.Equal(t, "UNKNOWN", Operation(99).String())
}
