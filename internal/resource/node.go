package resource

import (
	"sync"

	"github.com/treedex/treedex/internal/catalog"
)

// Node is the in-memory Resource implementation. A node created with
// NewServiceNode additionally satisfies Service and can host catalog
// instances.
type Node struct {
	ref     catalog.Ref
	name    string
	service bool

	mu       sync.RWMutex
	parent   *Node
	children []*Node
	attrs    map[string]any
	catalogs []*catalog.Catalog
}

// NewNode creates a plain tree node.
func NewNode(ref catalog.Ref, name string) *Node {
	return &Node{ref: ref, name: name, attrs: make(map[string]any)}
}

// NewServiceNode creates a catalog-service node.
func NewServiceNode(ref catalog.Ref, name string) *Node {
	n := NewNode(ref, name)
	n.service = true
	return n
}

// Ref returns the stable resource identifier.
func (n *Node) Ref() catalog.Ref { return n.ref }

// Name returns the node name within its parent.
func (n *Node) Name() string { return n.name }

// IsService reports whether this node hosts catalog instances.
func (n *Node) IsService() bool { return n.service }

// Parent returns the enclosing node, false at the root.
func (n *Node) Parent() (Resource, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.parent == nil {
		return nil, false
	}
	return n.parent, true
}

// Children returns the child resources in insertion order.
func (n *Node) Children() []Resource {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]Resource, len(n.children))
	for i, c := range n.children {
		out[i] = c
	}
	return out
}

// AddChild links child under n and returns the child for chaining.
func (n *Node) AddChild(child *Node) *Node {
	n.mu.Lock()
	n.children = append(n.children, child)
	n.mu.Unlock()

	child.mu.Lock()
	child.parent = n
	child.mu.Unlock()
	return child
}

// RemoveChild unlinks child from n. No-op if absent.
func (n *Node) RemoveChild(child *Node) {
	n.mu.Lock()
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			break
		}
	}
	n.mu.Unlock()

	child.mu.Lock()
	child.parent = nil
	child.mu.Unlock()
}

// SetAttr stores an attribute on the node. The default indexing view
// wraps the node directly, so discriminators read these attributes.
func (n *Node) SetAttr(key string, value any) *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.attrs[key] = value
	return n
}

// Attr reads an attribute.
func (n *Node) Attr(key string) (any, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	v, ok := n.attrs[key]
	return v, ok
}

// AddCatalog hosts a catalog instance on this service node and returns
// the instance.
func (n *Node) AddCatalog(cat *catalog.Catalog) *catalog.Catalog {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.catalogs = append(n.catalogs, cat)
	return cat
}

// Catalogs returns hosted catalog instances in registration order.
func (n *Node) Catalogs() []*catalog.Catalog {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]*catalog.Catalog, len(n.catalogs))
	copy(out, n.catalogs)
	return out
}

// AttrDiscriminator returns a field discriminator reading the named
// attribute from a *Node view. Missing attributes are the absence
// sentinel.
func AttrDiscriminator(key string) catalog.Discriminator {
	return func(view any) (any, bool, error) {
		n, ok := view.(*Node)
		if !ok {
			return nil, false, nil
		}
		v, ok := n.Attr(key)
		return v, ok, nil
	}
}
