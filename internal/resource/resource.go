// Package resource defines the resource-tree collaborator interfaces
// the engine core depends on, plus an in-memory tree implementation for
// tests, the CLI, and embedders without a host tree of their own.
//
// The core never dereferences a resource's content itself; it only
// walks parent/child links and reads stable ids.
package resource

import (
	"github.com/treedex/treedex/internal/catalog"
)

// Resource is a node in the host's resource tree.
type Resource interface {
	// Ref returns the stable identifier for this resource,
	// valid for the resource's lifetime.
	Ref() catalog.Ref

	// Parent returns the enclosing resource, false at the root.
	Parent() (Resource, bool)

	// Children returns the child resources in insertion order.
	Children() []Resource

	// Name returns the resource's name within its parent.
	Name() string
}

// Service is a tree node hosting zero or more catalog instances.
// Multiple Service nodes may exist along different branches.
type Service interface {
	Resource

	// Catalogs returns the hosted catalog instances in registration
	// order. The order breaks ties when two instances of the same type
	// sit at the same ancestor depth.
	Catalogs() []*catalog.Catalog
}
