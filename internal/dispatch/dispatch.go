// Package dispatch keeps catalogs current as the resource tree
// changes. It consumes tree events from a bus, determines which
// catalog types each resource opts into, resolves the covering
// catalog instance up the ancestor chain, and reindexes or unindexes
// the resource there. Resources not covered by an interested catalog
// type in their part of the tree are skipped silently.
package dispatch

import (
	"context"
	"log/slog"

	"github.com/treedex/treedex/internal/locator"
	"github.com/treedex/treedex/internal/resource"
	"github.com/treedex/treedex/internal/telemetry"
)

// SystemCatalogType is the catalog type every resource is indexed into
// unless its metadata opts out explicitly.
const SystemCatalogType = "system"

// ViewFactory builds the indexing view discriminators read for one
// resource. A nil factory means the default view, which is the
// resource itself.
type ViewFactory func(res resource.Resource) any

// Policy is one resource's stance toward a catalog type.
type Policy struct {
	Enabled bool
	Factory ViewFactory
}

// Metadata supplies per-resource catalog policies. The dispatcher
// merges them over the implicit system-catalog interest; an explicit
// disabled entry opts the resource out of that type.
type Metadata interface {
	CatalogPolicies(res resource.Resource) map[string]Policy
}

// AttrMetadata reads policies from a node attribute holding a
// map[string]Policy. Resources without the attribute get defaults.
type AttrMetadata struct {
	// Key is the attribute name, "catalogs" when empty.
	Key string
}

func (m AttrMetadata) CatalogPolicies(res resource.Resource) map[string]Policy {
	key := m.Key
	if key == "" {
		key = "catalogs"
	}
	node, ok := res.(*resource.Node)
	if !ok {
		return nil
	}
	v, ok := node.Attr(key)
	if !ok {
		return nil
	}
	policies, _ := v.(map[string]Policy)
	return policies
}

// Dispatcher applies tree events to catalogs.
type Dispatcher struct {
	locator *locator.Locator
	meta    Metadata
	logger  *slog.Logger
}

func New(loc *locator.Locator, meta Metadata) *Dispatcher {
	return &Dispatcher{
		locator: loc,
		meta:    meta,
		logger:  slog.Default().With(slog.String("component", "dispatch")),
	}
}

// Run consumes events until the bus closes or the context is
// cancelled. Removal events must be published before the node is
// detached from its parent, while the ancestor chain is still
// walkable.
func (d *Dispatcher) Run(ctx context.Context, bus resource.Bus) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-bus.Events():
			if !ok {
				return nil
			}
			d.Handle(ev)
		}
	}
}

// Handle applies a single event synchronously.
func (d *Dispatcher) Handle(ev resource.Event) {
	switch ev.Operation {
	case resource.OpCreated, resource.OpModified:
		d.upsert(ev.Resource)
	case resource.OpRemoved:
		d.remove(ev.Resource)
	}
}

// interests merges the implicit system-catalog entry with the
// resource's declared policies. Disabled entries drop out.
func (d *Dispatcher) interests(res resource.Resource) map[string]Policy {
	out := map[string]Policy{SystemCatalogType: {Enabled: true}}
	if d.meta != nil {
		for ctype, policy := range d.meta.CatalogPolicies(res) {
			out[ctype] = policy
		}
	}
	for ctype, policy := range out {
		if !policy.Enabled {
			delete(out, ctype)
		}
	}
	return out
}

func (d *Dispatcher) upsert(res resource.Resource) {
	// A new or reshaped subtree that hosts catalogs changes resolution
	// for everything that would now resolve through it.
	if hostsCatalogs(res) {
		d.locator.Reset()
	}
	for ctype, policy := range d.interests(res) {
		cat, ok := d.locator.FindCatalog(res, ctype)
		if !ok {
			continue
		}
		view := any(res)
		if policy.Factory != nil {
			view = policy.Factory(res)
		}
		if err := cat.Reindex(res.Ref(), view); err != nil {
			telemetry.IndexFailures.WithLabelValues(ctype).Inc()
			d.logger.Warn("partial reindex",
				slog.Uint64("ref", res.Ref()),
				slog.String("catalog_type", ctype),
				slog.String("error", err.Error()))
			continue
		}
		telemetry.DocsIndexed.WithLabelValues(ctype).Inc()
	}
}

func (d *Dispatcher) remove(res resource.Resource) {
	for ctype := range d.interests(res) {
		cat, ok := d.locator.FindCatalog(res, ctype)
		if !ok {
			continue
		}
		cat.UnindexDoc(res.Ref())
		telemetry.DocsUnindexed.WithLabelValues(ctype).Inc()
	}
	// Removing a subtree that hosts catalogs changes resolution for
	// everything that resolved through it.
	if hostsCatalogs(res) {
		d.locator.Reset()
	}
}

func hostsCatalogs(res resource.Resource) bool {
	if svc, ok := res.(resource.Service); ok && len(svc.Catalogs()) > 0 {
		return true
	}
	for _, child := range res.Children() {
		if hostsCatalogs(child) {
			return true
		}
	}
	return false
}
