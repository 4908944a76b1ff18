package syncer

import (
	"sort"

	"github.com/treedex/treedex/internal/catalog"
)

// Options controls how a sync call applies the declared schema.
type Options struct {
	// Prune removes indexes present in the catalog but absent from the
	// declared schema. Default is additive-only: unknown indexes are
	// left untouched.
	Prune bool
}

// Plan is the diff between a catalog instance and its declared schema.
// Add and Rebuild follow the schema's declaration order so applying
// the plan preserves the declared index ordering; Remove is sorted.
type Plan struct {
	// Add lists declared indexes missing from the catalog, in schema
	// declaration order.
	Add []string
	// Remove lists catalog indexes absent from the schema. Empty unless
	// Options.Prune was set.
	Remove []string
	// Rebuild lists indexes present in both whose stored fingerprint no
	// longer matches the declared spec. They are replaced empty and
	// repopulated by the reindex pass.
	Rebuild []string
}

// Empty reports whether applying the plan would mutate the catalog.
func (p Plan) Empty() bool {
	return len(p.Add) == 0 && len(p.Remove) == 0 && len(p.Rebuild) == 0
}

// NeedsReindex reports whether the plan requires enumerating resources.
func (p Plan) NeedsReindex() bool {
	return len(p.Add) > 0 || len(p.Rebuild) > 0
}

// ComputePlan diffs a catalog instance against the declared schema for
// its type. It only reads the catalog; applying the plan is Sync's job.
func ComputePlan(cat *catalog.Catalog, schema *catalog.Schema, opts Options) Plan {
	var plan Plan

	declared := make(map[string]bool, len(schema.Specs))
	for _, spec := range schema.Specs {
		declared[spec.Name] = true
		idx, ok := cat.Index(spec.Name)
		switch {
		case !ok:
			plan.Add = append(plan.Add, spec.Name)
		case idx.Fingerprint() != spec.Fingerprint():
			plan.Rebuild = append(plan.Rebuild, spec.Name)
		}
	}

	if opts.Prune {
		for _, name := range cat.IndexNames() {
			if !declared[name] {
				plan.Remove = append(plan.Remove, name)
			}
		}
	}

	sort.Strings(plan.Remove)
	return plan
}
