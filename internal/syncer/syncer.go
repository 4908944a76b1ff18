// Package syncer reconciles catalog instances against their declared
// schemas. A sync call computes the minimal diff (additions, removals,
// fingerprint-driven rebuilds), applies it, and repopulates new or
// rebuilt indexes from an externally supplied resource enumerator.
// Re-running a sync against a converged catalog is a no-op.
package syncer

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/treedex/treedex/internal/catalog"
	treederrors "github.com/treedex/treedex/internal/errors"
	"github.com/treedex/treedex/internal/locator"
	"github.com/treedex/treedex/internal/resource"
	"github.com/treedex/treedex/internal/telemetry"
)

// Doc is one resource handed to the reindex pass: its ref and the view
// its discriminators read.
type Doc struct {
	Ref  catalog.Ref
	View any
}

// Enumerator yields the resources subject to a catalog instance. The
// engine does not discover resources itself; hosts supply enumeration.
type Enumerator interface {
	Enumerate(ctx context.Context, cat *catalog.Catalog) ([]Doc, error)
}

// EnumeratorFunc adapts a function to the Enumerator interface.
type EnumeratorFunc func(ctx context.Context, cat *catalog.Catalog) ([]Doc, error)

func (f EnumeratorFunc) Enumerate(ctx context.Context, cat *catalog.Catalog) ([]Doc, error) {
	return f(ctx, cat)
}

// Report summarizes one sync call. Failed maps refs whose indexing
// failed partially to the aggregated error; the rest of the pass still
// completed.
type Report struct {
	CatalogID   string
	CatalogType string
	Plan        Plan
	Indexed     int
	Failed      map[catalog.Ref]error
}

// Syncer applies declared schemas to live catalog instances.
type Syncer struct {
	registry *catalog.Registry
	logger   *slog.Logger

	// MaxConcurrent bounds how many catalogs SyncAll reconciles in
	// parallel. Zero means no limit.
	MaxConcurrent int
}

func New(registry *catalog.Registry) *Syncer {
	return &Syncer{
		registry: registry,
		logger:   slog.Default().With(slog.String("component", "syncer")),
	}
}

// Sync brings one catalog instance in line with the registry's declared
// schema for its type. Removals apply first, then empty additions and
// rebuilds, then a single reindex pass over the enumerated resources
// that populates only the new and rebuilt indexes. Cancellation is
// checked between resources; already-indexed resources stay indexed.
func (s *Syncer) Sync(ctx context.Context, cat *catalog.Catalog, enum Enumerator, opts Options) (*Report, error) {
	report, err := s.sync(ctx, cat, enum, opts)
	status := "success"
	if err != nil {
		status = "failure"
	}
	telemetry.SyncRuns.WithLabelValues(status).Inc()
	return report, err
}

func (s *Syncer) sync(ctx context.Context, cat *catalog.Catalog, enum Enumerator, opts Options) (*Report, error) {
	schema, err := s.registry.Lookup(cat.Type())
	if err != nil {
		return nil, err
	}

	plan := ComputePlan(cat, schema, opts)
	report := &Report{
		CatalogID:   cat.ID(),
		CatalogType: cat.Type(),
		Plan:        plan,
		Failed:      make(map[catalog.Ref]error),
	}

	// Restored indexes carry their persisted fingerprint but no
	// discriminator. Re-bind the declared spec to every index the plan
	// keeps as-is so future indexing calls work.
	for _, spec := range schema.Specs {
		if idx, ok := cat.Index(spec.Name); ok && idx.Fingerprint() == spec.Fingerprint() {
			idx.AttachSpec(spec)
		}
	}

	for _, name := range plan.Remove {
		if err := cat.RemoveIndex(name); err != nil {
			return report, treederrors.Wrap(treederrors.ErrCodeSyncFailed, err)
		}
		s.logger.Info("index pruned",
			slog.String("catalog_type", cat.Type()),
			slog.String("index", name))
	}

	for _, name := range plan.Add {
		spec, _ := schema.Spec(name)
		idx, err := catalog.NewIndex(spec)
		if err != nil {
			return report, err
		}
		if err := cat.AddIndex(idx); err != nil {
			return report, treederrors.Wrap(treederrors.ErrCodeSyncFailed, err)
		}
	}

	for _, name := range plan.Rebuild {
		spec, _ := schema.Spec(name)
		idx, err := catalog.NewIndex(spec)
		if err != nil {
			return report, err
		}
		if err := cat.ReplaceIndex(idx); err != nil {
			return report, treederrors.Wrap(treederrors.ErrCodeSyncFailed, err)
		}
		s.logger.Info("index rebuilt",
			slog.String("catalog_type", cat.Type()),
			slog.String("index", name),
			slog.String("fingerprint", spec.Fingerprint()))
	}

	// A converged catalog skips enumeration entirely.
	if !plan.NeedsReindex() {
		return report, nil
	}

	targets := append(append([]string{}, plan.Add...), plan.Rebuild...)
	docs, err := enum.Enumerate(ctx, cat)
	if err != nil {
		return report, treederrors.Wrap(treederrors.ErrCodeSyncFailed, err)
	}

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := cat.IndexDocInto(doc.Ref, doc.View, targets); err != nil {
			report.Failed[doc.Ref] = err
			continue
		}
		report.Indexed++
	}

	s.logger.Info("catalog synchronized",
		slog.String("catalog_type", cat.Type()),
		slog.String("catalog_id", cat.ID()),
		slog.Int("added", len(plan.Add)),
		slog.Int("rebuilt", len(plan.Rebuild)),
		slog.Int("removed", len(plan.Remove)),
		slog.Int("indexed", report.Indexed),
		slog.Int("failed", len(report.Failed)))
	return report, nil
}

// SyncAll reconciles every catalog instance of the given type found in
// the subtree under root. Independent instances sync concurrently;
// mutation of any single instance stays serialized inside Sync.
func (s *Syncer) SyncAll(ctx context.Context, loc *locator.Locator, root resource.Resource, ctype string, enum Enumerator, opts Options) ([]*Report, error) {
	extent := loc.FindAllCatalogs(root, ctype)
	if len(extent) == 0 {
		return nil, nil
	}

	reports := make([]*Report, len(extent))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	if s.MaxConcurrent > 0 {
		g.SetLimit(s.MaxConcurrent)
	}
	for i, cat := range extent {
		i, cat := i, cat
		g.Go(func() error {
			report, err := s.Sync(gctx, cat, enum, opts)
			mu.Lock()
			reports[i] = report
			mu.Unlock()
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return reports, err
	}
	return reports, nil
}
