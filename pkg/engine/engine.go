package engine

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/treedex/treedex/internal/async"
	"github.com/treedex/treedex/internal/catalog"
	"github.com/treedex/treedex/internal/config"
	"github.com/treedex/treedex/internal/dispatch"
	"github.com/treedex/treedex/internal/locator"
	"github.com/treedex/treedex/internal/query"
	"github.com/treedex/treedex/internal/resource"
	"github.com/treedex/treedex/internal/store"
	"github.com/treedex/treedex/internal/syncer"
	"github.com/treedex/treedex/internal/telemetry"
)

// Aliases so embedders work entirely through this package.
type (
	Ref           = catalog.Ref
	Kind          = catalog.Kind
	IndexSpec     = catalog.IndexSpec
	Discriminator = catalog.Discriminator
	Catalog       = catalog.Catalog
	Registry      = catalog.Registry

	Resource = resource.Resource
	Node     = resource.Node
	Event    = resource.Event

	Policy   = dispatch.Policy
	Metadata = dispatch.Metadata

	Doc         = syncer.Doc
	Enumerator  = syncer.Enumerator
	SyncOptions = syncer.Options
	SyncReport  = syncer.Report

	Query  = query.Query
	Result = query.Result
)

const (
	KindField   = catalog.KindField
	KindKeyword = catalog.KindKeyword
	KindText    = catalog.KindText
)

// Query constructors, re-exported.
var (
	Eq    = query.Eq
	NotEq = query.NotEq
	Range = query.Range
	Gt    = query.Gt
	Ge    = query.Ge
	Lt    = query.Lt
	Le    = query.Le
	And   = query.And
	Or    = query.Or
	Not   = query.Not
)

// Catalog constructors, re-exported for hosts that place instances in
// their resource tree.
var (
	NewCatalog       = catalog.New
	NewCatalogWithID = catalog.NewWithID
)

// EnumeratorFunc adapts a function to the Enumerator interface.
func EnumeratorFunc(f func(ctx context.Context, cat *Catalog) ([]Doc, error)) Enumerator {
	return syncer.EnumeratorFunc(f)
}

// Engine wires the Treedex components together.
type Engine struct {
	cfg      *config.Config
	registry *catalog.Registry
	locator  *locator.Locator
	syncer   *syncer.Syncer
	dispatch *dispatch.Dispatcher
	bus      *resource.MemoryBus

	mu    sync.RWMutex
	root  *resource.Node
	store *store.Store
	bg    *async.BackgroundSyncer
}

// New builds an engine from the configuration. A nil cfg uses
// defaults. The snapshot store stays closed until OpenStore.
func New(cfg *config.Config) (*Engine, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	} else if err := cfg.Validate(); err != nil {
		return nil, err
	}

	reg := catalog.NewRegistry()
	s := syncer.New(reg)
	s.MaxConcurrent = cfg.Sync.MaxConcurrent
	loc := locator.NewWithCacheSize(cfg.Locator.CacheSize)

	return &Engine{
		cfg:      cfg,
		registry: reg,
		locator:  loc,
		syncer:   s,
		dispatch: dispatch.New(loc, dispatch.AttrMetadata{}),
		bus:      resource.NewMemoryBus(64),
	}, nil
}

// Register declares a catalog type schema. Duplicate registration with
// an identical shape is a no-op; a conflicting shape fails.
func (e *Engine) Register(ctype string, specs []IndexSpec) error {
	return e.registry.Register(ctype, specs)
}

// Registry exposes the schema registry.
func (e *Engine) Registry() *Registry { return e.registry }

// SetRoot attaches the resource tree the engine works against and
// drops any cached resolutions from a previous tree.
func (e *Engine) SetRoot(root *resource.Node) {
	e.mu.Lock()
	e.root = root
	e.mu.Unlock()
	e.locator.Reset()
	e.refreshCatalogGauge()
}

// Root returns the attached resource tree, nil before SetRoot.
func (e *Engine) Root() *resource.Node {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.root
}

// FindCatalog resolves the nearest catalog of the given type on the
// resource's ancestor chain. The false return means "not indexed
// here", not an error.
func (e *Engine) FindCatalog(res Resource, ctype string) (*Catalog, bool) {
	return e.locator.FindCatalog(res, ctype)
}

// Sync reconciles one catalog instance against its declared schema.
func (e *Engine) Sync(ctx context.Context, cat *Catalog, enum Enumerator) (*SyncReport, error) {
	return e.syncer.Sync(ctx, cat, enum, syncer.Options{Prune: e.cfg.Sync.Prune})
}

// SyncAll reconciles every instance of the given type under the root.
func (e *Engine) SyncAll(ctx context.Context, ctype string, enum Enumerator) ([]*SyncReport, error) {
	root := e.Root()
	if root == nil {
		return nil, fmt.Errorf("no resource tree attached")
	}
	reports, err := e.syncer.SyncAll(ctx, e.locator, root, ctype, enum, syncer.Options{Prune: e.cfg.Sync.Prune})
	e.refreshCatalogGauge()
	return reports, err
}

// SyncAllTypes reconciles every registered type under the root.
func (e *Engine) SyncAllTypes(ctx context.Context, enum Enumerator) ([]*SyncReport, error) {
	var all []*SyncReport
	for _, ctype := range e.registry.Types() {
		reports, err := e.SyncAll(ctx, ctype, enum)
		all = append(all, reports...)
		if err != nil {
			return all, err
		}
	}
	return all, nil
}

// SyncInBackground starts SyncAllTypes in a background goroutine with
// progress tracking. The returned syncer reports progress and errors;
// only one background run may be active at a time.
func (e *Engine) SyncInBackground(ctx context.Context, enum Enumerator) (*async.BackgroundSyncer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.bg != nil && e.bg.IsRunning() {
		return nil, fmt.Errorf("background sync already running")
	}

	bg := async.NewBackgroundSyncer(async.SyncerConfig{DataDir: e.cfg.Paths.DataDir})
	bg.SyncFunc = func(ctx context.Context, progress *async.SyncProgress) error {
		root := e.Root()
		if root == nil {
			return fmt.Errorf("no resource tree attached")
		}
		var extent []*Catalog
		for _, ctype := range e.registry.Types() {
			extent = append(extent, e.locator.FindAllCatalogs(root, ctype)...)
		}
		progress.SetTotal(len(extent))
		for _, cat := range extent {
			progress.StartCatalog(cat.ID())
			report, err := e.Sync(ctx, cat, enum)
			if err != nil {
				return err
			}
			progress.FinishCatalog(report.Indexed, len(report.Failed))
		}
		return nil
	}
	bg.Start(ctx)
	e.bg = bg
	return bg, nil
}

// Publish emits a tree event for the dispatcher. Removal events must
// be published before the node is detached.
func (e *Engine) Publish(op resource.Operation, res Resource) {
	e.bus.Publish(op, res)
}

// RunDispatcher consumes tree events until the context is cancelled or
// the bus closes. Most hosts run this in its own goroutine. With a
// configured debounce window, bursts of events for the same resource
// coalesce into one indexing pass.
func (e *Engine) RunDispatcher(ctx context.Context) error {
	if ms := e.cfg.Dispatch.DebounceWindowMS; ms > 0 {
		return e.dispatch.RunDebounced(ctx, e.bus, time.Duration(ms)*time.Millisecond)
	}
	return e.dispatch.Run(ctx, e.bus)
}

// Execute forces a query against live index contents.
func (e *Engine) Execute(ctx context.Context, q Query) (*Result, error) {
	telemetry.QueriesExecuted.Inc()
	return q.Execute(ctx)
}

// OpenStore opens the snapshot store at the configured path, creating
// the data directory if needed.
func (e *Engine) OpenStore() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.store != nil {
		return nil
	}
	if err := os.MkdirAll(e.cfg.Paths.DataDir, 0o755); err != nil {
		return err
	}
	s, err := store.Open(e.cfg.StorePath())
	if err != nil {
		return err
	}
	e.store = s
	return nil
}

// Store returns the open snapshot store, nil before OpenStore.
func (e *Engine) Store() *store.Store {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store
}

// Persist snapshots one catalog instance into the store.
func (e *Engine) Persist(cat *Catalog) error {
	s := e.Store()
	if s == nil {
		return fmt.Errorf("store not open")
	}
	return s.SaveCatalog(cat)
}

// Restore loads one persisted instance, re-binding declared specs
// whose fingerprints still match.
func (e *Engine) Restore(id string) (*Catalog, error) {
	s := e.Store()
	if s == nil {
		return nil, fmt.Errorf("store not open")
	}
	return s.LoadCatalog(id, e.registry)
}

// Close stops any background sync and closes the store.
func (e *Engine) Close() error {
	e.mu.Lock()
	bg, s := e.bg, e.store
	e.bg, e.store = nil, nil
	e.mu.Unlock()

	if bg != nil {
		bg.Stop()
	}
	e.bus.Close()
	if s != nil {
		return s.Close()
	}
	return nil
}

func (e *Engine) refreshCatalogGauge() {
	root := e.Root()
	if root == nil {
		telemetry.CatalogCount.Set(0)
		return
	}
	count := 0
	for _, ctype := range e.registry.Types() {
		count += len(e.locator.FindAllCatalogs(root, ctype))
	}
	telemetry.CatalogCount.Set(float64(count))
}
