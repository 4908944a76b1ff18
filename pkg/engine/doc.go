// Package engine is the embedding surface for Treedex.
//
// It wires the schema registry, catalog locator, synchronizer,
// indexing dispatcher and snapshot store behind one constructor so an
// embedding application only deals with this package:
//
//	┌──────────────────┐
//	│   Application    │  (declares schemas, owns the resource tree)
//	└────────┬─────────┘
//	         │
//	┌────────▼─────────┐
//	│     Engine       │  ← this package
//	└────────┬─────────┘
//	         │
//	  ┌──────┼──────────┬───────────┬─────────┐
//	  │      │          │           │         │
//	┌─▼───┐ ┌▼───────┐ ┌▼────────┐ ┌▼──────┐ ┌▼─────┐
//	│Regis│ │Locator │ │Syncer   │ │Dispat │ │Store │
//	│try  │ │        │ │         │ │cher   │ │      │
//	└─────┘ └────────┘ └─────────┘ └───────┘ └──────┘
//
// # Usage
//
// Declare schemas once at startup, attach a resource tree, then sync:
//
//	eng, err := engine.New(cfg)
//	if err != nil {
//	    return err
//	}
//	defer eng.Close()
//
//	eng.Register("system", []engine.IndexSpec{nameSpec, typeSpec})
//	eng.SetRoot(root)
//	reports, err := eng.SyncAll(ctx, "system", enum)
//
// Queries combine per-index comparisons with AND/OR/NOT:
//
//	cat, _ := eng.FindCatalog(res, "system")
//	result, err := eng.Execute(ctx,
//	    engine.And(
//	        engine.Eq(cat, "type", "folder"),
//	        engine.Not(engine.Eq(cat, "name", "trash")),
//	    ))
//
// # Thread Safety
//
// Catalog mutation is serialized per instance; queries run
// concurrently with each other. The Engine itself is safe for
// concurrent use once constructed.
package engine
