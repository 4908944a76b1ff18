package catalog

import (
	"sort"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/treedex/treedex/internal/errors"
)

// Snapshot types mirror the persisted state layout: each catalog
// instance persists as {catalog_type, {index_name: {kind, contents}}}
// with the spec fingerprint stored alongside each index for drift
// detection. Values carry an explicit type tag so int64/float64/bool/
// string survive the round-trip.

// ValueSnapshot is the typed wire form of one indexed value.
type ValueSnapshot struct {
	T string  `json:"t"`
	S string  `json:"s,omitempty"`
	I int64   `json:"i,omitempty"`
	F float64 `json:"f,omitempty"`
	B bool    `json:"b,omitempty"`
}

// snapshotValue encodes a normalized value.
func snapshotValue(v any) ValueSnapshot {
	switch t := v.(type) {
	case string:
		return ValueSnapshot{T: "s", S: t}
	case int64:
		return ValueSnapshot{T: "i", I: t}
	case float64:
		return ValueSnapshot{T: "f", F: t}
	case bool:
		return ValueSnapshot{T: "b", B: t}
	default:
		// normalizeValue guards every insert path; reaching this means
		// an index held an unnormalized value.
		return ValueSnapshot{T: ""}
	}
}

// Value decodes the snapshot back to its normalized value.
func (vs ValueSnapshot) Value() (any, error) {
	switch vs.T {
	case "s":
		return vs.S, nil
	case "i":
		return vs.I, nil
	case "f":
		return vs.F, nil
	case "b":
		return vs.B, nil
	default:
		return nil, errors.Newf(errors.ErrCodeSnapshotCorrupt, "unknown value tag %q", vs.T)
	}
}

// ForwardEntry is the persisted forward-map entry for one ref.
type ForwardEntry struct {
	Ref    uint64          `json:"ref"`
	Values []ValueSnapshot `json:"values"`
}

// IndexSnapshot is the persisted form of one index.
type IndexSnapshot struct {
	Name        string         `json:"name"`
	Kind        Kind           `json:"kind"`
	Fingerprint string         `json:"fingerprint"`
	ValueType   string         `json:"value_type,omitempty"`
	Forward     []ForwardEntry `json:"forward"`
}

// CatalogSnapshot is the persisted form of one catalog instance.
type CatalogSnapshot struct {
	ID      string           `json:"id"`
	Type    string           `json:"type"`
	Indexes []*IndexSnapshot `json:"indexes"`
}

// Snapshot captures the index contents.
func (x *invertedIndex) Snapshot() *IndexSnapshot {
	snap := &IndexSnapshot{
		Name:        x.spec.Name,
		Kind:        x.kind,
		Fingerprint: x.fingerprint,
		ValueType:   x.valueType,
	}
	refs := make([]uint64, 0, len(x.forward))
	for ref := range x.forward {
		refs = append(refs, ref)
	}
	// Sort for deterministic snapshot ordering.
	sort.Slice(refs, func(i, j int) bool { return refs[i] < refs[j] })

	for _, ref := range refs {
		vals := x.forward[ref]
		entry := ForwardEntry{Ref: ref, Values: make([]ValueSnapshot, len(vals))}
		for i, v := range vals {
			entry.Values[i] = snapshotValue(v)
		}
		snap.Forward = append(snap.Forward, entry)
	}
	return snap
}

// RestoreIndex rebuilds an index from its snapshot. The reverse map and
// domain are re-derived from the forward entries, which restores the
// forward/reverse consistency invariant by construction. The restored
// index carries the persisted fingerprint and no discriminator; attach
// the declared spec via AttachSpec once its fingerprint is confirmed.
func RestoreIndex(snap *IndexSnapshot) (Index, error) {
	idx := newInvertedIndex(snap.Name, snap.Kind, snap.Fingerprint)
	if idx == nil {
		return nil, errors.Newf(errors.ErrCodeSnapshotCorrupt,
			"index %q snapshot has unknown kind %q", snap.Name, snap.Kind)
	}
	idx.spec.Discriminate = nil
	idx.valueType = snap.ValueType

	for _, entry := range snap.Forward {
		vals := make([]any, len(entry.Values))
		for i, vs := range entry.Values {
			v, err := vs.Value()
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		idx.restoreEntry(entry.Ref, vals)
	}
	return idx, nil
}

// restoreEntry inserts already-normalized values without re-running the
// kind's prepare step (text tokens are persisted post-tokenization).
func (x *invertedIndex) restoreEntry(ref Ref, vals []any) {
	if len(vals) == 0 {
		return
	}
	x.forward[ref] = vals
	for _, v := range vals {
		bm, ok := x.reverse[v]
		if !ok {
			bm = roaring64.New()
			x.reverse[v] = bm
		}
		bm.Add(ref)
	}
	x.domain.Add(ref)
}

// RestoreCatalog rebuilds a catalog instance from its snapshot.
func RestoreCatalog(snap *CatalogSnapshot) (*Catalog, error) {
	cat := NewWithID(snap.Type, snap.ID)
	for _, isnap := range snap.Indexes {
		idx, err := RestoreIndex(isnap)
		if err != nil {
			return nil, err
		}
		if err := cat.AddIndex(idx); err != nil {
			return nil, err
		}
	}
	return cat, nil
}
