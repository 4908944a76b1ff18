package catalog

import (
	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/treedex/treedex/internal/errors"
)

// Index is a single named field index mapping discriminated values to
// resource refs and back.
//
// Implementations are not internally synchronized; the owning Catalog's
// reader-writer lock serializes access.
type Index interface {
	// Name returns the index name, unique within its catalog.
	Name() string

	// Kind returns the index kind.
	Kind() Kind

	// Fingerprint returns the spec fingerprint this index was built from.
	// After a restore it may differ from the registry's declared spec,
	// which is how the synchronizer detects drift.
	Fingerprint() string

	// Spec returns the declared spec backing this index. A restored
	// index that has not been re-attached to its schema has a zero spec
	// with a nil discriminator.
	Spec() IndexSpec

	// AttachSpec binds a declared spec to a restored index so its
	// discriminator becomes available again. The index keeps its
	// persisted fingerprint; only a sync replaces a drifted index.
	AttachSpec(spec IndexSpec)

	// Index stores value under ref, replacing any prior value for ref.
	// Old reverse-map entries are removed first.
	Index(ref Ref, value any) error

	// Unindex removes all entries for ref. No-op if absent.
	Unindex(ref Ref)

	// Lookup returns the set of refs indexed under value.
	Lookup(value any) (*roaring64.Bitmap, error)

	// LookupRange returns the set of refs whose indexed values fall
	// between lo and hi. A nil bound is unbounded on that side.
	LookupRange(lo, hi any, incLo, incHi bool) (*roaring64.Bitmap, error)

	// Domain returns the set of all refs present in this index.
	Domain() *roaring64.Bitmap

	// Len returns the number of indexed refs.
	Len() int

	// Snapshot captures the index contents for persistence.
	Snapshot() *IndexSnapshot
}

// prepareFunc converts a discriminated value into the normalized values
// to store in the reverse map.
type prepareFunc func(value any) ([]any, error)

// invertedIndex is the shared implementation behind all index kinds.
// Forward and reverse maps are kept mutually consistent: a ref absent
// from the forward map has no reverse entries, and vice versa.
type invertedIndex struct {
	spec        IndexSpec
	kind        Kind
	fingerprint string
	prepare     prepareFunc

	// valueType pins the normalized value type after the first insert.
	// Probes of a different type fail with TypeMismatch.
	valueType string

	forward map[Ref][]any
	reverse map[any]*roaring64.Bitmap
	domain  *roaring64.Bitmap
}

// NewIndex builds an empty index from a declared spec.
func NewIndex(spec IndexSpec) (Index, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	idx := newInvertedIndex(spec.Name, spec.Kind, spec.Fingerprint())
	if idx == nil {
		return nil, errors.Newf(errors.ErrCodeInvalidIndexSpec, "index %q has unknown kind %q", spec.Name, spec.Kind)
	}
	idx.spec = spec
	return idx, nil
}

func newInvertedIndex(name string, kind Kind, fingerprint string) *invertedIndex {
	idx := &invertedIndex{
		spec:        IndexSpec{Name: name, Kind: kind},
		kind:        kind,
		fingerprint: fingerprint,
		forward:     make(map[Ref][]any),
		reverse:     make(map[any]*roaring64.Bitmap),
		domain:      roaring64.New(),
	}
	switch kind {
	case KindField:
		idx.prepare = prepareField
	case KindKeyword:
		idx.prepare = prepareKeywords
	case KindText:
		idx.prepare = prepareText
	default:
		return nil
	}
	return idx
}

func (x *invertedIndex) Name() string        { return x.spec.Name }
func (x *invertedIndex) Kind() Kind          { return x.kind }
func (x *invertedIndex) Fingerprint() string { return x.fingerprint }
func (x *invertedIndex) Spec() IndexSpec     { return x.spec }
func (x *invertedIndex) Len() int            { return len(x.forward) }

func (x *invertedIndex) AttachSpec(spec IndexSpec) {
	x.spec = spec
}

func (x *invertedIndex) Index(ref Ref, value any) error {
	vals, err := x.prepare(value)
	if err != nil {
		return err
	}
	// Every prepared value must match the pinned type, including the
	// members of a multi-valued keyword entry. Rejection happens before
	// any mutation so the ref's prior entry survives.
	if len(vals) > 0 {
		pinned := x.valueType
		if pinned == "" {
			pinned = valueTypeName(vals[0])
		}
		for _, v := range vals {
			if tn := valueTypeName(v); tn != pinned {
				return errors.Newf(errors.ErrCodeTypeMismatch,
					"index %q holds %s values, got %s", x.spec.Name, pinned, tn)
			}
		}
	}

	// Replace, not accumulate: drop the prior reverse entries first.
	x.Unindex(ref)

	if len(vals) == 0 {
		return nil
	}
	if x.valueType == "" {
		x.valueType = valueTypeName(vals[0])
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
	return nil
}

func (x *invertedIndex) Unindex(ref Ref) {
	vals, ok := x.forward[ref]
	if !ok {
		return
	}
	for _, v := range vals {
		if bm, ok := x.reverse[v]; ok {
			bm.Remove(ref)
			if bm.IsEmpty() {
				delete(x.reverse, v)
			}
		}
	}
	delete(x.forward, ref)
	x.domain.Remove(ref)
}

func (x *invertedIndex) Lookup(value any) (*roaring64.Bitmap, error) {
	probe, err := x.probeValue(value)
	if err != nil {
		return nil, err
	}
	if bm, ok := x.reverse[probe]; ok {
		return bm.Clone(), nil
	}
	return roaring64.New(), nil
}

func (x *invertedIndex) LookupRange(lo, hi any, incLo, incHi bool) (*roaring64.Bitmap, error) {
	var nlo, nhi any
	var err error
	if lo != nil {
		if nlo, err = x.probeValue(lo); err != nil {
			return nil, err
		}
	}
	if hi != nil {
		if nhi, err = x.probeValue(hi); err != nil {
			return nil, err
		}
	}
	if nlo != nil && nhi != nil {
		if _, err := compareValues(nlo, nhi); err != nil {
			return nil, err
		}
	}

	out := roaring64.New()
	for v, bm := range x.reverse {
		if nlo != nil {
			c, err := compareValues(v, nlo)
			if err != nil {
				return nil, err
			}
			if c < 0 || (c == 0 && !incLo) {
				continue
			}
		}
		if nhi != nil {
			c, err := compareValues(v, nhi)
			if err != nil {
				return nil, err
			}
			if c > 0 || (c == 0 && !incHi) {
				continue
			}
		}
		out.Or(bm)
	}
	return out, nil
}

func (x *invertedIndex) Domain() *roaring64.Bitmap {
	return x.domain.Clone()
}

// probeValue normalizes a query probe and enforces the pinned type.
func (x *invertedIndex) probeValue(value any) (any, error) {
	var probe any
	var err error
	if x.kind == KindText {
		s, ok := value.(string)
		if !ok {
			return nil, errors.Newf(errors.ErrCodeTypeMismatch, "text index %q probed with %T, want string", x.spec.Name, value)
		}
		probe = normalizeTerm(s)
	} else {
		if probe, err = normalizeValue(value); err != nil {
			return nil, err
		}
	}
	if err := x.checkType(probe); err != nil {
		return nil, err
	}
	return probe, nil
}

// checkType enforces the index's pinned value type.
func (x *invertedIndex) checkType(v any) error {
	tn := valueTypeName(v)
	if x.valueType != "" && tn != x.valueType {
		return errors.Newf(errors.ErrCodeTypeMismatch,
			"index %q holds %s values, got %s", x.spec.Name, x.valueType, tn)
	}
	return nil
}

// prepareField normalizes a single-valued field entry.
func prepareField(value any) ([]any, error) {
	v, err := normalizeValue(value)
	if err != nil {
		return nil, err
	}
	return []any{v}, nil
}

// prepareKeywords normalizes a keyword set. Accepts a single value or a
// slice; duplicates collapse.
func prepareKeywords(value any) ([]any, error) {
	var raw []any
	switch t := value.(type) {
	case []any:
		raw = t
	case []string:
		raw = make([]any, len(t))
		for i, s := range t {
			raw[i] = s
		}
	case []int:
		raw = make([]any, len(t))
		for i, n := range t {
			raw[i] = n
		}
	case []int64:
		raw = make([]any, len(t))
		for i, n := range t {
			raw[i] = n
		}
	default:
		raw = []any{value}
	}

	seen := make(map[any]struct{}, len(raw))
	out := make([]any, 0, len(raw))
	for _, v := range raw {
		nv, err := normalizeValue(v)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[nv]; dup {
			continue
		}
		seen[nv] = struct{}{}
		out = append(out, nv)
	}
	return out, nil
}

// prepareText tokenizes a string value into terms.
func prepareText(value any) ([]any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, errors.Newf(errors.ErrCodeTypeMismatch, "text index requires string value, got %T", value)
	}
	tokens := Tokenize(s)
	seen := make(map[string]struct{}, len(tokens))
	out := make([]any, 0, len(tokens))
	for _, tok := range tokens {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out, nil
}
