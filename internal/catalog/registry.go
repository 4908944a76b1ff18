package catalog

import (
	"sort"
	"sync"

	"github.com/treedex/treedex/internal/errors"
)

// Schema is the declared shape of a catalog type: an ordered sequence
// of index specs. Registered once at startup and read-only afterwards.
type Schema struct {
	Type  string
	Specs []IndexSpec
}

// Spec returns the named index spec.
func (s *Schema) Spec(name string) (IndexSpec, bool) {
	for _, spec := range s.Specs {
		if spec.Name == name {
			return spec, true
		}
	}
	return IndexSpec{}, false
}

// Names returns the declared index names in order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.Specs))
	for i, spec := range s.Specs {
		out[i] = spec.Name
	}
	return out
}

// fingerprints returns the ordered spec fingerprints, used to decide
// whether a re-registration is identical.
func (s *Schema) fingerprints() []string {
	out := make([]string, len(s.Specs))
	for i, spec := range s.Specs {
		out[i] = spec.Fingerprint()
	}
	return out
}

// Registry is the process-wide mapping from catalog type name to its
// declared schema. Populated at startup by application code.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*Schema
}

// NewRegistry creates an empty schema registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]*Schema)}
}

// Register declares the index specs of a catalog type.
//
// Fails with DuplicateCatalogType if the type is already registered
// with a different schema; re-registering an identical schema is a
// no-op. Spec validation failures and duplicate index names within the
// schema are fatal registration errors.
func (r *Registry) Register(ctype string, specs []IndexSpec) error {
	if ctype == "" {
		return errors.New(errors.ErrCodeInvalidIndexSpec, "catalog type name is empty", nil)
	}

	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		if err := spec.Validate(); err != nil {
			return err
		}
		if seen[spec.Name] {
			return errors.Newf(errors.ErrCodeDuplicateIndexName,
				"catalog type %q declares index %q twice", ctype, spec.Name)
		}
		seen[spec.Name] = true
	}

	schema := &Schema{Type: ctype, Specs: append([]IndexSpec(nil), specs...)}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.schemas[ctype]; ok {
		if equalFingerprints(existing.fingerprints(), schema.fingerprints()) {
			return nil
		}
		return errors.Newf(errors.ErrCodeDuplicateCatalogType,
			"catalog type %q is already registered with a different schema", ctype)
	}

	r.schemas[ctype] = schema
	return nil
}

// Lookup returns the declared schema for a catalog type.
//
// Fails with UnknownCatalogType if never registered. This is a
// programming error: treat it as fatal at startup validation time.
func (r *Registry) Lookup(ctype string) (*Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schema, ok := r.schemas[ctype]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeUnknownCatalogType,
			"catalog type %q was never registered", ctype)
	}
	return schema, nil
}

// Types returns the registered catalog type names, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.schemas))
	for t := range r.schemas {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func equalFingerprints(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
