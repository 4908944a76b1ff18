// Package catalog provides the core index and catalog types for Treedex:
// named field/keyword/text indexes with mutually consistent forward and
// reverse maps, ordered catalogs of those indexes, and the process-wide
// schema registry that declares what each catalog type must contain.
package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/treedex/treedex/internal/errors"
)

// Ref is an opaque resource identifier, stable for the resource's
// lifetime. It is the key type in every index's forward and reverse map.
type Ref = uint64

// NilRef is the zero Ref; it never identifies a real resource.
const NilRef Ref = 0

// Kind identifies the flavor of an index.
type Kind string

const (
	// KindField indexes a single discriminated value per resource.
	KindField Kind = "field"
	// KindKeyword indexes a set of discriminated values per resource.
	KindKeyword Kind = "keyword"
	// KindText tokenizes a discriminated string and indexes its terms.
	KindText Kind = "text"
)

// valid reports whether k is a known index kind.
func (k Kind) valid() bool {
	switch k {
	case KindField, KindKeyword, KindText:
		return true
	}
	return false
}

// Discriminator extracts an indexable value from a resource's indexing
// view. ok=false is the absence sentinel and is equivalent to unindexing
// the resource. A non-nil error is an isolated per-index failure; the
// resource's existing entries in that index are left untouched.
type Discriminator func(view any) (value any, ok bool, err error)

// IndexSpec declares one index of a catalog type. Specs are created at
// process start and are immutable at runtime; identity is
// (catalog type, name).
type IndexSpec struct {
	// Name is unique within a catalog type.
	Name string

	// Kind selects the index implementation.
	Kind Kind

	// DiscriminatorID is a stable identifier for the extraction rule.
	// It feeds the spec fingerprint used for drift detection, so it must
	// change whenever the extraction semantics change.
	DiscriminatorID string

	// Discriminate extracts the value to index from a view.
	Discriminate Discriminator
}

// Validate checks the spec for structural problems.
func (s IndexSpec) Validate() error {
	if s.Name == "" {
		return errors.New(errors.ErrCodeInvalidIndexSpec, "index spec has empty name", nil)
	}
	if !s.Kind.valid() {
		return errors.Newf(errors.ErrCodeInvalidIndexSpec, "index %q has unknown kind %q", s.Name, s.Kind)
	}
	if s.Discriminate == nil {
		return errors.Newf(errors.ErrCodeInvalidIndexSpec, "index %q has nil discriminator", s.Name)
	}
	return nil
}

// Fingerprint returns a stable digest of the spec's kind and
// discriminator identity. Persisted alongside index contents, it lets
// the synchronizer detect that a declared spec has drifted from the one
// that built a live index without comparing index contents.
func (s IndexSpec) Fingerprint() string {
	input := fmt.Sprintf("%s:%s:%s", s.Name, s.Kind, s.DiscriminatorID)
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])[:16]
}
