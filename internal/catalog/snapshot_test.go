package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_RestoreRebuildsReverseMap(t *testing.T) {
	// Given: a populated catalog
	cat := newSystemCatalog(t)
	require.NoError(t, cat.IndexDoc(1, doc("doc1", "folder", "content")))
	require.NoError(t, cat.IndexDoc(2, doc("doc2", "content")))

	// When: snapshotting and restoring
	snap := cat.Snapshot()
	restored, err := RestoreCatalog(snap)
	require.NoError(t, err)

	// Then: identity and shape survive
	assert.Equal(t, cat.ID(), restored.ID())
	assert.Equal(t, "system", restored.Type())
	assert.Equal(t, []string{"name", "interfaces"}, restored.IndexNames())

	// And: reverse lookups were re-derived from the forward entries
	byName, err := restored.EvalLookup("name", "doc1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{1}, byName.ToArray())

	byIface, err := restored.EvalLookup("interfaces", "content")
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{1, 2}, byIface.ToArray())
}

func TestSnapshot_FingerprintSurvivesRestore(t *testing.T) {
	cat := newSystemCatalog(t)
	snap := cat.Snapshot()

	restored, err := RestoreCatalog(snap)
	require.NoError(t, err)

	orig, _ := cat.Index("name")
	back, _ := restored.Index("name")
	assert.Equal(t, orig.Fingerprint(), back.Fingerprint())

	// The restored index has no discriminator until a spec is attached
	assert.Nil(t, back.Spec().Discriminate)
	back.AttachSpec(nameSpec())
	assert.NotNil(t, back.Spec().Discriminate)
}

func TestSnapshot_ValueTypesSurviveRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		value any
		probe any
	}{
		{"string", "hello", "hello"},
		{"int64", 42, 42},
		{"float64", 3.5, 3.5},
		{"bool", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := nameSpec()
			spec.Name = "field"
			idx, err := NewIndex(spec)
			require.NoError(t, err)
			require.NoError(t, idx.Index(7, tt.value))

			restored, err := RestoreIndex(idx.Snapshot())
			require.NoError(t, err)

			bm, err := restored.Lookup(tt.probe)
			require.NoError(t, err)
			assert.True(t, bm.Contains(7))
		})
	}
}

func TestSnapshot_TextTokensNotRetokenized(t *testing.T) {
	spec := IndexSpec{
		Name:            "title",
		Kind:            KindText,
		DiscriminatorID: "attr:title",
		Discriminate:    func(view any) (any, bool, error) { return nil, false, nil },
	}
	idx, err := NewIndex(spec)
	require.NoError(t, err)
	require.NoError(t, idx.Index(1, "Quarterly Report"))

	restored, err := RestoreIndex(idx.Snapshot())
	require.NoError(t, err)

	bm, err := restored.Lookup("quarterly")
	require.NoError(t, err)
	assert.True(t, bm.Contains(1))
	assert.Equal(t, 1, restored.Len())
}

func TestSnapshot_CorruptValueTagFails(t *testing.T) {
	snap := &IndexSnapshot{
		Name: "bad",
		Kind: KindField,
		Forward: []ForwardEntry{
			{Ref: 1, Values: []ValueSnapshot{{T: "zzz"}}},
		},
	}
	_, err := RestoreIndex(snap)
	require.Error(t, err)
}

func TestSnapshot_UnknownKindFails(t *testing.T) {
	snap := &IndexSnapshot{Name: "bad", Kind: "fancy"}
	_, err := RestoreIndex(snap)
	require.Error(t, err)
}
