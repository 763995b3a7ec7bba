package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lherron/relink/internal/domain"
	"github.com/lherron/relink/internal/extract"
	"github.com/lherron/relink/internal/legacy"
)

func buildIndex(t *testing.T, notes ...domain.LegacyNote) *legacy.Index {
	t.Helper()
	idx, err := legacy.Build(notes)
	require.NoError(t, err)
	return idx
}

func TestResolve_Unique(t *testing.T) {
	idx := buildIndex(t, domain.LegacyNote{GUID: "g1", Title: "Trip Notes", CreatedAt: 1000})
	r := New(idx, []domain.DestinationNote{
		{ID: "d1", Title: "Trip Notes", CreatedAt: 1000, Dialect: domain.DialectLightweight},
		{ID: "d2", Title: "Trip Notes", CreatedAt: 1001},
		{ID: "d3", Title: "Other", CreatedAt: 1000},
	})

	res := r.Resolve(extract.Candidate{GUID: "g1"})
	assert.Equal(t, KindUnique, res.Kind)
	assert.Equal(t, "d1", res.DestID)
	assert.Equal(t, "Trip Notes", res.Title)
	require.NotNil(t, res.Legacy)
	assert.Equal(t, "g1", res.Legacy.GUID)
}

func TestResolve_Ambiguous(t *testing.T) {
	idx := buildIndex(t, domain.LegacyNote{GUID: "g1", Title: "Daily", CreatedAt: 5})
	r := New(idx, []domain.DestinationNote{
		{ID: "d2", Title: "Daily", CreatedAt: 5},
		{ID: "d1", Title: "Daily", CreatedAt: 5},
	})

	res := r.Resolve(extract.Candidate{GUID: "g1"})
	assert.Equal(t, KindAmbiguous, res.Kind)
	assert.Empty(t, res.DestID)
	assert.Equal(t, []string{"d1", "d2"}, res.Candidates)
	assert.Contains(t, res.Reason(), "d1, d2")
}

func TestResolve_RepeatedCatalogEntryIsUnique(t *testing.T) {
	idx := buildIndex(t, domain.LegacyNote{GUID: "g1", Title: "T", CreatedAt: 1})
	r := New(idx, []domain.DestinationNote{
		{ID: "d1", Title: "T", CreatedAt: 1},
		{ID: "d1", Title: "T", CreatedAt: 1},
	})

	res := r.ResolveGUID("g1")
	assert.Equal(t, KindUnique, res.Kind)
	assert.Equal(t, "d1", res.DestID)
	assert.Empty(t, res.Candidates)
}

func TestResolve_UnknownGUID(t *testing.T) {
	idx := buildIndex(t, domain.LegacyNote{GUID: "g1", Title: "Trip", CreatedAt: 1})
	r := New(idx, []domain.DestinationNote{{ID: "d1", Title: "Trip", CreatedAt: 1}})

	res := r.Resolve(extract.Candidate{GUID: "nope"})
	assert.Equal(t, KindNotFound, res.Kind)
	assert.Nil(t, res.Legacy)
	assert.Equal(t, "guid not found in source notes", res.Reason())
}

func TestResolve_NoDestinationMatch(t *testing.T) {
	idx := buildIndex(t, domain.LegacyNote{GUID: "g1", Title: "Trip", CreatedAt: 1})
	r := New(idx, []domain.DestinationNote{{ID: "d1", Title: "trip", CreatedAt: 1}})

	res := r.ResolveGUID("g1")
	assert.Equal(t, KindNotFound, res.Kind)
	require.NotNil(t, res.Legacy)
	assert.Contains(t, res.Reason(), `"Trip"`)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "unique", KindUnique.String())
	assert.Equal(t, "ambiguous", KindAmbiguous.String())
	assert.Equal(t, "not_found", KindNotFound.String())
}
