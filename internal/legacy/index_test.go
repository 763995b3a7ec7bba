package legacy

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lherron/relink/internal/domain"
)

func TestBuild_LookupByID(t *testing.T) {
	idx, err := Build([]domain.LegacyNote{
		{GUID: "g1", Title: "Trip Notes", CreatedAt: 1000},
		{GUID: "g2", Title: "Packing", CreatedAt: 2000},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len())

	n, ok := idx.LookupByID("g1")
	require.True(t, ok)
	assert.Equal(t, "Trip Notes", n.Title)
	assert.Equal(t, int64(1000), n.CreatedAt)

	_, ok = idx.LookupByID("missing")
	assert.False(t, ok)
}

func TestBuild_DuplicateGUID(t *testing.T) {
	_, err := Build([]domain.LegacyNote{
		{GUID: "g1", Title: "First", CreatedAt: 1},
		{GUID: "g1", Title: "Second", CreatedAt: 2},
	})
	require.Error(t, err)

	var dup *DuplicateIdentifierError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "g1", dup.GUID)
	assert.Equal(t, "First", dup.First.Title)
	assert.Equal(t, "Second", dup.Second.Title)
}

func TestBuild_InvalidRecordIsSkipped(t *testing.T) {
	idx, err := Build([]domain.LegacyNote{
		{GUID: "", Title: "Orphan"},
		{GUID: "g1", Title: "Trip", CreatedAt: 1},
		{GUID: "g2", Title: "Future", CreatedAt: -5},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Len())
	assert.Len(t, idx.Rejected(), 2)

	_, ok := idx.LookupByID("g1")
	assert.True(t, ok)
	assert.Empty(t, idx.LookupByTitleAndTime("Future", -5))
}

func TestLookupByTitleAndTime(t *testing.T) {
	idx, err := Build([]domain.LegacyNote{
		{GUID: "g1", Title: "Daily", CreatedAt: 1000},
		{GUID: "g2", Title: "Daily", CreatedAt: 1000},
		{GUID: "g3", Title: "Daily", CreatedAt: 2000},
	})
	require.NoError(t, err)

	tests := []struct {
		name      string
		title     string
		createdAt int64
		want      int
	}{
		{name: "none", title: "Weekly", createdAt: 1000, want: 0},
		{name: "one", title: "Daily", createdAt: 2000, want: 1},
		{name: "many", title: "Daily", createdAt: 1000, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := idx.LookupByTitleAndTime(tt.title, tt.createdAt)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestLookupByTitleAndTime_ReturnsCopy(t *testing.T) {
	idx, err := Build([]domain.LegacyNote{{GUID: "g1", Title: "Daily", CreatedAt: 1}})
	require.NoError(t, err)

	got := idx.LookupByTitleAndTime("Daily", 1)
	got[0].Title = "mutated"

	n, _ := idx.LookupByID("g1")
	assert.Equal(t, "Daily", n.Title)
	assert.Equal(t, "Daily", idx.LookupByTitleAndTime("Daily", 1)[0].Title)
}

func TestConcurrentLookups(t *testing.T) {
	var records []domain.LegacyNote
	for i := 0; i < 100; i++ {
		records = append(records, domain.LegacyNote{GUID: fmt.Sprintf("g%d", i), Title: "T", CreatedAt: int64(i)})
	}
	idx, err := Build(records)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if _, ok := idx.LookupByID(fmt.Sprintf("g%d", i)); !ok {
					t.Errorf("missing g%d", i)
				}
				idx.LookupByTitleAndTime("T", int64(i))
			}
		}()
	}
	wg.Wait()
}
