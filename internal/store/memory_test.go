package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AngelCh415/disparos-etl/internal/models"
)

func TestMemoryStoreReplace(t *testing.T) {
	st := NewMemoryStore()
	assert.False(t, st.Loaded())

	_, err := st.Current()
	require.ErrorIs(t, err, ErrNoDataset)

	prev := st.Replace(models.Dataset{ID: "a", Leads: []models.LeadRecord{{ID: "1"}}})
	assert.Empty(t, prev)
	assert.True(t, st.Loaded())

	prev = st.Replace(models.Dataset{ID: "b"})
	assert.Equal(t, "a", prev)

	cur, err := st.Current()
	require.NoError(t, err)
	assert.Equal(t, "b", cur.ID)
	assert.Empty(t, cur.Leads)

	st.Clear()
	_, err = st.Current()
	require.ErrorIs(t, err, ErrNoDataset)
}
