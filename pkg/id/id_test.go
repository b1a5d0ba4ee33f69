package id

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerator_MonotonicAndUnique(t *testing.T) {
	g := NewGenerator()

	ids := make([]string, 0, 1000)
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id, err := g.New()
		require.NoError(t, err)
		assert.False(t, seen[id])
		seen[id] = true
		ids = append(ids, id)
	}

	assert.True(t, sort.StringsAreSorted(ids))
}

func TestValid(t *testing.T) {
	id, err := NewGenerator().New()
	require.NoError(t, err)

	assert.True(t, Valid(id))
	assert.False(t, Valid("not-an-id"))
	assert.False(t, Valid(""))
}
