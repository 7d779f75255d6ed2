package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot() map[string]Identifier {
	return map[string]Identifier{
		"7":   {Index: "7", Pubkey: "0xaa"},
		"12":  {Index: "12", Pubkey: "0xbb", Alias: "main"},
		"100": {Index: "100", Pubkey: "0xcc"},
	}
}

func TestSeedDoesNotRaiseUpdatedFlag(t *testing.T) {
	r := New()
	r.Seed(testSnapshot())
	assert.False(t, r.ConsumeUpdated())
	assert.Equal(t, 3, r.Len())
}

func TestPublishRaisesUpdatedFlagOnce(t *testing.T) {
	r := New()
	r.Publish(testSnapshot())
	assert.True(t, r.ConsumeUpdated())
	assert.False(t, r.ConsumeUpdated())
}

func TestActiveWithAliasSubset(t *testing.T) {
	r := New()
	r.Seed(testSnapshot())
	withAlias := r.ActiveWithAlias()
	require.Equal(t, 1, len(withAlias))
	assert.Equal(t, "main", withAlias["12"].Alias)
}

func TestActiveIndicesNumericOrder(t *testing.T) {
	r := New()
	r.Seed(testSnapshot())
	assert.Equal(t, []string{"7", "12", "100"}, r.ActiveIndices())
}

func TestUnionAddsAndRaisesFlag(t *testing.T) {
	r := New()
	r.Seed(testSnapshot())
	added := r.Union(map[string]Identifier{
		"200": {Index: "200", Pubkey: "0xdd"},
	})
	require.Equal(t, 1, len(added))
	assert.Equal(t, "200", added[0].Index)
	assert.Equal(t, 4, r.Len())
	assert.True(t, r.ConsumeUpdated())
}

func TestRemoveByIndexAndPubkey(t *testing.T) {
	r := New()
	r.Seed(testSnapshot())
	removed := r.Remove(map[string]Identifier{
		"7":    {Index: "7"},
		"0xbb": {Pubkey: "0xbb"},
	})
	require.Equal(t, 2, len(removed))
	assert.Equal(t, "12", removed[0].Index)
	assert.Equal(t, "7", removed[1].Index)
	assert.Equal(t, 1, r.Len())
	assert.True(t, r.ConsumeUpdated())
}

func TestRemoveUnknownLeavesSnapshotUntouched(t *testing.T) {
	r := New()
	r.Seed(testSnapshot())
	removed := r.Remove(map[string]Identifier{"999": {Index: "999"}})
	assert.Equal(t, 0, len(removed))
	assert.Equal(t, 3, r.Len())
	assert.False(t, r.ConsumeUpdated())
}

func TestUnionThenRemoveIsIdempotent(t *testing.T) {
	r := New()
	r.Seed(testSnapshot())
	tokens := map[string]Identifier{"200": {Index: "200", Pubkey: "0xdd"}}
	r.Union(tokens)
	r.Remove(tokens)
	assert.Equal(t, testSnapshot(), r.ActiveIdentifiers())
}

func TestSnapshotCopiesAreIsolated(t *testing.T) {
	r := New()
	r.Seed(testSnapshot())
	snapshot := r.ActiveIdentifiers()
	delete(snapshot, "7")
	assert.Equal(t, 3, r.Len())
}
