package playlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func order(t *testing.T, ids []int64, rules []FollowsRule) []int64 {
	t.Helper()
	o := NewFollowsOrderer(ids, rules)
	return o.OrderWithFollows("test")
}

func TestOrderWithFollowsAdjacentMoveForward(t *testing.T) {
	got := order(t, []int64{1, 2, 3, 4}, []FollowsRule{
		{FollowsID: 1, Followers: []int64{3}},
	})
	assert.Equal(t, []int64{1, 3, 2, 4}, got)
}

func TestOrderWithFollowsMoveBackward(t *testing.T) {
	got := order(t, []int64{1, 2, 3}, []FollowsRule{
		{FollowsID: 3, Followers: []int64{1}},
	})
	assert.Equal(t, []int64{2, 3, 1}, got)
}

func TestOrderWithFollowsChained(t *testing.T) {
	got := order(t, []int64{1, 4, 2, 5, 3}, []FollowsRule{
		{FollowsID: 1, Followers: []int64{2}},
		{FollowsID: 2, Followers: []int64{3}},
	})
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, got)
}

func TestOrderWithFollowsAlreadyAdjacent(t *testing.T) {
	got := order(t, []int64{1, 2, 3}, []FollowsRule{
		{FollowsID: 1, Followers: []int64{2}},
	})
	assert.Equal(t, []int64{1, 2, 3}, got)
}

func TestOrderWithFollowsMultipleFollowers(t *testing.T) {
	got := order(t, []int64{1, 2, 3, 4}, []FollowsRule{
		{FollowsID: 4, Followers: []int64{1, 2}},
	})
	// both followers end up directly after the leader, in rule order
	assert.Equal(t, []int64{3, 4, 1, 2}, got)
}

func TestOrderWithFollowsAbsentIDsSkipped(t *testing.T) {
	got := order(t, []int64{1, 2, 3}, []FollowsRule{
		{FollowsID: 99, Followers: []int64{2}},
		{FollowsID: 1, Followers: []int64{77}},
	})
	assert.Equal(t, []int64{1, 2, 3}, got)
}

// A circular rule set must not corrupt the permutation: failing rules
// are skipped and every id survives exactly once.
func TestOrderWithFollowsCycleKeepsPermutation(t *testing.T) {
	got := order(t, []int64{10, 20, 30}, []FollowsRule{
		{FollowsID: 10, Followers: []int64{20}},
		{FollowsID: 20, Followers: []int64{10}},
	})
	require.Len(t, got, 3)
	seen := map[int64]bool{}
	for _, id := range got {
		assert.False(t, seen[id], "id %d appeared twice", id)
		seen[id] = true
	}
	assert.True(t, seen[10] && seen[20] && seen[30])
	// the first rule still applied
	idx := map[int64]int{}
	for i, id := range got {
		idx[id] = i
	}
	assert.Equal(t, idx[10]+1, idx[20])
}

func TestOrderWithFollowsIdempotent(t *testing.T) {
	rules := []FollowsRule{
		{FollowsID: 1, Followers: []int64{3}},
		{FollowsID: 3, Followers: []int64{5}},
	}
	first := order(t, []int64{1, 2, 3, 4, 5}, rules)
	second := order(t, append([]int64(nil), first...), rules)
	assert.Equal(t, first, second)
}

// Pins the backward-move behavior for a chain: when the leader sits
// after its follower, the follower moves back without the forward
// index increment.
func TestOrderWithFollowsBackwardChain(t *testing.T) {
	got := order(t, []int64{2, 3, 1}, []FollowsRule{
		{FollowsID: 1, Followers: []int64{2}},
		{FollowsID: 2, Followers: []int64{3}},
	})
	idx := map[int64]int{}
	for i, id := range got {
		idx[id] = i
	}
	require.Len(t, got, 3)
	assert.Equal(t, idx[1]+1, idx[2])
	assert.Equal(t, idx[2]+1, idx[3])
}
