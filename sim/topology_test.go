package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTopology_Counts(t *testing.T) {
	top := NewTopology(RingEdges(5))
	assert.Equal(t, 5, top.NumQubits())
	assert.Equal(t, 5, top.EdgeCount())
	assert.Equal(t, 5, top.FreeCount())
}

func TestAllocator_Select_WholePentagon(t *testing.T) {
	// GIVEN an idle 5-qubit ring
	top := NewTopology(RingEdges(5))
	alloc := NewAllocator()

	// WHEN all five qubits are requested
	picked := alloc.Select(top, 5)

	// THEN the full ring is returned
	require.Len(t, picked, 5)
	seen := map[int64]bool{}
	for _, id := range picked {
		seen[id] = true
	}
	assert.Len(t, seen, 5)
}

func TestAllocator_Select_ExactSizeOrNil(t *testing.T) {
	top := NewTopology(LinearEdges(4))
	alloc := NewAllocator()

	assert.Nil(t, alloc.Select(top, 5), "more than physically present")
	assert.Nil(t, alloc.Select(top, 0))
	assert.Len(t, alloc.Select(top, 3), 3)
}

func TestAllocator_Select_DeterministicStart(t *testing.T) {
	// The scan starts from the lowest declared free qubit, so repeated calls
	// on an unchanged topology return the same set.
	top := NewTopology(LinearEdges(6))
	alloc := NewAllocator()

	first := alloc.Select(top, 3)
	second := alloc.Select(top, 3)

	assert.Equal(t, []int64{0, 1, 2}, first)
	assert.Equal(t, first, second)
}

func TestAllocator_Select_TraversesBusyQubits(t *testing.T) {
	// GIVEN a line 0-1-2 whose middle qubit is colored busy while its edges
	// are still present (mid-transaction coloring)
	top := NewTopology(LinearEdges(3))
	top.busy[1] = true
	alloc := NewAllocator()

	// WHEN two qubits are requested
	picked := alloc.Select(top, 2)

	// THEN the walk reaches 2 through the busy qubit and returns a set that
	// is not pairwise connected among itself
	require.Equal(t, []int64{0, 2}, picked)
	assert.False(t, top.HasEdge(0, 2))
}

func TestAllocator_Reserve_RemovesBoundaryEdgesOnly(t *testing.T) {
	// GIVEN a 5-qubit ring
	top := NewTopology(RingEdges(5))
	alloc := NewAllocator()

	// WHEN qubits 0 and 1 are reserved
	alloc.Reserve(top, []int64{0, 1})

	// THEN the internal edge 0-1 survives and the boundary edges are gone
	assert.True(t, top.HasEdge(0, 1))
	assert.False(t, top.HasEdge(1, 2))
	assert.False(t, top.HasEdge(4, 0))
	assert.True(t, top.Busy(0))
	assert.True(t, top.Busy(1))
	assert.Equal(t, 3, top.FreeCount())
}

func TestAllocator_Release_RestoresStaticEdges(t *testing.T) {
	// GIVEN a reservation that cut the ring
	top := NewTopology(RingEdges(5))
	alloc := NewAllocator()
	picked := alloc.Select(top, 2)
	alloc.Reserve(top, picked)

	// WHEN the reservation is released
	alloc.Release(top, picked)

	// THEN the topology is back to its static shape
	assert.Equal(t, 5, top.EdgeCount())
	assert.Equal(t, 5, top.FreeCount())
}

func TestAllocator_Release_InterleavedReservations(t *testing.T) {
	// GIVEN two overlapping-boundary reservations on a line 0-1-2-3
	top := NewTopology(LinearEdges(4))
	alloc := NewAllocator()
	alloc.Reserve(top, []int64{1})
	alloc.Reserve(top, []int64{2})

	// WHEN only the first is released
	alloc.Release(top, []int64{1})

	// THEN edges touching the still-busy qubit stay absent
	assert.True(t, top.HasEdge(0, 1))
	assert.False(t, top.HasEdge(1, 2))
	assert.False(t, top.HasEdge(2, 3))

	// WHEN the second is released too
	alloc.Release(top, []int64{2})

	// THEN the full line is restored
	assert.Equal(t, 3, top.EdgeCount())
}

func TestGridEdges_Shape(t *testing.T) {
	// A 2x3 grid has 6 nodes and 7 edges.
	top := NewTopology(GridEdges(2, 3))
	assert.Equal(t, 6, top.NumQubits())
	assert.Equal(t, 7, top.EdgeCount())
}
