package lineage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// adjacency builds a neighborsOf function over a static edge map.
func adjacency(edges map[string][]string) func(string) []string {
	return func(id string) []string { return edges[id] }
}

func TestNeighborSet_DegreeBound(t *testing.T) {
	// a -> b -> c -> d
	neighbors := adjacency(map[string][]string{
		"a": {"b"},
		"b": {"c"},
		"c": {"d"},
	})

	tests := []struct {
		name   string
		degree int
		want   []string
	}{
		{name: "one hop", degree: 1, want: []string{"a", "b"}},
		{name: "two hops", degree: 2, want: []string{"a", "b", "c"}},
		{name: "beyond the chain", degree: 10, want: []string{"a", "b", "c", "d"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NeighborSet([]string{"a"}, neighbors, tt.degree)
			assert.Len(t, got, len(tt.want))
			for _, id := range tt.want {
				assert.Contains(t, got, id)
			}
		})
	}
}

func TestNeighborSet_SeedsIncluded(t *testing.T) {
	got := NeighborSet([]string{"x"}, adjacency(nil), 3)
	assert.Equal(t, map[string]struct{}{"x": {}}, got)
}

func TestNeighborSet_MultipleSeeds(t *testing.T) {
	neighbors := adjacency(map[string][]string{
		"a": {"b"},
		"c": {"d"},
	})
	got := NeighborSet([]string{"a", "c"}, neighbors, 1)
	assert.Len(t, got, 4)
}

func TestNeighborSet_RevisitWithLargerBudget(t *testing.T) {
	// Two routes to m: a short one through s with little budget left,
	// and a direct one with more. The nodes behind m must still be
	// reached via the larger remaining budget.
	//
	//   a -> s -> m -> x -> y
	//   a ------> m
	neighbors := adjacency(map[string][]string{
		"a": {"s", "m"},
		"s": {"m"},
		"m": {"x"},
		"x": {"y"},
	})

	got := NeighborSet([]string{"a"}, neighbors, 3)
	assert.Contains(t, got, "y", "deeper budget through the direct route must win")
}

func TestNeighborSet_CycleTerminates(t *testing.T) {
	neighbors := adjacency(map[string][]string{
		"a": {"b"},
		"b": {"a"},
	})
	got := NeighborSet([]string{"a"}, neighbors, 100)
	assert.Len(t, got, 2)
}

func TestNeighborSet_ZeroDegreeUsesDefault(t *testing.T) {
	neighbors := adjacency(map[string][]string{"a": {"b"}})
	got := NeighborSet([]string{"a"}, neighbors, 0)
	assert.Contains(t, got, "b")
}

func TestNeighborSet_Deterministic(t *testing.T) {
	neighbors := adjacency(map[string][]string{
		"a": {"b", "c"},
		"b": {"d"},
		"c": {"d"},
	})
	first := NeighborSet([]string{"a"}, neighbors, 2)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, NeighborSet([]string{"a"}, neighbors, 2))
	}
}
