package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPreprocess(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "kenya aa", Preprocess("  Kenya-AA!! "))
	assert.Equal(t, "pain au chocolat", Preprocess("Pain  au\tChocolat"))
	assert.Equal(t, "café 2", Preprocess("CAFÉ #2"))
	assert.Equal(t, "", Preprocess("!!! ---"))
}

func TestRatio(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 100.0, ratio("abc", "abc"), 0.001)
	assert.InDelta(t, 66.667, ratio("abc", "abd"), 0.01)
	assert.InDelta(t, 0.0, ratio("abc", "xyz"), 0.001)
	assert.InDelta(t, 100.0, ratio("", ""), 0.001)
}

func TestPartialRatio(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 100.0, partialRatio("abc", "xxabcxx"), 0.001)
	assert.InDelta(t, 100.0, partialRatio("xxabcxx", "abc"), 0.001)
	assert.InDelta(t, 100.0, partialRatio("croissant", "chocolate croissant"), 0.001)
	assert.Less(t, partialRatio("abc", "xyz"), 1.0)
}

func TestTokenRatios(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 100.0, tokenSortRatio("blueberry muffin", "muffin blueberry"), 0.001)
	assert.InDelta(t, 100.0, tokenSetRatio("sourdough loaf", "loaf"), 0.001)
	assert.InDelta(t, 100.0, partialTokenRatio("brazil decaf", "decaf espresso"), 0.001)
	assert.Zero(t, tokenSetRatio("", "loaf"))
}

func TestWRatio(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b string
		min  float64
		max  float64
	}{
		{"identical", "Croissant", "Croissant", 100, 100},
		{"case and punctuation", "kenya aa.", "Kenya AA", 100, 100},
		{"typo", "Croisant", "Croissant", 90, 99},
		{"reordered tokens", "Muffin Blueberry", "Blueberry Muffin", 95, 95},
		{"substring of longer name", "Croissant", "Chocolate Croissant", 89.9, 90.1},
		{"unrelated", "Scone", "Village Blend", 0, 60},
		{"empty", "", "Scone", 0, 0},
		{"punctuation only", "!!!", "Scone", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := WRatio(tt.a, tt.b)
			assert.GreaterOrEqual(t, got, tt.min-0.001)
			assert.LessOrEqual(t, got, tt.max+0.001)
		})
	}
}

func TestWRatio_Symmetric(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"Honduras", "Village Blend"},
		{"Kenya AA", "Kenya"},
		{"Brazil Decaf", "Decaf"},
		{"Morning Bun", "Morning Buns x 12"},
	}
	for _, p := range pairs {
		assert.InDelta(t, WRatio(p[0], p[1]), WRatio(p[1], p[0]), 0.001, "%q vs %q", p[0], p[1])
	}
}

func TestWRatio_Bounds(t *testing.T) {
	t.Parallel()

	inputs := []string{"a", "Scone", "Pain au chocolat", "x2 bagels, plain", "ÉCLAIR", "12"}
	for _, a := range inputs {
		for _, b := range inputs {
			s := WRatio(a, b)
			assert.GreaterOrEqual(t, s, 0.0)
			assert.LessOrEqual(t, s, 100.0)
		}
	}
}
