package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_Evaluate(t *testing.T) {
	e, err := NewEngine()
	require.NoError(t, err)

	env := Env{
		ContainerID:   "chest-1",
		ContainerType: "chest",
		GridWidth:     8,
		GridHeight:    4,
		OccupancyRate: 0.25,
		Available:     24,
		TemplateID:    "gold",
		ItemKind:      "coin",
		Tags:          map[string]string{"rarity": "rare"},
		Placed:        1,
	}

	tests := []struct {
		expr string
		want bool
	}{
		{"", true},
		{"grid_width * grid_height >= 32", true},
		{"occupancy_rate < 0.2", false},
		{"container_type == 'chest' && tags.rarity == 'rare'", true},
		{"placed < 1", false},
		{"container_id.startsWith('chest-')", true},
		{"available > 20 && item_kind in ['coin', 'gem']", true},
	}
	for _, tt := range tests {
		got, err := e.Evaluate(tt.expr, env)
		require.NoError(t, err, tt.expr)
		assert.Equal(t, tt.want, got, tt.expr)
	}
}

func TestEngine_CompileErrors(t *testing.T) {
	e, err := NewEngine()
	require.NoError(t, err)

	assert.Error(t, e.Compile("unknown_var > 1"))
	assert.Error(t, e.Compile("grid_width + 1"), "non-bool result")
	assert.NoError(t, e.Compile("grid_width > 1"))
}

func TestEngine_MissingTagIsAnError(t *testing.T) {
	e, err := NewEngine()
	require.NoError(t, err)

	_, err = e.Evaluate("tags.rarity == 'rare'", Env{})
	assert.Error(t, err)

	ok, err := e.Evaluate("'rarity' in tags && tags.rarity == 'rare'", Env{})
	require.NoError(t, err)
	assert.False(t, ok)
}
