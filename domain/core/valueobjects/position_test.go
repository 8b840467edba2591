package valueobjects

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPosition(t *testing.T) {
	tests := []struct {
		name    string
		x, y    float64
		wantErr bool
	}{
		{name: "origin", x: 0, y: 0},
		{name: "negative", x: -100.5, y: -200.75},
		{name: "NaN x coordinate", x: math.NaN(), y: 0, wantErr: true},
		{name: "Infinity y coordinate", x: 0, y: math.Inf(-1), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos, err := NewPosition(tt.x, tt.y)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid coordinates")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.x, pos.X())
			assert.Equal(t, tt.y, pos.Y())
		})
	}
}

func TestPosition_WithinTolerance(t *testing.T) {
	base := MustPosition(100, 100)

	assert.True(t, base.WithinTolerance(MustPosition(100.5, 99.5), 1))
	assert.True(t, base.WithinTolerance(MustPosition(101, 100), 1))
	assert.False(t, base.WithinTolerance(MustPosition(101.5, 100), 1))
	assert.False(t, base.WithinTolerance(MustPosition(100, 98), 1))
}

func TestPosition_IsOrigin(t *testing.T) {
	assert.True(t, Origin().IsOrigin())
	assert.False(t, MustPosition(0, 0.001).IsOrigin())
	assert.False(t, MustPosition(-0.5, 0).IsOrigin())
}

func TestPosition_JSON(t *testing.T) {
	data, err := json.Marshal(MustPosition(1.5, -2))
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1.5,"y":-2}`, string(data))

	var pos Position
	require.NoError(t, json.Unmarshal(data, &pos))
	assert.True(t, pos.Equals(MustPosition(1.5, -2)))
}

func TestNodeID(t *testing.T) {
	_, err := NewNodeID(0)
	assert.Error(t, err)

	id, err := ParseNodeID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id.Int64())
	assert.Equal(t, "42", id.String())

	_, err = ParseNodeID("abc")
	assert.Error(t, err)

	var decoded NodeID
	require.NoError(t, json.Unmarshal([]byte("17"), &decoded))
	assert.True(t, decoded.Equals(MustNodeID(17)))
}

func TestNewEdgeID_Deterministic(t *testing.T) {
	a := NewEdgeID(MustNodeID(3), MustNodeID(9))

	assert.Equal(t, EdgeID("e3-9"), a)
	assert.Equal(t, a, NewEdgeID(MustNodeID(3), MustNodeID(9)))
	assert.NotEqual(t, a, NewEdgeID(MustNodeID(9), MustNodeID(3)))
}

func TestNewPageContent(t *testing.T) {
	c, err := NewPageContent("  About us ", "about")
	require.NoError(t, err)
	assert.Equal(t, "About us", c.Title())
	assert.Equal(t, "/about", c.Path())

	long := make([]byte, 400)
	for i := range long {
		long[i] = 'a'
	}
	_, err = NewPageContent(string(long), "")
	assert.Error(t, err)
}
