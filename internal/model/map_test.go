package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMap_Bounds(t *testing.T) {
	m, err := NewMap(10, 20, -3, 4, 2)
	require.NoError(t, err)

	assert.Equal(t, int32(10), m.MinX())
	assert.Equal(t, int32(13), m.MaxX())
	assert.Equal(t, int32(20), m.MinY())
	assert.Equal(t, int32(21), m.MaxY())
	assert.Equal(t, int32(-3), m.Level())
	assert.Equal(t, uint16(4), m.Width())
	assert.Equal(t, uint16(2), m.Height())
}

func TestNewMap_ZeroDimension(t *testing.T) {
	_, err := NewMap(0, 0, 0, 0, 5)
	assert.Error(t, err)

	_, err = NewMap(0, 0, 0, 5, 0)
	assert.Error(t, err)
}

func TestMap_Covers(t *testing.T) {
	m, err := NewMap(0, 0, 2, 3, 3)
	require.NoError(t, err)

	assert.True(t, m.Covers(0, 0, 2))
	assert.True(t, m.Covers(2, 2, 2))
	assert.False(t, m.Covers(3, 0, 2), "east of bounds")
	assert.False(t, m.Covers(0, -1, 2), "north of bounds")
	assert.False(t, m.Covers(0, 0, 1), "wrong level")
}

func TestMap_Intersects(t *testing.T) {
	m, err := NewMap(10, 10, 0, 5, 5) // [10,14]x[10,14]
	require.NoError(t, err)

	assert.True(t, m.Intersects(12, 12, 13, 13, 0), "contained rectangle")
	assert.True(t, m.Intersects(0, 0, 10, 10, 0), "touching the corner")
	assert.True(t, m.Intersects(0, 0, 100, 100, 0), "enclosing rectangle")
	assert.False(t, m.Intersects(0, 0, 9, 9, 0), "one short of the corner")
	assert.False(t, m.Intersects(12, 12, 13, 13, 1), "wrong level")
}

func TestMap_FieldAt(t *testing.T) {
	m, err := NewMap(5, 5, 0, 2, 2)
	require.NoError(t, err)

	require.True(t, m.SetTile(6, 5, 42, 7))

	field, ok := m.FieldAt(6, 5)
	require.True(t, ok)
	assert.Equal(t, uint16(42), field.TileID)
	assert.Equal(t, uint16(7), field.MusicID)

	_, ok = m.FieldAt(7, 5)
	assert.False(t, ok, "outside bounds")
	assert.False(t, m.SetTile(7, 5, 1, 1), "mutator outside bounds")
}

// FieldAt hands out snapshots: mutating the result must not leak back.
func TestMap_FieldAtDetached(t *testing.T) {
	m, err := NewMap(0, 0, 0, 1, 1)
	require.NoError(t, err)
	require.True(t, m.AddItem(0, 0, Item{ID: 1, Data: map[string]string{"k": "v"}}))
	require.True(t, m.SetWarp(0, 0, NewPosition(9, 9, 9)))

	field, ok := m.FieldAt(0, 0)
	require.True(t, ok)
	field.Items[0].Data["k"] = "changed"
	field.Warp.X = 1000

	again, _ := m.FieldAt(0, 0)
	assert.Equal(t, "v", again.Items[0].Data["k"])
	assert.Equal(t, int32(9), again.Warp.X)
}

func TestMap_AgeDecaysItems(t *testing.T) {
	m, err := NewMap(0, 0, 0, 2, 1)
	require.NoError(t, err)

	require.True(t, m.AddItem(0, 0, Item{ID: 1, Wear: 2}))
	require.True(t, m.AddItem(0, 0, Item{ID: 2, Wear: 0})) // permanent
	require.True(t, m.AddItem(1, 0, Item{ID: 3, Wear: 1}))

	m.Age()

	field, _ := m.FieldAt(0, 0)
	require.Len(t, field.Items, 2)
	assert.Equal(t, uint8(1), field.Items[0].Wear)
	assert.Equal(t, uint8(0), field.Items[1].Wear)

	field, _ = m.FieldAt(1, 0)
	assert.Empty(t, field.Items, "wear 1 item rots on the first pass")

	m.Age()

	field, _ = m.FieldAt(0, 0)
	require.Len(t, field.Items, 1)
	assert.Equal(t, uint16(2), field.Items[0].ID, "only the permanent item survives")
}

func TestMap_SaveLoadRoundTrip(t *testing.T) {
	m, err := NewMap(-3, 7, 2, 3, 2)
	require.NoError(t, err)

	require.True(t, m.SetTile(-2, 7, 11, 4))
	require.True(t, m.SetWarp(-1, 8, NewPosition(0, 0, -1)))
	require.True(t, m.AddItem(-3, 8, Item{
		ID:      900,
		Quality: 500,
		Wear:    10,
		Data:    map[string]string{"engraving": "for Mira", "charges": "3"},
	}))

	path := filepath.Join(t.TempDir(), "chunk")
	require.NoError(t, m.Save(path))

	loaded, err := LoadMap(path)
	require.NoError(t, err)

	assert.Equal(t, m.MinX(), loaded.MinX())
	assert.Equal(t, m.MinY(), loaded.MinY())
	assert.Equal(t, m.Level(), loaded.Level())
	assert.Equal(t, m.Width(), loaded.Width())
	assert.Equal(t, m.Height(), loaded.Height())

	field, ok := loaded.FieldAt(-2, 7)
	require.True(t, ok)
	assert.Equal(t, uint16(11), field.TileID)
	assert.Equal(t, uint16(4), field.MusicID)

	field, _ = loaded.FieldAt(-1, 8)
	require.NotNil(t, field.Warp)
	assert.Equal(t, NewPosition(0, 0, -1), *field.Warp)

	field, _ = loaded.FieldAt(-3, 8)
	require.Len(t, field.Items, 1)
	assert.Equal(t, uint16(900), field.Items[0].ID)
	assert.Equal(t, "for Mira", field.Items[0].Data["engraving"])
	assert.Equal(t, "3", field.Items[0].Data["charges"])
}

func TestLoadMap_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage")
	require.NoError(t, os.WriteFile(path, []byte("not a map file"), 0o644))

	_, err := LoadMap(path)
	assert.Error(t, err)
}

func TestLoadMap_Missing(t *testing.T) {
	_, err := LoadMap(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}
