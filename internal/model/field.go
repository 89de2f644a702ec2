package model

// Item is one item instance lying on a field.
type Item struct {
	ID      uint16
	Quality uint16
	Wear    uint8
	Data    map[string]string // item-specific key/value payload
}

// Clone returns a deep copy of the item (Data map included).
func (i Item) Clone() Item {
	out := i
	if i.Data != nil {
		out.Data = make(map[string]string, len(i.Data))
		for k, v := range i.Data {
			out.Data[k] = v
		}
	}
	return out
}

// Field is the content of a single map cell.
// Warp == nil means the cell is not a warp field.
type Field struct {
	TileID  uint16
	MusicID uint16
	Warp    *Position
	Items   []Item
}

// IsWarp reports whether the field teleports to another position.
func (f *Field) IsWarp() bool {
	return f.Warp != nil
}

// snapshot returns a detached copy safe to hand out to callers.
func (f *Field) snapshot() Field {
	out := Field{TileID: f.TileID, MusicID: f.MusicID}
	if f.Warp != nil {
		w := *f.Warp
		out.Warp = &w
	}
	if len(f.Items) > 0 {
		out.Items = make([]Item, len(f.Items))
		for i, it := range f.Items {
			out.Items[i] = it.Clone()
		}
	}
	return out
}
