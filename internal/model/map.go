package model

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Map content file format version. Bump on layout changes.
const mapFileVersion uint16 = 1

var mapFileMagic = [4]byte{'W', 'M', 'A', 'P'}

// Map is a rectangular tile grid at one fixed z-level.
// Bounds are immutable after construction. Cell content is mutable
// through SetTile/SetWarp/AddItem and the Age hook.
//
// A Map is owned by the world cycle goroutine; it performs no locking.
type Map struct {
	minX, minY int32
	level      int32
	width      uint16
	height     uint16

	fields []Field // width*height cells, y-major
}

// NewMap creates an empty map with the given minimum corner, z-level
// and dimensions. Width and height must be non-zero.
func NewMap(minX, minY, level int32, width, height uint16) (*Map, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("creating map at (%d, %d, %d): zero dimension %dx%d", minX, minY, level, width, height)
	}
	return &Map{
		minX:   minX,
		minY:   minY,
		level:  level,
		width:  width,
		height: height,
		fields: make([]Field, int(width)*int(height)),
	}, nil
}

// Level returns the map's z-level.
func (m *Map) Level() int32 { return m.level }

// MinX returns the smallest covered x coordinate.
func (m *Map) MinX() int32 { return m.minX }

// MinY returns the smallest covered y coordinate.
func (m *Map) MinY() int32 { return m.minY }

// MaxX returns the largest covered x coordinate.
func (m *Map) MaxX() int32 { return m.minX + int32(m.width) - 1 }

// MaxY returns the largest covered y coordinate.
func (m *Map) MaxY() int32 { return m.minY + int32(m.height) - 1 }

// Width returns the horizontal extent in cells.
func (m *Map) Width() uint16 { return m.width }

// Height returns the vertical extent in cells.
func (m *Map) Height() uint16 { return m.height }

// Covers reports whether the absolute coordinate lies inside the map
// bounds at the map's level.
func (m *Map) Covers(x, y, z int32) bool {
	return z == m.level &&
		x >= m.minX && x <= m.MaxX() &&
		y >= m.minY && y <= m.MaxY()
}

// Intersects reports whether the axis-aligned rectangle
// [minX,maxX]x[minY,maxY] at level z overlaps the map bounds.
func (m *Map) Intersects(minX, minY, maxX, maxY, z int32) bool {
	return z == m.level &&
		minX <= m.MaxX() && maxX >= m.minX &&
		minY <= m.MaxY() && maxY >= m.minY
}

func (m *Map) fieldIndex(x, y int32) (int, bool) {
	if x < m.minX || x > m.MaxX() || y < m.minY || y > m.MaxY() {
		return 0, false
	}
	return int(y-m.minY)*int(m.width) + int(x-m.minX), true
}

// FieldAt returns a detached snapshot of the cell at the absolute
// coordinate (x, y). The second result is false outside the bounds.
func (m *Map) FieldAt(x, y int32) (Field, bool) {
	idx, ok := m.fieldIndex(x, y)
	if !ok {
		return Field{}, false
	}
	return m.fields[idx].snapshot(), true
}

// SetTile sets tile and music ids of the cell at (x, y).
func (m *Map) SetTile(x, y int32, tileID, musicID uint16) bool {
	idx, ok := m.fieldIndex(x, y)
	if !ok {
		return false
	}
	m.fields[idx].TileID = tileID
	m.fields[idx].MusicID = musicID
	return true
}

// SetWarp marks the cell at (x, y) as a warp to target.
func (m *Map) SetWarp(x, y int32, target Position) bool {
	idx, ok := m.fieldIndex(x, y)
	if !ok {
		return false
	}
	t := target
	m.fields[idx].Warp = &t
	return true
}

// AddItem places an item instance on the cell at (x, y).
func (m *Map) AddItem(x, y int32, item Item) bool {
	idx, ok := m.fieldIndex(x, y)
	if !ok {
		return false
	}
	m.fields[idx].Items = append(m.fields[idx].Items, item.Clone())
	return true
}

// Age runs one maintenance pass over every cell: each item with
// non-zero wear is worn down by one, and items whose wear reaches zero
// rot away. Items created with Wear == 0 never decay.
func (m *Map) Age() {
	for i := range m.fields {
		items := m.fields[i].Items
		if len(items) == 0 {
			continue
		}
		kept := items[:0]
		for _, it := range items {
			if it.Wear == 0 {
				kept = append(kept, it)
				continue
			}
			it.Wear--
			if it.Wear > 0 {
				kept = append(kept, it)
			}
		}
		m.fields[i].Items = kept
	}
}

// Save writes the full map content to path in the versioned binary
// layout read back by LoadMap. The file is truncated on open.
func (m *Map) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating map file %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := m.write(w); err != nil {
		return fmt.Errorf("writing map file %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing map file %s: %w", path, err)
	}
	return nil
}

func (m *Map) write(w io.Writer) error {
	if _, err := w.Write(mapFileMagic[:]); err != nil {
		return err
	}
	for _, v := range []any{mapFileVersion, m.level, m.minX, m.minY, m.width, m.height} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	for i := range m.fields {
		if err := writeField(w, &m.fields[i]); err != nil {
			return err
		}
	}
	return nil
}

func writeField(w io.Writer, f *Field) error {
	var flags uint8
	if f.Warp != nil {
		flags |= 1
	}
	header := []any{f.TileID, f.MusicID, flags}
	for _, v := range header {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	if f.Warp != nil {
		for _, v := range []any{f.Warp.X, f.Warp.Y, f.Warp.Z} {
			if err := binary.Write(w, binary.LittleEndian, v); err != nil {
				return err
			}
		}
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(f.Items))); err != nil {
		return err
	}
	for _, it := range f.Items {
		for _, v := range []any{it.ID, it.Quality, it.Wear, uint16(len(it.Data))} {
			if err := binary.Write(w, binary.LittleEndian, v); err != nil {
				return err
			}
		}
		for k, v := range it.Data {
			if err := writeString(w, k); err != nil {
				return err
			}
			if err := writeString(w, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeString(w io.Writer, s string) error {
	if len(s) > 0xFFFF {
		return fmt.Errorf("string too long: %d bytes", len(s))
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

// LoadMap reads a map content file written by Save.
func LoadMap(path string) (*Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening map file %s: %w", path, err)
	}
	defer f.Close()

	m, err := readMap(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("reading map file %s: %w", path, err)
	}
	return m, nil
}

func readMap(r io.Reader) (*Map, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, err
	}
	if magic != mapFileMagic {
		return nil, fmt.Errorf("bad magic %q", magic[:])
	}
	var version uint16
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, err
	}
	if version != mapFileVersion {
		return nil, fmt.Errorf("unsupported map file version %d", version)
	}

	var (
		level, minX, minY int32
		width, height     uint16
	)
	for _, v := range []any{&level, &minX, &minY, &width, &height} {
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return nil, err
		}
	}
	m, err := NewMap(minX, minY, level, width, height)
	if err != nil {
		return nil, err
	}
	for i := range m.fields {
		if err := readField(r, &m.fields[i]); err != nil {
			return nil, fmt.Errorf("cell %d: %w", i, err)
		}
	}
	return m, nil
}

func readField(r io.Reader, f *Field) error {
	var flags uint8
	for _, v := range []any{&f.TileID, &f.MusicID, &flags} {
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	if flags&1 != 0 {
		var target Position
		for _, v := range []any{&target.X, &target.Y, &target.Z} {
			if err := binary.Read(r, binary.LittleEndian, v); err != nil {
				return err
			}
		}
		f.Warp = &target
	}
	var itemCount uint16
	if err := binary.Read(r, binary.LittleEndian, &itemCount); err != nil {
		return err
	}
	for i := uint16(0); i < itemCount; i++ {
		var (
			it        Item
			dataCount uint16
		)
		for _, v := range []any{&it.ID, &it.Quality, &it.Wear, &dataCount} {
			if err := binary.Read(r, binary.LittleEndian, v); err != nil {
				return err
			}
		}
		if dataCount > 0 {
			it.Data = make(map[string]string, dataCount)
			for j := uint16(0); j < dataCount; j++ {
				k, err := readString(r)
				if err != nil {
					return err
				}
				v, err := readString(r)
				if err != nil {
					return err
				}
				it.Data[k] = v
			}
		}
		f.Items = append(f.Items, it)
	}
	return nil
}

func readString(r io.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
