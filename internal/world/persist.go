package world

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	"github.com/ravenmoor/worldserver/internal/model"
)

// initmapsSuffix names the binary world index file relative to the
// save prefix.
const initmapsSuffix = "_initmaps"

// Index record layout: little-endian, fixed width.
type indexRecord struct {
	Level  int32
	MinX   int32
	MinY   int32
	Width  uint16
	Height uint16
}

// SaveToDisk writes the world index to {prefix}_initmaps — a u16 map
// count followed by one fixed {z, minX, minY, width, height} record
// per map in registration order — and delegates each map's content to
// Map.Save at {prefix}_{z}_{minX}_{minY}.
func (w *WorldMap) SaveToDisk(prefix string) error {
	if len(w.maps) > math.MaxUint16 {
		return fmt.Errorf("saving world index: %d maps exceed the u16 count field", len(w.maps))
	}

	path := prefix + initmapsSuffix
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating world index %s: %w", path, err)
	}
	defer f.Close()

	slog.Info("saving world maps", "count", len(w.maps), "index", path)

	bw := bufio.NewWriter(f)
	if err := binary.Write(bw, binary.LittleEndian, uint16(len(w.maps))); err != nil {
		return fmt.Errorf("writing world index %s: %w", path, err)
	}

	for _, m := range w.maps {
		rec := indexRecord{
			Level:  m.Level(),
			MinX:   m.MinX(),
			MinY:   m.MinY(),
			Width:  m.Width(),
			Height: m.Height(),
		}
		if err := binary.Write(bw, binary.LittleEndian, rec); err != nil {
			return fmt.Errorf("writing world index %s: %w", path, err)
		}

		name := mapContentPath(prefix, rec.Level, rec.MinX, rec.MinY)
		if err := m.Save(name); err != nil {
			return fmt.Errorf("saving map content %s: %w", name, err)
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing world index %s: %w", path, err)
	}
	return nil
}

// LoadFromDisk reads a world index written by SaveToDisk and inserts
// every referenced map, restoring the registration order of the save.
func (w *WorldMap) LoadFromDisk(prefix string) error {
	path := prefix + initmapsSuffix
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening world index %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var count uint16
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return fmt.Errorf("reading world index %s: %w", path, err)
	}

	for i := 0; i < int(count); i++ {
		var rec indexRecord
		if err := binary.Read(r, binary.LittleEndian, &rec); err != nil {
			return fmt.Errorf("reading world index %s, record %d: %w", path, i, err)
		}

		name := mapContentPath(prefix, rec.Level, rec.MinX, rec.MinY)
		m, err := model.LoadMap(name)
		if err != nil {
			return fmt.Errorf("loading map content for record %d: %w", i, err)
		}
		if m.Width() != rec.Width || m.Height() != rec.Height {
			return fmt.Errorf("loading map content %s: dimensions %dx%d do not match index record %dx%d",
				name, m.Width(), m.Height(), rec.Width, rec.Height)
		}
		if !w.Insert(m) {
			return fmt.Errorf("inserting map from record %d at (%d, %d, %d): rejected by registry",
				i, rec.MinX, rec.MinY, rec.Level)
		}
	}

	// A well-formed index has no trailing bytes.
	if _, err := r.ReadByte(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading world index %s: trailing data after %d records", path, count)
	}

	slog.Info("world maps loaded", "count", count, "index", path)
	return nil
}

func mapContentPath(prefix string, level, minX, minY int32) string {
	return fmt.Sprintf("%s_%d_%d_%d", prefix, level, minX, minY)
}
