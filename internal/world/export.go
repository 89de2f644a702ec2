package world

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// itemDataEscaper makes item data keys and values safe for the
// semicolon/equals separated item lines. Backslash must be escaped
// first; a single-pass Replacer gives exactly that result.
var itemDataEscaper = strings.NewReplacer(`\`, `\\`, `=`, `\=`, `;`, `\;`)

// ExportTo writes every registered map, in registration order, as a
// triple of plain-text artifacts in dir: e_{minX}_{minY}_{z}.tiles.txt,
// .warps.txt and .items.txt.
//
// The first I/O failure aborts the export with an error naming the
// artifact. Artifacts already written for earlier maps stay on disk.
func (w *WorldMap) ExportTo(dir string) error {
	for _, m := range w.maps {
		base := filepath.Join(dir, fmt.Sprintf("e_%d_%d_%d.", m.MinX(), m.MinY(), m.Level()))
		if err := exportMap(m, base); err != nil {
			return fmt.Errorf("exporting map at (%d, %d, %d): %w", m.MinX(), m.MinY(), m.Level(), err)
		}
	}
	return nil
}

func exportMap(m Map, base string) error {
	tiles, err := os.Create(base + "tiles.txt")
	if err != nil {
		return fmt.Errorf("creating tiles artifact: %w", err)
	}
	defer tiles.Close()

	items, err := os.Create(base + "items.txt")
	if err != nil {
		return fmt.Errorf("creating items artifact: %w", err)
	}
	defer items.Close()

	warps, err := os.Create(base + "warps.txt")
	if err != nil {
		return fmt.Errorf("creating warps artifact: %w", err)
	}
	defer warps.Close()

	tw := bufio.NewWriter(tiles)
	iw := bufio.NewWriter(items)
	ww := bufio.NewWriter(warps)

	writeMapStreams(m, tw, iw, ww)

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("writing tiles artifact: %w", err)
	}
	if err := iw.Flush(); err != nil {
		return fmt.Errorf("writing items artifact: %w", err)
	}
	if err := ww.Flush(); err != nil {
		return fmt.Errorf("writing warps artifact: %w", err)
	}
	return nil
}

func writeMapStreams(m Map, tiles, items, warps *bufio.Writer) {
	minX, minY := m.MinX(), m.MinY()

	fmt.Fprintf(tiles, "V: 2\n")
	fmt.Fprintf(tiles, "L: %d\n", m.Level())
	fmt.Fprintf(tiles, "X: %d\n", minX)
	fmt.Fprintf(tiles, "Y: %d\n", minY)
	fmt.Fprintf(tiles, "W: %d\n", m.Width())
	fmt.Fprintf(tiles, "H: %d\n", m.Height())

	for y := minY; y <= m.MaxY(); y++ {
		for x := minX; x <= m.MaxX(); x++ {
			field, ok := m.FieldAt(x, y)
			if !ok {
				continue
			}
			lx, ly := x-minX, y-minY

			fmt.Fprintf(tiles, "%d;%d;%d;%d\n", lx, ly, field.TileID, field.MusicID)

			if field.IsWarp() {
				t := field.Warp
				fmt.Fprintf(warps, "%d;%d;%d;%d;%d\n", lx, ly, t.X, t.Y, t.Z)
			}

			for _, it := range field.Items {
				fmt.Fprintf(items, "%d;%d;%d;%d", lx, ly, it.ID, it.Quality)
				for _, k := range sortedKeys(it.Data) {
					fmt.Fprintf(items, ";%s=%s", itemDataEscaper.Replace(k), itemDataEscaper.Replace(it.Data[k]))
				}
				fmt.Fprintln(items)
			}
		}
	}
}

func sortedKeys(data map[string]string) []string {
	if len(data) == 0 {
		return nil
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
