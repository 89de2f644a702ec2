package world

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ravenmoor/worldserver/internal/model"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	text := strings.TrimRight(string(data), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func TestExportTo_SingleMap(t *testing.T) {
	m, err := model.NewMap(10, 20, 0, 3, 2)
	if err != nil {
		t.Fatal(err)
	}
	for y := int32(20); y <= 21; y++ {
		for x := int32(10); x <= 12; x++ {
			m.SetTile(x, y, uint16(x), uint16(y))
		}
	}
	m.SetWarp(11, 21, model.NewPosition(50, 60, 1))
	m.AddItem(12, 20, model.Item{ID: 400, Quality: 77})

	w := NewWorldMap(OverwriteOnOverlap)
	w.Insert(m)

	dir := t.TempDir()
	if err := w.ExportTo(dir); err != nil {
		t.Fatalf("ExportTo() = %v, want nil", err)
	}

	base := filepath.Join(dir, "e_10_20_0.")

	tiles := readLines(t, base+"tiles.txt")
	wantHeader := []string{"V: 2", "L: 0", "X: 10", "Y: 20", "W: 3", "H: 2"}
	if len(tiles) != len(wantHeader)+6 {
		t.Fatalf("tiles file has %d lines, want %d", len(tiles), len(wantHeader)+6)
	}
	for i, want := range wantHeader {
		if tiles[i] != want {
			t.Errorf("tiles header line %d = %q, want %q", i, tiles[i], want)
		}
	}
	// y-major cell order with local coordinates.
	wantCells := []string{
		"0;0;10;20", "1;0;11;20", "2;0;12;20",
		"0;1;10;21", "1;1;11;21", "2;1;12;21",
	}
	for i, want := range wantCells {
		if got := tiles[len(wantHeader)+i]; got != want {
			t.Errorf("tiles cell line %d = %q, want %q", i, got, want)
		}
	}

	warps := readLines(t, base+"warps.txt")
	if len(warps) != 1 {
		t.Fatalf("warps file has %d lines, want 1", len(warps))
	}
	if warps[0] != "1;1;50;60;1" {
		t.Errorf("warp line = %q, want %q", warps[0], "1;1;50;60;1")
	}

	items := readLines(t, base+"items.txt")
	if len(items) != 1 {
		t.Fatalf("items file has %d lines, want 1", len(items))
	}
	if items[0] != "2;0;400;77" {
		t.Errorf("item line = %q, want %q", items[0], "2;0;400;77")
	}
}

func TestExportTo_ItemDataEscaping(t *testing.T) {
	m, err := model.NewMap(0, 0, 0, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	m.AddItem(0, 0, model.Item{
		ID:      12,
		Quality: 333,
		Data:    map[string]string{`a=b;c\d`: `x\y`},
	})

	w := NewWorldMap(OverwriteOnOverlap)
	w.Insert(m)

	dir := t.TempDir()
	if err := w.ExportTo(dir); err != nil {
		t.Fatalf("ExportTo() = %v, want nil", err)
	}

	items := readLines(t, filepath.Join(dir, "e_0_0_0.items.txt"))
	if len(items) != 1 {
		t.Fatalf("items file has %d lines, want 1", len(items))
	}
	// Backslash is escaped before the separators so the inserted
	// backslashes are not re-escaped.
	want := `0;0;12;333;a\=b\;c\\d=x\\y`
	if items[0] != want {
		t.Errorf("item line = %q, want %q", items[0], want)
	}
}

func TestExportTo_SortedItemData(t *testing.T) {
	m, err := model.NewMap(0, 0, 0, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	m.AddItem(0, 0, model.Item{
		ID:      1,
		Quality: 1,
		Data:    map[string]string{"zeta": "1", "alpha": "2", "mid": "3"},
	})

	w := NewWorldMap(OverwriteOnOverlap)
	w.Insert(m)

	dir := t.TempDir()
	if err := w.ExportTo(dir); err != nil {
		t.Fatal(err)
	}

	items := readLines(t, filepath.Join(dir, "e_0_0_0.items.txt"))
	want := "0;0;1;1;alpha=2;mid=3;zeta=1"
	if items[0] != want {
		t.Errorf("item line = %q, want %q (data keys sorted)", items[0], want)
	}
}

func TestExportTo_MissingDirectory(t *testing.T) {
	m, err := model.NewMap(0, 0, 0, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	w := NewWorldMap(OverwriteOnOverlap)
	w.Insert(m)

	if err := w.ExportTo(filepath.Join(t.TempDir(), "no_such_dir")); err == nil {
		t.Error("ExportTo() into a missing directory = nil, want error")
	}
}

// Artifacts from maps exported before the failing one stay on disk.
func TestExportTo_NoRollback(t *testing.T) {
	good, err := model.NewMap(0, 0, 0, 1, 1)
	if err != nil {
		t.Fatal(err)
	}

	w := NewWorldMap(OverwriteOnOverlap)
	w.Insert(good)
	w.Insert(newFakeMap(5, 5, 0, 1, 1)) // placed after good

	dir := t.TempDir()

	// A directory squatting on the second map's artifact name makes
	// its creation fail after the first map exported cleanly.
	if err := os.Mkdir(filepath.Join(dir, "e_5_5_0.tiles.txt"), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := w.ExportTo(dir); err == nil {
		t.Fatal("ExportTo() = nil, want error for the blocked artifact")
	}
	// The first map's artifacts are still there.
	if _, err := os.Stat(filepath.Join(dir, "e_0_0_0.tiles.txt")); err != nil {
		t.Errorf("earlier artifact removed after failure: %v", err)
	}
}
