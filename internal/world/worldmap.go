package world

import (
	"github.com/ravenmoor/worldserver/internal/model"
)

// Map is the contract the registry needs from a map implementation.
// model.Map satisfies it; tests substitute lightweight fakes.
type Map interface {
	Level() int32
	MinX() int32
	MinY() int32
	MaxX() int32
	MaxY() int32
	Width() uint16
	Height() uint16

	// Intersects tests the map bounds against an axis-aligned
	// rectangle at level z.
	Intersects(minX, minY, maxX, maxY, z int32) bool

	// FieldAt returns a snapshot of the cell at an absolute
	// coordinate, false outside the bounds.
	FieldAt(x, y int32) (model.Field, bool)

	// Age runs one maintenance pass over the map content.
	Age()

	// Save persists the map content to the given path.
	Save(path string) error
}

// OverlapPolicy decides what Insert does when a new map's bounds cover
// cells already indexed by an earlier map at the same level.
type OverlapPolicy int

const (
	// OverwriteOnOverlap silently repoints shared cells at the newer
	// map. Registration order still lists both maps.
	OverwriteOnOverlap OverlapPolicy = iota

	// RejectOnOverlap refuses the insertion entirely when any covered
	// cell is already indexed.
	RejectOnOverlap
)

// WorldMap is the spatial registry for all loaded maps: an ordered
// registration sequence plus a per-cell position index.
//
// All methods must be called from the world cycle goroutine; the
// registry performs no locking (see the server package for the
// ownership model).
type WorldMap struct {
	maps  []Map
	index map[model.Position]Map

	policy OverlapPolicy

	// aging sweep state, see aging.go
	ageCursor int
	sweepLen  int
}

// NewWorldMap creates an empty registry with the given overlap policy.
func NewWorldMap(policy OverlapPolicy) *WorldMap {
	return &WorldMap{
		index:  make(map[model.Position]Map),
		policy: policy,
	}
}

// Count returns the number of registered maps.
func (w *WorldMap) Count() int {
	return len(w.maps)
}

// Insert registers a map. It returns false without mutation when m is
// nil, when the same map instance is already registered, or when the
// policy is RejectOnOverlap and any covered cell is already indexed.
// Under OverwriteOnOverlap, index entries shared with earlier maps are
// repointed at m.
func (w *WorldMap) Insert(m Map) bool {
	if m == nil {
		return false
	}
	for _, existing := range w.maps {
		if existing == m {
			return false
		}
	}

	if w.policy == RejectOnOverlap && w.overlapsExisting(m) {
		return false
	}

	w.maps = append(w.maps, m)

	z := m.Level()
	for x := m.MinX(); x <= m.MaxX(); x++ {
		for y := m.MinY(); y <= m.MaxY(); y++ {
			w.index[model.Position{X: x, Y: y, Z: z}] = m
		}
	}
	return true
}

func (w *WorldMap) overlapsExisting(m Map) bool {
	z := m.Level()
	for x := m.MinX(); x <= m.MaxX(); x++ {
		for y := m.MinY(); y <= m.MaxY(); y++ {
			if _, taken := w.index[model.Position{X: x, Y: y, Z: z}]; taken {
				return true
			}
		}
	}
	return false
}

// FindMapForPos returns the map covering pos. A miss is not an error:
// the second result is false when no map covers the position.
func (w *WorldMap) FindMapForPos(pos model.Position) (Map, bool) {
	m, ok := w.index[pos]
	return m, ok
}

// MapInRangeOf reports whether at least one registered map intersects
// the rectangle spanning width x height cells from upperLeft, at
// upperLeft's level.
func (w *WorldMap) MapInRangeOf(upperLeft model.Position, width, height uint16) bool {
	maxX := upperLeft.X + int32(width) - 1
	maxY := upperLeft.Y + int32(height) - 1
	for _, m := range w.maps {
		if m.Intersects(upperLeft.X, upperLeft.Y, maxX, maxY, upperLeft.Z) {
			return true
		}
	}
	return false
}

// FindAllMapsInRangeOf collects every map intersecting the rectangle
// that extends from center by the four directional margins, at
// center's level. Results keep registration order.
func (w *WorldMap) FindAllMapsInRangeOf(north, south, east, west int32, center model.Position) []Map {
	minX := center.X - west
	minY := center.Y - north
	maxX := center.X + east
	maxY := center.Y + south

	var result []Map
	for _, m := range w.maps {
		if m.Intersects(minX, minY, maxX, maxY, center.Z) {
			result = append(result, m)
		}
	}
	return result
}

// ForEach visits every registered map in registration order.
func (w *WorldMap) ForEach(fn func(Map) bool) {
	for _, m := range w.maps {
		if !fn(m) {
			return
		}
	}
}

// Clear drops all registered maps, the position index and any
// in-progress aging sweep. Used at world teardown.
func (w *WorldMap) Clear() {
	w.maps = nil
	w.index = make(map[model.Position]Map)
	w.ageCursor = 0
	w.sweepLen = 0
}
