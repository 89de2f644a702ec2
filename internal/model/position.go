package model

import "fmt"

// Position is an absolute world coordinate.
// Value type, comparable, usable as a map key.
type Position struct {
	X int32
	Y int32
	Z int32
}

// NewPosition creates a Position with the given coordinates.
func NewPosition(x, y, z int32) Position {
	return Position{X: x, Y: y, Z: z}
}

// String returns "(x, y, z)" for diagnostics.
func (p Position) String() string {
	return fmt.Sprintf("(%d, %d, %d)", p.X, p.Y, p.Z)
}
