package domain

import "math"

// Point is a position on the shared surface in whole pixels.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// PointAt rounds surface coordinates to the nearest pixel.
func PointAt(x, y float64) Point {
	return Point{X: int(math.Round(x)), Y: int(math.Round(y))}
}

// Presence is the per-participant record replicated to all peers.
// A nil Cursor means the pointer is outside the surface.
type Presence struct {
	Cursor  *Point `json:"cursor"`
	Message string `json:"message"`
}

// CursorUpdate sets the cursor. A nil Point clears it.
type CursorUpdate struct {
	Point *Point `json:"point"`
}

// PresencePatch carries the fields of a presence update. Absent fields are
// left untouched when the patch is applied.
type PresencePatch struct {
	Cursor  *CursorUpdate `json:"cursor,omitempty"`
	Message *string       `json:"message,omitempty"`
}

// CursorAt returns a patch that moves the cursor to p.
func CursorAt(p Point) PresencePatch {
	return PresencePatch{Cursor: &CursorUpdate{Point: &p}}
}

// CursorGone returns a patch that clears the cursor.
func CursorGone() PresencePatch {
	return PresencePatch{Cursor: &CursorUpdate{}}
}

// MessageIs returns a patch that sets the message.
func MessageIs(msg string) PresencePatch {
	return PresencePatch{Message: &msg}
}

// Empty reports whether the patch carries no field.
func (p PresencePatch) Empty() bool {
	return p.Cursor == nil && p.Message == nil
}

// Apply returns pr with the fields carried by patch merged in.
func (pr Presence) Apply(patch PresencePatch) Presence {
	if patch.Cursor != nil {
		if patch.Cursor.Point == nil {
			pr.Cursor = nil
		} else {
			p := *patch.Cursor.Point
			pr.Cursor = &p
		}
	}
	if patch.Message != nil {
		pr.Message = *patch.Message
	}
	return pr
}

// Clone returns a copy that shares no memory with pr.
func (pr Presence) Clone() Presence {
	if pr.Cursor != nil {
		p := *pr.Cursor
		pr.Cursor = &p
	}
	return pr
}

// Peer is another participant as seen through the presence store.
type Peer struct {
	ConnectionID int      `json:"connection_id"`
	Presence     Presence `json:"presence"`
}
