package models

import (
	"bytes"
	"encoding/json"
	"sort"
)

// ShapeRecord is one identifiable element on the drawing canvas. The ID is
// stable across snapshots for unchanged shapes, which is what makes snapshot
// diffing possible. Z-order is carried in ZIndex, not array position.
type ShapeRecord struct {
	ID     string          `json:"id"`
	Type   string          `json:"type"`
	ZIndex float64         `json:"z_index"`
	Props  json.RawMessage `json:"props,omitempty"`
}

// Equal compares two shapes by serialized value, not identity.
func (s ShapeRecord) Equal(other ShapeRecord) bool {
	a, err := json.Marshal(s)
	if err != nil {
		return false
	}
	b, err := json.Marshal(other)
	if err != nil {
		return false
	}
	return bytes.Equal(a, b)
}

// WhiteboardSnapshot is the full current state of the drawing canvas.
// Snapshots are level-triggered: the latest received one wins, so dropped
// or reordered deliveries cost staleness, never corruption.
type WhiteboardSnapshot struct {
	Shapes []ShapeRecord `json:"shapes"`
}

// Serialize returns a canonical byte form of the snapshot, with shapes
// ordered by ID so two snapshots with the same content always serialize
// identically regardless of arrival order.
func (w WhiteboardSnapshot) Serialize() []byte {
	shapes := make([]ShapeRecord, len(w.Shapes))
	copy(shapes, w.Shapes)
	sort.Slice(shapes, func(i, j int) bool { return shapes[i].ID < shapes[j].ID })
	b, err := json.Marshal(WhiteboardSnapshot{Shapes: shapes})
	if err != nil {
		return nil
	}
	return b
}
