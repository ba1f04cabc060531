package session

import (
	"sort"

	"pairpad/internal/models"
)

// MemoryCanvas is an in-memory Canvas with a change listener. Every
// mutation fires the listener, including mutations made while a remote
// snapshot is applied; the ShapeReconciler's re-entrancy state is what
// keeps those from turning into broadcasts.
type MemoryCanvas struct {
	shapes   map[string]models.ShapeRecord
	onChange func()
	batching bool
	dirty    bool
}

var _ Canvas = (*MemoryCanvas)(nil)

func NewMemoryCanvas() *MemoryCanvas {
	return &MemoryCanvas{shapes: make(map[string]models.ShapeRecord)}
}

// SetOnChange registers the local-change listener.
func (c *MemoryCanvas) SetOnChange(fn func()) {
	c.onChange = fn
}

// Shapes returns the canvas content ordered by id. Render z-order lives in
// the shape attributes, not here.
func (c *MemoryCanvas) Shapes() []models.ShapeRecord {
	out := make([]models.ShapeRecord, 0, len(c.shapes))
	for _, s := range c.shapes {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *MemoryCanvas) CreateShape(s models.ShapeRecord) {
	c.shapes[s.ID] = s
	c.changed()
}

func (c *MemoryCanvas) UpdateShape(s models.ShapeRecord) {
	c.shapes[s.ID] = s
	c.changed()
}

func (c *MemoryCanvas) DeleteShape(id string) {
	delete(c.shapes, id)
	c.changed()
}

// Batch coalesces the listener to a single fire for the whole mutation
// set, which is all the transactionality the protocol asks of a canvas.
func (c *MemoryCanvas) Batch(fn func()) {
	if c.batching {
		fn()
		return
	}
	c.batching = true
	c.dirty = false
	fn()
	c.batching = false
	if c.dirty {
		c.fire()
	}
}

func (c *MemoryCanvas) changed() {
	if c.batching {
		c.dirty = true
		return
	}
	c.fire()
}

func (c *MemoryCanvas) fire() {
	if c.onChange != nil {
		c.onChange()
	}
}
