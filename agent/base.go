package agent

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Base implements the position/size/MBB bookkeeping and reposition
// plumbing common to every concrete agent, the way a base struct would in
// an inheritance hierarchy — embed it and implement Step yourself.
//
// Base does not own an Index reference: the reposition hook is supplied at
// construction so tests can substitute a fake without pulling in a real
// spatial index.
type Base struct {
	key        string
	size       float64
	position   r3.Vec
	reposition func(newMBB MBB)
}

// NewBase constructs a Base. reposition is invoked by SetPosition before
// the new position becomes observable; it is typically
// index.Reposition bound to the concrete agent's own identity.
func NewBase(key string, position r3.Vec, size float64, reposition func(newMBB MBB)) Base {
	return Base{key: key, size: size, position: position, reposition: reposition}
}

// Position returns the agent's current centre.
func (b *Base) Position() r3.Vec { return b.position }

// Size returns the agent's immutable sphere radius.
func (b *Base) Size() float64 { return b.size }

// Key returns the agent's persistence type tag.
func (b *Base) Key() string { return b.key }

// MBB returns the bounding box derived from the current position.
func (b *Base) MBB() MBB { return BoxForSphere(b.position, b.size) }

// SetPosition publishes the reposition notification for newPos, then
// commits it. Every position mutation in a concrete agent must go through
// this rather than assigning the field directly, or index bookkeeping
// (chunk membership) goes stale.
func (b *Base) SetPosition(newPos r3.Vec) {
	if b.reposition != nil {
		b.reposition(BoxForSphere(newPos, b.size))
	}
	b.position = newPos
}

// Move resolves dir against idx's movement policy for agent self (the
// concrete type embedding this Base) and commits the result through
// SetPosition. When idx.World().PreciseMovement is false, the full step is
// attempted and rejected on overlap; when true, the step is swept via
// FirstHit and the agent stops short of contact.
func (b *Base) Move(self Agent, idx Index, dir r3.Vec) {
	length := r3.Norm(dir)
	if length == 0 {
		return
	}

	if !idx.World().PreciseMovement {
		newPos := r3.Add(b.position, dir)
		if !idx.Overlap(self, newPos) {
			b.SetPosition(newPos)
		}
		return
	}

	const epsilon = 0.001
	unit := r3.Scale(1/length, dir)
	_, t := idx.FirstHit(self, unit, length)
	advance := math.Max(0, t-epsilon)
	b.SetPosition(r3.Add(b.position, r3.Scale(advance, unit)))
}
