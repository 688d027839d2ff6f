// Package agent defines the capability contract the spatial core consumes
// (Step) and exposes back to agent implementations (the Index surface for
// collision, ray and neighbour queries plus membership maintenance).
//
// Concrete agent behaviour — what Step actually does — is deliberately an
// external collaborator's concern; this package only fixes the shape of the
// contract and the position/MBB bookkeeping every implementation needs.
package agent

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/clade-sim/spheregrid/world"
)

// MBB is an axis-aligned minimum bounding box, [Min, Max].
type MBB struct {
	Min, Max r3.Vec
}

// BoxForSphere returns the MBB of a sphere of the given radius centred at p.
func BoxForSphere(p r3.Vec, size float64) MBB {
	r := r3.Vec{X: size, Y: size, Z: size}
	return MBB{Min: r3.Sub(p, r), Max: r3.Add(p, r)}
}

// Agent is the contract the scheduler drives: it invokes Step exactly once
// per tick for every agent present at tick start. Step is free to call back
// into the Index (via whatever reference the concrete agent was built with)
// to Move or Reproduce.
type Agent interface {
	// Step runs one tick of behaviour. Called at most once per tick.
	Step()

	// Position is the agent's current centre.
	Position() r3.Vec

	// Size is the agent's sphere radius, immutable for its lifetime.
	Size() float64

	// MBB is the derived bounding box for the agent's current position.
	MBB() MBB

	// Key identifies the agent's concrete type, for persistence only; the
	// core never inspects it.
	Key() string
}

// Index is the capability surface the spatial core exposes to agents so
// that Move and Reproduce can be implemented in terms of it without the
// agent package depending on any particular index implementation.
type Index interface {
	// Overlap reports whether probePos, placed as a sphere the size of a,
	// would intersect world bounds or any other agent in a's 1-ring.
	Overlap(a Agent, probePos r3.Vec) bool

	// FirstHit sweeps a ray of the given length from a's position along
	// dir (need not be unit length; the index normalizes it) and returns
	// the first blocking hit within a's 1-ring, if any.
	FirstHit(a Agent, dir r3.Vec, length float64) (hit bool, t float64)

	// NearestNeighbour returns the closest other agent within a's 1-ring,
	// or ok=false if the 1-ring holds no other agent.
	NearestNeighbour(a Agent) (nearest Agent, ok bool)

	// AddAgent inserts a newly created agent into its owning chunk.
	AddAgent(a Agent)

	// RemoveAgent deletes a from its owning chunk. Returns false if a was
	// not present.
	RemoveAgent(a Agent) bool

	// World returns the bounded volume and movement policy agents resolve
	// Move against.
	World() *world.World

	// Reposition must be called by any setter of an agent's position,
	// before the new position becomes observable, so index bookkeeping
	// (chunk membership) stays correct.
	Reposition(a Agent, newMBB MBB)
}
