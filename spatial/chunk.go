package spatial

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/clade-sim/spheregrid/agent"
)

// Chunk is an axis-aligned cubic cell of the uniform grid. It owns the
// agents whose position currently falls inside it, by reference only —
// an agent's lifetime is tied to the index, not to any one chunk, since
// agents move between chunks as they move in space.
type Chunk struct {
	center     r3.Vec
	edge       float64
	coord      [3]int
	agents     []agent.Agent
	snapshot   []agent.Agent
	neighbours []*Chunk
}

func newChunk(center r3.Vec, edge float64, coord [3]int) *Chunk {
	return &Chunk{center: center, edge: edge, coord: coord}
}

// Center returns the chunk's centre position.
func (c *Chunk) Center() r3.Vec { return c.center }

// Neighbours returns the chunk's fixed, up-to-26-long neighbour list,
// computed once at index construction.
func (c *Chunk) Neighbours() []*Chunk { return c.neighbours }

// Agents returns the chunk's current agent sequence. Callers must not
// retain the slice across a tick: chunk membership can change between
// ticks and the backing array may be reused.
func (c *Chunk) Agents() []agent.Agent { return c.agents }

// insert appends a to the chunk's agent sequence. No deduplication.
func (c *Chunk) insert(a agent.Agent) {
	c.agents = append(c.agents, a)
}

// remove deletes the first identity match of a from the sequence, reports
// whether anything was removed.
func (c *Chunk) remove(a agent.Agent) bool {
	for i, cur := range c.agents {
		if cur == a {
			c.agents = append(c.agents[:i], c.agents[i+1:]...)
			return true
		}
	}
	return false
}

// snapshotAgents captures the chunk's current agent membership into
// snapshot, for a later step to iterate. The caller (ChunkedIndex.Step)
// runs this for every chunk before any colour starts running, so the
// snapshot reflects membership at tick start across the whole grid, not
// just within this one chunk.
func (c *Chunk) snapshotAgents() {
	c.snapshot = append(c.snapshot[:0], c.agents...)
}

// step invokes Step on every agent in the chunk's snapshot — the
// membership snapshotAgents captured before this tick's colours began
// running, not the chunk's live agents slice. This is what keeps a tick
// at exactly one Step call per agent present at tick start despite two
// different ways membership can change mid-tick: a same-chunk
// reposition or reproduction shifting/appending the live slice (the
// snapshot is a separate backing array, unaffected), and a migration
// into this chunk from a chunk whose colour ran earlier in the same
// Step call (the snapshot was taken before that colour ran, so it
// predates the arrival).
func (c *Chunk) step() {
	for _, a := range c.snapshot {
		a.Step()
	}
}

// forEachInRing calls fn for every agent in c and in each of c's
// neighbours — the "1-ring" the query kernels operate over.
func (c *Chunk) forEachInRing(fn func(agent.Agent)) {
	for _, a := range c.agents {
		fn(a)
	}
	for _, nb := range c.neighbours {
		for _, a := range nb.agents {
			fn(a)
		}
	}
}
