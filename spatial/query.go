package spatial

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/clade-sim/spheregrid/agent"
)

// firstHitEpsilon is subtracted from a resolved ray-sphere hit distance so
// the mover stops short of contact rather than exactly at it.
const firstHitEpsilon = 0.01

// Overlap reports whether probePos, as a sphere the size of a, would
// intersect world bounds or any other agent within a's 1-ring. Chunk
// membership is keyed off a's *current* position, not probePos — valid
// because movements are small and agents stay within their 1-ring
// between ticks.
func (idx *ChunkedIndex) Overlap(a agent.Agent, probePos r3.Vec) bool {
	if !idx.world.InBounds(probePos) {
		return true
	}

	hit := false
	rsum := a.Size()
	idx.chunkFor(a.Position()).forEachInRing(func(o agent.Agent) {
		if hit || o == a {
			return
		}
		d := r3.Sub(probePos, o.Position())
		r := rsum + o.Size()
		if r3.Dot(d, d) <= r*r {
			hit = true
		}
	})
	return hit
}

// FirstHit sweeps a ray from a's position along dir (normalized
// internally) for the given length and returns the first blocking hit
// within a's 1-ring. If the ray's endpoint lies out of world bounds, it
// returns (true, 0) regardless of any agent collision. If nothing blocks
// the full length, it returns (false, length).
func (idx *ChunkedIndex) FirstHit(a agent.Agent, dir r3.Vec, length float64) (bool, float64) {
	norm := r3.Norm(dir)
	if norm == 0 {
		return false, length
	}
	unit := r3.Scale(1/norm, dir)

	origin := a.Position()
	end := r3.Add(origin, r3.Scale(length, unit))
	if !idx.world.InBounds(end) {
		return true, 0
	}

	found := false
	best := length
	idx.chunkFor(origin).forEachInRing(func(o agent.Agent) {
		if o == a {
			return
		}
		r := a.Size() + o.Size()
		f := r3.Sub(origin, o.Position())
		b := 2 * r3.Dot(f, unit)
		c := r3.Dot(f, f) - r*r
		disc := b*b - 4*c
		if disc < 0 {
			return
		}
		sq := math.Sqrt(disc)
		t := (-b - sq) / 2
		if t < 0 {
			t = (-b + sq) / 2
		}
		if t < 0 || t > length {
			return
		}
		if !found || t < best {
			found = true
			best = t
		}
	})

	if !found {
		return false, length
	}
	return true, math.Max(0, best-firstHitEpsilon)
}

// NearestNeighbour returns the closest other agent within a's 1-ring, or
// ok=false if that 1-ring holds no other agent — even if more distant
// agents exist outside the 1-ring. This is an intentional bounded-work
// query, not a true global nearest neighbour.
func (idx *ChunkedIndex) NearestNeighbour(a agent.Agent) (agent.Agent, bool) {
	var best agent.Agent
	bestDistSq := math.Inf(1)
	origin := a.Position()

	idx.chunkFor(origin).forEachInRing(func(o agent.Agent) {
		if o == a {
			return
		}
		d := r3.Sub(origin, o.Position())
		distSq := r3.Dot(d, d)
		if distSq < bestDistSq {
			bestDistSq = distSq
			best = o
		}
	})

	return best, best != nil
}
