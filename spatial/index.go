// Package spatial implements the chunked spatial index: a 3D grid of
// Chunks, an eight-colour parallel scheduler over them, and the collision,
// ray and nearest-neighbour query kernels agents call back into.
package spatial

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"runtime"
	"sync/atomic"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/clade-sim/spheregrid/agent"
	"github.com/clade-sim/spheregrid/world"
)

// ChunkedIndex owns the 3D array of chunks, the eight colour groups and
// their per-core batches, and dispatches ticks through a Scheduler. It
// implements agent.Index.
type ChunkedIndex struct {
	world     *world.World
	minCorner r3.Vec
	chunkSize float64
	nx, ny, nz int

	chunks [][][]*Chunk // chunks[i][j][k]

	colours [8][]*Chunk
	batches [8][][]*Chunk

	scheduler   *Scheduler
	shuffleRand *rand.Rand
	stepping    atomic.Bool
}

// New constructs a ChunkedIndex covering [minCorner, maxCorner] with the
// given chunkSize, validated against largestAgentSize (see §4.2). coreCount
// of 0 selects availableLogicalCores-1 (minimum 1).
func New(w *world.World, minCorner, maxCorner r3.Vec, chunkSize, largestAgentSize float64, coreCount int) (*ChunkedIndex, error) {
	if chunkSize/2 < largestAgentSize {
		return nil, fmt.Errorf("spatial: chunkSize/2 (%.4g) < largestAgentSize (%.4g): a sphere could span more than one ring", chunkSize/2, largestAgentSize)
	}

	availableCores := runtime.NumCPU()
	if coreCount == 0 {
		coreCount = availableCores - 1
		if coreCount < 1 {
			coreCount = 1
		}
	}

	if chunkSize > 10*largestAgentSize {
		slog.Warn("spatial: chunkSize is more than 10x largestAgentSize, buckets will be sparse",
			"chunk_size", chunkSize, "largest_agent_size", largestAgentSize)
	}
	if coreCount == 1 {
		slog.Warn("spatial: coreCount is 1, parallel scheduling adds overhead without benefit")
	}
	if coreCount > availableCores {
		slog.Warn("spatial: coreCount exceeds available logical cores",
			"core_count", coreCount, "available_cores", availableCores)
	}

	size := r3.Sub(maxCorner, minCorner)
	nx := int(math.Ceil(size.X / chunkSize))
	ny := int(math.Ceil(size.Y / chunkSize))
	nz := int(math.Ceil(size.Z / chunkSize))
	if nx < 1 {
		nx = 1
	}
	if ny < 1 {
		ny = 1
	}
	if nz < 1 {
		nz = 1
	}

	idx := &ChunkedIndex{
		world:     w,
		minCorner: minCorner,
		chunkSize: chunkSize,
		nx:        nx,
		ny:        ny,
		nz:        nz,
	}

	idx.buildChunks()
	idx.wireNeighbours()
	idx.colourChunks()
	idx.batchColours(coreCount)

	idx.scheduler = newScheduler(coreCount)
	idx.shuffleRand = rand.New(rand.NewSource(w.Seed() - 1))

	return idx, nil
}

func (idx *ChunkedIndex) buildChunks() {
	idx.chunks = make([][][]*Chunk, idx.nx)
	for i := 0; i < idx.nx; i++ {
		idx.chunks[i] = make([][]*Chunk, idx.ny)
		for j := 0; j < idx.ny; j++ {
			idx.chunks[i][j] = make([]*Chunk, idx.nz)
			for k := 0; k < idx.nz; k++ {
				center := r3.Add(idx.minCorner, r3.Vec{
					X: (float64(i) + 0.5) * idx.chunkSize,
					Y: (float64(j) + 0.5) * idx.chunkSize,
					Z: (float64(k) + 0.5) * idx.chunkSize,
				})
				idx.chunks[i][j][k] = newChunk(center, idx.chunkSize, [3]int{i, j, k})
			}
		}
	}
}

func (idx *ChunkedIndex) wireNeighbours() {
	for i := 0; i < idx.nx; i++ {
		for j := 0; j < idx.ny; j++ {
			for k := 0; k < idx.nz; k++ {
				c := idx.chunks[i][j][k]
				for dx := -1; dx <= 1; dx++ {
					for dy := -1; dy <= 1; dy++ {
						for dz := -1; dz <= 1; dz++ {
							if dx == 0 && dy == 0 && dz == 0 {
								continue
							}
							ni, nj, nk := i+dx, j+dy, k+dz
							if ni < 0 || ni >= idx.nx || nj < 0 || nj >= idx.ny || nk < 0 || nk >= idx.nz {
								continue
							}
							c.neighbours = append(c.neighbours, idx.chunks[ni][nj][nk])
						}
					}
				}
			}
		}
	}
}

func (idx *ChunkedIndex) colourChunks() {
	for i := 0; i < idx.nx; i++ {
		for j := 0; j < idx.ny; j++ {
			for k := 0; k < idx.nz; k++ {
				colour := (i%2)*4 + (j%2)*2 + (k % 2)
				idx.colours[colour] = append(idx.colours[colour], idx.chunks[i][j][k])
			}
		}
	}
}

func (idx *ChunkedIndex) batchColours(coreCount int) {
	for c := 0; c < 8; c++ {
		idx.batches[c] = partitionBatches(idx.colours[c], coreCount)
	}
}

// partitionBatches splits chunks into min(cores, len(chunks)) batches; the
// first len(chunks)%C batches get one extra chunk.
func partitionBatches(chunks []*Chunk, cores int) [][]*Chunk {
	n := len(chunks)
	if n == 0 {
		return nil
	}
	c := cores
	if c > n {
		c = n
	}
	if c < 1 {
		c = 1
	}

	base := n / c
	rem := n % c

	batches := make([][]*Chunk, c)
	pos := 0
	for i := 0; i < c; i++ {
		size := base
		if i < rem {
			size++
		}
		batches[i] = chunks[pos : pos+size]
		pos += size
	}
	return batches
}

// chunkFor locates the chunk owning position p under the floor/clamp
// rule: i = clamp(floor((p.x-min.x)/chunkSize), 0, nx-1), and so on.
func (idx *ChunkedIndex) chunkFor(p r3.Vec) *Chunk {
	i := clampIndex(int(math.Floor((p.X-idx.minCorner.X)/idx.chunkSize)), idx.nx)
	j := clampIndex(int(math.Floor((p.Y-idx.minCorner.Y)/idx.chunkSize)), idx.ny)
	k := clampIndex(int(math.Floor((p.Z-idx.minCorner.Z)/idx.chunkSize)), idx.nz)
	return idx.chunks[i][j][k]
}

func clampIndex(v, n int) int {
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}

// World returns the bounded volume and movement policy.
func (idx *ChunkedIndex) World() *world.World { return idx.world }

// Dimensions returns the chunk grid's extent (nx, ny, nz).
func (idx *ChunkedIndex) Dimensions() (nx, ny, nz int) { return idx.nx, idx.ny, idx.nz }

// ChunkAt returns the chunk at the given grid coordinate, for white-box
// inspection (tests, telemetry).
func (idx *ChunkedIndex) ChunkAt(i, j, k int) *Chunk { return idx.chunks[i][j][k] }

// Colour returns the chunk list for colour group 0..7, for white-box
// inspection.
func (idx *ChunkedIndex) Colour(c int) []*Chunk { return idx.colours[c] }

// AddAgent locates the chunk owning a's current position and inserts it.
func (idx *ChunkedIndex) AddAgent(a agent.Agent) {
	idx.chunkFor(a.Position()).insert(a)
}

// RemoveAgent locates the chunk owning a's current position and removes
// it by identity.
func (idx *ChunkedIndex) RemoveAgent(a agent.Agent) bool {
	return idx.chunkFor(a.Position()).remove(a)
}

// Reposition re-buckets a if newMBB's centre falls in a different chunk
// than a's current (pre-mutation) position. Called by agent.Base before
// the position field is committed, so a.Position() here is still the old
// position.
func (idx *ChunkedIndex) Reposition(a agent.Agent, newMBB agent.MBB) {
	oldChunk := idx.chunkFor(a.Position())
	newCenter := r3.Scale(0.5, r3.Add(newMBB.Min, newMBB.Max))
	newChunk := idx.chunkFor(newCenter)
	if oldChunk == newChunk {
		return
	}
	oldChunk.remove(a)
	newChunk.insert(a)
}

// OrganismCount returns the total number of agents across all chunks.
func (idx *ChunkedIndex) OrganismCount() int {
	n := 0
	for i := 0; i < idx.nx; i++ {
		for j := 0; j < idx.ny; j++ {
			for k := 0; k < idx.nz; k++ {
				n += len(idx.chunks[i][j][k].agents)
			}
		}
	}
	return n
}

// AllOrganisms returns every agent currently indexed, in an unspecified
// order.
func (idx *ChunkedIndex) AllOrganisms() []agent.Agent {
	out := make([]agent.Agent, 0, idx.OrganismCount())
	for i := 0; i < idx.nx; i++ {
		for j := 0; j < idx.ny; j++ {
			for k := 0; k < idx.nz; k++ {
				out = append(out, idx.chunks[i][j][k].agents...)
			}
		}
	}
	return out
}

// OrganismsWithinRange is explicitly unsupported on the chunked index: its
// 1-ring invariant bounds every query to a fixed-radius neighbourhood, not
// an arbitrary caller-supplied range. Callers needing this should use an
// R-tree index instead.
func (idx *ChunkedIndex) OrganismsWithinRange(a agent.Agent, rng float64) ([]agent.Agent, error) {
	return nil, fmt.Errorf("organismsWithinRange on %g: %w", rng, ErrUnsupported)
}

// Step is the per-tick entry point. It returns false without doing any
// work if a prior Step is still in flight (the re-entrancy guard drops the
// tick silently, per §4.3/§7).
func (idx *ChunkedIndex) Step() bool {
	if !idx.stepping.CompareAndSwap(false, true) {
		return false
	}
	defer idx.stepping.Store(false)

	// Every chunk's membership must be snapshotted before any colour
	// runs, not lazily as each chunk steps: colour 0 can reposition an
	// agent into a chunk belonging to colour 7, and without an upfront,
	// grid-wide snapshot that chunk would pick the agent up and step it
	// a second time once colour 7 runs later in this same call.
	idx.snapshotAllChunks()

	for colour := 0; colour < 8; colour++ {
		batches := idx.batches[colour]
		if idx.world.RandomisedExecutionOrder {
			batches = shuffledBatches(batches, idx.shuffleRand)
		}
		idx.scheduler.run(batches)
	}
	return true
}

// snapshotAllChunks captures every chunk's agent membership as it stands
// at the start of this tick, before any colour runs.
func (idx *ChunkedIndex) snapshotAllChunks() {
	for i := 0; i < idx.nx; i++ {
		for j := 0; j < idx.ny; j++ {
			for k := 0; k < idx.nz; k++ {
				idx.chunks[i][j][k].snapshotAgents()
			}
		}
	}
}

// shuffledBatches returns a Fisher-Yates permutation of batches at the
// batch level; it never reorders chunks within a batch or colours
// relative to each other.
func shuffledBatches(batches [][]*Chunk, rng *rand.Rand) [][]*Chunk {
	if len(batches) < 2 {
		return batches
	}
	out := make([][]*Chunk, len(batches))
	copy(out, batches)
	for i := len(out) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Close releases the scheduler's worker pool. Safe to call on an index
// that was never stepped.
func (idx *ChunkedIndex) Close() {
	idx.scheduler.stop()
}
