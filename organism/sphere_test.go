package organism

import (
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/clade-sim/spheregrid/agent"
	"github.com/clade-sim/spheregrid/telemetry"
	"github.com/clade-sim/spheregrid/world"
)

// testIndex is a hand-rolled agent.Index double that tracks every agent
// ever added, so Overlap/NearestNeighbour can be answered by brute-force
// distance checks without a real spatial.ChunkedIndex.
type testIndex struct {
	w      *world.World
	agents []agent.Agent
}

func newTestIndex() *testIndex {
	return &testIndex{w: world.New(r3.Vec{X: -100, Y: -100, Z: -100}, r3.Vec{X: 100, Y: 100, Z: 100}, 11)}
}

func (t *testIndex) Overlap(a agent.Agent, probePos r3.Vec) bool {
	if !t.w.InBounds(probePos) {
		return true
	}
	for _, o := range t.agents {
		if o == a {
			continue
		}
		d := r3.Sub(probePos, o.Position())
		r := a.Size() + o.Size()
		if r3.Dot(d, d) <= r*r {
			return true
		}
	}
	return false
}

func (t *testIndex) FirstHit(a agent.Agent, dir r3.Vec, length float64) (bool, float64) {
	return false, length
}

func (t *testIndex) NearestNeighbour(a agent.Agent) (agent.Agent, bool) {
	var best agent.Agent
	bestDistSq := -1.0
	for _, o := range t.agents {
		if o == a {
			continue
		}
		d := r3.Sub(a.Position(), o.Position())
		distSq := r3.Dot(d, d)
		if best == nil || distSq < bestDistSq {
			best, bestDistSq = o, distSq
		}
	}
	return best, best != nil
}

func (t *testIndex) AddAgent(a agent.Agent) { t.agents = append(t.agents, a) }

func (t *testIndex) RemoveAgent(a agent.Agent) bool {
	for i, o := range t.agents {
		if o == a {
			t.agents = append(t.agents[:i], t.agents[i+1:]...)
			return true
		}
	}
	return false
}

func (t *testIndex) World() *world.World { return t.w }

func (t *testIndex) Reposition(a agent.Agent, newMBB agent.MBB) {}

func TestStepWalksWithinBound(t *testing.T) {
	idx := newTestIndex()
	s := New(idx, 1, r3.Vec{X: 0, Y: 0, Z: 0}, 0.1, rand.NewSource(1), 0.01, 0)
	idx.AddAgent(s)

	before := s.Position()
	s.Step()
	after := s.Position()

	d := r3.Sub(after, before)
	for _, axis := range []float64{d.X, d.Y, d.Z} {
		if axis < -0.01-1e-9 || axis > 0.01+1e-9 {
			t.Errorf("per-axis displacement %v exceeds bound of 0.01", axis)
		}
	}
	if s.Age() != 1 {
		t.Errorf("Age() = %d, want 1", s.Age())
	}
}

func TestStepNeverReproducesAtZeroProbability(t *testing.T) {
	idx := newTestIndex()
	s := New(idx, 1, r3.Vec{X: 0, Y: 0, Z: 0}, 0.1, rand.NewSource(1), 0.01, 0)
	idx.AddAgent(s)

	for i := 0; i < 50; i++ {
		s.Step()
	}
	if len(idx.agents) != 1 {
		t.Errorf("population grew to %d with reproduceProbability=0", len(idx.agents))
	}
}

func TestReproduceSymmetricSplitWhenClear(t *testing.T) {
	idx := newTestIndex()
	s := New(idx, 1, r3.Vec{X: 0, Y: 0, Z: 0}, 0.1, rand.NewSource(2), 0.01, 1)
	idx.AddAgent(s)

	child := s.Reproduce()
	if child == nil {
		t.Fatal("Reproduce() returned nil in an empty world, want a child")
	}
	if len(idx.agents) != 2 {
		t.Fatalf("len(idx.agents) = %d after Reproduce, want 2", len(idx.agents))
	}

	// Reproduce must not leave parent and child overlapping each other,
	// nor leave either overlapping anything else (there is nothing else).
	if idx.Overlap(s, s.Position()) {
		t.Error("parent overlaps another agent after symmetric split")
	}
	if idx.Overlap(child, child.Position()) {
		t.Error("child overlaps another agent after symmetric split")
	}
}

func TestReproduceReturnsNilWhenBoxedIn(t *testing.T) {
	idx := newTestIndex()
	s := New(idx, 1, r3.Vec{X: 0, Y: 0, Z: 0}, 0.1, rand.NewSource(3), 0.01, 1)
	idx.AddAgent(s)

	// Pack the shell at every attempted offset (r and 2r in every
	// direction averages out to a coarse shell around the parent) with
	// blocking neighbours so every attempt in Reproduce's five tries
	// collides. A dense shell of close-packed stand-ins within 0.3 of
	// the origin is sufficient: the candidate offsets are all within
	// 2*r*1.02 = 0.204 of the parent's position.
	for x := -0.3; x <= 0.3; x += 0.1 {
		for y := -0.3; y <= 0.3; y += 0.1 {
			for z := -0.3; z <= 0.3; z += 0.1 {
				p := r3.Vec{X: x, Y: y, Z: z}
				if p == (r3.Vec{}) {
					continue
				}
				idx.AddAgent(&blocker{pos: p, size: 0.1})
			}
		}
	}

	child := s.Reproduce()
	if child != nil {
		t.Error("Reproduce() returned a child in a fully packed shell, want nil")
	}
}

func TestStepReportsBirthToReporter(t *testing.T) {
	idx := newTestIndex()
	s := New(idx, 1, r3.Vec{X: 0, Y: 0, Z: 0}, 0.1, rand.NewSource(2), 0.01, 1)
	idx.AddAgent(s)

	collector := telemetry.NewCollector(1.0, 0.1)
	s.SetReporter(collector)

	s.Step()

	stats := collector.Flush(1, len(idx.agents), nil)
	if stats.Births != 1 {
		t.Errorf("Births = %d, want 1", stats.Births)
	}
	if stats.ReproduceAttempts != 1 || stats.ReproduceSuccesses != 1 {
		t.Errorf("ReproduceAttempts/Successes = %d/%d, want 1/1", stats.ReproduceAttempts, stats.ReproduceSuccesses)
	}
}

func TestStepReportsReproduceFailureToReporter(t *testing.T) {
	idx := newTestIndex()
	s := New(idx, 1, r3.Vec{X: 0, Y: 0, Z: 0}, 0.1, rand.NewSource(3), 0.01, 1)
	idx.AddAgent(s)

	for x := -0.3; x <= 0.3; x += 0.1 {
		for y := -0.3; y <= 0.3; y += 0.1 {
			for z := -0.3; z <= 0.3; z += 0.1 {
				p := r3.Vec{X: x, Y: y, Z: z}
				if p == (r3.Vec{}) {
					continue
				}
				idx.AddAgent(&blocker{pos: p, size: 0.1})
			}
		}
	}

	collector := telemetry.NewCollector(1.0, 0.1)
	s.SetReporter(collector)

	s.Step()

	stats := collector.Flush(1, len(idx.agents), nil)
	if stats.Births != 0 {
		t.Errorf("Births = %d, want 0", stats.Births)
	}
	if stats.ReproduceAttempts != 1 || stats.ReproduceSuccesses != 0 {
		t.Errorf("ReproduceAttempts/Successes = %d/%d, want 1/0", stats.ReproduceAttempts, stats.ReproduceSuccesses)
	}
}

func TestSpawnChildInheritsParentReporter(t *testing.T) {
	idx := newTestIndex()
	s := New(idx, 1, r3.Vec{X: 0, Y: 0, Z: 0}, 0.1, rand.NewSource(2), 0.01, 1)
	idx.AddAgent(s)

	collector := telemetry.NewCollector(1.0, 0.1)
	s.SetReporter(collector)

	child := s.Reproduce()
	if child == nil {
		t.Fatal("Reproduce() returned nil, want a child")
	}
	if child.reporter != collector {
		t.Error("spawned child did not inherit the parent's reporter")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	idx := newTestIndex()
	s := New(idx, 1, r3.Vec{X: 1.5, Y: -2.5, Z: 3.0}, 0.25, rand.NewSource(4), 0.01, 0)
	s.age = 7

	line := s.Encode()
	decoded, err := Decode(line, idx, rand.NewSource(5), 0.01, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if decoded.Position() != s.Position() {
		t.Errorf("decoded Position() = %v, want %v", decoded.Position(), s.Position())
	}
	if decoded.Size() != s.Size() {
		t.Errorf("decoded Size() = %v, want %v", decoded.Size(), s.Size())
	}
	if decoded.Age() != s.Age() {
		t.Errorf("decoded Age() = %v, want %v", decoded.Age(), s.Age())
	}
}

func TestDecodeRejectsMalformedLine(t *testing.T) {
	idx := newTestIndex()
	if _, err := Decode("not,a,valid,line", idx, rand.NewSource(1), 0.01, 0); err == nil {
		t.Error("Decode() accepted a malformed line")
	}
}

// blocker is a fixed agent.Agent used only to occupy space in
// TestReproduceReturnsNilWhenBoxedIn.
type blocker struct {
	pos  r3.Vec
	size float64
}

func (b *blocker) Step()            {}
func (b *blocker) Position() r3.Vec { return b.pos }
func (b *blocker) Size() float64    { return b.size }
func (b *blocker) MBB() agent.MBB   { return agent.BoxForSphere(b.pos, b.size) }
func (b *blocker) Key() string      { return "blocker" }
