package agent

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/clade-sim/spheregrid/world"
)

// fakeAgent is the minimal Agent used to exercise Base in isolation from
// any real spatial index.
type fakeAgent struct {
	Base
}

func (f *fakeAgent) Step() {}

// fakeIndex is a hand-rolled Index double: Overlap/FirstHit behaviour is
// controlled directly by the test rather than derived from real chunk
// state, so Base.Move can be tested without spatial.ChunkedIndex.
type fakeIndex struct {
	w            *world.World
	overlapAt    func(probePos r3.Vec) bool
	firstHit     func(dir r3.Vec, length float64) (bool, float64)
	repositioned []MBB
}

func (f *fakeIndex) Overlap(a Agent, probePos r3.Vec) bool {
	if f.overlapAt == nil {
		return false
	}
	return f.overlapAt(probePos)
}

func (f *fakeIndex) FirstHit(a Agent, dir r3.Vec, length float64) (bool, float64) {
	if f.firstHit == nil {
		return false, length
	}
	return f.firstHit(dir, length)
}

func (f *fakeIndex) NearestNeighbour(a Agent) (Agent, bool) { return nil, false }
func (f *fakeIndex) AddAgent(a Agent)                       {}
func (f *fakeIndex) RemoveAgent(a Agent) bool                { return false }
func (f *fakeIndex) World() *world.World                     { return f.w }
func (f *fakeIndex) Reposition(a Agent, newMBB MBB) {
	f.repositioned = append(f.repositioned, newMBB)
}

func newFakeAgent(pos r3.Vec, size float64, idx *fakeIndex) *fakeAgent {
	fa := &fakeAgent{}
	fa.Base = NewBase("fake", pos, size, func(newMBB MBB) {
		idx.Reposition(fa, newMBB)
	})
	return fa
}

func TestSetPositionPublishesBeforeCommit(t *testing.T) {
	idx := &fakeIndex{w: world.New(r3.Vec{}, r3.Vec{X: 100, Y: 100, Z: 100}, 1)}
	a := newFakeAgent(r3.Vec{X: 1, Y: 1, Z: 1}, 0.5, idx)

	a.SetPosition(r3.Vec{X: 2, Y: 2, Z: 2})

	if len(idx.repositioned) != 1 {
		t.Fatalf("expected exactly one Reposition call, got %d", len(idx.repositioned))
	}
	want := BoxForSphere(r3.Vec{X: 2, Y: 2, Z: 2}, 0.5)
	if idx.repositioned[0] != want {
		t.Errorf("Reposition got %v, want %v", idx.repositioned[0], want)
	}
	if a.Position() != (r3.Vec{X: 2, Y: 2, Z: 2}) {
		t.Errorf("Position() after SetPosition = %v", a.Position())
	}
}

func TestMoveBlockedRejectsFullStepOnOverlap(t *testing.T) {
	idx := &fakeIndex{
		w:         world.New(r3.Vec{}, r3.Vec{X: 100, Y: 100, Z: 100}, 1),
		overlapAt: func(probePos r3.Vec) bool { return true },
	}
	a := newFakeAgent(r3.Vec{X: 5, Y: 5, Z: 5}, 0.5, idx)

	a.Move(a, idx, r3.Vec{X: 1, Y: 0, Z: 0})

	if a.Position() != (r3.Vec{X: 5, Y: 5, Z: 5}) {
		t.Errorf("Position moved despite overlap: %v", a.Position())
	}
}

func TestMoveBlockedAcceptsFullStepWhenClear(t *testing.T) {
	idx := &fakeIndex{
		w:         world.New(r3.Vec{}, r3.Vec{X: 100, Y: 100, Z: 100}, 1),
		overlapAt: func(probePos r3.Vec) bool { return false },
	}
	a := newFakeAgent(r3.Vec{X: 5, Y: 5, Z: 5}, 0.5, idx)

	a.Move(a, idx, r3.Vec{X: 1, Y: 0, Z: 0})

	want := r3.Vec{X: 6, Y: 5, Z: 5}
	if a.Position() != want {
		t.Errorf("Position() = %v, want %v", a.Position(), want)
	}
}

func TestMovePreciseStopsShortOfHit(t *testing.T) {
	w := world.New(r3.Vec{}, r3.Vec{X: 100, Y: 100, Z: 100}, 1)
	w.PreciseMovement = true
	idx := &fakeIndex{
		w: w,
		firstHit: func(dir r3.Vec, length float64) (bool, float64) {
			return true, 2.0
		},
	}
	a := newFakeAgent(r3.Vec{X: 0, Y: 0, Z: 0}, 0.5, idx)

	a.Move(a, idx, r3.Vec{X: 10, Y: 0, Z: 0})

	got := a.Position()
	want := r3.Vec{X: 1.999, Y: 0, Z: 0}
	const tol = 1e-9
	if abs(got.X-want.X) > tol || got.Y != want.Y || got.Z != want.Z {
		t.Errorf("Position() = %v, want %v", got, want)
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func TestMoveZeroLengthIsNoop(t *testing.T) {
	idx := &fakeIndex{w: world.New(r3.Vec{}, r3.Vec{X: 100, Y: 100, Z: 100}, 1)}
	a := newFakeAgent(r3.Vec{X: 5, Y: 5, Z: 5}, 0.5, idx)

	a.Move(a, idx, r3.Vec{})

	if a.Position() != (r3.Vec{X: 5, Y: 5, Z: 5}) {
		t.Errorf("Position() changed on zero-length Move: %v", a.Position())
	}
	if len(idx.repositioned) != 0 {
		t.Errorf("Reposition called on zero-length Move")
	}
}

func TestMBBMatchesPosition(t *testing.T) {
	idx := &fakeIndex{w: world.New(r3.Vec{}, r3.Vec{X: 100, Y: 100, Z: 100}, 1)}
	a := newFakeAgent(r3.Vec{X: 2, Y: 3, Z: 4}, 1.5, idx)

	box := a.MBB()
	wantMin := r3.Vec{X: 0.5, Y: 1.5, Z: 2.5}
	wantMax := r3.Vec{X: 3.5, Y: 4.5, Z: 5.5}
	if box.Min != wantMin || box.Max != wantMax {
		t.Errorf("MBB() = %+v, want Min=%v Max=%v", box, wantMin, wantMax)
	}
}
