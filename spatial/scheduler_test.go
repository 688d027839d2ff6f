package spatial

import (
	"sync/atomic"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/clade-sim/spheregrid/agent"
)

func TestSchedulerRunStepsEveryChunkOnce(t *testing.T) {
	s := newScheduler(3)
	defer s.stop()

	var total atomic.Int32
	chunks := make([]*Chunk, 10)
	for i := range chunks {
		c := newChunk(r3.Vec{}, 1.0, [3]int{i, 0, 0})
		c.insert(&countingAgent{counter: &total})
		c.snapshotAgents()
		chunks[i] = c
	}

	batches := partitionBatches(chunks, 3)
	s.run(batches)

	if got := total.Load(); got != int32(len(chunks)) {
		t.Errorf("total steps = %d, want %d", got, len(chunks))
	}
}

func TestSchedulerRunTwiceReusesPool(t *testing.T) {
	s := newScheduler(2)
	defer s.stop()

	var total atomic.Int32
	c := newChunk(r3.Vec{}, 1.0, [3]int{0, 0, 0})
	c.insert(&countingAgent{counter: &total})

	c.snapshotAgents()
	s.run([][]*Chunk{{c}})
	c.snapshotAgents()
	s.run([][]*Chunk{{c}})

	if got := total.Load(); got != 2 {
		t.Errorf("total steps after two run() calls = %d, want 2", got)
	}
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	s := newScheduler(1)
	s.run([][]*Chunk{})
	s.stop()
	s.stop()
}

func TestPartitionBatchesDistributesRemainder(t *testing.T) {
	chunks := make([]*Chunk, 7)
	for i := range chunks {
		chunks[i] = newChunk(r3.Vec{}, 1.0, [3]int{i, 0, 0})
	}

	batches := partitionBatches(chunks, 3)
	if len(batches) != 3 {
		t.Fatalf("len(batches) = %d, want 3", len(batches))
	}
	total := 0
	for _, b := range batches {
		total += len(b)
	}
	if total != 7 {
		t.Errorf("total chunks across batches = %d, want 7", total)
	}
}

func TestPartitionBatchesFewerChunksThanCores(t *testing.T) {
	chunks := make([]*Chunk, 2)
	for i := range chunks {
		chunks[i] = newChunk(r3.Vec{}, 1.0, [3]int{i, 0, 0})
	}

	batches := partitionBatches(chunks, 8)
	if len(batches) != 2 {
		t.Fatalf("len(batches) = %d, want 2 (capped at chunk count)", len(batches))
	}
}

// countingAgent increments a shared counter on Step, for asserting every
// chunk in a batch set actually ran.
type countingAgent struct {
	counter *atomic.Int32
}

func (c *countingAgent) Step()            { c.counter.Add(1) }
func (c *countingAgent) Position() r3.Vec { return r3.Vec{} }
func (c *countingAgent) Size() float64    { return 0.1 }
func (c *countingAgent) MBB() agent.MBB   { return agent.BoxForSphere(r3.Vec{}, 0.1) }
func (c *countingAgent) Key() string      { return "counting" }
