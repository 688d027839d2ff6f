package spatial

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/clade-sim/spheregrid/agent"
)

// stubAgent is a minimal agent.Agent double for exercising the index and
// query kernels without pulling in the organism package.
type stubAgent struct {
	pos       r3.Vec
	size      float64
	stepCount int
}

func (s *stubAgent) Step()            { s.stepCount++ }
func (s *stubAgent) Position() r3.Vec { return s.pos }
func (s *stubAgent) Size() float64    { return s.size }
func (s *stubAgent) MBB() agent.MBB   { return agent.BoxForSphere(s.pos, s.size) }
func (s *stubAgent) Key() string      { return "stub" }
