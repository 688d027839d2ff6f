// Package organism provides Sphere, a minimal reference implementation of
// agent.Agent: a bounded Brownian walker that reproduces with a fixed
// per-tick probability. It exists to give the spatial core something
// concrete to drive in tests and in cmd/simulate — it is a sample
// collaborator, not part of the core contract itself.
package organism

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"sync/atomic"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/clade-sim/spheregrid/agent"
)

// Key is the persistence type tag every Sphere reports.
const Key = "sphere"

// ReproduceReporter receives reproduction outcomes for telemetry.
// *telemetry.Collector implements it. A Sphere with no reporter wired in
// (the default) simply reports nothing.
type ReproduceReporter interface {
	RecordBirth()
	RecordReproduceFailure()
}

var nextID atomic.Uint32

// NextID returns a process-unique id, used for organisms created outside
// of Reproduce (initial seeding).
func NextID() uint32 {
	return nextID.Add(1)
}

// Sphere is a spherical organism: a bounded random walk each tick, with a
// chance of reproducing per §4.5.
type Sphere struct {
	agent.Base

	idx agent.Index
	id  uint32

	rng     *rand.Rand
	uniform distuv.Uniform

	age                  int
	stepSize             float64
	reproduceProbability float64

	reporter ReproduceReporter
}

// New constructs a Sphere at position with the given radius, bound to idx
// (the index it will call Overlap/FirstHit/Reproduce-support against).
// src seeds this organism's own random generator — callers should derive
// it deterministically (see world.RandSource) to keep single-threaded runs
// reproducible.
func New(idx agent.Index, id uint32, position r3.Vec, size float64, src rand.Source, stepSize, reproduceProbability float64) *Sphere {
	s := &Sphere{
		idx:                  idx,
		id:                   id,
		rng:                  rand.New(src),
		stepSize:             stepSize,
		reproduceProbability: reproduceProbability,
	}
	s.uniform = distuv.Uniform{Min: 0, Max: 1, Src: s.rng}
	s.Base = agent.NewBase(Key, position, size, func(newMBB agent.MBB) {
		idx.Reposition(s, newMBB)
	})
	return s
}

// ID returns the organism's process-unique identifier.
func (s *Sphere) ID() uint32 { return s.id }

// SetReporter wires r to receive this organism's reproduction outcomes.
// Every child spawned afterwards inherits the same reporter (spawnChild
// propagates it), so wiring it once on the seed population covers every
// descendant. Pass nil to stop reporting.
func (s *Sphere) SetReporter(r ReproduceReporter) { s.reporter = r }

// Age returns the number of ticks this organism has been stepped.
func (s *Sphere) Age() int { return s.age }

// Step performs one tick: a bounded random walk, then a chance to
// reproduce.
func (s *Sphere) Step() {
	s.age++

	dir := r3.Vec{
		X: s.brownianAxis(),
		Y: s.brownianAxis(),
		Z: s.brownianAxis(),
	}
	s.Move(s, s.idx, dir)

	if s.rng.Float64() < s.reproduceProbability {
		child := s.Reproduce()
		if s.reporter != nil {
			if child != nil {
				s.reporter.RecordBirth()
			} else {
				s.reporter.RecordReproduceFailure()
			}
		}
	}
}

func (s *Sphere) brownianAxis() float64 {
	return (s.rng.Float64()*2 - 1) * s.stepSize
}

// Reproduce tries up to five times to place a child per the priority
// order in §4.5 (symmetric split, one-sided positive, one-sided
// negative), sampling a fresh random unit direction each attempt. It
// returns the new organism on success, or nil if every attempt collided.
func (s *Sphere) Reproduce() *Sphere {
	for attempt := 0; attempt < 5; attempt++ {
		d := s.randomUnitDirection()
		r := s.Size() * 1.02

		plus := r3.Add(s.Position(), r3.Scale(r, d))
		minus := r3.Sub(s.Position(), r3.Scale(r, d))
		if !s.idx.Overlap(s, plus) && !s.idx.Overlap(s, minus) {
			child := s.spawnChild(plus)
			s.SetPosition(minus)
			return child
		}

		twoPlus := r3.Add(s.Position(), r3.Scale(2*r, d))
		if !s.idx.Overlap(s, twoPlus) {
			return s.spawnChild(twoPlus)
		}

		twoMinus := r3.Sub(s.Position(), r3.Scale(2*r, d))
		if !s.idx.Overlap(s, twoMinus) {
			return s.spawnChild(twoMinus)
		}
	}
	return nil
}

// randomUnitDirection samples a uniformly random unit vector via
// phi = arccos(2u-1) - pi/2, lambda = 2*pi*v.
func (s *Sphere) randomUnitDirection() r3.Vec {
	u := s.uniform.Rand()
	v := s.uniform.Rand()
	phi := math.Acos(2*u-1) - math.Pi/2
	lambda := 2 * math.Pi * v

	cosPhi := math.Cos(phi)
	return r3.Vec{
		X: cosPhi * math.Cos(lambda),
		Y: cosPhi * math.Sin(lambda),
		Z: math.Sin(phi),
	}
}

func (s *Sphere) spawnChild(pos r3.Vec) *Sphere {
	child := New(s.idx, NextID(), pos, s.Size(), rand.NewSource(s.rng.Int63()), s.stepSize, s.reproduceProbability)
	child.reporter = s.reporter
	s.idx.AddAgent(child)
	return child
}

// Encode renders the organism's persistent state as a comma-separated
// line: key,x,y,z,size,age. The core never parses or emits this — it is
// entirely the agent's concern per §6.
func (s *Sphere) Encode() string {
	p := s.Position()
	return fmt.Sprintf("%s,%g,%g,%g,%g,%d", s.Key(), p.X, p.Y, p.Z, s.Size(), s.age)
}

// Decode parses a line produced by Encode back into a Sphere bound to idx,
// with a fresh random source.
func Decode(line string, idx agent.Index, src rand.Source, stepSize, reproduceProbability float64) (*Sphere, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 6 || fields[0] != Key {
		return nil, fmt.Errorf("organism: malformed sphere encoding %q", line)
	}

	x, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return nil, fmt.Errorf("organism: parsing x: %w", err)
	}
	y, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return nil, fmt.Errorf("organism: parsing y: %w", err)
	}
	z, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return nil, fmt.Errorf("organism: parsing z: %w", err)
	}
	size, err := strconv.ParseFloat(fields[4], 64)
	if err != nil {
		return nil, fmt.Errorf("organism: parsing size: %w", err)
	}
	age, err := strconv.Atoi(fields[5])
	if err != nil {
		return nil, fmt.Errorf("organism: parsing age: %w", err)
	}

	s := New(idx, NextID(), r3.Vec{X: x, Y: y, Z: z}, size, src, stepSize, reproduceProbability)
	s.age = age
	return s, nil
}
