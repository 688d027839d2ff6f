// Command simulate runs the chunked-index simulation: it loads a
// configuration, seeds a population of organism.Sphere organisms into a
// spatial.ChunkedIndex, and ticks it either for a fixed number of ticks
// or until interrupted.
package main

import (
	"context"
	"flag"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/clade-sim/spheregrid/agent"
	"github.com/clade-sim/spheregrid/config"
	"github.com/clade-sim/spheregrid/organism"
	"github.com/clade-sim/spheregrid/spatial"
	"github.com/clade-sim/spheregrid/telemetry"
	"github.com/clade-sim/spheregrid/world"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config overlay (empty = embedded defaults)")
	seed := flag.Int64("seed", 0, "master RNG seed (0 = time-based)")
	ticks := flag.Int("ticks", 0, "number of ticks to run (0 = run until interrupted)")
	cores := flag.Int("cores", -1, "worker count for the tick scheduler (unset = use config, 0 = auto)")
	precise := flag.Bool("precise", false, "use precise (ray-swept) movement resolution")
	shuffle := flag.Bool("shuffle", false, "randomise batch execution order within each colour")
	logStats := flag.Bool("log-stats", true, "log window stats via slog as the run progresses")
	statsWindow := flag.Int("stats-window", 0, "ticks per telemetry window (0 = use config)")
	snapshotCSV := flag.String("snapshot-csv", "", "directory to write telemetry.csv/perf.csv into (empty = skip)")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if err := config.Init(*configPath); err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	if *seed != 0 {
		cfg.Run.Seed = *seed
	} else if cfg.Run.Seed == 0 {
		cfg.Run.Seed = time.Now().UnixNano()
	}
	if *ticks != 0 {
		cfg.Run.Ticks = *ticks
	}
	if *cores >= 0 {
		cfg.Spatial.CoreCount = *cores
	}
	if *precise {
		cfg.World.PreciseMovement = true
	}
	if *shuffle {
		cfg.World.RandomisedExecutionOrder = true
	}
	if *statsWindow > 0 {
		cfg.Telemetry.WindowSeconds = float64(*statsWindow) * cfg.Telemetry.TickDuration
	}
	if *snapshotCSV != "" {
		cfg.Telemetry.SnapshotCSV = *snapshotCSV
	}
	cfg.Telemetry.LogStats = *logStats

	w := world.New(
		r3.Vec{X: cfg.World.MinX, Y: cfg.World.MinY, Z: cfg.World.MinZ},
		r3.Vec{X: cfg.World.MaxX, Y: cfg.World.MaxY, Z: cfg.World.MaxZ},
		cfg.Run.Seed,
	)
	w.PreciseMovement = cfg.World.PreciseMovement
	w.RandomisedExecutionOrder = cfg.World.RandomisedExecutionOrder

	idx, err := spatial.New(w, w.Min, w.Max, cfg.Spatial.ChunkSize, cfg.Spatial.LargestAgentSize, cfg.Spatial.CoreCount)
	if err != nil {
		slog.Error("constructing spatial index", "error", err)
		os.Exit(1)
	}
	defer idx.Close()

	collector := telemetry.NewCollector(cfg.Telemetry.WindowSeconds, float32(cfg.Telemetry.TickDuration))
	perf := telemetry.NewPerfCollector(int(collector.WindowDurationTicks()))

	seedPopulation(idx, cfg, collector)

	om, err := telemetry.NewOutputManager(cfg.Telemetry.SnapshotCSV)
	if err != nil {
		slog.Error("opening telemetry output", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := om.Close(); err != nil {
			slog.Warn("closing telemetry output", "error", err)
		}
	}()
	if err := om.WriteConfig(cfg); err != nil {
		slog.Warn("writing config snapshot", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run(ctx, idx, cfg, collector, perf, om)
}

// seedPopulation places cfg.Organism.InitialCount Sphere organisms at
// uniformly random positions within the world, skipping positions that
// would overlap an already-placed organism. Each seeded organism reports
// its reproduction outcomes to reporter; every descendant it spawns
// inherits the same reporter, so wiring it here covers the whole run.
func seedPopulation(idx agent.Index, cfg *config.Config, reporter organism.ReproduceReporter) {
	src := idx.World().RandSource(0)
	rng := rand.New(src)
	size := idx.World().Size()
	min := idx.World().Min

	placed := 0
	for attempt := 0; placed < cfg.Organism.InitialCount && attempt < cfg.Organism.InitialCount*50; attempt++ {
		pos := r3.Vec{
			X: min.X + rng.Float64()*size.X,
			Y: min.Y + rng.Float64()*size.Y,
			Z: min.Z + rng.Float64()*size.Z,
		}
		probe := &placementProbe{pos: pos, size: cfg.Organism.InitialSize}
		if idx.Overlap(probe, pos) {
			continue
		}

		s := organism.New(idx, organism.NextID(), pos, cfg.Organism.InitialSize,
			rand.NewSource(src.Int63()), cfg.Organism.StepSize, cfg.Organism.ReproduceProbability)
		s.SetReporter(reporter)
		idx.AddAgent(s)
		placed++
	}

	slog.Info("seeded population", "requested", cfg.Organism.InitialCount, "placed", placed)
}

// placementProbe is a throwaway agent.Agent used only to pass a candidate
// size into Overlap during initial seeding, before any real organism
// exists at that position.
type placementProbe struct {
	pos  r3.Vec
	size float64
}

func (p *placementProbe) Step()            {}
func (p *placementProbe) Position() r3.Vec { return p.pos }
func (p *placementProbe) Size() float64    { return p.size }
func (p *placementProbe) MBB() agent.MBB   { return agent.BoxForSphere(p.pos, p.size) }
func (p *placementProbe) Key() string      { return "placement-probe" }

func run(ctx context.Context, idx *spatial.ChunkedIndex, cfg *config.Config, collector *telemetry.Collector, perf *telemetry.PerfCollector, om *telemetry.OutputManager) {
	tick := int32(0)
	for cfg.Run.Ticks == 0 || int(tick) < cfg.Run.Ticks {
		select {
		case <-ctx.Done():
			slog.Info("interrupted, stopping", "tick", tick)
			return
		default:
		}

		perf.StartTick()
		perf.StartPhase(telemetry.PhaseStep)
		idx.Step()
		perf.StartPhase(telemetry.PhaseTelemetry)

		if collector.ShouldFlush(tick) {
			agents := idx.AllOrganisms()
			sizes := make([]float64, len(agents))
			for i, a := range agents {
				sizes[i] = a.Size()
			}
			stats := collector.Flush(tick, len(agents), sizes)
			if cfg.Telemetry.LogStats {
				stats.LogStats()
			}
			if err := om.WriteTelemetry(stats); err != nil {
				slog.Warn("writing telemetry", "error", err)
			}

			perfStats := perf.Stats()
			if err := om.WritePerf(perfStats, tick); err != nil {
				slog.Warn("writing perf", "error", err)
			}
		}

		perf.EndTick()
		tick++
	}
}
