// Latrun drives a damped Jacobi relaxation across every node of an
// in-process lattice mesh. The lattice shape, node count, and run length
// come from an HCL configuration file; -set name=value overrides are
// visible inside the file as var.name.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"

	"github.com/notargets/latgrid/comm"
	"github.com/notargets/latgrid/field"
	"github.com/notargets/latgrid/gridio"
	"github.com/notargets/latgrid/layout"
	"github.com/notargets/latgrid/stencil"
	"github.com/notargets/latgrid/subset"
	"github.com/notargets/latgrid/transport"
	"github.com/notargets/latgrid/utils"
)

const (
	omega    = 2.0 / 3.0
	logEvery = 10
)

func main() {
	var configPath string
	var sets stringList
	flag.StringVar(&configPath, "config", "latrun.hcl", "HCL run configuration file")
	flag.Var(&sets, "set", "config override, name=value (repeatable)")
	flag.Parse()

	cfg, err := LoadConfig(configPath, sets)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	setupLogger(cfg.Log)

	slog.Info("starting relaxation",
		"config", configPath,
		"extent", cfg.Lattice.Extent,
		"nodes", cfg.Run.Nodes,
		"steps", cfg.Run.Steps)
	err = transport.RunNodes(cfg.Run.Nodes, func(tr transport.Transport) error {
		return runNode(tr, cfg)
	})
	if err != nil {
		slog.Error("run failed", "err", err)
		os.Exit(1)
	}
	slog.Info("run complete")
}

// runNode is the per-node body of the run. Configuration problems are
// detected identically on every node before any communication happens,
// so a failed validation brings the mesh down together instead of
// leaving partners stuck in a receive.
func runNode(tr transport.Transport, cfg *Config) error {
	var opts []layout.Option
	if len(cfg.Lattice.Topology) > 0 {
		opts = append(opts, layout.WithTopology(cfg.Lattice.Topology))
	}
	g, err := layout.Create(tr, cfg.Lattice.Extent, opts...)
	if err != nil {
		return err
	}
	log := slog.With("node", g.NodeNumber(), "of", g.NumNodes())

	set, err := subset.NewSet(g, subset.EvenOdd())
	if err != nil {
		return err
	}
	nm := stencil.NewNeighborMap(g)
	ch := comm.NewChannel(tr)

	// Checkerboard start: the roughest mode there is, so the residual
	// shrinks by a fixed factor every sweep.
	u := field.NewReal(g)
	u.FillOn(set.Subset(1), 1)

	var residual float64
	for step := 1; step <= cfg.Run.Steps; step++ {
		next, err := relaxStep(u, ch, nm)
		if err != nil {
			return err
		}
		diff := next.Clone()
		diff.Sub(u)
		total, err := globalSum(ch, g, diff.Dot(diff))
		if err != nil {
			return err
		}
		residual = math.Sqrt(total)
		u = next
		if g.IsPrimary() && (step%logEvery == 0 || step == cfg.Run.Steps) {
			log.Info("relaxation step", "step", step, "residual", residual)
		}
	}

	if cfg.Run.Summary != "" {
		if err := writeSummary(g, cfg, residual); err != nil {
			return err
		}
		if g.IsPrimary() {
			log.Info("summary written", "path", cfg.Run.Summary)
		}
	}
	return nil
}

// relaxStep applies one damped Jacobi sweep: the average of the two axis
// neighbors in every direction, blended with the current value.
func relaxStep(u *field.Real, ch *comm.Channel, nm *stencil.NeighborMap) (*field.Real, error) {
	g := u.Grid()
	next := field.NewReal(g)
	for axis := 0; axis < g.NumDims(); axis++ {
		for _, sign := range []int{+1, -1} {
			shifted, err := field.Shift(u, ch, nm, axis, sign)
			if err != nil {
				return nil, err
			}
			next.Add(shifted)
		}
	}
	next.Scale(omega / float64(2*g.NumDims()))
	rest := u.Clone()
	rest.Scale(1 - omega)
	next.Add(rest)
	return next, nil
}

// globalSum folds one value per node through the primary and hands the
// total back to everyone.
func globalSum(ch *comm.Channel, g *layout.Grid, local float64) (float64, error) {
	buf := make([]float64, 1)
	if g.IsPrimary() {
		total := local
		for node := 1; node < g.NumNodes(); node++ {
			if err := ch.RecvFrom(node, utils.Float64Bytes(buf)); err != nil {
				return 0, err
			}
			total += buf[0]
		}
		buf[0] = total
		for node := 1; node < g.NumNodes(); node++ {
			if err := ch.SendTo(node, utils.Float64Bytes(buf)); err != nil {
				return 0, err
			}
		}
		return total, nil
	}
	buf[0] = local
	if err := ch.SendTo(0, utils.Float64Bytes(buf)); err != nil {
		return 0, err
	}
	if err := ch.RecvFrom(0, utils.Float64Bytes(buf)); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// writeSummary records the run in namelist form on the primary node.
func writeSummary(g *layout.Grid, cfg *Config, residual float64) error {
	w, err := gridio.NewNamelistWriter(g, cfg.Run.Summary)
	if err != nil {
		return err
	}
	extent := g.GlobalExtent()
	vals := make([]any, len(extent))
	for i, e := range extent {
		vals[i] = e
	}
	if err := w.Push("relaxation"); err != nil {
		return err
	}
	if err := w.Write("extent", vals...); err != nil {
		return err
	}
	if err := w.Write("nodes", g.NumNodes()); err != nil {
		return err
	}
	if err := w.Write("steps", cfg.Run.Steps); err != nil {
		return err
	}
	if err := w.Write("residual", residual); err != nil {
		return err
	}
	if err := w.Pop(); err != nil {
		return err
	}
	return w.Close()
}

// setupLogger installs the process-wide slog handler. It runs before any
// node goroutines start, so the default logger is never swapped under a
// running mesh.
func setupLogger(lc *LogConfig) {
	level := slog.LevelInfo
	format := "text"
	if lc != nil {
		switch strings.ToLower(lc.Level) {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
		if lc.Format != "" {
			format = strings.ToLower(lc.Format)
		}
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if format == "json" {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}

// stringList collects repeated -set flags.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}
