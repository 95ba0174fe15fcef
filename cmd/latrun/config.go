package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// Config is the decoded form of a latrun HCL file.
type Config struct {
	Lattice LatticeConfig `hcl:"lattice,block"`
	Run     RunConfig     `hcl:"run,block"`
	Log     *LogConfig    `hcl:"log,block"`
}

// LatticeConfig describes the global lattice and, optionally, how it is
// split across nodes. An empty topology lets the mesh choose.
type LatticeConfig struct {
	Extent   []int `hcl:"extent"`
	Topology []int `hcl:"topology,optional"`
}

// RunConfig holds the relaxation parameters. Summary names a namelist
// file written by the primary node at the end of the run.
type RunConfig struct {
	Nodes   int    `hcl:"nodes"`
	Steps   int    `hcl:"steps"`
	Summary string `hcl:"summary,optional"`
}

// LogConfig selects the slog level and handler format.
type LogConfig struct {
	Level  string `hcl:"level,optional"`
	Format string `hcl:"format,optional"`
}

// LoadConfig parses and validates an HCL run configuration. Overrides of
// the form name=value are exposed to the file as var.name.
func LoadConfig(path string, sets []string) (*Config, error) {
	vars, err := parseOverrides(sets)
	if err != nil {
		return nil, err
	}
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("latrun: parsing %s: %w", path, diags)
	}
	ctx := &hcl.EvalContext{
		Variables: map[string]cty.Value{"var": cty.ObjectVal(vars)},
	}
	var cfg Config
	if diags := gohcl.DecodeBody(file.Body, ctx, &cfg); diags.HasErrors() {
		return nil, fmt.Errorf("latrun: decoding %s: %w", path, diags)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// parseOverrides turns -set arguments into cty values, guessing the
// narrowest type that parses: int, float, bool, then string.
func parseOverrides(sets []string) (map[string]cty.Value, error) {
	vars := make(map[string]cty.Value, len(sets))
	for _, s := range sets {
		name, value, ok := strings.Cut(s, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("latrun: override %q is not name=value", s)
		}
		switch {
		case isInt(value):
			n, _ := strconv.ParseInt(value, 10, 64)
			vars[name] = cty.NumberIntVal(n)
		case isFloat(value):
			f, _ := strconv.ParseFloat(value, 64)
			vars[name] = cty.NumberFloatVal(f)
		case value == "true" || value == "false":
			vars[name] = cty.BoolVal(value == "true")
		default:
			vars[name] = cty.StringVal(value)
		}
	}
	return vars, nil
}

func isInt(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

func isFloat(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

func (c *Config) validate() error {
	if len(c.Lattice.Extent) == 0 {
		return fmt.Errorf("latrun: lattice extent is empty")
	}
	for i, e := range c.Lattice.Extent {
		if e < 1 {
			return fmt.Errorf("latrun: lattice extent[%d] = %d", i, e)
		}
	}
	if len(c.Lattice.Topology) > 0 && len(c.Lattice.Topology) != len(c.Lattice.Extent) {
		return fmt.Errorf("latrun: topology %v does not match a %d-dimensional extent",
			c.Lattice.Topology, len(c.Lattice.Extent))
	}
	if c.Run.Nodes < 1 {
		return fmt.Errorf("latrun: nodes = %d, want at least 1", c.Run.Nodes)
	}
	if c.Run.Steps < 1 {
		return fmt.Errorf("latrun: steps = %d, want at least 1", c.Run.Steps)
	}
	if c.Log != nil {
		switch strings.ToLower(c.Log.Level) {
		case "", "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("latrun: unknown log level %q", c.Log.Level)
		}
		switch strings.ToLower(c.Log.Format) {
		case "", "text", "json":
		default:
			return fmt.Errorf("latrun: unknown log format %q", c.Log.Format)
		}
	}
	return nil
}
