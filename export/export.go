package export

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
	"github.com/netfluxlab/fluxgen/topology"
)

// Target selects the deployment format an export produces.
type Target string

const (
	TargetMininet Target = "mininet"
	TargetCompose Target = "compose"
)

func (t Target) Valid() bool {
	return t == TargetMininet || t == TargetCompose
}

// Options configures a single export run.
type Options struct {
	// Output is the script path for the mininet target and the bundle
	// directory for the compose target.
	Output string
	Target Target

	// SubnetBits is the prefix length of every APN group subnet.
	SubnetBits int
	// PoolBase is the range unknown APN groups are carved from.
	PoolBase netip.Prefix

	// Manifest, when set, writes the node/address manifest YAML there.
	Manifest string

	Log *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Target == "" {
		o.Target = TargetMininet
	}
	if o.SubnetBits == 0 {
		o.SubnetBits = 16
	}
	if !o.PoolBase.IsValid() {
		o.PoolBase = netip.MustParsePrefix("10.64.0.0/10")
	}
	if o.Log == nil {
		o.Log = slog.Default()
	}
	return o
}

// Result reports what an export run decided: the address plan, the emission
// order, the warnings raised along the way and the files written.
type Result struct {
	Target     Target
	Allocation *Allocation
	Order      []string
	Warnings   []Warning
	Files      []string
}

// Plan runs every stage short of emission: validation, property
// normalization, address allocation and deployment mapping. It is the dry
// half of Export and writes nothing.
func Plan(g *topology.Graph, opts Options) (*ExportContext, *Result, error) {
	opts = opts.withDefaults()
	if !opts.Target.Valid() {
		return nil, nil, fmt.Errorf("unknown export target %q", opts.Target)
	}

	g = g.Clone()
	if errs := topology.Validate(g); len(errs) > 0 {
		return nil, nil, errors.Join(errs...)
	}
	for i := range g.Nodes {
		props, hits := g.Nodes[i].Props.Normalize(g.Nodes[i].Kind)
		g.Nodes[i].Props = props
		for _, hit := range hits {
			opts.Log.Debug("resolved legacy property key",
				"node", g.Nodes[i].Name, "legacy", hit.Legacy, "canonical", hit.Canonical)
		}
	}

	diag := &Diagnostics{}
	alloc := allocate(g, opts, diag)
	if diag.HasErrors() {
		return nil, nil, diag.Err()
	}

	ctx := &ExportContext{Graph: g, Alloc: alloc, Diag: diag}
	ctx.units = buildUnits(g, alloc, diag)
	if diag.HasErrors() {
		return nil, nil, diag.Err()
	}

	res := &Result{
		Target:     opts.Target,
		Allocation: alloc,
		Order:      ctx.Order(),
		Warnings:   diag.Warnings,
	}
	return ctx, res, nil
}

// Export renders the graph to the chosen target. The whole artifact set is
// built in memory first; a failing run leaves no partial files behind.
func Export(g *topology.Graph, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	ctx, res, err := Plan(g, opts)
	if err != nil {
		return nil, err
	}

	var arts []artifact
	switch opts.Target {
	case TargetMininet:
		arts = []artifact{{Path: ".", Data: emitMininet(ctx), Mode: 0755}}
	case TargetCompose:
		arts, err = emitCompose(ctx)
		if err != nil {
			return nil, err
		}
	}
	if ctx.Diag.HasErrors() {
		return nil, ctx.Diag.Err()
	}
	res.Warnings = ctx.Diag.Warnings

	if opts.Output != "" {
		files, err := writeArtifacts(opts.Output, opts.Target, arts)
		if err != nil {
			return nil, err
		}
		res.Files = files
	}
	if opts.Manifest != "" {
		if err := writeManifest(opts.Manifest, ctx); err != nil {
			return nil, err
		}
		res.Files = append(res.Files, opts.Manifest)
	}

	for _, w := range res.Warnings {
		opts.Log.Warn(w.Msg, "node", w.Node)
	}
	opts.Log.Info("export complete",
		"target", string(opts.Target), "units", len(ctx.units), "files", len(res.Files))
	return res, nil
}

func writeArtifacts(output string, target Target, arts []artifact) ([]string, error) {
	if target == TargetMininet {
		// Single-file target: Output is the script path itself.
		if err := os.WriteFile(output, arts[0].Data, arts[0].Mode); err != nil {
			return nil, fmt.Errorf("failed to write script: %w", err)
		}
		return []string{output}, nil
	}
	var files []string
	for _, a := range arts {
		path := filepath.Join(output, a.Path)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create bundle directory: %w", err)
		}
		if err := os.WriteFile(path, a.Data, a.Mode); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", a.Path, err)
		}
		files = append(files, path)
	}
	return files, nil
}

// Manifest mirror of the allocation, for operators and follow-up tooling.
type manifestDoc struct {
	Topology string          `yaml:"topology"`
	Nodes    []manifestNode  `yaml:"nodes"`
	Groups   []manifestGroup `yaml:"groups,omitempty"`
}

type manifestNode struct {
	Name       string `yaml:"name"`
	Identifier string `yaml:"identifier"`
	Kind       string `yaml:"kind"`
	Address    string `yaml:"address,omitempty"`
	Group      string `yaml:"group,omitempty"`
}

type manifestGroup struct {
	APN     string `yaml:"apn"`
	Subnet  string `yaml:"subnet"`
	Gateway string `yaml:"gateway"`
}

func writeManifest(path string, ctx *ExportContext) error {
	doc := manifestDoc{Topology: ctx.Graph.Name}
	for _, u := range ctx.units {
		n := manifestNode{
			Name:       u.name,
			Identifier: u.ident,
			Kind:       string(u.kind),
		}
		if addr, ok := ctx.Alloc.UEAddrs[u.name]; ok {
			n.Address = addr.String()
			if apn, ok := ctx.Alloc.GroupOf(addr); ok {
				n.Group = apn
			}
		}
		doc.Nodes = append(doc.Nodes, n)
	}
	for _, g := range ctx.Alloc.Groups {
		doc.Groups = append(doc.Groups, manifestGroup{
			APN:     g.APN,
			Subnet:  g.Subnet.String(),
			Gateway: g.Gateway.String(),
		})
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to render manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
