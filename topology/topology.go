package topology

import (
	"slices"
)

// Node is a single placed component. X/Y are canvas coordinates, carried
// through to wireless emission only; they have no effect on addressing.
type Node struct {
	Name  string  `yaml:"name"`
	Kind  Kind    `yaml:"kind"`
	X     float64 `yaml:"x,omitempty"`
	Y     float64 `yaml:"y,omitempty"`
	Props Props   `yaml:"properties,omitempty"`
}

// Link joins two nodes by name. Quality parameters are optional; zero values
// mean "unset" and are not emitted.
type Link struct {
	From      string  `yaml:"from"`
	To        string  `yaml:"to"`
	Bandwidth int     `yaml:"bandwidth,omitempty"` // Mbit/s
	Delay     string  `yaml:"delay,omitempty"`     // bare numbers are treated as ms
	Loss      float64 `yaml:"loss,omitempty"`      // percent
	Wireless  bool    `yaml:"wireless,omitempty"`
}

// Graph is the full topology as placed on the canvas.
type Graph struct {
	Name  string `yaml:"name,omitempty"`
	Nodes []Node `yaml:"nodes"`
	Links []Link `yaml:"links,omitempty"`
}

func (g *Graph) TryGetNode(name string) *Node {
	idx := slices.IndexFunc(g.Nodes, func(n Node) bool {
		return n.Name == name
	})
	if idx == -1 {
		return nil
	}
	return &g.Nodes[idx]
}

func (g *Graph) GetNode(name string) Node {
	n := g.TryGetNode(name)
	if n == nil {
		panic("node " + name + " not found")
	}
	return *n
}

// NodesOf returns the nodes of one kind in declaration order.
func (g *Graph) NodesOf(kind Kind) []Node {
	nodes := make([]Node, 0)
	for _, n := range g.Nodes {
		if n.Kind == kind {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

func (g *Graph) HasKind(kinds ...Kind) bool {
	for _, n := range g.Nodes {
		if slices.Contains(kinds, n.Kind) {
			return true
		}
	}
	return false
}

// Wireless reports whether any placed node needs the radio simulation.
func (g *Graph) Wireless() bool {
	return slices.ContainsFunc(g.Nodes, func(n Node) bool { return n.Kind.Wireless() })
}

// Docker reports whether any placed node runs as a container.
func (g *Graph) Docker() bool {
	return slices.ContainsFunc(g.Nodes, func(n Node) bool { return n.Kind.Docker() })
}

// Clone deep-copies the graph. Export works on a clone so that property
// normalization never writes back into the caller's model.
func (g *Graph) Clone() *Graph {
	out := &Graph{
		Name:  g.Name,
		Nodes: make([]Node, len(g.Nodes)),
		Links: slices.Clone(g.Links),
	}
	for i, n := range g.Nodes {
		n.Props = n.Props.Clone()
		out.Nodes[i] = n
	}
	return out
}
