package export

import (
	"sort"

	"github.com/netfluxlab/fluxgen/topology"
)

// unit is one emitted entity: a plain node, or one expanded core service.
// Aggregates themselves never become units.
type unit struct {
	name  string
	ident string
	kind  topology.Kind
	node  topology.Node
	svc   *topology.Service
	cfg   ConfigResult
}

// ExportContext is the working state of a single export run. A fresh context
// is built per call and discarded afterwards; nothing in it is shared.
type ExportContext struct {
	Graph *topology.Graph
	Alloc *Allocation
	Diag  *Diagnostics

	units []unit
}

// Emission order is an explicit rank table, not string comparison on kinds:
// infrastructure the rest of the network attaches to comes up first, leaf
// workloads last.
var kindRank = map[topology.Kind]int{
	topology.KindController: 0,
	topology.KindSwitch:     1,
	topology.KindRouter:     1,
	topology.KindAP:         1,
	topology.KindCore5G:     2,
	topology.KindGNB:        3,
	topology.KindUE:         4,
	topology.KindHost:       5,
	topology.KindSTA:        5,
	topology.KindDockerHost: 5,
}

// serviceRank orders expanded core services by their startup dependency
// chain so registries (NRF, SCP) are declared before their registrants.
var serviceRank = func() map[topology.ServiceKind]int {
	m := make(map[topology.ServiceKind]int, len(topology.StartupOrder))
	for i, kind := range topology.StartupOrder {
		m[kind] = i
	}
	return m
}()

// buildUnits maps every node and expanded service to its deployment config
// and sorts them into emission order. Mapping problems accumulate in diag.
func buildUnits(g *topology.Graph, alloc *Allocation, diag *Diagnostics) []unit {
	m := &mapper{alloc: alloc, diag: diag}
	var units []unit

	ueOrdinal := 0
	for _, n := range g.Nodes {
		if n.Kind == topology.KindCore5G {
			continue
		}
		var cfg ConfigResult
		if n.Kind == topology.KindUE {
			ueOrdinal++
			cfg = m.mapUE(n, ueOrdinal)
		} else {
			cfg = m.mapNode(n)
		}
		units = append(units, unit{
			name:  n.Name,
			ident: alloc.Idents[n.Name],
			kind:  n.Kind,
			node:  n,
			cfg:   cfg,
		})
	}
	for _, svc := range g.ServicesOf() {
		svc := svc
		agg := g.TryGetNode(svc.Owner)
		if agg == nil {
			continue
		}
		units = append(units, unit{
			name:  svc.Name,
			ident: alloc.Idents[svc.Name],
			kind:  topology.KindCore5G,
			node:  *agg,
			svc:   &svc,
			cfg:   m.mapService(*agg, svc),
		})
	}

	sort.SliceStable(units, func(i, j int) bool {
		ri, rj := kindRank[units[i].kind], kindRank[units[j].kind]
		if ri != rj {
			return ri < rj
		}
		if units[i].svc != nil && units[j].svc != nil {
			si, sj := serviceRank[units[i].svc.Kind], serviceRank[units[j].svc.Kind]
			if si != sj {
				return si < sj
			}
		}
		return units[i].name < units[j].name
	})
	return units
}

// unitsOf filters the ordered units by kind, preserving emission order.
func (ctx *ExportContext) unitsOf(kinds ...topology.Kind) []unit {
	var out []unit
	for _, u := range ctx.units {
		for _, k := range kinds {
			if u.kind == k {
				out = append(out, u)
				break
			}
		}
	}
	return out
}

// Order returns the emission order as node/service names.
func (ctx *ExportContext) Order() []string {
	names := make([]string, len(ctx.units))
	for i, u := range ctx.units {
		names[i] = u.name
	}
	return names
}

func (ctx *ExportContext) hasWireless() bool {
	for _, u := range ctx.units {
		if u.kind.Wireless() {
			return true
		}
	}
	return false
}

func (ctx *ExportContext) hasDocker() bool {
	for _, u := range ctx.units {
		if u.kind.Docker() {
			return true
		}
	}
	return false
}
