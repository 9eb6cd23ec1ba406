package topology

import (
	"fmt"
	"strings"
)

// Service is one expanded row of a VGcore aggregate's service table. Services
// have no lifecycle of their own: they exist only as children of the
// aggregate node that declares them.
type Service struct {
	Kind  ServiceKind
	Name  string
	Index int // per-kind instance index, 0-based
	// Owner is the name of the VGcore node whose table declared the row.
	Owner string
	// ConfigFile is the Open5GS YAML the instance mounts, relative to the
	// exported 5g-configs directory.
	ConfigFile string
}

// DefaultConfigFile implements the instance naming scheme: the first
// instance of a kind gets the bare name (upf.yaml), later ones are numbered
// with the 1-based user index (upf_2.yaml).
func DefaultConfigFile(kind ServiceKind, index int) string {
	if index == 0 {
		return kind.Lower() + ".yaml"
	}
	return fmt.Sprintf("%s_%d.yaml", kind.Lower(), index+1)
}

// ExtractServices expands a VGcore property bag into its service rows.
// Two table layouts exist: the current one stores a list of row maps under
// "<KIND>_configs"; topologies saved before that store a list of
// [name, configFile] rows under "Component5G_<KIND>table". Rows without a
// name are skipped, matching the dialog's behaviour of ignoring blank rows.
func ExtractServices(props Props) []Service {
	g := &Graph{Nodes: []Node{{Kind: KindCore5G, Props: props}}}
	return g.ServicesOf()
}

func serviceRows(props Props, kind ServiceKind) (rows []any, legacy bool) {
	if v, ok := props[string(kind)+"_configs"]; ok {
		if list, ok := v.([]any); ok && len(list) > 0 {
			return list, false
		}
	}
	if v, ok := props["Component5G_"+string(kind)+"table"]; ok {
		if list, ok := v.([]any); ok {
			return list, true
		}
	}
	return nil, false
}

func serviceRow(kind ServiceKind, idx int, row any) (Service, bool) {
	m, ok := row.(map[string]any)
	if !ok {
		return Service{}, false
	}
	name, _ := m["name"].(string)
	name = strings.TrimSpace(name)
	if name == "" {
		return Service{}, false
	}
	file, _ := m["config_filename"].(string)
	file = strings.TrimSpace(file)
	if file == "" {
		file = DefaultConfigFile(kind, idx)
	}
	return Service{Kind: kind, Name: name, Index: idx, ConfigFile: file}, true
}

func legacyServiceRow(kind ServiceKind, idx int, row any) (Service, bool) {
	cells, ok := row.([]any)
	if !ok || len(cells) == 0 {
		return Service{}, false
	}
	name, _ := cells[0].(string)
	name = strings.TrimSpace(name)
	if name == "" {
		return Service{}, false
	}
	file := ""
	if len(cells) > 1 {
		file, _ = cells[1].(string)
		file = strings.TrimSpace(file)
	}
	if file == "" {
		file = DefaultConfigFile(kind, idx)
	}
	return Service{Kind: kind, Name: name, Index: idx, ConfigFile: file}, true
}

// ServicesOf collects the expanded services of every VGcore node in the
// graph. Instance indexes run per kind across all aggregates, so a second
// VGcore's UPF row continues the upf_N.yaml numbering instead of restarting
// it.
func (g *Graph) ServicesOf() []Service {
	var all []Service
	for _, kind := range ServiceKinds {
		idx := 0
		for _, n := range g.NodesOf(KindCore5G) {
			rows, legacy := serviceRows(n.Props, kind)
			for _, row := range rows {
				var svc Service
				var ok bool
				if legacy {
					svc, ok = legacyServiceRow(kind, idx, row)
				} else {
					svc, ok = serviceRow(kind, idx, row)
				}
				if !ok {
					continue
				}
				svc.Owner = n.Name
				all = append(all, svc)
				idx++
			}
		}
	}
	return all
}
