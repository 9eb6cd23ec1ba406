package export

import (
	"fmt"
	"net"
	"net/netip"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/cilium/cilium/pkg/ip"
	"github.com/gaissmai/bart"
	"github.com/netfluxlab/fluxgen/topology"
)

// Subnet bases for the APN groups the UERANSIM/Open5GS images know about.
// These match the ogstun devices the core entrypoint brings up, so exports
// must not move them. Capacity per group is governed by Options.SubnetBits.
var wellKnownGroups = map[string]netip.Addr{
	"internet":  netip.MustParseAddr("10.100.0.0"),
	"internet2": netip.MustParseAddr("10.200.0.0"),
	"web1":      netip.MustParseAddr("10.51.0.0"),
	"web2":      netip.MustParseAddr("10.52.0.0"),
}

// Group is one APN's slice of the address plan: its subnet, the gateway the
// UPF claims, and the UEs that resolve into it.
type Group struct {
	APN     string
	Subnet  netip.Prefix
	Gateway netip.Addr
	UEs     []string
}

// Allocation is the deterministic address and identifier plan for a graph.
// Running the allocator twice over the same graph yields identical plans.
type Allocation struct {
	// Idents maps node and service names to the variable identifiers the
	// emitted script declares for them.
	Idents map[string]string
	// Groups are the APN groups in ascending APN order.
	Groups []Group
	// UEAddrs maps each UE node name to its assigned tunnel address.
	UEAddrs map[string]netip.Addr

	table bart.Table[string]
}

// GroupFor returns the group serving the given APN, or nil.
func (a *Allocation) GroupFor(apn string) *Group {
	for i := range a.Groups {
		if a.Groups[i].APN == apn {
			return &a.Groups[i]
		}
	}
	return nil
}

// GroupOf returns the APN whose subnet contains addr.
func (a *Allocation) GroupOf(addr netip.Addr) (string, bool) {
	return a.table.Lookup(addr)
}

var identJunk = regexp.MustCompile(`[^0-9A-Za-z_]`)

// sanitizeIdent turns a node name into a valid script identifier.
func sanitizeIdent(name string) string {
	id := identJunk.ReplaceAllString(name, "_")
	if id == "" {
		id = "node"
	}
	if id[0] >= '0' && id[0] <= '9' {
		id = "n" + id
	}
	return id
}

func subtractPrefixes(includes, excludes []netip.Prefix) []netip.Prefix {
	result := ip.RemoveCIDRs(toIPNets(includes), toIPNets(excludes))
	ipv4, ipv6 := ip.CoalesceCIDRs(result)
	return fromIPNets(append(ipv4, ipv6...))
}

func toIPNets(prefixes []netip.Prefix) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(prefixes))
	for _, p := range prefixes {
		if p.IsValid() {
			nets = append(nets, &net.IPNet{
				IP:   p.Addr().AsSlice(),
				Mask: net.CIDRMask(p.Bits(), p.Addr().BitLen()),
			})
		}
	}
	return nets
}

func fromIPNets(nets []*net.IPNet) []netip.Prefix {
	output := make([]netip.Prefix, 0, len(nets))
	for _, n := range nets {
		if addr, ok := netip.AddrFromSlice(n.IP); ok {
			ones, _ := n.Mask.Size()
			output = append(output, netip.PrefixFrom(addr.Unmap(), ones))
		}
	}
	return output
}

// allocate computes the identifier table, APN group subnets and per-UE
// addresses for a graph. Identifier collisions and exhausted groups land in
// diag as fatal errors; questionable overrides surface as warnings.
func allocate(g *topology.Graph, opts Options, diag *Diagnostics) *Allocation {
	alloc := &Allocation{
		Idents:  map[string]string{},
		UEAddrs: map[string]netip.Addr{},
	}
	allocIdents(g, alloc, diag)

	bits := opts.SubnetBits
	capacity := (1 << (32 - bits)) - 2

	ues := g.NodesOf(topology.KindUE)
	sort.Slice(ues, func(i, j int) bool { return ues[i].Name < ues[j].Name })

	byAPN := map[string][]topology.Node{}
	for _, ue := range ues {
		apn := ue.Props.Str("UE_APN", "internet")
		byAPN[apn] = append(byAPN[apn], ue)
	}
	apns := make([]string, 0, len(byAPN))
	for apn := range byAPN {
		apns = append(apns, apn)
	}
	slices.Sort(apns)

	// Carve subnets: well-known APNs take their fixed base, the rest draw
	// from the pool in ascending APN order, skipping everything already
	// reserved.
	reserved := make([]netip.Prefix, 0, len(wellKnownGroups))
	for _, base := range wellKnownGroups {
		reserved = append(reserved, netip.PrefixFrom(base, bits))
	}
	for _, apn := range apns {
		var subnet netip.Prefix
		if base, ok := wellKnownGroups[apn]; ok {
			subnet = netip.PrefixFrom(base, bits)
		} else {
			free := subtractPrefixes([]netip.Prefix{opts.PoolBase}, reserved)
			for _, p := range free {
				if p.Addr().Is4() && p.Bits() <= bits {
					subnet = netip.PrefixFrom(p.Addr(), bits)
					break
				}
			}
			if !subnet.IsValid() {
				diag.AddError(fmt.Errorf("apn group %q: pool %s has no free /%d subnet left",
					apn, opts.PoolBase, bits))
				continue
			}
			reserved = append(reserved, subnet)
		}
		group := Group{
			APN:     apn,
			Subnet:  subnet,
			Gateway: subnet.Addr().Next(),
		}
		for _, ue := range byAPN[apn] {
			group.UEs = append(group.UEs, ue.Name)
		}
		if len(group.UEs) > capacity {
			diag.AddError(&CapacityError{
				APN:      apn,
				Subnet:   subnet,
				Demand:   len(group.UEs),
				Capacity: capacity,
			})
			continue
		}
		alloc.table.Insert(subnet, apn)
		alloc.Groups = append(alloc.Groups, group)
	}
	if diag.HasErrors() {
		return alloc
	}

	// Overrides claim their addresses first so the sequential pass can
	// never hand one out twice.
	claimed := map[netip.Addr]string{}
	for _, group := range alloc.Groups {
		claimed[group.Gateway] = "gateway of " + group.APN
	}
	for _, ue := range ues {
		raw := strings.TrimSpace(ue.Props.Str("UE_IPAddress", ""))
		if raw == "" {
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			diag.Warnf(ue.Name, "ignoring unparseable address override %q", raw)
			continue
		}
		apn := ue.Props.Str("UE_APN", "internet")
		if owner, ok := alloc.GroupOf(addr); !ok {
			diag.Warnf(ue.Name, "address override %s lies outside every apn group subnet", addr)
		} else if owner != apn {
			diag.Warnf(ue.Name, "address override %s lies in apn group %q, not %q", addr, owner, apn)
		}
		if prev, taken := claimed[addr]; taken {
			diag.AddError(&topology.GraphError{
				Node: ue.Name,
				Msg:  fmt.Sprintf("address override %s already claimed by %s", addr, prev),
			})
			continue
		}
		claimed[addr] = ue.Name
		alloc.UEAddrs[ue.Name] = addr
	}
	if diag.HasErrors() {
		return alloc
	}

	// Remaining UEs get sequential host suffixes after the gateway, in
	// sorted-name order within their group.
	for _, group := range alloc.Groups {
		next := group.Gateway
		for _, name := range group.UEs {
			if _, done := alloc.UEAddrs[name]; done {
				continue
			}
			for {
				next = next.Next()
				if !group.Subnet.Contains(next) {
					diag.AddError(&CapacityError{
						APN:      group.APN,
						Subnet:   group.Subnet,
						Demand:   len(group.UEs),
						Capacity: capacity,
					})
					return alloc
				}
				if _, taken := claimed[next]; !taken {
					break
				}
			}
			claimed[next] = name
			alloc.UEAddrs[name] = next
		}
	}
	return alloc
}

// allocIdents assigns script identifiers to every node and 5G core service,
// flagging collisions after sanitization as fatal.
func allocIdents(g *topology.Graph, alloc *Allocation, diag *Diagnostics) {
	owners := map[string]string{}
	claim := func(name string) {
		id := sanitizeIdent(name)
		if prev, ok := owners[id]; ok {
			diag.AddError(&topology.GraphError{
				Node: name,
				Msg:  fmt.Sprintf("identifier %q collides with %q", id, prev),
			})
			return
		}
		owners[id] = name
		alloc.Idents[name] = id
	}
	for _, n := range g.Nodes {
		claim(n.Name)
	}
	for _, svc := range g.ServicesOf() {
		claim(svc.Name)
	}
}
