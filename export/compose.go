package export

import (
	"fmt"
	"io/fs"
	"net/netip"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/netfluxlab/fluxgen/topology"
)

// artifact is one file of a rendered bundle, relative to the output
// directory. Nothing is written until the whole bundle rendered cleanly.
type artifact struct {
	Path string
	Data []byte
	Mode fs.FileMode
}

// Compose dependency chain: the NRF comes up alone, the SCP registers with
// it, and everything else reaches the NRF through the SCP.
var composeDeps = map[topology.ServiceKind][]topology.ServiceKind{
	topology.SvcSCP:  {topology.SvcNRF},
	topology.SvcUDR:  {topology.SvcSCP},
	topology.SvcUDM:  {topology.SvcSCP},
	topology.SvcAUSF: {topology.SvcSCP},
	topology.SvcBSF:  {topology.SvcSCP},
	topology.SvcNSSF: {topology.SvcNRF, topology.SvcSCP},
	topology.SvcAMF:  {topology.SvcSCP},
	topology.SvcSMF:  {topology.SvcSCP},
	topology.SvcPCF:  {topology.SvcSCP},
	topology.SvcUPF:  {topology.SvcSCP},
}

// Services that talk to MongoDB; their presence pulls a mongo service into
// the bundle.
var mongoUsers = map[topology.ServiceKind]bool{
	topology.SvcPCF: true,
	topology.SvcUDR: true,
}

// emitCompose renders the Docker Compose bundle for the graph's 5G core:
// docker-compose.yaml plus a config/ directory with one Open5GS YAML per
// service instance and the shared container entrypoint.
func emitCompose(ctx *ExportContext) ([]artifact, error) {
	services := ctx.unitsOf(topology.KindCore5G)
	if len(services) == 0 {
		return nil, fmt.Errorf("topology has no 5G core services to compose")
	}

	// First instance of each kind, for cross-service references.
	firstOf := map[topology.ServiceKind]string{}
	byKind := map[topology.ServiceKind][]string{}
	for _, u := range services {
		name := composeName(u)
		kind := u.svc.Kind
		if _, ok := firstOf[kind]; !ok {
			firstOf[kind] = name
		}
		byKind[kind] = append(byKind[kind], name)
	}

	var svcEntries yaml.MapSlice
	needMongo := false
	for _, u := range services {
		kind := u.svc.Kind
		if mongoUsers[kind] {
			needMongo = true
		}
		entry := yaml.MapSlice{
			{Key: "image", Value: u.cfg.Image},
			{Key: "restart", Value: "on-failure"},
			{Key: "privileged", Value: true},
			{Key: "command", Value: "/opt/open5gs/etc/open5gs/entrypoint.sh " + kind.Daemon()},
		}
		if len(u.cfg.CapAdd) > 0 {
			entry = append(entry, yaml.MapItem{Key: "cap_add", Value: u.cfg.CapAdd})
		}
		env := make([]string, len(u.cfg.Env))
		for i, v := range u.cfg.Env {
			env[i] = v.Key + "=" + v.Value
		}
		entry = append(entry, yaml.MapItem{Key: "environment", Value: env})
		if deps := resolveDeps(kind, byKind); len(deps) > 0 {
			entry = append(entry, yaml.MapItem{Key: "depends_on", Value: deps})
		}
		entry = append(entry, yaml.MapItem{Key: "volumes", Value: []any{
			yaml.MapSlice{
				{Key: "type", Value: "bind"},
				{Key: "source", Value: "./config/" + u.svc.ConfigFile},
				{Key: "target", Value: "/opt/open5gs/etc/open5gs/" + kind.Lower() + ".yaml"},
			},
			yaml.MapSlice{
				{Key: "type", Value: "bind"},
				{Key: "source", Value: "./config/entrypoint.sh"},
				{Key: "target", Value: "/opt/open5gs/etc/open5gs/entrypoint.sh"},
			},
		}})
		svcEntries = append(svcEntries, yaml.MapItem{Key: composeName(u), Value: entry})
	}

	if needMongo {
		svcEntries = append(svcEntries, yaml.MapItem{Key: "mongo", Value: yaml.MapSlice{
			{Key: "image", Value: "mongo:latest"},
			{Key: "restart", Value: "unless-stopped"},
			{Key: "environment", Value: []string{
				"MONGO_INITDB_DATABASE=open5gs",
			}},
			{Key: "command", Value: "mongod --bind_ip 0.0.0.0"},
			{Key: "volumes", Value: []string{"mongodb_data:/data/db"}},
			{Key: "ports", Value: []string{"27017:27017"}},
		}})
	}

	doc := yaml.MapSlice{{Key: "services", Value: svcEntries}}
	if needMongo {
		doc = append(doc, yaml.MapItem{Key: "volumes", Value: yaml.MapSlice{
			{Key: "mongodb_data", Value: map[string]any{}},
		}})
	}
	compose, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to render docker-compose.yaml: %w", err)
	}

	arts := []artifact{{Path: "docker-compose.yaml", Data: compose, Mode: 0600}}
	for _, u := range services {
		data, err := serviceConfig(ctx, u, firstOf)
		if err != nil {
			return nil, err
		}
		arts = append(arts, artifact{Path: "config/" + u.svc.ConfigFile, Data: data, Mode: 0600})
	}
	arts = append(arts, artifact{Path: "config/entrypoint.sh", Data: entrypointScript(ctx.Alloc), Mode: 0755})
	return arts, nil
}

func composeName(u unit) string {
	return strings.ToLower(u.ident)
}

// resolveDeps maps the kind-level dependency chain onto the instances the
// bundle actually contains.
func resolveDeps(kind topology.ServiceKind, byKind map[topology.ServiceKind][]string) []string {
	var deps []string
	for _, dep := range composeDeps[kind] {
		deps = append(deps, byKind[dep]...)
	}
	return deps
}

// serviceConfig builds the default Open5GS configuration for one service
// instance. Session subnets come from the allocator's APN groups instead of
// a hard-coded table, so every group a UE uses is actually served.
func serviceConfig(ctx *ExportContext, u unit, firstOf map[topology.ServiceKind]string) ([]byte, error) {
	kind := u.svc.Kind
	lower := kind.Lower()
	agg := u.node
	mcc := agg.Props.Str("VGCore_MCC", "999")
	mnc := agg.Props.Str("VGCore_MNC", "70")
	scpURI := "http://" + nameOr(firstOf, topology.SvcSCP, "scp") + ":7777"
	nrfURI := "http://" + nameOr(firstOf, topology.SvcNRF, "nrf") + ":7777"

	logger := yaml.MapItem{Key: "logger", Value: yaml.MapSlice{
		{Key: "file", Value: yaml.MapSlice{
			{Key: "path", Value: "/opt/open5gs/var/log/open5gs/" + lower + ".log"},
		}},
	}}
	sbiServer := yaml.MapItem{Key: "sbi", Value: yaml.MapSlice{
		{Key: "server", Value: []any{yaml.MapSlice{{Key: "dev", Value: "eth0"}, {Key: "port", Value: 7777}}}},
		{Key: "client", Value: yaml.MapSlice{
			{Key: "scp", Value: []any{yaml.MapSlice{{Key: "uri", Value: scpURI}}}},
		}},
	}}

	var doc yaml.MapSlice
	switch kind {
	case topology.SvcUPF:
		doc = yaml.MapSlice{logger, {Key: "upf", Value: yaml.MapSlice{
			{Key: "pfcp", Value: devServer()},
			{Key: "gtpu", Value: devServer()},
			{Key: "session", Value: sessionList(ctx.Alloc, true)},
			{Key: "metrics", Value: metricsServer()},
		}}}
	case topology.SvcSMF:
		doc = yaml.MapSlice{logger, {Key: "smf", Value: yaml.MapSlice{
			sbiServer,
			{Key: "pfcp", Value: yaml.MapSlice{
				{Key: "server", Value: []any{yaml.MapSlice{{Key: "dev", Value: "eth0"}}}},
				{Key: "client", Value: yaml.MapSlice{
					{Key: "upf", Value: []any{yaml.MapSlice{
						{Key: "address", Value: nameOr(firstOf, topology.SvcUPF, "upf")},
						{Key: "dnn", Value: apnList(ctx.Alloc)},
					}}},
				}},
			}},
			{Key: "gtpc", Value: devServer()},
			{Key: "gtpu", Value: devServer()},
			{Key: "metrics", Value: metricsServer()},
			{Key: "session", Value: sessionList(ctx.Alloc, false)},
			{Key: "dns", Value: []string{"1.1.1.1", "8.8.8.8"}},
			{Key: "mtu", Value: 1400},
		}}}
	case topology.SvcAMF:
		plmn := yaml.MapSlice{{Key: "mcc", Value: mcc}, {Key: "mnc", Value: mnc}}
		tac, _ := agg.Props.Int("VGCore_TAC", 1)
		sst, _ := agg.Props.Int("VGCore_SST", 1)
		doc = yaml.MapSlice{logger, {Key: "amf", Value: yaml.MapSlice{
			sbiServer,
			{Key: "ngap", Value: devServer()},
			{Key: "metrics", Value: metricsServer()},
			{Key: "guami", Value: []any{yaml.MapSlice{
				{Key: "plmn_id", Value: plmn},
				{Key: "amf_id", Value: yaml.MapSlice{{Key: "region", Value: 2}, {Key: "set", Value: 1}}},
			}}},
			{Key: "tai", Value: []any{yaml.MapSlice{{Key: "plmn_id", Value: plmn}, {Key: "tac", Value: tac}}}},
			{Key: "plmn_support", Value: []any{yaml.MapSlice{
				{Key: "plmn_id", Value: plmn},
				{Key: "s_nssai", Value: []any{yaml.MapSlice{{Key: "sst", Value: sst}}}},
			}}},
			{Key: "security", Value: yaml.MapSlice{
				{Key: "integrity_order", Value: []string{"NIA2", "NIA1", "NIA0"}},
				{Key: "ciphering_order", Value: []string{"NEA0", "NEA1", "NEA2"}},
			}},
			{Key: "network_name", Value: yaml.MapSlice{{Key: "full", Value: "Open5GS"}, {Key: "short", Value: "Next"}}},
			{Key: "amf_name", Value: "open5gs-" + composeName(u)},
		}}}
	case topology.SvcNRF:
		doc = yaml.MapSlice{logger, {Key: "nrf", Value: yaml.MapSlice{
			{Key: "serving", Value: []any{yaml.MapSlice{
				{Key: "plmn_id", Value: yaml.MapSlice{{Key: "mcc", Value: mcc}, {Key: "mnc", Value: mnc}}},
			}}},
			{Key: "sbi", Value: yaml.MapSlice{
				{Key: "server", Value: []any{yaml.MapSlice{{Key: "dev", Value: "eth0"}, {Key: "port", Value: 7777}}}},
			}},
		}}}
	case topology.SvcSCP:
		doc = yaml.MapSlice{logger, {Key: "scp", Value: yaml.MapSlice{
			{Key: "sbi", Value: yaml.MapSlice{
				{Key: "server", Value: []any{yaml.MapSlice{{Key: "dev", Value: "eth0"}, {Key: "port", Value: 7777}}}},
				{Key: "client", Value: yaml.MapSlice{
					{Key: "nrf", Value: []any{yaml.MapSlice{{Key: "uri", Value: nrfURI}}}},
				}},
			}},
		}}}
	case topology.SvcNSSF:
		doc = yaml.MapSlice{logger, {Key: "nssf", Value: yaml.MapSlice{
			{Key: "sbi", Value: yaml.MapSlice{
				{Key: "server", Value: []any{yaml.MapSlice{{Key: "dev", Value: "eth0"}, {Key: "port", Value: 7777}}}},
				{Key: "client", Value: yaml.MapSlice{
					{Key: "scp", Value: []any{yaml.MapSlice{{Key: "uri", Value: scpURI}}}},
					{Key: "nsi", Value: []any{yaml.MapSlice{
						{Key: "uri", Value: nrfURI},
						{Key: "s_nssai", Value: yaml.MapSlice{{Key: "sst", Value: 1}}},
					}}},
				}},
			}},
		}}}
	case topology.SvcPCF, topology.SvcUDR:
		doc = yaml.MapSlice{
			{Key: "db_uri", Value: agg.Props.Str("VGCore_DatabaseURI", "mongodb://mongo/open5gs")},
			logger,
			{Key: lower, Value: yaml.MapSlice{sbiServer}},
		}
	default:
		doc = yaml.MapSlice{logger, {Key: lower, Value: yaml.MapSlice{sbiServer}}}
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s config: %w", u.svc.Name, err)
	}
	return data, nil
}

func nameOr(firstOf map[topology.ServiceKind]string, kind topology.ServiceKind, fallback string) string {
	if name, ok := firstOf[kind]; ok {
		return name
	}
	return fallback
}

func devServer() yaml.MapSlice {
	return yaml.MapSlice{{Key: "server", Value: []any{yaml.MapSlice{{Key: "dev", Value: "eth0"}}}}}
}

func metricsServer() yaml.MapSlice {
	return yaml.MapSlice{{Key: "server", Value: []any{yaml.MapSlice{
		{Key: "dev", Value: "eth0"}, {Key: "port", Value: 9090},
	}}}}
}

// tunDevice names the UPF tunnel interface for the i-th APN group: ogstun,
// ogstun2, ogstun3, ...
func tunDevice(i int) string {
	if i == 0 {
		return "ogstun"
	}
	return fmt.Sprintf("ogstun%d", i+1)
}

// sessionList renders the per-APN session table the UPF and SMF share. The
// UPF variant carries the tunnel device binding.
func sessionList(alloc *Allocation, withDev bool) []any {
	groups := alloc.Groups
	if len(groups) == 0 {
		// A core with no UEs still needs a serving subnet.
		return []any{yaml.MapSlice{
			{Key: "subnet", Value: "10.100.0.0/16"},
			{Key: "gateway", Value: "10.100.0.1"},
			{Key: "dnn", Value: "internet"},
		}}
	}
	out := make([]any, 0, len(groups))
	for i, g := range groups {
		entry := yaml.MapSlice{
			{Key: "subnet", Value: g.Subnet.String()},
			{Key: "gateway", Value: g.Gateway.String()},
			{Key: "dnn", Value: g.APN},
		}
		if withDev {
			entry = append(entry, yaml.MapItem{Key: "dev", Value: tunDevice(i)})
		}
		out = append(out, entry)
	}
	return out
}

func apnList(alloc *Allocation) []string {
	if len(alloc.Groups) == 0 {
		return []string{"internet"}
	}
	out := make([]string, len(alloc.Groups))
	for i, g := range alloc.Groups {
		out[i] = g.APN
	}
	return out
}

// entrypointScript generates the shared container entrypoint. Tunnel
// devices and NAT rules are derived from the allocation instead of a fixed
// four-subnet table.
func entrypointScript(alloc *Allocation) []byte {
	var b strings.Builder
	b.WriteString("#!/bin/bash\n\nset -eo pipefail\n\n")
	b.WriteString("function tun_create {\n")
	b.WriteString("    echo -e \"net.ipv4.ip_forward=1\" >> /etc/sysctl.conf\n")
	groups := alloc.Groups
	if len(groups) == 0 {
		groups = []Group{{
			APN:     "internet",
			Subnet:  netip.MustParsePrefix("10.100.0.0/16"),
			Gateway: netip.MustParseAddr("10.100.0.1"),
		}}
	}
	for i, g := range groups {
		dev := tunDevice(i)
		fmt.Fprintf(&b, "\n    if ! grep %q /proc/net/dev > /dev/null; then\n", dev)
		fmt.Fprintf(&b, "        echo \"Creating %s device (%s)\"\n", dev, g.APN)
		fmt.Fprintf(&b, "        ip tuntap add name %s mode tun\n", dev)
		b.WriteString("    fi\n")
		fmt.Fprintf(&b, "    ip addr del %s/%d dev %s 2> /dev/null || true\n", g.Gateway, g.Subnet.Bits(), dev)
		fmt.Fprintf(&b, "    ip addr add %s/%d dev %s\n", g.Gateway, g.Subnet.Bits(), dev)
		fmt.Fprintf(&b, "    ip link set %s up\n", dev)
	}
	b.WriteString("\n    if [ \"$ENABLE_NAT\" != \"false\" ]; then\n")
	for _, g := range groups {
		fmt.Fprintf(&b, "        iptables -t nat -A POSTROUTING -s %s -j MASQUERADE\n", g.Subnet)
	}
	b.WriteString("    fi\n")
	b.WriteString("}\n\n")
	b.WriteString("if [ \"$1\" = \"open5gs-upfd\" ]; then\n")
	b.WriteString("    tun_create\nfi\n\n")
	b.WriteString("exec \"$@\"\n")
	return []byte(b.String())
}
