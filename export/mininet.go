package export

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/netfluxlab/fluxgen/topology"
)

// mininetEmitter renders the deployment script for the Mininet-WiFi /
// Containernet target. Everything is written into an in-memory buffer; the
// caller decides whether the result ever reaches disk.
type mininetEmitter struct {
	ctx *ExportContext
	buf bytes.Buffer

	wireless bool
	docker   bool
	// kinds maps every emitted identifier back to its unit for link
	// endpoint decisions.
	byName map[string]unit
}

func emitMininet(ctx *ExportContext) []byte {
	e := &mininetEmitter{
		ctx:      ctx,
		wireless: ctx.hasWireless(),
		docker:   ctx.hasDocker(),
		byName:   map[string]unit{},
	}
	for _, u := range ctx.units {
		e.byName[u.name] = u
	}
	e.header()
	e.imports()
	e.utilities()
	e.topologyFunc()
	e.mainBlock()
	return e.buf.Bytes()
}

func (e *mininetEmitter) pf(format string, args ...any) {
	fmt.Fprintf(&e.buf, format, args...)
}

func (e *mininetEmitter) line(s string) {
	e.buf.WriteString(s)
	e.buf.WriteByte('\n')
}

func (e *mininetEmitter) header() {
	name := e.ctx.Graph.Name
	if name == "" {
		name = "topology"
	}
	e.line("#!/usr/bin/env python")
	e.line("")
	e.line(`"""`)
	e.pf("fluxgen - Mininet-WiFi deployment for %s\n", name)
	e.line("")
	e.line("5G configuration files live in ./5g-configs/ next to this script,")
	e.line("named <service>.yaml for the first instance and <service>_<n>.yaml")
	e.line("for later ones, and are bind-mounted into each container at")
	e.line("/opt/open5gs/etc/open5gs/<service>.yaml.")
	e.line("")
	e.line("All containers attach to the shared netflux5g Docker network:")
	e.line("  docker network create --driver bridge --attachable netflux5g")
	e.line(`"""`)
	e.line("")
}

func (e *mininetEmitter) imports() {
	e.line("import sys")
	e.line("import os")
	e.line("from mininet.net import Mininet")
	e.line("from mininet.link import TCLink, Link, Intf")
	e.line("from mininet.node import RemoteController, OVSKernelSwitch, Host, Node")
	e.line("from mininet.log import setLogLevel, info")
	if e.wireless {
		e.line("from mn_wifi.node import Station, OVSKernelAP")
		e.line("from mn_wifi.link import wmediumd, Intf")
		e.line("from mn_wifi.wmediumdConnector import interference")
	}
	if e.docker {
		e.line("from containernet.net import Containernet")
		e.line("from containernet.cli import CLI")
		e.line("from containernet.node import DockerSta, Docker")
		e.line("from containernet.term import makeTerm as makeTerm2")
	} else {
		e.line("from mininet.cli import CLI")
	}
	e.line("from subprocess import call")
	e.line("")
	e.line("")
}

func (e *mininetEmitter) utilities() {
	e.line("def sanitize_name(name):")
	e.line(`    """Convert a display name to a valid identifier."""`)
	e.line("    import re")
	e.line("    clean = re.sub(r'[^a-zA-Z0-9_]', '_', name)")
	e.line("    if clean and clean[0].isdigit():")
	e.line("        clean = '_' + clean")
	e.line("    return clean or 'node'")
	e.line("")
	if len(e.ctx.Graph.ServicesOf()) > 0 {
		e.line("def check_5g_configs():")
		e.line(`    """Warn when the 5g-configs directory is missing or empty."""`)
		e.line("    script_dir = os.path.dirname(os.path.abspath(__file__))")
		e.line("    configs_dir = os.path.join(script_dir, '5g-configs')")
		e.line("    if not os.path.isdir(configs_dir):")
		e.line("        print('WARNING: 5g-configs directory not found!')")
		e.line("        return False")
		e.line("    import glob")
		e.line("    configs = glob.glob(os.path.join(configs_dir, '*.yaml'))")
		e.line("    configs.extend(glob.glob(os.path.join(configs_dir, '*.yml')))")
		e.line("    if not configs:")
		e.line("        print('WARNING: no 5G configuration files found in 5g-configs!')")
		e.line("        return False")
		e.line("    for config in sorted(configs):")
		e.line("        print(f'  - {os.path.basename(config)}')")
		e.line("    return True")
		e.line("")
	}
	if e.docker {
		e.line("def create_docker_network_if_needed():")
		e.line(`    """Create the shared attachable bridge network when absent."""`)
		e.line("    import subprocess")
		e.line("    network_name = 'netflux5g'")
		e.line("    try:")
		e.line("        result = subprocess.run(")
		e.line("            ['docker', 'network', 'ls', '--filter', f'name={network_name}', '--format', '{{.Name}}'],")
		e.line("            capture_output=True, text=True, timeout=10)")
		e.line("        if result.returncode == 0 and network_name in result.stdout.strip().split('\\n'):")
		e.line("            return True")
		e.line("        result = subprocess.run(")
		e.line("            ['docker', 'network', 'create', '--driver', 'bridge', '--attachable', network_name],")
		e.line("            capture_output=True, text=True, timeout=30)")
		e.line("        return result.returncode == 0")
		e.line("    except Exception as exc:")
		e.line("        print(f'Error creating Docker network: {exc}')")
		e.line("        return False")
		e.line("")
	}
	e.line("def update_hosts(net):")
	e.line(`    """Propagate every node's name and IP into each node's /etc/hosts."""`)
	e.line("    all_nodes = [n for n in set(list(net.values()) + net.hosts + getattr(net, 'stations', []))")
	e.line("                 if hasattr(n, 'cmd') and hasattr(n, 'name')]")
	e.line("    entries = []")
	e.line("    seen = set()")
	e.line("    for node in all_nodes:")
	e.line("        try:")
	e.line("            ip = node.IP() if callable(getattr(node, 'IP', None)) else getattr(node, 'ip', None)")
	e.line("            if ip and ip != '127.0.0.1':")
	e.line("                entry = f'{ip} {node.name}'")
	e.line("                if entry not in seen:")
	e.line("                    entries.append(entry)")
	e.line("                    seen.add(entry)")
	e.line("        except Exception:")
	e.line("            continue")
	e.line("    for node in all_nodes:")
	e.line("        try:")
	e.line("            node.cmd(\"sed -i '/# fluxgen entries/,/# end fluxgen entries/d' /etc/hosts\")")
	e.line("            if entries:")
	e.line("                node.cmd(\"echo '# fluxgen entries' >> /etc/hosts\")")
	e.line("                for entry in entries:")
	e.line("                    node.cmd(f\"echo '{entry}' >> /etc/hosts\")")
	e.line("                node.cmd(\"echo '# end fluxgen entries' >> /etc/hosts\")")
	e.line("        except Exception:")
	e.line("            continue")
	e.line("")
	e.line("export_dir = os.path.dirname(os.path.abspath(__file__))")
	e.line("")
	e.line("")
}

func (e *mininetEmitter) topologyFunc() {
	e.line("def topology(args):")
	e.line(`    """Build and run the network."""`)
	if len(e.ctx.Graph.ServicesOf()) > 0 {
		e.line(`    info("*** Checking 5G configuration files\n")`)
		e.line("    check_5g_configs()")
	}
	if e.docker {
		e.line(`    info("*** Setting up Docker network\n")`)
		e.line("    create_docker_network_if_needed()")
		e.line(`    NETWORK_MODE = "netflux5g"`)
	}
	e.line("")
	e.netInit()
	e.controllers()
	e.line(`    info("*** Creating nodes\n")`)
	e.switchesAndAPs()
	e.coreServices()
	e.gnbs()
	e.ues()
	e.plainHosts()
	e.ueAssociations()
	if e.wireless {
		e.line(`    info("*** Configuring propagation model\n")`)
		e.line(`    net.setPropagationModel(model="logDistance", exp=3)`)
		e.line("")
		e.line(`    info("*** Configuring nodes\n")`)
		e.line("    net.configureWifiNodes()")
		e.line("")
	}
	e.line(`    info("*** Creating links\n")`)
	e.links()
	if e.wireless {
		e.line(`    if "-p" not in args:`)
		e.line("        net.plotGraph(max_x=1000, max_y=1000)")
		e.line("")
	}
	e.line(`    info("*** Starting network\n")`)
	e.line("    net.build()")
	e.startups()
	e.line("    update_hosts(net)")
	e.line("")
	e.fiveGStartup()
	e.line(`    info("*** Running CLI\n")`)
	e.line("    CLI(net)")
	e.line("")
	e.line(`    info("*** Stopping network\n")`)
	e.line("    net.stop()")
	e.line("")
	e.line("")
}

func (e *mininetEmitter) netInit() {
	if e.wireless || e.docker {
		e.line("    net = Containernet(topo=None,")
		e.line("                       build=False,")
		e.line("                       link=wmediumd, wmediumd_mode=interference,")
		e.line("                       ipBase='10.0.0.0/8')")
	} else {
		e.line("    net = Mininet(topo=None, build=False, ipBase='10.0.0.0/8')")
	}
	e.line("")
}

func (e *mininetEmitter) controllers() {
	e.line(`    info("*** Adding controller\n")`)
	ctrls := e.ctx.unitsOf(topology.KindController)
	if len(ctrls) == 0 {
		e.line("    c0 = net.addController(name='c0', controller=RemoteController)")
		e.line("")
		return
	}
	for _, u := range ctrls {
		e.pf("    %s = net.addController(name='%s', %s)\n", u.ident, u.ident, strings.Join(u.cfg.Params, ", "))
	}
	e.line("")
}

func (e *mininetEmitter) switchesAndAPs() {
	units := e.ctx.unitsOf(topology.KindSwitch, topology.KindRouter, topology.KindAP)
	if len(units) == 0 {
		return
	}
	e.line(`    info("*** Add APs & Switches\n")`)
	for _, u := range units {
		call := "addSwitch"
		if u.kind == topology.KindAP {
			call = "addAccessPoint"
		}
		e.pf("    %s = net.%s('%s', %s)\n", u.ident, call, u.ident, strings.Join(u.cfg.Params, ", "))
	}
	e.line("")
}

func volumeExpr(v VolumeMount) string {
	suffix := v.Source + ":" + v.Target
	if v.Mode != "" {
		suffix += ":" + v.Mode
	}
	if v.ExportRel {
		return fmt.Sprintf(`export_dir + "/%s"`, suffix)
	}
	return fmt.Sprintf("%q", suffix)
}

func volumesExpr(vols []VolumeMount) string {
	parts := make([]string, len(vols))
	for i, v := range vols {
		parts[i] = volumeExpr(v)
	}
	return "volumes=[" + strings.Join(parts, ", ") + "]"
}

func envDictExpr(env []EnvVar) string {
	parts := make([]string, len(env))
	for i, v := range env {
		parts[i] = fmt.Sprintf("%q: %q", v.Key, v.Value)
	}
	return "environment={" + strings.Join(parts, ", ") + "}"
}

func envListExpr(env []EnvVar) string {
	parts := make([]string, len(env))
	for i, v := range env {
		parts[i] = fmt.Sprintf("%q", v.Key+"="+v.Value)
	}
	return "environment=[" + strings.Join(parts, ", ") + "]"
}

func (e *mininetEmitter) coreServices() {
	units := e.ctx.unitsOf(topology.KindCore5G)
	if len(units) == 0 {
		return
	}
	e.line(`    info("*** Adding 5G core services\n")`)
	for _, u := range units {
		params := []string{fmt.Sprintf("'%s'", u.ident)}
		if len(u.cfg.Devices) > 0 {
			params = append(params, fmt.Sprintf(`devices=["%s"]`, strings.Join(u.cfg.Devices, `", "`)))
		}
		params = append(params,
			`cap_add=["net_admin"]`,
			"network_mode=NETWORK_MODE",
		)
		if u.cfg.Privileged {
			params = append(params, "privileged=True")
		}
		params = append(params,
			"publish_all_ports=True",
			fmt.Sprintf("dcmd=%q", u.cfg.Command),
			"cls=DockerSta",
			fmt.Sprintf("dimage='%s'", u.cfg.Image),
			fmt.Sprintf("position='%s'", u.cfg.Position),
			volumesExpr(u.cfg.Volumes),
			envListExpr(u.cfg.Env),
		)
		e.pf("    %s = net.addDocker(%s)\n", u.ident, strings.Join(params, ", "))
	}
	e.line("")
}

func (e *mininetEmitter) gnbs() {
	units := e.ctx.unitsOf(topology.KindGNB)
	if len(units) == 0 {
		return
	}
	e.line(`    info("*** Adding gNB nodes\n")`)
	for _, u := range units {
		params := []string{
			fmt.Sprintf("'%s'", u.ident),
			`cap_add=["net_admin"]`,
			"network_mode=NETWORK_MODE",
			"publish_all_ports=True",
			"privileged=True",
			fmt.Sprintf("dcmd=%q", u.cfg.Command),
			"cls=DockerSta",
			fmt.Sprintf("dimage='%s'", u.cfg.Image),
			volumesExpr(u.cfg.Volumes),
			fmt.Sprintf("position='%s'", u.cfg.Position),
			fmt.Sprintf("txpower=%s", formatFloat(u.cfg.TxPower)),
			envDictExpr(u.cfg.Env),
		}
		e.pf("    %s = net.addDocker(%s)\n", u.ident, strings.Join(params, ", "))
	}
	e.line("")
}

func (e *mininetEmitter) ues() {
	units := e.ctx.unitsOf(topology.KindUE)
	if len(units) == 0 {
		return
	}
	e.line(`    info("*** Adding UE nodes\n")`)
	for _, u := range units {
		params := []string{
			fmt.Sprintf("'%s'", u.ident),
			`devices=["/dev/net/tun"]`,
			`cap_add=["net_admin"]`,
			"network_mode=NETWORK_MODE",
			fmt.Sprintf("dcmd=%q", u.cfg.Command),
			"cls=DockerSta",
			fmt.Sprintf("dimage='%s'", u.cfg.Image),
			volumesExpr(u.cfg.Volumes),
			fmt.Sprintf("range=%s", formatFloat(u.cfg.Range)),
		}
		if u.cfg.TxPower > 0 {
			params = append(params, fmt.Sprintf("txpower=%s", formatFloat(u.cfg.TxPower)))
		}
		params = append(params,
			fmt.Sprintf("position='%s'", u.cfg.Position),
			envDictExpr(u.cfg.Env),
		)
		e.pf("    %s = net.addStation(%s)\n", u.ident, strings.Join(params, ", "))
	}
	e.line("")
}

func (e *mininetEmitter) plainHosts() {
	units := e.ctx.unitsOf(topology.KindHost, topology.KindSTA, topology.KindDockerHost)
	if len(units) == 0 {
		return
	}
	for _, u := range units {
		call := "addHost"
		if u.kind == topology.KindSTA {
			call = "addStation"
		}
		args := fmt.Sprintf("'%s'", u.ident)
		if len(u.cfg.Params) > 0 {
			args += ", " + strings.Join(u.cfg.Params, ", ")
		}
		e.pf("    %s = net.%s(%s)\n", u.ident, call, args)
	}
	e.line("")
}

// accessPoint is a radio service a UE can associate with: a standalone AP
// node or an AP-enabled gNB.
type accessPoint struct {
	unit     unit
	ssid     string
	coverage float64
}

func (e *mininetEmitter) accessPoints() []accessPoint {
	var aps []accessPoint
	for _, u := range e.ctx.unitsOf(topology.KindAP) {
		ssid := u.node.Props.Str("AP_SSID", u.ident+"-ssid")
		coverage, _ := u.node.Props.Float("AP_Range", 116)
		aps = append(aps, accessPoint{unit: u, ssid: ssid, coverage: coverage})
	}
	for _, u := range e.ctx.unitsOf(topology.KindGNB) {
		if !u.node.Props.Bool("GNB_AP_Enabled", false) {
			continue
		}
		ssid := u.node.Props.Str("GNB_AP_SSID", "gnb-hotspot")
		coverage, _ := u.node.Props.Float("GNB_Range", 300)
		aps = append(aps, accessPoint{unit: u, ssid: ssid, coverage: coverage})
	}
	return aps
}

// ueAssociations assigns each UE to the nearest in-range access point by
// canvas distance, falling back to the nearest overall.
func (e *mininetEmitter) ueAssociations() {
	ues := e.ctx.unitsOf(topology.KindUE)
	if len(ues) == 0 {
		return
	}
	aps := e.accessPoints()
	if len(aps) == 0 {
		e.line("    # No access points in the topology; UEs use 5G connectivity only")
		e.line("")
		return
	}
	e.line("    # UE association by canvas distance vs coverage")
	type pick struct {
		ue   unit
		ap   accessPoint
		dist float64
	}
	var picks []pick
	for _, ue := range ues {
		best := -1
		bestDist := math.Inf(1)
		nearest := 0
		nearestDist := math.Inf(1)
		for i, ap := range aps {
			d := math.Hypot(ue.node.X-ap.unit.node.X, ue.node.Y-ap.unit.node.Y)
			if d < nearestDist {
				nearest, nearestDist = i, d
			}
			if d <= ap.coverage && d < bestDist {
				best, bestDist = i, d
			}
		}
		if best < 0 {
			e.pf("    # %s -> %s (out of range, connecting to nearest at %.1fm)\n",
				ue.ident, aps[nearest].unit.ident, nearestDist)
			picks = append(picks, pick{ue: ue, ap: aps[nearest], dist: nearestDist})
			continue
		}
		e.pf("    # %s -> %s (SSID %s, distance %.1fm)\n",
			ue.ident, aps[best].unit.ident, aps[best].ssid, bestDist)
		picks = append(picks, pick{ue: ue, ap: aps[best], dist: bestDist})
	}
	e.line("")
	for _, p := range picks {
		e.pf("    %s.cmd(\"iw dev %s-wlan0 connect %s\")\n", p.ue.ident, p.ue.ident, p.ap.ssid)
	}
	e.line("")
}

// fanout lists the core services a link to a VGcore aggregate attaches to:
// its AMF, UPF and SMF instances, in that grouping.
func (e *mininetEmitter) fanout(aggregate string) []unit {
	var out []unit
	for _, kind := range []topology.ServiceKind{topology.SvcAMF, topology.SvcUPF, topology.SvcSMF} {
		for _, u := range e.ctx.units {
			if u.svc != nil && u.svc.Kind == kind && u.svc.Owner == aggregate {
				out = append(out, u)
			}
		}
	}
	return out
}

func (e *mininetEmitter) links() {
	for _, l := range e.ctx.Graph.Links {
		params := mapLink(l)
		from := e.linkEndpoints(l.From)
		to := e.linkEndpoints(l.To)
		if len(from) == 0 || len(to) == 0 {
			continue
		}
		for _, a := range from {
			for _, b := range to {
				x, y := a, b
				// Switches come first in mixed pairs; OVS port
				// numbering on the switch side depends on it.
				if isSwitch(y) && attachesToSwitch(x) {
					x, y = y, x
				}
				args := []string{x.ident, y.ident}
				args = append(args, params...)
				e.pf("    net.addLink(%s)\n", strings.Join(args, ", "))
			}
		}
	}
	e.line("")
}

// linkEndpoints resolves a link endpoint name to its emitted units: one for
// a plain node, several for a VGcore aggregate.
func (e *mininetEmitter) linkEndpoints(name string) []unit {
	if u, ok := e.byName[name]; ok {
		return []unit{u}
	}
	n := e.ctx.Graph.TryGetNode(name)
	if n == nil || n.Kind != topology.KindCore5G {
		return nil
	}
	units := e.fanout(name)
	if len(units) == 0 {
		e.ctx.Diag.Warnf(name, "aggregate has no AMF, UPF or SMF instances to link")
	}
	return units
}

func isSwitch(u unit) bool {
	return u.kind == topology.KindSwitch || u.kind == topology.KindRouter
}

func attachesToSwitch(u unit) bool {
	return u.kind == topology.KindCore5G || u.kind == topology.KindGNB || u.kind == topology.KindAP
}

func (e *mininetEmitter) startups() {
	ctrls := e.ctx.unitsOf(topology.KindController)
	first := "c0"
	if len(ctrls) > 0 {
		first = ctrls[0].ident
		for _, u := range ctrls {
			e.pf("    %s.start()\n", u.ident)
		}
	} else {
		e.line("    c0.start()")
	}
	e.line("")
	aps := e.ctx.unitsOf(topology.KindAP)
	if len(aps) > 0 {
		e.line(`    info("*** Starting APs\n")`)
		for _, u := range aps {
			e.pf("    net.get(\"%s\").start([%s])\n", u.ident, first)
		}
	}
	for _, u := range e.ctx.unitsOf(topology.KindSwitch, topology.KindRouter) {
		e.pf("    net.get(\"%s\").start([%s])\n", u.ident, first)
	}
	e.line("")
}

func (e *mininetEmitter) fiveGStartup() {
	services := e.ctx.unitsOf(topology.KindCore5G)
	gnbs := e.ctx.unitsOf(topology.KindGNB)
	ues := e.ctx.unitsOf(topology.KindUE)
	if len(services) == 0 && len(gnbs) == 0 && len(ues) == 0 {
		return
	}
	for _, kind := range topology.StartupOrder {
		started := false
		for _, u := range services {
			if u.svc.Kind != kind {
				continue
			}
			if !started {
				e.pf("    info(\"*** Starting %s components\\n\")\n", kind)
				started = true
			}
			e.pf("    %s.cmd(\"setsid nohup /opt/open5gs/etc/open5gs/entrypoint.sh %s 2>&1 | tee -a /logging/%s.log &\")\n",
				u.ident, kind.Daemon(), u.ident)
		}
		if started {
			e.line("")
		}
	}
	if len(services) > 0 {
		e.line(`    CLI.do_sh(net, "sleep 10")`)
		e.line("")
	}
	if len(gnbs) > 0 {
		e.line(`    info("*** Starting gNB nodes\n")`)
		for _, u := range gnbs {
			e.pf("    %s.cmd(\"setsid nohup /entrypoint.sh gnb 2>&1 | tee -a /logging/%s.log &\")\n", u.ident, u.ident)
		}
		e.line("")
		e.line(`    CLI.do_sh(net, "sleep 15")`)
		e.line("")
	}
	if len(ues) > 0 {
		e.line(`    info("*** Starting UE nodes\n")`)
		for _, u := range ues {
			e.pf("    %s.cmd(\"setsid nohup /entrypoint.sh ue 2>&1 | tee -a /logging/%s.log &\")\n", u.ident, u.ident)
		}
		e.line("")
		e.line(`    CLI.do_sh(net, "sleep 20")`)
		e.line("")
		e.line(`    info("*** Routing UE traffic through the 5G tunnel\n")`)
		for _, u := range ues {
			apn := u.node.Props.Str("UE_APN", "internet")
			group := e.ctx.Alloc.GroupFor(apn)
			if group == nil {
				continue
			}
			tun := u.node.Props.Str("UE_TunnelInterface", "uesimtun0")
			e.pf("    %s.cmd(\"ip route add %s dev %s\")\n", u.ident, group.Subnet, tun)
		}
		e.line("")
	}
}

func (e *mininetEmitter) mainBlock() {
	e.line("if __name__ == '__main__':")
	e.line("    setLogLevel('info')")
	e.line("    topology(sys.argv)")
}
