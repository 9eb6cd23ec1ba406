package export

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/netfluxlab/fluxgen/topology"
)

// EnvVar is one environment entry. Order matters: the downstream container
// entrypoints are diffed against byte for byte, so env is a slice, not a map.
type EnvVar struct {
	Key   string
	Value string
}

// VolumeMount is a container bind mount. ExportRel sources are resolved
// against the export directory at deploy time.
type VolumeMount struct {
	Source    string
	Target    string
	Mode      string
	ExportRel bool
}

// ConfigResult is the deployment surface of one emitted entity. Docker-backed
// entities fill the container fields; classic mininet entities carry their
// constructor arguments pre-rendered in Params.
type ConfigResult struct {
	Image      string
	Command    string
	Env        []EnvVar
	CapAdd     []string
	Devices    []string
	Privileged bool
	PublishAll bool
	Volumes    []VolumeMount
	Params     []string
	Position   string
	TxPower    float64
	Range      float64
}

// envList keeps insertion order while letting later writers update a key in
// place, matching how the legacy tool merged its OVS and AP blocks.
type envList struct {
	vars []EnvVar
}

func (e *envList) set(key, value string) {
	for i := range e.vars {
		if e.vars[i].Key == key {
			e.vars[i].Value = value
			return
		}
	}
	e.vars = append(e.vars, EnvVar{Key: key, Value: value})
}

type mapper struct {
	alloc *Allocation
	diag  *Diagnostics
}

var digitsOnly = regexp.MustCompile(`^[0-9]+$`)
var controllerAddr = regexp.MustCompile(`^tcp:[0-9A-Za-z_.-]+:[0-9]+$`)

// plmn returns a numeric identity field. A present non-numeric value has no
// safe substitute, so it is a fatal mapping error.
func (m *mapper) plmn(n topology.Node, key, def string) string {
	v := n.Props.Str(key, def)
	if !digitsOnly.MatchString(v) {
		m.diag.AddError(&MappingError{Node: n.Name, Key: key, Msg: fmt.Sprintf("%q is not numeric", v)})
		return def
	}
	return v
}

// intField coerces a tunable; bad values fall back to the default with a
// warning instead of killing the export.
func (m *mapper) intField(n topology.Node, key string, def int) int {
	v, err := n.Props.Int(key, def)
	if err != nil {
		m.diag.Warnf(n.Name, "%v, using %d", err, def)
		return def
	}
	return v
}

func (m *mapper) floatField(n topology.Node, key string, def float64) float64 {
	v, err := n.Props.Float(key, def)
	if err != nil {
		m.diag.Warnf(n.Name, "%v, using %v", err, def)
		return def
	}
	return v
}

// controllerField validates the tcp:<ip>:<port> syntax the bridge setup
// scripts parse. Malformed values pass through with a warning.
func (m *mapper) controllerField(n topology.Node, key string) string {
	v := n.Props.Str(key, "")
	if v != "" && !controllerAddr.MatchString(v) {
		m.diag.Warnf(n.Name, "controller address %q does not match tcp:<ip>:<port>", v)
	}
	return v
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func position(n topology.Node) string {
	return fmt.Sprintf("%.1f,%.1f,0", n.X, n.Y)
}

// mapNode dispatches to the kind-specific mapper. Core aggregates are mapped
// per expanded service through mapService instead.
func (m *mapper) mapNode(n topology.Node) ConfigResult {
	switch n.Kind {
	case topology.KindController:
		return m.mapController(n)
	case topology.KindSwitch, topology.KindRouter:
		return m.mapSwitch(n)
	case topology.KindAP:
		return m.mapAP(n)
	case topology.KindGNB:
		return m.mapGNB(n)
	case topology.KindHost, topology.KindSTA:
		return m.mapHost(n)
	case topology.KindDockerHost:
		return m.mapDockerHost(n)
	default:
		return ConfigResult{}
	}
}

func (m *mapper) mapController(n topology.Node) ConfigResult {
	params := []string{"controller=RemoteController"}
	if t := n.Props.Str("Controller_Type", ""); t != "" && t != "RemoteController" {
		params[0] = "controller=" + t
	}
	params = append(params,
		fmt.Sprintf("ip='%s'", n.Props.Str("Controller_IPAddress", "127.0.0.1")),
		fmt.Sprintf("port=%d", m.intField(n, "Controller_Port", 6633)),
	)
	return ConfigResult{Params: params}
}

func (m *mapper) mapSwitch(n topology.Node) ConfigResult {
	params := []string{"cls=OVSKernelSwitch", `protocols="OpenFlow13"`}
	if dpid := n.Props.Str("Switch_DPID", ""); dpid != "" {
		params = append(params, fmt.Sprintf("dpid='%s'", dpid))
	}
	return ConfigResult{Params: params}
}

func (m *mapper) mapAP(n topology.Node) ConfigResult {
	ident := m.alloc.Idents[n.Name]
	params := []string{
		"cls=OVSKernelAP",
		fmt.Sprintf("ssid='%s'", n.Props.Str("AP_SSID", ident+"-ssid")),
		"failMode='standalone'",
		"datapath='user'",
		fmt.Sprintf("channel='%d'", m.intField(n, "AP_Channel", 36)),
		fmt.Sprintf("mode='%s'", n.Props.Str("AP_Mode", "a")),
	}
	cfg := ConfigResult{
		Position: position(n),
		TxPower:  m.floatField(n, "AP_Power", 0),
		Range:    m.floatField(n, "AP_Range", 0),
	}
	params = append(params, fmt.Sprintf("position='%s'", cfg.Position))
	if cfg.TxPower > 0 {
		params = append(params, fmt.Sprintf("txpower=%s", formatFloat(cfg.TxPower)))
	}
	if cfg.Range > 0 {
		params = append(params, fmt.Sprintf("range=%s", formatFloat(cfg.Range)))
	}
	params = append(params, `protocols="OpenFlow13"`)
	cfg.Params = params
	return cfg
}

func (m *mapper) mapHost(n topology.Node) ConfigResult {
	prefix := "Host"
	var params []string
	if n.Kind == topology.KindSTA {
		prefix = "STA"
		params = append(params, fmt.Sprintf("position='%s'", position(n)))
	}
	if ip := n.Props.Str(prefix+"_IPAddress", ""); ip != "" && ip != "10.0.0.1" {
		params = append(params, fmt.Sprintf("ip='%s'", ip))
	}
	if mac := n.Props.Str(prefix+"_MACAddress", ""); mac != "" {
		params = append(params, fmt.Sprintf("mac='%s'", mac))
	}
	if route := n.Props.Str(prefix+"_DefaultRoute", ""); route != "" {
		params = append(params, fmt.Sprintf("defaultRoute='via %s'", route))
	}
	if cpu := m.floatField(n, prefix+"_AmountCPU", 1.0); cpu > 0 && cpu != 1.0 {
		params = append(params, fmt.Sprintf("cpu=%s", formatFloat(cpu)))
	}
	if mem := m.intField(n, prefix+"_Memory", 0); mem > 0 {
		params = append(params, fmt.Sprintf("mem=%d", mem))
	}
	cfg := ConfigResult{Params: params}
	if n.Kind == topology.KindSTA {
		cfg.Position = position(n)
		cfg.TxPower = m.floatField(n, "STA_Power", 0)
		cfg.Range = m.floatField(n, "STA_Range", 0)
		if cfg.TxPower > 0 {
			cfg.Params = append(cfg.Params, fmt.Sprintf("txpower=%s", formatFloat(cfg.TxPower)))
		}
		if cfg.Range > 0 {
			cfg.Params = append(cfg.Params, fmt.Sprintf("range=%s", formatFloat(cfg.Range)))
		}
	}
	return cfg
}

func (m *mapper) mapDockerHost(n topology.Node) ConfigResult {
	params := []string{"cls=Docker"}
	if image := n.Props.Str("DockerHost_ContainerImage", ""); image != "" {
		params = append(params, fmt.Sprintf("dimage='%s'", image))
	}
	if cmd := n.Props.Str("DockerHost_Command", ""); cmd != "" {
		params = append(params, fmt.Sprintf("dcmd='%s'", cmd))
	}
	if ports := n.Props.Str("DockerHost_PortForward", ""); ports != "" {
		params = append(params, fmt.Sprintf("ports='%s'", ports))
	}
	if volumes := n.Props.Str("DockerHost_VolumeMapping", ""); volumes != "" {
		params = append(params, fmt.Sprintf("volumes='%s'", volumes))
	}
	if ip := n.Props.Str("DockerHost_IPAddress", ""); ip != "" && ip != "192.168.1.1" {
		params = append(params, fmt.Sprintf("ip='%s'", ip))
	}
	if mac := n.Props.Str("DockerHost_MACAddress", ""); mac != "" {
		params = append(params, fmt.Sprintf("mac='%s'", mac))
	}
	if cpu := m.floatField(n, "DockerHost_AmountCPU", 1.0); cpu > 0 && cpu != 1.0 {
		params = append(params, fmt.Sprintf("cpu=%s", formatFloat(cpu)))
	}
	if mem := m.intField(n, "DockerHost_Memory", 0); mem > 0 {
		params = append(params, fmt.Sprintf("mem=%d", mem))
	}
	return ConfigResult{Params: params}
}

// mapGNB builds the UERANSIM gNB container surface. The env block is the wire
// format the image's entrypoint parses, so keys and ordering are fixed.
func (m *mapper) mapGNB(n topology.Node) ConfigResult {
	ident := m.alloc.Idents[n.Name]
	env := &envList{}
	env.set("AMF_HOSTNAME", n.Props.Str("GNB_AMFHostName", "amf"))
	if amfIP := n.Props.Str("GNB_AMF_IP", ""); amfIP != "" {
		env.set("AMF_IP", amfIP)
	}
	env.set("GNB_HOSTNAME", n.Props.Str("GNB_GNBHostName", "gnb"))
	env.set("N2_IFACE", n.Props.Str("GNB_N2_Interface", "eth0"))
	env.set("N3_IFACE", n.Props.Str("GNB_N3_Interface", "eth0"))
	env.set("RADIO_IFACE", n.Props.Str("GNB_Radio_Interface", "eth0"))
	env.set("NETWORK_INTERFACE", n.Props.Str("GNB_NetworkInterface", "eth0"))
	env.set("MCC", m.plmn(n, "GNB_MCC", "999"))
	env.set("MNC", m.plmn(n, "GNB_MNC", "70"))
	env.set("SST", m.plmn(n, "GNB_SST", "1"))
	env.set("SD", n.Props.Str("GNB_SD", "0xffffff"))
	env.set("TAC", m.plmn(n, "GNB_TAC", "1"))
	env.set("UERANSIM_COMPONENT", "gnb")

	ovsController := m.controllerField(n, "GNB_OVS_Controller")
	failMode := n.Props.Str("GNB_OVS_FailMode", "secure")
	protocols := n.Props.Str("GNB_OVS_Protocols", "OpenFlow14")
	if n.Props.Bool("GNB_OVS_Enabled", false) {
		env.set("OVS_ENABLED", "true")
		env.set("OVS_BRIDGE_NAME", n.Props.Str("GNB_OVS_BridgeName", "br-gnb"))
		env.set("OVS_FAIL_MODE", failMode)
		env.set("OPENFLOW_PROTOCOLS", protocols)
		env.set("OVS_DATAPATH", n.Props.Str("GNB_OVS_Datapath", "kernel"))
		env.set("BRIDGE_PRIORITY", strconv.Itoa(m.intField(n, "GNB_Bridge_Priority", 32768)))
		env.set("STP_ENABLED", boolStr(n.Props.Bool("GNB_STP_Enabled", false)))
		if ovsController != "" {
			env.set("OVS_CONTROLLER", ovsController)
		}
	} else {
		env.set("OVS_ENABLED", "false")
	}

	power := m.floatField(n, "GNB_Power", 30)
	if n.Props.Bool("GNB_AP_Enabled", false) {
		env.set("AP_ENABLED", "true")
		env.set("AP_SSID", n.Props.Str("GNB_AP_SSID", "gnb-hotspot"))
		env.set("AP_CHANNEL", strconv.Itoa(m.intField(n, "GNB_AP_Channel", 6)))
		env.set("AP_MODE", n.Props.Str("GNB_AP_Mode", "g"))
		env.set("AP_PASSWD", n.Props.Str("GNB_AP_Password", ""))
		env.set("AP_FAILMODE", failMode)
		env.set("OPENFLOW_PROTOCOLS", protocols)
		env.set("AP_TXPOWER", formatFloat(power))
		if ovsController != "" {
			env.set("OVS_CONTROLLER", ovsController)
		}
		if bridge := n.Props.Str("GNB_AP_BridgeName", ""); bridge != "" {
			env.set("AP_BRIDGE_NAME", bridge)
		}
	} else {
		env.set("AP_ENABLED", "false")
	}

	return ConfigResult{
		Image:      "adaptive/ueransim:latest",
		Command:    "/bin/bash",
		Env:        env.vars,
		CapAdd:     []string{"net_admin"},
		Privileged: true,
		PublishAll: true,
		Volumes: []VolumeMount{
			{Source: "/lib/modules", Target: "/lib/modules", Mode: "ro"},
			{Source: "log-" + ident + "/", Target: "/logging/", ExportRel: true},
		},
		Position: position(n),
		TxPower:  power,
	}
}

// mapUE builds the UERANSIM UE container surface. ordinal is the UE's
// 1-based declaration index, used for the default MSISDN sequence.
func (m *mapper) mapUE(n topology.Node, ordinal int) ConfigResult {
	ident := m.alloc.Idents[n.Name]
	env := &envList{}
	env.set("GNB_HOSTNAME", n.Props.Str("UE_GNBHostName", "gnb"))
	env.set("APN", n.Props.Str("UE_APN", "internet"))
	env.set("MSISDN", n.Props.Str("UE_MSISDN", fmt.Sprintf("000000000%d", ordinal)))
	env.set("MCC", m.plmn(n, "UE_MCC", "999"))
	env.set("MNC", m.plmn(n, "UE_MNC", "70"))
	env.set("SST", m.plmn(n, "UE_SST", "1"))
	env.set("SD", n.Props.Str("UE_SD", "0xffffff"))
	env.set("TAC", m.plmn(n, "UE_TAC", "1"))
	env.set("KEY", n.Props.Str("UE_KEY", "465B5CE8B199B49FAA5F0A2EE238A6BC"))
	env.set("OP_TYPE", n.Props.Str("UE_OPType", "OPC"))
	env.set("OP", n.Props.Str("UE_OP", "E8ED289DEBA952E4283B54E88E6183CA"))
	env.set("IMEI", n.Props.Str("UE_IMEI", "356938035643803"))
	env.set("IMEISV", n.Props.Str("UE_IMEISV", "4370816125816151"))
	env.set("TUNNEL_IFACE", n.Props.Str("UE_TunnelInterface", "uesimtun0"))
	env.set("RADIO_IFACE", n.Props.Str("UE_RadioInterface", "eth0"))
	env.set("SESSION_TYPE", n.Props.Str("UE_SessionType", "IPv4"))
	env.set("PDU_SESSIONS", strconv.Itoa(m.intField(n, "UE_PDUSessions", 1)))
	env.set("MOBILITY_ENABLED", boolStr(n.Props.Bool("UE_Mobility", false)))
	env.set("UERANSIM_COMPONENT", "ue")
	if gnbIP := n.Props.Str("UE_GNB_IP", ""); gnbIP != "" {
		env.set("GNB_IP", gnbIP)
	}
	if n.Props.Bool("UE_OVS_Enabled", false) {
		env.set("OVS_ENABLED", "true")
		env.set("OVS_BRIDGE_NAME", n.Props.Str("UE_OVS_BridgeName", "br-ue"))
		env.set("OVS_FAIL_MODE", n.Props.Str("UE_OVS_FailMode", "secure"))
		env.set("OPENFLOW_PROTOCOLS", n.Props.Str("UE_OVS_Protocols", "OpenFlow14"))
		if c := m.controllerField(n, "UE_OVS_Controller"); c != "" {
			env.set("OVS_CONTROLLER", c)
		}
	} else {
		env.set("OVS_ENABLED", "false")
	}

	return ConfigResult{
		Image:   "adaptive/ueransim:latest",
		Command: "/bin/bash",
		Env:     env.vars,
		CapAdd:  []string{"net_admin"},
		Devices: []string{"/dev/net/tun"},
		Volumes: []VolumeMount{
			{Source: "log-" + ident + "/", Target: "/logging/", ExportRel: true},
		},
		Position: position(n),
		TxPower:  m.floatField(n, "UE_Power", 0),
		Range:    m.floatField(n, "UE_Range", 116),
	}
}

// mapService builds one expanded Open5GS service container from its owning
// aggregate's properties.
func (m *mapper) mapService(agg topology.Node, svc topology.Service) ConfigResult {
	ident := m.alloc.Idents[svc.Name]
	env := &envList{}
	env.set("DB_URI", agg.Props.Str("VGCore_DatabaseURI", "mongodb://mongo/open5gs"))
	if svc.Kind == topology.SvcUPF {
		env.set("ENABLE_NAT", boolStr(agg.Props.Bool("VGCore_EnableNAT", true)))
	}
	env.set("NETWORK_INTERFACE", agg.Props.Str("VGCore_NetworkInterface", "eth0"))
	if svc.Kind == topology.SvcAMF {
		env.set("MCC", m.plmn(agg, "VGCore_MCC", "999"))
		env.set("MNC", m.plmn(agg, "VGCore_MNC", "70"))
		env.set("TAC", m.plmn(agg, "VGCore_TAC", "1"))
		env.set("SST", m.plmn(agg, "VGCore_SST", "1"))
		env.set("SD", agg.Props.Str("VGCore_SD", "0xffffff"))
	}
	switch svc.Kind {
	case topology.SvcAMF, topology.SvcSMF, topology.SvcUPF:
		env.set("OVS_ENABLED", boolStr(agg.Props.Bool("VGCore_OVSEnabled", false)))
		env.set("OVS_CONTROLLER", m.controllerField(agg, "VGCore_OVSController"))
		env.set("OVS_BRIDGE_NAME", agg.Props.Str("VGCore_OVSBridgeName", "br-open5gs"))
		env.set("OVS_FAIL_MODE", agg.Props.Str("VGCore_OVSFailMode", "standalone"))
		env.set("OPENFLOW_PROTOCOLS", agg.Props.Str("VGCore_OpenFlowProtocols", "OpenFlow14"))
		env.set("OVS_DATAPATH", agg.Props.Str("VGCore_OVSDatapath", "kernel"))
		env.set("CONTROLLER_PORT", strconv.Itoa(m.intField(agg, "VGCore_ControllerPort", 6633)))
		env.set("BRIDGE_PRIORITY", strconv.Itoa(m.intField(agg, "VGCore_BridgePriority", 32768)))
		env.set("STP_ENABLED", boolStr(agg.Props.Bool("VGCore_STPEnabled", false)))
	}

	lower := svc.Kind.Lower()
	return ConfigResult{
		Image:      agg.Props.Str("VGCore_DockerImage", "adaptive/open5gs:latest"),
		Command:    "/bin/bash",
		Env:        env.vars,
		CapAdd:     []string{"net_admin"},
		Privileged: svc.Kind == topology.SvcUPF,
		PublishAll: true,
		Volumes: []VolumeMount{
			{Source: "5g-configs/" + svc.ConfigFile, Target: "/opt/open5gs/etc/open5gs/" + lower + ".yaml", ExportRel: true},
			{Source: "log-" + strings.ToLower(ident) + "/", Target: "/logging/", ExportRel: true},
		},
		Position: position(agg),
	}
}

// mapLink renders link shaping arguments. Bare delay values get an ms suffix
// so TCLink accepts them.
func mapLink(l topology.Link) []string {
	var params []string
	if l.Bandwidth > 0 {
		params = append(params, fmt.Sprintf("bw=%d", l.Bandwidth))
	}
	if delay := strings.TrimSpace(l.Delay); delay != "" {
		if !strings.HasSuffix(delay, "ms") && !strings.HasSuffix(delay, "us") && !strings.HasSuffix(delay, "s") {
			delay += "ms"
		}
		params = append(params, fmt.Sprintf("delay='%s'", delay))
	}
	if l.Loss > 0 {
		params = append(params, fmt.Sprintf("loss=%s", formatFloat(l.Loss)))
	}
	return params
}
