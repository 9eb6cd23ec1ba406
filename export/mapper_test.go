package export

import (
	"net/netip"
	"testing"

	"github.com/netfluxlab/fluxgen/topology"
	"github.com/stretchr/testify/assert"
)

func testMapper() (*mapper, *Diagnostics) {
	diag := &Diagnostics{}
	return &mapper{
		alloc: &Allocation{Idents: map[string]string{}, UEAddrs: map[string]netip.Addr{}},
		diag:  diag,
	}, diag
}

func envMap(env []EnvVar) map[string]string {
	out := make(map[string]string, len(env))
	for _, v := range env {
		out[v.Key] = v.Value
	}
	return out
}

func TestMapGNB_Defaults(t *testing.T) {
	m, diag := testMapper()
	m.alloc.Idents["gnb1"] = "gnb1"
	cfg := m.mapGNB(topology.Node{Name: "gnb1", Kind: topology.KindGNB, Props: topology.Props{}})
	assert.False(t, diag.HasErrors())

	env := envMap(cfg.Env)
	assert.Equal(t, "amf", env["AMF_HOSTNAME"])
	assert.Equal(t, "gnb", env["GNB_HOSTNAME"])
	assert.Equal(t, "999", env["MCC"])
	assert.Equal(t, "70", env["MNC"])
	assert.Equal(t, "0xffffff", env["SD"])
	assert.Equal(t, "gnb", env["UERANSIM_COMPONENT"])
	assert.Equal(t, "false", env["OVS_ENABLED"])
	assert.Equal(t, "false", env["AP_ENABLED"])
	assert.NotContains(t, env, "AMF_IP")

	assert.Equal(t, "adaptive/ueransim:latest", cfg.Image)
	assert.True(t, cfg.Privileged)
	assert.Equal(t, []string{"net_admin"}, cfg.CapAdd)
	assert.Equal(t, 30.0, cfg.TxPower)
}

func TestMapGNB_APBlock(t *testing.T) {
	m, _ := testMapper()
	m.alloc.Idents["gnb1"] = "gnb1"
	cfg := m.mapGNB(topology.Node{Name: "gnb1", Kind: topology.KindGNB, Props: topology.Props{
		"GNB_AP_Enabled": true,
		"GNB_AP_SSID":    "test-ap",
		"GNB_AP_Channel": 6,
	}})
	env := envMap(cfg.Env)
	assert.Equal(t, "true", env["AP_ENABLED"])
	assert.Equal(t, "test-ap", env["AP_SSID"])
	assert.Equal(t, "6", env["AP_CHANNEL"])
	assert.Equal(t, "g", env["AP_MODE"])
	assert.Equal(t, "secure", env["AP_FAILMODE"])
	assert.Equal(t, "30", env["AP_TXPOWER"])
}

func TestMapGNB_NonNumericMNCFatal(t *testing.T) {
	m, diag := testMapper()
	m.alloc.Idents["gnb1"] = "gnb1"
	m.mapGNB(topology.Node{Name: "gnb1", Kind: topology.KindGNB, Props: topology.Props{
		"GNB_MNC": "seventy",
	}})
	assert.True(t, diag.HasErrors())

	var me *MappingError
	assert.ErrorAs(t, diag.Err(), &me)
	assert.Equal(t, "gnb1", me.Node)
	assert.Equal(t, "GNB_MNC", me.Key)
}

func TestMapGNB_BadTunableWarns(t *testing.T) {
	m, diag := testMapper()
	m.alloc.Idents["gnb1"] = "gnb1"
	cfg := m.mapGNB(topology.Node{Name: "gnb1", Kind: topology.KindGNB, Props: topology.Props{
		"GNB_AP_Enabled": true,
		"GNB_AP_Channel": "lots",
	}})
	assert.False(t, diag.HasErrors(), "bad tunables must not kill the export")
	assert.Len(t, diag.Warnings, 1)
	assert.Equal(t, "6", envMap(cfg.Env)["AP_CHANNEL"])
}

func TestMapUE_Defaults(t *testing.T) {
	m, diag := testMapper()
	m.alloc.Idents["ue1"] = "ue1"
	cfg := m.mapUE(topology.Node{Name: "ue1", Kind: topology.KindUE, Props: topology.Props{}}, 3)
	assert.False(t, diag.HasErrors())

	env := envMap(cfg.Env)
	assert.Equal(t, "internet", env["APN"])
	assert.Equal(t, "0000000003", env["MSISDN"])
	assert.Equal(t, "465B5CE8B199B49FAA5F0A2EE238A6BC", env["KEY"])
	assert.Equal(t, "OPC", env["OP_TYPE"])
	assert.Equal(t, "uesimtun0", env["TUNNEL_IFACE"])
	assert.Equal(t, "ue", env["UERANSIM_COMPONENT"])
	assert.Equal(t, "1", env["PDU_SESSIONS"])

	assert.Equal(t, []string{"/dev/net/tun"}, cfg.Devices)
	assert.Equal(t, 116.0, cfg.Range)
}

func TestMapService_UPF(t *testing.T) {
	m, _ := testMapper()
	m.alloc.Idents["UPF1"] = "UPF1"
	agg := topology.Node{Name: "core1", Kind: topology.KindCore5G, Props: topology.Props{}}
	svc := topology.Service{Kind: topology.SvcUPF, Name: "UPF1", Owner: "core1", ConfigFile: "upf.yaml"}

	cfg := m.mapService(agg, svc)
	env := envMap(cfg.Env)
	assert.Equal(t, "mongodb://mongo/open5gs", env["DB_URI"])
	assert.Equal(t, "true", env["ENABLE_NAT"])
	assert.Equal(t, "br-open5gs", env["OVS_BRIDGE_NAME"])
	assert.Equal(t, "standalone", env["OVS_FAIL_MODE"])
	assert.True(t, cfg.Privileged)
	assert.Equal(t, "adaptive/open5gs:latest", cfg.Image)

	assert.Len(t, cfg.Volumes, 2)
	assert.Equal(t, "5g-configs/upf.yaml", cfg.Volumes[0].Source)
	assert.Equal(t, "/opt/open5gs/etc/open5gs/upf.yaml", cfg.Volumes[0].Target)
	assert.True(t, cfg.Volumes[0].ExportRel)
}

func TestMapService_NRFHasNoOVSBlock(t *testing.T) {
	m, _ := testMapper()
	m.alloc.Idents["NRF1"] = "NRF1"
	agg := topology.Node{Name: "core1", Kind: topology.KindCore5G, Props: topology.Props{}}
	svc := topology.Service{Kind: topology.SvcNRF, Name: "NRF1", Owner: "core1", ConfigFile: "nrf.yaml"}

	cfg := m.mapService(agg, svc)
	env := envMap(cfg.Env)
	assert.NotContains(t, env, "OVS_BRIDGE_NAME")
	assert.NotContains(t, env, "ENABLE_NAT")
	assert.False(t, cfg.Privileged)
}

func TestMapController_BadAddressWarns(t *testing.T) {
	m, diag := testMapper()
	m.alloc.Idents["c1"] = "c1"
	m.controllerField(topology.Node{Name: "c1", Props: topology.Props{
		"GNB_OVS_Controller": "not-an-address",
	}}, "GNB_OVS_Controller")
	assert.False(t, diag.HasErrors())
	assert.Len(t, diag.Warnings, 1)
}

func TestMapLink(t *testing.T) {
	assert.Empty(t, mapLink(topology.Link{}))
	assert.Equal(t, []string{"bw=100", "delay='5ms'", "loss=2"},
		mapLink(topology.Link{Bandwidth: 100, Delay: "5", Loss: 2}))
	assert.Equal(t, []string{"delay='10ms'"}, mapLink(topology.Link{Delay: "10ms"}))
}
