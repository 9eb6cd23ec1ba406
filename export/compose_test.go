package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/netfluxlab/fluxgen/topology"
	"github.com/stretchr/testify/assert"
)

func coreGraph() *topology.Graph {
	return &topology.Graph{
		Name: "core",
		Nodes: []topology.Node{
			{Name: "core1", Kind: topology.KindCore5G, Props: topology.Props{
				"NRF_configs": []any{map[string]any{"name": "NRF1"}},
				"SCP_configs": []any{map[string]any{"name": "SCP1"}},
				"AMF_configs": []any{map[string]any{"name": "AMF1"}},
				"SMF_configs": []any{map[string]any{"name": "SMF1"}},
				"UPF_configs": []any{map[string]any{"name": "UPF1"}},
				"PCF_configs": []any{map[string]any{"name": "PCF1"}},
				"NSSF_configs": []any{
					map[string]any{"name": "NSSF1"},
				},
			}},
			{Name: "ue1", Kind: topology.KindUE, Props: topology.Props{"UE_APN": "internet"}},
			{Name: "ue2", Kind: topology.KindUE, Props: topology.Props{"UE_APN": "iot"}},
		},
	}
}

func renderCompose(t *testing.T, g *topology.Graph) map[string]string {
	t.Helper()
	ctx, _, err := Plan(g, Options{Target: TargetCompose})
	assert.NoError(t, err)
	arts, err := emitCompose(ctx)
	assert.NoError(t, err)
	out := make(map[string]string, len(arts))
	for _, a := range arts {
		out[a.Path] = string(a.Data)
	}
	return out
}

func TestEmitCompose_Services(t *testing.T) {
	files := renderCompose(t, coreGraph())
	compose := files["docker-compose.yaml"]

	assert.Contains(t, compose, "nrf1:")
	assert.Contains(t, compose, "amf1:")
	assert.Contains(t, compose, "image: adaptive/open5gs:latest")
	assert.Contains(t, compose, "restart: on-failure")
	assert.Contains(t, compose, "command: /opt/open5gs/etc/open5gs/entrypoint.sh open5gs-amfd")
	assert.Contains(t, compose, "source: ./config/amf.yaml")
	assert.Contains(t, compose, "target: /opt/open5gs/etc/open5gs/amf.yaml")
	assert.Contains(t, compose, "source: ./config/entrypoint.sh")
}

func TestEmitCompose_DependencyChain(t *testing.T) {
	files := renderCompose(t, coreGraph())
	compose := files["docker-compose.yaml"]

	// NRF has no dependencies; SCP waits for it; the rest wait for SCP
	nrfBlock := sectionOf(compose, "nrf1:")
	assert.NotContains(t, nrfBlock, "depends_on")
	assert.Contains(t, sectionOf(compose, "scp1:"), "- nrf1")
	assert.Contains(t, sectionOf(compose, "amf1:"), "- scp1")
	nssf := sectionOf(compose, "nssf1:")
	assert.Contains(t, nssf, "- nrf1")
	assert.Contains(t, nssf, "- scp1")
}

// sectionOf cuts the compose text from a service key to the next key at the
// same two-space indentation.
func sectionOf(compose, key string) string {
	var out []string
	found := false
	for _, line := range strings.Split(compose, "\n") {
		if !found {
			if strings.TrimSpace(line) == key {
				found = true
				out = append(out, line)
			}
			continue
		}
		if strings.HasPrefix(line, "  ") && !strings.HasPrefix(line, "   ") && strings.TrimSpace(line) != "" {
			break
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func TestEmitCompose_MongoOnlyWhenNeeded(t *testing.T) {
	withPCF := renderCompose(t, coreGraph())
	assert.Contains(t, withPCF["docker-compose.yaml"], "mongo:")
	assert.Contains(t, withPCF["docker-compose.yaml"], "mongodb_data:")

	g := coreGraph()
	delete(g.Nodes[0].Props, "PCF_configs")
	without := renderCompose(t, g)
	assert.NotContains(t, without["docker-compose.yaml"], "mongo:")
	assert.NotContains(t, without["docker-compose.yaml"], "mongodb_data:")
}

func TestEmitCompose_SessionSubnetsFromAllocator(t *testing.T) {
	files := renderCompose(t, coreGraph())

	upf := files["config/upf.yaml"]
	assert.Contains(t, upf, "subnet: 10.100.0.0/16")
	assert.Contains(t, upf, "gateway: 10.100.0.1")
	assert.Contains(t, upf, "dnn: internet")
	assert.Contains(t, upf, "dev: ogstun")
	// the unknown iot group gets its own subnet and tunnel device
	assert.Contains(t, upf, "subnet: 10.64.0.0/16")
	assert.Contains(t, upf, "dnn: iot")
	assert.Contains(t, upf, "dev: ogstun2")

	smf := files["config/smf.yaml"]
	assert.Contains(t, smf, "subnet: 10.100.0.0/16")
	assert.Contains(t, smf, "address: upf1")
	assert.NotContains(t, smf, "dev: ogstun")
}

func TestEmitCompose_ServiceConfigs(t *testing.T) {
	files := renderCompose(t, coreGraph())

	amf := files["config/amf.yaml"]
	assert.Contains(t, amf, "mcc: \"999\"")
	assert.Contains(t, amf, "mnc: \"70\"")
	assert.Contains(t, amf, "amf_name: open5gs-amf1")
	assert.Contains(t, amf, "path: /opt/open5gs/var/log/open5gs/amf.log")
	assert.Contains(t, amf, "uri: http://scp1:7777")

	scp := files["config/scp.yaml"]
	assert.Contains(t, scp, "uri: http://nrf1:7777")

	pcf := files["config/pcf.yaml"]
	assert.Contains(t, pcf, "db_uri: mongodb://mongo/open5gs")
}

func TestEmitCompose_Entrypoint(t *testing.T) {
	files := renderCompose(t, coreGraph())
	ep := files["config/entrypoint.sh"]
	assert.Contains(t, ep, "#!/bin/bash")
	assert.Contains(t, ep, "ip tuntap add name ogstun mode tun")
	assert.Contains(t, ep, "ip addr add 10.100.0.1/16 dev ogstun")
	assert.Contains(t, ep, "ip tuntap add name ogstun2 mode tun")
	assert.Contains(t, ep, "iptables -t nat -A POSTROUTING -s 10.100.0.0/16 -j MASQUERADE")
	assert.Contains(t, ep, `exec "$@"`)
}

func TestEmitCompose_NoServicesFails(t *testing.T) {
	g := &topology.Graph{Nodes: []topology.Node{
		{Name: "h1", Kind: topology.KindHost, Props: topology.Props{}},
	}}
	ctx, _, err := Plan(g, Options{Target: TargetCompose})
	assert.NoError(t, err)
	_, err = emitCompose(ctx)
	assert.Error(t, err)
}

func TestExport_ComposeBundleOnDisk(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bundle")
	res, err := Export(coreGraph(), Options{Target: TargetCompose, Output: dir})
	assert.NoError(t, err)
	assert.NotEmpty(t, res.Files)

	compose, err := os.ReadFile(filepath.Join(dir, "docker-compose.yaml"))
	assert.NoError(t, err)
	assert.Contains(t, string(compose), "services:")

	info, err := os.Stat(filepath.Join(dir, "config", "entrypoint.sh"))
	assert.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())

	_, err = os.Stat(filepath.Join(dir, "config", "upf.yaml"))
	assert.NoError(t, err)
}
