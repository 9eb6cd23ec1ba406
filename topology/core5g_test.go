package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServicesOf_CurrentFormat(t *testing.T) {
	g := &Graph{Nodes: []Node{{
		Name: "core1",
		Kind: KindCore5G,
		Props: Props{
			"UPF_configs": []any{
				map[string]any{"name": "UPF1"},
				map[string]any{"name": "UPF2", "config_filename": "custom.yaml"},
			},
			"AMF_configs": []any{
				map[string]any{"name": "AMF1"},
			},
		},
	}}}
	svcs := g.ServicesOf()
	assert.Len(t, svcs, 3)

	assert.Equal(t, Service{Kind: SvcUPF, Name: "UPF1", Index: 0, Owner: "core1", ConfigFile: "upf.yaml"}, svcs[0])
	assert.Equal(t, Service{Kind: SvcUPF, Name: "UPF2", Index: 1, Owner: "core1", ConfigFile: "custom.yaml"}, svcs[1])
	assert.Equal(t, Service{Kind: SvcAMF, Name: "AMF1", Index: 0, Owner: "core1", ConfigFile: "amf.yaml"}, svcs[2])
}

func TestServicesOf_LegacyFormat(t *testing.T) {
	g := &Graph{Nodes: []Node{{
		Name: "core1",
		Kind: KindCore5G,
		Props: Props{
			"Component5G_AMFtable": []any{
				[]any{"amf1", "amf_main.yaml"},
				[]any{"amf2", ""},
			},
		},
	}}}
	svcs := g.ServicesOf()
	assert.Len(t, svcs, 2)
	assert.Equal(t, "amf_main.yaml", svcs[0].ConfigFile)
	assert.Equal(t, "amf_2.yaml", svcs[1].ConfigFile, "blank legacy cells fall back to the numbered default")
}

func TestServicesOf_BlankRowsSkipped(t *testing.T) {
	g := &Graph{Nodes: []Node{{
		Name: "core1",
		Kind: KindCore5G,
		Props: Props{
			"SMF_configs": []any{
				map[string]any{"name": "  "},
				map[string]any{"name": "SMF1"},
			},
		},
	}}}
	svcs := g.ServicesOf()
	assert.Len(t, svcs, 1)
	assert.Equal(t, "SMF1", svcs[0].Name)
	assert.Equal(t, 0, svcs[0].Index, "skipped rows do not consume an index")
}

func TestServicesOf_IndexesRunAcrossAggregates(t *testing.T) {
	g := &Graph{Nodes: []Node{
		{
			Name:  "coreA",
			Kind:  KindCore5G,
			Props: Props{"UPF_configs": []any{map[string]any{"name": "UPF1"}}},
		},
		{
			Name:  "coreB",
			Kind:  KindCore5G,
			Props: Props{"UPF_configs": []any{map[string]any{"name": "UPF9"}}},
		},
	}}
	svcs := g.ServicesOf()
	assert.Len(t, svcs, 2)
	assert.Equal(t, "upf.yaml", svcs[0].ConfigFile)
	assert.Equal(t, "upf_2.yaml", svcs[1].ConfigFile, "numbering continues instead of restarting per aggregate")
	assert.Equal(t, "coreB", svcs[1].Owner)
}

func TestDefaultConfigFile(t *testing.T) {
	assert.Equal(t, "nrf.yaml", DefaultConfigFile(SvcNRF, 0))
	assert.Equal(t, "nrf_2.yaml", DefaultConfigFile(SvcNRF, 1))
	assert.Equal(t, "nrf_3.yaml", DefaultConfigFile(SvcNRF, 2))
}
