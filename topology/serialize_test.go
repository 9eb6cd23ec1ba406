package topology

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestReadWriteRoundTrip(t *testing.T) {
	g := &Graph{
		Name: "demo",
		Nodes: []Node{
			{Name: "gnb1", Kind: KindGNB, X: 120.5, Y: 40, Props: Props{"GNB_AP_Enabled": true}},
			{Name: "ue1", Kind: KindUE, Props: Props{"UE_APN": "internet"}},
		},
		Links: []Link{{From: "gnb1", To: "ue1", Bandwidth: 100, Delay: "5ms"}},
	}
	path := filepath.Join(t.TempDir(), "topo.yaml")
	assert.NoError(t, g.WriteFile(path))

	got, err := Read(path)
	assert.NoError(t, err)
	if diff := cmp.Diff(g, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRead_BadDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topo.yaml")
	assert.NoError(t, os.WriteFile(path, []byte("nodes: {not: a list}"), 0600))
	_, err := Read(path)
	assert.Error(t, err)
}

func TestRead_MissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
