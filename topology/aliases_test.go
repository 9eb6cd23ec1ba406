package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_ResolvesLegacyKeys(t *testing.T) {
	p := Props{
		"lineEdit_2": "10.0.0.5",
		"spinBox":    512,
	}
	out, hits := p.Normalize(KindHost)
	assert.Equal(t, "10.0.0.5", out.Str("Host_IPAddress", ""))
	v, err := out.Int("Host_Memory", 0)
	assert.NoError(t, err)
	assert.Equal(t, 512, v)
	assert.ElementsMatch(t, hits, []AliasHit{
		{Canonical: "Host_IPAddress", Legacy: "lineEdit_2"},
		{Canonical: "Host_Memory", Legacy: "spinBox"},
	})
}

func TestNormalize_CanonicalWins(t *testing.T) {
	p := Props{
		"GNB_GNBHostName": "gnb-new",
		"GNB_Hostname":    "gnb-old",
	}
	out, hits := p.Normalize(KindGNB)
	assert.Equal(t, "gnb-new", out.Str("GNB_GNBHostName", ""))
	assert.Empty(t, hits)
}

func TestNormalize_FirstLegacySpellingWins(t *testing.T) {
	p := Props{
		"Router_DPID": "aa",
		"lineEdit_4":  "bb",
	}
	out, _ := p.Normalize(KindSwitch)
	assert.Equal(t, "aa", out.Str("Switch_DPID", ""))
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	p := Props{"lineEdit_2": "10.0.0.5"}
	out, _ := p.Normalize(KindHost)
	assert.NotContains(t, p, "Host_IPAddress")
	assert.Contains(t, out, "Host_IPAddress")
}

func TestNormalize_NoLegacyKeysPresent(t *testing.T) {
	p := Props{"whatever": 1}
	out, hits := p.Normalize(KindController)
	assert.Empty(t, hits)
	assert.Equal(t, 1, out["whatever"])
}
