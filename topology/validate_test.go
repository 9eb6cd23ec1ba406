package topology

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameValidator_Valid(t *testing.T) {
	assert.NoError(t, NameValidator("h1"))
	assert.NoError(t, NameValidator("AP 2"))
	assert.NoError(t, NameValidator("core_5g-main.v2"))
}

func TestNameValidator_Invalid(t *testing.T) {
	assert.Error(t, NameValidator(""))
	assert.Error(t, NameValidator(" leading"))
	assert.Error(t, NameValidator("-leading"))
	assert.Error(t, NameValidator("a\tb"))
	assert.Error(t, NameValidator(strings.Repeat("a", 200)))
}

func TestValidate_CleanGraph(t *testing.T) {
	g := &Graph{
		Nodes: []Node{
			{Name: "s1", Kind: KindSwitch},
			{Name: "h1", Kind: KindHost},
		},
		Links: []Link{{From: "s1", To: "h1"}},
	}
	assert.Empty(t, Validate(g))
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	g := &Graph{
		Nodes: []Node{
			{Name: "h1", Kind: KindHost},
			{Name: "h1", Kind: KindHost},
			{Name: "x1", Kind: Kind("Teapot")},
			{Name: "", Kind: KindHost},
		},
		Links: []Link{{From: "h1", To: "ghost"}},
	}
	errs := Validate(g)
	assert.Len(t, errs, 4, "one pass should surface the duplicate, the bad kind, the bad name and the dangling link")
}

func TestValidate_DanglingLinkBothEnds(t *testing.T) {
	g := &Graph{
		Nodes: []Node{{Name: "h1", Kind: KindHost}},
		Links: []Link{{From: "nope", To: "alsono"}},
	}
	errs := Validate(g)
	assert.Len(t, errs, 2)
	for _, err := range errs {
		var ge *GraphError
		assert.ErrorAs(t, err, &ge)
	}
}
