package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProps_Str(t *testing.T) {
	p := Props{
		"a": " hello ",
		"b": 42,
		"c": 3.0,
		"d": 3.5,
		"e": true,
		"f": "",
	}
	assert.Equal(t, "hello", p.Str("a", "x"))
	assert.Equal(t, "42", p.Str("b", "x"))
	assert.Equal(t, "3", p.Str("c", "x"))
	assert.Equal(t, "3.5", p.Str("d", "x"))
	assert.Equal(t, "true", p.Str("e", "x"))
	assert.Equal(t, "x", p.Str("f", "x"), "blank fields fall through to the default")
	assert.Equal(t, "x", p.Str("missing", "x"))
}

func TestProps_Int(t *testing.T) {
	p := Props{
		"a": 7,
		"b": "8",
		"c": 9.0,
		"d": "not a number",
	}
	v, err := p.Int("a", 0)
	assert.NoError(t, err)
	assert.Equal(t, 7, v)

	v, err = p.Int("b", 0)
	assert.NoError(t, err)
	assert.Equal(t, 8, v)

	v, err = p.Int("c", 0)
	assert.NoError(t, err)
	assert.Equal(t, 9, v)

	v, err = p.Int("d", 5)
	assert.Error(t, err)
	assert.Equal(t, 5, v, "coercion errors still return the default")

	v, err = p.Int("missing", 5)
	assert.NoError(t, err)
	assert.Equal(t, 5, v)
}

func TestProps_Float(t *testing.T) {
	p := Props{
		"a": 2.5,
		"b": "30",
		"c": "many",
	}
	v, err := p.Float("a", 0)
	assert.NoError(t, err)
	assert.Equal(t, 2.5, v)

	v, err = p.Float("b", 0)
	assert.NoError(t, err)
	assert.Equal(t, 30.0, v)

	_, err = p.Float("c", 0)
	assert.Error(t, err)
}

func TestProps_Bool(t *testing.T) {
	p := Props{
		"a": true,
		"b": "false",
		"c": "true",
	}
	assert.True(t, p.Bool("a", false))
	assert.False(t, p.Bool("b", true))
	assert.True(t, p.Bool("c", false))
	assert.True(t, p.Bool("missing", true))
}

func TestProps_CloneIsIndependent(t *testing.T) {
	p := Props{"k": "v"}
	q := p.Clone()
	q["k"] = "changed"
	assert.Equal(t, "v", p["k"])
}
