package contract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mini-soap/message"
)

const base = "https://soap.example.org/arith"

func noop(context.Context, Args) (message.Value, error) {
	return message.IntValue(0), nil
}

var point = message.Record("Point",
	message.Field{Name: "x", Type: message.Int},
	message.Field{Name: "y", Type: message.Int})

func TestBuild(t *testing.T) {
	c, err := NewBuilder("Arith").
		Register(
			Op("sub", message.Int, noop, Param("a", message.Int), Param("b", message.Int)),
			Op("add", message.Int, noop, Param("a", message.Int), Param("b", message.Int)).WithDoc("Adds."),
			Op("norm", message.Float, noop, Param("p", point)),
		).
		Build(base)
	require.NoError(t, err)

	assert.Equal(t, "Arith", c.Name())
	assert.Equal(t, base, c.Namespace())

	ops := c.Operations()
	require.Len(t, ops, 3)
	assert.Equal(t, "add", ops[0].Name)
	assert.Equal(t, "Adds.", ops[0].Doc)
	assert.Equal(t, "norm", ops[1].Name)

	_, ok := c.Lookup("add")
	assert.True(t, ok)
	_, ok = c.Lookup("Add")
	assert.False(t, ok, "lookup is case-sensitive")

	require.Len(t, c.Records(), 1)
	assert.Equal(t, "Point", c.Records()[0].Name)
}

func TestBuildRejects(t *testing.T) {
	cases := []struct {
		name string
		svc  string
		base string
		ops  []Operation
	}{
		{"bad service name", "1Arith", base, nil},
		{"relative base address", "Arith", "/arith", nil},
		{"duplicate operation", "Arith", base, []Operation{
			Op("add", message.Int, noop), Op("add", message.Int, noop)}},
		{"nil handler", "Arith", base, []Operation{Op("add", message.Int, nil)}},
		{"bad operation name", "Arith", base, []Operation{Op("a b", message.Int, noop)}},
		{"duplicate parameter", "Arith", base, []Operation{
			Op("add", message.Int, noop, Param("a", message.Int), Param("a", message.Int))}},
		{"untyped parameter", "Arith", base, []Operation{
			Op("add", message.Int, noop, Param("a", message.Type{}))}},
		{"no return type", "Arith", base, []Operation{Op("add", message.Type{}, noop)}},
		{"empty record", "Arith", base, []Operation{
			Op("f", message.Int, noop, Param("p", message.Record("Empty")))}},
		{"conflicting records", "Arith", base, []Operation{
			Op("f", message.Int, noop, Param("p", point)),
			Op("g", message.Int, noop, Param("p", message.Record("Point",
				message.Field{Name: "x", Type: message.Float})))}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewBuilder(tc.svc).Register(tc.ops...).Build(tc.base)
			require.Error(t, err)
			assert.ErrorIs(t, err, message.ErrRegistry)
		})
	}
}

func TestBind(t *testing.T) {
	d := OperationDescriptor{Name: "sub", Params: []ParameterDescriptor{
		Param("a", message.Int), Param("b", message.Int)}}

	assert.Equal(t, []int{1, 0}, d.Bind([]string{"b", "a"}), "by name")
	assert.Equal(t, []int{0, 1}, d.Bind([]string{"param0", "param1"}), "positional")
	assert.Equal(t, []int{0, 1}, d.Bind([]string{"a", "a"}), "repeated name falls back to position")
	assert.Equal(t, []int{0, 1, -1}, d.Bind([]string{"x", "y", "z"}))
	assert.Empty(t, d.Bind(nil))
}
