package webservice

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mini-soap/contract"
	"mini-soap/message"
)

func call(t *testing.T, name string, args ...message.Value) (message.Value, error) {
	t.Helper()
	c, err := Build("https://soap.example.org/ws")
	require.NoError(t, err)
	op, ok := c.Lookup(name)
	require.True(t, ok, "operation %s not registered", name)
	return op.Handler(context.Background(), contract.Args(args))
}

func TestBuild(t *testing.T) {
	c, err := Build("https://soap.example.org/ws")
	require.NoError(t, err)

	var names []string
	for _, op := range c.Operations() {
		names = append(names, op.Name)
	}
	assert.Equal(t, []string{"add", "describePoint", "divide", "hello", "test"}, names)
	require.Len(t, c.Records(), 1)
	assert.Equal(t, "Point", c.Records()[0].Name)
}

func TestOperations(t *testing.T) {
	v, err := call(t, "hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello world!", v.Str())

	v, err = call(t, "test", message.IntValue(5))
	require.NoError(t, err)
	assert.Equal(t, "test 5", v.Str())

	v, err = call(t, "add", message.IntValue(2), message.IntValue(3))
	require.NoError(t, err)
	assert.Equal(t, int64(5), v.Int())

	v, err = call(t, "divide", message.FloatValue(7), message.FloatValue(2))
	require.NoError(t, err)
	assert.Equal(t, 3.5, v.Float())

	v, err = call(t, "describePoint", message.RecordValue("Point",
		message.FieldValue{Name: "x", Value: message.IntValue(1)},
		message.FieldValue{Name: "y", Value: message.IntValue(-2)}))
	require.NoError(t, err)
	assert.Equal(t, "(1, -2)", v.Str())
}

func TestDivideByZero(t *testing.T) {
	_, err := call(t, "divide", message.FloatValue(1), message.FloatValue(0))
	require.ErrorIs(t, err, message.ErrOperationFailure)
	assert.ErrorIs(t, err, ErrDivisionByZero)
}
