package client

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mini-soap/codec"
	"mini-soap/contract"
	"mini-soap/loadbalance"
	"mini-soap/message"
	"mini-soap/registry"
	"mini-soap/server"
)

const baseAddress = "https://soap.example.org/arith"

func startServer(t *testing.T) *httptest.Server {
	t.Helper()
	c, err := contract.NewBuilder("Arith").
		Register(contract.Op("add", message.Int, func(_ context.Context, args contract.Args) (message.Value, error) {
			return message.IntValue(args.Int(0) + args.Int(1)), nil
		}, contract.Param("a", message.Int), contract.Param("b", message.Int))).
		Build(baseAddress)
	require.NoError(t, err)

	svr, err := server.NewServer(c, server.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	ts := httptest.NewServer(svr)
	t.Cleanup(ts.Close)
	return ts
}

func newClient(t *testing.T, ts *httptest.Server, opts ...Option) *Client {
	reg := registry.NewStaticRegistry("Arith", registry.ServiceInstance{Addr: ts.URL, Weight: 1})
	opts = append([]Option{WithHTTPClient(ts.Client())}, opts...)
	return NewClient(reg, &loadbalance.RoundRobinBalancer{}, "Arith", baseAddress, opts...)
}

func ab(a, b message.Value) []message.Arg {
	return []message.Arg{{Name: "a", Value: a}, {Name: "b", Value: b}}
}

func TestClientCall(t *testing.T) {
	ts := startServer(t)
	for _, ct := range []codec.CodecType{codec.CodecTypeXML, codec.CodecTypeJSON} {
		cli := newClient(t, ts, WithCodec(ct))

		v, err := cli.Call(context.Background(), "add", message.Int, ab(message.IntValue(1), message.IntValue(2))...)
		require.NoError(t, err)
		assert.Equal(t, int64(3), v.Int())

		v, err = cli.Call(context.Background(), "add", message.Int, ab(message.IntValue(10), message.IntValue(20))...)
		require.NoError(t, err)
		assert.Equal(t, int64(30), v.Int())
	}
}

func TestClientCallFault(t *testing.T) {
	ts := startServer(t)
	cli := newClient(t, ts)

	_, err := cli.Call(context.Background(), "multiply", message.Int, ab(message.IntValue(1), message.IntValue(2))...)
	require.ErrorIs(t, err, message.ErrUnknownOperation)

	_, err = cli.Call(context.Background(), "add", message.Int, ab(message.StringValue("x"), message.IntValue(2))...)
	require.ErrorIs(t, err, message.ErrTypeMismatch)
	var soapErr *message.Error
	require.ErrorAs(t, err, &soapErr)
	assert.Contains(t, soapErr.Message, "parameter a")
}

func TestClientDescribe(t *testing.T) {
	ts := startServer(t)
	doc, err := newClient(t, ts).Describe(context.Background())
	require.NoError(t, err)
	assert.Contains(t, string(doc), `<soap:address location="`+baseAddress+`"/>`)
}

func TestClientNoEndpoint(t *testing.T) {
	cli := NewClient(registry.NewStaticRegistry("Arith"), &loadbalance.RoundRobinBalancer{}, "Arith", baseAddress)
	_, err := cli.Call(context.Background(), "add", message.Int)
	require.ErrorIs(t, err, loadbalance.ErrNoInstances)
}
