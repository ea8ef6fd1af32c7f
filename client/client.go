// Package client calls operations of a remote SOAP service. Endpoints come
// from a registry and a balancer picks one per call.
//
//	c := client.NewClient(reg, &loadbalance.RoundRobinBalancer{}, "Arith", "https://soap.example.org/arith")
//	sum, err := c.Call(ctx, "add", message.Int,
//		message.Arg{Name: "a", Value: message.IntValue(2)},
//		message.Arg{Name: "b", Value: message.IntValue(3)})
package client

import (
	"context"
	"fmt"
	"net/http"

	"mini-soap/codec"
	"mini-soap/loadbalance"
	"mini-soap/message"
	"mini-soap/registry"
	"mini-soap/transport"
)

type Client struct {
	registry  registry.Registry
	balancer  loadbalance.Balancer
	transport *transport.HTTPTransport
	codec     codec.Codec
	service   string
	namespace string
}

// Option configures a Client.
type Option func(*Client)

// WithCodec selects the envelope format. The default is SOAP XML.
func WithCodec(t codec.CodecType) Option {
	return func(c *Client) { c.codec = codec.GetCodec(t, c.namespace) }
}

// WithHTTPClient sets the HTTP client used for every call.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.transport = transport.NewHTTPTransport(hc) }
}

// NewClient creates a client for service, whose contract uses namespace (the
// service base address).
func NewClient(reg registry.Registry, bal loadbalance.Balancer, service, namespace string, opts ...Option) *Client {
	c := &Client{
		registry:  reg,
		balancer:  bal,
		transport: transport.NewHTTPTransport(nil),
		service:   service,
		namespace: namespace,
	}
	c.codec = codec.GetCodec(codec.CodecTypeXML, namespace)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call invokes operation and decodes its result as returns. A fault answer is
// returned as a *message.Error carrying the fault kind.
func (c *Client) Call(ctx context.Context, operation string, returns message.Type, args ...message.Arg) (message.Value, error) {
	body, err := c.codec.EncodeRequest(&message.Request{Operation: operation, Args: args})
	if err != nil {
		return message.Value{}, err
	}

	instance, err := c.pick(ctx)
	if err != nil {
		return message.Value{}, err
	}

	contentType, action := transport.ContentTypeSOAP, c.namespace+"#"+operation
	if c.codec.Type() == codec.CodecTypeJSON {
		contentType, action = transport.ContentTypeJSON, ""
	}
	reply, err := c.transport.Send(ctx, instance.Addr, body, action, contentType)
	if err != nil {
		return message.Value{}, err
	}

	resp, err := c.codec.DecodeResponse(reply.Body, returns)
	if err != nil {
		if reply.Status != http.StatusOK {
			return message.Value{}, fmt.Errorf("client: %s answered HTTP %d: %w", instance.Addr, reply.Status, err)
		}
		return message.Value{}, err
	}
	if resp.Failed() {
		return message.Value{}, resp.Fault.Err()
	}
	return resp.Result, nil
}

// Describe fetches the contract document of the service.
func (c *Client) Describe(ctx context.Context) ([]byte, error) {
	instance, err := c.pick(ctx)
	if err != nil {
		return nil, err
	}
	return c.transport.FetchWSDL(ctx, instance.Addr)
}

func (c *Client) pick(ctx context.Context) (*registry.ServiceInstance, error) {
	instances, err := c.registry.Discover(ctx, c.service)
	if err != nil {
		return nil, err
	}
	instance, err := c.balancer.Pick(instances)
	if err != nil {
		return nil, fmt.Errorf("client: service %s: %w", c.service, err)
	}
	return instance, nil
}
