// Package transport carries encoded envelopes to a SOAP endpoint over HTTP.
//
// Connection reuse is left to the http.Client, so one HTTPTransport can be
// shared by every goroutine of a client.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultMaxResponseBytes bounds how much of a reply is read.
	DefaultMaxResponseBytes int64 = 4 << 20

	ContentTypeSOAP = "text/xml; charset=utf-8"
	ContentTypeJSON = "application/json; charset=utf-8"
)

// Reply is a raw HTTP answer. Faults arrive as non-2xx replies with a body,
// so the status alone does not make a call fail.
type Reply struct {
	Status      int
	ContentType string
	Body        []byte
}

// HTTPTransport posts envelopes and fetches contract documents.
type HTTPTransport struct {
	client           *http.Client
	maxResponseBytes int64
}

// NewHTTPTransport wraps client. A nil client gets one with a 30s timeout.
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPTransport{client: client, maxResponseBytes: DefaultMaxResponseBytes}
}

// Send POSTs body to endpoint. soapAction, when set, goes out quoted in the
// SOAPAction header.
func (t *HTTPTransport) Send(ctx context.Context, endpoint string, body []byte, soapAction, contentType string) (*Reply, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	if soapAction != "" {
		req.Header.Set("SOAPAction", `"`+soapAction+`"`)
	}
	return t.do(req)
}

// FetchWSDL retrieves the contract document served at endpoint?wsdl.
func (t *HTTPTransport) FetchWSDL(ctx context.Context, endpoint string) ([]byte, error) {
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+sep+"wsdl", nil)
	if err != nil {
		return nil, err
	}
	reply, err := t.do(req)
	if err != nil {
		return nil, err
	}
	if reply.Status != http.StatusOK {
		return nil, fmt.Errorf("transport: fetching contract document from %s: HTTP %d", endpoint, reply.Status)
	}
	return reply.Body, nil
}

func (t *HTTPTransport) do(req *http.Request) (*Reply, error) {
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxResponseBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > t.maxResponseBytes {
		return nil, fmt.Errorf("transport: response from %s exceeds %d bytes", req.URL.Redacted(), t.maxResponseBytes)
	}
	return &Reply{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}
