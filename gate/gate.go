// Package gate enforces the transport and origin policy before a request
// reaches the codec or the dispatcher.
package gate

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"mini-soap/message"
)

// Policy is fixed at startup.
type Policy struct {
	RequireSecure bool   // Reject plain-HTTP requests
	AllowedAddr   string // Only this client address may call; empty allows any
}

// Transport is what the gate knows about a request.
type Transport struct {
	Secure     bool
	RemoteAddr string // "ip" or "ip:port"
}

// Check approves or rejects a request. It is stateless and side-effect free.
// Rejections are AccessDenied errors.
func (p Policy) Check(t Transport) error {
	if p.RequireSecure && !t.Secure {
		return message.Errorf(message.AccessDenied, "secure transport (https) is required")
	}
	if p.AllowedAddr == "" {
		return nil
	}
	remote, ok := parseAddr(t.RemoteAddr)
	allowed, _ := parseAddr(p.AllowedAddr)
	if !ok || remote != allowed {
		return message.Errorf(message.AccessDenied, "address not allowed (%s)", t.RemoteAddr)
	}
	return nil
}

// Validate rejects an AllowedAddr that is not an IP address.
func (p Policy) Validate() error {
	if p.AllowedAddr == "" {
		return nil
	}
	if _, ok := parseAddr(p.AllowedAddr); !ok {
		return fmt.Errorf("gate: allowed address %q is not an IP address", p.AllowedAddr)
	}
	return nil
}

// FromRequest extracts transport metadata. X-Forwarded-Proto is honoured only
// when trustForwardedProto is set, i.e. behind a TLS-terminating proxy.
func FromRequest(r *http.Request, trustForwardedProto bool) Transport {
	secure := r.TLS != nil
	if !secure && trustForwardedProto {
		secure = strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
	}
	return Transport{Secure: secure, RemoteAddr: r.RemoteAddr}
}

// parseAddr accepts "ip" or "host:port" and unmaps IPv4-in-IPv6 addresses so
// ::ffff:10.0.0.1 and 10.0.0.1 compare equal.
func parseAddr(s string) (netip.Addr, bool) {
	s = strings.TrimSpace(s)
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	s = strings.Trim(s, "[]")
	a, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, false
	}
	return a.Unmap().WithZone(""), true
}
