// Package server exposes a contract over HTTP: the Access Gate runs first,
// then the contract document is served for GET ?wsdl and POSTed envelopes go
// through the codec, the middleware chain and the Dispatcher.
//
// Request processing pipeline:
//
//	ServeHTTP → gate.Check → Codec.DecodeRequest
//	  → Middleware Chain → Dispatcher.Handle → Codec.Encode → write response
//
// Every path, including panics, ends in a well-formed envelope.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"mini-soap/codec"
	"mini-soap/contract"
	"mini-soap/gate"
	"mini-soap/message"
	"mini-soap/middleware"
	"mini-soap/registry"
	"mini-soap/wsdl"
)

const (
	DefaultMaxBodyBytes int64 = 1 << 20

	// DefaultRegistryTTL is the lease, in seconds, of the endpoint entry.
	DefaultRegistryTTL int64 = 10

	headerRequestID = "X-Request-Id"
)

// Server is an http.Handler serving one contract.
type Server struct {
	contract   *contract.Contract
	dispatcher *Dispatcher
	document   []byte

	policy              gate.Policy
	trustForwardedProto bool
	maxBodyBytes        int64
	tlsConfig           *tls.Config
	logger              *slog.Logger

	middlewares []middleware.Middleware
	chainOnce   sync.Once
	handler     middleware.HandlerFunc

	mu            sync.Mutex
	httpSrv       *http.Server
	registry      registry.Registry
	advertiseAddr string
	closed        bool
}

// Option configures a Server.
type Option func(*Server)

// WithPolicy sets the access policy checked before anything else.
func WithPolicy(p gate.Policy) Option {
	return func(s *Server) { s.policy = p }
}

// WithTrustForwardedProto makes the gate honour X-Forwarded-Proto when the
// server sits behind a TLS-terminating proxy.
func WithTrustForwardedProto(trust bool) Option {
	return func(s *Server) { s.trustForwardedProto = trust }
}

// WithMaxBodyBytes limits request bodies. Non-positive values keep the default.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// WithTLS makes Serve listen with TLS.
func WithTLS(cfg *tls.Config) Option {
	return func(s *Server) { s.tlsConfig = cfg }
}

// WithLogger sets the logger for requests and the listener. A nil logger
// keeps slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer prepares a server for c. The contract document is generated here,
// once; a contract that cannot be described is a RegistryError.
func NewServer(c *contract.Contract, opts ...Option) (*Server, error) {
	s := &Server{
		contract:     c,
		dispatcher:   NewDispatcher(c),
		maxBodyBytes: DefaultMaxBodyBytes,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.policy.Validate(); err != nil {
		return nil, err
	}
	doc, err := wsdl.Generate(c)
	if err != nil {
		return nil, message.Wrap(message.RegistryError, err, "cannot generate contract document")
	}
	s.document = doc
	return s, nil
}

// Use registers a middleware. Middlewares run in the order they are added
// and must all be registered before the first request.
func (s *Server) Use(mw middleware.Middleware) {
	s.middlewares = append(s.middlewares, mw)
}

// Contract returns the served contract.
func (s *Server) Contract() *contract.Contract {
	return s.contract
}

// Document returns the cached contract document.
func (s *Server) Document() []byte {
	return s.document
}

func (s *Server) chain() middleware.HandlerFunc {
	s.chainOnce.Do(func() {
		s.handler = middleware.Chain(s.middlewares...)(s.dispatcher.Handle)
	})
	return s.handler
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := middleware.NewRequestID()
	w.Header().Set(headerRequestID, id)
	ctx := middleware.WithRequestID(r.Context(), id)
	logger := s.logger.With(slog.String("request_id", id))

	cdc := codec.ForContentType(r.Header.Get("Content-Type"), s.contract.Namespace())

	defer func() {
		if v := recover(); v != nil {
			logger.ErrorContext(ctx, "panic while serving request", slog.Any("panic", v))
			s.writeFault(w, cdc, "", message.Errorf(message.OperationFailure, "internal error"), 0)
		}
	}()

	if !s.admit(ctx, logger, w, r, cdc) {
		return
	}

	switch {
	case r.Method == http.MethodGet && wantsDocument(r):
		writeBody(w, http.StatusOK, wsdl.ContentType, s.document)
		return
	case r.Method == http.MethodGet:
		s.writeFault(w, cdc, "", message.Errorf(message.MalformedRequest,
			"GET only serves the contract document; add ?wsdl"), http.StatusBadRequest)
		return
	case r.Method != http.MethodPost:
		w.Header().Set("Allow", "GET, POST")
		s.writeFault(w, cdc, "", message.Errorf(message.MalformedRequest,
			"method %s not allowed; POST an envelope or GET ?wsdl", r.Method), http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeFault(w, cdc, "", message.Errorf(message.MalformedRequest,
				"request body exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		s.writeFault(w, cdc, "", message.Wrap(message.MalformedRequest, err, "cannot read request body"), 0)
		return
	}

	req, err := cdc.DecodeRequest(body, s.contract)
	if err != nil {
		logger.DebugContext(ctx, "cannot decode request", slog.String("error", err.Error()))
		op := ""
		if req != nil {
			op = req.Operation
		}
		s.writeFault(w, cdc, op, err, 0)
		return
	}

	resp := s.chain()(ctx, req)
	if resp == nil {
		resp = message.NewFault(req.Operation, nil)
	}
	writeBody(w, statusFor(resp.Fault, 0), cdc.ContentType(), cdc.Encode(resp))
}

// admit runs the Access Gate and answers rejected requests with a fault.
func (s *Server) admit(ctx context.Context, logger *slog.Logger, w http.ResponseWriter, r *http.Request, cdc codec.Codec) bool {
	err := s.policy.Check(gate.FromRequest(r, s.trustForwardedProto))
	if err == nil {
		return true
	}
	logger.WarnContext(ctx, "request rejected",
		slog.String("remote_addr", r.RemoteAddr), slog.String("reason", err.Error()))
	s.writeFault(w, cdc, "", err, 0)
	return false
}

// Guard puts h behind the same Access Gate as the contract, for endpoints
// such as /metrics mounted next to the server.
func (s *Server) Guard(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := s.logger.With(slog.String("path", r.URL.Path))
		cdc := codec.ForContentType(r.Header.Get("Content-Type"), s.contract.Namespace())
		if !s.admit(r.Context(), logger, w, r, cdc) {
			return
		}
		h.ServeHTTP(w, r)
	})
}

// wantsDocument matches "?wsdl" in any letter case.
func wantsDocument(r *http.Request) bool {
	for key := range r.URL.Query() {
		if strings.EqualFold(key, "wsdl") {
			return true
		}
	}
	return false
}

func (s *Server) writeFault(w http.ResponseWriter, cdc codec.Codec, op string, err error, status int) {
	resp := message.NewFault(op, err)
	writeBody(w, statusFor(resp.Fault, status), cdc.ContentType(), cdc.Encode(resp))
}

// statusFor picks the HTTP status of a reply. SOAP 1.1 sends every fault as
// 500; denied access is reported as 403 so proxies and logs can tell it apart.
func statusFor(f *message.Fault, override int) int {
	switch {
	case override != 0:
		return override
	case f == nil:
		return http.StatusOK
	case f.Kind == message.AccessDenied:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

var epoch = time.Unix(0, 0).UTC().Format(http.TimeFormat)

func writeBody(w http.ResponseWriter, status int, contentType string, body []byte) {
	h := w.Header()
	h.Set("Cache-Control", "private, must-revalidate, pre-check=0, post-check=0, max-age=0")
	h.Set("Expires", epoch)
	h.Set("Pragma", "no-cache")
	h.Set("Accept-Ranges", "none")
	h.Set("Content-Length", strconv.Itoa(len(body)))
	h.Set("Content-Type", contentType)
	if strings.HasPrefix(contentType, "application/xml") {
		h.Set("Content-Disposition", `inline; filename="response.xml"`)
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Serve listens on address and serves until Shutdown. When reg is non-nil the
// endpoint is announced under the contract name with advertiseAddr, or the
// contract base address when advertiseAddr is empty.
func (s *Server) Serve(address, advertiseAddr string, reg registry.Registry) error {
	return s.ServeHandler(address, advertiseAddr, reg, s)
}

// ServeHandler is Serve with a caller-supplied root handler, typically a mux
// mounting s next to other endpoints such as /metrics.
func (s *Server) ServeHandler(address, advertiseAddr string, reg registry.Registry, h http.Handler) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	s.chain()

	httpSrv := &http.Server{
		Handler:           h,
		TLSConfig:         s.tlsConfig,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	if advertiseAddr == "" {
		advertiseAddr = s.contract.BaseAddress()
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		listener.Close()
		return nil
	}
	s.httpSrv = httpSrv
	s.advertiseAddr = advertiseAddr
	s.registry = reg
	s.mu.Unlock()

	if reg != nil {
		err := reg.Register(context.Background(), s.contract.Name(), registry.ServiceInstance{
			Addr:   advertiseAddr,
			Weight: 10,
		}, DefaultRegistryTTL)
		if err != nil {
			listener.Close()
			return message.Wrap(message.RegistryError, err, "cannot announce endpoint")
		}
	}

	s.logger.Info("soap server listening",
		slog.String("service", s.contract.Name()),
		slog.String("listen", listener.Addr().String()),
		slog.String("endpoint", advertiseAddr),
		slog.Bool("tls", s.tlsConfig != nil))

	if s.tlsConfig != nil {
		err = httpSrv.ServeTLS(listener, "", "")
	} else {
		err = httpSrv.Serve(listener)
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown performs graceful shutdown:
//  1. Deregister the endpoint so clients stop routing here
//  2. Stop accepting connections
//  3. Wait for in-flight requests, up to timeout
func (s *Server) Shutdown(timeout time.Duration) error {
	s.mu.Lock()
	s.closed = true
	httpSrv, reg, addr := s.httpSrv, s.registry, s.advertiseAddr
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if reg != nil {
		if err := reg.Deregister(ctx, s.contract.Name(), addr); err != nil {
			errs = append(errs, fmt.Errorf("deregister: %w", err))
		}
	}
	if httpSrv != nil {
		if err := httpSrv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("timeout waiting for ongoing requests to finish: %w", err))
		}
	}
	return errors.Join(errs...)
}
