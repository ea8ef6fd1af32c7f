// Package config loads the server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"

	"mini-soap/gate"
)

// Config holds every setting of soapd. The first three variables are
// mandatory; SOAP_SERVER_LIMIT_IP may be set to the empty string to accept
// any caller address.
type Config struct {
	ServerAddr  string `env:"SOAP_SERVER_ADDR,required"`
	HTTPSSecure bool   `env:"SOAP_SERVER_HTTPS_SECURE,required"`
	LimitIP     string `env:"SOAP_SERVER_LIMIT_IP,required"`

	ListenAddr          string        `env:"SOAP_LISTEN_ADDR" envDefault:":8080"`
	TLSCertFile         string        `env:"SOAP_TLS_CERT_FILE"`
	TLSKeyFile          string        `env:"SOAP_TLS_KEY_FILE"`
	TrustForwardedProto bool          `env:"SOAP_TRUST_FORWARDED_PROTO"`
	RequestTimeout      time.Duration `env:"SOAP_REQUEST_TIMEOUT" envDefault:"30s"`
	RateLimit           float64       `env:"SOAP_RATE_LIMIT"`
	RateBurst           int           `env:"SOAP_RATE_BURST"`
	MaxBodyBytes        int64         `env:"SOAP_MAX_BODY_BYTES" envDefault:"1048576"`
	EtcdEndpoints       []string      `env:"SOAP_ETCD_ENDPOINTS" envSeparator:","`
	AdvertiseAddr       string        `env:"SOAP_ADVERTISE_ADDR"`
	LogLevel            string        `env:"SOAP_LOG_LEVEL" envDefault:"info"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads and validates the configuration.
func Load() (*Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values the parser cannot.
func (c *Config) Validate() error {
	var errs []error
	if u, err := url.Parse(c.ServerAddr); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("SOAP_SERVER_ADDR %q is not an absolute URI", c.ServerAddr))
	}
	if err := c.Policy().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("SOAP_SERVER_LIMIT_IP: %w", err))
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		errs = append(errs, errors.New("SOAP_TLS_CERT_FILE and SOAP_TLS_KEY_FILE must be set together"))
	}
	if c.RequestTimeout < 0 {
		errs = append(errs, errors.New("SOAP_REQUEST_TIMEOUT must not be negative"))
	}
	if c.RateLimit < 0 || c.RateBurst < 0 {
		errs = append(errs, errors.New("SOAP_RATE_LIMIT and SOAP_RATE_BURST must not be negative"))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Policy is the access policy described by the configuration.
func (c *Config) Policy() gate.Policy {
	return gate.Policy{RequireSecure: c.HTTPSSecure, AllowedAddr: c.LimitIP}
}

// TLSEnabled reports whether soapd terminates TLS itself.
func (c *Config) TLSEnabled() bool {
	return c.TLSCertFile != ""
}

// Burst is the rate limiter bucket size, at least 1 when limiting is on.
func (c *Config) Burst() int {
	if c.RateBurst > 0 {
		return c.RateBurst
	}
	return 1
}

// Level parses SOAP_LOG_LEVEL (debug, info, warn, error).
func (c *Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("SOAP_LOG_LEVEL: %w", err)
	}
	return lvl, nil
}
