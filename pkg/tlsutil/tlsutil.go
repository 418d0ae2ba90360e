// Package tlsutil builds client TLS settings for outbound HTTP, WebSocket and
// probe connections.
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/c360/dataprocessor/errors"
)

// ClientConfig holds TLS settings for outbound connections. The system CA
// bundle is always trusted; CAFiles are added to it.
type ClientConfig struct {
	CAFiles            []string `json:"ca_files,omitempty" yaml:"ca_files,omitempty"`
	InsecureSkipVerify bool     `json:"insecure_skip_verify,omitempty" yaml:"insecure_skip_verify,omitempty"` // DEV/TEST ONLY
	MinVersion         string   `json:"min_version,omitempty" yaml:"min_version,omitempty"`                   // "1.2" or "1.3"

	// Client certificate for servers that require mTLS.
	CertFile string `json:"cert_file,omitempty" yaml:"cert_file,omitempty"`
	KeyFile  string `json:"key_file,omitempty" yaml:"key_file,omitempty"`
}

// IsZero reports whether cfg leaves every setting at its default.
func (cfg ClientConfig) IsZero() bool {
	return len(cfg.CAFiles) == 0 && !cfg.InsecureSkipVerify && cfg.MinVersion == "" &&
		cfg.CertFile == "" && cfg.KeyFile == ""
}

// Validate checks the settings without touching the filesystem.
func (cfg ClientConfig) Validate() error {
	switch cfg.MinVersion {
	case "", "1.2", "1.3":
	default:
		return fmt.Errorf("tls min_version %q must be 1.2 or 1.3", cfg.MinVersion)
	}
	if (cfg.CertFile == "") != (cfg.KeyFile == "") {
		return fmt.Errorf("tls cert_file and key_file must be set together")
	}
	return nil
}

// LoadClientTLSConfig creates a tls.Config from cfg. A zero cfg yields nil so
// callers keep the Go defaults.
func LoadClientTLSConfig(cfg ClientConfig) (*tls.Config, error) {
	if cfg.IsZero() {
		return nil, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err),
			"tlsutil", "LoadClientTLSConfig", "validate TLS settings")
	}

	tlsConfig := &tls.Config{
		MinVersion: parseTLSVersion(cfg.MinVersion),
	}

	if len(cfg.CAFiles) > 0 {
		rootCAs, err := x509.SystemCertPool()
		if err != nil {
			rootCAs = x509.NewCertPool()
		}
		for _, caFile := range cfg.CAFiles {
			caPEM, err := os.ReadFile(caFile)
			if err != nil {
				return nil, errors.WrapFatal(err, "tlsutil", "LoadClientTLSConfig", fmt.Sprintf("read CA file %s", caFile))
			}
			if !rootCAs.AppendCertsFromPEM(caPEM) {
				return nil, errors.WrapFatal(
					fmt.Errorf("invalid PEM data"),
					"tlsutil",
					"LoadClientTLSConfig",
					fmt.Sprintf("parse CA certificate from %s", caFile),
				)
			}
		}
		tlsConfig.RootCAs = rootCAs
	}

	// Set only through explicit configuration.
	if cfg.InsecureSkipVerify {
		tlsConfig.InsecureSkipVerify = true
	}

	if cfg.CertFile != "" {
		clientCert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, errors.WrapFatal(err, "tlsutil", "LoadClientTLSConfig", "load client certificate")
		}
		tlsConfig.Certificates = []tls.Certificate{clientCert}
	}

	return tlsConfig, nil
}

// parseTLSVersion returns tls.VersionTLS12 for anything but "1.3".
func parseTLSVersion(version string) uint16 {
	switch version {
	case "1.3":
		return tls.VersionTLS13
	default:
		return tls.VersionTLS12
	}
}
