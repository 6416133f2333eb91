//go:build go1.24

// Package tls builds the TLS client configuration used for collector
// connections (spec.md §4.6), preferring a hybrid post-quantum curve when
// the guest's Go runtime supports it.
package tls

import (
	"crypto/tls"
)

// hybridPQCConfig returns a TLS config that prefers X25519MLKEM768 (X25519 +
// ML-KEM-768 hybrid key exchange, RFC 9180 / NIST SP 800-227) and falls back
// to classical X25519 against peers that don't support it.
func hybridPQCConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS13,
		CurvePreferences: []tls.CurveID{
			tls.X25519MLKEM768,
			tls.X25519,
		},
	}
}

// ClientConfig returns a TLS client config for the named server, preferring
// hybrid post-quantum key exchange.
func ClientConfig(serverName string) *tls.Config {
	config := hybridPQCConfig()
	config.ServerName = serverName
	return config
}

// IsHybridPQCSupported reports whether the running Go toolchain supports
// X25519MLKEM768.
func IsHybridPQCSupported() bool {
	return tls.X25519MLKEM768 != 0
}
