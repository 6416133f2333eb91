//go:build !go1.24

package tls

import (
	"crypto/tls"
)

// hybridPQCConfig falls back to classical X25519 on toolchains that predate
// hybrid ML-KEM support.
func hybridPQCConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS13,
		CurvePreferences: []tls.CurveID{
			tls.X25519,
		},
	}
}

// ClientConfig returns a TLS client config for the named server.
func ClientConfig(serverName string) *tls.Config {
	config := hybridPQCConfig()
	config.ServerName = serverName
	return config
}

// IsHybridPQCSupported always reports false on these toolchains.
func IsHybridPQCSupported() bool {
	return false
}
