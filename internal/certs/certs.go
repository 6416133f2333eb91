// Package certs populates a TLS trust store for the HTTPS client (spec.md
// §4.6), grounded on pkg/crypto/tls's config-construction style: small,
// pure functions returning a ready-to-use *tls.Config (or *x509.CertPool
// here), no global mutable state beyond what the caller chooses to cache.
package certs

import (
	"crypto/x509"
	_ "embed"
	"os"

	"github.com/Mindburn-Labs/treblle-http-wasm/internal/errs"
)

//go:embed roots.pem
var builtinRoots []byte

// BuiltinPool returns a fresh pool seeded from the guest's embedded
// fallback root set.
func BuiltinPool() *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(builtinRoots)
	return pool
}

// Load builds the trust store used for collector connections. If path is
// non-empty, it is read from the WASI-preopened filesystem and every
// PEM-encoded certificate in it is added to the pool. Any failure — open,
// parse, an empty/all-comment file that yields zero certificates, or a
// pool that ends up with nothing added — logs (via the returned error) and
// falls back to the built-in set (spec.md §4.6). If path is empty, the
// built-in set is used unconditionally.
func Load(path string, readFile func(string) ([]byte, error)) (*x509.CertPool, *errs.Error) {
	if path == "" {
		return BuiltinPool(), nil
	}
	if readFile == nil {
		readFile = os.ReadFile
	}

	data, err := readFile(path)
	if err != nil {
		return BuiltinPool(), errs.Wrap(errs.KindCertificate, "failed to read root_ca_path, falling back to built-in roots", err)
	}

	pool := x509.NewCertPool()
	ok := pool.AppendCertsFromPEM(data)
	if !ok {
		return BuiltinPool(), errs.New(errs.KindCertificate, "root_ca_path contained no usable certificates, falling back to built-in roots")
	}
	return pool, nil
}
