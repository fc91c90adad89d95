// Package tlsconf builds the mutual-TLS client configuration for the broker
// connection from certificate material on disk.
//
// The certificate directory is expected to contain:
//
//	ca.crt                 — the broker's CA certificate
//	{user}-{device}.crt    — this device's client certificate
//	{user}-{device}.key    — this device's private key
//
// Any missing or malformed file is an error; callers treat tlsconf errors as
// fatal at startup. There is no fallback to an insecure connection.
package tlsconf

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
)

// CAFileName is the expected name of the broker CA certificate inside the
// certificate directory.
const CAFileName = "ca.crt"

// ClientCertName returns the basename (without extension) of the client
// keypair for a user/device combination: "{user}-{device}".
func ClientCertName(user, device string) string {
	return fmt.Sprintf("%s-%s", user, device)
}

// Load reads the CA certificate and the {user}-{device} keypair from certDir
// and returns a *tls.Config suitable for a mutual-TLS broker connection.
func Load(certDir, user, device string) (*tls.Config, error) {
	caPath := filepath.Join(certDir, CAFileName)
	caPEM, err := os.ReadFile(caPath)
	if err != nil {
		return nil, fmt.Errorf("tlsconf: read CA certificate: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("tlsconf: %s contains no valid certificates", caPath)
	}

	name := ClientCertName(user, device)
	certPath := filepath.Join(certDir, name+".crt")
	keyPath := filepath.Join(certDir, name+".key")
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("tlsconf: load client keypair %s: %w", name, err)
	}

	return &tls.Config{
		RootCAs:      pool,
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
