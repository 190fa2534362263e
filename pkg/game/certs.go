package game

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/acme/autocert"
)

// newTLSConfig builds the listener TLS configuration. Three sources, in
// order: Let's Encrypt via autocert when a domain is configured, an
// operator-provided certificate pair, else a self-signed certificate
// generated under the cert directory and reused on later starts.
func newTLSConfig(cfg *Config, logf func(string, ...any)) (*tls.Config, error) {
	if cfg.TLSDomain != "" {
		cacheDir := filepath.Join(cfg.CertDir, "autocert")
		if err := os.MkdirAll(cacheDir, 0700); err != nil {
			return nil, fmt.Errorf("tls: autocert cache: %w", err)
		}
		logf("tls: autocert enabled for %s", cfg.TLSDomain)
		m := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(cfg.TLSDomain),
			Cache:      autocert.DirCache(cacheDir),
		}
		return m.TLSConfig(), nil
	}

	if cfg.TLSCert != "" && cfg.TLSKey != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			return nil, fmt.Errorf("tls: keypair: %w", err)
		}
		logf("tls: using certificate %s", cfg.TLSCert)
		return &tls.Config{Certificates: []tls.Certificate{cert}}, nil
	}

	return selfSignedConfig(cfg.CertDir, logf)
}

// selfSignedConfig loads the generated pair from certDir, minting it on
// the first start.
func selfSignedConfig(certDir string, logf func(string, ...any)) (*tls.Config, error) {
	certPath := filepath.Join(certDir, "gaia.crt")
	keyPath := filepath.Join(certDir, "gaia.key")

	_, certErr := os.Stat(certPath)
	_, keyErr := os.Stat(keyPath)
	if certErr != nil || keyErr != nil {
		if err := mintSelfSigned(certDir, certPath, keyPath); err != nil {
			return nil, err
		}
		logf("tls: self-signed certificate written to %s", certDir)
	}

	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("tls: self-signed keypair: %w", err)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}}, nil
}

// mintSelfSigned writes a one-year localhost certificate with a fresh
// P-256 key.
func mintSelfSigned(certDir, certPath, keyPath string) error {
	if err := os.MkdirAll(certDir, 0700); err != nil {
		return fmt.Errorf("tls: cert dir: %w", err)
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("tls: generating key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("tls: generating serial: %w", err)
	}

	tmpl := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"gaia"},
			CommonName:   "localhost",
		},
		// NotBefore is backdated an hour to tolerate client clock skew.
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().AddDate(1, 0, 0),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1"), net.IPv6loopback},
	}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		return fmt.Errorf("tls: creating certificate: %w", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	if err := os.WriteFile(certPath, certPEM, 0644); err != nil {
		return fmt.Errorf("tls: writing cert: %w", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return fmt.Errorf("tls: marshaling key: %w", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	if err := os.WriteFile(keyPath, keyPEM, 0600); err != nil {
		return fmt.Errorf("tls: writing key: %w", err)
	}
	return nil
}
