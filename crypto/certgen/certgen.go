// Package certgen generates a self-signed CA and the certificate/key pairs
// the ledger and its clients present to each other over mutual TLS.
package certgen

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

// Options configures additional Subject Alternative Names for issued certs.
type Options struct {
	ExtraIPs []net.IP // additional IP SANs (e.g. external IP)
	ExtraDNS []string // additional DNS SANs (e.g. hostname)
}

// Pair is the location of one issued certificate and its key.
type Pair struct {
	Cert string
	Key  string
}

// Bundle lists the files written by GenerateAll.
type Bundle struct {
	CACert string
	CAKey  string
	Certs  map[string]Pair // by identity name
}

type authority struct {
	cert *x509.Certificate
	key  *ecdsa.PrivateKey
}

// GenerateAll creates a CA and one certificate per name signed by it,
// writing PEM files into dir:
//
//	ca.crt, ca.key, <name>.crt, <name>.key
//
// Key files are created with 0600 permissions. Pass nil opts for
// localhost-only SANs.
func GenerateAll(dir string, names []string, opts *Options) (*Bundle, error) {
	if len(names) == 0 {
		return nil, errors.New("certgen: no identities to issue")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}

	ca, err := newAuthority()
	if err != nil {
		return nil, err
	}
	b := &Bundle{
		CACert: filepath.Join(dir, "ca.crt"),
		CAKey:  filepath.Join(dir, "ca.key"),
		Certs:  make(map[string]Pair, len(names)),
	}
	if err := writePEM(b.CACert, "CERTIFICATE", ca.cert.Raw); err != nil {
		return nil, err
	}
	if err := writeKey(b.CAKey, ca.key); err != nil {
		return nil, err
	}

	for _, name := range names {
		p := Pair{
			Cert: filepath.Join(dir, name+".crt"),
			Key:  filepath.Join(dir, name+".key"),
		}
		if err := ca.issue(name, opts, p); err != nil {
			return nil, fmt.Errorf("issue %s: %w", name, err)
		}
		b.Certs[name] = p
	}
	return b, nil
}

func newAuthority() (*authority, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate CA key: %w", err)
	}
	serial, err := randomSerial()
	if err != nil {
		return nil, err
	}
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: "tolgame CA"},
		NotBefore:             time.Now().Add(-1 * time.Hour),
		NotAfter:              time.Now().Add(10 * 365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		IsCA:                  true,
		BasicConstraintsValid: true,
		MaxPathLen:            0,
		MaxPathLenZero:        true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("create CA cert: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("parse CA cert: %w", err)
	}
	return &authority{cert: cert, key: key}, nil
}

// issue signs a certificate usable for both ends of a connection.
func (ca *authority) issue(name string, opts *Options, out Pair) error {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	serial, err := randomSerial()
	if err != nil {
		return err
	}

	ips := []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback}
	dns := []string{"localhost", name}
	if opts != nil {
		ips = append(ips, opts.ExtraIPs...)
		dns = append(dns, opts.ExtraDNS...)
	}
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: name},
		NotBefore:    time.Now().Add(-1 * time.Hour),
		NotAfter:     time.Now().Add(5 * 365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
		IPAddresses:  ips,
		DNSNames:     dns,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, ca.cert, &key.PublicKey, ca.key)
	if err != nil {
		return fmt.Errorf("create cert: %w", err)
	}
	if err := writePEM(out.Cert, "CERTIFICATE", der); err != nil {
		return err
	}
	return writeKey(out.Key, key)
}

func randomSerial() (*big.Int, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("generate serial: %w", err)
	}
	return serial, nil
}

func writeKey(path string, key *ecdsa.PrivateKey) error {
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return err
	}
	return writePEM(path, "EC PRIVATE KEY", der)
}

func writePEM(path, typ string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return pem.Encode(f, &pem.Block{Type: typ, Bytes: data})
}
