package transport

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/codefionn/greenhouse/internal/securemem"
	"golang.org/x/crypto/pkcs12"
)

// ErrNoKeystore is returned when TLS is requested without a keystore path.
var ErrNoKeystore = errors.New("no keystore configured")

// Keystore is the key material loaded from a PKCS#12 file. The same file
// serves as key store for the server and trust store for clients.
type Keystore struct {
	Certificate tls.Certificate
	Roots       *x509.CertPool
}

// LoadKeystore reads a PKCS#12 keystore protected by password.
func LoadKeystore(path string, password *securemem.String) (*Keystore, error) {
	if path == "" {
		return nil, ErrNoKeystore
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keystore: %w", err)
	}
	return ParseKeystore(data, password)
}

// ParseKeystore decodes PKCS#12 data into a certificate chain and a pool
// holding every certificate of the chain.
func ParseKeystore(data []byte, password *securemem.String) (*Keystore, error) {
	var (
		blocks []*pem.Block
		err    error
	)
	password.WithString(func(pw string) {
		blocks, err = pkcs12.ToPEM(data, pw)
	})
	if err != nil {
		return nil, fmt.Errorf("decode keystore: %w", err)
	}

	var certPEM, keyPEM []byte
	roots := x509.NewCertPool()
	for _, block := range blocks {
		switch block.Type {
		case "CERTIFICATE":
			certPEM = append(certPEM, pem.EncodeToMemory(block)...)
			if cert, err := x509.ParseCertificate(block.Bytes); err == nil {
				roots.AddCert(cert)
			}
		case "PRIVATE KEY":
			keyPEM = pem.EncodeToMemory(block)
		}
	}
	if len(certPEM) == 0 || len(keyPEM) == 0 {
		return nil, errors.New("decode keystore: certificate or private key missing")
	}
	defer securemem.Wipe(keyPEM)

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("load key pair: %w", err)
	}
	return &Keystore{Certificate: cert, Roots: roots}, nil
}

// ServerConfig returns the TLS configuration for the relay listener.
func (k *Keystore) ServerConfig() *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{k.Certificate},
		MinVersion:   tls.VersionTLS12,
	}
}

// ClientConfig returns the TLS configuration for peer clients, trusting
// the keystore's certificates.
func (k *Keystore) ClientConfig(serverName string, insecureSkipVerify bool) *tls.Config {
	return &tls.Config{
		RootCAs:            k.Roots,
		ServerName:         serverName,
		InsecureSkipVerify: insecureSkipVerify,
		MinVersion:         tls.VersionTLS12,
	}
}
