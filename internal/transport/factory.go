package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/codefionn/greenhouse/internal/config"
	"github.com/codefionn/greenhouse/internal/consts"
	"golang.org/x/net/proxy"
)

// Options configures a Factory.
type Options struct {
	// ServerTLS enables TLS on listeners when set.
	ServerTLS *tls.Config

	// ClientTLS enables TLS on dialed connections when set.
	ClientTLS *tls.Config

	// ProxyURL routes dialing through a SOCKS5 proxy (socks5://host:port).
	ProxyURL string

	// ConnectTimeout bounds Dial, including the TLS handshake.
	ConnectTimeout time.Duration
}

// Factory opens listeners and dials connections for the relay and its peers.
type Factory struct {
	opts   Options
	dialer proxy.ContextDialer
}

// NewFactory creates a factory from explicit options.
func NewFactory(opts Options) (*Factory, error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = consts.DefaultConnectTimeout
	}

	var dialer proxy.ContextDialer = &net.Dialer{Timeout: opts.ConnectTimeout}
	if opts.ProxyURL != "" {
		u, err := url.Parse(opts.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		d, err := proxy.FromURL(u, &net.Dialer{Timeout: opts.ConnectTimeout})
		if err != nil {
			return nil, fmt.Errorf("create proxy dialer: %w", err)
		}
		cd, ok := d.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("proxy dialer for %s does not support contexts", u.Scheme)
		}
		dialer = cd
	}

	return &Factory{opts: opts, dialer: dialer}, nil
}

// FromConfig builds a factory from the application configuration, loading
// the keystore when TLS is enabled.
func FromConfig(cfg *config.Config) (*Factory, error) {
	opts := Options{
		ProxyURL:       cfg.Client.ProxyURL,
		ConnectTimeout: cfg.ConnectTimeout(),
	}

	if cfg.TLS.Enabled() {
		ks, err := LoadKeystore(cfg.TLS.KeystorePath, cfg.TLS.KeystorePassword)
		if err != nil {
			return nil, err
		}
		serverName := cfg.TLS.ServerName
		if serverName == "" {
			serverName = cfg.Client.Host
		}
		opts.ServerTLS = ks.ServerConfig()
		opts.ClientTLS = ks.ClientConfig(serverName, cfg.TLS.InsecureSkipVerify)
	}

	return NewFactory(opts)
}

// TLS reports whether the factory produces TLS listeners.
func (f *Factory) TLS() bool {
	return f.opts.ServerTLS != nil
}

// Listen binds addr. Accepted connections are TLS when ServerTLS is set.
func (f *Factory) Listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	if f.opts.ServerTLS != nil {
		return tls.NewListener(ln, f.opts.ServerTLS), nil
	}
	return ln, nil
}

// Dial connects to addr and returns a line-framed connection.
func (f *Factory) Dial(ctx context.Context, addr string) (*LineConn, error) {
	ctx, cancel := context.WithTimeout(ctx, f.opts.ConnectTimeout)
	defer cancel()

	conn, err := f.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	if f.opts.ClientTLS != nil {
		tlsConfig := f.opts.ClientTLS
		if tlsConfig.ServerName == "" {
			tlsConfig = tlsConfig.Clone()
			if host, _, err := net.SplitHostPort(addr); err == nil {
				tlsConfig.ServerName = host
			}
		}
		tlsConn := tls.Client(conn, tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("tls handshake with %s: %w", addr, err)
		}
		conn = tlsConn
	}

	return NewLineConn(conn), nil
}
