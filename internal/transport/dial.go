// Package transport implements the outbound TCP/TLS dial path, the
// HTTPS CONNECT proxy tunnel, and the out-of-band break byte (§3, §4.A)
// that sit underneath the packet framing in internal/wire.
package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/http/httpproxy"
)

// DialOptions configures the outbound connection path.
type DialOptions struct {
	DialTimeout time.Duration
	KeepAlive   time.Duration

	// ProxyURL, when non-nil, routes the connection through an HTTPS
	// CONNECT tunnel (§3: "the dial path may additionally route through
	// an HTTP(S) CONNECT proxy ahead of the TCP handshake"). When nil,
	// the standard environment-derived proxy config (HTTPS_PROXY,
	// NO_PROXY) is consulted via httpproxy, matching net/http's own
	// resolution rules.
	ProxyURL *url.URL

	TLSConfig        *tls.Config // non-nil enables TLS after TCP connect
	TLSRenegotiation tls.RenegotiationSupport

	Logger *slog.Logger
}

func (o *DialOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Dial establishes a transport-layer connection to addr ("host:port"),
// optionally tunneling through an HTTPS CONNECT proxy and/or wrapping
// the result in TLS, per opts.
func Dial(ctx context.Context, addr string, opts DialOptions) (net.Conn, error) {
	proxyURL := opts.ProxyURL
	if proxyURL == nil {
		cfg := httpproxy.FromEnvironment()
		target := &url.URL{Scheme: "tcp", Host: addr}
		if resolved, err := cfg.ProxyFunc()(target); err == nil && resolved != nil {
			proxyURL = resolved
		}
	}

	dialer := &net.Dialer{Timeout: opts.DialTimeout, KeepAlive: opts.KeepAlive}

	var conn net.Conn
	var err error
	if proxyURL != nil {
		opts.logger().Debug("dialing via CONNECT proxy", "proxy", proxyURL.Host, "target", addr)
		conn, err = dialViaConnectProxy(ctx, dialer, proxyURL, addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}

	if opts.TLSConfig != nil {
		tlsConf := opts.TLSConfig.Clone()
		tlsConf.Renegotiation = opts.TLSRenegotiation
		tlsConn := tls.Client(conn, tlsConf)
		hctx := ctx
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			hctx, cancel = context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
		}
		if err := tlsConn.HandshakeContext(hctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("transport: TLS handshake with %s: %w", addr, err)
		}
		return tlsConn, nil
	}
	return conn, nil
}

// dialViaConnectProxy opens addr through proxyURL using an HTTP(S)
// CONNECT tunnel, matching the handshake net/http's own transport
// performs for forward proxies.
func dialViaConnectProxy(ctx context.Context, dialer *net.Dialer, proxyURL *url.URL, addr string) (net.Conn, error) {
	proxyAddr := proxyURL.Host
	if proxyURL.Port() == "" {
		if proxyURL.Scheme == "https" {
			proxyAddr = net.JoinHostPort(proxyURL.Hostname(), "443")
		} else {
			proxyAddr = net.JoinHostPort(proxyURL.Hostname(), "80")
		}
	}
	conn, err := dialer.DialContext(ctx, "tcp", proxyAddr)
	if err != nil {
		return nil, fmt.Errorf("dialing proxy %s: %w", proxyAddr, err)
	}

	if proxyURL.Scheme == "https" {
		conn = tls.Client(conn, &tls.Config{ServerName: proxyURL.Hostname()})
	}

	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: addr},
		Host:   addr,
		Header: make(http.Header),
	}
	if user := proxyURL.User; user != nil {
		req.Header.Set("Proxy-Authorization", "Basic "+basicAuth(user))
	}
	if err := req.Write(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("writing CONNECT request: %w", err)
	}

	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("reading CONNECT response: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		conn.Close()
		return nil, fmt.Errorf("CONNECT proxy %s refused tunnel to %s: %s", proxyAddr, addr, resp.Status)
	}
	return conn, nil
}

func basicAuth(u *url.Userinfo) string {
	pass, _ := u.Password()
	return base64.StdEncoding.EncodeToString([]byte(u.Username() + ":" + pass))
}
