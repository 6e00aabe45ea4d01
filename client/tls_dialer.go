package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"

	utls "github.com/refraction-networking/utls"
)

// dialTLSFunc matches http2.Transport.DialTLSContext.
type dialTLSFunc func(ctx context.Context, network, addr string, cfg *tls.Config) (net.Conn, error)

// UTLSDialer returns a dialer that performs the TLS handshake with uTLS,
// presenting the ClientHello described by helloID instead of Go's own.
//
// The SNI is taken from cfg.ServerName when set, otherwise from addr. Only
// ServerName and InsecureSkipVerify are read from cfg; everything else is
// dictated by the ClientHello spec.
func UTLSDialer(helloID utls.ClientHelloID) dialTLSFunc {
	return func(ctx context.Context, network, addr string, cfg *tls.Config) (net.Conn, error) {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("utls dialer: parse addr %q: %w", addr, err)
		}
		sni := host
		if cfg != nil && cfg.ServerName != "" {
			sni = cfg.ServerName
		}

		var d net.Dialer
		raw, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, fmt.Errorf("utls dialer: dial %s: %w", addr, err)
		}

		uConn := utls.UClient(raw, &utls.Config{
			ServerName:         sni,
			InsecureSkipVerify: cfg != nil && cfg.InsecureSkipVerify, // #nosec G402 – caller-controlled
		}, helloID)

		if spec, ok := helloSpec(helloID); ok {
			if err := uConn.ApplyPreset(&spec); err != nil {
				_ = raw.Close()
				return nil, fmt.Errorf("utls dialer: apply preset for %s: %w", helloID.Str(), err)
			}
		}

		if err := uConn.HandshakeContext(ctx); err != nil {
			_ = uConn.Close()
			return nil, fmt.Errorf("utls dialer: TLS handshake with %s: %w", addr, err)
		}
		return uConn, nil
	}
}

// helloSpec resolves the parrot spec for the Chrome IDs we pin. For any
// other ID uTLS builds the spec itself during the handshake.
func helloSpec(helloID utls.ClientHelloID) (utls.ClientHelloSpec, bool) {
	switch helloID {
	case utls.HelloChrome_120, utls.HelloChrome_131, utls.HelloChrome_Auto:
		spec, err := utls.UTLSIdToSpec(helloID)
		if err == nil {
			return spec, true
		}
	}
	return utls.ClientHelloSpec{}, false
}
