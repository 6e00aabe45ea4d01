package client

import (
	"net/http"
	"time"

	"golang.org/x/net/http2"

	utls "github.com/refraction-networking/utls"
)

// HTTP/2 settings a Chrome client advertises.
const (
	chromeH2HeaderTableSize   uint32 = 65536
	chromeH2MaxHeaderListSize uint32 = 262144
)

// H2TransportConfig groups the tunables for NewChromeH2Transport.
type H2TransportConfig struct {
	// HelloID defaults to utls.HelloChrome_Auto.
	HelloID utls.ClientHelloID

	// IdleConnTimeout defaults to 90s.
	IdleConnTimeout time.Duration

	// ReadIdleTimeout enables ping health checks when > 0.
	ReadIdleTimeout time.Duration
}

// NewChromeH2Transport returns an HTTP/2-only RoundTripper whose TLS
// handshake uses a uTLS Chrome ClientHello and whose SETTINGS frame mirrors
// Chrome's header table and header list sizes.
//
// The vendor host speaks HTTP/2; servers that only offer HTTP/1.1 cannot be
// reached through this transport.
//
// Request headers are sent as given: the relay already applies the vendor's
// ordered header set before RoundTrip.
func NewChromeH2Transport(cfg H2TransportConfig) http.RoundTripper {
	if cfg.HelloID == (utls.ClientHelloID{}) {
		cfg.HelloID = utls.HelloChrome_Auto
	}
	if cfg.IdleConnTimeout == 0 {
		cfg.IdleConnTimeout = 90 * time.Second
	}

	return &http2.Transport{
		DialTLSContext:            UTLSDialer(cfg.HelloID),
		MaxDecoderHeaderTableSize: chromeH2HeaderTableSize,
		MaxEncoderHeaderTableSize: chromeH2HeaderTableSize,
		MaxHeaderListSize:         chromeH2MaxHeaderListSize,
		IdleConnTimeout:           cfg.IdleConnTimeout,
		ReadIdleTimeout:           cfg.ReadIdleTimeout,
	}
}
