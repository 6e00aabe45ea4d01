package client_test

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	utls "github.com/refraction-networking/utls"

	"github.com/firasghr/HeyteaDIY/client"
)

func TestUTLSDialer_NotNil(t *testing.T) {
	for _, id := range []utls.ClientHelloID{utls.HelloChrome_120, utls.HelloChrome_131, utls.HelloChrome_Auto} {
		if d := client.UTLSDialer(id); d == nil {
			t.Errorf("UTLSDialer returned nil for %s", id.Str())
		}
	}
}

func TestUTLSDialer_BadAddr(t *testing.T) {
	d := client.UTLSDialer(utls.HelloChrome_Auto)
	if _, err := d(context.Background(), "tcp", "no-port", nil); err == nil {
		t.Error("expected error for address without port")
	}
}

// TestUTLSDialer_HandshakeWithTLS13Server checks the uTLS hello negotiates
// TLS 1.3 against a stock Go server.
func TestUTLSDialer_HandshakeWithTLS13Server(t *testing.T) {
	stateCh := make(chan tls.ConnectionState, 1)
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.TLS != nil {
			select {
			case stateCh <- *r.TLS:
			default:
			}
		}
	}))
	srv.EnableHTTP2 = true
	srv.StartTLS()
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	d := client.UTLSDialer(utls.HelloChrome_Auto)
	conn, err := d(ctx, "tcp", srv.Listener.Addr().String(), &tls.Config{ServerName: "example.com", InsecureSkipVerify: true}) // #nosec G402 – test only
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	uc, ok := conn.(*utls.UConn)
	if !ok {
		t.Fatalf("expected *utls.UConn, got %T", conn)
	}
	if v := uc.ConnectionState().Version; v != tls.VersionTLS13 {
		t.Errorf("negotiated version 0x%x, want TLS 1.3", v)
	}
}

func TestNew_Plain(t *testing.T) {
	c, err := client.New(client.Options{Timeout: 20 * time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Timeout != 20*time.Second {
		t.Errorf("Timeout: got %v, want 20s", c.Timeout)
	}
	if c.Jar != nil {
		t.Error("relay client must not carry a cookie jar")
	}
}

func TestNew_Chrome(t *testing.T) {
	c, err := client.New(client.Options{Timeout: time.Second, Fingerprint: client.FingerprintChrome})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Transport == nil {
		t.Error("expected a fingerprinted transport")
	}
}

func TestNew_Rejects(t *testing.T) {
	cases := map[string]client.Options{
		"bad proxy":           {Proxy: "://bad-proxy"},
		"proxy without host":  {Proxy: "localhost"},
		"chrome with proxy":   {Proxy: "http://p:1", Fingerprint: client.FingerprintChrome},
		"chrome with rotator": {ProxyFunc: http.ProxyFromEnvironment, Fingerprint: client.FingerprintChrome},
		"unknown fingerprint": {Fingerprint: "netscape"},
	}
	for name, opts := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := client.New(opts); err == nil {
				t.Error("expected error")
			}
		})
	}
}
