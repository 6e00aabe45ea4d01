// Package client builds the HTTP client the relay uses to reach the vendor
// API, and the ordered header set the vendor's mobile app sends.
package client

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// FingerprintChrome selects the uTLS Chrome ClientHello over HTTP/2.
const FingerprintChrome = "chrome"

// Options configures New.
type Options struct {
	// Proxy is an optional outbound proxy URL, e.g. "http://host:port".
	Proxy string

	// ProxyFunc, when set, picks the proxy per request and takes precedence
	// over Proxy. See proxy.Rotator.ProxyFunc.
	ProxyFunc func(*http.Request) (*url.URL, error)

	// Timeout is the end-to-end request timeout (http.Client.Timeout).
	Timeout time.Duration

	// Fingerprint is "" for the Go TLS stack or FingerprintChrome.
	Fingerprint string
}

// New constructs the *http.Client used for every vendor call. The client is
// safe for concurrent use by all relay handlers.
//
// The client carries no cookie jar: the relay forwards calls for whoever
// is driving the UI, and vendor cookies must not leak from one caller to
// the next.
//
// Redirects are followed with the default policy, as the vendor's mobile
// app does.
func New(opts Options) (*http.Client, error) {
	var rt http.RoundTripper
	switch opts.Fingerprint {
	case "":
		t, err := buildTransport(opts.Proxy)
		if err != nil {
			return nil, err
		}
		if opts.ProxyFunc != nil {
			t.Proxy = opts.ProxyFunc
		}
		rt = t
	case FingerprintChrome:
		if opts.Proxy != "" || opts.ProxyFunc != nil {
			return nil, errors.New("client: outbound proxy is not supported with the chrome fingerprint")
		}
		rt = NewChromeH2Transport(H2TransportConfig{})
	default:
		return nil, fmt.Errorf("client: unknown fingerprint %q", opts.Fingerprint)
	}

	return &http.Client{
		Transport: rt,
		Timeout:   opts.Timeout,
	}, nil
}

// buildTransport creates an *http.Transport sized for a single upstream
// host. If proxy is non-empty it is parsed and attached to the transport.
func buildTransport(proxy string) (*http.Transport, error) {
	t := &http.Transport{
		// Everything goes to one vendor host; a handful of idle
		// connections is plenty for one UI user.
		MaxIdleConns:        16,
		MaxIdleConnsPerHost: 16,

		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		// Honour HTTPS_PROXY & co. unless an explicit proxy is configured.
		Proxy:             http.ProxyFromEnvironment,
		ForceAttemptHTTP2: true,
	}

	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("client: parse proxy URL %q: %w", proxy, err)
		}
		if proxyURL.Scheme == "" || proxyURL.Host == "" {
			return nil, fmt.Errorf("client: proxy URL %q needs a scheme and host", proxy)
		}
		t.Proxy = http.ProxyURL(proxyURL)
	}

	return t, nil
}
