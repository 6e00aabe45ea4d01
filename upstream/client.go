// Package upstream talks to the vendor API on behalf of the relay: it builds
// the SMS and login payloads, signs and encodes DIY uploads, forwards
// arbitrary calls and normalises vendor failures into apperr.KindUpstream
// errors.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/firasghr/HeyteaDIY/apperr"
	"github.com/firasghr/HeyteaDIY/client"
	"github.com/firasghr/HeyteaDIY/config"
	"github.com/firasghr/HeyteaDIY/proxy"
	"github.com/firasghr/HeyteaDIY/signer"
)

// Vendor endpoint paths, relative to the base URL.
const (
	PathDIYUpload = "/api/service-cps/user/diy"
	PathSMSSend   = "/api/service-member/openapi/vip/user/sms/verifiyCode/send"
	PathSMSLogin  = "/api/service-login/openapi/vip/user/login_v1"
)

// Default DIY canvas dimensions.
const (
	DefaultWidth  = "596"
	DefaultHeight = "832"
)

// Response is a buffered vendor response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Request is one call to the vendor.
type Request struct {
	Method string
	// Path is appended to the base URL verbatim and may carry a query.
	Path   string
	Query  url.Values
	Header *client.OrderedHeader
	Body   io.Reader
}

// Client calls the vendor API. It is safe for concurrent use; nothing in it
// changes after construction.
type Client struct {
	baseURL string
	http    *http.Client
	cipher  *signer.MobileCipher
	consts  Constants
}

// New assembles a Client from its parts.
func New(baseURL string, httpClient *http.Client, cipher *signer.MobileCipher, consts Constants) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		cipher:  cipher,
		consts:  consts,
	}
}

// FromConfig builds the HTTP client and mobile cipher described by cfg. A
// bad AES key or IV surfaces here, at startup, as a configuration error.
func FromConfig(cfg *config.Config) (*Client, error) {
	cipher, err := signer.NewMobileCipher(cfg.AESKey, cfg.AESIV)
	if err != nil {
		return nil, err
	}
	opts := client.Options{
		Proxy:       cfg.OutboundProxy,
		Timeout:     cfg.Timeout(),
		Fingerprint: cfg.TLSFingerprint,
	}
	if cfg.OutboundProxyFile != "" {
		rot, err := proxy.Load(cfg.OutboundProxyFile)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindConfiguration, err.Error(), err)
		}
		opts.ProxyFunc = rot.ProxyFunc()
	}
	hc, err := client.New(opts)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfiguration, err.Error(), err)
	}
	return New(cfg.UpstreamBaseURL, hc, cipher, Constants{
		AreaCode:     cfg.AreaCode,
		ClientSource: cfg.ClientSource,
		BrandID:      cfg.BrandID,
		Channel:      cfg.Channel,
		TicketFrom:   cfg.TicketFrom,
	}), nil
}

// Constants returns the app identifiers this client sends.
func (c *Client) Constants() Constants { return c.consts }

// EncryptMobile encrypts mobile with the configured cipher.
func (c *Client) EncryptMobile(mobile string) string { return c.cipher.Encrypt(mobile) }

// Do sends r and buffers the response.
//
// A 2xx answer returns (resp, nil). Any other status returns the buffered
// response together with a KindUpstream error carrying the status and body.
// When no response arrives at all the error has Status 0 and resp is nil.
// Do never retries.
func (c *Client) Do(ctx context.Context, r Request) (*Response, error) {
	method := r.Method
	if method == "" {
		method = http.MethodPost
	}
	target, err := c.resolve(r.Path)
	if err != nil {
		return nil, err
	}
	if len(r.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + r.Query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), target, r.Body)
	if err != nil {
		return nil, apperr.Upstream(err.Error(), 0, nil, err)
	}
	if r.Header != nil {
		r.Header.ApplyToRequest(req)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.Upstream(err.Error(), 0, nil, err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return nil, unreadable(resp.StatusCode, err)
	}
	out := &Response{Status: resp.StatusCode, Header: resp.Header, Body: body}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var details []byte
		if len(body) > 0 {
			details = JSONBody(body)
		}
		return out, apperr.Upstream(
			fmt.Sprintf("Request failed with status code %d", resp.StatusCode),
			resp.StatusCode, details, nil)
	}
	return out, nil
}

// resolve joins path onto the base URL. Paths must be absolute and the
// result must stay on the vendor's scheme and host; "@other/x" or
// ".evil.com/x" would otherwise rewrite the authority.
func (c *Client) resolve(path string) (string, error) {
	if !strings.HasPrefix(path, "/") {
		return "", apperr.Validation(fmt.Sprintf("url %q must start with /", path))
	}
	target := c.baseURL + path
	u, err := url.Parse(target)
	if err != nil {
		return "", apperr.Wrap(apperr.KindValidation, fmt.Sprintf("url %q is not a valid path", path), err)
	}
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", apperr.Wrap(apperr.KindConfiguration, fmt.Sprintf("base url %q", c.baseURL), err)
	}
	if u.Scheme != base.Scheme || u.Host != base.Host {
		return "", apperr.Validation(fmt.Sprintf("url %q leaves the vendor host", path))
	}
	return target, nil
}

// unreadable reports a vendor answer whose body could not be decoded. A
// failure status is kept, with null details; a 2xx becomes 502 because
// there is nothing to mirror.
func unreadable(status int, err error) error {
	if status >= 200 && status < 300 {
		return apperr.Upstream(err.Error(), http.StatusBadGateway, nil, err)
	}
	return apperr.Upstream(fmt.Sprintf("Request failed with status code %d", status), status, nil, err)
}

// ForwardRequest is the generic passthrough call accepted by the relay's
// /api endpoint.
type ForwardRequest struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Params  map[string]any    `json:"params"`
	Body    json.RawMessage   `json:"body"`
}

// Forward issues req.Method (default POST) against base+req.URL with the
// caller's headers only. Params become the query string; Body is sent as
// JSON for every method except GET and HEAD (an absent body is sent as {}).
func (c *Client) Forward(ctx context.Context, req ForwardRequest) (*Response, error) {
	if req.URL == "" {
		return nil, apperr.Validation("Provide the HeyTea API path.")
	}
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodPost
	}

	h := &client.OrderedHeader{}
	h.Merge(req.Headers)

	var body io.Reader
	if method != http.MethodGet && method != http.MethodHead {
		raw := req.Body
		if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			raw = json.RawMessage("{}")
		}
		body = bytes.NewReader(raw)
		if h.Get("Content-Type") == "" {
			h.Set("Content-Type", "application/json")
		}
	}

	query, err := encodeParams(req.Params)
	if err != nil {
		return nil, apperr.Validation(err.Error())
	}
	return c.Do(ctx, Request{Method: method, Path: req.URL, Query: query, Header: h, Body: body})
}

// encodeParams flattens params the way browser HTTP clients do: scalars as
// text, arrays as repeated "key[]" entries, objects as JSON, nulls skipped.
func encodeParams(params map[string]any) (url.Values, error) {
	q := url.Values{}
	for k, v := range params {
		switch val := v.(type) {
		case nil:
		case []any:
			for _, item := range val {
				s, err := paramText(item)
				if err != nil {
					return nil, fmt.Errorf("param %q: %w", k, err)
				}
				q.Add(k+"[]", s)
			}
		default:
			s, err := paramText(val)
			if err != nil {
				return nil, fmt.Errorf("param %q: %w", k, err)
			}
			q.Add(k, s)
		}
	}
	return q, nil
}

func paramText(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case bool, float64, int, int64, json.Number:
		return fmt.Sprint(val), nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}

// SendSMS requests a verification code for in.Mobile. The returned payload
// is the exact body that was (or would have been) sent, for logging by the
// caller; it never contains the plain mobile.
func (c *Client) SendSMS(ctx context.Context, in SendSMSInput) (*Response, map[string]any, error) {
	if in.Mobile == "" {
		return nil, nil, apperr.Validation("Provide a phone number")
	}
	payload, err := c.consts.SendSMSPayload(in, c.cipher.Encrypt(in.Mobile))
	if err != nil {
		return nil, nil, err
	}
	resp, err := c.postJSON(ctx, PathSMSSend, payload)
	return resp, payload, err
}

// Login exchanges a verification code for a session token.
func (c *Client) Login(ctx context.Context, in LoginInput) (*Response, map[string]any, error) {
	if in.Mobile == "" || in.Code == "" {
		return nil, nil, apperr.Validation("Provide a phone number and verification code")
	}
	payload, err := c.consts.LoginPayload(in, c.cipher.Encrypt(in.Mobile))
	if err != nil {
		return nil, nil, err
	}
	resp, err := c.postJSON(ctx, PathSMSLogin, payload)
	return resp, payload, err
}

func (c *Client) postJSON(ctx context.Context, path string, payload map[string]any) (*Response, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "payload is not JSON encodable", err)
	}
	return c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   path,
		Header: signer.BuildHeaders(nil),
		Body:   bytes.NewReader(b),
	})
}

// UploadInput is a signed DIY upload.
type UploadInput struct {
	File        []byte
	ContentType string // defaults to image/png
	Width       string // defaults to DefaultWidth
	Height      string // defaults to DefaultHeight
	Sign        string
	Timestamp   string
	Token       string
}

// ErrMissingUploadFields is the message of the validation error returned
// when any required upload field is absent.
const ErrMissingUploadFields = "Missing file, sign, timestamp, or token"

// Validate checks the required fields without touching the network.
func (in UploadInput) Validate() error {
	if len(in.File) == 0 || in.Sign == "" || in.Timestamp == "" || in.Token == "" {
		return apperr.Validation(ErrMissingUploadFields)
	}
	return nil
}

// UploadDIY posts the design as multipart/form-data to the DIY endpoint,
// authenticated with the bearer-normalised token.
func (c *Client) UploadDIY(ctx context.Context, in UploadInput) (*Response, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	body, contentType, err := encodeUpload(in)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "encode upload form", err)
	}

	h := &client.OrderedHeader{}
	h.Add("Authorization", NormalizeBearer(in.Token))
	h.Add("Content-Type", contentType)

	return c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   PathDIYUpload,
		Query:  url.Values{"sign": {in.Sign}, "t": {in.Timestamp}},
		Header: h,
		Body:   body,
	})
}

func encodeUpload(in UploadInput) (*bytes.Buffer, string, error) {
	ct := in.ContentType
	if ct == "" {
		ct = "image/png"
	}
	width, height := in.Width, in.Height
	if width == "" {
		width = DefaultWidth
	}
	if height == "" {
		height = DefaultHeight
	}

	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)

	part := textproto.MIMEHeader{}
	part.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s.png"`, in.Timestamp))
	part.Set("Content-Type", ct)
	w, err := mw.CreatePart(part)
	if err != nil {
		return nil, "", err
	}
	if _, err := w.Write(in.File); err != nil {
		return nil, "", err
	}
	if err := mw.WriteField("width", width); err != nil {
		return nil, "", err
	}
	if err := mw.WriteField("height", height); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf, mw.FormDataContentType(), nil
}
