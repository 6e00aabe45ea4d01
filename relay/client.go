package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/firasghr/HeyteaDIY/apperr"
	"github.com/firasghr/HeyteaDIY/upstream"
)

// Client calls a running relay. The CLI uses it so that it goes through the
// exact same code path as the browser UI.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient returns a Client for the relay at baseURL
// (e.g. "http://localhost:5969").
func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: hc}
}

// Ping checks GET /test.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/test", "", nil)
	return err
}

// SendSMS calls POST /auth/sms/send and returns the vendor body.
func (c *Client) SendSMS(ctx context.Context, in upstream.SendSMSInput) (json.RawMessage, error) {
	return c.postJSON(ctx, "/auth/sms/send", in)
}

// LoginResult is what the CLI needs from a login.
type LoginResult struct {
	Token      string
	UserMainID string
	Raw        json.RawMessage
}

// Login calls POST /auth/sms/login and extracts the bearer token and user id.
// A 2xx answer whose vendor code is not 0 is reported as an upstream error.
func (c *Client) Login(ctx context.Context, in upstream.LoginInput) (LoginResult, error) {
	body, err := c.postJSON(ctx, "/auth/sms/login", in)
	if err != nil {
		return LoginResult{}, err
	}
	if res := upstream.ParseResult(body); !res.OK() {
		return LoginResult{Raw: body}, apperr.Upstream(res.Text(), 0, body, nil)
	}
	return LoginResult{
		Token:      upstream.ExtractToken(body),
		UserMainID: upstream.ExtractUserMainID(body),
		Raw:        body,
	}, nil
}

// Upload posts a PNG to POST /upload.
func (c *Client) Upload(ctx context.Context, png []byte, sign, timestamp, token string) (json.RawMessage, error) {
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="file"; filename="design.png"`)
	h.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("relay: upload: %w", err)
	}
	if _, err := part.Write(png); err != nil {
		return nil, fmt.Errorf("relay: upload: %w", err)
	}
	for k, v := range map[string]string{"sign": sign, "t": timestamp, "token": token} {
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("relay: upload: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("relay: upload: %w", err)
	}
	return c.do(ctx, http.MethodPost, "/upload", mw.FormDataContentType(), buf)
}

func (c *Client) postJSON(ctx context.Context, path string, v any) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("relay: encode %s: %w", path, err)
	}
	return c.do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(b))
}

// do performs one relay call. Non-2xx answers are decoded from the relay's
// error envelope into an apperr.KindUpstream error.
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("relay: create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("relay: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, defaultMaxBody))
	if err != nil {
		return nil, fmt.Errorf("relay: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeFailure(resp.StatusCode, data)
	}
	return upstream.JSONBody(data), nil
}

// decodeFailure turns a relay error envelope into an apperr. A 400 from the
// relay itself (missing fields, bad JSON) is a validation error; anything
// else is attributed to the vendor.
func decodeFailure(status int, data []byte) error {
	var env struct {
		Error   string          `json:"error"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	}
	_ = json.Unmarshal(data, &env)

	msg := env.Message
	switch {
	case env.Error != "" && msg != "":
		msg = env.Error + ": " + msg
	case env.Error != "":
		msg = env.Error
	case msg == "":
		msg = fmt.Sprintf("relay returned status %d: %s", status, http.StatusText(status))
	}
	details := env.Details
	if bytes.Equal(bytes.TrimSpace(details), []byte("null")) {
		details = nil
	}
	if status == http.StatusBadRequest && len(details) == 0 {
		return apperr.Validation(msg)
	}
	return apperr.Upstream(msg, status, details, nil)
}
