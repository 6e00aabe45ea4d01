package upstream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// maxBodyBytes caps how much of a vendor response is buffered.
const maxBodyBytes = 32 << 20

// readBody buffers resp.Body and undoes any Content-Encoding the transport
// left in place. net/http only decompresses transparently when it chose the
// Accept-Encoding itself; the vendor header set pins "gzip", so decoding
// happens here.
func readBody(resp *http.Response) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("upstream: read body: %w", err)
	}
	return decodeBody(resp.Header.Get("Content-Encoding"), raw)
}

func decodeBody(encoding string, raw []byte) ([]byte, error) {
	var r io.Reader
	switch enc := strings.ToLower(strings.TrimSpace(encoding)); enc {
	case "", "identity":
		return raw, nil
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("upstream: gzip body: %w", err)
		}
		defer zr.Close()
		r = zr
	case "br":
		r = brotli.NewReader(bytes.NewReader(raw))
	case "deflate":
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("upstream: deflate body: %w", err)
		}
		defer zr.Close()
		r = zr
	default:
		return nil, fmt.Errorf("upstream: unsupported content encoding %q", enc)
	}
	b, err := io.ReadAll(io.LimitReader(r, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("upstream: decode %s body: %w", encoding, err)
	}
	return b, nil
}

// JSONBody returns body as a JSON value suitable for mirroring: valid JSON is
// passed through unchanged, anything else is wrapped as a JSON string.
func JSONBody(body []byte) json.RawMessage {
	if len(body) > 0 && json.Valid(body) {
		return json.RawMessage(body)
	}
	s, _ := json.Marshal(string(body))
	return json.RawMessage(s)
}
