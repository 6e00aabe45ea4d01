package upstream

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// NormalizeBearer prefixes value with "Bearer " unless it already starts
// with "Bearer". Empty input stays empty.
func NormalizeBearer(value string) string {
	if value == "" {
		return ""
	}
	if strings.HasPrefix(value, "Bearer") {
		return value
	}
	return "Bearer " + value
}

// ExtractToken pulls the access token out of a login response body and
// returns it in bearer form. Candidates, in order: data.token,
// data.accessToken, token, accessToken. Only non-empty strings count.
func ExtractToken(body []byte) string {
	root, data := splitEnvelope(body)
	for _, v := range []any{data["token"], data["accessToken"], root["token"], root["accessToken"]} {
		if s, ok := v.(string); ok && s != "" {
			return NormalizeBearer(s)
		}
	}
	return ""
}

// ExtractUserMainID pulls the user id needed for upload signatures out of a
// login response body. Candidates, in order: data.user_main_id,
// data.userMainId, user_main_id, userMainId. Strings and numbers count.
func ExtractUserMainID(body []byte) string {
	root, data := splitEnvelope(body)
	for _, v := range []any{data["user_main_id"], data["userMainId"], root["user_main_id"], root["userMainId"]} {
		switch id := v.(type) {
		case string:
			return id
		case json.Number:
			return id.String()
		case float64:
			return strconv.FormatFloat(id, 'f', -1, 64)
		}
	}
	return ""
}

func splitEnvelope(body []byte) (root, data map[string]any) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber() // user ids exceed float64 precision
	if err := dec.Decode(&root); err != nil || root == nil {
		return map[string]any{}, map[string]any{}
	}
	data, _ = root["data"].(map[string]any)
	if data == nil {
		data = map[string]any{}
	}
	return root, data
}

// Result is the vendor's response envelope.
type Result struct {
	Code    *int   `json:"code"`
	Message string `json:"message"`
	Msg     string `json:"msg"`
}

// ParseResult decodes the vendor envelope. Bodies that are not JSON objects
// yield a zero Result.
func ParseResult(body []byte) Result {
	var r Result
	_ = json.Unmarshal(body, &r)
	return r
}

// OK reports whether the vendor accepted the call. A missing or
// non-numeric code counts as success; any numeric code other than 0 does
// not.
//
// The relay never applies this rule itself: it mirrors every 2xx response.
// Deciding on the vendor code is left to the caller.
func (r Result) OK() bool {
	return r.Code == nil || *r.Code == 0
}

// Text returns the human-readable message, preferring "message" over "msg".
func (r Result) Text() string {
	if r.Message != "" {
		return r.Message
	}
	return r.Msg
}
