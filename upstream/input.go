package upstream

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// looseString accepts a JSON string, number or boolean and keeps its text,
// so {"mobile":13812345678} reads the same as {"mobile":"13812345678"}.
// null reads as "".
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*s = ""
	case len(b) > 0 && b[0] == '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = looseString(v)
	case bytes.Equal(b, []byte("true")), bytes.Equal(b, []byte("false")):
		*s = looseString(b)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("want a string or number, got %s", b)
		}
		*s = looseString(n)
	}
	return nil
}

func (in *SendSMSInput) UnmarshalJSON(b []byte) error {
	var raw struct {
		Mobile         looseString    `json:"mobile"`
		AreaCode       looseString    `json:"areaCode"`
		CaptchaTicket  looseString    `json:"captchaTicket"`
		CaptchaRandStr looseString    `json:"captchaRandStr"`
		Overrides      map[string]any `json:"overrides"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*in = SendSMSInput{
		Mobile:         string(raw.Mobile),
		AreaCode:       string(raw.AreaCode),
		CaptchaTicket:  string(raw.CaptchaTicket),
		CaptchaRandStr: string(raw.CaptchaRandStr),
		Overrides:      raw.Overrides,
	}
	return nil
}

func (in *LoginInput) UnmarshalJSON(b []byte) error {
	var raw struct {
		Mobile    looseString    `json:"mobile"`
		Code      looseString    `json:"code"`
		AreaCode  looseString    `json:"areaCode"`
		Overrides map[string]any `json:"overrides"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*in = LoginInput{
		Mobile:    string(raw.Mobile),
		Code:      string(raw.Code),
		AreaCode:  string(raw.AreaCode),
		Overrides: raw.Overrides,
	}
	return nil
}

// UnmarshalJSON reads header values as text; null values are dropped.
func (req *ForwardRequest) UnmarshalJSON(b []byte) error {
	var raw struct {
		URL     string                  `json:"url"`
		Method  string                  `json:"method"`
		Headers map[string]*looseString `json:"headers"`
		Params  map[string]any          `json:"params"`
		Body    json.RawMessage         `json:"body"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*req = ForwardRequest{URL: raw.URL, Method: raw.Method, Params: raw.Params, Body: raw.Body}
	for k, v := range raw.Headers {
		if v == nil {
			continue
		}
		if req.Headers == nil {
			req.Headers = make(map[string]string, len(raw.Headers))
		}
		req.Headers[k] = string(*v)
	}
	return nil
}
