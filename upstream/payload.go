package upstream

import "github.com/firasghr/HeyteaDIY/apperr"

// Merge returns a new map holding defaults overlaid with overrides. Keys
// present in overrides win, including explicit nulls. Neither input is
// modified.
func Merge(defaults, overrides map[string]any) map[string]any {
	out := make(map[string]any, len(defaults)+len(overrides))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// Constants are the fixed app identifiers sent with every auth call.
type Constants struct {
	AreaCode     string
	ClientSource string
	BrandID      string
	Channel      string
	TicketFrom   string
}

// SendSMSInput is what a caller supplies to request a verification code.
type SendSMSInput struct {
	Mobile         string         `json:"mobile"`
	AreaCode       string         `json:"areaCode,omitempty"`
	CaptchaTicket  string         `json:"captchaTicket,omitempty"`
	CaptchaRandStr string         `json:"captchaRandStr,omitempty"`
	Overrides      map[string]any `json:"overrides,omitempty"`
}

// LoginInput is what a caller supplies to log in with a verification code.
type LoginInput struct {
	Mobile    string         `json:"mobile"`
	Code      string         `json:"code"`
	AreaCode  string         `json:"areaCode,omitempty"`
	Overrides map[string]any `json:"overrides,omitempty"`
}

// ResolveAreaCode returns in, or the configured default when in is empty.
func (k Constants) ResolveAreaCode(in string) string {
	if in != "" {
		return in
	}
	return k.AreaCode
}

// SendSMSPayload builds the body of the SMS-send call. encMobile is the
// already encrypted mobile. Captcha fields are part of the defaults, so an
// override can replace them like any other field.
func (k Constants) SendSMSPayload(in SendSMSInput, encMobile string) (map[string]any, error) {
	if in.Mobile == "" {
		return nil, apperr.Validation("Provide a phone number")
	}
	defaults := map[string]any{
		"mobile":      encMobile,
		"zone":        k.ResolveAreaCode(in.AreaCode),
		"client":      k.ClientSource,
		"brandId":     k.BrandID,
		"brand":       k.BrandID,
		"ticketFrom":  k.TicketFrom,
		"cryptoLevel": 2,
		"type":        1,
	}
	if in.CaptchaTicket != "" {
		defaults["ticket"] = in.CaptchaTicket
	}
	if in.CaptchaRandStr != "" {
		defaults["randstr"] = in.CaptchaRandStr
	}
	return Merge(defaults, in.Overrides), nil
}

// LoginPayload builds the body of the SMS-login call.
func (k Constants) LoginPayload(in LoginInput, encMobile string) (map[string]any, error) {
	if in.Mobile == "" || in.Code == "" {
		return nil, apperr.Validation("Provide a phone number and verification code")
	}
	defaults := map[string]any{
		"phone":       encMobile,
		"smsCode":     in.Code,
		"zone":        k.ResolveAreaCode(in.AreaCode),
		"client":      k.ClientSource,
		"brand":       k.BrandID,
		"channel":     k.Channel,
		"ticketFrom":  k.TicketFrom,
		"loginType":   "APP_CODE",
		"cryptoLevel": 2,
		"email":       nil,
	}
	return Merge(defaults, in.Overrides), nil
}
