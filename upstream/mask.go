package upstream

// MaskMobile redacts a phone number for logging: the first 3 and last 4
// characters stay visible ("138****5678"). Numbers shorter than 7
// characters keep only their first 2 ("12***").
func MaskMobile(mobile string) string {
	if mobile == "" {
		return ""
	}
	r := []rune(mobile)
	if len(r) < 7 {
		return string(r[:min(2, len(r))]) + "***"
	}
	return string(r[:3]) + "****" + string(r[len(r)-4:])
}

// PreviewCiphertext shortens an encrypted mobile to its first 6 and last 4
// characters so log lines can be compared against the vendor app without
// carrying the full value.
func PreviewCiphertext(enc string) string {
	if len(enc) <= 10 {
		return enc
	}
	return enc[:6] + "..." + enc[len(enc)-4:]
}
