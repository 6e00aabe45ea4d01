package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sort"

	"github.com/firasghr/HeyteaDIY/apperr"
	"github.com/firasghr/HeyteaDIY/logger"
	"github.com/firasghr/HeyteaDIY/upstream"
)

// errorEnvelope is the body of every failed vendor call.
type errorEnvelope struct {
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeUpstreamError renders err under label. Vendor failures mirror the
// vendor status and carry its body in details; everything else is a 500
// with details null.
func writeUpstreamError(w http.ResponseWriter, label string, err error) {
	env := errorEnvelope{Error: label, Message: err.Error(), Details: json.RawMessage("null")}
	if e, ok := apperr.As(err); ok && len(e.Details) > 0 {
		env.Details = e.Details
	}
	writeJSON(w, apperr.StatusOf(err), env)
}

// mirror writes a successful vendor response back unchanged. The body was
// already decoded, so Content-Encoding is not copied.
func mirror(w http.ResponseWriter, resp *upstream.Response) {
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/json; charset=utf-8"
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

// decodeJSON reads a JSON request body capped at s.maxBody. An empty body
// decodes as the zero value.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (s *Server) fields(r *http.Request, extra logger.Fields) logger.Fields {
	f := logger.Fields{"requestId": RequestID(r.Context())}
	if origin := r.Header.Get("Origin"); origin != "" {
		f["origin"] = origin
	}
	for k, v := range extra {
		f[k] = v
	}
	return f
}

func (s *Server) reject(w http.ResponseWriter, status int, body any) {
	s.metrics.RecordRejected()
	writeJSON(w, status, body)
}

// rejectBody answers a request whose body could not be read: 413 when it
// went over the size cap, 400 otherwise.
func (s *Server) rejectBody(w http.ResponseWriter, err error) {
	if tooLarge(err) {
		s.reject(w, http.StatusRequestEntityTooLarge, map[string]string{
			"error":   "Payload Too Large",
			"message": fmt.Sprintf("Request body exceeds %d bytes", s.maxBody),
		})
		return
	}
	s.reject(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON", "message": err.Error()})
}

func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

func errorStatus(err error) int {
	if e, ok := apperr.As(err); ok {
		return e.Status
	}
	return 0
}

// observe feeds an accepted vendor envelope to the schema watcher.
func (s *Server) observe(endpoint string, resp *upstream.Response) {
	if upstream.ParseResult(resp.Body).OK() {
		s.watcher.Observe(endpoint, resp.Body)
	}
}

// ─── /api ─────────────────────────────────────────────────────────────────────

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	var req upstream.ForwardRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.rejectBody(w, err)
		return
	}
	if req.URL == "" {
		s.reject(w, http.StatusBadRequest, map[string]string{
			"error":   "Missing url",
			"message": "Provide the HeyTea API path.",
		})
		return
	}

	s.log.Event("api.request", s.fields(r, logger.Fields{"method": req.Method, "url": req.URL}))
	resp, err := s.up.Forward(r.Context(), req)
	if apperr.IsKind(err, apperr.KindValidation) {
		s.log.Event("api.rejected", s.fields(r, logger.Fields{"url": req.URL, "message": err.Error()}))
		s.reject(w, http.StatusBadRequest, map[string]string{"error": "Invalid request", "message": err.Error()})
		return
	}
	if err != nil {
		s.metrics.RecordFailure()
		s.log.Event("api.error", s.fields(r, logger.Fields{"url": req.URL, "status": errorStatus(err), "message": err.Error()}))
		writeUpstreamError(w, LabelAPI, err)
		return
	}
	s.metrics.RecordSuccess()
	s.log.Event("api.response", s.fields(r, logger.Fields{"url": req.URL, "status": resp.Status}))
	mirror(w, resp)
}

// ─── /upload ──────────────────────────────────────────────────────────────────

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	in, err := s.readUpload(w, r)
	if tooLarge(err) {
		s.log.Event("upload.rejected", s.fields(r, logger.Fields{"message": err.Error()}))
		s.reject(w, http.StatusRequestEntityTooLarge, map[string]string{
			"error":   "Payload Too Large",
			"message": fmt.Sprintf("Upload exceeds %d bytes", s.maxBody),
		})
		return
	}
	if err == nil {
		err = in.Validate()
	}
	if err != nil {
		s.log.Event("upload.rejected", s.fields(r, logger.Fields{"message": err.Error()}))
		s.reject(w, http.StatusBadRequest, map[string]any{"code": 1, "message": upstream.ErrMissingUploadFields})
		return
	}

	s.log.Event("upload.request", s.fields(r, logger.Fields{
		"bytes":       len(in.File),
		"contentType": in.ContentType,
		"t":           in.Timestamp,
	}))
	resp, err := s.up.UploadDIY(r.Context(), in)
	if err != nil {
		s.metrics.RecordFailure()
		s.log.Event("upload.error", s.fields(r, logger.Fields{"status": errorStatus(err), "message": err.Error()}))
		writeUpstreamError(w, LabelUpload, err)
		return
	}
	s.metrics.RecordSuccess()
	s.observe("upload", resp)
	res := upstream.ParseResult(resp.Body)
	s.log.Event("upload.response", s.fields(r, logger.Fields{"status": resp.Status, "code": res.Code, "message": res.Text()}))
	mirror(w, resp)
}

// readUpload parses the multipart form. A body that is not multipart is
// reported to the caller the same way as a missing field.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (upstream.UploadInput, error) {
	var in upstream.UploadInput
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	if err := r.ParseMultipartForm(s.maxBody); err != nil {
		return in, err
	}
	in.Sign = r.FormValue("sign")
	in.Timestamp = r.FormValue("t")
	in.Token = r.FormValue("token")
	in.Width = r.FormValue("width")
	in.Height = r.FormValue("height")

	file, header, err := r.FormFile("file")
	if err != nil {
		return in, nil
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return in, err
	}
	in.File = data
	if ct := header.Header.Get("Content-Type"); ct != "" {
		if mt, _, perr := mime.ParseMediaType(ct); perr == nil && mt != "application/octet-stream" {
			in.ContentType = ct
		}
	}
	return in, nil
}

// ─── /auth/sms/send ───────────────────────────────────────────────────────────

func (s *Server) handleSMSSend(w http.ResponseWriter, r *http.Request) {
	var in upstream.SendSMSInput
	if err := s.decodeJSON(w, r, &in); err != nil {
		s.rejectBody(w, err)
		return
	}
	if in.Mobile == "" {
		s.reject(w, http.StatusBadRequest, map[string]string{
			"error":   "Missing mobile",
			"message": "Provide a phone number",
		})
		return
	}

	k := s.up.Constants()
	s.log.Event("sms.send.request", s.fields(r, logger.Fields{
		"maskedMobile":   upstream.MaskMobile(in.Mobile),
		"areaCode":       k.ResolveAreaCode(in.AreaCode),
		"hasCaptcha":     in.CaptchaTicket != "" && in.CaptchaRandStr != "",
		"overrideFields": sortedKeys(in.Overrides),
	}))

	enc := s.up.EncryptMobile(in.Mobile)
	s.log.Event("sms.send.forward", s.fields(r, logger.Fields{
		"endpoint":         upstream.PathSMSSend,
		"encryptedPreview": upstream.PreviewCiphertext(enc),
	}))

	resp, _, err := s.up.SendSMS(r.Context(), in)
	if err != nil {
		s.metrics.RecordFailure()
		s.log.Event("sms.send.error", s.fields(r, logger.Fields{
			"maskedMobile": upstream.MaskMobile(in.Mobile),
			"status":       errorStatus(err),
			"message":      err.Error(),
		}))
		writeUpstreamError(w, LabelSMSSend, err)
		return
	}
	s.metrics.RecordSuccess()
	s.observe("sms.send", resp)
	res := upstream.ParseResult(resp.Body)
	s.log.Event("sms.send.response", s.fields(r, logger.Fields{
		"maskedMobile": upstream.MaskMobile(in.Mobile),
		"status":       resp.Status,
		"code":         res.Code,
		"message":      res.Text(),
	}))
	mirror(w, resp)
}

// ─── /auth/sms/login ──────────────────────────────────────────────────────────

func (s *Server) handleSMSLogin(w http.ResponseWriter, r *http.Request) {
	var in upstream.LoginInput
	if err := s.decodeJSON(w, r, &in); err != nil {
		s.rejectBody(w, err)
		return
	}
	if in.Mobile == "" || in.Code == "" {
		s.reject(w, http.StatusBadRequest, map[string]string{
			"error":   "Missing mobile or code",
			"message": "Provide both phone number and verification code",
		})
		return
	}

	s.log.Event("sms.login.request", s.fields(r, logger.Fields{
		"maskedMobile":   upstream.MaskMobile(in.Mobile),
		"areaCode":       s.up.Constants().ResolveAreaCode(in.AreaCode),
		"overrideFields": sortedKeys(in.Overrides),
	}))

	resp, _, err := s.up.Login(r.Context(), in)
	if err != nil {
		s.metrics.RecordFailure()
		s.log.Event("sms.login.error", s.fields(r, logger.Fields{
			"maskedMobile": upstream.MaskMobile(in.Mobile),
			"status":       errorStatus(err),
			"message":      err.Error(),
		}))
		writeUpstreamError(w, LabelSMSLogin, err)
		return
	}
	s.metrics.RecordSuccess()
	s.observe("sms.login", resp)
	res := upstream.ParseResult(resp.Body)
	s.log.Event("sms.login.response", s.fields(r, logger.Fields{
		"maskedMobile": upstream.MaskMobile(in.Mobile),
		"status":       resp.Status,
		"code":         res.Code,
		"message":      res.Text(),
		"hasToken":     upstream.ExtractToken(resp.Body) != "",
	}))
	mirror(w, resp)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
