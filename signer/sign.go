package signer

import (
	"crypto/md5" // #nosec G501 – MD5 is the vendor's signature algorithm
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/firasghr/HeyteaDIY/apperr"
)

// DefaultSignSalt is the salt the vendor's app prefixes to upload
// signatures.
const DefaultSignSalt = "r5YWPjgSGAT2dbOJzwiDBK"

// UploadSignature holds the query parameters of a DIY upload.
type UploadSignature struct {
	Sign      string `json:"sign"`
	Timestamp string `json:"timestamp"`
}

// BuildUploadSignature computes
//
//	sign = lowercase hex(md5(salt + trim(userMainID) + decimal(nowMillis)))
//
// An empty salt falls back to DefaultSignSalt. A blank userMainID is a
// validation error.
func BuildUploadSignature(salt, userMainID string, nowMillis int64) (UploadSignature, error) {
	id := strings.TrimSpace(userMainID)
	if id == "" {
		return UploadSignature{}, apperr.Validation("user_main_id is required to compute upload signature")
	}
	if salt == "" {
		salt = DefaultSignSalt
	}
	ts := strconv.FormatInt(nowMillis, 10)
	sum := md5.Sum([]byte(salt + id + ts)) // #nosec G401
	return UploadSignature{Sign: hex.EncodeToString(sum[:]), Timestamp: ts}, nil
}
