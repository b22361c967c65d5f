package gateway

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// signatureField is excluded from the canonicalized parameter set; the
// gateway computes its digest over every other field.
const signatureField = "signature"

// Signature computes the expected digest for a notification parameter
// set: keys sorted lexicographically, empty values skipped, each pair
// URL-encoded with spaces as '+', joined by '&', with the passphrase
// appended last when one is configured, then MD5-hexed.
func Signature(params map[string]string, passphrase string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == signatureField {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		v := params[k]
		if v == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(v))
	}

	if passphrase != "" {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString("passphrase=")
		b.WriteString(url.QueryEscape(passphrase))
	}

	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether providedSignature matches the digest of params
// under the configured passphrase. It never panics and returns false on
// any malformed input; callers treat false as reject-and-log.
func Verify(params map[string]string, providedSignature, passphrase string) bool {
	if providedSignature == "" {
		return false
	}

	expected := Signature(params, passphrase)
	provided := strings.ToLower(strings.TrimSpace(providedSignature))

	return subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) == 1
}
