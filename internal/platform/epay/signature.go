// Package epay implements the signing scheme and message formats of the
// "epay" payment aggregator: outbound redirect requests and inbound
// asynchronous payment notifications, both authenticated with a keyed digest
// over the canonical parameter string.
package epay

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// SignTypeMD5 is the sign_type literal the gateway expects
const SignTypeMD5 = "MD5"

const (
	fieldSign     = "sign"
	fieldSignType = "sign_type"
)

// Scheme controls how the secret is joined to the canonical string
type Scheme string

const (
	// SchemeAppendKey appends the secret directly: "a=1&b=2" + secret
	SchemeAppendKey Scheme = "append"
	// SchemeAmpersandKey appends "&key=" + secret
	SchemeAmpersandKey Scheme = "ampersand"
)

// ParseScheme maps a configuration value to a Scheme
func ParseScheme(s string) (Scheme, error) {
	switch Scheme(s) {
	case SchemeAppendKey, SchemeAmpersandKey:
		return Scheme(s), nil
	case "":
		return SchemeAppendKey, nil
	}
	return "", fmt.Errorf("unknown sign scheme %q", s)
}

// Digest hashes the string to sign and returns lowercase hex
type Digest func(data []byte) string

// MD5Digest is the digest mandated by the gateway
func MD5Digest(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// Signer signs and verifies parameter sets. The zero value is not usable; use
// NewSigner or DefaultSigner.
type Signer struct {
	scheme Scheme
	digest Digest
}

// NewSigner returns a Signer for the given scheme and digest. A nil digest
// falls back to MD5.
func NewSigner(scheme Scheme, digest Digest) *Signer {
	if digest == nil {
		digest = MD5Digest
	}
	if scheme == "" {
		scheme = SchemeAppendKey
	}
	return &Signer{scheme: scheme, digest: digest}
}

// DefaultSigner signs with the appended key and MD5
func DefaultSigner() *Signer {
	return NewSigner(SchemeAppendKey, MD5Digest)
}

// Scheme returns the configured key joining scheme
func (s *Signer) Scheme() Scheme {
	return s.scheme
}

// Canonical builds the string covered by the signature: signature fields and
// empty values are dropped, the rest sorted by key and joined as k=v with "&".
func Canonical(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if k == fieldSign || k == fieldSignType || v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	return b.String()
}

// Sign returns the lowercase hex signature of params under secret
func (s *Signer) Sign(params map[string]string, secret string) string {
	canonical := Canonical(params)
	switch s.scheme {
	case SchemeAmpersandKey:
		canonical += "&key=" + secret
	default:
		canonical += secret
	}
	return strings.ToLower(s.digest([]byte(canonical)))
}

// Verify recomputes the signature of params and compares it with
// params["sign"], ignoring case. Malformed input yields false.
func (s *Signer) Verify(params map[string]string, secret string) bool {
	if params == nil || secret == "" {
		return false
	}
	got := strings.ToLower(strings.TrimSpace(params[fieldSign]))
	if got == "" {
		return false
	}
	want := s.Sign(params, secret)
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
