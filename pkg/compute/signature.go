package compute

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// Signer computes and checks HMAC-SHA256 signatures over callback bodies.
type Signer struct {
	secret []byte
}

// NewSigner creates a Signer for secret.
func NewSigner(secret string) (*Signer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &Signer{secret: []byte(secret)}, nil
}

func (s *Signer) sum(body []byte) []byte {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write(body)
	return mac.Sum(nil)
}

// Sign returns the hex signature of body.
func (s *Signer) Sign(body []byte) string {
	return hex.EncodeToString(s.sum(body))
}

// SignBase64 returns the base64 signature of body.
func (s *Signer) SignBase64(body []byte) string {
	return base64.StdEncoding.EncodeToString(s.sum(body))
}

// Verify checks signature against body. Hex and base64 (standard or URL,
// padded or not) are accepted, with an optional "sha256=" prefix.
// Every failure returns ErrInvalidSignature.
func (s *Signer) Verify(body []byte, signature string) error {
	signature = strings.TrimSpace(signature)
	signature = strings.TrimPrefix(signature, "sha256=")
	if signature == "" {
		return ErrInvalidSignature
	}

	got, ok := decodeSignature(signature)
	if !ok {
		return ErrInvalidSignature
	}
	if subtle.ConstantTimeCompare(got, s.sum(body)) != 1 {
		return ErrInvalidSignature
	}
	return nil
}

func decodeSignature(sig string) ([]byte, bool) {
	if len(sig) == hex.EncodedLen(sha256.Size) {
		if b, err := hex.DecodeString(sig); err == nil {
			return b, true
		}
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(sig); err == nil && len(b) == sha256.Size {
			return b, true
		}
	}
	return nil, false
}
