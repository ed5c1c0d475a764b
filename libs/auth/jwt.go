package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = fmt.Errorf("%w: expired", ErrInvalidToken)
)

// Claims identify the adopter (or shelter staff member) acting on a submission.
type Claims struct {
	Sub  string `json:"sub"`
	Role string `json:"role"`
	Exp  int64  `json:"exp"`
	Iat  int64  `json:"iat"`
}

type header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

// allowedSkew tolerates issuer clocks running slightly ahead.
const allowedSkew = time.Minute

func SignHS256(claims Claims, secret string) (string, error) {
	h, err := encodeSegment(header{Alg: "HS256", Typ: "JWT"})
	if err != nil {
		return "", err
	}
	p, err := encodeSegment(claims)
	if err != nil {
		return "", err
	}
	signingInput := h + "." + p
	return signingInput + "." + sign(signingInput, secret), nil
}

// ParseAndVerifyHS256 checks the algorithm, signature, subject and validity period
// of token relative to now. Every failure wraps ErrInvalidToken.
func ParseAndVerifyHS256(token, secret string, now time.Time) (*Claims, error) {
	h, p, sig, ok := splitToken(token)
	if !ok {
		return nil, ErrInvalidToken
	}
	var hdr header
	if err := decodeSegment(h, &hdr); err != nil || hdr.Alg != "HS256" {
		return nil, ErrInvalidToken
	}
	if !hmac.Equal([]byte(sig), []byte(sign(h+"."+p, secret))) {
		return nil, ErrInvalidToken
	}

	var claims Claims
	if err := decodeSegment(p, &claims); err != nil || claims.Sub == "" {
		return nil, ErrInvalidToken
	}
	if claims.Exp > 0 && now.Unix() > claims.Exp {
		return nil, ErrTokenExpired
	}
	if claims.Iat > 0 && time.Unix(claims.Iat, 0).After(now.Add(allowedSkew)) {
		return nil, fmt.Errorf("%w: issued in the future", ErrInvalidToken)
	}
	return &claims, nil
}

func splitToken(token string) (h, p, sig string, ok bool) {
	h, rest, ok1 := strings.Cut(token, ".")
	p, sig, ok2 := strings.Cut(rest, ".")
	if !ok1 || !ok2 || strings.Contains(sig, ".") || h == "" || p == "" || sig == "" {
		return "", "", "", false
	}
	return h, p, sig, true
}

func encodeSegment(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func decodeSegment(seg string, dst any) error {
	b, err := base64.RawURLEncoding.DecodeString(seg)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

func sign(signingInput, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(signingInput))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
