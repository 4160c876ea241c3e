// Package credential persists the captured Get Notes bearer credential and
// turns it into request headers.
package credential

import (
	"maps"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultMaxAge keeps us under the vendor's ~30 minute session lifetime.
const DefaultMaxAge = 25 * time.Minute

// Header names carried by the web client.
const (
	HeaderAuthorization = "Authorization"
	HeaderCSRF          = "Xi-Csrf-Token"
)

// DefaultHeaders mimic the browser client.
var DefaultHeaders = map[string]string{
	"Accept":          "application/json, text/plain, */*",
	"Accept-Language": "zh-CN,zh;q=0.9,en-US;q=0.8,en;q=0.7",
	"Content-Type":    "application/json",
	"Origin":          "https://www.biji.com",
	"Referer":         "https://www.biji.com/",
	"User-Agent": "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/145.0.0.0 Safari/537.36",
}

// Credential is a bearer token plus the auxiliary headers captured with it.
type Credential struct {
	Authorization string            `json:"authorization"`
	CSRFToken     string            `json:"csrf_token"`
	ExtraHeaders  map[string]string `json:"extra_headers"`
	// IssuedAt is seconds since epoch.
	IssuedAt float64 `json:"extracted_at"`
}

// New builds a credential from a raw token, adding the "Bearer " prefix
// when missing.
func New(token string, issuedAt time.Time) *Credential {
	token = strings.TrimSpace(token)
	if !strings.HasPrefix(token, "Bearer ") {
		token = "Bearer " + token
	}
	return &Credential{
		Authorization: token,
		ExtraHeaders:  map[string]string{},
		IssuedAt:      float64(issuedAt.UnixNano()) / float64(time.Second),
	}
}

// Issued returns IssuedAt as a time.
func (c *Credential) Issued() time.Time {
	sec := int64(c.IssuedAt)
	nsec := int64((c.IssuedAt - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}

// Age is the time elapsed since issuance.
func (c *Credential) Age(now time.Time) time.Duration {
	return now.Sub(c.Issued())
}

// Expired reports whether the credential is older than maxAge, or whether the
// bearer is a JWT whose exp claim has passed. maxAge <= 0 means DefaultMaxAge.
func (c *Credential) Expired(now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if c.Age(now) > maxAge {
		return true
	}
	if exp, ok := c.TokenExpiry(); ok && !now.Before(exp) {
		return true
	}
	return false
}

// TokenExpiry reads the exp claim when the bearer is a JWT. The signature is
// not verified; the value is only used to refuse stale tokens early.
func (c *Credential) TokenExpiry() (time.Time, bool) {
	raw := strings.TrimSpace(strings.TrimPrefix(c.Authorization, "Bearer "))
	if strings.Count(raw, ".") != 2 {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Headers materializes the full request header set: browser defaults,
// Authorization, the CSRF token when present, then extra headers.
func (c *Credential) Headers() map[string]string {
	h := maps.Clone(DefaultHeaders)
	h[HeaderAuthorization] = c.Authorization
	if c.CSRFToken != "" {
		h[HeaderCSRF] = c.CSRFToken
	}
	maps.Copy(h, c.ExtraHeaders)
	return h
}

// Masked returns a shortened form of s for display.
func Masked(s string, keep int) string {
	r := []rune(s)
	if len(r) <= keep {
		return s
	}
	return string(r[:keep]) + "..."
}
