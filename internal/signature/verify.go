package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

const (
	// SignatureHeader carries the version-prefixed hex signature.
	SignatureHeader = "X-Signature"
	// TimestampHeader carries the signing time as decimal Unix seconds.
	TimestampHeader = "X-Request-Timestamp"
	// Version prefixes both the canonical string and the signature.
	Version = "v0"
	// DefaultWindow is the replay window applied by Verify.
	DefaultWindow = 5 * time.Minute
)

// Result is the outcome of a verification.
type Result int

const (
	Reject Result = iota
	Accept
)

func (r Result) String() string {
	if r == Accept {
		return "accept"
	}
	return "reject"
}

// Verification failure reasons. Callers must not expose these to clients.
var (
	ErrMissingSecret    = errors.New("signing secret not configured")
	ErrMissingSignature = errors.New("signature header missing")
	ErrMissingTimestamp = errors.New("timestamp header missing")
	ErrBadTimestamp     = errors.New("timestamp is not an integer")
	ErrStale            = errors.New("timestamp outside replay window")
	ErrMismatch         = errors.New("signature mismatch")
)

// Secret is a shared signing secret. It never prints its value.
type Secret string

func (s Secret) String() string {
	return "[REDACTED]"
}

func (s Secret) GoString() string {
	return "[REDACTED]"
}

func (s Secret) LogValue() slog.Value {
	return slog.StringValue("[REDACTED]")
}

// Verifier checks request signatures against one secret.
// The zero Window means DefaultWindow; a nil Now means time.Now.
type Verifier struct {
	Secret Secret
	Window time.Duration
	Now    func() time.Time
}

// Check verifies h and body against the verifier's secret at the current time.
func (v Verifier) Check(h http.Header, body []byte) error {
	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	window := v.Window
	if window <= 0 {
		window = DefaultWindow
	}
	return check(h, body, v.Secret, now(), window)
}

// Verify decides whether a request is authentic, using DefaultWindow.
func Verify(h http.Header, body []byte, secret Secret, now time.Time) Result {
	if Check(h, body, secret, now) != nil {
		return Reject
	}
	return Accept
}

// Check is Verify with the failure reason. A nil error means Accept.
func Check(h http.Header, body []byte, secret Secret, now time.Time) error {
	return check(h, body, secret, now, DefaultWindow)
}

func check(h http.Header, body []byte, secret Secret, now time.Time, window time.Duration) error {
	if secret == "" {
		return ErrMissingSecret
	}
	sig := h.Get(SignatureHeader)
	if sig == "" {
		return ErrMissingSignature
	}
	ts := h.Get(TimestampHeader)
	if ts == "" {
		return ErrMissingTimestamp
	}

	sent, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrBadTimestamp
	}
	if !withinWindow(sent, now.Unix(), int64(window/time.Second)) {
		return ErrStale
	}

	expected := Sign(secret, ts, body)
	if subtle.ConstantTimeCompare([]byte(sig), []byte(expected)) != 1 {
		return ErrMismatch
	}
	return nil
}

// withinWindow reports whether |now - sent| <= window without overflowing
// on hostile timestamps near the int64 bounds.
func withinWindow(sent, now, window int64) bool {
	diff := now - sent
	if sent > now {
		diff = sent - now
	}
	// A wrapped subtraction comes out negative.
	return diff >= 0 && diff <= window
}

// BaseString builds the canonical string that is signed.
func BaseString(timestamp string, body []byte) []byte {
	base := make([]byte, 0, len(Version)+len(timestamp)+len(body)+2)
	base = append(base, Version...)
	base = append(base, ':')
	base = append(base, timestamp...)
	base = append(base, ':')
	return append(base, body...)
}

// Sign computes the signature header value for timestamp and body.
func Sign(secret Secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(BaseString(timestamp, body))
	return Version + "=" + hex.EncodeToString(mac.Sum(nil))
}

// SignRequest sets the signature and timestamp headers on h.
func SignRequest(h http.Header, secret Secret, at time.Time, body []byte) {
	ts := strconv.FormatInt(at.Unix(), 10)
	h.Set(TimestampHeader, ts)
	h.Set(SignatureHeader, Sign(secret, ts, body))
}
