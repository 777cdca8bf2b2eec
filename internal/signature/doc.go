// Package signature verifies timestamped HMAC-SHA256 request signatures.
//
// A sender signs each request by computing
//
//	v0=hex(HMAC-SHA256(secret, "v0:" + timestamp + ":" + body))
//
// and sends it in X-Signature alongside X-Request-Timestamp (seconds since
// the Unix epoch). The receiver recomputes the signature over the raw body
// bytes exactly as received.
//
// # Security Model
//
//   - Signatures compared with crypto/subtle (constant-time, length-blind)
//   - Requests outside the replay window are rejected, past or future
//   - Missing headers, a malformed timestamp, or an empty secret fail closed
//   - Every failure is the same Reject to callers; the reason is for logs only
//   - Secret values render as [REDACTED] in fmt and slog output
package signature
