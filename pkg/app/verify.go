package app

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// The maximum shift/delay that we allow between an inbound request's
// timestamp, and our current timestamp, to defend against replay attacks.
// This is a fixed tolerance of 5 minutes, in either direction.
// See https://docs.slack.dev/authentication/verifying-requests-from-slack.
const maxDifference = 5 * time.Minute

// VerifyTimestamp checks the value of an inbound request's
// "X-Slack-Request-Timestamp" header (Unix time in seconds).
func (a *App) VerifyTimestamp(ts string) bool {
	if ts == "" {
		return false
	}

	secs, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}

	d := a.now().Sub(time.Unix(secs, 0))
	return d.Abs() <= maxDifference
}

// VerifySignature checks the value of an inbound request's "X-Slack-Signature"
// header ("<version>=<hex digest>"), against the request's timestamp and raw body.
// If the app has no signing secret, all requests are considered to be signed.
// See https://docs.slack.dev/authentication/verifying-requests-from-slack.
func (a *App) VerifySignature(sig, ts string, body []byte) bool {
	if a.cfg.SigningSecret == "" {
		return true
	}
	if sig == "" {
		return false
	}

	version, _, _ := strings.Cut(sig, "=")
	mac := hmac.New(sha256.New, []byte(a.cfg.SigningSecret))

	if _, err := mac.Write(fmt.Appendf(nil, "%s:%s:", version, ts)); err != nil {
		return false
	}
	if n, err := mac.Write(body); err != nil || n != len(body) {
		return false
	}

	want := fmt.Sprintf("%s=%s", version, hex.EncodeToString(mac.Sum(nil)))
	return hmac.Equal([]byte(sig), []byte(want))
}

// VerifyToken checks a deprecated verification token, which Slack includes in
// the payloads of inbound requests. If the app has no such token, all the
// requests pass. See https://docs.slack.dev/authentication/verifying-requests-from-slack.
func (a *App) VerifyToken(token string) bool {
	return a.cfg.VerificationToken == "" || token == a.cfg.VerificationToken
}
