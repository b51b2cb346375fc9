package app

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"testing"
	"time"
)

func TestVerifyTimestamp(t *testing.T) {
	now := time.Unix(1700000000, 0)
	a := New(Config{}, nil, WithClock(func() time.Time { return now }))

	tests := []struct {
		name string
		ts   string
		want bool
	}{
		{
			name: "missing",
		},
		{
			name: "not_a_number",
			ts:   "yesterday",
		},
		{
			name: "now",
			ts:   strconv.FormatInt(now.Unix(), 10),
			want: true,
		},
		{
			name: "edge_of_past_window",
			ts:   strconv.FormatInt(now.Unix()-300, 10),
			want: true,
		},
		{
			name: "edge_of_future_window",
			ts:   strconv.FormatInt(now.Unix()+300, 10),
			want: true,
		},
		{
			name: "too_old",
			ts:   strconv.FormatInt(now.Unix()-301, 10),
		},
		{
			name: "too_new",
			ts:   strconv.FormatInt(now.Unix()+301, 10),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.VerifyTimestamp(tt.ts); got != tt.want {
				t.Errorf("VerifyTimestamp(%q) = %v, want %v", tt.ts, got, tt.want)
			}
		})
	}
}

func TestVerifyTimestampRealClock(t *testing.T) {
	a := New(Config{}, nil)
	if !a.VerifyTimestamp(strconv.FormatInt(time.Now().Unix(), 10)) {
		t.Error("VerifyTimestamp(now) = false, want true")
	}
}

func sign(secret, ts, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("v0:" + ts + ":" + body))
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	const (
		secret = "8f742231b10e8888abcd99yyyzzz85a5"
		ts     = "1531420618"
		body   = "token=xyzz0WbapA4vBCDEFasx0q6G&team_id=T1DC2JH3J&command=%2Fweather&text=94070"
	)
	valid := sign(secret, ts, body)

	a := New(Config{SigningSecret: secret}, nil)

	tests := []struct {
		name string
		sig  string
		ts   string
		body string
		want bool
	}{
		{
			name: "valid",
			sig:  valid,
			ts:   ts,
			body: body,
			want: true,
		},
		{
			name: "missing_signature",
			ts:   ts,
			body: body,
		},
		{
			name: "different_timestamp",
			sig:  valid,
			ts:   "1531420619",
			body: body,
		},
		{
			name: "different_body",
			sig:  valid,
			ts:   ts,
			body: body + "0",
		},
		{
			name: "no_separator",
			sig:  "v0",
			ts:   ts,
			body: body,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.VerifySignature(tt.sig, tt.ts, []byte(tt.body)); got != tt.want {
				t.Errorf("VerifySignature() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVerifySignatureMutations(t *testing.T) {
	const secret, ts, body = "secret", "1700000000", `{"type":"event_callback"}`
	a := New(Config{SigningSecret: secret}, nil)
	sig := sign(secret, ts, body)

	for i := len("v0="); i < len(sig); i++ {
		b := []byte(sig)
		if b[i] == '0' {
			b[i] = '1'
		} else {
			b[i] = '0'
		}
		if a.VerifySignature(string(b), ts, []byte(body)) {
			t.Errorf("VerifySignature() with digest mutated at %d = true, want false", i)
		}
	}
}

func TestVerifySignatureUnsigned(t *testing.T) {
	a := New(Config{}, nil)
	for _, sig := range []string{"", "v0=bad", "garbage"} {
		if !a.VerifySignature(sig, "", []byte("anything")) {
			t.Errorf("VerifySignature(%q) without signing secret = false, want true", sig)
		}
	}
}

func TestVerifyToken(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		token      string
		want       bool
	}{
		{
			name: "not_configured",
			want: true,
		},
		{
			name:  "not_configured_any_token",
			token: "whatever",
			want:  true,
		},
		{
			name:       "match",
			configured: "abc",
			token:      "abc",
			want:       true,
		},
		{
			name:       "mismatch",
			configured: "abc",
			token:      "abd",
		},
		{
			name:       "missing",
			configured: "abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(Config{VerificationToken: tt.configured}, nil)
			if got := a.VerifyToken(tt.token); got != tt.want {
				t.Errorf("VerifyToken(%q) = %v, want %v", tt.token, got, tt.want)
			}
		})
	}
}
