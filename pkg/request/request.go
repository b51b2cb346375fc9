// Package request handles a single verified inbound Slack request: it
// combines the request's parsed payload, the Slack app's credentials, and
// the workspace record from the datastore. Application handlers use it to
// call the Slack API, reply, upload files, unfurl links, and store data.
package request

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tzrikka/slackdevkit/pkg/app"
	"github.com/tzrikka/slackdevkit/pkg/datastore"
	"github.com/tzrikka/slackdevkit/pkg/payload"
)

const (
	TimestampHeader   = "X-Slack-Request-Timestamp"
	SignatureHeader   = "X-Slack-Signature"
	RetryNumHeader    = "X-Slack-Retry-Num"
	RetryReasonHeader = "X-Slack-Retry-Reason"

	MaxBodySize = 1 << 20 // 1 MiB.
)

var ErrBodyTooLarge = errors.New("request body too large")

// Inbound is the raw data of an inbound HTTP request, as received from Slack.
// The body must be kept unmodified for signature verification.
type Inbound struct {
	Method string
	Header http.Header
	Body   []byte
	Query  url.Values
}

// FromHTTP reads the body of an HTTP request (up to [MaxBodySize]).
func FromHTTP(r *http.Request) (Inbound, error) {
	in := Inbound{Method: r.Method, Header: r.Header, Query: r.URL.Query()}
	if r.Body == nil {
		return in, nil
	}

	b, err := io.ReadAll(io.LimitReader(r.Body, MaxBodySize+1))
	if err != nil {
		return in, fmt.Errorf("failed to read request body: %w", err)
	}
	if len(b) > MaxBodySize {
		return in, ErrBodyTooLarge
	}

	in.Body = b
	return in, nil
}

// Request is a single inbound Slack request. It's not safe for concurrent use.
type Request struct {
	*payload.Payload

	app   *app.App
	store datastore.Datastore
	in    Inbound
	data  datastore.Record
}

// New parses the body and query of an inbound request. It doesn't verify
// the request, and doesn't load the workspace record from the datastore.
func New(a *app.App, in Inbound) *Request {
	if in.Header == nil {
		in.Header = http.Header{}
	}

	return &Request{
		Payload: payload.New(in.Body, in.Query),
		app:     a,
		store:   a.Datastore(),
		in:      in,
		data:    datastore.Record{},
	}
}

func (r *Request) Inbound() Inbound {
	return r.in
}

// ValidTimestamp checks the request's timestamp header, to prevent replay attacks.
func (r *Request) ValidTimestamp() bool {
	return r.app.VerifyTimestamp(r.in.Header.Get(TimestampHeader))
}

// ValidSignature checks the request's signature header, if the app has a signing secret.
func (r *Request) ValidSignature() bool {
	sig := r.in.Header.Get(SignatureHeader)
	ts := r.in.Header.Get(TimestampHeader)
	return r.app.VerifySignature(sig, ts, r.in.Body)
}

// ValidToken checks the payload's verification token, if the app has one.
func (r *Request) ValidToken() bool {
	return r.app.VerifyToken(r.Token())
}

// Valid is the single gate that a transport adapter must
// check before dispatching the request to application logic.
func (r *Request) Valid() bool {
	return r.ValidTimestamp() && r.ValidSignature() && r.ValidToken()
}

// InstallURL returns the app's authorization URL if this request is
// the beginning of an OAuth installation (a GET request without a "code"
// query parameter), and the app is configured for OAuth. Otherwise, it
// returns an empty string.
func (r *Request) InstallURL() string {
	if r.in.Method != http.MethodGet || r.Code() != "" || r.app.Config().ClientID == "" {
		return ""
	}
	return r.app.AuthURL(r.in.Query.Get("state"), r.in.Query.Get("single_channel"))
}

// AppURL returns a URL that opens the installed app in Slack.
func (r *Request) AppURL() string {
	return r.app.RootURL() + "/app_redirect?app=" + url.QueryEscape(r.data.AppID())
}

// RetryReason returns the reason why Slack redelivers an Events API
// event (e.g. "http_timeout"), or an empty string if this isn't a retry.
// See https://docs.slack.dev/apis/events-api#retries.
func (r *Request) RetryReason() string {
	return r.in.Header.Get(RetryReasonHeader)
}

// RetryNumber returns the Events API delivery attempt number (0 for the first one).
func (r *Request) RetryNumber() int {
	n, err := strconv.Atoi(r.in.Header.Get(RetryNumHeader))
	if err != nil {
		return 0
	}
	return n
}
