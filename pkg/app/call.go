package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"mime/multipart"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tzrikka/slackdevkit/internal/otel"
)

const (
	webhookPrefix = "https://hooks.slack.com"
	userAgent     = "slackdevkit"

	maxResponseSize = 10 << 20 // 10 MiB.
	maxErrorCodeLen = 64
)

var errorCodePattern = regexp.MustCompile(`^[a-z_]+$`)

// Data fields which require a JSON-encoded request body, instead of form data.
var jsonFields = []string{"attachments", "blocks", "dialog", "unfurl", "unfurls"}

// Response is a decoded response to a Slack API call.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// Data is the decoded JSON body, if the response's content type is JSON.
	Data map[string]any
}

// OK reports whether the response indicates success: the decoded
// body doesn't contain an "ok" field, or contains it with a true value.
func (r *Response) OK() bool {
	ok, found := r.Data["ok"].(bool)
	return !found || ok
}

// ErrorCode returns the "error" field of the decoded body, e.g. "invalid_auth".
func (r *Response) ErrorCode() string {
	s, _ := r.Data["error"].(string)
	return s
}

// APIError is returned by [App.Call] when Slack
// responds with "ok: false", or an HTTP error status.
type APIError struct {
	Endpoint string
	Code     string
	Response *Response
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Slack API error in %s: %s", e.Endpoint, e.Code)
}

// IsInvalidAuth reports whether the error is an
// [APIError] with the error code "invalid_auth".
func IsInvalidAuth(err error) bool {
	if apiErr := new(APIError); errors.As(err, &apiErr) {
		return apiErr.Code == "invalid_auth"
	}
	return false
}

// Call sends an authenticated POST request to Slack. The endpoint is either a
// Slack API method name (e.g. "chat.postMessage"), or an absolute URL (e.g. an
// incoming webhook or a "response_url"). The given data map is not modified.
//
// The request body is JSON if the data contains rich fields (attachments,
// blocks, a dialog, or unfurls), or if the endpoint is an incoming webhook.
// It's multipart form data if the data contains a "file" (with an optional
// "filename"). Otherwise, it's URL-encoded form data.
//
// The app's static access token and single-channel ID (if configured) are
// added to the data, unless it already contains "token" or "channel" keys.
// JSON requests to non-webhook endpoints send the token as a bearer token
// in the "Authorization" header, instead of in the body.
//
// Responses with "ok: false" result in both a response and an [APIError].
func (a *App) Call(ctx context.Context, endpoint string, data map[string]any, headers http.Header) (*Response, error) {
	return a.call(ctx, endpoint, data, headers, true)
}

func (a *App) call(ctx context.Context, endpoint string, data map[string]any, headers http.Header, inject bool) (*Response, error) {
	data = maps.Clone(data)
	if data == nil {
		data = map[string]any{}
	}
	headers = headers.Clone()
	if headers == nil {
		headers = http.Header{}
	}

	if inject {
		if _, found := data["token"]; !found && a.cfg.AccessToken != "" {
			data["token"] = a.cfg.AccessToken
		}
		if _, found := data["channel"]; !found && a.cfg.SingleChannelID != "" {
			data["channel"] = a.cfg.SingleChannelID
		}
	}

	isWebhook := strings.HasPrefix(endpoint, webhookPrefix)
	isJSON := isWebhook || slices.ContainsFunc(jsonFields, func(k string) bool {
		return data[k] != nil
	})

	if token, ok := data["token"].(string); ok && token != "" && isJSON && !isWebhook {
		headers.Set("Authorization", "Bearer "+token)
		delete(data, "token")
	}

	u := a.APIURL(endpoint)
	l := zerolog.Ctx(ctx).With().Str("endpoint", methodName(endpoint)).Logger()

	var body *bytes.Buffer
	var err error
	switch {
	case data["file"] != nil:
		var contentType string
		body, contentType, err = encodeMultipart(data)
		headers.Set("Content-Type", contentType)
	case isJSON:
		body = new(bytes.Buffer)
		err = json.NewEncoder(body).Encode(data)
		headers.Set("Content-Type", "application/json; charset=utf-8")
	default:
		var form url.Values
		form, err = encodeForm(data)
		body = bytes.NewBufferString(form.Encode())
		headers.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode Slack API request data: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to construct Slack API request: %w", err)
	}
	req.Header = headers
	req.Header.Set("User-Agent", userAgent)

	l.Debug().Str("content_type", headers.Get("Content-Type")).Msg("sending Slack API request")
	resp, err := a.client.Do(req)
	if err != nil {
		otel.APICalled(ctx, methodName(endpoint), "transport_error")
		return nil, fmt.Errorf("failed to send Slack API request: %w", err)
	}
	defer resp.Body.Close()

	r, err := decodeResponse(resp)
	if err != nil {
		otel.APICalled(ctx, methodName(endpoint), "transport_error")
		return nil, err
	}

	code := "ok"
	switch {
	case !r.OK():
		code = r.ErrorCode()
	case r.Data == nil && r.StatusCode >= http.StatusBadRequest:
		code = plainTextErrorCode(r)
	}

	otel.APICalled(ctx, methodName(endpoint), code)
	if code != "ok" {
		l.Warn().Int("status_code", r.StatusCode).Str("error", code).Msg("Slack API error")
		return r, &APIError{Endpoint: methodName(endpoint), Code: code, Response: r}
	}

	l.Debug().Int("status_code", r.StatusCode).Msg("received Slack API response")
	return r, nil
}

// plainTextErrorCode returns the error code of a non-JSON error response.
// Incoming webhooks respond with short plain-text codes (e.g. "no_text"),
// but proxies may respond with arbitrary pages, which are replaced with
// the HTTP status text.
func plainTextErrorCode(r *Response) string {
	code := strings.TrimSpace(string(r.Body))
	if len(code) <= maxErrorCodeLen && errorCodePattern.MatchString(code) {
		return code
	}
	return http.StatusText(r.StatusCode)
}

func decodeResponse(resp *http.Response) (*Response, error) {
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read Slack API response: %w", err)
	}

	r := &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: b}
	if strings.Contains(resp.Header.Get("Content-Type"), "json") && len(b) > 0 {
		if err := json.Unmarshal(b, &r.Data); err != nil {
			return nil, fmt.Errorf("failed to decode Slack API response: %w", err)
		}
	}

	return r, nil
}

// methodName returns a non-sensitive name of the given endpoint for logs
// and metrics: either the Slack API method name, or the URL's host name.
func methodName(endpoint string) string {
	if !isAbsolute(endpoint) {
		return endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "unknown"
	}
	return u.Host
}

// encodeForm converts request data into URL-encoded form values. Strings
// are used as-is, and all other non-nil values are encoded as JSON (Slack
// accepts arrays and objects in form data as JSON strings).
func encodeForm(data map[string]any) (url.Values, error) {
	form := url.Values{}
	for k, v := range data {
		s, err := formValue(v)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %q: %w", k, err)
		}
		if v != nil {
			form.Set(k, s)
		}
	}
	return form, nil
}

func formValue(v any) (string, error) {
	switch v := v.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}

// encodeMultipart converts request data into a multipart form. The "file" field
// may be a byte slice, a string, or an [io.Reader]. It's sent as a file part named
// after the "filename" field (if there is one). All the other fields are sent as
// regular form fields, in lexicographical order.
func encodeMultipart(data map[string]any) (*bytes.Buffer, string, error) {
	body := new(bytes.Buffer)
	w := multipart.NewWriter(body)

	for _, k := range slices.Sorted(maps.Keys(data)) {
		if k == "file" || data[k] == nil {
			continue
		}
		s, err := formValue(data[k])
		if err != nil {
			return nil, "", fmt.Errorf("invalid value for %q: %w", k, err)
		}
		if err := w.WriteField(k, s); err != nil {
			return nil, "", err
		}
	}

	filename, _ := data["filename"].(string)
	if filename == "" {
		filename = "file"
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", err
	}

	switch f := data["file"].(type) {
	case []byte:
		_, err = part.Write(f)
	case string:
		_, err = io.WriteString(part, f)
	case io.Reader:
		_, err = io.Copy(part, f)
	default:
		err = fmt.Errorf("unsupported file type: %T", f)
	}
	if err != nil {
		return nil, "", err
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}

	return body, w.FormDataContentType(), nil
}
