package request

import (
	"context"
	"errors"
	"maps"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/tzrikka/slackdevkit/pkg/app"
)

var (
	ErrNoEvent = errors.New("payload doesn't contain an Events API event")
	ErrNoLinks = errors.New("event doesn't contain links to unfurl")
)

// API calls a Slack API method (or an absolute URL) with the request's workspace
// credentials: the record's access token and single-channel ID are added to the
// data, unless it already has "token" or "channel" keys. The given data map is
// not modified.
//
// If Slack responds with an "invalid_auth" error, this function refreshes the
// workspace's access token and retries the call exactly once. Whatever the second
// attempt returns is final. All other errors are returned as-is.
func (r *Request) API(ctx context.Context, endpoint string, data map[string]any, headers http.Header) (*app.Response, error) {
	data = maps.Clone(data)
	if data == nil {
		data = map[string]any{}
	}

	if _, found := data["channel"]; !found && r.data.SingleChannelID() != "" {
		data["channel"] = r.data.SingleChannelID()
	}
	_, callerToken := data["token"]
	if !callerToken && r.data.AccessToken() != "" {
		data["token"] = r.data.AccessToken()
	}

	// First attempt.
	resp, err := r.app.Call(ctx, endpoint, data, headers)
	if !app.IsInvalidAuth(err) {
		return resp, err
	}

	l := zerolog.Ctx(ctx)
	rec, refreshErr := r.app.RefreshToken(ctx, r.data)
	if refreshErr != nil {
		l.Warn().Err(refreshErr).Msg("failed to refresh Slack token after invalid_auth")
		return resp, errors.Join(err, refreshErr)
	}
	r.data = rec

	if !callerToken {
		if token := rec.AccessToken(); token != "" {
			data["token"] = token
		} else {
			delete(data, "token")
		}
	}

	// Second and final attempt.
	l.Debug().Msg("retrying Slack API call after invalid_auth")
	return r.app.Call(ctx, endpoint, data, headers)
}

// Reply posts a message in response to the request. If the payload has a
// "response_url" (slash commands and interactive messages), the message is
// sent there. Otherwise, it's posted with "chat.postMessage". The channel
// defaults to the payload's channel ID.
func (r *Request) Reply(ctx context.Context, args map[string]any) (*app.Response, error) {
	endpoint := "chat.postMessage"
	if u := r.ResponseURL(); u != "" {
		endpoint = u
	}

	args = maps.Clone(args)
	if args == nil {
		args = map[string]any{}
	}
	if _, found := args["channel"]; !found && r.ChannelID() != "" {
		args["channel"] = r.ChannelID()
	}

	return r.API(ctx, endpoint, args, nil)
}

// Upload posts a file in response to the request, with the "files.upload"
// Slack API method. The channels default to the payload's channel ID.
func (r *Request) Upload(ctx context.Context, args map[string]any) (*app.Response, error) {
	args = maps.Clone(args)
	if args == nil {
		args = map[string]any{}
	}
	if _, found := args["channels"]; !found && r.ChannelID() != "" {
		args["channels"] = r.ChannelID()
	}

	return r.API(ctx, "files.upload", args, nil)
}

// Unfurl attaches a rich preview to a link in a message, in response to a
// "link_shared" Events API event. The link defaults to the first one in the
// event. See https://docs.slack.dev/reference/methods/chat.unfurl.
func (r *Request) Unfurl(ctx context.Context, attachment slack.Attachment, link string) (*app.Response, error) {
	event := r.Event()
	if event == nil {
		return nil, ErrNoEvent
	}

	if link == "" {
		link = firstLink(event)
	}
	if link == "" {
		return nil, ErrNoLinks
	}

	data := map[string]any{
		"channel": event["channel"],
		"ts":      event["message_ts"],
		"unfurls": map[string]slack.Attachment{link: attachment},
	}

	return r.API(ctx, "chat.unfurl", data, nil)
}

func firstLink(event map[string]any) string {
	links, ok := event["links"].([]any)
	if !ok || len(links) == 0 {
		return ""
	}
	l, _ := links[0].(map[string]any)
	u, _ := l["url"].(string)
	return u
}
