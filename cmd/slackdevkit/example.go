package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/tzrikka/slackdevkit/pkg/devkit"
	"github.com/tzrikka/slackdevkit/pkg/request"
)

const (
	maxFileSize  = 10 << 20 // 10 MiB.
	asyncTimeout = 30 * time.Second
)

// example is a minimal Slack app: it stores the installation time, uploads
// files with the "upload" slash sub-command, unfurls links, and replies to
// direct messages.
type example struct {
	kit *devkit.Kit
}

func (e *example) handle(w http.ResponseWriter, r *http.Request, sr *request.Request) {
	switch {
	case r.Method == http.MethodGet:
		e.installed(w, r, sr)
	case sr.Command() != "":
		e.slashCommand(w, r, sr)
	default:
		e.event(w, r, sr)
	}
}

// installed is called after a successful OAuth installation.
func (e *example) installed(w http.ResponseWriter, r *http.Request, sr *request.Request) {
	if sr.Data().Failed() {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusForbidden)
		_, _ = fmt.Fprintf(w, "Slack app installation failed: %v\n", sr.Get("error"))
		return
	}

	if _, err := sr.Set(r.Context(), "installed_on", time.Now().UnixMilli()); err != nil {
		zerolog.Ctx(r.Context()).Err(err).Msg("failed to store installation time")
	}

	http.Redirect(w, r, sr.AppURL(), http.StatusFound)
}

func (e *example) slashCommand(w http.ResponseWriter, r *http.Request, sr *request.Request) {
	if args, ok := sr.SubCommand("upload"); ok && sr.Match(`https?://`) != nil {
		go e.upload(context.WithoutCancel(r.Context()), sr, args)
		writeMessage(w, slack.Msg{Text: "Uploading..."})
		return
	}

	text := "You never installed"
	if t, ok := sr.Get("installed_on").(float64); ok {
		text = "Installed on " + time.UnixMilli(int64(t)).UTC().Format(time.RFC1123)
	}
	writeMessage(w, slack.Msg{Text: text})
}

func writeMessage(w http.ResponseWriter, msg slack.Msg) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(msg)
}

// upload downloads a file and uploads it to the slash command's channel.
func (e *example) upload(ctx context.Context, sr *request.Request, fileURL string) {
	ctx, cancel := context.WithTimeout(ctx, asyncTimeout)
	defer cancel()

	l := zerolog.Ctx(ctx).With().Str("file_url", fileURL).Logger()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, http.NoBody)
	if err != nil {
		l.Warn().Err(err).Msg("invalid file URL")
		return
	}

	resp, err := e.kit.HTTPClient().Do(req)
	if err != nil {
		l.Warn().Err(err).Msg("failed to download file")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		l.Warn().Int("status_code", resp.StatusCode).Msg("failed to download file")
		return
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxFileSize))
	if err != nil {
		l.Warn().Err(err).Msg("failed to download file")
		return
	}

	name := path.Base(req.URL.Path)
	if name == "." || name == "/" {
		name = "file"
	}

	if _, err := sr.Upload(ctx, map[string]any{"filename": name, "file": b}); err != nil {
		l.Err(err).Msg("failed to upload file to Slack")
	}
}

func (e *example) event(w http.ResponseWriter, r *http.Request, sr *request.Request) {
	// Slack redelivers events that aren't acknowledged
	// within 3 seconds, so all the work is asynchronous.
	w.WriteHeader(http.StatusOK)

	if sr.BotID() != "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), asyncTimeout)
	go func() {
		defer cancel()
		l := zerolog.Ctx(ctx)

		switch {
		case sr.Is("link_shared"):
			a := slack.Attachment{Text: "A successful unfurl!"}
			if _, err := sr.Unfurl(ctx, a, ""); err != nil {
				l.Err(err).Msg("failed to unfurl link")
			}
		case sr.Is("message"):
			if _, err := sr.Reply(ctx, map[string]any{"text": "Hey! I got your message :sunglasses:"}); err != nil {
				l.Err(err).Msg("failed to reply to message")
			}
		}
	}()
}
