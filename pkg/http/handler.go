package http

import (
	"errors"
	"net/http"

	"github.com/lithammer/shortuuid/v4"
	"github.com/rs/zerolog/log"

	"github.com/tzrikka/slackdevkit/internal/otel"
	"github.com/tzrikka/slackdevkit/pkg/app"
	"github.com/tzrikka/slackdevkit/pkg/request"
)

// HandlerFunc is an application handler for Slack requests. It's called only
// for verified requests (after loading their workspace record), and for OAuth
// installation callbacks (after updating their workspace record). It's
// responsible for writing the HTTP response.
type HandlerFunc func(w http.ResponseWriter, r *http.Request, sr *request.Request)

// Handler returns an HTTP handler that checks and processes inbound Slack requests,
// before dispatching them to the given application handler (which may be nil):
//
//  1. GET requests without an OAuth code are redirected to the app's
//     authorization URL, if the app is configured for OAuth
//  2. OAuth callbacks (with a code) complete the app's installation
//  3. Requests that fail verification are rejected with a 401 status
//  4. Events API URL verification challenges are echoed back,
//     without accessing the datastore
//  5. All other requests load their workspace record from the datastore
func Handler(a *app.App, next HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()

		l := log.With().Str("http_method", r.Method).Str("url_path", r.URL.EscapedPath()).
			Str("request_id", shortuuid.New()).Logger()
		ctx := l.WithContext(r.Context())
		r = r.WithContext(ctx)

		in, err := request.FromHTTP(r)
		if err != nil {
			l.Warn().Err(err).Msg("bad request: failed to read body")
			if errors.Is(err, request.ErrBodyTooLarge) {
				w.WriteHeader(http.StatusRequestEntityTooLarge)
			} else {
				w.WriteHeader(http.StatusBadRequest)
			}
			return
		}

		sr := request.New(a, in)

		if u := sr.InstallURL(); u != "" {
			l.Debug().Msg("redirecting to Slack OAuth authorization page")
			http.Redirect(w, r, u, http.StatusFound)
			return
		}

		if r.Method == http.MethodGet && sr.Code() != "" {
			if _, err := sr.Install(ctx); err != nil {
				l.Err(err).Msg("failed to complete Slack app installation")
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			dispatch(w, r, sr, next, true)
			return
		}

		if reason := rejection(sr); reason != "" {
			l.Warn().Str("reason", reason).Msg("unauthorized Slack request")
			otel.RequestRejected(ctx, reason)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		// https://docs.slack.dev/reference/events/url_verification
		if c := sr.Challenge(); c != "" {
			l.Debug().Str("event_type", "url_verification").Msg("replied to Slack URL verification event")
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte(c))
			return
		}

		if _, err := sr.Load(ctx); err != nil {
			l.Err(err).Msg("failed to load Slack workspace record")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		l.Debug().Strs("event_types", sr.EventTypes()).Int("retry_num", sr.RetryNumber()).
			Str("team_id", sr.TeamID()).Msg("received Slack request")
		dispatch(w, r, sr, next, false)
	})
}

// rejection returns the first verification check that
// the request fails, or an empty string if it's valid.
func rejection(sr *request.Request) string {
	switch {
	case !sr.ValidTimestamp():
		return "timestamp"
	case !sr.ValidSignature():
		return "signature"
	case !sr.ValidToken():
		return "token"
	default:
		return ""
	}
}

// dispatch calls the application handler, if there is one. Otherwise,
// installations are redirected to the app in Slack, and other requests
// get an empty 200 OK response.
func dispatch(w http.ResponseWriter, r *http.Request, sr *request.Request, next HandlerFunc, install bool) {
	if next != nil {
		next(w, r, sr)
		return
	}

	if install && !sr.Data().Failed() {
		http.Redirect(w, r, sr.AppURL(), http.StatusFound)
		return
	}

	w.WriteHeader(http.StatusOK)
}
