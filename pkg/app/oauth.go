package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tzrikka/slackdevkit/internal/otel"
	"github.com/tzrikka/slackdevkit/pkg/datastore"
)

// ErrNoTeamID means that a workspace record can't be
// persisted, because it doesn't contain a Slack team ID.
var ErrNoTeamID = errors.New("missing Slack team ID")

// ExchangeCode completes an OAuth installation, by exchanging the temporary
// authorization code from the OAuth callback for an access token.
//
// Unsuccessful Slack responses ("ok: false") are returned as-is, without an
// error, so the caller can decide how to handle them. Transport errors are
// returned as errors. See https://docs.slack.dev/reference/methods/oauth.access.
func (a *App) ExchangeCode(ctx context.Context, code string) (*Response, error) {
	c := a.oauthConfig()
	data := nonEmpty(map[string]any{
		"code":          code,
		"scope":         a.cfg.Scope,
		"client_id":     c.ClientID,
		"client_secret": c.ClientSecret,
		"redirect_uri":  c.RedirectURL,
	})

	resp, err := a.call(ctx, c.Endpoint.TokenURL, data, nil, false)
	if apiErr := new(APIError); errors.As(err, &apiErr) {
		zerolog.Ctx(ctx).Warn().Str("error", apiErr.Code).Msg("Slack OAuth code exchange failed")
		return resp, nil
	}
	return resp, err
}

// RefreshToken exchanges a workspace record's refresh token for a new
// access token (for apps that opted into token rotation), and saves the
// updated record in the datastore. If the record doesn't have a refresh
// token, it's returned as-is, without calling Slack. If the refresh fails,
// this function returns the original record and an error.
// See https://docs.slack.dev/authentication/using-token-rotation.
func (a *App) RefreshToken(ctx context.Context, rec datastore.Record) (datastore.Record, error) {
	if rec.RefreshToken() == "" {
		return rec, nil
	}

	teamID := rec.TeamID()
	if teamID == "" {
		return rec, ErrNoTeamID
	}

	l := zerolog.Ctx(ctx).With().Str("team_id", teamID).Logger()
	c := a.oauthConfig()
	data := nonEmpty(map[string]any{
		"grant_type":    "refresh_token",
		"refresh_token": rec.RefreshToken(),
		"client_id":     c.ClientID,
		"client_secret": c.ClientSecret,
	})

	resp, err := a.call(ctx, c.Endpoint.TokenURL, data, nil, false)
	if err != nil {
		otel.TokenRefreshed(ctx, teamID, "error")
		l.Warn().Err(err).Msg("failed to refresh Slack access token")
		return rec, fmt.Errorf("failed to refresh Slack access token: %w", err)
	}

	updated := rec.Clone()
	for k, v := range resp.Data {
		updated[k] = v
	}

	saved, err := a.store.Save(ctx, teamID, updated)
	if err != nil {
		otel.TokenRefreshed(ctx, teamID, "error")
		return rec, fmt.Errorf("failed to save refreshed Slack access token: %w", err)
	}

	otel.TokenRefreshed(ctx, teamID, "ok")
	l.Info().Msg("refreshed Slack access token")
	return saved, nil
}

func nonEmpty(m map[string]any) map[string]any {
	for k, v := range m {
		if v == "" {
			delete(m, k)
		}
	}
	return m
}
