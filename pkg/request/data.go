package request

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tzrikka/slackdevkit/pkg/app"
	"github.com/tzrikka/slackdevkit/pkg/datastore"
)

var ErrNoCode = errors.New("missing OAuth code")

// Install completes an OAuth installation: it exchanges the request's OAuth code
// for an access token, and updates the request's workspace record with the result.
// An unsuccessful exchange ("ok: false") is not an error: the returned record
// describes the failure, so the application can render it. It's not persisted.
func (r *Request) Install(ctx context.Context) (datastore.Record, error) {
	code := r.Code()
	if code == "" {
		return nil, ErrNoCode
	}

	resp, err := r.app.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	rec := datastore.Record(resp.Data)
	if rec.Failed() {
		zerolog.Ctx(ctx).Warn().Any("error", rec["error"]).Msg("Slack app installation failed")
	} else {
		zerolog.Ctx(ctx).Info().Str("team_id", rec.TeamID()).Msg("Slack app installed")
	}

	return r.Update(ctx, rec)
}

// Data returns the request's workspace record. Don't modify it
// directly, use [Request.Set] or [Request.Update] instead.
func (r *Request) Data() datastore.Record {
	return r.data
}

// Get returns a single field of the request's workspace record, or nil.
func (r *Request) Get(key string) any {
	return r.data[key]
}

// Set updates a single field of the request's workspace record,
// and saves the entire record in the datastore.
func (r *Request) Set(ctx context.Context, key string, value any) (datastore.Record, error) {
	rec := r.data.Clone()
	rec[key] = value
	return r.Update(ctx, rec)
}

// Update replaces the request's workspace record. If the record isn't a
// failed Slack response ("ok: false"), it's also saved in the datastore,
// under its team ID. Concurrent updates of the same team's record are
// not coordinated: the last save wins.
func (r *Request) Update(ctx context.Context, rec datastore.Record) (datastore.Record, error) {
	rec = rec.Clone()
	r.data = rec
	if rec.Failed() {
		return rec, nil
	}

	teamID := rec.TeamID()
	if teamID == "" {
		teamID = r.TeamID()
	}
	if teamID == "" {
		return rec, app.ErrNoTeamID
	}

	saved, err := r.store.Save(ctx, teamID, rec)
	if err != nil {
		return rec, fmt.Errorf("failed to save workspace record: %w", err)
	}

	r.data = saved
	return saved, nil
}

// Load replaces the request's workspace record with the one stored in the
// datastore for the payload's team ID. If the payload doesn't specify a team
// ID, the request's record is empty, and the datastore isn't accessed.
func (r *Request) Load(ctx context.Context) (datastore.Record, error) {
	teamID := r.TeamID()
	if teamID == "" {
		r.data = datastore.Record{}
		return r.data, nil
	}

	rec, err := r.store.Get(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workspace record: %w", err)
	}
	if rec == nil {
		rec = datastore.Record{}
	}

	r.data = rec
	return rec, nil
}
