// Package datastore defines the key-value persistence contract for Slack
// workspace records, and provides file-backed and in-memory implementations.
// Other backends (etcd, Redis, SQL) live in their own packages.
//
// Records are keyed by Slack team ID. [Datastore.Get] followed by
// [Datastore.Save] is a non-atomic read-then-write: two concurrent requests
// for the same team may race, and the later save silently wins.
package datastore

import (
	"context"
	"encoding/json"
	"maps"
)

// Datastore is the minimal persistence contract that Slack request
// handling depends on. Implementations must be safe for concurrent use.
type Datastore interface {
	// Get returns the record stored under the given team ID, or an
	// empty (non-nil) record if there isn't one.
	Get(ctx context.Context, teamID string) (Record, error)
	// Save stores the given record under the given team ID,
	// replacing any previous record, and returns the saved record.
	Save(ctx context.Context, teamID string, r Record) (Record, error)
}

// Record is the persisted state of a single Slack workspace: the OAuth
// response fields (e.g. "team_id", "access_token", "refresh_token",
// "bot", "app_id"), and arbitrary integration-defined extensions.
type Record map[string]any

// TeamID returns the record's Slack team ID, from either
// the top-level "team_id" field or the nested "team.id" field.
func (r Record) TeamID() string {
	if id := r.str("team_id"); id != "" {
		return id
	}
	if team, ok := r["team"].(map[string]any); ok {
		id, _ := team["id"].(string)
		return id
	}
	return ""
}

// AccessToken returns the workspace's OAuth access token.
func (r Record) AccessToken() string {
	return r.str("access_token")
}

// RefreshToken returns the workspace's OAuth refresh token, if token rotation is enabled.
func (r Record) RefreshToken() string {
	return r.str("refresh_token")
}

// AppID returns the ID of the installed Slack app.
func (r Record) AppID() string {
	return r.str("app_id")
}

// SingleChannelID returns the channel that a single-channel installation is limited to.
func (r Record) SingleChannelID() string {
	return r.str("single_channel_id")
}

// Failed reports whether the record is an unsuccessful Slack API
// response, i.e. it contains an explicit "ok" field set to false.
func (r Record) Failed() bool {
	ok, found := r["ok"].(bool)
	return found && !ok
}

// Clone returns a shallow copy of the record. Nil records become empty ones.
func (r Record) Clone() Record {
	if r == nil {
		return Record{}
	}
	return maps.Clone(r)
}

func (r Record) str(key string) string {
	s, _ := r[key].(string)
	return s
}

// Decode parses a JSON-encoded record, for use by [Datastore] implementations.
// Empty input and JSON null both yield an empty (non-nil) record.
func Decode(b []byte) (Record, error) {
	if len(b) == 0 {
		return Record{}, nil
	}

	r := Record{}
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, err
	}
	if r == nil { // JSON "null".
		r = Record{}
	}
	return r, nil
}
