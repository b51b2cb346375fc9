package app

import (
	"reflect"
	"testing"

	"github.com/tzrikka/slackdevkit/pkg/datastore"
)

func TestExchangeCode(t *testing.T) {
	s := newSlackServer(t, `{"ok":true,"access_token":"xoxp-1111","team_id":"T111","scope":"commands"}`)
	a := New(Config{
		APIRoot:      s.URL,
		ClientID:     "id",
		ClientSecret: "secret",
		Scope:        "commands",
		RedirectURI:  "https://example.com/oauth",
		AccessToken:  "xoxb-static",
	}, nil)

	resp, err := a.ExchangeCode(t.Context(), "code123")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}

	if s.path != "/api/oauth.access" {
		t.Errorf("request path = %q, want %q", s.path, "/api/oauth.access")
	}
	want := map[string][]string{
		"code":          {"code123"},
		"client_id":     {"id"},
		"client_secret": {"secret"},
		"scope":         {"commands"},
		"redirect_uri":  {"https://example.com/oauth"},
	}
	if !reflect.DeepEqual(s.form, want) {
		t.Errorf("request form = %v, want %v", s.form, want)
	}
	if resp.Data["access_token"] != "xoxp-1111" {
		t.Errorf("ExchangeCode() response = %v", resp.Data)
	}
}

func TestExchangeCodeFailure(t *testing.T) {
	s := newSlackServer(t, `{"ok":false,"error":"invalid_code"}`)
	a := New(Config{APIRoot: s.URL, ClientID: "id"}, nil)

	resp, err := a.ExchangeCode(t.Context(), "bad")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v, want nil", err)
	}
	if resp.OK() || resp.ErrorCode() != "invalid_code" {
		t.Errorf("ExchangeCode() response = %v, want invalid_code", resp.Data)
	}
}

func TestRefreshTokenWithoutRefreshToken(t *testing.T) {
	s := newSlackServer(t, `{"ok":true}`)
	store := datastore.NewMemoryStore()
	a := New(Config{APIRoot: s.URL}, store)

	rec := datastore.Record{"team_id": "T111", "access_token": "xoxb-1111"}
	got, err := a.RefreshToken(t.Context(), rec)
	if err != nil {
		t.Fatalf("RefreshToken() error = %v", err)
	}
	if !reflect.DeepEqual(got, rec) {
		t.Errorf("RefreshToken() = %v, want %v", got, rec)
	}
	if s.calls != 0 {
		t.Errorf("RefreshToken() sent %d requests, want 0", s.calls)
	}
	if _, saves := store.Accesses(); saves != 0 {
		t.Errorf("RefreshToken() saved %d records, want 0", saves)
	}
}

func TestRefreshToken(t *testing.T) {
	s := newSlackServer(t, `{"ok":true,"access_token":"xoxe.xoxb-2222","refresh_token":"xoxe-1-new","expires_in":43200}`)
	store := datastore.NewMemoryStore()
	a := New(Config{APIRoot: s.URL, ClientID: "id", ClientSecret: "secret"}, store)

	rec := datastore.Record{
		"team":          map[string]any{"id": "T111"},
		"access_token":  "xoxe.xoxb-1111",
		"refresh_token": "xoxe-1-old",
		"installed_on":  "2025-01-01",
	}
	got, err := a.RefreshToken(t.Context(), rec)
	if err != nil {
		t.Fatalf("RefreshToken() error = %v", err)
	}

	wantForm := map[string][]string{
		"grant_type":    {"refresh_token"},
		"refresh_token": {"xoxe-1-old"},
		"client_id":     {"id"},
		"client_secret": {"secret"},
	}
	if !reflect.DeepEqual(s.form, wantForm) {
		t.Errorf("request form = %v, want %v", s.form, wantForm)
	}

	if got.AccessToken() != "xoxe.xoxb-2222" || got.RefreshToken() != "xoxe-1-new" {
		t.Errorf("RefreshToken() tokens = %q, %q", got.AccessToken(), got.RefreshToken())
	}
	if got.TeamID() != "T111" || got["installed_on"] != "2025-01-01" {
		t.Errorf("RefreshToken() lost existing fields: %v", got)
	}
	if rec.AccessToken() != "xoxe.xoxb-1111" {
		t.Errorf("RefreshToken() modified the input record: %v", rec)
	}

	saved, err := store.Get(t.Context(), "T111")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(saved, got) {
		t.Errorf("saved record = %v, want %v", saved, got)
	}
}

func TestRefreshTokenFailure(t *testing.T) {
	s := newSlackServer(t, `{"ok":false,"error":"invalid_refresh_token"}`)
	store := datastore.NewMemoryStore()
	a := New(Config{APIRoot: s.URL}, store)

	rec := datastore.Record{"team_id": "T111", "refresh_token": "xoxe-1-old"}
	got, err := a.RefreshToken(t.Context(), rec)
	if err == nil {
		t.Fatal("RefreshToken() error = nil, want an error")
	}
	if !reflect.DeepEqual(got, rec) {
		t.Errorf("RefreshToken() = %v, want the original record", got)
	}
	if store.Len() != 0 {
		t.Errorf("RefreshToken() saved a record after a failure")
	}
}

func TestRefreshTokenWithoutTeamID(t *testing.T) {
	a := New(Config{}, nil)
	if _, err := a.RefreshToken(t.Context(), datastore.Record{"refresh_token": "r"}); err != ErrNoTeamID {
		t.Errorf("RefreshToken() error = %v, want %v", err, ErrNoTeamID)
	}
}
