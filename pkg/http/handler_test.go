package http

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/tzrikka/slackdevkit/pkg/app"
	"github.com/tzrikka/slackdevkit/pkg/datastore"
	"github.com/tzrikka/slackdevkit/pkg/request"
)

const signingSecret = "8f742231b10e8888abcd99yyyzzz85a5"

func newSlackRequest(t *testing.T, secret, body string) *http.Request {
	t.Helper()

	r := httptest.NewRequestWithContext(t.Context(), http.MethodPost, "/slack/events", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	r.Header.Set(request.TimestampHeader, ts)
	if secret != "" {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write([]byte("v0:" + ts + ":" + body))
		r.Header.Set(request.SignatureHeader, "v0="+hex.EncodeToString(mac.Sum(nil)))
	}

	return r
}

func TestHandlerChallenge(t *testing.T) {
	store := datastore.NewMemoryStore()
	h := Handler(app.New(app.Config{}, store), func(w http.ResponseWriter, _ *http.Request, _ *request.Request) {
		t.Error("application handler called for a URL verification challenge")
	})

	w := httptest.NewRecorder()
	body := `{"type":"url_verification","challenge":"abc123","team_id":"T111"}`
	h.ServeHTTP(w, newSlackRequest(t, "", body))

	if w.Code != http.StatusOK {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusOK)
	}
	if got := w.Body.String(); got != "abc123" {
		t.Errorf("response body = %q, want %q", got, "abc123")
	}
	if got := w.Header().Get("Content-Type"); got != "text/plain" {
		t.Errorf("content type = %q, want %q", got, "text/plain")
	}
	if gets, saves := store.Accesses(); gets != 0 || saves != 0 {
		t.Errorf("datastore accesses = %d, %d, want 0, 0", gets, saves)
	}
}

func TestHandlerRejections(t *testing.T) {
	tests := []struct {
		name string
		cfg  app.Config
		req  func(t *testing.T) *http.Request
	}{
		{
			name: "bad_signature",
			cfg:  app.Config{SigningSecret: signingSecret},
			req: func(t *testing.T) *http.Request {
				return newSlackRequest(t, "wrong secret", `{"challenge":"abc123"}`)
			},
		},
		{
			name: "missing_signature",
			cfg:  app.Config{SigningSecret: signingSecret},
			req: func(t *testing.T) *http.Request {
				return newSlackRequest(t, "", `{"challenge":"abc123"}`)
			},
		},
		{
			name: "stale_timestamp",
			req: func(t *testing.T) *http.Request {
				r := newSlackRequest(t, "", `{"challenge":"abc123"}`)
				r.Header.Set(request.TimestampHeader, strconv.FormatInt(time.Now().Add(-time.Hour).Unix(), 10))
				return r
			},
		},
		{
			name: "wrong_token",
			cfg:  app.Config{VerificationToken: "vtoken"},
			req: func(t *testing.T) *http.Request {
				return newSlackRequest(t, "", `{"token":"other","challenge":"abc123"}`)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := datastore.NewMemoryStore()
			h := Handler(app.New(tt.cfg, store), nil)

			w := httptest.NewRecorder()
			h.ServeHTTP(w, tt.req(t))

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status code = %d, want %d", w.Code, http.StatusUnauthorized)
			}
			if w.Body.Len() != 0 {
				t.Errorf("response body = %q, want empty", w.Body.String())
			}
			if gets, saves := store.Accesses(); gets != 0 || saves != 0 {
				t.Errorf("datastore accesses = %d, %d, want 0, 0", gets, saves)
			}
		})
	}
}

func TestHandlerInstallRedirect(t *testing.T) {
	h := Handler(app.New(app.Config{ClientID: "1234.5678", Scope: "commands"}, nil), nil)

	w := httptest.NewRecorder()
	r := httptest.NewRequestWithContext(t.Context(), http.MethodGet, "/slack?state=s1", http.NoBody)
	h.ServeHTTP(w, r)

	if w.Code != http.StatusFound {
		t.Fatalf("status code = %d, want %d", w.Code, http.StatusFound)
	}
	loc := w.Header().Get("Location")
	if !strings.HasPrefix(loc, app.DefaultRootURL+"/oauth/authorize?") {
		t.Errorf("redirect location = %q", loc)
	}
	if !strings.Contains(loc, "client_id=1234.5678") || !strings.Contains(loc, "state=s1") {
		t.Errorf("redirect location = %q, want client ID and state", loc)
	}
}

func TestHandlerInstall(t *testing.T) {
	slack := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/oauth.access" {
			t.Errorf("Slack API path = %q, want %q", r.URL.Path, "/api/oauth.access")
		}
		if err := r.ParseForm(); err != nil || r.PostForm.Get("code") != "c0de" {
			t.Errorf("OAuth code = %q, want %q", r.PostForm.Get("code"), "c0de")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"access_token":"xoxp-1","team_id":"T111","app_id":"A111"}`))
	}))
	defer slack.Close()

	tests := []struct {
		name     string
		next     HandlerFunc
		wantCode int
		wantLoc  string
	}{
		{
			name:     "redirect_to_app",
			wantCode: http.StatusFound,
			wantLoc:  slack.URL + "/app_redirect?app=A111",
		},
		{
			name: "dispatch",
			next: func(w http.ResponseWriter, _ *http.Request, sr *request.Request) {
				if sr.Data().AccessToken() != "xoxp-1" {
					t.Errorf("workspace record = %v", sr.Data())
				}
				w.WriteHeader(http.StatusNoContent)
			},
			wantCode: http.StatusNoContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := datastore.NewMemoryStore()
			a := app.New(app.Config{APIRoot: slack.URL, ClientID: "id", ClientSecret: "secret"}, store)

			w := httptest.NewRecorder()
			q := url.Values{"code": {"c0de"}, "state": {"s1"}}
			r := httptest.NewRequestWithContext(t.Context(), http.MethodGet, "/slack?"+q.Encode(), http.NoBody)
			Handler(a, tt.next).ServeHTTP(w, r)

			if w.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", w.Code, tt.wantCode)
			}
			if loc := w.Header().Get("Location"); loc != tt.wantLoc {
				t.Errorf("redirect location = %q, want %q", loc, tt.wantLoc)
			}
			if rec, _ := store.Get(t.Context(), "T111"); rec.AccessToken() != "xoxp-1" {
				t.Errorf("saved record = %v", rec)
			}
		})
	}
}

func TestHandlerInstallFailure(t *testing.T) {
	slack := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer slack.Close()

	store := datastore.NewMemoryStore()
	a := app.New(app.Config{APIRoot: slack.URL, ClientID: "id"}, store)

	w := httptest.NewRecorder()
	r := httptest.NewRequestWithContext(t.Context(), http.MethodGet, "/slack?code=c0de", http.NoBody)
	Handler(a, nil).ServeHTTP(w, r)

	if w.Code != http.StatusBadGateway {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusBadGateway)
	}
	if _, saves := store.Accesses(); saves != 0 {
		t.Errorf("datastore saves = %d, want 0", saves)
	}
}

func TestHandlerDispatch(t *testing.T) {
	store := datastore.NewMemoryStore()
	if _, err := store.Save(t.Context(), "T111", datastore.Record{"team_id": "T111", "installed_on": "yesterday"}); err != nil {
		t.Fatal(err)
	}

	var got *request.Request
	h := Handler(app.New(app.Config{SigningSecret: signingSecret}, store),
		func(w http.ResponseWriter, _ *http.Request, sr *request.Request) {
			got = sr
			w.WriteHeader(http.StatusOK)
		})

	body := url.Values{"team_id": {"T111"}, "command": {"/devkit"}, "text": {"hello"}}.Encode()
	r := newSlackRequest(t, signingSecret, body)
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", w.Code, http.StatusOK)
	}
	if got == nil {
		t.Fatal("application handler wasn't called")
	}
	if got.Command() != "/devkit" || got.Text() != "hello" {
		t.Errorf("payload = %v", got.Fields)
	}
	if got.Get("installed_on") != "yesterday" {
		t.Errorf("workspace record = %v", got.Data())
	}
}

func TestHandlerBodyTooLarge(t *testing.T) {
	h := Handler(app.New(app.Config{}, nil), nil)

	body := strings.Repeat("a", request.MaxBodySize+1)
	r := httptest.NewRequestWithContext(t.Context(), http.MethodPost, "/slack", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusRequestEntityTooLarge)
	}
}
