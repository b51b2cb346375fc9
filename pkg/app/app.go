// Package app manages a Slack app's credentials: it builds the OAuth
// authorization URL, verifies inbound requests, exchanges and refreshes
// OAuth tokens, and issues all the authenticated outbound Slack API calls.
package app

import (
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/tzrikka/slackdevkit/pkg/datastore"
)

const (
	DefaultRootURL = "https://slack.com"

	timeout = 3 * time.Second
)

// Config is the static configuration of a Slack app.
// All the fields are optional, depending on the app's distribution mode.
type Config struct {
	ClientID          string
	ClientSecret      string
	SigningSecret     string
	Scope             string // Comma-delimited.
	RedirectURI       string
	VerificationToken string

	// AccessToken is a static token for single-workspace apps,
	// instead of per-workspace tokens issued by OAuth installations.
	AccessToken string
	// SingleChannelID is a static channel ID for single-channel apps.
	SingleChannelID string

	// APIRoot overrides [DefaultRootURL]. It may be a
	// bare host name (e.g. "slack.com") or a full base URL.
	APIRoot string
}

// App is a configured Slack app. It's immutable, and safe for concurrent use.
type App struct {
	cfg    Config
	store  datastore.Datastore
	client *http.Client
	now    func() time.Time
}

// Option customizes an [App] in [New].
type Option func(*App)

// WithHTTPClient overrides the default HTTP client (which has a short timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(a *App) {
		a.client = c
	}
}

// WithClock overrides the current time source, for timestamp verification.
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		a.now = now
	}
}

// New initializes a Slack app. If the datastore is nil,
// workspace records are kept in memory only.
func New(cfg Config, store datastore.Datastore, opts ...Option) *App {
	if store == nil {
		store = datastore.NewMemoryStore()
	}

	a := &App{
		cfg:    cfg,
		store:  store,
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Config returns the app's configuration.
func (a *App) Config() Config {
	return a.cfg
}

// Datastore returns the app's datastore of Slack workspace records.
func (a *App) Datastore() datastore.Datastore {
	return a.store
}

// RootURL returns the base URL of all Slack API calls
// and OAuth pages, without a trailing slash.
func (a *App) RootURL() string {
	root := strings.TrimSuffix(a.cfg.APIRoot, "/")
	switch {
	case root == "":
		return DefaultRootURL
	case strings.Contains(root, "://"):
		return root
	default:
		return "https://" + root
	}
}

// APIURL resolves a Slack API method name (e.g. "chat.postMessage") into a
// full URL. Absolute URLs (e.g. incoming webhooks) are returned unchanged.
func (a *App) APIURL(endpoint string) string {
	if isAbsolute(endpoint) {
		return endpoint
	}
	return a.RootURL() + "/api/" + endpoint
}

func isAbsolute(endpoint string) bool {
	return len(endpoint) >= 4 && strings.EqualFold(endpoint[:4], "http")
}

// AuthURL builds the "Add to Slack" URL, based on the app's client ID, scope and
// redirect URI. The state and single-channel query parameters are optional.
// See https://docs.slack.dev/authentication/installing-with-oauth.
func (a *App) AuthURL(state, singleChannel string) string {
	var opts []oauth2.AuthCodeOption
	if singleChannel != "" {
		opts = append(opts, oauth2.SetAuthURLParam("single_channel", singleChannel))
	}
	return a.oauthConfig().AuthCodeURL(state, opts...)
}

func (a *App) oauthConfig() *oauth2.Config {
	root := a.RootURL()
	c := &oauth2.Config{
		ClientID:     a.cfg.ClientID,
		ClientSecret: a.cfg.ClientSecret,
		RedirectURL:  a.cfg.RedirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:   root + "/oauth/authorize",
			TokenURL:  root + "/api/oauth.access",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	if a.cfg.Scope != "" {
		c.Scopes = []string{a.cfg.Scope}
	}

	return c
}
