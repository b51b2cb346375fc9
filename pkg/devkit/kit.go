// Package devkit wires together a Slack app, its datastore, and the HTTP
// handler that processes its inbound requests, with sensible defaults.
package devkit

import (
	"net/http"
	"sync"
	"time"

	"github.com/tzrikka/slackdevkit/pkg/app"
	"github.com/tzrikka/slackdevkit/pkg/datastore"
	slackhttp "github.com/tzrikka/slackdevkit/pkg/http"
)

const (
	DefaultTimeout = 10 * time.Second
)

// Settings configure a [Kit]. All fields are optional.
type Settings struct {
	App app.Config

	// Store overrides the default datastore (a JSON file).
	Store datastore.Datastore
	// DataFile is the path of the default datastore's JSON file.
	// If empty, it's created under the user's XDG data directory.
	DataFile string

	// Handler is called for verified requests and OAuth installations.
	Handler slackhttp.HandlerFunc

	// HTTPClient overrides the default client for outbound Slack API calls.
	HTTPClient *http.Client
	// Timeout of the default HTTP client (default = [DefaultTimeout]).
	Timeout time.Duration
}

// Kit lazily initializes the components of a Slack app, based on its
// [Settings]. Each component is created once, on first use, and reused
// afterwards. It's safe for concurrent use.
type Kit struct {
	settings Settings

	datastore  func() (datastore.Datastore, error)
	app        func() (*app.App, error)
	httpClient func() *http.Client
	handler    func() (http.Handler, error)

	buildHandler func(*app.App, slackhttp.HandlerFunc) http.Handler
}

// New returns a [Kit] that builds its components on first use.
func New(s Settings) *Kit {
	k := &Kit{settings: s, buildHandler: slackhttp.Handler}

	k.datastore = sync.OnceValues(k.newDatastore)
	k.httpClient = sync.OnceValue(k.newHTTPClient)
	k.app = sync.OnceValues(k.newApp)
	k.handler = sync.OnceValues(k.newHandler)

	return k
}

// Settings returns the settings that the kit was created with.
func (k *Kit) Settings() Settings {
	return k.settings
}

// Datastore returns the configured datastore, or a file-backed one by default.
func (k *Kit) Datastore() (datastore.Datastore, error) {
	return k.datastore()
}

// HTTPClient returns the client for outbound Slack API calls.
func (k *Kit) HTTPClient() *http.Client {
	return k.httpClient()
}

// App returns the Slack app, which uses the kit's datastore and HTTP client.
func (k *Kit) App() (*app.App, error) {
	return k.app()
}

// Handler returns an HTTP handler for all the app's inbound requests
// (Events API, slash commands, interactivity, and OAuth installations).
func (k *Kit) Handler() (http.Handler, error) {
	return k.handler()
}

func (k *Kit) newDatastore() (datastore.Datastore, error) {
	if k.settings.Store != nil {
		return k.settings.Store, nil
	}
	return datastore.NewFileStore(k.settings.DataFile)
}

func (k *Kit) newHTTPClient() *http.Client {
	if k.settings.HTTPClient != nil {
		return k.settings.HTTPClient
	}

	t := k.settings.Timeout
	if t <= 0 {
		t = DefaultTimeout
	}
	return &http.Client{Timeout: t}
}

func (k *Kit) newApp() (*app.App, error) {
	store, err := k.Datastore()
	if err != nil {
		return nil, err
	}
	return app.New(k.settings.App, store, app.WithHTTPClient(k.HTTPClient())), nil
}

func (k *Kit) newHandler() (http.Handler, error) {
	a, err := k.App()
	if err != nil {
		return nil, err
	}
	return k.buildHandler(a, k.settings.Handler), nil
}
