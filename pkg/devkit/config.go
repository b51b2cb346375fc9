package devkit

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/tzrikka/slackdevkit/pkg/app"
	"github.com/tzrikka/slackdevkit/pkg/datastore"
	"github.com/tzrikka/slackdevkit/pkg/etcd"
	"github.com/tzrikka/slackdevkit/pkg/redis"
	"github.com/tzrikka/slackdevkit/pkg/sqldb"
	"github.com/tzrikka/slackdevkit/pkg/thrippy"
)

// AppConfig reads the Slack app's configuration from the CLI flags, and
// overlays secrets from a Thrippy link, if the flags specify one.
func AppConfig(ctx context.Context, cmd *cli.Command) (app.Config, error) {
	cfg := app.Config{
		ClientID:          cmd.String("slack-client-id"),
		ClientSecret:      cmd.String("slack-client-secret"),
		SigningSecret:     cmd.String("slack-signing-secret"),
		Scope:             cmd.String("slack-scope"),
		RedirectURI:       cmd.String("slack-redirect-uri"),
		VerificationToken: cmd.String("slack-verification-token"),
		AccessToken:       cmd.String("slack-access-token"),
		SingleChannelID:   cmd.String("slack-single-channel-id"),
		APIRoot:           cmd.String("slack-api-root"),
	}

	return thrippy.LoadConfig(ctx, cmd, cfg)
}

// OpenDatastore initializes the datastore that the CLI flags select. The
// returned function releases the datastore's resources, and is never nil.
func OpenDatastore(ctx context.Context, cmd *cli.Command) (datastore.Datastore, func() error, error) {
	noop := func() error { return nil }
	kind := cmd.String("datastore")
	zerolog.Ctx(ctx).Info().Str("datastore", kind).Msg("initializing datastore")

	switch kind {
	case "", "file":
		s, err := datastore.NewFileStore(cmd.String("data-file"))
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil

	case "memory":
		return datastore.NewMemoryStore(), noop, nil

	case "etcd":
		s, err := etcd.NewStore(cmd)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil

	case "redis":
		s, err := redis.NewStore(ctx, cmd)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil

	case "sql":
		s, err := sqldb.NewStore(ctx, cmd)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil

	default:
		return nil, noop, fmt.Errorf("unsupported datastore: %q", kind)
	}
}
