package devkit

import (
	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

const (
	DefaultDatastore = "file"
)

// Flags defines CLI flags to configure the Slack app and its datastore. These flags
// can also be set using environment variables and the application's configuration file.
func Flags(configFilePath altsrc.StringSourcer) []cli.Flag {
	return []cli.Flag{
		// https://docs.slack.dev/authentication/installing-with-oauth
		stringFlag("slack-client-id", "Slack app's client ID", "SLACK_CLIENT_ID", "slack.client_id", configFilePath),
		stringFlag("slack-client-secret", "Slack app's client secret", "SLACK_CLIENT_SECRET", "slack.client_secret", configFilePath),
		stringFlag("slack-scope", "Slack app's OAuth scope", "SLACK_SCOPE", "slack.scope", configFilePath),
		stringFlag("slack-redirect-uri", "Slack app's OAuth redirect URI", "SLACK_REDIRECT_URI", "slack.redirect_uri", configFilePath),

		// https://docs.slack.dev/authentication/verifying-requests-from-slack
		stringFlag("slack-signing-secret", "Slack app's signing secret", "SLACK_SIGNING_SECRET", "slack.signing_secret", configFilePath),
		stringFlag("slack-verification-token", "Slack app's deprecated verification token", "SLACK_VERIFICATION_TOKEN", "slack.verification_token", configFilePath),

		// Single-workspace apps.
		stringFlag("slack-access-token", "static Slack access token, instead of OAuth", "SLACK_ACCESS_TOKEN", "slack.access_token", configFilePath),
		stringFlag("slack-single-channel-id", "static Slack channel ID for outbound calls", "SLACK_SINGLE_CHANNEL_ID", "slack.single_channel_id", configFilePath),
		stringFlag("slack-api-root", "Slack API root URL (default: https://slack.com)", "SLACK_API_ROOT", "slack.api_root", configFilePath),

		&cli.StringFlag{
			Name:  "datastore",
			Usage: `datastore of Slack workspace records: "file", "memory", "etcd", "redis", or "sql"`,
			Value: DefaultDatastore,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("DATASTORE"),
				toml.TOML("datastore.type", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "data-file",
			Usage: "path of the file datastore (default: under $XDG_DATA_HOME)",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("DATA_FILE"),
				toml.TOML("datastore.file", configFilePath),
			),
			TakesFile: true,
		},
	}
}

func stringFlag(name, usage, envVar, tomlKey string, path altsrc.StringSourcer) *cli.StringFlag {
	return &cli.StringFlag{
		Name:  name,
		Usage: usage,
		Sources: cli.NewValueSourceChain(
			cli.EnvVar(envVar),
			toml.TOML(tomlKey, path),
		),
	}
}
