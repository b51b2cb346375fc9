package thrippy

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/tzrikka/slackdevkit/pkg/app"
)

// ApplySecrets overlays the secrets of a Thrippy link onto the given Slack app
// configuration. Only known keys with non-empty values override existing fields.
func ApplySecrets(cfg app.Config, secrets map[string]string) app.Config {
	set := func(field *string, keys ...string) {
		for _, k := range keys {
			if v := secrets[k]; v != "" {
				*field = v
				return
			}
		}
	}

	set(&cfg.ClientID, "client_id")
	set(&cfg.ClientSecret, "client_secret")
	set(&cfg.SigningSecret, "signing_secret")
	set(&cfg.VerificationToken, "verification_token")
	set(&cfg.AccessToken, "bot_token", "access_token")

	return cfg
}

// LoadConfig reads the Slack app's secrets from the Thrippy link that's specified
// in the CLI flags, if there is one, and overlays them onto the given configuration.
func LoadConfig(ctx context.Context, cmd *cli.Command, cfg app.Config) (app.Config, error) {
	id := cmd.String("thrippy-link-id")
	if id == "" {
		return cfg, nil
	}

	l := zerolog.Ctx(ctx).With().Str("thrippy_link_id", id).Logger()

	creds, err := SecureCreds(cmd)
	if err != nil {
		return cfg, err
	}

	template, secrets, err := LinkData(ctx, cmd.String("thrippy-server-addr"), creds, id)
	if err != nil {
		return cfg, fmt.Errorf("failed to read Thrippy link: %w", err)
	}
	if template == "" {
		return cfg, fmt.Errorf("link not found in Thrippy: %s", id)
	}
	if !strings.HasPrefix(template, "slack") {
		l.Warn().Str("template", template).Msg("Thrippy link isn't based on a Slack template")
	}

	l.Info().Str("template", template).Int("secrets", len(secrets)).Msg("loaded Slack app secrets from Thrippy")
	return ApplySecrets(cfg, secrets), nil
}
