package http

import (
	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

const (
	DefaultWebhookPort = 14480
	DefaultPathPrefix  = "/slack"
)

// Flags defines CLI flags to configure the HTTP server. These flags can also
// be set using environment variables and the application's configuration file.
func Flags(configFilePath altsrc.StringSourcer) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "webhook-port",
			Usage: "local port number for Slack HTTP webhooks",
			Value: DefaultWebhookPort,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("WEBHOOK_PORT"),
				toml.TOML("http.webhook_port", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "webhook-path-prefix",
			Usage: "URL path prefix for Slack HTTP webhooks",
			Value: DefaultPathPrefix,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("WEBHOOK_PATH_PREFIX"),
				toml.TOML("http.webhook_path_prefix", configFilePath),
			),
		},
		// https://github.com/open-telemetry/opentelemetry-go/blob/main/exporters/otlp/otlpmetric/otlpmetrichttp/doc.go
		&cli.BoolFlag{
			Name:  "otlp-disabled",
			Usage: "disable the export of OpenTelemetry metrics",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("OTEL_EXPORTER_OTLP_DISABLED"),
				toml.TOML("otlp.disabled", configFilePath),
			),
		},
	}
}
