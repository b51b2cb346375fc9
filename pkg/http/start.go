package http

import (
	"context"
	"net/http"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"github.com/urfave/cli/v3"

	"github.com/tzrikka/slackdevkit/internal/otel"
)

// Routes registers the application's HTTP handlers in the server's mux,
// after logging and metrics are initialized, but before the server starts.
type Routes func(ctx context.Context, cmd *cli.Command, mux *http.ServeMux) error

// Start returns a CLI action that initializes logging, metrics, and the
// application's routes, and then runs an HTTP server until it's stopped.
func Start(routes Routes) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		initLog(cmd.Bool("dev"))

		mp, err := otel.InitMetrics(ctx, !cmd.Bool("otlp-disabled"))
		if err != nil {
			log.Err(err).Msg("failed to initialize OpenTelemetry metrics")
			return err
		}
		defer func() { _ = mp.Shutdown(context.Background()) }()

		s := newHTTPServer(cmd)
		if routes != nil {
			if err := routes(log.Logger.WithContext(ctx), cmd, s.mux); err != nil {
				log.Err(err).Msg("failed to initialize HTTP routes")
				return err
			}
		}

		return s.run(ctx)
	}
}

// initLog initializes the logger for the HTTP server,
// based on whether it's running in development mode or not.
func initLog(devMode bool) {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	if !devMode {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Caller().Logger()
		return
	}

	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "15:04:05.000",
	}).With().Caller().Logger()

	log.Warn().Msg("********** DEV MODE - UNSAFE IN PRODUCTION! **********")
}
