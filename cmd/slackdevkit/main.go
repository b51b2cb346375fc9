package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli/v3"

	"github.com/tzrikka/slackdevkit/pkg/devkit"
	"github.com/tzrikka/slackdevkit/pkg/etcd"
	slackhttp "github.com/tzrikka/slackdevkit/pkg/http"
	"github.com/tzrikka/slackdevkit/pkg/redis"
	"github.com/tzrikka/slackdevkit/pkg/sqldb"
	"github.com/tzrikka/slackdevkit/pkg/thrippy"
	"github.com/tzrikka/xdg"
)

const (
	ConfigDirName  = "slackdevkit"
	ConfigFileName = "config.toml"
)

func main() {
	buildInfo, _ := debug.ReadBuildInfo()
	configFilePath := configFile()

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:  "dev",
			Usage: "simple setup, but unsafe for production",
		},
	}
	flags = append(flags, slackhttp.Flags(configFilePath)...)
	flags = append(flags, devkit.Flags(configFilePath)...)
	flags = append(flags, thrippy.Flags(configFilePath)...)
	flags = append(flags, etcd.Flags(configFilePath)...)
	flags = append(flags, redis.Flags(configFilePath)...)
	flags = append(flags, sqldb.Flags(configFilePath)...)

	cmd := &cli.Command{
		Name:    "slackdevkit",
		Usage:   "Serve a Slack app's Events API, slash commands, interactivity, and OAuth installations",
		Version: buildInfo.Main.Version,
		Flags:   flags,
		Action:  slackhttp.Start(routes),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

// configFile returns the path to the app's configuration file.
// It also creates an empty file if it doesn't already exist.
func configFile() altsrc.StringSourcer {
	path, err := xdg.CreateFile(xdg.ConfigHome, ConfigDirName, ConfigFileName)
	if err != nil {
		log.Fatal().Err(err).Caller().Send()
	}
	return altsrc.StringSourcer(path)
}

// routes initializes the Slack app and its datastore,
// and registers the app's handler under the path prefix.
func routes(ctx context.Context, cmd *cli.Command, mux *http.ServeMux) error {
	cfg, err := devkit.AppConfig(ctx, cmd)
	if err != nil {
		return err
	}

	store, closeStore, err := devkit.OpenDatastore(ctx, cmd)
	if err != nil {
		return err
	}
	context.AfterFunc(ctx, func() {
		if err := closeStore(); err != nil {
			log.Warn().Err(err).Msg("failed to close datastore")
		}
	})

	e := &example{}
	e.kit = devkit.New(devkit.Settings{App: cfg, Store: store, Handler: e.handle})
	h, err := e.kit.Handler()
	if err != nil {
		return err
	}

	prefix := "/" + strings.Trim(cmd.String("webhook-path-prefix"), "/")
	if prefix == "/" {
		mux.Handle("/", h)
	} else {
		mux.Handle(prefix, h)
		mux.Handle(prefix+"/", h)
	}

	zerolog.Ctx(ctx).Info().Str("path_prefix", prefix).Bool("oauth", cfg.ClientID != "").
		Bool("signed", cfg.SigningSecret != "").Msg("Slack app routes registered")
	return nil
}
