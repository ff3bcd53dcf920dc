package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"httpwire/application/http/actor/client"
	"httpwire/application/http/transfer"
	"httpwire/application/util/domain"
	"httpwire/internal/config"
	"httpwire/internal/logger"
	"httpwire/internal/metrics"
	"httpwire/transport"

	"github.com/alecthomas/kong"
	"github.com/benbjohnson/clock"
	"github.com/fatih/color"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Set by ldflags.
var version = "dev"

func main() {
	var cli config.CLI
	kong.Parse(&cli,
		kong.Name("httpwire"),
		kong.Description("Send one HTTP/1.1 request over a raw connection and print the response."),
		kong.Vars{"version": version},
	)

	var r *runner
	app := fx.New(
		fx.NopLogger,
		fx.Supply(&cli),
		fx.Provide(
			config.Load,
			newLogger,
			metrics.New,
			newConnector,
			newClient,
			newRunner,
		),
		fx.Populate(&r),
	)
	if err := app.Err(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := r.run(ctx)
	stop()
	os.Exit(code)
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logger.New(cfg.Log.Level, color.Error)
}

func newConnector(cfg *config.Config, log *zap.Logger) (*transport.Connector, error) {
	var opts transport.ConnectorOptions
	if len(cfg.Client.Resolve) > 0 {
		lookuper, err := domain.ParseEntries(cfg.Client.Resolve)
		if err != nil {
			return nil, err
		}
		opts.Lookuper = lookuper
	}

	return transport.NewConnector(transport.NewDialer(cfg.Client.ConnectTimeout()), log, opts), nil
}

func newClient(cfg *config.Config, conn *transport.Connector, log *zap.Logger, m *metrics.Metrics) (*client.Client, error) {
	mode, err := transfer.ParseMode(cfg.Client.DecodeMode)
	if err != nil {
		return nil, err
	}

	return client.New(conn, log, clock.New(), client.Options{
		Receive: client.ReceiveOptions{
			DecodeMode:    mode,
			ReadChunkSize: cfg.Client.ReadChunkSize,
		},
		Redirect: client.RedirectOptions{Max: cfg.Client.MaxRedirects},
		Observer: m,
	}), nil
}
