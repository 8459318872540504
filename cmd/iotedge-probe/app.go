package main

import (
	"context"
	"errors"
	"os"

	"go.uber.org/zap"

	"github.com/ziyasal/iotedge/pkg/config"
	"github.com/ziyasal/iotedge/pkg/hub"
	"github.com/ziyasal/iotedge/pkg/observability"
	"github.com/ziyasal/iotedge/pkg/probe"
	"github.com/ziyasal/iotedge/pkg/protocol/codec"
	"github.com/ziyasal/iotedge/pkg/shutdown"
	"github.com/ziyasal/iotedge/pkg/transport"
)

// run is the main entry point after CLI parsing.
func run(opts Options) int {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return 1
	}

	logger, err := observability.SetupLogger(cfg.Log)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to setup logger: " + err.Error() + "\n")
		return 1
	}
	defer func() { _ = logger.Sync() }()

	// Startup logs + configuration dump; the token never hits the log.
	zap.L().Info("iotedge-probe started", zap.String("app", cfg.AppName))
	logged := *cfg
	if logged.Hub.Token != "" {
		logged.Hub.Token = "****"
	}
	zap.L().Info("effective configuration", zap.Any("config", logged))
	observability.LogEnvironment(logger)

	// Validated by config.Load; parse cannot fail here.
	kind, _ := transport.ParseKind(cfg.Hub.Kind)
	format, _ := codec.ParseFormat(cfg.Hub.Format)

	h := shutdown.Arm(context.Background(), cfg.Probe.ShutdownGrace, logger, func() {
		_ = logger.Sync()
		os.Exit(1)
	})

	client, err := hub.Open(h.Context(), hub.Options{
		Kind:             kind,
		Address:          cfg.Hub.Address,
		Identity:         cfg.Local(),
		Token:            cfg.Hub.Token,
		Format:           format,
		DialTimeout:      cfg.Hub.DialTimeout,
		HandshakeTimeout: cfg.Hub.HandshakeTimeout,
		KeepAlive:        cfg.Hub.KeepAlive,
		Logger:           logger,
	})
	if err != nil {
		zap.L().Error("failed to open hub connection", zap.Error(err))
		h.Complete()
		return 1
	}
	zap.L().Info("hub connection open",
		zap.String("address", cfg.Hub.Address),
		zap.Stringer("kind", kind),
		zap.String("session_id", client.SessionID()))

	target := cfg.Target()
	zap.L().Info("starting invocation loop",
		zap.Stringer("target", target),
		zap.Duration("interval", cfg.Probe.Interval))

	p := probe.New(client, target, probe.Options{
		Interval:      cfg.Probe.Interval,
		MethodTimeout: cfg.Probe.MethodTimeout,
		Reporter:      probe.NewLogReporter(logger),
	})
	if err := p.Run(h.Context()); err != nil && !errors.Is(err, context.Canceled) {
		zap.L().Warn("invocation loop stopped", zap.Error(err))
	}

	if err := client.Close(); err != nil {
		zap.L().Warn("hub connection close", zap.Error(err))
	}
	h.Complete()
	zap.L().Info("iotedge-probe stopped")
	return 0
}
