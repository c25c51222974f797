// Command voiced runs the voice layer as a local daemon. It serves the
// host bridge websocket a page connects to and an HTTP API to speak, listen
// and inspect the active backends.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kbukum/voicekit/hostbridge"
	"github.com/kbukum/voicekit/logger"
	"github.com/kbukum/voicekit/observability"
	"github.com/kbukum/voicekit/platform"
	"github.com/kbukum/voicekit/server"
	"github.com/kbukum/voicekit/server/endpoint"
	"github.com/kbukum/voicekit/server/middleware"
	"github.com/kbukum/voicekit/sse"
	"github.com/kbukum/voicekit/transcript"
	"github.com/kbukum/voicekit/version"
)

const serviceName = "voiced"

func main() {
	configPath := flag.String("config", "", "path to config.yml (default: discovered)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "voiced: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Logging)
	log := logger.Get(serviceName)
	log.Info("starting", logger.Fields(
		"version", version.GetFullVersion(),
		logger.FieldPlatform, cfg.Voice.Platform,
		logger.FieldLocale, cfg.Voice.Locale,
	))

	telemetry, err := observability.Setup(ctx, cfg.Telemetry, observability.Service{
		Name:        cfg.Name,
		Version:     version.GetShortVersion(),
		Environment: cfg.Environment,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(flushCtx); err != nil {
			log.Warn("telemetry flush failed", logger.MergeWithError(nil, err))
		}
	}()

	voiceMetrics, err := observability.NewVoiceMetrics(observability.Meter(serviceName))
	if err != nil {
		return err
	}
	requestMetrics, err := observability.NewMetrics(observability.Meter(serviceName))
	if err != nil {
		return err
	}

	hub := hostbridge.NewHub(hostbridge.Options{
		Timeout:     cfg.Voice.BridgeTimeout,
		CheckOrigin: middleware.OriginChecker(cfg.Server.BridgeOrigins),
		Logger:      logger.Get("hostbridge"),
	})
	transcripts := transcript.NewLog(cfg.Transcripts, logger.Get("transcript"))
	events := sse.NewHub(logger.Get("sse"))
	transcripts.Subscribe(func(e transcript.Entry) {
		if err := events.Publish(sse.TopicTranscripts, sse.EventTranscript, e); err != nil {
			log.Warn("transcript not streamed", logger.MergeWithError(nil, err))
		}
	})
	go events.Run()

	asm, err := platform.Assemble(ctx, platform.Deps{
		Config:  cfg.Voice,
		Bridge:  hub,
		Sink:    transcripts,
		Metrics: voiceMetrics,
		Logger:  logger.Get("platform"),
	})
	if err != nil {
		return fmt.Errorf("assemble voice backends: %w", err)
	}
	// Native recognizers bind now; script-hosted ones wait for a page.
	asm.Attach(ctx)
	hub.OnConnect(func(ctx context.Context, c *hostbridge.Conn) {
		ready := asm.Attach(ctx)
		log.Info("page attached", logger.Fields("session_id", c.Session(), "page", c.Page(), "recognition_ready", ready))
	})

	srv := server.New(cfg.Server, log)
	srv.ApplyMiddleware(serviceName, requestMetrics)
	srv.RegisterDefaultEndpoints(serviceName, version.GetShortVersion(),
		endpoint.Capability("tts", asm.TTS.Candidates),
		endpoint.Capability("stt", asm.STT.Candidates),
		endpoint.Bridge(hub),
	)
	srv.RegisterVoiceRoutes(server.VoiceRoutes{
		Speaker:     asm.TTS,
		Listener:    asm.STT,
		Transcripts: transcripts,
		Bridge:      hub,
		Events:      events,
	})
	srv.LogRoutes()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		return shutdownHTTP(context.WithoutCancel(gctx), srv, events)
	})
	g.Go(func() error {
		<-gctx.Done()
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 5*time.Second)
		defer cancel()
		_ = hub.Close()
		return asm.Close(closeCtx)
	})

	err = g.Wait()
	log.Info("stopped")
	return err
}

// shutdownHTTP ends open event streams before draining the server: a
// stream handler only returns once its hub stops, and the server's
// shutdown waits for every handler.
func shutdownHTTP(ctx context.Context, srv interface{ Stop(context.Context) error }, events interface{ Stop() }) error {
	events.Stop()
	return srv.Stop(ctx)
}
