// Command orchestratord runs the graph orchestrator's run-submission
// surface: startRun/subscribe/cancel over HTTP, backed by a persistent
// connection to the remote agent gateway (spec.md §6). The visual canvas
// editor, REST surface beyond this minimum, and config file loading are
// explicitly out of the core's scope (spec.md §1); this binary is the
// thinnest host that can exercise the engine end to end.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/flowkit-ai/graphrunner/gateway"
	"github.com/flowkit-ai/graphrunner/graph"
	"github.com/flowkit-ai/graphrunner/graph/emit"
	"github.com/flowkit-ai/graphrunner/registry"
)

func main() {
	var (
		gatewayURL   = flag.String("gateway-url", "ws://localhost:8787/gateway", "gateway websocket URL")
		gatewayToken = flag.String("gateway-token", os.Getenv("GATEWAY_TOKEN"), "gateway auth token")
		clientID     = flag.String("client-id", "orchestratord", "client ID presented during the handshake")
		identityPath = flag.String("identity-path", defaultIdentityPath(), "path to the persisted device identity")
		listenAddr   = flag.String("listen", ":8080", "HTTP listen address")
		bufferSize   = flag.Int("event-buffer", registry.DefaultBufferSize, "per-run event backlog size")
		traceEvents  = flag.Bool("trace", true, "export a span per run event via OpenTelemetry")
		logEvents    = flag.Bool("log-events", false, "also log every run event as a JSON line on stdout")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	identity, err := gateway.LoadOrCreateIdentity(*identityPath)
	if err != nil {
		logger.Error("load device identity", "err", err)
		os.Exit(1)
	}

	cfg := gateway.DefaultConfig()
	cfg.URL = *gatewayURL
	cfg.Token = *gatewayToken
	cfg.ClientID = *clientID
	cfg.Scopes = []string{"agents.read", "models.read", "sessions.write", "chat.write"}

	client := gateway.NewClient(cfg, identity)
	defer client.Close()

	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.OpenTimeout+5*time.Second)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		logger.Error("connect to gateway", "err", err)
		os.Exit(1)
	}
	logger.Info("connected to gateway", "url", cfg.URL, "state", client.State().String())

	metrics := graph.NewMetrics(prometheus.DefaultRegisterer)

	regOpts := []registry.Option{registry.WithBufferSize(*bufferSize)}
	if obs := buildObservabilitySink(*traceEvents, *logEvents); obs != nil {
		regOpts = append(regOpts, registry.WithObservabilitySink(obs))
	}
	reg := registry.New(client, regOpts...)

	srv := newServer(reg, metrics, logger)

	httpSrv := &http.Server{
		Addr:              *listenAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", *listenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", "err", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
}

// buildObservabilitySink assembles the run-event sinks layered on top of
// the registry's own subscription backlog, per the enabled flags. A nil
// return means the registry falls back to just its backlog.
func buildObservabilitySink(traceEvents, logEvents bool) emit.Sink {
	var sinks []emit.Sink
	if traceEvents {
		tp := sdktrace.NewTracerProvider()
		otel.SetTracerProvider(tp)
		sinks = append(sinks, emit.NewOTelSink(otel.Tracer("graphrunner")))
	}
	if logEvents {
		sinks = append(sinks, emit.NewLogSink(os.Stdout, true))
	}
	if len(sinks) == 0 {
		return nil
	}
	return emit.NewMultiSink(sinks...)
}

func defaultIdentityPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "device.json"
	}
	return filepath.Join(home, ".config", "graphrunner", "device.json")
}
