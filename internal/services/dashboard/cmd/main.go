package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/emy-mhmd/Smart-Irrigation-System/internal/app"
	"github.com/emy-mhmd/Smart-Irrigation-System/internal/metrics"
	"github.com/emy-mhmd/Smart-Irrigation-System/internal/model/messages"
	"github.com/emy-mhmd/Smart-Irrigation-System/internal/services/dashboard"
	"github.com/emy-mhmd/Smart-Irrigation-System/internal/services/history"
	"github.com/emy-mhmd/Smart-Irrigation-System/pkg/broker"
	"github.com/emy-mhmd/Smart-Irrigation-System/pkg/logger"
)

func main() {
	cfg := loadConfig()
	log := logger.New(os.Stdout, cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, cfg, log)
	stop()
	if err != nil {
		log.Error().Err(err).Msg("dashboard stopped")
		os.Exit(1)
	}
}

// run wires the dashboard and blocks until ctx ends or a server fails.
func run(ctx context.Context, cfg Config, log zerolog.Logger) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	httpLis, err := net.Listen("tcp", ":"+strconv.Itoa(cfg.HTTPPort))
	if err != nil {
		return fmt.Errorf("http listen on %d: %w", cfg.HTTPPort, err)
	}
	defer httpLis.Close()
	var grpcLis net.Listener
	if cfg.GRPCPort > 0 {
		grpcLis, err = net.Listen("tcp", ":"+strconv.Itoa(cfg.GRPCPort))
		if err != nil {
			return fmt.Errorf("grpc listen on %d: %w", cfg.GRPCPort, err)
		}
		defer grpcLis.Close()
	}

	// === Telemetry mirror (optional) ===
	health := &dashboard.Health{MinErrorAge: 30 * time.Second}
	var (
		recorder   app.Recorder
		historyAPI http.Handler
	)
	if cfg.InfluxURL != "" {
		influx := influxdb2.NewClient(cfg.InfluxURL, cfg.InfluxToken)
		defer influx.Close()
		rec := history.NewRecorder(influx.WriteAPI(cfg.InfluxOrg, cfg.InfluxBucket), logger.Component(log, "history"))
		recorder, health.History = rec, rec
		historyAPI = history.NewHandler(influx.QueryAPI(cfg.InfluxOrg), cfg.InfluxBucket)
		log.Info().Str("url", cfg.InfluxURL).Str("bucket", cfg.InfluxBucket).Msg("telemetry mirror enabled")
	}

	// === Broker link ===
	cfg.MQTT.OnBreakerChange = func(name string, from, to gobreaker.State) {
		metrics.BreakerState.WithLabelValues(name).Set(float64(to))
		log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("publish breaker state change")
	}
	conn := broker.NewConn(cfg.MQTT, broker.Handlers{}, logger.Component(log, "broker"))
	health.Broker, health.Publisher = conn, conn

	// === Application loop ===
	hub := dashboard.NewHub(logger.Component(log, "hub"))
	sinks := messages.MultiSink{hub}
	var grpcHealth *dashboard.GRPCHealth
	if grpcLis != nil {
		grpcHealth = dashboard.NewGRPCHealth(logger.Component(log, "grpc"))
		sinks = append(sinks, grpcHealth)
	}
	loop := app.New(conn, hub, sinks, app.Options{VoiceLang: cfg.VoiceLang, Recorder: recorder}, log)
	conn.SetHandlers(loop.BrokerHandlers())

	// === HTTP ===
	srv := dashboard.NewServer(hub, loop, health, logger.Component(log, "http"))
	if historyAPI != nil {
		srv.WithHistory(historyAPI)
	}
	hs := &http.Server{
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 2)
	go func() {
		log.Info().Str("addr", httpLis.Addr().String()).Msg("dashboard listening")
		if err := hs.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("http server: %w", err)
			stop()
		}
	}()

	if grpcHealth != nil {
		go func() {
			if err := grpcHealth.Serve(grpcLis); err != nil {
				serveErr <- fmt.Errorf("grpc health server: %w", err)
				stop()
			}
		}()
		defer grpcHealth.Stop()
	}

	linkDone := make(chan struct{})
	go func() {
		defer close(linkDone)
		if err := conn.Run(ctx); err != nil {
			log.Error().Err(err).Msg("broker link stopped")
		}
	}()

	if err := loop.Run(ctx); err != nil {
		log.Error().Err(err).Msg("dashboard loop stopped")
	}

	log.Info().Msg("shutting down")
	hub.CloseAll()
	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = hs.Shutdown(shCtx)
	select {
	case <-linkDone:
	case <-shCtx.Done():
	}

	select {
	case err := <-serveErr:
		return err
	default:
		return nil
	}
}
