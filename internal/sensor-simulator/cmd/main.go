package main

import (
	"context"
	"flag"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	sensorSimulator "github.com/emy-mhmd/Smart-Irrigation-System/internal/sensor-simulator"
	"github.com/emy-mhmd/Smart-Irrigation-System/pkg/broker"
	"github.com/emy-mhmd/Smart-Irrigation-System/pkg/logger"
)

func main() {
	brokerURL := flag.String("broker", broker.DefaultBrokerURL, "MQTT broker URL")
	clientID := flag.String("client-id", "field-sim-"+uuid.NewString()[:8], "MQTT client ID")
	interval := flag.Duration("interval", 5*time.Second, "publish interval")
	threshold := flag.Float64("threshold", 30, "initial moisture threshold (%)")
	seed := flag.Float64("seed", 0.45, "initial soil moisture (0..1)")
	halfLife := flag.Duration("half-life", 2*time.Hour, "moisture half-life while the pump is off")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	log := logger.New(os.Stdout, *level, false)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// linear loss matching the initial slope of the half-life decay
	decayPerMin := *seed * math.Ln2 / halfLife.Minutes()
	gen := sensorSimulator.NewDataGenerator(*seed, decayPerMin)

	conn := broker.NewConn(broker.Config{BrokerURL: *brokerURL, ClientID: *clientID}, broker.Handlers{}, logger.Component(log, "broker"))
	sim := sensorSimulator.NewFieldSimulator(conn, gen, *threshold, logger.Component(log, "field"))
	conn.SetHandlers(sim.Handlers())

	go func() {
		if err := conn.Run(ctx); err != nil {
			log.Error().Err(err).Msg("broker link stopped")
		}
	}()

	log.Info().Str("broker", *brokerURL).Dur("interval", *interval).Msg("field simulator started")
	sim.Start(ctx, *interval)
}
