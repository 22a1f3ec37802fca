// Package sensor_simulator stands in for the irrigation controller board:
// it publishes field readings and follows the dashboard settings.
package sensor_simulator

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/emy-mhmd/Smart-Irrigation-System/internal/model/entities"
	"github.com/emy-mhmd/Smart-Irrigation-System/pkg/broker"
)

// Link is the broker side of the simulator.
type Link interface {
	Publish(topic entities.Topic, payload string) error
	Subscribe(topics []entities.Topic) error
}

type FieldSimulator struct {
	mu        sync.Mutex
	link      Link
	generator *DataGenerator
	log       zerolog.Logger

	threshold float64
	daytime   entities.IrrigationMode
	pumpOn    bool
}

func NewFieldSimulator(link Link, gen *DataGenerator, threshold float64, log zerolog.Logger) *FieldSimulator {
	return &FieldSimulator{
		link:      link,
		generator: gen,
		log:       log,
		threshold: threshold,
		daytime:   entities.ModeOn,
	}
}

// Handlers subscribes the settings topics on every connect and applies the
// messages received on them.
func (s *FieldSimulator) Handlers() broker.Handlers {
	return broker.Handlers{
		OnConnect: func() {
			if err := s.link.Subscribe(entities.OutboundTopics()); err != nil {
				s.log.Error().Err(err).Msg("subscribe settings")
			}
		},
		OnMessage: func(topic string, payload []byte) { s.handleMessage(topic, string(payload)) },
		OnSubscribed: func(topics []entities.Topic, err error) {
			if err != nil {
				s.log.Error().Err(err).Msg("subscribe settings")
			}
		},
	}
}

func (s *FieldSimulator) handleMessage(topic, payload string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := strings.TrimSpace(payload)
	switch entities.Topic(topic) {
	case entities.TopicThreshold:
		n, err := strconv.ParseFloat(v, 64)
		if err != nil || n < 0 || n > 100 {
			s.log.Warn().Str("payload", payload).Msg("ignoring invalid threshold")
			return
		}
		s.threshold = n
		s.log.Info().Float64("threshold", n).Msg("threshold updated")
	case entities.TopicIrrigationMode:
		m := entities.IrrigationMode(strings.ToUpper(v))
		if m != entities.ModeOn && m != entities.ModeOff {
			s.log.Warn().Str("payload", payload).Msg("ignoring invalid irrigation mode")
			return
		}
		s.daytime = m
		s.log.Info().Str("daytime", string(m)).Msg("daytime irrigation updated")
	}
}

// Tick samples the field, decides the pump state and publishes everything.
func (s *FieldSimulator) Tick() Reading {
	s.mu.Lock()
	r := s.generator.Next(s.pumpOn)
	allowed := !r.Daylight || s.daytime == entities.ModeOn
	pump := allowed && float64(r.Moisture) < s.threshold
	if pump != s.pumpOn {
		s.log.Info().Bool("pump", pump).Int("moisture", r.Moisture).Float64("threshold", s.threshold).Msg("pump switched")
	}
	s.pumpOn = pump
	s.mu.Unlock()

	state := entities.ModeOff
	if pump {
		state = entities.ModeOn
	}
	s.publish(entities.TopicSoilMoisture, strconv.Itoa(r.Moisture))
	s.publish(entities.TopicLightIntensity, strconv.FormatFloat(r.Light, 'f', 0, 64))
	s.publish(entities.TopicPumpState, string(state))
	return r
}

func (s *FieldSimulator) publish(topic entities.Topic, payload string) {
	if err := s.link.Publish(topic, payload); err != nil {
		ev := s.log.Warn()
		if errors.Is(err, broker.ErrNotConnected) {
			ev = s.log.Debug()
		}
		ev.Err(err).Str("topic", string(topic)).Msg("publish failed")
	}
}

// PumpOn reports the current pump state.
func (s *FieldSimulator) PumpOn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pumpOn
}

// Start publishes a sample every interval until ctx is done.
func (s *FieldSimulator) Start(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r := s.Tick()
			s.log.Debug().Int("moisture", r.Moisture).Float64("light", r.Light).Msg("sample published")
		}
	}
}
