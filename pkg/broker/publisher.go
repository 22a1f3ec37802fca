package broker

import (
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

const (
	defaultBreakerFailures = 5
	defaultBreakerOpenFor  = 10 * time.Second
	defaultPublishTimeout  = 2 * time.Second
)

type PublisherConfig struct {
	Name           string
	Failures       int
	OpenFor        time.Duration
	PublishTimeout time.Duration
	OnStateChange  func(name string, from, to gobreaker.State)
}

// Publisher sends QoS 0 messages through a circuit breaker. Only transport
// failures count against the breaker; ErrNotConnected does not, since the
// reconnect loop already covers that case.
type Publisher struct {
	client  mqtt.Client
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
	log     zerolog.Logger
}

func NewPublisher(client mqtt.Client, cfg PublisherConfig, log zerolog.Logger) *Publisher {
	if cfg.Failures <= 0 {
		cfg.Failures = defaultBreakerFailures
	}
	if cfg.OpenFor <= 0 {
		cfg.OpenFor = defaultBreakerOpenFor
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = defaultPublishTimeout
	}
	fails := uint32(cfg.Failures)
	settings := gobreaker.Settings{
		Name:    cfg.Name,
		Timeout: cfg.OpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= fails
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotConnected)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("publish breaker state change")
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, from, to)
			}
		},
	}
	return &Publisher{
		client:  client,
		cb:      gobreaker.NewCircuitBreaker(settings),
		timeout: cfg.PublishTimeout,
		log:     log,
	}
}

// Publish hands payload to the client at QoS 0. For QoS 0 the token completes
// once the packet is queued for the network; no broker acknowledgment exists.
func (p *Publisher) Publish(topic, payload string) error {
	_, err := p.cb.Execute(func() (interface{}, error) {
		if !p.client.IsConnectionOpen() {
			return nil, ErrNotConnected
		}
		tok := p.client.Publish(topic, 0, false, payload)
		if !tok.WaitTimeout(p.timeout) {
			return nil, fmt.Errorf("publish on %s: timed out after %s", topic, p.timeout)
		}
		if err := tok.Error(); err != nil {
			return nil, fmt.Errorf("publish on %s: %w", topic, err)
		}
		return nil, nil
	})
	if err != nil {
		return err
	}
	p.log.Debug().Str("topic", topic).Str("payload", payload).Msg("message published")
	return nil
}

// BreakerState exposes the breaker state for health reporting.
func (p *Publisher) BreakerState() gobreaker.State { return p.cb.State() }
