package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/emy-mhmd/Smart-Irrigation-System/internal/model/entities"
)

var ErrNotConnected = errors.New("broker not connected")

const (
	DefaultBrokerURL         = "ws://broker.hivemq.com:8000/mqtt"
	DefaultKeepAlive         = 60 * time.Second
	DefaultReconnectInterval = 5 * time.Second
	DefaultConnectTimeout    = 10 * time.Second
	disconnectQuiesceMs      = 250
)

type Config struct {
	BrokerURL string
	User      string
	Password  string
	ClientID  string

	KeepAlive         time.Duration
	ReconnectInterval time.Duration
	ConnectTimeout    time.Duration

	// publish circuit breaker
	BreakerFailures int
	BreakerOpenFor  time.Duration
	PublishTimeout  time.Duration
	OnBreakerChange func(name string, from, to gobreaker.State)
}

func (cfg Config) withDefaults() Config {
	if cfg.BrokerURL == "" {
		cfg.BrokerURL = DefaultBrokerURL
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = DefaultKeepAlive
	}
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = DefaultReconnectInterval
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	return cfg
}

// Options returns the paho options for cfg. Reconnection is driven by Conn.Run
// at a fixed interval, so paho's own exponential auto-reconnect is disabled.
// Sessions are clean: subscriptions are re-issued on every connect.
func (cfg Config) Options() *mqtt.ClientOptions {
	cfg = cfg.withDefaults()
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	if cfg.User != "" {
		opts.SetUsername(cfg.User)
		opts.SetPassword(cfg.Password)
	}
	opts.SetKeepAlive(cfg.KeepAlive)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	return opts
}

// Handlers are invoked from paho and Conn goroutines; implementations must
// hand the work off rather than block.
type Handlers struct {
	OnConnect    func()
	OnLost       func(err error)
	OnMessage    func(topic string, payload []byte)
	OnSubscribed func(topics []entities.Topic, err error)
	OnState      func(state entities.ConnState)
}

// Conn owns the broker link: connect, fixed-interval reconnect, batched
// subscribe and publish.
type Conn struct {
	cfg    Config
	client mqtt.Client
	h      Handlers
	log    zerolog.Logger

	publisher *Publisher
	consumer  *Consumer

	mu    sync.RWMutex
	state entities.ConnState
	lost  chan error
}

// NewConn builds a connection; nothing is dialled until Run.
func NewConn(cfg Config, h Handlers, log zerolog.Logger) *Conn {
	cfg = cfg.withDefaults()
	c := &Conn{cfg: cfg, h: h, log: log}
	opts := cfg.Options()
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) { c.connectionLost(err) })
	return c.attach(mqtt.NewClient(opts))
}

func (c *Conn) attach(client mqtt.Client) *Conn {
	c.client = client
	c.state = entities.ConnDisconnected
	c.lost = make(chan error, 1)
	c.publisher = NewPublisher(client, PublisherConfig{
		Name:           "mqtt-publish",
		Failures:       c.cfg.BreakerFailures,
		OpenFor:        c.cfg.BreakerOpenFor,
		PublishTimeout: c.cfg.PublishTimeout,
		OnStateChange:  c.cfg.OnBreakerChange,
	}, c.log)
	c.consumer = NewConsumer(client, c.log)
	return c
}

// SetHandlers replaces the callbacks. It must be called before Run.
func (c *Conn) SetHandlers(h Handlers) { c.h = h }

// State returns the current link state.
func (c *Conn) State() entities.ConnState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsConnected reports whether the link is up.
func (c *Conn) IsConnected() bool { return c.State() == entities.ConnConnected }

func (c *Conn) setState(s entities.ConnState) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	c.mu.Unlock()
	if changed && c.h.OnState != nil {
		c.h.OnState(s)
	}
}

func (c *Conn) connectionLost(err error) {
	c.log.Error().Err(err).Msg("disconnected from MQTT broker")
	c.setState(entities.ConnReconnecting)
	if c.h.OnLost != nil {
		c.h.OnLost(err)
	}
	select {
	case c.lost <- err:
	default:
	}
}

// Run connects and keeps reconnecting at the configured fixed interval,
// without a retry bound, until ctx is cancelled.
func (c *Conn) Run(ctx context.Context) error {
	defer c.close()
	first := true
	for {
		if !first {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.cfg.ReconnectInterval):
			}
		}
		first = false

		if err := c.connect(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if !c.waitLost(ctx) {
			return nil
		}
	}
}

// waitLost blocks until the link drops and marks it reconnecting. A loss
// reported while the client is open again is stale and skipped. It returns
// false when ctx ends first.
func (c *Conn) waitLost(ctx context.Context) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case <-c.lost:
		}
		if c.client.IsConnectionOpen() {
			continue
		}
		c.setState(entities.ConnReconnecting)
		return true
	}
}

func (c *Conn) connect(ctx context.Context) error {
	bo := backoff.WithContext(backoff.NewConstantBackOff(c.cfg.ReconnectInterval), ctx)
	op := func() error {
		tok := c.client.Connect()
		if !tok.WaitTimeout(c.cfg.ConnectTimeout + time.Second) {
			return fmt.Errorf("connect to %s: timed out", c.cfg.BrokerURL)
		}
		if err := tok.Error(); err != nil {
			return err
		}
		if !c.client.IsConnectionOpen() {
			return fmt.Errorf("connect to %s: connection closed during handshake", c.cfg.BrokerURL)
		}
		return nil
	}
	notify := func(err error, next time.Duration) {
		c.log.Warn().Err(err).Dur("retry_in", next).Msg("failed to connect to MQTT broker")
	}
	if err := backoff.RetryNotify(op, bo, notify); err != nil {
		return fmt.Errorf("could not establish MQTT connection: %w", err)
	}
	c.log.Info().Str("broker", c.cfg.BrokerURL).Msg("connected to MQTT broker")
	c.setState(entities.ConnConnected)
	if c.h.OnConnect != nil {
		c.h.OnConnect()
	}
	return nil
}

// Subscribe issues one batched subscription for topics. The outcome is
// reported asynchronously through Handlers.OnSubscribed.
func (c *Conn) Subscribe(topics []entities.Topic) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return c.consumer.SubscribeAll(topics, c.dispatch, func(err error) {
		if c.h.OnSubscribed != nil {
			c.h.OnSubscribed(topics, err)
		}
	})
}

// Publish sends payload as text on topic, QoS 0, not retained.
func (c *Conn) Publish(topic entities.Topic, payload string) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return c.publisher.Publish(string(topic), payload)
}

// BreakerState reports the publish breaker state.
func (c *Conn) BreakerState() gobreaker.State { return c.publisher.BreakerState() }

func (c *Conn) dispatch(topic string, payload []byte) {
	if c.h.OnMessage != nil {
		c.h.OnMessage(topic, payload)
	}
}

func (c *Conn) close() {
	if c.client.IsConnected() {
		c.client.Disconnect(disconnectQuiesceMs)
		c.log.Info().Msg("MQTT connection is closed")
	}
	c.setState(entities.ConnDisconnected)
}
