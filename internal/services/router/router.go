// Package router routes broker messages to the dashboard displays and
// operator settings to the broker.
package router

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/emy-mhmd/Smart-Irrigation-System/internal/metrics"
	"github.com/emy-mhmd/Smart-Irrigation-System/internal/model"
	"github.com/emy-mhmd/Smart-Irrigation-System/internal/model/entities"
	"github.com/emy-mhmd/Smart-Irrigation-System/internal/model/messages"
)

const (
	alertDisconnected     = "Disconnected from MQTT broker. Reconnecting..."
	alertInvalidThreshold = "Please enter a valid threshold (0-100)"
	alertPublishFailed    = "Could not reach the MQTT broker, the setting was not sent."
)

// Broker is the part of the broker connection the router drives.
type Broker interface {
	Subscribe(topics []entities.Topic) error
	Publish(topic entities.Topic, payload string) error
}

// Router is not safe for concurrent use; the app loop is its only caller.
type Router struct {
	broker   Broker
	sink     model.Sink
	log      zerolog.Logger
	state    entities.ConnState
	displays entities.Displays
}

func New(b Broker, sink model.Sink, log zerolog.Logger) *Router {
	return &Router{
		broker:   b,
		sink:     sink,
		log:      log,
		state:    entities.ConnDisconnected,
		displays: make(entities.Displays, len(entities.InboundTopics())),
	}
}

// State returns the connection state as last seen by the router.
func (r *Router) State() entities.ConnState { return r.state }

// Display returns the last text shown on field.
func (r *Router) Display(field entities.DisplayField) string { return r.displays[field] }

// OnConnect subscribes the inbound topics in one request. A failure is
// logged and the connection is kept.
func (r *Router) OnConnect() {
	r.setState(entities.ConnConnected)
	if err := r.broker.Subscribe(entities.InboundTopics()); err != nil {
		r.log.Error().Err(err).Msg("subscription error")
	}
}

// OnSubscribed records the asynchronous outcome of the batched subscribe.
func (r *Router) OnSubscribed(topics []entities.Topic, err error) {
	if err != nil {
		r.log.Error().Err(err).Int("topics", len(topics)).Msg("subscription error")
		return
	}
	r.log.Info().Int("topics", len(topics)).Msg("subscribed to inbound topics")
}

// OnMessage writes the payload verbatim into the display fed by its topic.
// Topics outside the inbound set are ignored.
func (r *Router) OnMessage(ev messages.InboundEvent) {
	field, ok := entities.DisplayFor(ev.Topic)
	if !ok {
		metrics.InboundMessages.WithLabelValues(string(ev.Topic), "false").Inc()
		r.log.Debug().Str("topic", string(ev.Topic)).Msg("ignoring message on unknown topic")
		return
	}
	metrics.InboundMessages.WithLabelValues(string(ev.Topic), "true").Inc()
	r.displays[field] = ev.Payload
	r.sink.Emit(messages.UIEvent{Kind: messages.UIDisplay, Field: string(field), Text: ev.Payload})
}

// OnDisconnect alerts the operator once per drop. Reconnection is left to
// the connection's own fixed-interval retry.
func (r *Router) OnDisconnect(err error) {
	metrics.ConnectionLosses.Inc()
	r.log.Error().Err(err).Msg("disconnected from MQTT broker")
	r.setState(entities.ConnReconnecting)
	r.sink.Emit(messages.UIEvent{Kind: messages.UIAlert, Text: alertDisconnected})
}

// OnState mirrors a connection state change from the broker link.
func (r *Router) OnState(s entities.ConnState) { r.setState(s) }

func (r *Router) setState(s entities.ConnState) {
	if r.state == s {
		return
	}
	r.state = s
	if s == entities.ConnConnected {
		metrics.BrokerConnected.Set(1)
	} else {
		metrics.BrokerConnected.Set(0)
	}
	r.sink.Emit(messages.UIEvent{Kind: messages.UIConnection, Text: string(s)})
}

// Publish sends a validated command. Delivery is best effort, at most once.
func (r *Router) Publish(cmd messages.OutboundCommand) error {
	if !cmd.Valid() {
		return fmt.Errorf("publish: unvalidated command %+v", cmd)
	}
	if err := r.broker.Publish(cmd.Topic, cmd.Payload); err != nil {
		metrics.Publishes.WithLabelValues(string(cmd.Topic), "error").Inc()
		return fmt.Errorf("publish on %s: %w", cmd.Topic, err)
	}
	metrics.Publishes.WithLabelValues(string(cmd.Topic), "ok").Inc()
	r.log.Info().Str("topic", string(cmd.Topic)).Str("payload", cmd.Payload).Msg("published")
	return nil
}

// SetThreshold handles the manual threshold button.
func (r *Router) SetThreshold(raw string) {
	cmd, err := messages.NewThresholdCommand(raw)
	if err != nil {
		metrics.Rejected.WithLabelValues("threshold").Inc()
		r.log.Warn().Err(err).Msg("threshold rejected")
		r.sink.Emit(messages.UIEvent{Kind: messages.UIAlert, Text: alertInvalidThreshold})
		return
	}
	if err := r.Send(cmd); err != nil {
		return
	}
	r.sink.Emit(messages.UIEvent{Kind: messages.UIThresholdInput, Text: cmd.Payload})
	r.sink.Emit(messages.UIEvent{Kind: messages.UIAlert, Text: fmt.Sprintf("Threshold set to %s%%", cmd.Payload)})
}

// SetMode handles a change of the irrigation mode selector.
func (r *Router) SetMode(raw string) {
	cmd, err := messages.NewModeCommand(raw)
	if err != nil {
		metrics.Rejected.WithLabelValues("mode").Inc()
		r.log.Warn().Err(err).Msg("irrigation mode rejected")
		return
	}
	if err := r.Send(cmd); err != nil {
		return
	}
	r.sink.Emit(messages.UIEvent{Kind: messages.UIModeSelect, Text: cmd.Payload})
	r.log.Info().Str("mode", cmd.Payload).Msg("irrigation mode set")
}

// Send publishes cmd and alerts the operator when the publish fails.
func (r *Router) Send(cmd messages.OutboundCommand) error {
	if err := r.Publish(cmd); err != nil {
		r.log.Error().Err(err).Msg("publish failed")
		r.sink.Emit(messages.UIEvent{Kind: messages.UIAlert, Text: alertPublishFailed})
		return err
	}
	return nil
}
