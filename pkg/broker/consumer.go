package broker

import (
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/emy-mhmd/Smart-Irrigation-System/internal/model/entities"
)

const (
	subscribeTimeout = 10 * time.Second
	subackFailure    = 0x80
)

// Consumer subscribes to a set of topics in one SUBSCRIBE packet.
type Consumer struct {
	client mqtt.Client
	log    zerolog.Logger
}

func NewConsumer(client mqtt.Client, log zerolog.Logger) *Consumer {
	return &Consumer{client: client, log: log}
}

// SubscribeAll issues the batched request and returns without waiting for
// the SUBACK. done receives nil when every topic was granted, or an error
// naming the refused topics; the granted ones keep delivering either way.
func (c *Consumer) SubscribeAll(topics []entities.Topic, handler func(topic string, payload []byte), done func(error)) error {
	if len(topics) == 0 {
		return fmt.Errorf("subscribe: no topics")
	}
	filters := make(map[string]byte, len(topics))
	for _, t := range topics {
		filters[string(t)] = 0
	}
	tok := c.client.SubscribeMultiple(filters, func(_ mqtt.Client, m mqtt.Message) {
		handler(m.Topic(), m.Payload())
	})
	go func() {
		err := waitSuback(tok)
		if err == nil {
			c.log.Info().Int("topics", len(topics)).Msg("successfully subscribed")
		}
		if done != nil {
			done(err)
		}
	}()
	return nil
}

func waitSuback(tok mqtt.Token) error {
	if !tok.WaitTimeout(subscribeTimeout) {
		return fmt.Errorf("subscribe: no SUBACK after %s", subscribeTimeout)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	st, ok := tok.(*mqtt.SubscribeToken)
	if !ok {
		return nil
	}
	var refused []string
	for topic, code := range st.Result() {
		if code >= subackFailure {
			refused = append(refused, topic)
		}
	}
	if len(refused) > 0 {
		return fmt.Errorf("subscribe: broker refused %s", strings.Join(refused, ", "))
	}
	return nil
}
