package command

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"yearn-vaults/internal/logger"
)

const eventChannel = "vaults:events"

// Publisher matches the hub and the services that feed it.
type Publisher interface {
	Publish(event string, data interface{})
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(event string, data interface{})

func (f PublisherFunc) Publish(event string, data interface{}) { f(event, data) }

// Fanout delivers every event to each publisher in order.
type Fanout []Publisher

func (f Fanout) Publish(event string, data interface{}) {
	for _, p := range f {
		if p != nil {
			p.Publish(event, data)
		}
	}
}

// EventMessage is an event crossing processes.
type EventMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// EventPublisher forwards events to the api process over Redis.
type EventPublisher struct {
	redis *redis.Client
	log   *logger.Logger
}

func NewEventPublisher(redisClient *redis.Client, log *logger.Logger) *EventPublisher {
	if log == nil {
		log = logger.Nop()
	}
	return &EventPublisher{redis: redisClient, log: log}
}

func (p *EventPublisher) Publish(event string, data interface{}) {
	if p == nil || p.redis == nil {
		return
	}

	raw, err := json.Marshal(data)
	if err != nil {
		p.log.Warn("⚠️ Event %s not encodable: %v", event, err)
		return
	}
	msg, err := json.Marshal(EventMessage{Type: event, Data: raw, Timestamp: time.Now().UTC()})
	if err != nil {
		p.log.Warn("⚠️ Event %s not encodable: %v", event, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := p.redis.Publish(ctx, eventChannel, msg).Err(); err != nil {
		p.log.Warn("⚠️ Failed to publish %s: %v", event, err)
	}
}

// Relay re-publishes events from Redis into target until ctx is done.
// Payloads arrive as json.RawMessage.
func Relay(ctx context.Context, redisClient *redis.Client, target Publisher, log *logger.Logger) error {
	if log == nil {
		log = logger.Nop()
	}
	if redisClient == nil {
		<-ctx.Done()
		return nil
	}

	pubsub := redisClient.Subscribe(ctx, eventChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", eventChannel, err)
	}
	log.Info("✅ Relaying events from %s", eventChannel)

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var event EventMessage
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Warn("Error unmarshaling event: %v", err)
				continue
			}
			target.Publish(event.Type, event.Data)
		}
	}
}
