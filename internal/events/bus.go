package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"prawnik-web/internal/dto"
	"prawnik-web/internal/pkg/logger"
	"prawnik-web/internal/polling"
	pkgEvents "prawnik-web/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

const (
	TopicSession   = "session.events"
	TopicAnalytics = "analytics.events"
)

// SessionMessage is a realtime event addressed to one browser session.
type SessionMessage struct {
	SessionID string          `json:"session_id"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
}

// AnalyticsMessage is the bus form of a pkg/events.Event.
type AnalyticsMessage struct {
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data"`
	OccurredAt time.Time              `json:"occurred_at"`
}

func (m AnalyticsMessage) Event() pkgEvents.BaseEvent {
	return pkgEvents.BaseEvent{Type: m.Type, Data: m.Data, OccurredAt: m.OccurredAt}
}

// Bus publishes session and analytics events on the in-process pub/sub.
type Bus struct {
	publisher message.Publisher
	logger    logger.ILogger
	now       func() time.Time
}

var _ polling.Sink = (*Bus)(nil)

func NewBus(publisher message.Publisher, log logger.ILogger) *Bus {
	return &Bus{publisher: publisher, logger: log, now: time.Now}
}

func (b *Bus) publish(topic string, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		b.logger.Error("EventBus", "Failed to marshal event", map[string]interface{}{"topic": topic, "error": err})
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.publisher.Publish(topic, msg); err != nil {
		b.logger.Warn("EventBus", "Failed to publish event", map[string]interface{}{"topic": topic, "error": err.Error()})
	}
}

// PublishSession sends a realtime event to every socket of sessionID.
func (b *Bus) PublishSession(sessionID, eventType string, data interface{}) {
	raw, err := json.Marshal(data)
	if err != nil {
		b.logger.Error("EventBus", "Failed to marshal session event", map[string]interface{}{"type": eventType, "error": err})
		return
	}
	b.publish(TopicSession, SessionMessage{SessionID: sessionID, Type: eventType, Data: raw})
}

func (b *Bus) PublishAnalytics(eventType string, data map[string]interface{}) {
	b.publish(TopicAnalytics, AnalyticsMessage{Type: eventType, Data: data, OccurredAt: b.now().UTC()})
}

func (b *Bus) PollStateChanged(sessionID string, state dto.PollState) {
	b.PublishSession(sessionID, stateEventType(state.Kind), state)
}

func (b *Bus) PollFinished(sessionID string, state dto.PollState) {
	b.PublishSession(sessionID, stateEventType(state.Kind), state)

	data := map[string]interface{}{
		"query_id": state.QueryId,
	}
	if state.ErrorCode != "" {
		data["error_code"] = string(state.ErrorCode)
	}
	if state.Slot != nil && state.Slot.GenerationTimeMs > 0 {
		data["generation_time_ms"] = state.Slot.GenerationTimeMs
	}
	b.PublishAnalytics(pkgEvents.PollOutcome(string(state.Kind), state.Phase), data)
}

func stateEventType(kind dto.ResponseKind) string {
	if kind == dto.KindAccurate {
		return dto.EventAccurateState
	}
	return dto.EventFastState
}

// Decode unmarshals a bus payload, acking malformed messages so they are
// not redelivered.
func Decode(msg *message.Message, v interface{}) error {
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		msg.Ack()
		return fmt.Errorf("decode message %s: %w", msg.UUID, err)
	}
	return nil
}

// Consume subscribes to topic and hands every message to handle until ctx
// is done. handle acks or nacks.
func Consume(ctx context.Context, sub message.Subscriber, topic string, handle func(*message.Message)) error {
	messages, err := sub.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	go func() {
		for msg := range messages {
			handle(msg)
		}
	}()
	return nil
}
