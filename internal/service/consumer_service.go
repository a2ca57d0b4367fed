// FILE: internal/service/consumer_service.go
package service

import (
	"context"
	"encoding/json"
	"time"

	"prawnik-web/internal/dto"
	"prawnik-web/internal/events"
	"prawnik-web/internal/pkg/logger"
	"prawnik-web/internal/polling"
	"prawnik-web/internal/repository/contract"
	pkgEvents "prawnik-web/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
)

// SessionNotifier pushes an event to the sockets of one session.
type SessionNotifier interface {
	SendToSession(sessionID, eventType string, data interface{})
}

// AnalyticsPublisher is satisfied by the NATS publisher.
type AnalyticsPublisher interface {
	Publish(ctx context.Context, event pkgEvents.Event) error
}

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// realtimeConsumer forwards session events from the bus to the websocket
// hub. A finished fast poll also refreshes the concurrency indicator.
type realtimeConsumer struct {
	subscriber message.Subscriber
	notifier   SessionNotifier
	sessions   contract.ISessionRepository
	logger     logger.ILogger
}

func NewRealtimeConsumer(sub message.Subscriber, notifier SessionNotifier, sessions contract.ISessionRepository, log logger.ILogger) IConsumerService {
	return &realtimeConsumer{subscriber: sub, notifier: notifier, sessions: sessions, logger: log}
}

func (c *realtimeConsumer) Consume(ctx context.Context) error {
	return events.Consume(ctx, c.subscriber, events.TopicSession, c.processMessage)
}

func (c *realtimeConsumer) processMessage(msg *message.Message) {
	var ev events.SessionMessage
	if err := events.Decode(msg, &ev); err != nil {
		c.logger.Warn("RealtimeConsumer", "Dropping malformed event", map[string]interface{}{"error": err.Error()})
		return
	}

	c.notifier.SendToSession(ev.SessionID, ev.Type, ev.Data)

	if ev.Type == dto.EventFastState && c.sessions != nil {
		var state dto.PollState
		if err := json.Unmarshal(ev.Data, &state); err == nil && polling.Phase(state.Phase).Terminal() {
			if s, ok := c.sessions.Peek(ev.SessionID); ok {
				c.notifier.SendToSession(ev.SessionID, dto.EventActiveQueries, activeQueriesState(s.Active))
			}
		}
	}
	msg.Ack()
}

// analyticsConsumer ships analytics events to NATS when it is configured.
type analyticsConsumer struct {
	subscriber message.Subscriber
	publisher  AnalyticsPublisher
	logger     logger.ILogger
}

func NewAnalyticsConsumer(sub message.Subscriber, pub AnalyticsPublisher, log logger.ILogger) IConsumerService {
	return &analyticsConsumer{subscriber: sub, publisher: pub, logger: log}
}

func (c *analyticsConsumer) Consume(ctx context.Context) error {
	return events.Consume(ctx, c.subscriber, events.TopicAnalytics, func(msg *message.Message) {
		c.processMessage(ctx, msg)
	})
}

func (c *analyticsConsumer) processMessage(ctx context.Context, msg *message.Message) {
	var ev events.AnalyticsMessage
	if err := events.Decode(msg, &ev); err != nil {
		c.logger.Warn("AnalyticsConsumer", "Dropping malformed event", map[string]interface{}{"error": err.Error()})
		return
	}

	if c.publisher == nil {
		msg.Ack()
		return
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.publisher.Publish(pctx, ev.Event()); err != nil {
		// analytics are best effort; a lost event is not redelivered
		c.logger.Warn("AnalyticsConsumer", "Failed to publish analytics event", map[string]interface{}{
			"type":  ev.Type,
			"error": err.Error(),
		})
	}
	msg.Ack()
}
