package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shaiso/Ballpark/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeRunPending MessageType = "run.pending"
	MessageTypeAlert      MessageType = "anomaly.alert"
)

// Message — конверт сообщения.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// RunPendingPayload — payload события о новом run.
type RunPendingPayload struct {
	RunID uuid.UUID `json:"run_id"`
}

// AlertPayload — payload алерта о critical-аномалии.
type AlertPayload struct {
	AnomalyID uuid.UUID         `json:"anomaly_id"`
	RunID     uuid.UUID         `json:"run_id"`
	RuleID    string            `json:"rule_id"`
	Severity  domain.Severity   `json:"severity"`
	Entity    domain.EntityType `json:"entity"`
	EntityKey string            `json:"entity_key"`
	Message   string            `json:"message"`
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{conn: conn, logger: logger}
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.Do(func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),
			string(routingKey),
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

// PublishRunPending публикует событие о новом run, ожидающем
// выполнения. Потребитель: Orchestrator.
func (p *Publisher) PublishRunPending(ctx context.Context, runID uuid.UUID) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeRunPending,
		Payload:   RunPendingPayload{RunID: runID},
		Timestamp: time.Now(),
	}
	return p.Publish(ctx, ExchangeRuns, RoutingKeyPending, msg)
}

// PublishAlert публикует critical-аномалию в обменник алертов.
func (p *Publisher) PublishAlert(ctx context.Context, a *domain.Anomaly) error {
	msg := &Message{
		ID:   uuid.New().String(),
		Type: MessageTypeAlert,
		Payload: AlertPayload{
			AnomalyID: a.ID,
			RunID:     a.RunID,
			RuleID:    a.RuleID,
			Severity:  a.Severity,
			Entity:    a.Entity,
			EntityKey: a.EntityKey,
			Message:   a.Message,
		},
		Timestamp: time.Now(),
	}
	return p.Publish(ctx, ExchangeAlerts, RoutingKeyAlert, msg)
}
