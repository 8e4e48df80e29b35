package mq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	// ExchangeRuns — события жизненного цикла runs (direct).
	ExchangeRuns Exchange = "ballpark.runs"

	// ExchangeAlerts — critical-аномалии (fanout: каждый подписчик
	// получает копию).
	ExchangeAlerts Exchange = "ballpark.alerts"
)

// Queues — имена очередей.
const (
	// QueueRunsPending — новые runs для orchestrator'а.
	QueueRunsPending Queue = "runs.pending"

	// QueueAlertsEvents — очередь алертов по умолчанию.
	QueueAlertsEvents Queue = "alerts.events"
)

// Routing keys.
const (
	RoutingKeyPending RoutingKey = "pending"
	RoutingKeyAlert   RoutingKey = "alert"
)

// SetupTopology объявляет обменники, очереди и привязки.
// Идемпотентна: повторный вызов на существующей топологии безопасен.
func SetupTopology(conn *Connection) error {
	return conn.Do(func(ch *amqp.Channel) error {
		exchanges := []struct {
			name Exchange
			kind string
		}{
			{ExchangeRuns, "direct"},
			{ExchangeAlerts, "fanout"},
		}
		for _, ex := range exchanges {
			if err := ch.ExchangeDeclare(string(ex.name), ex.kind, true, false, false, false, nil); err != nil {
				return fmt.Errorf("declare exchange %s: %w", ex.name, err)
			}
		}

		for _, q := range []Queue{QueueRunsPending, QueueAlertsEvents} {
			if _, err := ch.QueueDeclare(string(q), true, false, false, false, nil); err != nil {
				return fmt.Errorf("declare queue %s: %w", q, err)
			}
		}

		bindings := []struct {
			queue      Queue
			routingKey RoutingKey
			exchange   Exchange
		}{
			{QueueRunsPending, RoutingKeyPending, ExchangeRuns},
			{QueueAlertsEvents, RoutingKeyAlert, ExchangeAlerts},
		}
		for _, b := range bindings {
			if err := ch.QueueBind(string(b.queue), string(b.routingKey), string(b.exchange), false, nil); err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
			}
		}
		return nil
	})
}
