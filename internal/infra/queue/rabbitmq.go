package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"smm-post-generator/internal/domain"
)

// RabbitGenerationQueue реализует очередь задач поверх AMQP.
type RabbitGenerationQueue struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	queue    string
	messages <-chan amqp.Delivery
}

// NewRabbitGenerationQueue подключается к брокеру и объявляет durable-очередь.
func NewRabbitGenerationQueue(amqpURL, queue string) (*RabbitGenerationQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	return &RabbitGenerationQueue{conn: conn, ch: ch, queue: queue}, nil
}

// Enqueue публикует задачу в очередь.
func (q *RabbitGenerationQueue) Enqueue(ctx context.Context, job domain.GenerationJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	return q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         payload,
	})
}

// Pop блокирующе читает задачу из очереди. Доставка at-most-once:
// сообщение подтверждается до выполнения задачи, падение воркера посреди
// конвейера задачу теряет. Повторная постановка той же задачи безопасна,
// её гасит Once-ключ идемпотентности в воркере.
func (q *RabbitGenerationQueue) Pop(ctx context.Context) (domain.GenerationJob, error) {
	if q.messages == nil {
		deliveries, err := q.ch.Consume(q.queue, "", false, false, false, false, nil)
		if err != nil {
			return domain.GenerationJob{}, fmt.Errorf("consume: %w", err)
		}
		q.messages = deliveries
	}
	select {
	case <-ctx.Done():
		return domain.GenerationJob{}, ctx.Err()
	case msg, ok := <-q.messages:
		if !ok {
			return domain.GenerationJob{}, errors.New("amqp: канал доставки закрыт")
		}
		var job domain.GenerationJob
		if err := json.Unmarshal(msg.Body, &job); err != nil {
			_ = msg.Nack(false, false)
			return domain.GenerationJob{}, fmt.Errorf("decode job: %w", err)
		}
		if err := msg.Ack(false); err != nil {
			return domain.GenerationJob{}, fmt.Errorf("ack: %w", err)
		}
		return job, nil
	}
}

// Close закрывает канал и соединение.
func (q *RabbitGenerationQueue) Close() error {
	if err := q.ch.Close(); err != nil {
		_ = q.conn.Close()
		return err
	}
	return q.conn.Close()
}
