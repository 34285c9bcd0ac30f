package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"tg-pulse-bot/internal/domain"
	"tg-pulse-bot/internal/infra/metrics"
)

// RabbitRefreshQueue реализует очередь задач пересборки через AMQP.
type RabbitRefreshQueue struct {
	conn  *amqp.Connection
	queue string

	mu         sync.Mutex
	ch         *amqp.Channel
	deliveries <-chan amqp.Delivery
}

// NewRabbitRefreshQueue подключается к брокеру и объявляет долговечную очередь.
func NewRabbitRefreshQueue(amqpURL, queueName string) (*RabbitRefreshQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queueName == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	q := &RabbitRefreshQueue{conn: conn, queue: queueName}
	if _, err := q.channel(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return q, nil
}

func (q *RabbitRefreshQueue) channel() (*amqp.Channel, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ch != nil && !q.ch.IsClosed() {
		return q.ch, nil
	}
	ch, err := q.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(q.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	q.ch = ch
	q.deliveries = nil
	return ch, nil
}

// Enqueue публикует задачу в очередь.
func (q *RabbitRefreshQueue) Enqueue(ctx context.Context, job domain.RefreshJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	ch, err := q.channel()
	if err != nil {
		return err
	}
	start := time.Now()
	err = ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

// Pop блокирующе читает задачу из очереди.
func (q *RabbitRefreshQueue) Pop(ctx context.Context) (domain.RefreshJob, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.RefreshJob{}, err
		}
		deliveries, err := q.consume()
		if err != nil {
			return domain.RefreshJob{}, err
		}
		select {
		case <-ctx.Done():
			return domain.RefreshJob{}, ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				q.mu.Lock()
				q.deliveries = nil
				q.mu.Unlock()
				select {
				case <-ctx.Done():
					return domain.RefreshJob{}, ctx.Err()
				case <-time.After(time.Second):
				}
				continue
			}
			var job domain.RefreshJob
			if err := json.Unmarshal(d.Body, &job); err != nil {
				_ = d.Nack(false, false)
				return domain.RefreshJob{}, fmt.Errorf("decode job: %w", err)
			}
			if err := d.Ack(false); err != nil {
				return domain.RefreshJob{}, fmt.Errorf("ack job: %w", err)
			}
			return job, nil
		}
	}
}

func (q *RabbitRefreshQueue) consume() (<-chan amqp.Delivery, error) {
	q.mu.Lock()
	if q.deliveries != nil && q.ch != nil && !q.ch.IsClosed() {
		deliveries := q.deliveries
		q.mu.Unlock()
		return deliveries, nil
	}
	q.mu.Unlock()
	ch, err := q.channel()
	if err != nil {
		return nil, err
	}
	deliveries, err := ch.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume queue: %w", err)
	}
	q.mu.Lock()
	q.deliveries = deliveries
	q.mu.Unlock()
	return deliveries, nil
}

// Close закрывает соединение с брокером.
func (q *RabbitRefreshQueue) Close() error {
	return q.conn.Close()
}
