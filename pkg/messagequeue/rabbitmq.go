package messagequeue

import (
	"context"
	"fmt"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// RabbitMQService implements the MessageQueue interface using RabbitMQ.
type RabbitMQService struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *zap.Logger
}

// NewRabbitMQServiceConfig contains options for creating a new RabbitMQService.
type NewRabbitMQServiceConfig struct {
	URL string
}

// NewRabbitMQService creates a new instance of RabbitMQService.
func NewRabbitMQService(cfg NewRabbitMQServiceConfig, logger *zap.Logger) (*RabbitMQService, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	logger.Info("Connected to RabbitMQ")
	return &RabbitMQService{conn: conn, channel: ch, logger: logger}, nil
}

func (s *RabbitMQService) declare(queueName string) (amqp.Queue, error) {
	q, err := s.channel.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return q, fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}
	return q, nil
}

// Publish sends a persistent JSON message to a RabbitMQ queue.
func (s *RabbitMQService) Publish(queueName string, body []byte) error {
	q, err := s.declare(queueName)
	if err != nil {
		return err
	}

	err = s.channel.Publish(
		"",     // exchange
		q.Name, // routing key (queue name)
		false,  // mandatory
		false,  // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		})
	if err != nil {
		return fmt.Errorf("failed to publish to queue %s: %w", queueName, err)
	}
	s.logger.Debug("Published message", zap.String("queue", queueName), zap.Int("bytes", len(body)))
	return nil
}

// Consume reads messages with manual acknowledgement. A handler error nacks
// the message back onto the queue and stops consumption so a poison message
// cannot spin. With drain set, Consume returns once the queue is empty.
// It returns the number of messages acknowledged.
func (s *RabbitMQService) Consume(ctx context.Context, queueName string, drain bool, handler Handler) (int, error) {
	q, err := s.declare(queueName)
	if err != nil {
		return 0, err
	}

	handled := 0
	if drain {
		for {
			if err := ctx.Err(); err != nil {
				return handled, nil
			}
			d, ok, err := s.channel.Get(q.Name, false)
			if err != nil {
				return handled, fmt.Errorf("failed to get from queue %s: %w", queueName, err)
			}
			if !ok {
				return handled, nil
			}
			if err := s.handle(ctx, d, handler); err != nil {
				return handled, err
			}
			handled++
		}
	}

	msgs, err := s.channel.Consume(
		q.Name, // queue
		"",     // consumer
		false,  // auto-ack
		false,  // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return 0, fmt.Errorf("failed to register a consumer for queue %s: %w", queueName, err)
	}

	s.logger.Info("Waiting for messages", zap.String("queue", q.Name))
	for {
		select {
		case <-ctx.Done():
			return handled, nil
		case d, ok := <-msgs:
			if !ok {
				return handled, fmt.Errorf("delivery channel for %s closed", queueName)
			}
			if err := s.handle(ctx, d, handler); err != nil {
				return handled, err
			}
			handled++
		}
	}
}

func (s *RabbitMQService) handle(ctx context.Context, d amqp.Delivery, handler Handler) error {
	if err := handler(ctx, d.Body); err != nil {
		if nackErr := d.Nack(false, true); nackErr != nil {
			s.logger.Error("Failed to nack message", zap.Error(nackErr))
		}
		return fmt.Errorf("handler failed: %w", err)
	}
	return d.Ack(false)
}

// Close closes the RabbitMQ channel and connection.
func (s *RabbitMQService) Close() error {
	var lastErr error
	if s.channel != nil {
		if err := s.channel.Close(); err != nil {
			s.logger.Warn("Error closing RabbitMQ channel", zap.Error(err))
			lastErr = err
		}
	}
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			s.logger.Warn("Error closing RabbitMQ connection", zap.Error(err))
			lastErr = err
		}
	}
	return lastErr
}
