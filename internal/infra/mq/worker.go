package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"vmpool/internal/domain"
	"vmpool/internal/infra/telemetry"
)

const heartbeatInterval = 10 * time.Second

type WorkerOptions struct {
	URL            string
	Queue          string
	HandlerTimeout time.Duration
	Health         *telemetry.HealthTracker
	Logger         *zap.Logger
}

// publisher is the part of *amqp.Channel used to send replies.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type Worker struct {
	dispatcher *Dispatcher
	opts       WorkerOptions
	logger     *zap.Logger
}

func NewWorker(dispatcher *Dispatcher, opts WorkerOptions) *Worker {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.URL == "" {
		opts.URL = domain.DefaultMQURL
	}
	if opts.Queue == "" {
		opts.Queue = domain.DefaultMQQueue
	}
	if opts.HandlerTimeout <= 0 {
		opts.HandlerTimeout = time.Duration(domain.DefaultMQHandlerTimeoutSeconds) * time.Second
	}
	return &Worker{dispatcher: dispatcher, opts: opts, logger: logger.Named("mq-worker")}
}

// Run consumes the command queue until ctx is done or the broker closes the
// connection. Every delivery is acknowledged once its reply has been sent.
func (w *Worker) Run(ctx context.Context) error {
	conn, err := amqp.Dial(w.opts.URL)
	if err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(w.opts.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", w.opts.Queue, err)
	}
	// One command at a time keeps reply order equal to delivery order.
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	msgs, err := ch.Consume(w.opts.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", w.opts.Queue, err)
	}

	var beat *telemetry.Heartbeat
	if w.opts.Health != nil {
		beat = w.opts.Health.Register("mq-worker", 3*heartbeatInterval)
		defer w.opts.Health.Unregister("mq-worker")
		beat.Beat()
	}
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))

	w.logger.Info("mq worker listening", zap.String("queue", w.opts.Queue))
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("mq worker stopping")
			return nil
		case amqpErr := <-closed:
			if amqpErr == nil {
				return nil
			}
			return fmt.Errorf("broker connection closed: %w", amqpErr)
		case <-ticker.C:
			if beat != nil {
				beat.Beat()
			}
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			w.handleDelivery(ctx, d, ch)
			if beat != nil {
				beat.Beat()
			}
		}
	}
}

func (w *Worker) handleDelivery(parent context.Context, d amqp.Delivery, pub publisher) {
	ctx, meta := telemetry.EnsureRequestMeta(parent, d.CorrelationId)
	logger := telemetry.LoggerWithRequest(ctx, w.logger)
	ctx, cancel := context.WithTimeout(ctx, w.opts.HandlerTimeout)
	defer cancel()

	resp := w.dispatcher.Handle(ctx, d.Body)
	if d.ReplyTo != "" {
		body, err := json.Marshal(resp)
		if err != nil {
			logger.Error("encode reply", zap.Error(err))
		} else if err := pub.PublishWithContext(ctx, "", d.ReplyTo, false, false, amqp.Publishing{
			ContentType:   "application/json",
			CorrelationId: d.CorrelationId,
			MessageId:     meta.RequestID,
			Body:          body,
		}); err != nil {
			logger.Warn("publish reply", zap.String("replyTo", d.ReplyTo), zap.Error(err))
		}
	}
	// Commands are never redelivered; the reply carries any failure.
	if err := d.Ack(false); err != nil {
		logger.Warn("ack delivery", zap.Error(err))
	}
}
