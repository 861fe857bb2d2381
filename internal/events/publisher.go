package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ProductPublisher emits product change events.
type ProductPublisher interface {
	Publish(ctx context.Context, c Change) error
}

// NopPublisher drops every change. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Change) error { return nil }

// Sequencer numbers events within a partition.
type Sequencer interface {
	Next(ctx context.Context, partitionKey string) (int64, error)
}

// PublishTimeout bounds one Publish call, sequencing included.
const PublishTimeout = 3 * time.Second

type Publisher struct {
	mu                 sync.Mutex // ch is shared by request goroutines
	ch                 *amqp.Channel
	producerIdentifier string
	seq                Sequencer
	timeout            time.Duration
}

type PublisherOptions struct {
	Producer string
	// Sequencer is optional; without it envelopes carry no sequence.
	Sequencer Sequencer
}

func NewPublisher(conn *amqp.Connection, opts PublisherOptions) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareEventsExchange(ch); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare events exchange: %w", err)
	}

	producer := opts.Producer
	if producer == "" {
		producer = productServiceName
	}

	return &Publisher{
		ch:                 ch,
		producerIdentifier: producer,
		seq:                opts.Sequencer,
		timeout:            PublishTimeout,
	}, nil
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

func (p *Publisher) Publish(ctx context.Context, c Change) error {
	timeout := p.timeout
	if timeout <= 0 {
		timeout = PublishTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	env, err := newProductChangedEvent(c, p.producerIdentifier, time.Now().UTC())
	if err != nil {
		return err
	}
	if p.seq != nil {
		if env.Sequence, err = p.seq.Next(ctx, env.PartitionKey); err != nil {
			return fmt.Errorf("sequence %s: %w", env.EventName, err)
		}
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", env.EventName, err)
	}
	return p.publishJSON(ctx, c.Kind.RoutingKey(), body)
}

func (p *Publisher) publishJSON(ctx context.Context, routingKey string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.ch.PublishWithContext(
		ctx,
		EventsExchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}
