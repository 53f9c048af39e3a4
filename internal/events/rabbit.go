package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// amqpChannel is the part of *amqp.Channel the publisher uses.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

// rabbitSession is one connection with its publishing channel.
type rabbitSession struct {
	conn    io.Closer
	channel amqpChannel
}

func (s *rabbitSession) close() error {
	if err := s.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		_ = s.conn.Close()
		return err
	}
	if err := s.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		return err
	}
	return nil
}

// RabbitPublisher sends entries to a durable queue as persistent JSON
// messages. A closed channel or connection is re-dialled on the next
// publish.
type RabbitPublisher struct {
	mu      sync.Mutex
	dial    func() (*rabbitSession, error)
	session *rabbitSession
	queue   string
}

func NewRabbitPublisher(url, queue string) (*RabbitPublisher, error) {
	return newRabbitPublisher(queue, func() (*rabbitSession, error) {
		return dialRabbit(url, queue)
	})
}

func newRabbitPublisher(queue string, dial func() (*rabbitSession, error)) (*RabbitPublisher, error) {
	session, err := dial()
	if err != nil {
		return nil, err
	}
	return &RabbitPublisher{dial: dial, session: session, queue: queue}, nil
}

func dialRabbit(url, queue string) (*rabbitSession, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return &rabbitSession{conn: conn, channel: ch}, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, entry Entry) error {
	msg, err := message(entry)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session == nil || p.session.channel.IsClosed() {
		if err := p.reconnect(); err != nil {
			return err
		}
	}
	err = p.session.channel.PublishWithContext(ctx, "", p.queue, false, false, msg)
	if errors.Is(err, amqp.ErrClosed) {
		// the broker dropped us between the check and the publish
		if err := p.reconnect(); err != nil {
			return err
		}
		err = p.session.channel.PublishWithContext(ctx, "", p.queue, false, false, msg)
	}
	if err != nil {
		return fmt.Errorf("publish %s: %w", entry.Type, err)
	}
	return nil
}

// reconnect replaces the session. Callers hold p.mu.
func (p *RabbitPublisher) reconnect() error {
	if p.session != nil {
		_ = p.session.close()
		p.session = nil
	}
	session, err := p.dial()
	if err != nil {
		return fmt.Errorf("reconnect rabbitmq: %w", err)
	}
	p.session = session
	return nil
}

func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return nil
	}
	err := p.session.close()
	p.session = nil
	return err
}

func message(entry Entry) (amqp.Publishing, error) {
	body, err := json.Marshal(entry)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal event %d: %w", entry.ID, err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    fmt.Sprintf("%d", entry.ID),
		Type:         string(entry.Type),
		Timestamp:    entry.CreatedAt,
		Headers: amqp.Table{
			"clinic_id": entry.ClinicID.String(),
		},
		Body: body,
	}, nil
}
