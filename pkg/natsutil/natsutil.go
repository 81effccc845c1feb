// Package natsutil provides typed JSON publish/subscribe helpers over
// NATS with OpenTelemetry trace propagation in message headers.
package natsutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
)

// Publisher is the publishing side of *nats.Conn.
type Publisher interface {
	PublishMsg(m *nats.Msg) error
}

// Subscriber is the queue-subscribing side of *nats.Conn.
type Subscriber interface {
	QueueSubscribe(subject, queue string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// Drainer is the draining side of *nats.Conn.
type Drainer interface {
	Drain() error
	SetClosedHandler(cb nats.ConnHandler)
}

// ErrDrainTimeout is returned by DrainAndWait when the connection is not
// closed in time.
var ErrDrainTimeout = errors.New("natsutil: drain timed out")

// DrainAndWait drains c and blocks until the connection is closed or
// timeout elapses. Message handlers have returned once it yields nil.
// It replaces any closed handler already set on c.
func DrainAndWait(c Drainer, timeout time.Duration) error {
	closed := make(chan struct{})
	var once sync.Once
	c.SetClosedHandler(func(*nats.Conn) { once.Do(func() { close(closed) }) })
	if err := c.Drain(); err != nil {
		return fmt.Errorf("natsutil: drain: %w", err)
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-closed:
		return nil
	case <-timer.C:
		return ErrDrainTimeout
	}
}

// headerCarrier adapts nats.Msg headers for OTel TextMapCarrier.
type headerCarrier nats.Msg

func (c *headerCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *headerCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *headerCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// NewMsg encodes v as JSON into a message for subject and injects the
// trace context of ctx into its headers.
func NewMsg[T any](ctx context.Context, subject string, v T) (*nats.Msg, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("natsutil: encode %s: %w", subject, err)
	}
	msg := &nats.Msg{Subject: subject, Data: data}
	otel.GetTextMapPropagator().Inject(ctx, (*headerCarrier)(msg))
	return msg, nil
}

// Publish serializes v as JSON and publishes it to subject.
func Publish[T any](ctx context.Context, p Publisher, subject string, v T) error {
	msg, err := NewMsg(ctx, subject, v)
	if err != nil {
		return err
	}
	if err := p.PublishMsg(msg); err != nil {
		return fmt.Errorf("natsutil: publish %s: %w", subject, err)
	}
	return nil
}

// Decode extracts the trace context and the JSON body of msg.
func Decode[T any](msg *nats.Msg) (context.Context, T, error) {
	ctx := otel.GetTextMapPropagator().Extract(context.Background(), (*headerCarrier)(msg))
	var v T
	if err := json.Unmarshal(msg.Data, &v); err != nil {
		return ctx, v, fmt.Errorf("natsutil: decode %s: %w", msg.Subject, err)
	}
	return ctx, v, nil
}

// Handler processes one decoded message.
type Handler[T any] func(ctx context.Context, v T)

// Subscribe joins queue on subject and hands every decoded message to
// handler. Messages that fail to decode go to onMalformed when set and
// are dropped otherwise.
func Subscribe[T any](s Subscriber, subject, queue string, handler Handler[T], onMalformed func(*nats.Msg, error)) (*nats.Subscription, error) {
	sub, err := s.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		ctx, v, err := Decode[T](msg)
		if err != nil {
			if onMalformed != nil {
				onMalformed(msg, err)
			}
			return
		}
		handler(ctx, v)
	})
	if err != nil {
		return nil, fmt.Errorf("natsutil: subscribe %s: %w", subject, err)
	}
	return sub, nil
}
