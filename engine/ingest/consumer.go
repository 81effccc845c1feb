// Package ingest feeds courses published on NATS into the retrieval
// service. Each message is loaded once; failures go to a dead-letter
// subject untouched and are never retried automatically.
package ingest

import (
	"context"
	"log/slog"

	"github.com/LuisaMG01/course-vectorization/engine/domain"
	"github.com/LuisaMG01/course-vectorization/pkg/natsutil"
	"github.com/nats-io/nats.go"
)

const (
	// IngestSubject carries JSON-encoded domain.CourseInput values.
	IngestSubject = "courses.ingest"
	// DLQSubject receives messages that could not be loaded.
	DLQSubject = "courses.ingest.dlq"
	// LoadedSubject announces successfully loaded courses.
	LoadedSubject = "courses.loaded"
	// QueueGroup spreads messages across API replicas.
	QueueGroup = "course-ingest"
)

// Loader is the part of the course service the consumer needs.
type Loader interface {
	LoadCourse(ctx context.Context, in domain.CourseInput) (string, error)
}

// DeadLetter is published to DLQSubject.
type DeadLetter struct {
	Course *domain.CourseInput `json:"course,omitempty"`
	Raw    string              `json:"raw,omitempty"`
	Error  string              `json:"error"`
	Kind   string              `json:"kind"`
}

// Loaded is published to LoadedSubject.
type Loaded struct {
	ID string `json:"id"`
}

// Consumer loads courses received over NATS.
type Consumer struct {
	loader Loader
	pub    natsutil.Publisher
	logger *slog.Logger
}

// NewConsumer creates a Consumer that loads through loader and publishes
// outcomes through pub.
func NewConsumer(loader Loader, pub natsutil.Publisher, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{loader: loader, pub: pub, logger: logger}
}

// Start subscribes the consumer to IngestSubject in QueueGroup.
func (c *Consumer) Start(s natsutil.Subscriber) (*nats.Subscription, error) {
	return natsutil.Subscribe(s, IngestSubject, QueueGroup, c.Handle, c.Malformed)
}

// Handle loads one course and publishes the outcome.
func (c *Consumer) Handle(ctx context.Context, in domain.CourseInput) {
	id, err := c.loader.LoadCourse(ctx, in)
	if err != nil {
		kind := domain.KindOf(err)
		c.logger.Error("ingest: load failed", "id", in.ID, "kind", kind.String(), "err", err)
		c.deadLetter(ctx, DeadLetter{Course: &in, Error: err.Error(), Kind: kind.String()})
		return
	}
	c.logger.Info("ingest: course loaded", "id", id)
	if err := natsutil.Publish(ctx, c.pub, LoadedSubject, Loaded{ID: id}); err != nil {
		c.logger.Error("ingest: loaded publish failed", "id", id, "err", err)
	}
}

// Malformed sends undecodable messages to the dead-letter subject.
func (c *Consumer) Malformed(msg *nats.Msg, err error) {
	c.logger.Warn("ingest: malformed message", "subject", msg.Subject, "err", err)
	c.deadLetter(context.Background(), DeadLetter{
		Raw:   string(msg.Data),
		Error: err.Error(),
		Kind:  domain.KindValidation.String(),
	})
}

func (c *Consumer) deadLetter(ctx context.Context, dl DeadLetter) {
	if err := natsutil.Publish(ctx, c.pub, DLQSubject, dl); err != nil {
		c.logger.Error("ingest: DLQ publish failed", "err", err)
	}
}
