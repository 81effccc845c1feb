//go:build integration

package natsutil

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

func natsURL() string {
	if v := os.Getenv("NATS_URL"); v != "" {
		return v
	}
	return nats.DefaultURL
}

func TestNATS_PubSub(t *testing.T) {
	nc, err := nats.Connect(natsURL())
	if err != nil {
		t.Fatalf("nats connect: %v", err)
	}
	t.Cleanup(func() { nc.Close() })

	type msg struct {
		Text string `json:"text"`
	}

	ch := make(chan msg, 1)
	sub, err := Subscribe(nc, "integ.pubsub", "integ", func(_ context.Context, m msg) {
		ch <- m
	}, nil)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	if err := Publish(context.Background(), nc, "integ.pubsub", msg{Text: "hello integration"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case got := <-ch:
		if got.Text != "hello integration" {
			t.Fatalf("expected 'hello integration', got %q", got.Text)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestNATS_DrainAndWaitFinishesHandlers(t *testing.T) {
	nc, err := nats.Connect(natsURL())
	if err != nil {
		t.Fatalf("nats connect: %v", err)
	}

	started := make(chan struct{})
	var finished atomic.Bool
	_, err = Subscribe(nc, "integ.drain", "integ", func(_ context.Context, _ struct{}) {
		close(started)
		time.Sleep(200 * time.Millisecond)
		finished.Store(true)
	}, nil)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := Publish(context.Background(), nc, "integ.drain", struct{}{}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for handler")
	}
	if err := DrainAndWait(nc, 5*time.Second); err != nil {
		t.Fatalf("DrainAndWait: %v", err)
	}
	if !finished.Load() {
		t.Fatal("DrainAndWait returned while a handler was still running")
	}
}
