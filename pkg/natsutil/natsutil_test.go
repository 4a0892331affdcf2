package natsutil

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

type payload struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func startTestNATS(t *testing.T) *nats.Conn {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Port: -1})
	if err != nil {
		t.Fatal(err)
	}
	srv.Start()
	if !srv.ReadyForConnections(3 * time.Second) {
		t.Fatal("nats not ready")
	}
	nc, err := Connect(srv.ClientURL(), "test", discard())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		nc.Close()
		srv.Shutdown()
	})
	return nc
}

func TestNatsHeaderCarrier(t *testing.T) {
	carrier := (*natsHeaderCarrier)(&nats.Msg{})
	if got := carrier.Get("missing"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
	if keys := carrier.Keys(); keys != nil {
		t.Fatalf("expected nil keys, got %v", keys)
	}
	carrier.Set("traceparent", "00-abc-def-01")
	if got := carrier.Get("traceparent"); got != "00-abc-def-01" {
		t.Fatalf("expected traceparent, got %q", got)
	}
	if keys := carrier.Keys(); len(keys) != 1 {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

func TestPublishSubscribe(t *testing.T) {
	nc := startTestNATS(t)
	got := make(chan payload, 1)
	sub, err := Subscribe(nc, "test.feed", discard(), func(_ context.Context, p payload) { got <- p })
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	if err := nc.Publish("test.feed", []byte("not json")); err != nil {
		t.Fatal(err)
	}
	NewPublisher[payload](nc, "test.feed", discard()).Publish(context.Background(), payload{Name: "a", Value: 1})
	if err := nc.Flush(); err != nil {
		t.Fatal(err)
	}

	select {
	case p := <-got:
		if p != (payload{Name: "a", Value: 1}) {
			t.Fatalf("got %+v", p)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	select {
	case p := <-got:
		t.Fatalf("malformed message should be dropped, got %+v", p)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNilPublisher(t *testing.T) {
	var p *Publisher[payload]
	p.Publish(context.Background(), payload{})
	NewPublisher[payload](nil, "x", discard()).Publish(context.Background(), payload{})
}

func TestConnectFails(t *testing.T) {
	if _, err := Connect("nats://127.0.0.1:1", "test", discard()); err == nil {
		t.Fatal("expected connect error")
	}
}
