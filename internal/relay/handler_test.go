package relay

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/openclaw/status-relay/internal/backend"
	"github.com/openclaw/status-relay/internal/metrics"
)

type captureSink struct {
	mu     sync.Mutex
	events []string
	keys   []string
	err    error
}

func (c *captureSink) Deliver(ctx context.Context, text, routingKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, text)
	c.keys = append(c.keys, routingKey)
	return nil
}

func (c *captureSink) delivered() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.events...)
}

func newTestHandler(t *testing.T, sink Sink, selfPubkey string) (*Handler, *Store) {
	t.Helper()
	store := NewStore()
	h := NewHandler(HandlerConfig{
		AccountID:  "acct",
		Store:      store,
		Sink:       sink,
		SelfPubkey: selfPubkey,
	})
	return h, store
}

func TestHandlerDelivers(t *testing.T) {
	sink := &captureSink{}
	h, store := newTestHandler(t, sink, "")

	h.Handle(context.Background(), backend.Message{
		ID:   "m1",
		From: "0x04aabbccddeeff00112233",
		Text: "hello there",
	}, ChatContext{ChatID: "chat-1"})

	got := sink.delivered()
	if len(got) != 1 {
		t.Fatalf("delivered %d events, want 1", len(got))
	}
	want := "[Status DM from 0x04aabbccdd...] hello there"
	if got[0] != want {
		t.Errorf("event = %q, want %q", got[0], want)
	}
	if sink.keys[0] != DefaultRoutingKey {
		t.Errorf("routing key = %q, want %q", sink.keys[0], DefaultRoutingKey)
	}
	if !store.HasSeen("m1") {
		t.Error("delivered id not marked seen")
	}
}

func TestHandlerGroupPrefix(t *testing.T) {
	sink := &captureSink{}
	h, _ := newTestHandler(t, sink, "")

	h.Handle(context.Background(), backend.Message{
		ID:   "m1",
		From: "0x04aabbccddeeff00112233",
		Text: "hi all",
	}, ChatContext{ChatID: "chat-1", GroupName: "ops"})

	got := sink.delivered()
	if len(got) != 1 {
		t.Fatalf("delivered %d events, want 1", len(got))
	}
	want := `[Status group "ops" from 0x04aabbccdd...] hi all`
	if got[0] != want {
		t.Errorf("event = %q, want %q", got[0], want)
	}
}

func TestHandlerAtMostOnce(t *testing.T) {
	sink := &captureSink{}
	h, _ := newTestHandler(t, sink, "")

	msg := backend.Message{ID: "m1", From: "0xsender", Text: "once"}
	h.Handle(context.Background(), msg, ChatContext{ChatID: "chat-1"})
	h.Handle(context.Background(), msg, ChatContext{ChatID: "chat-1"})

	if n := len(sink.delivered()); n != 1 {
		t.Fatalf("delivered %d events, want 1", n)
	}
}

func TestHandlerSuppression(t *testing.T) {
	tests := []struct {
		name string
		msg  backend.Message
	}{
		{"empty text", backend.Message{ID: "m1", From: "0xsender", Text: ""}},
		{"whitespace text", backend.Message{ID: "m2", From: "0xsender", Text: "  \n\t "}},
		{"self authored", backend.Message{ID: "m3", From: "0xself", Text: "echo"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &captureSink{}
			h, store := newTestHandler(t, sink, "0xself")

			h.Handle(context.Background(), tt.msg, ChatContext{ChatID: "chat-1"})

			if n := len(sink.delivered()); n != 0 {
				t.Fatalf("delivered %d events, want 0", n)
			}
			// Suppressed messages are still recorded so the other
			// ingestion path will not retry them.
			if !store.HasSeen(tt.msg.ID) {
				t.Error("suppressed id not marked seen")
			}
		})
	}
}

func TestHandlerSinkFailureStillMarks(t *testing.T) {
	sink := &captureSink{err: errors.New("sink down")}
	h, store := newTestHandler(t, sink, "")

	h.Handle(context.Background(), backend.Message{
		ID: "m1", From: "0xsender", Text: "lost",
	}, ChatContext{ChatID: "chat-1"})

	if !store.HasSeen("m1") {
		t.Fatal("failed delivery must still mark the id seen")
	}
}

func TestHandlerSinkFailureNotCountedDelivered(t *testing.T) {
	m := metrics.New()
	store := NewStore()
	h := NewHandler(HandlerConfig{
		AccountID: "acct",
		Store:     store,
		Sink:      &captureSink{err: errors.New("sink down")},
		Metrics:   m,
	})

	h.Handle(context.Background(), backend.Message{
		ID: "m1", From: "0xsender", Text: "lost",
	}, ChatContext{ChatID: "chat-1"})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	if !strings.Contains(body, `statusrelay_sink_errors_total{account="acct"} 1`) {
		t.Errorf("sink error not counted:\n%s", body)
	}
	if strings.Contains(body, `statusrelay_messages_delivered_total{account="acct"}`) {
		t.Errorf("failed delivery counted as delivered:\n%s", body)
	}
}

func TestHandlerEmptyIDUsesNoDedup(t *testing.T) {
	sink := &captureSink{}
	h, store := newTestHandler(t, sink, "")

	msg := backend.Message{From: "0xsender", Text: "no id"}
	h.Handle(context.Background(), msg, ChatContext{ChatID: "chat-1"})
	h.Handle(context.Background(), msg, ChatContext{ChatID: "chat-1"})

	// Without an identity the store cannot suppress; both go through.
	if n := len(sink.delivered()); n != 2 {
		t.Fatalf("delivered %d events, want 2", n)
	}
	if store.SeenCount() != 0 {
		t.Errorf("SeenCount = %d, want 0", store.SeenCount())
	}
}

func TestSenderLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0x04aabbccddeeff", "0x04aabbccdd..."},
		{"short", "short"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := senderLabel(tt.in); got != tt.want {
			t.Errorf("senderLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if label := senderLabel(strings.Repeat("a", 12)); label != strings.Repeat("a", 12) {
		t.Errorf("12-char sender should be unshortened, got %q", label)
	}
}
