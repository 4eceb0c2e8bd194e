package relay

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openclaw/status-relay/internal/backend"
	"github.com/openclaw/status-relay/internal/metrics"
)

// Sink delivers an accepted inbound event into the surrounding
// application. Delivery is best-effort: the handler considers a
// message delivered once it reaches this boundary.
type Sink interface {
	Deliver(ctx context.Context, text, routingKey string) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, text, routingKey string) error

func (f SinkFunc) Deliver(ctx context.Context, text, routingKey string) error {
	return f(ctx, text, routingKey)
}

// DefaultRoutingKey is where inbound events land unless the account
// configures its own routing.
const DefaultRoutingKey = "agent:main:main"

// ChatContext carries chat metadata a source attaches to a message.
// A non-empty GroupName marks the message as group-originated.
type ChatContext struct {
	ChatID    string
	GroupName string
}

// Handler is the single funnel both ingestion sources call into. It
// applies identity, self, and emptiness filters, updates the store,
// and forwards accepted messages to the sink.
type Handler struct {
	accountID  string
	store      *Store
	sink       Sink
	routingKey string
	selfPubkey string
	registry   *Registry
	log        *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// HandlerConfig configures a message handler.
type HandlerConfig struct {
	AccountID  string
	Store      *Store
	Sink       Sink
	RoutingKey string // empty means DefaultRoutingKey
	SelfPubkey string // empty disables self-echo suppression
	Registry   *Registry
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
}

// NewHandler creates a message handler.
func NewHandler(cfg HandlerConfig) *Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	key := cfg.RoutingKey
	if key == "" {
		key = DefaultRoutingKey
	}
	return &Handler{
		accountID:  cfg.AccountID,
		store:      cfg.Store,
		sink:       cfg.Sink,
		routingKey: key,
		selfPubkey: cfg.SelfPubkey,
		registry:   cfg.Registry,
		log:        log,
		metrics:    cfg.Metrics,
		now:        time.Now,
	}
}

// Handle processes one raw inbound message. Duplicates, empty text,
// and self-authored messages are expected filtering outcomes, not
// errors; they are discarded silently. Sink failures are logged and do
// not un-mark the message: redelivery on the next poll or stream event
// would defeat dedup.
func (h *Handler) Handle(ctx context.Context, msg backend.Message, chat ChatContext) {
	if msg.ID != "" {
		if h.store.HasSeen(msg.ID) {
			h.metrics.Suppressed(h.accountID, metrics.ReasonDuplicate)
			return
		}
		// Mark before any further work so the other ingestion path
		// cannot deliver the same message concurrently.
		h.store.MarkSeen(msg.ID)
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		h.metrics.Suppressed(h.accountID, metrics.ReasonEmpty)
		return
	}
	if h.selfPubkey != "" && msg.From == h.selfPubkey {
		h.metrics.Suppressed(h.accountID, metrics.ReasonSelf)
		return
	}

	event := fmt.Sprintf("%s %s", inboundPrefix(msg.From, chat.GroupName), text)
	h.log.Info("inbound message",
		"account", h.accountID,
		"chat", chat.ChatID,
		"from", senderLabel(msg.From),
		"ts", msg.When(),
	)

	if err := h.sink.Deliver(ctx, event, h.routingKey); err != nil {
		h.log.Error("sink delivery failed",
			"account", h.accountID,
			"chat", chat.ChatID,
			"error", err,
		)
		h.metrics.SinkError(h.accountID)
	} else {
		h.metrics.Delivered(h.accountID)
	}
	if h.registry != nil {
		h.registry.MarkInbound(h.accountID, h.now())
	}
}

// senderLabel shortens a sender public key for display.
func senderLabel(from string) string {
	if len(from) <= 12 {
		return from
	}
	return from[:12] + "..."
}

func inboundPrefix(from, groupName string) string {
	if groupName != "" {
		return fmt.Sprintf("[Status group %q from %s]", groupName, senderLabel(from))
	}
	return fmt.Sprintf("[Status DM from %s]", senderLabel(from))
}
