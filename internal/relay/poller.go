package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/openclaw/status-relay/internal/backend"
	"github.com/openclaw/status-relay/internal/metrics"
)

const (
	// DefaultPollInterval is how often the poll loop reconciles chats.
	DefaultPollInterval = 15 * time.Second
	// DefaultPollLimit is how many recent messages each tick fetches
	// per chat.
	DefaultPollLimit = 10
)

// BackendReader is the subset of the backend client the poll loop and
// seeding need.
type BackendReader interface {
	ActiveChats(ctx context.Context) ([]backend.Chat, error)
	ChatMessages(ctx context.Context, chatID, cursor string, limit int) (*backend.MessagesPage, error)
}

// Poller is the timer-driven fallback path: every interval it fetches
// recent messages per chat past the chat's watermark and funnels new
// ones through the handler. It reconciles whatever the stream missed;
// the store makes the overlap safe.
type Poller struct {
	accountID string
	backend   BackendReader
	store     *Store
	handler   *Handler
	interval  time.Duration
	limit     int
	log       *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// PollerConfig configures a poll loop.
type PollerConfig struct {
	AccountID string
	Backend   BackendReader
	Store     *Store
	Handler   *Handler
	Interval  time.Duration // zero means DefaultPollInterval
	Limit     int           // zero means DefaultPollLimit
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
}

// NewPoller creates a poll loop. Run starts it.
func NewPoller(cfg PollerConfig) *Poller {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = DefaultPollLimit
	}
	return &Poller{
		accountID: cfg.AccountID,
		backend:   cfg.Backend,
		store:     cfg.Store,
		handler:   cfg.Handler,
		interval:  interval,
		limit:     limit,
		log:       log,
		metrics:   cfg.Metrics,
		now:       time.Now,
	}
}

// Run ticks until ctx is cancelled. Internal failures are logged and
// the next tick proceeds; the loop itself never fails.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

// pollOnce runs a single reconciliation tick.
func (p *Poller) pollOnce(ctx context.Context) {
	chats, err := p.backend.ActiveChats(ctx)
	if err != nil {
		// No partial processing without the chat list.
		p.metrics.PollError(p.accountID)
		p.log.Warn("poll: chat list fetch failed", "account", p.accountID, "error", err)
		return
	}

	for _, chat := range chats {
		if !chat.Relevant() {
			continue
		}
		p.pollChat(ctx, chat)
	}
}

// pollChat reconciles one chat. Failures are isolated: they skip this
// chat for this tick only.
func (p *Poller) pollChat(ctx context.Context, chat backend.Chat) {
	lastTs, seeded := p.store.Watermark(chat.ID)
	if !seeded {
		// Unseeded chats acquire a watermark from their first poll
		// instead of replaying full history.
		lastTs = p.now().UnixMilli()
		p.store.AdvanceWatermark(chat.ID, lastTs)
	}

	page, err := p.backend.ChatMessages(ctx, chat.ID, "", p.limit)
	if err != nil {
		p.metrics.PollError(p.accountID)
		p.log.Warn("poll: message fetch failed",
			"account", p.accountID,
			"chat", chat.ID,
			"error", err,
		)
		return
	}

	chatCtx := ChatContext{ChatID: chat.ID}
	if chat.IsGroup() {
		chatCtx.GroupName = chat.Name
		if chatCtx.GroupName == "" {
			chatCtx.GroupName = "group"
		}
	}

	maxTs := lastTs
	for _, msg := range page.Messages {
		ts := msg.When()
		if ts <= lastTs {
			continue
		}
		if ts > maxTs {
			maxTs = ts
		}
		// Already delivered, most likely via the stream.
		if msg.ID != "" && p.store.HasSeen(msg.ID) {
			continue
		}
		p.log.Debug("poll found new message", "account", p.accountID, "chat", chat.ID, "ts", ts)
		p.handler.Handle(ctx, msg, chatCtx)
	}
	p.store.AdvanceWatermark(chat.ID, maxTs)
}
