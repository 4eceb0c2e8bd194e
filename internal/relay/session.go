package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openclaw/status-relay/internal/backend"
	"github.com/openclaw/status-relay/internal/metrics"
	"github.com/openclaw/status-relay/internal/signals"
)

const (
	// DefaultReadyAttempts and DefaultReadyDelay bound how long session
	// startup waits for the backend account to finish logging in.
	DefaultReadyAttempts = 12
	DefaultReadyDelay    = 5 * time.Second

	// seedConcurrency bounds parallel per-chat history fetches during
	// startup seeding.
	seedConcurrency = 4
)

// SessionBackend is what a session needs from the backend client.
type SessionBackend interface {
	BackendReader
	Health(ctx context.Context) bool
	GetSettings(ctx context.Context) (*backend.Settings, error)
	SendOneToOneMessage(ctx context.Context, chatID, text string) error
}

// SessionConfig configures one account session.
type SessionConfig struct {
	AccountID  string
	Backend    SessionBackend
	SignalsURL string
	Sink       Sink
	RoutingKey string
	Registry   *Registry
	Logger     *slog.Logger
	Metrics    *metrics.Metrics

	// Store overrides the dedup store; nil means a fresh NewStore.
	Store *Store

	PollInterval time.Duration
	PollLimit    int

	ReadyAttempts int
	ReadyDelay    time.Duration

	// Dial overrides the signals dialer for tests.
	Dial func(ctx context.Context, url string) (signals.Transport, error)
}

// Session is the running ingestion engine for one account: a seeded
// store, the signals stream, and the reconciliation poller.
type Session struct {
	accountID string
	backend   SessionBackend
	store     *Store
	handler   *Handler
	conn      *signals.Conn
	registry  *Registry
	log       *slog.Logger

	// chatMeta maps chat id to context captured during seeding, so
	// stream messages can be tagged with group names. Chats that appear
	// later default to direct-message context until a poll tick sees
	// them.
	chatMeta sync.Map

	cancel   context.CancelFunc
	stopOnce sync.Once
	pollDone chan struct{}
}

// StartSession brings up the ingestion engine for one account: health
// check, login readiness wait, history seeding, then the live stream
// and the poll loop. The returned session runs until Stop or until ctx
// is cancelled.
func StartSession(ctx context.Context, cfg SessionConfig) (*Session, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("account", cfg.AccountID)

	if !cfg.Backend.Health(ctx) {
		err := fmt.Errorf("status backend for account %q is not reachable", cfg.AccountID)
		if cfg.Registry != nil {
			cfg.Registry.update(cfg.AccountID, func(s *AccountStatus) {
				s.Running = false
				s.LastError = err.Error()
			})
		}
		return nil, err
	}

	store := cfg.Store
	if store == nil {
		store = NewStore()
	}

	s := &Session{
		accountID: cfg.AccountID,
		backend:   cfg.Backend,
		store:     store,
		registry:  cfg.Registry,
		log:       log,
		pollDone:  make(chan struct{}),
	}

	selfPubkey := s.waitReady(ctx, cfg)

	s.handler = NewHandler(HandlerConfig{
		AccountID:  cfg.AccountID,
		Store:      store,
		Sink:       cfg.Sink,
		RoutingKey: cfg.RoutingKey,
		SelfPubkey: selfPubkey,
		Registry:   cfg.Registry,
		Logger:     log,
		Metrics:    cfg.Metrics,
	})

	s.seed(ctx, cfg)

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.conn = signals.Connect(runCtx, signals.Config{
		URL: cfg.SignalsURL,
		OnMessage: func(msg backend.Message) {
			s.handler.Handle(runCtx, msg, s.chatContext(msg.ChatID))
		},
		OnError: func(err error) {
			log.Debug("signals stream error", "error", err)
		},
		OnReconnect: func(attempt int, delay time.Duration) {
			cfg.Metrics.Reconnect(cfg.AccountID)
		},
		Logger: log,
		Dial:   cfg.Dial,
	})

	poller := NewPoller(PollerConfig{
		AccountID: cfg.AccountID,
		Backend:   cfg.Backend,
		Store:     store,
		Handler:   s.handler,
		Interval:  cfg.PollInterval,
		Limit:     cfg.PollLimit,
		Logger:    log,
		Metrics:   cfg.Metrics,
	})
	go func() {
		defer close(s.pollDone)
		poller.Run(runCtx)
	}()

	if cfg.Registry != nil {
		now := time.Now()
		cfg.Registry.update(cfg.AccountID, func(st *AccountStatus) {
			st.Running = true
			st.PublicKey = selfPubkey
			st.LastStartAt = &now
			st.LastError = ""
		})
		cfg.Registry.setConn(cfg.AccountID, s.conn)
	}

	log.Info("session started", "signals_url", cfg.SignalsURL)
	return s, nil
}

// waitReady polls the chat list until the backend account has finished
// logging in, then fetches settings once for the account public key.
// Both steps are advisory: an account that never becomes ready proceeds
// anyway, and a failed settings fetch only disables self-echo
// suppression.
func (s *Session) waitReady(ctx context.Context, cfg SessionConfig) string {
	attempts := cfg.ReadyAttempts
	if attempts <= 0 {
		attempts = DefaultReadyAttempts
	}
	delay := cfg.ReadyDelay
	if delay <= 0 {
		delay = DefaultReadyDelay
	}

	ready := false
	var lastErr error
	for i := 0; i < attempts; i++ {
		if _, err := cfg.Backend.ActiveChats(ctx); err == nil {
			ready = true
			break
		} else {
			lastErr = err
		}
		if i == attempts-1 {
			break
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ""
		case <-timer.C:
		}
	}
	if !ready {
		s.log.Warn("account not ready after login wait, proceeding anyway", "error", lastErr)
	}

	settings, err := cfg.Backend.GetSettings(ctx)
	if err != nil || settings == nil || settings.PublicKey == "" {
		s.log.Warn("settings unavailable, self-echo suppression disabled", "error", err)
		return ""
	}
	return settings.PublicKey
}

// seed marks recent history as delivered before live ingestion starts,
// so a restart does not replay messages the previous process handled.
// Seeding failures degrade to the poll loop's first-tick watermarks.
func (s *Session) seed(ctx context.Context, cfg SessionConfig) {
	chats, err := cfg.Backend.ActiveChats(ctx)
	if err != nil {
		s.log.Warn("seeding skipped, chat list unavailable", "error", err)
		return
	}

	limit := cfg.PollLimit
	if limit <= 0 {
		limit = DefaultPollLimit
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(seedConcurrency)
	for _, chat := range chats {
		if !chat.Relevant() {
			continue
		}
		s.rememberChat(chat)
		g.Go(func() error {
			page, err := cfg.Backend.ChatMessages(gctx, chat.ID, "", limit)
			if err != nil {
				s.log.Warn("seeding chat failed", "chat", chat.ID, "error", err)
				return nil
			}
			var maxTs int64
			for _, msg := range page.Messages {
				s.store.MarkSeen(msg.ID)
				if ts := msg.When(); ts > maxTs {
					maxTs = ts
				}
			}
			if maxTs > 0 {
				s.store.AdvanceWatermark(chat.ID, maxTs)
			}
			return nil
		})
	}
	_ = g.Wait()
	s.log.Info("seeding complete",
		"chats", s.store.WatermarkCount(),
		"messages", s.store.SeenCount(),
	)
}

func (s *Session) rememberChat(chat backend.Chat) {
	meta := ChatContext{ChatID: chat.ID}
	if chat.IsGroup() {
		meta.GroupName = chat.Name
		if meta.GroupName == "" {
			meta.GroupName = "group"
		}
	}
	s.chatMeta.Store(chat.ID, meta)
}

func (s *Session) chatContext(chatID string) ChatContext {
	if v, ok := s.chatMeta.Load(chatID); ok {
		return v.(ChatContext)
	}
	return ChatContext{ChatID: chatID}
}

// Send delivers an outbound direct message through the session's
// backend and records the send time in the registry.
func (s *Session) Send(ctx context.Context, chatID, text string) error {
	if err := s.backend.SendOneToOneMessage(ctx, chatID, text); err != nil {
		return err
	}
	if s.registry != nil {
		s.registry.MarkOutbound(s.accountID, time.Now())
	}
	return nil
}

// Store exposes the session's dedup store.
func (s *Session) Store() *Store { return s.store }

// Connected reports whether the signals stream is currently up.
func (s *Session) Connected() bool { return s.conn.Connected() }

// Stop shuts the session down: stream closed, poll loop cancelled,
// registry updated. Idempotent.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		s.conn.Close()
		<-s.pollDone
		if s.registry != nil {
			now := time.Now()
			s.registry.clearConn(s.accountID)
			s.registry.update(s.accountID, func(st *AccountStatus) {
				st.Running = false
				st.LastStopAt = &now
			})
		}
		s.log.Info("session stopped")
	})
}
