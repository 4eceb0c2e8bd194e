package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/openclaw/status-relay/internal/backend"
	"github.com/openclaw/status-relay/internal/config"
	"github.com/openclaw/status-relay/internal/metrics"
	"github.com/openclaw/status-relay/internal/relay"
	"github.com/openclaw/status-relay/internal/sink"
)

type runFlags struct {
	MetricsAddr   string
	RedisAddr     string
	RedisStream   string
	RedisDB       int
	RedisPassword string
	PollInterval  time.Duration
	RoutingKey    string
}

func newRunCmd() *cobra.Command {
	var rf runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the relay gateway for all configured accounts",
		Long: `Run starts an ingestion session per enabled account: seed recent
history, open the signals stream, and reconcile with a periodic poll.
Accepted messages go to the event sink (stdout, or a Redis stream with
--redis-addr). The gateway runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGateway(cmd, rf)
		},
	}
	cmd.Flags().StringVar(&rf.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g., :9090)")
	cmd.Flags().StringVar(&rf.RedisAddr, "redis-addr", "", "Deliver events to a Redis stream at this address instead of stdout")
	cmd.Flags().StringVar(&rf.RedisStream, "redis-stream", sink.DefaultStream, "Redis stream name for delivered events")
	cmd.Flags().IntVar(&rf.RedisDB, "redis-db", 0, "Redis database number")
	cmd.Flags().StringVar(&rf.RedisPassword, "redis-password", "", "Redis password")
	cmd.Flags().DurationVar(&rf.PollInterval, "poll-interval", relay.DefaultPollInterval, "Reconciliation poll period")
	cmd.Flags().StringVar(&rf.RoutingKey, "routing-key", "", "Routing key override for all accounts")
	return cmd
}

func runGateway(cmd *cobra.Command, rf runFlags) error {
	accounts, err := config.LoadAll()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if rf.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		server := &http.Server{Addr: rf.MetricsAddr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", "addr", rf.MetricsAddr, "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
		slog.Info("serving metrics", "addr", rf.MetricsAddr)
	}

	eventSink, closeSink, err := buildSink(ctx, cmd, rf)
	if err != nil {
		return err
	}
	defer closeSink()

	registry := relay.NewRegistry()

	var (
		mu       sync.Mutex
		sessions []*relay.Session
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, account := range accounts {
		g.Go(func() error {
			client := backend.New(account.Port)
			routingKey := account.RoutingKey
			if rf.RoutingKey != "" {
				routingKey = rf.RoutingKey
			}
			session, err := relay.StartSession(gctx, relay.SessionConfig{
				AccountID:    account.Name,
				Backend:      client,
				SignalsURL:   client.SignalsURL(),
				Sink:         eventSink,
				RoutingKey:   routingKey,
				Registry:     registry,
				Metrics:      m,
				PollInterval: rf.PollInterval,
			})
			if err != nil {
				// One broken account must not take the gateway down.
				slog.Error("account session failed to start", "account", account.Name, "error", err)
				return nil
			}
			mu.Lock()
			sessions = append(sessions, session)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if len(sessions) == 0 {
		return fmt.Errorf("no account session could be started")
	}
	slog.Info("gateway running", "accounts", len(sessions))

	<-ctx.Done()
	slog.Info("shutting down")
	for _, session := range sessions {
		session.Stop()
	}
	for _, status := range registry.Snapshots() {
		slog.Info("final account status",
			"account", status.AccountID,
			"last_inbound_at", status.LastInboundAt,
			"last_error", status.LastError,
		)
	}
	return nil
}

func buildSink(ctx context.Context, cmd *cobra.Command, rf runFlags) (relay.Sink, func(), error) {
	if rf.RedisAddr == "" {
		return sink.NewWriter(cmd.OutOrStdout()), func() {}, nil
	}
	redisSink, err := sink.NewRedis(ctx, sink.RedisConfig{
		Addr:     rf.RedisAddr,
		Password: rf.RedisPassword,
		DB:       rf.RedisDB,
		Stream:   rf.RedisStream,
	})
	if err != nil {
		return nil, nil, err
	}
	slog.Info("delivering events to redis", "addr", rf.RedisAddr, "stream", rf.RedisStream)
	return redisSink, func() { _ = redisSink.Close() }, nil
}
