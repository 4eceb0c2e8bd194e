package signals

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/status-relay/internal/backend"
)

// fakeTransport feeds scripted frames to the read loop and then fails
// with errClosed, simulating an unexpected connection drop.
type fakeTransport struct {
	frames chan []byte
	closed chan struct{}
	once   sync.Once
}

var errClosed = errors.New("connection closed")

func newFakeTransport(frames ...string) *fakeTransport {
	t := &fakeTransport{
		frames: make(chan []byte, len(frames)+1),
		closed: make(chan struct{}),
	}
	for _, f := range frames {
		t.frames <- []byte(f)
	}
	return t
}

func (t *fakeTransport) Read(ctx context.Context) ([]byte, error) {
	select {
	case data := <-t.frames:
		return data, nil
	case <-t.closed:
		return nil, errClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *fakeTransport) Close() error {
	t.once.Do(func() { close(t.closed) })
	return nil
}

func TestReconnectDelay(t *testing.T) {
	// min(1000ms * 2^attempt, 30000ms)
	want := []time.Duration{
		1000 * time.Millisecond,
		2000 * time.Millisecond,
		4000 * time.Millisecond,
		8000 * time.Millisecond,
		16000 * time.Millisecond,
		30000 * time.Millisecond,
		30000 * time.Millisecond,
	}
	for attempt, expected := range want {
		if got := ReconnectDelay(attempt); got != expected {
			t.Errorf("ReconnectDelay(%d) = %s, want %s", attempt, got, expected)
		}
	}
	// Large attempt counts must not overflow into negative delays.
	if got := ReconnectDelay(64); got != ReconnectMax {
		t.Errorf("ReconnectDelay(64) = %s, want %s", got, ReconnectMax)
	}
}

func TestBackoffSequenceAndResetOnConnect(t *testing.T) {
	// Six transports that die immediately, then one that stays up and
	// then dies once more. The attempt counter must reset to zero on
	// the successful connect.
	var mu sync.Mutex
	var attempts []int
	var delays []time.Duration

	dials := 0
	connected := make(chan struct{}, 1)
	dial := func(ctx context.Context, url string) (Transport, error) {
		dials++
		if dials <= 6 {
			return nil, fmt.Errorf("dial %d refused", dials)
		}
		tr := newFakeTransport()
		if dials == 7 {
			connected <- struct{}{}
			// Die shortly after connecting so one more reconnect is scheduled.
			go func() {
				time.Sleep(20 * time.Millisecond)
				_ = tr.Close()
			}()
		}
		return tr, nil
	}

	conn := Connect(context.Background(), Config{
		URL:       "ws://test/signals",
		OnMessage: func(backend.Message) {},
		OnReconnect: func(attempt int, delay time.Duration) {
			mu.Lock()
			attempts = append(attempts, attempt)
			delays = append(delays, delay)
			mu.Unlock()
		},
		Dial:          dial,
		ReconnectBase: time.Millisecond,
		ReconnectMax:  30 * time.Millisecond,
	})
	defer conn.Close()

	select {
	case <-connected:
	case <-time.After(5 * time.Second):
		t.Fatal("never connected")
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(attempts) >= 7
	}, 5*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 0}, attempts[:7])
	// min(1ms * 2^attempt, 30ms), then reset to the base.
	expected := []time.Duration{
		1 * time.Millisecond,
		2 * time.Millisecond,
		4 * time.Millisecond,
		8 * time.Millisecond,
		16 * time.Millisecond,
		30 * time.Millisecond,
		1 * time.Millisecond,
	}
	assert.Equal(t, expected, delays[:7])
}

func TestMessagesForwardedInOrder(t *testing.T) {
	frames := []string{
		`{"type":"messages.new","event":{"messages":[
			{"id":"m1","from":"0xa","text":"one","timestamp":1},
			{"id":"m2","from":"0xa","text":"two","timestamp":2}
		]}}`,
		`not json at all`,
		`{"no_type_field":true}`,
		`{"type":"wakuv2.peerstats","event":{}}`,
		`{"type":"messages.new","event":{"messages":[
			{"id":"m3","from":"0xb","text":"three","timestamp":3}
		]}}`,
	}
	tr := newFakeTransport(frames...)

	var mu sync.Mutex
	var got []string
	conn := Connect(context.Background(), Config{
		URL: "ws://test/signals",
		OnMessage: func(m backend.Message) {
			mu.Lock()
			got = append(got, m.ID)
			mu.Unlock()
		},
		Dial: func(ctx context.Context, url string) (Transport, error) {
			return tr, nil
		},
		ReconnectBase: time.Hour, // no second dial during the test
	})
	defer conn.Close()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	}, 5*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"m1", "m2", "m3"}, got)
}

func TestConnectedFlag(t *testing.T) {
	tr := newFakeTransport()
	dialed := make(chan struct{})
	conn := Connect(context.Background(), Config{
		URL:       "ws://test/signals",
		OnMessage: func(backend.Message) {},
		Dial: func(ctx context.Context, url string) (Transport, error) {
			defer close(dialed)
			return tr, nil
		},
	})
	defer conn.Close()

	<-dialed
	require.Eventually(t, func() bool { return conn.Connected() }, 2*time.Second, time.Millisecond)
	assert.Equal(t, StateConnected, conn.State())

	conn.Close()
	assert.False(t, conn.Connected())
	assert.Equal(t, StateClosed, conn.State())
}

func TestCloseIsIdempotentAndStopsReconnects(t *testing.T) {
	var mu sync.Mutex
	dials := 0
	dial := func(ctx context.Context, url string) (Transport, error) {
		mu.Lock()
		dials++
		mu.Unlock()
		return nil, errors.New("refused")
	}

	conn := Connect(context.Background(), Config{
		URL:           "ws://test/signals",
		OnMessage:     func(backend.Message) {},
		Dial:          dial,
		ReconnectBase: time.Millisecond,
		ReconnectMax:  2 * time.Millisecond,
	})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return dials >= 2
	}, 2*time.Second, time.Millisecond)

	conn.Close()
	conn.Close() // second call must be a no-op

	mu.Lock()
	after := dials
	mu.Unlock()
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, after, dials, "no dials after Close")
	mu.Unlock()
	assert.Equal(t, StateClosed, conn.State())
}

func TestCancellationClosesConnection(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tr := newFakeTransport()
	conn := Connect(ctx, Config{
		URL:       "ws://test/signals",
		OnMessage: func(backend.Message) {},
		Dial: func(ctx context.Context, url string) (Transport, error) {
			return tr, nil
		},
	})

	require.Eventually(t, func() bool { return conn.Connected() }, 2*time.Second, time.Millisecond)
	cancel()

	select {
	case <-conn.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("connection loop did not stop after cancellation")
	}
	assert.False(t, conn.Connected())
}

func TestErrorCallback(t *testing.T) {
	errs := make(chan error, 1)
	conn := Connect(context.Background(), Config{
		URL:       "ws://test/signals",
		OnMessage: func(backend.Message) {},
		OnError: func(err error) {
			select {
			case errs <- err:
			default:
			}
		},
		Dial: func(ctx context.Context, url string) (Transport, error) {
			return nil, errors.New("refused")
		},
		ReconnectBase: time.Hour,
	})
	defer conn.Close()

	select {
	case err := <-errs:
		assert.Contains(t, err.Error(), "refused")
	case <-time.After(2 * time.Second):
		t.Fatal("error callback never invoked")
	}
}
