// Package sink provides event sink implementations for accepted
// inbound messages: a plain writer for interactive runs and a Redis
// stream for gateway deployments.
package sink

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Writer emits each event as one line on an io.Writer. It is the
// default sink for foreground runs.
type Writer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewWriter creates a line-oriented sink.
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

func (w *Writer) Deliver(ctx context.Context, text, routingKey string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := fmt.Fprintf(w.out, "%s %s\n", routingKey, text)
	return err
}
