// Package bridge contains the clipboard synchronization core: it turns local
// clipboard changes into broker publishes and broker messages into clipboard
// writes, without ever echoing an inbound message back out.
//
// The hazard is that clipboard change notification is origin-blind: writing
// an inbound message into the clipboard fires the same notification as a
// user copying text. The bridge therefore keeps a snapshot of the last
// content it has seen and updates it under one mutex in both directions.
// On the inbound path the update happens strictly together with the
// clipboard write, so that by the time the write's own notification reaches
// the outbound rule the snapshot already matches and the change is filtered
// out.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/clipbridge/clipbridge/internal/dedup"
)

// Clipboard is the subset of clipboard access the bridge needs.
type Clipboard interface {
	// Read returns the current clipboard text; "" means no text available.
	Read() (string, error)
	// Write replaces the clipboard contents.
	Write(text string) error
}

// Publisher sends outbound content to the broker topic.
type Publisher interface {
	Publish(content string) error
}

// State is the bridge lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateShuttingDown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting-down"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// outboundQueueSize bounds the watcher-to-publisher handoff. The watcher
// blocks rather than drops when the publisher falls behind, preserving
// publish order.
const outboundQueueSize = 16

// Bridge owns the last-seen snapshot and the outbound queue.
type Bridge struct {
	clip Clipboard
	pub  Publisher

	mu       sync.Mutex
	snapshot string

	outbound chan string
	state    atomic.Int32
}

// New returns an Idle bridge. The snapshot starts empty: after a restart the
// first real clipboard content is always treated as new.
func New(clip Clipboard, pub Publisher) *Bridge {
	return &Bridge{
		clip:     clip,
		pub:      pub,
		outbound: make(chan string, outboundQueueSize),
	}
}

// State returns the current lifecycle state.
func (b *Bridge) State() State {
	return State(b.state.Load())
}

// Snapshot returns the last content value known to the bridge.
func (b *Bridge) Snapshot() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshot
}

// OnClipboardChange applies the outbound rule: read the clipboard and, if
// the text differs from the snapshot, record it and queue it for publish.
// A read failure or absent text is a no-op, not an error.
func (b *Bridge) OnClipboardChange() {
	text, err := b.clip.Read()
	if err != nil {
		slog.Debug("clipboard read failed", "err", err)
		return
	}
	if text == "" {
		return
	}

	b.mu.Lock()
	changed := dedup.Changed(text, b.snapshot)
	if changed {
		b.snapshot = text
	}
	b.mu.Unlock()

	if changed {
		slog.Debug("local clipboard changed", "bytes", len(text))
		b.outbound <- text
	}
}

// HandleInbound applies the inbound rule: decode the payload as UTF-8 and
// write it into the clipboard. Invalid UTF-8 is dropped silently.
//
// The clipboard write and the snapshot update happen under one critical
// section. The snapshot is therefore current before the outbound rule can
// observe the change notification this write triggers, which is what keeps
// the bridge from re-publishing its own inbound writes.
func (b *Bridge) HandleInbound(payload []byte) {
	if !utf8.Valid(payload) {
		slog.Debug("dropping non-UTF-8 payload", "bytes", len(payload))
		return
	}
	content := string(payload)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.clip.Write(content); err != nil {
		slog.Error("clipboard write failed", "err", err, "bytes", len(content))
		return
	}
	b.snapshot = content
	slog.Info("received from broker", "bytes", len(content))
}

// Run drives the bridge until ctx is cancelled, a publish fails, or the
// broker connection is lost. Three contexts run concurrently:
//
//   - the watcher loop drains watch and applies the outbound rule
//   - the publish loop drains the outbound queue sequentially
//   - the inbound loop (this goroutine) drains inbound and lost
//
// A publish failure or connection loss is fatal: Run returns the error and
// the process is expected to exit. Cancellation returns nil.
func (b *Bridge) Run(ctx context.Context, watch <-chan struct{}, inbound <-chan []byte, lost <-chan error) error {
	if !b.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return fmt.Errorf("bridge: already started (state %s)", b.State())
	}
	defer b.state.Store(int32(StateShuttingDown))

	// Stops the watcher and publish loops on every return path, not just
	// external cancellation.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-watch:
				b.OnClipboardChange()
			}
		}
	}()

	pubErr := make(chan error, 1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case content := <-b.outbound:
				if err := b.pub.Publish(content); err != nil {
					pubErr <- err
					return
				}
				slog.Info("published to broker", "bytes", len(content))
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-pubErr:
			return fmt.Errorf("bridge: publish: %w", err)
		case err := <-lost:
			return fmt.Errorf("bridge: broker connection lost: %w", err)
		case payload := <-inbound:
			b.HandleInbound(payload)
		}
	}
}
