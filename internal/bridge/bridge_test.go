package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeClipboard struct {
	mu       sync.Mutex
	text     string
	writes   int
	readErr  error
	writeErr error
}

func (c *fakeClipboard) Read() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return "", c.readErr
	}
	return c.text, nil
}

func (c *fakeClipboard) Write(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.text = text
	c.writes++
	return nil
}

func (c *fakeClipboard) setText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = text
}

func (c *fakeClipboard) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes
}

type fakePublisher struct {
	mu        sync.Mutex
	published []string
	err       error
}

func (p *fakePublisher) Publish(content string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, content)
	return nil
}

func (p *fakePublisher) all() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.published...)
}

// drainOutbound empties the bridge's outbound queue without running the
// publish loop, for tests that exercise the rules directly.
func drainOutbound(b *Bridge) []string {
	var out []string
	for {
		select {
		case s := <-b.outbound:
			out = append(out, s)
		default:
			return out
		}
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestOutboundRuleForwardsDistinctChangesInOrder(t *testing.T) {
	clip := &fakeClipboard{}
	b := New(clip, &fakePublisher{})

	clip.setText("a")
	b.OnClipboardChange()
	clip.setText("b")
	b.OnClipboardChange()

	got := drainOutbound(b)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("expected [a b], got %v", got)
	}
	if b.Snapshot() != "b" {
		t.Errorf("snapshot = %q, want %q", b.Snapshot(), "b")
	}
}

func TestOutboundRuleIsIdempotent(t *testing.T) {
	clip := &fakeClipboard{}
	b := New(clip, &fakePublisher{})

	clip.setText("same")
	b.OnClipboardChange()
	b.OnClipboardChange()

	if got := drainOutbound(b); len(got) != 1 {
		t.Fatalf("expected exactly one event for repeated content, got %v", got)
	}
}

func TestOutboundRuleIgnoresReadFailureAndEmptyClipboard(t *testing.T) {
	clip := &fakeClipboard{readErr: errors.New("no text available")}
	b := New(clip, &fakePublisher{})

	b.OnClipboardChange()

	clip.mu.Lock()
	clip.readErr = nil
	clip.mu.Unlock()
	b.OnClipboardChange() // clipboard still empty

	if got := drainOutbound(b); len(got) != 0 {
		t.Fatalf("expected no events, got %v", got)
	}
}

// The core regression test: content applied from the broker must not be
// detected as a new local change by the notification its own write fires.
func TestInboundWriteIsNotEchoed(t *testing.T) {
	clip := &fakeClipboard{}
	b := New(clip, &fakePublisher{})

	b.HandleInbound([]byte("hello"))

	if clip.text != "hello" {
		t.Fatalf("clipboard = %q, want %q", clip.text, "hello")
	}
	if b.Snapshot() != "hello" {
		t.Fatalf("snapshot = %q, want %q", b.Snapshot(), "hello")
	}

	// Spurious watcher notification caused by the write itself.
	b.OnClipboardChange()

	if got := drainOutbound(b); len(got) != 0 {
		t.Fatalf("inbound write was echoed back: %v", got)
	}
}

func TestInboundDropsInvalidUTF8(t *testing.T) {
	clip := &fakeClipboard{}
	b := New(clip, &fakePublisher{})

	b.HandleInbound([]byte{0xff, 0xfe, 0xfd})

	if clip.writeCount() != 0 {
		t.Errorf("expected zero clipboard writes, got %d", clip.writeCount())
	}
	if b.Snapshot() != "" {
		t.Errorf("snapshot = %q, want empty", b.Snapshot())
	}
}

func TestInboundWriteFailureLeavesSnapshot(t *testing.T) {
	clip := &fakeClipboard{writeErr: errors.New("clipboard busy")}
	b := New(clip, &fakePublisher{})

	b.HandleInbound([]byte("lost"))

	if b.Snapshot() != "" {
		t.Errorf("snapshot updated despite failed write: %q", b.Snapshot())
	}
}

// Scenario from the design: user alice, device phone1, empty clipboard.
// Copy "abc" → published once. Receive "xyz" → clipboard is "xyz" and the
// resulting notification publishes nothing.
func TestRunScenario(t *testing.T) {
	clip := &fakeClipboard{}
	pub := &fakePublisher{}
	b := New(clip, pub)

	watch := make(chan struct{}, 1)
	inbound := make(chan []byte)
	lost := make(chan error)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx, watch, inbound, lost) }()

	waitFor(t, func() bool { return b.State() == StateRunning }, "bridge never reached running state")

	clip.setText("abc")
	watch <- struct{}{}
	waitFor(t, func() bool { return len(pub.all()) == 1 }, "local change was not published")
	if got := pub.all(); got[0] != "abc" {
		t.Fatalf("published %q, want %q", got[0], "abc")
	}

	inbound <- []byte("xyz")
	waitFor(t, func() bool { return clip.writeCount() == 1 }, "inbound message was not applied")
	if got, _ := clip.Read(); got != "xyz" {
		t.Fatalf("clipboard = %q, want %q", got, "xyz")
	}

	// The write above fires a change notification on a real platform.
	watch <- struct{}{}
	time.Sleep(50 * time.Millisecond)
	if got := pub.all(); len(got) != 1 {
		t.Fatalf("inbound apply triggered an outbound publish: %v", got)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v on cancellation, want nil", err)
	}
	if b.State() != StateShuttingDown {
		t.Errorf("state = %s, want %s", b.State(), StateShuttingDown)
	}
}

// Two bridges joined by an in-memory broker: a change on one side lands on
// the other side's clipboard and is not echoed back.
func TestRoundTripBetweenTwoBridges(t *testing.T) {
	clipA := &fakeClipboard{}
	clipB := &fakeClipboard{}

	inboundB := make(chan []byte, 1)
	pubA := &brokerPublisher{deliverTo: inboundB}
	pubB := &fakePublisher{}

	a := New(clipA, pubA)
	bb := New(clipB, pubB)

	watchA := make(chan struct{}, 1)
	watchB := make(chan struct{}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = a.Run(ctx, watchA, make(chan []byte), make(chan error)) }()
	go func() { _ = bb.Run(ctx, watchB, inboundB, make(chan error)) }()

	clipA.setText("shared text")
	watchA <- struct{}{}

	waitFor(t, func() bool { return clipB.writeCount() == 1 }, "content never reached the second bridge")
	if got, _ := clipB.Read(); got != "shared text" {
		t.Fatalf("second clipboard = %q, want %q", got, "shared text")
	}

	// B's own write notification must not produce a publish from B.
	watchB <- struct{}{}
	time.Sleep(50 * time.Millisecond)
	if got := pubB.all(); len(got) != 0 {
		t.Fatalf("second bridge echoed the inbound content: %v", got)
	}
}

// brokerPublisher simulates broker delivery to another instance.
type brokerPublisher struct {
	deliverTo chan<- []byte
}

func (p *brokerPublisher) Publish(content string) error {
	p.deliverTo <- []byte(content)
	return nil
}

func TestRunStopsOnPublishFailure(t *testing.T) {
	clip := &fakeClipboard{}
	pub := &fakePublisher{err: errors.New("broker rejected publish")}
	b := New(clip, pub)

	watch := make(chan struct{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx, watch, make(chan []byte), make(chan error)) }()

	clip.setText("doomed")
	watch <- struct{}{}

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("Run returned nil after publish failure")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after publish failure")
	}
}

func TestRunStopsOnConnectionLoss(t *testing.T) {
	b := New(&fakeClipboard{}, &fakePublisher{})

	lost := make(chan error, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx, make(chan struct{}), make(chan []byte), lost) }()

	lost <- errors.New("broker went away")

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("Run returned nil after connection loss")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after connection loss")
	}
}

func TestRunRejectsSecondStart(t *testing.T) {
	b := New(&fakeClipboard{}, &fakePublisher{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = b.Run(ctx, make(chan struct{}), make(chan []byte), make(chan error)) }()

	waitFor(t, func() bool { return b.State() == StateRunning }, "bridge never started")

	if err := b.Run(ctx, make(chan struct{}), make(chan []byte), make(chan error)); err == nil {
		t.Fatal("second Run call succeeded, want error")
	}
}
