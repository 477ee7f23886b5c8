// Package narration voices sentiment results one story at a time. All
// narration in the process funnels through a single Lock, and a stuck
// speaker is force-released after a timeout so rotation never stalls on a
// voice request.
package narration

import (
	"context"
	"log/slog"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

// Lock is the process-wide single-writer token for narration. At most one
// holder at a time, across all categories.
type Lock struct {
	ch chan struct{}
}

func NewLock() *Lock {
	return &Lock{ch: make(chan struct{}, 1)}
}

// Acquire blocks until the lock is free.
func (l *Lock) Acquire() {
	l.ch <- struct{}{}
}

// TryAcquire attempts to take the lock within d.
func (l *Lock) TryAcquire(d time.Duration) bool {
	select {
	case l.ch <- struct{}{}:
		return true
	case <-time.After(d):
		return false
	}
}

// Release frees the lock. The holder must call it exactly once.
func (l *Lock) Release() {
	<-l.ch
}

// Held reports whether the lock is currently taken.
func (l *Lock) Held() bool {
	return len(l.ch) == 1
}

// Speaker converts one piece of text to speech. Implementations should
// respect ctx cancellation; the narrator abandons them if they do not.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// ExecSpeaker shells out to a TTS binary (say, espeak, espeak-ng).
type ExecSpeaker struct {
	Command string
}

func (s *ExecSpeaker) Speak(ctx context.Context, text string) error {
	cmd := s.Command
	if cmd == "" {
		for _, candidate := range []string{"say", "espeak-ng", "espeak"} {
			if _, err := exec.LookPath(candidate); err == nil {
				cmd = candidate
				break
			}
		}
	}
	if cmd == "" {
		return nil // no TTS binary on this host; narration is a no-op
	}
	return exec.CommandContext(ctx, cmd, text).Run()
}

// NopSpeaker discards narration; used for --no-narration and tests.
type NopSpeaker struct{}

func (NopSpeaker) Speak(context.Context, string) error { return nil }

// Narrator drains a queue of narration requests through a Speaker,
// serialized on the shared Lock.
type Narrator struct {
	speaker Speaker
	lock    *Lock
	timeout time.Duration
	log     *slog.Logger

	queue   chan string
	quit    chan struct{}
	done    chan struct{}
	stopped sync.Once
	dropped atomic.Int64
	spoken  atomic.Int64
}

func New(speaker Speaker, lock *Lock, timeout time.Duration, log *slog.Logger) *Narrator {
	if speaker == nil {
		speaker = NopSpeaker{}
	}
	if lock == nil {
		lock = NewLock()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	n := &Narrator{
		speaker: speaker,
		lock:    lock,
		timeout: timeout,
		log:     log,
		queue:   make(chan string, 16),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go n.drain()
	return n
}

// Enqueue queues text for narration without blocking. When the queue is
// full the request is dropped: narration is enrichment, not a backlog.
func (n *Narrator) Enqueue(text string) {
	if text == "" {
		return
	}
	select {
	case n.queue <- text:
	default:
		n.dropped.Add(1)
		n.log.Debug("narration queue full, dropping", "text", text)
	}
}

// Dropped returns how many narrations were abandoned (queue overflow or
// forced timeout release).
func (n *Narrator) Dropped() int {
	return int(n.dropped.Load())
}

// Spoken returns how many narrations completed without error.
func (n *Narrator) Spoken() int {
	return int(n.spoken.Load())
}

// Stop shuts the narrator down and waits for the drain goroutine to exit.
func (n *Narrator) Stop() {
	n.stopped.Do(func() { close(n.quit) })
	<-n.done
}

func (n *Narrator) drain() {
	defer close(n.done)
	for {
		select {
		case <-n.quit:
			return
		case text := <-n.queue:
			n.speakOne(text)
		}
	}
}

func (n *Narrator) speakOne(text string) {
	n.lock.Acquire()
	var once sync.Once
	release := func() { once.Do(n.lock.Release) }
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	result := make(chan error, 1)
	go func() {
		result <- n.speaker.Speak(ctx, text)
	}()

	select {
	case err := <-result:
		if err != nil {
			n.log.Warn("narration failed", "err", err)
		} else {
			n.spoken.Add(1)
		}
	case <-ctx.Done():
		// Force-release so the next narration is not blocked by a stuck
		// voice request. The speaker goroutine is abandoned.
		release()
		n.dropped.Add(1)
		n.log.Warn("narration timed out, force-releasing", "timeout", n.timeout)
	}
}
