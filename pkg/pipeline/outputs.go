package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// ErrOutputBackpressure is returned by PublishConfirmed when the confirmed
// channel stays full past its configured timeout. Unlike the working
// channel, confirmed text is never dropped silently: losing it here would
// break the append-only transcript guarantee, so the caller must decide
// how to handle a consumer that has fallen behind.
var ErrOutputBackpressure = errors.New("pipeline: confirmed output channel backpressure")

// Update is one published transcript delta, working or confirmed.
type Update struct {
	Text string
	Seq  uint64
}

// Outputs are the pipeline's two external-facing channels. working is
// lossy: a full channel drops the oldest pending update rather than block,
// since each new working update supersedes the last anyway. confirmed
// blocks the caller up to ConfirmedTimeout, since confirmed text must
// never be silently lost.
type Outputs struct {
	working   chan Update
	confirmed chan Update

	confirmedTimeout time.Duration
	seq              atomic.Uint64
}

// Config tunes the output channels' buffering and backpressure behavior.
type Config struct {
	WorkingBufferSize   int
	ConfirmedBufferSize int
	ConfirmedTimeout    time.Duration
}

func (c Config) withDefaults() Config {
	if c.WorkingBufferSize == 0 {
		c.WorkingBufferSize = 1
	}
	if c.ConfirmedBufferSize == 0 {
		c.ConfirmedBufferSize = 16
	}
	if c.ConfirmedTimeout == 0 {
		c.ConfirmedTimeout = 2 * time.Second
	}
	return c
}

// NewOutputs constructs the output channels. Zero-valued Config fields
// fall back to sane defaults.
func NewOutputs(cfg Config) *Outputs {
	cfg = cfg.withDefaults()
	return &Outputs{
		working:          make(chan Update, cfg.WorkingBufferSize),
		confirmed:        make(chan Update, cfg.ConfirmedBufferSize),
		confirmedTimeout: cfg.ConfirmedTimeout,
	}
}

// Working returns the channel external consumers should range over to
// observe the current tentative hypothesis.
func (o *Outputs) Working() <-chan Update {
	return o.working
}

// Confirmed returns the channel external consumers should range over to
// observe the monotonic confirmed transcript, delta by delta.
func (o *Outputs) Confirmed() <-chan Update {
	return o.confirmed
}

// PublishWorking sends text on the working channel, dropping the oldest
// pending update if the channel is full rather than blocking the
// transcriber thread.
func (o *Outputs) PublishWorking(text string) {
	update := Update{Text: text, Seq: o.seq.Add(1)}
	for {
		select {
		case o.working <- update:
			return
		default:
		}
		select {
		case <-o.working:
		default:
		}
	}
}

// PublishConfirmed sends text on the confirmed channel, blocking until it
// is accepted, ctx is canceled, or ConfirmedTimeout elapses. A timeout
// surfaces ErrOutputBackpressure rather than silently dropping confirmed
// text.
func (o *Outputs) PublishConfirmed(ctx context.Context, text string) error {
	update := Update{Text: text, Seq: o.seq.Add(1)}

	timer := time.NewTimer(o.confirmedTimeout)
	defer timer.Stop()

	select {
	case o.confirmed <- update:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pipeline: publish confirmed canceled: %w", ctx.Err())
	case <-timer.C:
		return ErrOutputBackpressure
	}
}

// Close closes both output channels. Call only after the producing
// goroutine has fully stopped.
func (o *Outputs) Close() {
	close(o.working)
	close(o.confirmed)
}
