package supervisor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/oshokin/alarm-bridge/internal/logger"
	"github.com/oshokin/alarm-bridge/internal/syncutil"
)

// Link is the connection manager as seen by the supervisor.
type Link interface {
	Connect(ctx context.Context) (string, error)
	Disconnect(ctx context.Context) error
	Connected() bool
	Done() <-chan struct{}
	ReadErrors() int64
}

// Options configures a Supervisor.
type Options struct {
	// Link is the supervised connection manager. Required.
	Link Link
	// Clock drives backoff and health checks. Nil uses the real clock.
	Clock clockwork.Clock
	// Interval is the first retry delay and the health check period.
	Interval time.Duration
	// MaxInterval caps the retry delay.
	MaxInterval time.Duration
	// MaxReadErrors consecutive read errors make the link count as lost. Zero disables the check.
	MaxReadErrors int
	// HotplugPatterns are device file globs watched for new devices. Empty disables hot-plug.
	HotplugPatterns []string
}

// Supervisor keeps the link connected unless an operator disconnected it.
type Supervisor struct {
	opts  Options
	clock clockwork.Clock

	// opMu serializes connect and disconnect, so a background attempt cannot
	// reopen a link an operator just closed.
	opMu   syncutil.Mutex
	paused atomic.Bool
	wake   chan struct{}
}

// New creates a Supervisor. Nothing happens until Run.
func New(opts Options) *Supervisor {
	s := &Supervisor{
		opts:  opts,
		clock: opts.Clock,
		wake:  make(chan struct{}, 1),
	}

	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}

	return s
}

// Run keeps the link connected until ctx is canceled. It does not disconnect
// on return; the caller owns shutdown.
func (s *Supervisor) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "supervisor")

	if len(s.opts.HotplugPatterns) > 0 {
		stop, err := watchHotplug(ctx, s.opts.HotplugPatterns, s.poke)
		if err != nil {
			logger.WarnKV(ctx, "Hot-plug detection disabled", "error", err)
		} else {
			defer stop()
		}
	}

	delay := s.opts.Interval

	for ctx.Err() == nil {
		if s.paused.Load() {
			s.waitWake(ctx)

			continue
		}

		if !s.opts.Link.Connected() {
			if err := s.attempt(ctx); err != nil {
				if ctx.Err() != nil {
					break
				}

				logger.WarnKV(ctx, "Connect failed, will retry", "error", err, "retry_in", delay)
				s.waitRetry(ctx, delay)
				delay = s.backoff(delay)

				continue
			}
		}

		up := s.clock.Now()
		lost := s.watch(ctx)

		if s.clock.Since(up) >= s.opts.Interval {
			delay = s.opts.Interval

			continue
		}

		// A link that drops before one health period counts as a failed attempt.
		if lost {
			logger.WarnKV(ctx, "Serial link dropped right after connecting", "retry_in", delay)
			s.waitRetry(ctx, delay)
			delay = s.backoff(delay)
		}
	}

	return nil
}

func (s *Supervisor) backoff(delay time.Duration) time.Duration {
	return min(delay*2, s.opts.MaxInterval) //nolint:mnd // exponential backoff
}

// attempt connects unless an operator paused the supervisor meanwhile.
func (s *Supervisor) attempt(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.paused.Load() || s.opts.Link.Connected() {
		return nil
	}

	_, err := s.opts.Link.Connect(ctx)

	return err
}

// watch returns when the link is lost, keeps failing reads, or an operator
// request arrives. It reports true only when the link went away on its own.
func (s *Supervisor) watch(ctx context.Context) bool {
	done := s.opts.Link.Done()

	select {
	case <-done:
		return s.lost(ctx)
	default:
	}

	ticker := s.clock.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-s.wake:
			return false
		case <-done:
			return s.lost(ctx)
		case <-ticker.Chan():
			errs := s.opts.Link.ReadErrors()
			if s.opts.MaxReadErrors <= 0 || errs < int64(s.opts.MaxReadErrors) {
				continue
			}

			logger.ErrorKV(ctx, "Too many serial read errors, reconnecting", "consecutive_errors", errs)

			if err := s.disconnect(ctx); err != nil {
				logger.WarnKV(ctx, "Disconnect failed", "error", err)
			}

			return false
		}
	}
}

func (s *Supervisor) lost(ctx context.Context) bool {
	if s.paused.Load() || ctx.Err() != nil {
		return false
	}

	logger.WarnKV(ctx, "Serial link lost, reconnecting")

	return true
}

func (s *Supervisor) waitRetry(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-s.wake:
	case <-s.clock.After(d):
	}
}

func (s *Supervisor) waitWake(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-s.wake:
	}
}

// poke wakes the loop without blocking.
func (s *Supervisor) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Supervisor) disconnect(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	return s.opts.Link.Disconnect(ctx)
}

// Connect connects now on operator request and resumes supervision.
func (s *Supervisor) Connect(ctx context.Context) (string, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.paused.Store(false)
	defer s.poke()

	name, err := s.opts.Link.Connect(ctx)
	if err != nil {
		return "", err
	}

	return name, nil
}

// Disconnect closes the link on operator request. No reconnect is attempted
// until the next Connect.
func (s *Supervisor) Disconnect(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.paused.Store(true)
	defer s.poke()

	return s.opts.Link.Disconnect(ctx)
}

// Paused reports whether an operator disconnect is in effect.
func (s *Supervisor) Paused() bool {
	return s.paused.Load()
}
