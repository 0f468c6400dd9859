package process

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/trackbox/internal/infra/metrics"
)

// DefaultKillGrace is the pause between the graceful and the forced stop signal.
const DefaultKillGrace = 50 * time.Millisecond

// The kill signal is delivered asynchronously, so reaping after it is retried
// a bounded number of times.
const (
	reapAttempts = 10
	reapInterval = 10 * time.Millisecond
)

// Config holds controller configuration.
type Config struct {
	KillGrace time.Duration // Wait between terminate and kill signals; negative selects the default
}

// Controller owns the single player session slot. Every operation on the
// external process goes through it so invalidation stays in one place.
type Controller struct {
	mu sync.Mutex

	launcher  Launcher
	signaller Signaller
	config    Config

	session   *Session
	lastStart time.Time

	now   func() time.Time
	sleep func(time.Duration)
}

// NewController creates a new process controller.
func NewController(launcher Launcher, signaller Signaller, config Config) *Controller {
	if config.KillGrace < 0 {
		config.KillGrace = DefaultKillGrace
	}
	return &Controller{
		launcher:  launcher,
		signaller: signaller,
		config:    config,
		now:       time.Now,
		sleep:     time.Sleep,
	}
}

// Spawn replaces the current session with a new player for path.
// The start time is recorded before the process id is known so completion
// checks can be suppressed while discovery is still in progress.
// A launch failure leaves no session behind.
func (c *Controller) Spawn(ctx context.Context, path string, volume int) (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.terminateLocked()

	c.lastStart = c.now()
	s := &Session{
		ID:        uuid.New().String(),
		Path:      path,
		Volume:    volume,
		StartedAt: c.lastStart,
	}

	pid, err := c.launcher.Launch(ctx, path, volume)
	if err != nil {
		metrics.SpawnFailures.Inc()
		return Session{}, errors.Wrap(err, "failed to launch player")
	}
	s.PID = pid
	c.session = s

	metrics.SessionsStarted.Inc()
	if pid == 0 {
		metrics.DiscoveryMisses.Inc()
		zlog.Warn().Msgf("process: player started without a process id: session=%s path=%s", s.ID, path)
	} else {
		zlog.Debug().Msgf("process: player started: session=%s pid=%d path=%s volume=%d", s.ID, pid, path, volume)
	}

	return *s, nil
}

// Terminate stops the current player, if any, and clears the session.
// Calling it without a session, or after the player already exited, is a no-op.
func (c *Controller) Terminate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.terminateLocked()
}

// terminateLocked sends term, waits the grace interval, sends kill and reaps.
// Must be called with lock held.
func (c *Controller) terminateLocked() {
	s := c.session
	c.session = nil
	if s == nil || !s.HasPID() {
		return
	}

	c.logSignalErr(s, "terminate", c.signaller.Terminate(s.PID))
	if s.Paused {
		// A stopped process only acts on the terminate signal once continued.
		c.logSignalErr(s, "continue", c.signaller.Continue(s.PID))
	}
	c.sleep(c.config.KillGrace)
	c.logSignalErr(s, "kill", c.signaller.Kill(s.PID))

	c.reapKilled(s)

	metrics.SessionsTerminated.Inc()
	zlog.Debug().Msgf("process: player terminated: session=%s pid=%d", s.ID, s.PID)
}

// reapKilled collects a killed player so it does not linger as a zombie.
// Must be called with lock held.
func (c *Controller) reapKilled(s *Session) {
	for i := 0; i < reapAttempts; i++ {
		exited, err := c.signaller.Reap(s.PID)
		if err != nil {
			zlog.Debug().Msgf("process: reap failed: session=%s pid=%d err=%v", s.ID, s.PID, err)
			return
		}
		if exited {
			return
		}
		c.sleep(reapInterval)
	}
	zlog.Warn().Msgf("process: player still running after kill: session=%s pid=%d", s.ID, s.PID)
}

// SetPaused suspends or resumes the player. It returns false without signalling
// when there is no process id or the session is already in the requested state.
func (c *Controller) SetPaused(paused bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if s == nil || !s.HasPID() || s.Paused == paused {
		return false
	}

	var err error
	if paused {
		err = c.signaller.Stop(s.PID)
	} else {
		err = c.signaller.Continue(s.PID)
	}
	if err != nil && !errors.Is(err, ErrProcessGone) {
		zlog.Warn().Err(err).Msgf("process: failed to change pause state: session=%s pid=%d", s.ID, s.PID)
		return false
	}

	s.Paused = paused
	return true
}

// Poll checks without blocking whether the player has exited. On exit the
// session is released. It returns true when no process id is held.
func (c *Controller) Poll() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if s == nil || !s.HasPID() {
		return true
	}

	exited, err := c.signaller.Reap(s.PID)
	if err != nil {
		zlog.Debug().Msgf("process: poll failed: session=%s pid=%d err=%v", s.ID, s.PID, err)
	}
	if !exited {
		return false
	}

	c.session = nil
	metrics.SessionsCompleted.Inc()
	zlog.Debug().Msgf("process: player exited: session=%s pid=%d", s.ID, s.PID)
	return true
}

// Session returns a copy of the current session.
func (c *Controller) Session() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return Session{}, false
	}
	return *c.session, true
}

// Active reports whether a process id is currently held.
// It does not check that the process is still alive.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil && c.session.HasPID()
}

// LastStart returns the start time of the most recent Spawn.
// It survives Terminate so completion checks stay debounced after a restart.
func (c *Controller) LastStart() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastStart
}

func (c *Controller) logSignalErr(s *Session, what string, err error) {
	if err == nil || errors.Is(err, ErrProcessGone) {
		return
	}
	zlog.Debug().Msgf("process: %s failed: session=%s pid=%d err=%v", what, s.ID, s.PID, err)
}
