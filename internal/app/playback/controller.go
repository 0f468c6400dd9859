package playback

import (
	"context"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/trackbox/internal/domain/track"
	"github.com/osa030/trackbox/internal/infra/metrics"
	"github.com/osa030/trackbox/internal/infra/process"
)

const (
	MinVolume = 0
	MaxVolume = 100

	// DefaultVolume is used when Config.InitialVolume is out of range.
	DefaultVolume = 80
	// DefaultStartupGrace is the debounce after a start during which
	// completion is never reported.
	DefaultStartupGrace = time.Second
)

// Reasons a track was started, used for metrics and logs.
const (
	reasonSelect = "select"
	reasonNext   = "next"
	reasonPrev   = "prev"
	reasonVolume = "volume"
	reasonAuto   = "auto"
)

// Catalog is the ordered track list the controller plays from.
type Catalog interface {
	Load(dir string) (int, error)
	Len() int
	At(i int) (track.Track, bool)
	IndexOf(path string) int
	Tracks() []track.Track
}

// Player owns the external player process.
type Player interface {
	Spawn(ctx context.Context, path string, volume int) (process.Session, error)
	Terminate()
	SetPaused(paused bool) bool
	Poll() bool
	Session() (process.Session, bool)
	Active() bool
	LastStart() time.Time
}

// Config holds controller configuration.
type Config struct {
	InitialVolume int           // 0-100
	StartupGrace  time.Duration // Completion debounce after each start (heuristic)
}

// Controller exposes a media player API over an external player binary.
// Every change of track or volume replaces the player session.
type Controller struct {
	mu sync.Mutex

	catalog Catalog
	player  Player
	config  Config

	index       int     // -1 when nothing is selected
	volume      int     // 0-100
	pitch       float64 // Stored only; the player cannot shift pitch
	wantPlaying bool    // Set by a start, cleared by Stop; gates auto-advance
	seeks       int     // ShiftPos requests; recorded but never applied

	eventCh chan Event
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc

	now func() time.Time
}

// NewController creates a new playback controller.
func NewController(catalog Catalog, player Player, config Config) *Controller {
	if config.InitialVolume < MinVolume || config.InitialVolume > MaxVolume {
		config.InitialVolume = DefaultVolume
	}
	if config.StartupGrace < 0 {
		config.StartupGrace = DefaultStartupGrace
	}

	ctx, cancel := context.WithCancel(context.Background())
	metrics.Volume.Set(float64(config.InitialVolume))

	return &Controller{
		catalog: catalog,
		player:  player,
		config:  config,
		index:   -1,
		volume:  config.InitialVolume,
		pitch:   1.0,
		eventCh: make(chan Event, 32),
		ctx:     ctx,
		cancel:  cancel,
		now:     time.Now,
	}
}

// Events returns the event channel.
func (c *Controller) Events() <-chan Event {
	return c.eventCh
}

// LoadTracks replaces the catalog with the playable files of dir and returns
// the number of tracks. An unreadable directory yields 0.
// The current selection survives when its file is still present.
func (c *Controller) LoadTracks(dir string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var currentPath string
	if t, ok := c.catalog.At(c.index); ok {
		currentPath = t.Path
	}

	n, err := c.catalog.Load(dir)
	if err != nil {
		zlog.Warn().Err(err).Msgf("playback: failed to load tracks from %s", dir)
		n = 0
	}

	c.index = -1
	if currentPath != "" {
		c.index = c.catalog.IndexOf(currentPath)
	}

	metrics.CatalogTracks.Set(float64(n))
	zlog.Info().Msgf("playback: loaded %d tracks from %s", n, dir)
	for i, t := range c.catalog.Tracks() {
		zlog.Debug().Msgf("playback:   track %d: %s", i, t.Path)
	}

	c.sendEventLocked(Event{Type: EventCatalogLoaded, Count: n})
	return n
}

// PlayTrack starts playback of the track at index. It returns false without
// side effects when index is outside [0, NumTracks), and false when the
// player could not be launched.
func (c *Controller) PlayTrack(index int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.playTrackLocked(index, reasonSelect)
}

// playTrackLocked validates index, resets pitch, and replaces the session.
// Must be called with lock held.
func (c *Controller) playTrackLocked(index int, reason string) bool {
	t, ok := c.catalog.At(index)
	if !ok {
		return false
	}

	c.index = index
	c.pitch = 1.0
	return c.replaceLocked(t, reason)
}

// replaceLocked starts a new player session for t, terminating the old one.
// Track changes, volume changes and restarts all go through here.
// Must be called with lock held.
func (c *Controller) replaceLocked(t track.Track, reason string) bool {
	if c.closed {
		return false
	}

	zlog.Info().Msgf("playback: playing track %d: %s (%s)", c.index, t.DisplayName(), reason)

	session, err := c.player.Spawn(c.ctx, t.Path, c.volume)
	if err != nil {
		zlog.Error().Err(err).Msgf("playback: failed to start track %d: %s", c.index, t.Path)
		c.wantPlaying = false
		return false
	}

	c.wantPlaying = true
	metrics.TracksPlayed.WithLabelValues(reason).Inc()
	zlog.Debug().Msgf("playback: session %s pid=%d", session.ID, session.PID)

	c.sendEventLocked(Event{Type: EventTrackStarted, Track: &t})
	return true
}

// CurrentTrackName returns the file name of the selected track, or an empty
// string when nothing is selected.
func (c *Controller) CurrentTrackName() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.catalog.At(c.index)
	if !ok {
		return ""
	}
	return t.Name
}

// CurrentTrack returns the selected track.
func (c *Controller) CurrentTrack() (track.Track, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.catalog.At(c.index)
}

// CurrentTrackNo returns the selected index, or -1.
func (c *Controller) CurrentTrackNo() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

// NumTracks returns the number of tracks in the catalog.
func (c *Controller) NumTracks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.catalog.Len()
}

// Tracks returns a copy of the catalog.
func (c *Controller) Tracks() []track.Track {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.catalog.Tracks()
}

// Pause suspends the player. It does nothing when nothing is playing.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.player.SetPaused(true) {
		zlog.Debug().Msg("playback: paused")
		c.sendEventLocked(Event{Type: EventStateChanged})
	}
}

// UnPause resumes a paused player. It does nothing when not paused.
func (c *Controller) UnPause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.player.SetPaused(false) {
		zlog.Debug().Msg("playback: resumed")
		c.sendEventLocked(Event{Type: EventStateChanged})
	}
}

// Finished reports whether the current track has ended. It must be polled
// once per tick. Within the startup grace window it always returns false;
// afterwards it reflects the real liveness of the player process.
func (c *Controller) Finished() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.finishedLocked()
}

// finishedLocked must be called with lock held.
func (c *Controller) finishedLocked() bool {
	if c.inGraceLocked() {
		return false
	}

	if !c.player.Active() {
		return true
	}

	if !c.player.Poll() {
		return false
	}

	t, _ := c.catalog.At(c.index)
	zlog.Debug().Msgf("playback: track %d finished: %s", c.index, t.Name)
	c.sendEventLocked(Event{Type: EventTrackFinished, Track: &t})
	return true
}

// inGraceLocked must be called with lock held.
func (c *Controller) inGraceLocked() bool {
	start := c.player.LastStart()
	return !start.IsZero() && c.now().Sub(start) < c.config.StartupGrace
}

// NextTrack selects the following track, wrapping to 0 past the end, starts
// it and returns the new index. With an empty catalog it returns -1.
func (c *Controller) NextTrack() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.stepLocked(1, reasonNext)
}

// PrevTrack selects the preceding track, wrapping to the last one before the
// start, starts it and returns the new index. With an empty catalog it returns -1.
func (c *Controller) PrevTrack() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.stepLocked(-1, reasonPrev)
}

// stepLocked moves the selection by delta (+1 or -1) with wraparound.
// Must be called with lock held.
func (c *Controller) stepLocked(delta int, reason string) int {
	n := c.catalog.Len()
	if n == 0 {
		return -1
	}

	next := c.index + delta
	if next < 0 {
		next = n - 1
	}
	next %= n

	c.playTrackLocked(next, reason)
	return c.index
}

// SetVolume sets the volume, clamped to [0, 100]. The player cannot change
// volume live, so an active session is restarted from the beginning of the
// current track. Otherwise the value applies to the next start.
func (c *Controller) SetVolume(vol int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	vol = max(MinVolume, min(MaxVolume, vol))
	if vol == c.volume {
		return
	}

	c.volume = vol
	metrics.Volume.Set(float64(vol))
	c.sendEventLocked(Event{Type: EventVolumeChanged})

	if !c.player.Active() {
		return
	}
	if t, ok := c.catalog.At(c.index); ok {
		c.replaceLocked(t, reasonVolume)
	}
}

// Volume returns the current volume.
func (c *Controller) Volume() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume
}

// SetPitch stores the pitch. It has no audible effect.
func (c *Controller) SetPitch(pitch float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pitch = pitch
}

// UpdatePitch eases the pitch toward 1.0 by pct. It has no audible effect.
func (c *Controller) UpdatePitch(pct float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pitch = c.pitch*pct + (1.0 - pct)
}

// Pitch returns the stored pitch.
func (c *Controller) Pitch() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pitch
}

// ShiftPos records a seek request. The player cannot seek, so the session,
// selection and state are left unchanged.
func (c *Controller) ShiftPos(posAdj float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seeks++
	zlog.Debug().Msgf("playback: seek by %v ignored, player cannot seek: track=%d requests=%d", posAdj, c.index, c.seeks)
}

// Stop terminates the player. The selection is kept.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
}

// stopLocked must be called with lock held.
func (c *Controller) stopLocked() {
	_, had := c.player.Session()
	c.player.Terminate()
	c.wantPlaying = false
	if had {
		zlog.Debug().Msg("playback: stopped")
		c.sendEventLocked(Event{Type: EventStateChanged})
	}
}

// State returns the current playback state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// stateLocked must be called with lock held.
func (c *Controller) stateLocked() State {
	s, ok := c.player.Session()
	switch {
	case !ok || !s.HasPID():
		return StateStopped
	case s.Paused:
		return StatePaused
	case c.inGraceLocked():
		return StateStarting
	default:
		return StatePlaying
	}
}

// AutoAdvance polls for completion every interval and starts the next track
// when the current one ends on its own. It returns when ctx is done.
func (c *Controller) AutoAdvance(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.advanceIfFinished()
		}
	}
}

// advanceIfFinished starts the next track when the current one ended on its
// own. It returns true when a new track was started.
func (c *Controller) advanceIfFinished() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.wantPlaying || c.closed || !c.finishedLocked() {
		return false
	}
	return c.stepLocked(1, reasonAuto) >= 0 && c.wantPlaying
}

// Close stops playback and releases resources.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.cancel()
	c.stopLocked()
	c.closed = true
	close(c.eventCh)
}

// sendEventLocked fills in the common fields and sends e without blocking.
// Must be called with lock held.
func (c *Controller) sendEventLocked(e Event) {
	if c.closed {
		return
	}

	e.Index = c.index
	e.State = c.stateLocked()
	e.Volume = c.volume
	if e.Track == nil {
		if t, ok := c.catalog.At(c.index); ok {
			e.Track = &t
		}
	}

	select {
	case c.eventCh <- e:
	default:
		// Channel full, drop event
	}
}
