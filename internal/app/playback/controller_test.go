package playback

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/trackbox/internal/domain/track"
	"github.com/osa030/trackbox/internal/infra/process"
)

// mockCatalog serves fixed track lists per directory.
type mockCatalog struct {
	dirs    map[string][]track.Track
	tracks  []track.Track
	lookups []string
}

func newMockCatalog(names ...string) *mockCatalog {
	c := &mockCatalog{dirs: map[string][]track.Track{}}
	for _, n := range names {
		c.tracks = append(c.tracks, track.New("/music/"+n))
	}
	return c
}

func (m *mockCatalog) Load(dir string) (int, error) {
	tracks, ok := m.dirs[dir]
	if !ok {
		m.tracks = nil
		return 0, errors.Newf("no such directory: %s", dir)
	}
	m.tracks = tracks
	return len(tracks), nil
}

func (m *mockCatalog) Len() int { return len(m.tracks) }

func (m *mockCatalog) At(i int) (track.Track, bool) {
	if i < 0 || i >= len(m.tracks) {
		return track.Track{}, false
	}
	return m.tracks[i], true
}

func (m *mockCatalog) IndexOf(path string) int {
	m.lookups = append(m.lookups, path)
	for i, t := range m.tracks {
		if t.Path == path {
			return i
		}
	}
	return -1
}

func (m *mockCatalog) Tracks() []track.Track {
	return append([]track.Track(nil), m.tracks...)
}

// mockPlayer mirrors the session rules of process.Controller in memory.
type mockPlayer struct {
	now func() time.Time

	session    *process.Session
	lastStart  time.Time
	nextPID    int
	missing    bool
	exited     bool
	err        error
	spawns     []string
	terminates int
}

func (m *mockPlayer) Spawn(_ context.Context, path string, volume int) (process.Session, error) {
	m.Terminate()
	m.lastStart = m.now()
	m.spawns = append(m.spawns, fmt.Sprintf("%s@%d", path, volume))
	if m.err != nil {
		return process.Session{}, m.err
	}
	s := &process.Session{ID: fmt.Sprintf("s%d", len(m.spawns)), Path: path, Volume: volume, StartedAt: m.lastStart}
	if !m.missing {
		m.nextPID++
		s.PID = m.nextPID
	}
	m.session = s
	return *s, nil
}

func (m *mockPlayer) Terminate() {
	if m.session != nil && m.session.HasPID() {
		m.terminates++
	}
	m.session = nil
	m.exited = false
}

func (m *mockPlayer) SetPaused(paused bool) bool {
	if m.session == nil || !m.session.HasPID() || m.session.Paused == paused {
		return false
	}
	m.session.Paused = paused
	return true
}

func (m *mockPlayer) Poll() bool {
	if m.session == nil || !m.session.HasPID() {
		return true
	}
	if !m.exited {
		return false
	}
	m.session = nil
	m.exited = false
	return true
}

// exit simulates the player ending on its own. Poll observes it.
func (m *mockPlayer) exit() {
	m.exited = true
}

func (m *mockPlayer) Session() (process.Session, bool) {
	if m.session == nil {
		return process.Session{}, false
	}
	return *m.session, true
}

func (m *mockPlayer) Active() bool {
	return m.session != nil && m.session.HasPID()
}

func (m *mockPlayer) LastStart() time.Time { return m.lastStart }

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestController(names ...string) (*Controller, *mockCatalog, *mockPlayer, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	cat := newMockCatalog(names...)
	player := &mockPlayer{now: clock.Now}
	c := NewController(cat, player, Config{InitialVolume: 80, StartupGrace: time.Second})
	c.now = clock.Now
	return c, cat, player, clock
}

func drainEvents(c *Controller) []Event {
	var events []Event
	for {
		select {
		case e, ok := <-c.Events():
			if !ok {
				return events
			}
			events = append(events, e)
		default:
			return events
		}
	}
}

func eventTypes(events []Event) []EventType {
	types := make([]EventType, len(events))
	for i, e := range events {
		types[i] = e.Type
	}
	return types
}

func TestNewController_Defaults(t *testing.T) {
	tests := []struct {
		name       string
		config     Config
		wantVolume int
	}{
		{name: "valid volume kept", config: Config{InitialVolume: 35}, wantVolume: 35},
		{name: "zero volume kept", config: Config{InitialVolume: 0}, wantVolume: 0},
		{name: "negative volume replaced", config: Config{InitialVolume: -1}, wantVolume: DefaultVolume},
		{name: "too loud volume replaced", config: Config{InitialVolume: 101}, wantVolume: DefaultVolume},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewController(newMockCatalog(), &mockPlayer{now: time.Now}, tt.config)

			assert.Equal(t, tt.wantVolume, c.Volume())
			assert.Equal(t, -1, c.CurrentTrackNo())
			assert.Equal(t, 1.0, c.Pitch())
			assert.Equal(t, StateStopped, c.State())
		})
	}
}

func TestController_PlayTrack(t *testing.T) {
	tests := []struct {
		name      string
		tracks    []string
		index     int
		wantOK    bool
		wantIndex int
		wantSpawn []string
	}{
		{name: "first track", tracks: []string{"a.mp3", "b.mp3", "c.mp3"}, index: 0, wantOK: true, wantIndex: 0, wantSpawn: []string{"/music/a.mp3@80"}},
		{name: "last track", tracks: []string{"a.mp3", "b.mp3", "c.mp3"}, index: 2, wantOK: true, wantIndex: 2, wantSpawn: []string{"/music/c.mp3@80"}},
		{name: "negative index", tracks: []string{"a.mp3", "b.mp3", "c.mp3"}, index: -1, wantOK: false, wantIndex: -1},
		{name: "index equal to length", tracks: []string{"a.mp3", "b.mp3", "c.mp3"}, index: 3, wantOK: false, wantIndex: -1},
		{name: "empty catalog", tracks: nil, index: 0, wantOK: false, wantIndex: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, player, _ := newTestController(tt.tracks...)

			ok := c.PlayTrack(tt.index)

			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantIndex, c.CurrentTrackNo())
			assert.Equal(t, tt.wantSpawn, player.spawns)
		})
	}
}

func TestController_PlayTrack_InvalidKeepsSession(t *testing.T) {
	c, _, player, _ := newTestController("a.mp3", "b.mp3")

	require.True(t, c.PlayTrack(1))
	assert.False(t, c.PlayTrack(5))

	assert.Equal(t, 1, c.CurrentTrackNo())
	assert.Len(t, player.spawns, 1)
	assert.Equal(t, 0, player.terminates)
	assert.True(t, player.Active())
}

func TestController_PlayTrack_LaunchFailure(t *testing.T) {
	c, _, player, clock := newTestController("a.mp3", "b.mp3")
	player.err = errors.New("exec: \"afplay\": executable file not found in $PATH")

	assert.False(t, c.PlayTrack(1))
	assert.Equal(t, 1, c.CurrentTrackNo())
	assert.False(t, player.Active())
	assert.Equal(t, StateStopped, c.State())

	clock.Advance(2 * time.Second)
	assert.True(t, c.Finished())
}

func TestController_SingleSession(t *testing.T) {
	c, _, player, _ := newTestController("a.mp3", "b.mp3", "c.mp3")

	require.True(t, c.PlayTrack(0))
	require.True(t, c.PlayTrack(1))
	require.True(t, c.PlayTrack(2))

	assert.Len(t, player.spawns, 3)
	assert.Equal(t, 2, player.terminates)
	s, ok := player.Session()
	require.True(t, ok)
	assert.Equal(t, "/music/c.mp3", s.Path)
}

func TestController_CurrentTrackName(t *testing.T) {
	c, _, _, _ := newTestController("a.mp3", "b.mp3")

	assert.Equal(t, "", c.CurrentTrackName())
	_, ok := c.CurrentTrack()
	assert.False(t, ok)

	require.True(t, c.PlayTrack(1))
	assert.Equal(t, "b.mp3", c.CurrentTrackName())
	tr, ok := c.CurrentTrack()
	require.True(t, ok)
	assert.Equal(t, "/music/b.mp3", tr.Path)
	assert.Equal(t, 2, c.NumTracks())
	assert.Len(t, c.Tracks(), 2)
}

func TestController_NextPrevTrack(t *testing.T) {
	tests := []struct {
		name      string
		start     int // -1 to leave nothing selected
		next      bool
		wantIndex int
	}{
		{name: "next from nothing starts at first", start: -1, next: true, wantIndex: 0},
		{name: "prev from nothing starts at last", start: -1, next: false, wantIndex: 2},
		{name: "next advances", start: 0, next: true, wantIndex: 1},
		{name: "next wraps to first", start: 2, next: true, wantIndex: 0},
		{name: "prev retreats", start: 2, next: false, wantIndex: 1},
		{name: "prev wraps to last", start: 0, next: false, wantIndex: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, player, _ := newTestController("a.mp3", "b.mp3", "c.mp3")
			if tt.start >= 0 {
				require.True(t, c.PlayTrack(tt.start))
			}
			spawned := len(player.spawns)

			var got int
			if tt.next {
				got = c.NextTrack()
			} else {
				got = c.PrevTrack()
			}

			assert.Equal(t, tt.wantIndex, got)
			assert.Equal(t, tt.wantIndex, c.CurrentTrackNo())
			assert.Len(t, player.spawns, spawned+1)
			assert.True(t, player.Active())
		})
	}
}

func TestController_NextPrevTrack_SingleTrack(t *testing.T) {
	c, _, player, _ := newTestController("only.mp3")
	require.True(t, c.PlayTrack(0))

	assert.Equal(t, 0, c.NextTrack())
	assert.Equal(t, 0, c.PrevTrack())
	assert.Len(t, player.spawns, 3)
}

func TestController_NextPrevTrack_EmptyCatalog(t *testing.T) {
	c, _, player, _ := newTestController()

	assert.Equal(t, -1, c.NextTrack())
	assert.Equal(t, -1, c.PrevTrack())
	assert.Equal(t, -1, c.CurrentTrackNo())
	assert.Empty(t, player.spawns)
}

func TestController_SetVolume(t *testing.T) {
	tests := []struct {
		name       string
		play       bool
		stop       bool
		volume     int
		wantVolume int
		wantSpawns int
	}{
		{name: "stored while idle", volume: 30, wantVolume: 30, wantSpawns: 0},
		{name: "clamped high", volume: 150, wantVolume: 100, wantSpawns: 0},
		{name: "clamped low", volume: -5, wantVolume: 0, wantSpawns: 0},
		{name: "restart while playing", play: true, volume: 30, wantVolume: 30, wantSpawns: 2},
		{name: "unchanged does not restart", play: true, volume: 80, wantVolume: 80, wantSpawns: 1},
		{name: "stored after stop", play: true, stop: true, volume: 10, wantVolume: 10, wantSpawns: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, player, _ := newTestController("a.mp3", "b.mp3")
			if tt.play {
				require.True(t, c.PlayTrack(1))
			}
			if tt.stop {
				c.Stop()
			}

			c.SetVolume(tt.volume)

			assert.Equal(t, tt.wantVolume, c.Volume())
			assert.Len(t, player.spawns, tt.wantSpawns)
		})
	}
}

func TestController_SetVolume_RestartKeepsTrack(t *testing.T) {
	c, _, player, _ := newTestController("a.mp3", "b.mp3")
	require.True(t, c.PlayTrack(1))

	c.SetVolume(120)

	assert.Equal(t, 1, c.CurrentTrackNo())
	assert.Equal(t, []string{"/music/b.mp3@80", "/music/b.mp3@100"}, player.spawns)
	assert.Equal(t, 1, player.terminates)

	// Next start uses the new volume.
	c.NextTrack()
	assert.Equal(t, "/music/a.mp3@100", player.spawns[2])
}

func TestController_Finished(t *testing.T) {
	t.Run("never started reports finished", func(t *testing.T) {
		c, _, _, _ := newTestController("a.mp3")
		assert.True(t, c.Finished())
	})

	t.Run("false within startup grace", func(t *testing.T) {
		c, _, player, clock := newTestController("a.mp3")
		require.True(t, c.PlayTrack(0))
		player.exit()

		clock.Advance(999 * time.Millisecond)
		assert.False(t, c.Finished())
	})

	t.Run("false while player alive", func(t *testing.T) {
		c, _, _, clock := newTestController("a.mp3")
		require.True(t, c.PlayTrack(0))

		clock.Advance(5 * time.Second)
		assert.False(t, c.Finished())
	})

	t.Run("true after player exits", func(t *testing.T) {
		c, _, player, clock := newTestController("a.mp3")
		require.True(t, c.PlayTrack(0))
		drainEvents(c)

		clock.Advance(3 * time.Second)
		player.exit()

		assert.True(t, c.Finished())
		assert.Contains(t, eventTypes(drainEvents(c)), EventTrackFinished)
	})

	t.Run("true without process id after grace", func(t *testing.T) {
		c, _, player, clock := newTestController("a.mp3")
		player.missing = true
		require.True(t, c.PlayTrack(0))

		assert.False(t, c.Finished())
		clock.Advance(time.Second)
		assert.True(t, c.Finished())
	})

	t.Run("debounce survives stop", func(t *testing.T) {
		c, _, _, clock := newTestController("a.mp3")
		require.True(t, c.PlayTrack(0))
		clock.Advance(100 * time.Millisecond)
		c.Stop()

		assert.False(t, c.Finished())
		clock.Advance(time.Second)
		assert.True(t, c.Finished())
	})
}

func TestController_PauseUnPause(t *testing.T) {
	c, _, player, clock := newTestController("a.mp3")

	// No session: no-ops.
	c.Pause()
	c.UnPause()
	assert.Equal(t, StateStopped, c.State())
	assert.Empty(t, drainEvents(c))

	require.True(t, c.PlayTrack(0))
	assert.Equal(t, StateStarting, c.State())
	clock.Advance(2 * time.Second)
	assert.Equal(t, StatePlaying, c.State())
	drainEvents(c)

	c.Pause()
	c.Pause()
	assert.Equal(t, StatePaused, c.State())
	assert.Equal(t, []EventType{EventStateChanged}, eventTypes(drainEvents(c)))

	// Paused process is still alive.
	assert.False(t, c.Finished())

	c.UnPause()
	c.UnPause()
	assert.Equal(t, StatePlaying, c.State())
	assert.Equal(t, []EventType{EventStateChanged}, eventTypes(drainEvents(c)))
	assert.Len(t, player.spawns, 1)
}

func TestController_Pause_WithoutProcessID(t *testing.T) {
	c, _, player, _ := newTestController("a.mp3")
	player.missing = true
	require.True(t, c.PlayTrack(0))

	c.Pause()

	assert.Equal(t, StateStopped, c.State())
	s, ok := player.Session()
	require.True(t, ok)
	assert.False(t, s.Paused)
}

func TestController_Pitch(t *testing.T) {
	tests := []struct {
		name  string
		start float64
		pct   float64
		want  float64
	}{
		{name: "full ease keeps pitch", start: 2.0, pct: 1.0, want: 2.0},
		{name: "zero pct resets to one", start: 2.0, pct: 0.0, want: 1.0},
		{name: "half way", start: 2.0, pct: 0.5, want: 1.5},
		{name: "from below", start: 0.5, pct: 0.5, want: 0.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, player, _ := newTestController("a.mp3")

			c.SetPitch(tt.start)
			c.UpdatePitch(tt.pct)

			assert.InDelta(t, tt.want, c.Pitch(), 1e-9)
			assert.Empty(t, player.spawns)
		})
	}
}

func TestController_PlayTrackResetsPitch(t *testing.T) {
	c, _, _, _ := newTestController("a.mp3")
	c.SetPitch(1.7)

	require.True(t, c.PlayTrack(0))

	assert.Equal(t, 1.0, c.Pitch())
}

func TestController_ShiftPos(t *testing.T) {
	tests := []struct {
		name    string
		play    bool
		offsets []float64
	}{
		{name: "while playing", play: true, offsets: []float64{10.5, -3}},
		{name: "while stopped", offsets: []float64{1}},
		{name: "zero offset", play: true, offsets: []float64{0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, player, _ := newTestController("a.mp3")
			if tt.play {
				require.True(t, c.PlayTrack(0))
			}
			state, spawns := c.State(), len(player.spawns)

			for _, off := range tt.offsets {
				c.ShiftPos(off)
			}

			assert.Equal(t, len(tt.offsets), c.seeks)
			assert.Len(t, player.spawns, spawns)
			assert.Equal(t, 0, player.terminates)
			assert.Equal(t, state, c.State())
		})
	}
}

func TestController_ShiftPos_Concurrent(t *testing.T) {
	c, _, _, _ := newTestController("a.mp3", "b.mp3")
	require.True(t, c.PlayTrack(0))

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.ShiftPos(float64(i))
			c.SetVolume(i * 10)
		}(i)
	}
	wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Equal(t, workers, c.seeks)
}

func TestController_Stop(t *testing.T) {
	c, _, player, _ := newTestController("a.mp3", "b.mp3")
	require.True(t, c.PlayTrack(1))

	c.Stop()
	c.Stop()

	assert.Equal(t, 1, player.terminates)
	assert.False(t, player.Active())
	assert.Equal(t, StateStopped, c.State())
	assert.Equal(t, 1, c.CurrentTrackNo())
	assert.Equal(t, "b.mp3", c.CurrentTrackName())
}

func TestController_LoadTracks(t *testing.T) {
	t.Run("reports count and event", func(t *testing.T) {
		c, cat, _, _ := newTestController()
		cat.dirs["/music"] = []track.Track{track.New("/music/a.mp3"), track.New("/music/b.wav")}

		assert.Equal(t, 2, c.LoadTracks("/music"))
		assert.Equal(t, 2, c.NumTracks())

		events := drainEvents(c)
		require.Len(t, events, 1)
		assert.Equal(t, EventCatalogLoaded, events[0].Type)
		assert.Equal(t, 2, events[0].Count)
	})

	t.Run("unreadable directory yields zero", func(t *testing.T) {
		c, _, _, _ := newTestController("a.mp3")

		assert.Equal(t, 0, c.LoadTracks("/missing"))
		assert.Equal(t, 0, c.NumTracks())
		assert.Equal(t, -1, c.CurrentTrackNo())
	})

	t.Run("selection follows the file", func(t *testing.T) {
		c, cat, _, _ := newTestController("b.mp3", "c.mp3")
		require.True(t, c.PlayTrack(1))
		cat.dirs["/music"] = []track.Track{track.New("/music/a.mp3"), track.New("/music/b.mp3"), track.New("/music/c.mp3")}

		c.LoadTracks("/music")

		assert.Equal(t, 2, c.CurrentTrackNo())
		assert.Equal(t, "c.mp3", c.CurrentTrackName())
		assert.Equal(t, []string{"/music/c.mp3"}, cat.lookups)
	})

	t.Run("nothing selected skips the lookup", func(t *testing.T) {
		c, cat, _, _ := newTestController("a.mp3")
		cat.dirs["/music"] = []track.Track{track.New("/music/a.mp3")}

		c.LoadTracks("/music")

		assert.Equal(t, -1, c.CurrentTrackNo())
		assert.Empty(t, cat.lookups)
	})

	t.Run("selection cleared when file is gone", func(t *testing.T) {
		c, cat, player, _ := newTestController("a.mp3", "b.mp3")
		require.True(t, c.PlayTrack(1))
		cat.dirs["/music"] = []track.Track{track.New("/music/a.mp3")}

		c.LoadTracks("/music")

		assert.Equal(t, -1, c.CurrentTrackNo())
		assert.Equal(t, "", c.CurrentTrackName())
		assert.True(t, player.Active())
	})
}

func TestController_AdvanceIfFinished(t *testing.T) {
	t.Run("idle controller does not advance", func(t *testing.T) {
		c, _, player, clock := newTestController("a.mp3", "b.mp3")
		clock.Advance(time.Minute)

		assert.False(t, c.advanceIfFinished())
		assert.Empty(t, player.spawns)
	})

	t.Run("advances after natural end", func(t *testing.T) {
		c, _, player, clock := newTestController("a.mp3", "b.mp3")
		require.True(t, c.PlayTrack(1))

		assert.False(t, c.advanceIfFinished())

		clock.Advance(2 * time.Second)
		player.exit()

		assert.True(t, c.advanceIfFinished())
		assert.Equal(t, 0, c.CurrentTrackNo())
		assert.Equal(t, []string{"/music/b.mp3@80", "/music/a.mp3@80"}, player.spawns)
	})

	t.Run("stop halts advancing", func(t *testing.T) {
		c, _, player, clock := newTestController("a.mp3", "b.mp3")
		require.True(t, c.PlayTrack(0))
		c.Stop()
		clock.Advance(2 * time.Second)

		assert.False(t, c.advanceIfFinished())
		assert.Len(t, player.spawns, 1)
	})
}

func TestController_AutoAdvance_StopsOnCancel(t *testing.T) {
	c, _, _, _ := newTestController("a.mp3")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		c.AutoAdvance(ctx, 5*time.Millisecond)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("AutoAdvance did not return after cancel")
	}
}

func TestController_Events(t *testing.T) {
	c, _, _, _ := newTestController("a.mp3", "b.mp3")

	require.True(t, c.PlayTrack(0))
	c.SetVolume(40)
	c.Stop()

	events := drainEvents(c)
	assert.Equal(t, []EventType{EventTrackStarted, EventVolumeChanged, EventTrackStarted, EventStateChanged}, eventTypes(events))

	started := events[0]
	require.NotNil(t, started.Track)
	assert.Equal(t, "a.mp3", started.Track.Name)
	assert.Equal(t, 0, started.Index)
	assert.Equal(t, StateStarting, started.State)
	assert.Equal(t, 80, started.Volume)
	assert.Equal(t, 40, events[1].Volume)
	assert.Equal(t, StateStopped, events[3].State)
}

func TestController_EventsDoNotBlock(t *testing.T) {
	c, _, player, _ := newTestController("a.mp3", "b.mp3")

	for i := 0; i < 100; i++ {
		c.NextTrack()
	}

	assert.Len(t, player.spawns, 100)
	assert.Len(t, drainEvents(c), cap(c.eventCh))
}

func TestController_Close(t *testing.T) {
	c, _, player, _ := newTestController("a.mp3")
	require.True(t, c.PlayTrack(0))

	c.Close()
	c.Close()

	assert.False(t, player.Active())
	drainEvents(c)
	_, ok := <-c.Events()
	assert.False(t, ok)

	assert.False(t, c.PlayTrack(0))
	c.Pause()
	c.SetVolume(10)
	c.LoadTracks("/missing")
}
