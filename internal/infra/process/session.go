// Package process drives an external command-line audio player as a child process.
//
// The player offers no runtime control channel, so the Controller simulates one:
// it owns at most one running player at a time, pauses and resumes it with job
// control signals, terminates it with a term-then-kill escalation and detects
// completion by non-blocking reaping.
package process

import "time"

// Session describes the player process that is currently owned by a Controller.
type Session struct {
	ID        string    // Unique session id (for logs and events)
	PID       int       // OS process id, 0 when discovery missed
	Path      string    // File being played
	Volume    int       // Volume (0-100) the player was started with
	StartedAt time.Time // Recorded before the process id was obtained
	Paused    bool      // Local pause flag; the OS state is never queried
}

// HasPID reports whether a process id was obtained for the session.
// A recorded id does not mean the process is still alive.
func (s Session) HasPID() bool {
	return s.PID > 0
}
