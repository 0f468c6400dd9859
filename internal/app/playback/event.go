package playback

import "github.com/osa030/trackbox/internal/domain/track"

// EventType represents a playback event type.
type EventType int

const (
	EventTrackStarted  EventType = iota // A player session was started for a track
	EventTrackFinished                  // The player exited on its own
	EventStateChanged                   // Pause, resume or stop
	EventVolumeChanged                  // Volume setting changed
	EventCatalogLoaded                  // Catalog was (re)loaded
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackStarted:
		return "track_started"
	case EventTrackFinished:
		return "track_finished"
	case EventStateChanged:
		return "state_changed"
	case EventVolumeChanged:
		return "volume_changed"
	case EventCatalogLoaded:
		return "catalog_loaded"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type   EventType
	Track  *track.Track // Current track (nil when nothing is selected)
	Index  int          // Current track index, -1 when nothing is selected
	State  State        // Playback state after the event
	Volume int          // Volume after the event
	Count  int          // Number of tracks (EventCatalogLoaded)
}
