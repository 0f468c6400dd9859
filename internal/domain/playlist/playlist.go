// Package playlist provides the Playlist domain entity.
package playlist

import "github.com/osa030/trackbox/internal/domain/track"

// Playlist is an ordered, immutable snapshot of the tracks found in a directory.
type Playlist struct {
	Dir    string        // Source directory
	Tracks []track.Track // Tracks sorted by file name
}

// Len returns the number of tracks.
func (p *Playlist) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Tracks)
}

// At returns the track at index i.
// ok is false when i is out of range.
func (p *Playlist) At(i int) (track.Track, bool) {
	if i < 0 || i >= p.Len() {
		return track.Track{}, false
	}
	return p.Tracks[i], true
}

// IndexOf returns the index of the track with the given path, or -1.
func (p *Playlist) IndexOf(path string) int {
	for i := 0; i < p.Len(); i++ {
		if p.Tracks[i].Path == path {
			return i
		}
	}
	return -1
}
