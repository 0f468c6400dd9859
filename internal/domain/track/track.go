// Package track provides the Track domain entity.
package track

import (
	"path/filepath"
	"strings"
)

// Track represents a playable audio file found in the music directory.
// A Track is immutable once the catalog that holds it has been built.
type Track struct {
	Path   string // Absolute or directory-relative file path
	Name   string // File base name, used as the display name
	Ext    string // Lower-case extension without the dot
	Title  string // Title tag (optional)
	Artist string // Artist tag (optional)
	Album  string // Album tag (optional)
}

// New creates a track for the given file path without tag metadata.
func New(path string) Track {
	name := filepath.Base(path)
	return Track{
		Path: path,
		Name: name,
		Ext:  Extension(name),
	}
}

// Extension returns the lower-case extension of name without the leading dot.
func Extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// DisplayName returns a human readable label for the track.
// Tags win over the file name when they are present.
func (t Track) DisplayName() string {
	switch {
	case t.Title != "" && t.Artist != "":
		return t.Artist + " - " + t.Title
	case t.Title != "":
		return t.Title
	default:
		return t.Name
	}
}
