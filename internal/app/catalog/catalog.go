// Package catalog resolves a music directory into an ordered list of playable tracks.
package catalog

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/trackbox/internal/domain/playlist"
	"github.com/osa030/trackbox/internal/domain/track"
	"github.com/osa030/trackbox/internal/infra/tags"
)

// ErrNotDirectory is returned when the catalog path is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// allowedExtensions is the fixed set of extensions the external player can handle.
var allowedExtensions = map[string]bool{
	"mp3":  true,
	"wav":  true,
	"aiff": true,
	"m4a":  true,
}

// TagReader reads tag metadata for a track file.
type TagReader interface {
	Read(path string) (tags.Info, error)
}

// Catalog holds the tracks of the most recently loaded directory.
type Catalog struct {
	mu       sync.RWMutex
	tags     TagReader
	playlist *playlist.Playlist
}

// New creates an empty catalog. tagReader may be nil to skip tag lookups.
func New(tagReader TagReader) *Catalog {
	return &Catalog{
		tags:     tagReader,
		playlist: &playlist.Playlist{},
	}
}

// IsAllowed reports whether name has an allowed audio extension.
func IsAllowed(name string) bool {
	return allowedExtensions[track.Extension(name)]
}

// Load scans dir non-recursively and replaces the catalog with its playable files,
// sorted by name. A directory without matching files yields an empty catalog.
// On error the catalog is left empty.
func (c *Catalog) Load(dir string) (int, error) {
	pl, err := c.scan(dir)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.playlist = &playlist.Playlist{Dir: dir}
		return 0, err
	}
	c.playlist = pl
	return pl.Len(), nil
}

func (c *Catalog) scan(dir string) (*playlist.Playlist, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to stat catalog directory")
	}
	if !info.IsDir() {
		return nil, errors.Wrapf(ErrNotDirectory, "catalog path %s", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read catalog directory")
	}

	tracks := make([]track.Track, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !IsAllowed(e.Name()) {
			continue
		}
		tracks = append(tracks, c.newTrack(filepath.Join(dir, e.Name())))
	}

	sort.Slice(tracks, func(i, j int) bool {
		return tracks[i].Name < tracks[j].Name
	})

	return &playlist.Playlist{Dir: dir, Tracks: tracks}, nil
}

func (c *Catalog) newTrack(path string) track.Track {
	t := track.New(path)
	if c.tags == nil {
		return t
	}

	info, err := c.tags.Read(path)
	if err != nil {
		zlog.Debug().Msgf("catalog: no tags: path=%s err=%v", path, err)
		return t
	}
	t.Title = info.Title
	t.Artist = info.Artist
	t.Album = info.Album
	return t
}

// Len returns the number of tracks.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playlist.Len()
}

// At returns the track at index i.
func (c *Catalog) At(i int) (track.Track, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playlist.At(i)
}

// IndexOf returns the index of the track with the given path, or -1.
func (c *Catalog) IndexOf(path string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playlist.IndexOf(path)
}

// Dir returns the directory of the last Load call.
func (c *Catalog) Dir() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playlist.Dir
}

// Tracks returns a copy of the loaded tracks.
func (c *Catalog) Tracks() []track.Track {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]track.Track, c.playlist.Len())
	copy(result, c.playlist.Tracks)
	return result
}
