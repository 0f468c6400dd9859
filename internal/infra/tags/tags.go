// Package tags reads embedded audio metadata (ID3, MP4, FLAC, OGG) from files.
package tags

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dhowden/tag"
)

// Info holds the subset of tag fields used for display.
type Info struct {
	Title  string
	Artist string
	Album  string
}

// Reader reads tag metadata from audio files.
type Reader struct{}

// NewReader creates a new tag reader.
func NewReader() *Reader {
	return &Reader{}
}

// Read returns the tag metadata of the file at path.
// Files without recognised tags return an error; callers fall back to the file name.
func (r *Reader) Read(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, errors.Wrap(err, "failed to open audio file")
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return Info{}, errors.Wrapf(err, "failed to read tags: %s", path)
	}

	return Info{
		Title:  clean(m.Title()),
		Artist: clean(m.Artist()),
		Album:  clean(m.Album()),
	}, nil
}

// clean strips the NUL padding used by fixed-width tag formats.
func clean(s string) string {
	return strings.TrimSpace(strings.Trim(s, "\x00"))
}
