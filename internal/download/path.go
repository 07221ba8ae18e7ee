package download

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	ioutils "github.com/ashwake/audiocache/internal/io"
	"github.com/ashwake/audiocache/internal/model"
)

// ErrNoFreePath means every collision suffix for a rendered path was
// already taken by a different track.
var ErrNoFreePath = errors.New("no free path for track file")

const maxCollisionSuffix = 999

// renderTemplate expands the filename template tokens from track
// metadata. Missing metadata falls back to "Unknown ..." placeholders
// so a sparse catalog entry still yields a usable path.
func renderTemplate(template string, track *model.Track, quality model.Quality) string {
	artist := track.Artist
	if artist == "" {
		artist = "Unknown Artist"
	}
	albumArtist := track.AlbumArtist
	if albumArtist == "" {
		albumArtist = artist
	}
	album := track.AlbumTitle
	if album == "" {
		album = "Unknown Album"
	}
	title := track.Title
	if title == "" {
		title = "Unknown Title"
	}

	replacer := strings.NewReplacer(
		"{artist}", artist,
		"{albumartist}", albumArtist,
		"{album}", album,
		"{title}", title,
		"{tracknum}", fmt.Sprintf("%02d", track.TrackNumber),
		"{year}", track.Year,
		"{quality}", quality.String(),
		"{id}", track.ID,
	)
	return replacer.Replace(template)
}

// resolvePath turns a rendered template into an absolute path under
// root, sanitizing each path segment independently. A rendering that
// attempts to traverse out of root, or sanitizes down to nothing, is
// discarded as a whole in favor of a flat "<trackID>.<ext>" name.
func resolvePath(root, template string, track *model.Track, quality model.Quality, ext string) string {
	rendered := renderTemplate(template, track, quality)
	fallback := filepath.Join(root, ioutils.SanitizeFileName(track.ID)+"."+ext)

	var segments []string
	for _, segment := range strings.Split(rendered, "/") {
		if segment == "." || segment == ".." {
			return fallback
		}
		clean := ioutils.SanitizeFileName(segment)
		if clean == "" {
			continue
		}
		segments = append(segments, clean)
	}
	if len(segments) == 0 {
		return fallback
	}

	path := filepath.Join(root, filepath.Join(segments...)) + "." + ext
	if !contained(root, path) {
		return fallback
	}
	return path
}

// disambiguate returns path if it is free, otherwise a variant with the
// track ID appended, then numbered variants up to maxCollisionSuffix.
func disambiguate(path, trackID string) (string, error) {
	if !ioutils.FileExists(path) {
		return path, nil
	}

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	id := ioutils.SanitizeFileName(trackID)

	candidate := fmt.Sprintf("%s-%s%s", base, id, ext)
	if !ioutils.FileExists(candidate) {
		return candidate, nil
	}
	for n := 2; n <= maxCollisionSuffix; n++ {
		candidate = fmt.Sprintf("%s-%s-%d%s", base, id, n, ext)
		if !ioutils.FileExists(candidate) {
			return candidate, nil
		}
	}
	return "", ErrNoFreePath
}

func contained(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
