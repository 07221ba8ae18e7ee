// Package audio writes metadata tags to cached audio files.
//
// Only MP3 files carry ID3 frames; other container formats are stored
// as downloaded. Tagging is best-effort and never fails a download.
package audio

import (
	"fmt"

	"github.com/ashwake/audiocache/internal/model"
	"github.com/bogem/id3v2"
)

// Tagger writes ID3v2 tags to MP3 files.
//
// Tagger updates the title, artist, album, album artist, year and
// track number frames from catalog metadata, and optionally embeds
// JPEG cover art as the front cover picture.
//
// Example:
//
//	tagger := NewTagger(true)
//	if err := tagger.SaveTags(path, track, artworkBytes); err != nil {
//	    log.Warn("tagging failed", "path", path, "err", err)
//	}
type Tagger struct {
	modifyTags bool
}

// NewTagger creates a Tagger. If modifyTags is false, SaveTags only
// embeds artwork and leaves text frames untouched.
func NewTagger(modifyTags bool) *Tagger {
	return &Tagger{modifyTags: modifyTags}
}

// SaveTags writes metadata frames to the MP3 file at path.
//
// artwork, when non-nil, must be JPEG bytes and is embedded as the
// attached front cover picture, replacing any existing one.
func (t *Tagger) SaveTags(path string, track *model.Track, artwork []byte) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return err
	}
	defer tag.Close()

	if t.modifyTags {
		updateStringTags(tag, track)
	}

	if artwork != nil {
		updateArtwork(tag, artwork)
	}

	return tag.Save()
}

// updateStringTags updates text-based ID3 frames from track metadata.
func updateStringTags(tag *id3v2.Tag, track *model.Track) {
	if track.Title != "" {
		tag.SetTitle(track.Title)
	}
	if track.Artist != "" {
		tag.SetArtist(track.Artist)
	}
	if track.AlbumTitle != "" {
		tag.SetAlbum(track.AlbumTitle)
	}
	if track.AlbumArtist != "" {
		tag.AddTextFrame("TPE2", id3v2.EncodingUTF8, track.AlbumArtist)
	}
	if track.Year != "" {
		tag.AddTextFrame("TYER", id3v2.EncodingUTF8, track.Year)
	}
	if track.TrackNumber > 0 {
		tag.AddTextFrame("TRCK", id3v2.EncodingUTF8, fmt.Sprintf("%d", track.TrackNumber))
	}
}

// updateArtwork embeds cover art as an attached picture frame.
func updateArtwork(tag *id3v2.Tag, artwork []byte) {
	tag.DeleteFrames(tag.CommonID("Attached picture"))

	pic := id3v2.PictureFrame{
		Encoding:    id3v2.EncodingUTF8,
		MimeType:    "image/jpeg",
		PictureType: id3v2.PTFrontCover,
		Description: "Cover",
		Picture:     artwork,
	}
	tag.AddAttachedPicture(pic)
}
