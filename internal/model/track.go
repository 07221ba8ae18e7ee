package model

// Track holds the metadata an upstream catalog resolved for one track.
//
// Every field except ID is optional: filename templating falls back to
// "Unknown ..." placeholders for anything the upstream did not supply.
type Track struct {
	// ID is the opaque track identifier. It may look numeric but is
	// always compared as a string.
	ID string

	// Title is the track title.
	Title string

	// Artist is the performing artist.
	Artist string

	// AlbumID identifies the album for cover-art reuse.
	AlbumID string

	// AlbumTitle is the album name.
	AlbumTitle string

	// AlbumArtist is the album-level artist, when distinct from Artist.
	AlbumArtist string

	// Year is the release year, as supplied by the upstream.
	Year string

	// TrackNumber is the 1-indexed position within the album.
	TrackNumber int

	// Duration is the track length in seconds.
	Duration float64

	// CoverURL points at the album artwork, if the upstream supplied one.
	CoverURL string
}
