// Package model defines the core data structures shared across
// the audiocache server.
//
// # Quality
//
// Quality is the closed set of audio fidelity tiers a track can be
// requested and stored at:
//
//	q, err := model.ParseQuality("LOSSLESS")
//	fmt.Println(q.Stored()) // true
//
// The special QualityPlayer value is a server-side preference sentinel
// meaning "do not override the caller's requested quality". It is never
// a valid per-request or stored quality.
//
// # CacheEntry
//
// CacheEntry is one row of the persistent cache index, mapping a
// (track, quality) pair to a verified on-disk file:
//
//	entry := model.CacheEntry{
//	    TrackID:  "123",
//	    Quality:  model.QualityLossless,
//	    FilePath: "/srv/music/Artist/Album/01 Song.flac",
//	}
//
// # Track
//
// Track carries the metadata resolved for a track from an upstream
// catalog. It is used for filename templating, ID3 tagging, and cover
// art association.
package model
