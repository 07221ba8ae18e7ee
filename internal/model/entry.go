package model

import "time"

// CacheEntry is one row of the persistent cache index: a (track, quality)
// pair mapped to a file on disk.
//
// A FilePath on record is trusted only after its existence has been
// re-verified at read time; the cache deletes entries whose file has
// vanished rather than returning them.
type CacheEntry struct {
	TrackID      string
	Quality      Quality
	FilePath     string
	Extension    string
	SizeBytes    int64
	DownloadedAt time.Time

	// AlbumID and CoverPath support cover-art reuse across tracks of
	// the same album. Both may be empty.
	AlbumID   string
	CoverPath string
}

// DownloadStatus is the terminal state of one trigger request.
type DownloadStatus string

const (
	// StatusDownloaded means this request performed the fetch and the
	// file is now cached.
	StatusDownloaded DownloadStatus = "downloaded"

	// StatusCached means the file was already on disk.
	StatusCached DownloadStatus = "cached"

	// StatusDownloading means another request holds the in-flight ledger
	// entry for this key; this request did no work.
	StatusDownloading DownloadStatus = "downloading"
)

// DownloadResult describes the outcome of a trigger for one
// (track, quality) key.
type DownloadResult struct {
	Status  DownloadStatus
	TrackID string
	Quality Quality

	// Path and Size are set for downloaded and cached outcomes.
	Path string
	Size int64
}
