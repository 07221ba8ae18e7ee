package cache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ashwake/audiocache/internal/model"
	"github.com/charmbracelet/log"
	_ "github.com/mattn/go-sqlite3" // sqlite driver registration
)

const schema = `
CREATE TABLE IF NOT EXISTS track_cache (
	track_id      TEXT NOT NULL,
	quality       TEXT NOT NULL,
	file_path     TEXT NOT NULL,
	extension     TEXT NOT NULL,
	size_bytes    INTEGER NOT NULL,
	downloaded_at TIMESTAMP NOT NULL,
	album_id      TEXT NOT NULL DEFAULT '',
	cover_path    TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (track_id, quality)
);
CREATE INDEX IF NOT EXISTS idx_track_cache_album ON track_cache(album_id);
`

// FileCache is the persistent index mapping (trackId, quality) to a file
// on disk.
//
// Every read re-verifies that the file still exists; a record whose file
// vanished out-of-band is deleted on the spot and reported as a miss.
// The index is never swept eagerly — healing happens lazily, one stale
// row at a time, as reads encounter them.
type FileCache struct {
	db     *sql.DB
	logger *log.Logger
	mu     sync.Mutex
}

// Open opens (creating if necessary) the cache database at path.
func Open(path string, logger *log.Logger) (*FileCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize cache schema: %w", err)
	}

	return &FileCache{db: db, logger: logger}, nil
}

// Close releases the underlying database.
func (c *FileCache) Close() error {
	return c.db.Close()
}

// Check performs an exact (trackId, quality) lookup. A record whose file
// no longer exists is purged and reported as a miss.
func (c *FileCache) Check(trackID string, quality model.Quality) (*model.CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	row := c.db.QueryRow(
		`SELECT track_id, quality, file_path, extension, size_bytes, downloaded_at, album_id, cover_path
		 FROM track_cache WHERE track_id = ? AND quality = ?`,
		trackID, string(quality),
	)

	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if !fileLive(entry.FilePath) {
		c.purge(entry.TrackID, entry.Quality)
		return nil, nil
	}
	return entry, nil
}

// CheckAny looks a track up across all qualities, most recently
// downloaded first, purging stale rows it encounters, and returns the
// first entry whose file is still on disk. Used for graceful fallback
// when the exact quality is absent but another is cached.
func (c *FileCache) CheckAny(trackID string) (*model.CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.db.Query(
		`SELECT track_id, quality, file_path, extension, size_bytes, downloaded_at, album_id, cover_path
		 FROM track_cache WHERE track_id = ? ORDER BY downloaded_at DESC`,
		trackID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []*model.CacheEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, entry := range candidates {
		if fileLive(entry.FilePath) {
			return entry, nil
		}
		c.purge(entry.TrackID, entry.Quality)
	}
	return nil, nil
}

// Save upserts an entry keyed by (trackId, quality).
func (c *FileCache) Save(entry *model.CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.Exec(
		`INSERT INTO track_cache (track_id, quality, file_path, extension, size_bytes, downloaded_at, album_id, cover_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(track_id, quality) DO UPDATE SET
		   file_path = excluded.file_path,
		   extension = excluded.extension,
		   size_bytes = excluded.size_bytes,
		   downloaded_at = excluded.downloaded_at,
		   album_id = excluded.album_id,
		   cover_path = excluded.cover_path`,
		entry.TrackID, string(entry.Quality), entry.FilePath, entry.Extension,
		entry.SizeBytes, entry.DownloadedAt, entry.AlbumID, entry.CoverPath,
	)
	return err
}

// AlbumCoverPath returns a live cover file already downloaded for the
// album, so a second track of the same album can reuse it. Best-effort:
// any problem reports no cover.
func (c *FileCache) AlbumCoverPath(albumID string) string {
	if albumID == "" {
		return ""
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.db.Query(
		`SELECT DISTINCT cover_path FROM track_cache WHERE album_id = ? AND cover_path != ''`,
		albumID,
	)
	if err != nil {
		return ""
	}
	defer rows.Close()

	for rows.Next() {
		var coverPath string
		if err := rows.Scan(&coverPath); err != nil {
			return ""
		}
		if fileLive(coverPath) {
			return coverPath
		}
	}
	return ""
}

func (c *FileCache) purge(trackID string, quality model.Quality) {
	if _, err := c.db.Exec(
		`DELETE FROM track_cache WHERE track_id = ? AND quality = ?`,
		trackID, string(quality),
	); err != nil {
		c.logger.Warn("failed to purge stale cache row", "track_id", trackID, "quality", quality, "error", err)
		return
	}
	c.logger.Info("purged stale cache row", "track_id", trackID, "quality", quality)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*model.CacheEntry, error) {
	var entry model.CacheEntry
	var quality string
	var downloadedAt time.Time
	if err := row.Scan(
		&entry.TrackID, &quality, &entry.FilePath, &entry.Extension,
		&entry.SizeBytes, &downloadedAt, &entry.AlbumID, &entry.CoverPath,
	); err != nil {
		return nil, err
	}
	entry.Quality = model.Quality(quality)
	entry.DownloadedAt = downloadedAt
	return &entry, nil
}

func fileLive(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
