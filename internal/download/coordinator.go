package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ashwake/audiocache/internal/artwork"
	"github.com/ashwake/audiocache/internal/audio"
	"github.com/ashwake/audiocache/internal/cache"
	"github.com/ashwake/audiocache/internal/config"
	"github.com/ashwake/audiocache/internal/dash"
	ioutils "github.com/ashwake/audiocache/internal/io"
	"github.com/ashwake/audiocache/internal/metrics"
	"github.com/ashwake/audiocache/internal/model"
	"github.com/ashwake/audiocache/internal/upstream"
)

// ErrNoStreamURL means the upstream manifest carried neither a DASH
// presentation nor a resolvable direct URL.
var ErrNoStreamURL = errors.New("no stream URL in manifest")

// Coordinator owns the full path from trigger to cached file: cache
// lookup, in-flight deduplication, upstream fetch, DASH assembly,
// storage, cover art and tagging.
//
// All methods are safe for concurrent use. Concurrent triggers for the
// same (track, quality) key collapse into one fetch; the extra callers
// are told the download is already running and do no work.
type Coordinator struct {
	settings  *config.Settings
	cache     *cache.FileCache
	client    *upstream.Client
	assembler *dash.Assembler
	artwork   *artwork.Service
	tagger    *audio.Tagger
	logger    *log.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewCoordinator creates a download Coordinator. artworkSvc and tagger
// may be nil to disable cover art and tagging.
func NewCoordinator(
	settings *config.Settings,
	fileCache *cache.FileCache,
	client *upstream.Client,
	assembler *dash.Assembler,
	artworkSvc *artwork.Service,
	tagger *audio.Tagger,
	logger *log.Logger,
) *Coordinator {
	return &Coordinator{
		settings:  settings,
		cache:     fileCache,
		client:    client,
		assembler: assembler,
		artwork:   artworkSvc,
		tagger:    tagger,
		logger:    logger,
		inFlight:  make(map[string]struct{}),
	}
}

func ledgerKey(trackID string, quality model.Quality) string {
	return trackID + "|" + quality.String()
}

// effectiveQuality applies the configured quality override. The
// "player" setting passes the requested tier through untouched.
func (c *Coordinator) effectiveQuality(requested model.Quality) model.Quality {
	if forced, ok := c.settings.ForcedQualityValue(); ok {
		return forced
	}
	if !requested.Stored() {
		return model.DefaultQuality
	}
	return requested
}

// Downloading reports whether a download for the given key is in
// flight right now.
func (c *Coordinator) Downloading(trackID string, quality model.Quality) bool {
	key := ledgerKey(trackID, c.effectiveQuality(quality))
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inFlight[key]
	return ok
}

// TriggerAsync starts a download in the background and returns
// immediately. Failures surface only in the log; the caller has
// already been answered by the time they happen.
//
// The background fetch runs on a fresh context so a disconnecting
// trigger client cannot abort a download other clients may be
// waiting on.
func (c *Coordinator) TriggerAsync(trackID string, quality model.Quality, instances []string) {
	go func() {
		result, err := c.Download(context.Background(), trackID, quality, instances)
		if err != nil {
			c.logger.Error("background download failed",
				"trackId", trackID, "quality", quality, "err", err)
			return
		}
		c.logger.Info("background download finished",
			"trackId", trackID, "quality", quality, "status", result.Status)
	}()
}

// Download fetches one track at one quality tier and stores it, unless
// the cache already holds it or another caller is fetching it.
func (c *Coordinator) Download(ctx context.Context, trackID string, requested model.Quality, instances []string) (*model.DownloadResult, error) {
	quality := c.effectiveQuality(requested)

	entry, err := c.cache.Check(trackID, quality)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		metrics.RecordCacheLookup(true)
		return &model.DownloadResult{
			Status:  model.StatusCached,
			TrackID: trackID,
			Quality: quality,
			Path:    entry.FilePath,
			Size:    entry.SizeBytes,
		}, nil
	}
	metrics.RecordCacheLookup(false)

	key := ledgerKey(trackID, quality)
	c.mu.Lock()
	if _, busy := c.inFlight[key]; busy {
		c.mu.Unlock()
		return &model.DownloadResult{
			Status:  model.StatusDownloading,
			TrackID: trackID,
			Quality: quality,
		}, nil
	}
	c.inFlight[key] = struct{}{}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.inFlight, key)
		c.mu.Unlock()
	}()

	// The previous holder may have finished between our cache check and
	// ledger acquisition.
	entry, err = c.cache.Check(trackID, quality)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		return &model.DownloadResult{
			Status:  model.StatusCached,
			TrackID: trackID,
			Quality: quality,
			Path:    entry.FilePath,
			Size:    entry.SizeBytes,
		}, nil
	}

	start := time.Now()
	result, err := c.fetchAndStore(ctx, trackID, quality, instances)
	if err != nil {
		metrics.RecordDownload("error", 0, time.Since(start))
		return nil, err
	}
	metrics.RecordDownload("downloaded", result.Size, time.Since(start))
	return result, nil
}

// fetchAndStore performs the upstream fetch for a key whose ledger
// entry the caller holds.
func (c *Coordinator) fetchAndStore(ctx context.Context, trackID string, quality model.Quality, instances []string) (*model.DownloadResult, error) {
	lookup, err := c.client.GetTrack(ctx, instances, trackID, quality)
	if err != nil {
		return nil, fmt.Errorf("track lookup: %w", err)
	}

	data, ext, err := c.fetchAudio(ctx, lookup)
	if err != nil {
		return nil, err
	}

	path, err := c.storeFile(trackID, quality, lookup.Track, ext, data)
	if err != nil {
		return nil, err
	}

	coverPath := c.saveCoverArt(ctx, lookup.Track, filepath.Dir(path))
	c.tagFile(path, ext, lookup.Track, coverPath)

	entry := &model.CacheEntry{
		TrackID:      trackID,
		Quality:      quality,
		FilePath:     path,
		Extension:    ext,
		SizeBytes:    int64(len(data)),
		DownloadedAt: time.Now(),
		AlbumID:      lookup.Track.AlbumID,
		CoverPath:    coverPath,
	}
	if err := c.cache.Save(entry); err != nil {
		return nil, fmt.Errorf("cache index: %w", err)
	}

	c.logger.Info("track cached",
		"trackId", trackID, "quality", quality, "path", path, "bytes", len(data))

	return &model.DownloadResult{
		Status:  model.StatusDownloaded,
		TrackID: trackID,
		Quality: quality,
		Path:    path,
		Size:    int64(len(data)),
	}, nil
}

// fetchAudio resolves the manifest into audio bytes, either by
// assembling a DASH presentation or by fetching a direct URL.
func (c *Coordinator) fetchAudio(ctx context.Context, lookup *upstream.LookupResult) ([]byte, string, error) {
	manifest := ""
	if lookup.Info != nil {
		decoded, err := upstream.DecodeManifest(lookup.Info.Manifest)
		if err != nil {
			return nil, "", fmt.Errorf("decode manifest: %w", err)
		}
		manifest = decoded
	}

	if upstream.IsDashManifest(manifest) {
		data, err := c.assembler.Assemble(ctx, manifest)
		if err != nil {
			return nil, "", fmt.Errorf("assemble segments: %w", err)
		}
		return data, dash.ContainerExtension, nil
	}

	// An upstream-declared raw URL wins over one dug out of the manifest.
	streamURL := lookup.OriginalStreamURL
	if streamURL == "" {
		streamURL = upstream.ExtractStreamURL(manifest)
	}
	if streamURL == "" {
		return nil, "", ErrNoStreamURL
	}

	data, err := c.client.FetchURL(ctx, streamURL)
	if err != nil {
		return nil, "", fmt.Errorf("fetch stream: %w", err)
	}

	// A MIME type declared in the manifest beats sniffing.
	if ext := extensionForMime(upstream.ExtractMimeType(manifest)); ext != "" {
		return data, ext, nil
	}
	return data, DetectExtension(data), nil
}

var mimeExtensions = map[string]string{
	"audio/flac": "flac",
	"audio/mp4":  "m4a",
	"audio/mpeg": "mp3",
	"audio/ogg":  "ogg",
	"audio/wav":  "wav",
	"audio/aac":  "aac",
}

func extensionForMime(mimeType string) string {
	return mimeExtensions[strings.ToLower(mimeType)]
}

// storeFile resolves the final on-disk path and writes the audio file.
func (c *Coordinator) storeFile(trackID string, quality model.Quality, track *model.Track, ext string, data []byte) (string, error) {
	path := resolvePath(c.settings.StorageRoot, c.settings.FileNameTemplate(), track, quality, ext)
	path, err := disambiguate(path, trackID)
	if err != nil {
		return "", err
	}
	if err := ioutils.EnsureDir(filepath.Dir(path)); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}
	if err := ioutils.WriteFile(path, data); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

// saveCoverArt fetches and stores album art next to the track file,
// reusing a cover already saved for the same album. Returns the cover
// path, or "" when art is disabled or unavailable.
func (c *Coordinator) saveCoverArt(ctx context.Context, track *model.Track, dir string) string {
	if c.artwork == nil || !c.settings.SaveCoverArt || track.CoverURL == "" {
		return ""
	}

	if track.AlbumID != "" {
		if existing := c.cache.AlbumCoverPath(track.AlbumID); existing != "" {
			return existing
		}
	}

	data, err := c.artwork.Fetch(ctx, track.CoverURL)
	if err != nil {
		c.logger.Warn("cover art fetch failed", "trackId", track.ID, "err", err)
		return ""
	}

	coverPath := filepath.Join(dir, "cover.jpg")
	if err := ioutils.WriteFile(coverPath, data); err != nil {
		c.logger.Warn("cover art write failed", "path", coverPath, "err", err)
		return ""
	}
	return coverPath
}

// tagFile writes ID3 metadata to MP3 downloads. Tagging failures are
// logged and swallowed.
func (c *Coordinator) tagFile(path, ext string, track *model.Track, coverPath string) {
	if c.tagger == nil || ext != "mp3" {
		return
	}

	var cover []byte
	if coverPath != "" {
		if data, err := os.ReadFile(coverPath); err == nil {
			cover = data
		}
	}

	if err := c.tagger.SaveTags(path, track, cover); err != nil {
		c.logger.Warn("tagging failed", "path", path, "err", err)
	}
}
