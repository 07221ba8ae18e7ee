package server

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/ashwake/audiocache/internal/metrics"
	"github.com/ashwake/audiocache/internal/model"
)

// contentTypes maps stored file extensions to MIME types. Extensions
// not listed here (including the sniff fallback "audio") are served as
// opaque bytes.
var contentTypes = map[string]string{
	"flac": "audio/flac",
	"m4a":  "audio/mp4",
	"mp4":  "audio/mp4",
	"mp3":  "audio/mpeg",
	"ogg":  "audio/ogg",
	"wav":  "audio/wav",
	"aac":  "audio/aac",
}

func contentTypeFor(ext string) string {
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}

// handleStream serves a cached audio file with byte-range support.
//
// The lookup prefers the exact requested quality and falls back to the
// best other quality on record. HEAD requests get the same headers as
// GET with no body.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	trackID := r.URL.Query().Get("id")
	if trackID == "" {
		httpError(w, http.StatusBadRequest, "missing id parameter")
		return
	}

	entry, err := s.lookupEntry(trackID, r.URL.Query().Get("quality"))
	if err != nil {
		s.logger.Error("cache lookup failed", "trackId", trackID, "err", err)
		httpError(w, http.StatusInternalServerError, "cache lookup failed")
		return
	}
	if entry == nil {
		httpError(w, http.StatusNotFound, "track not cached")
		return
	}

	file, err := os.Open(entry.FilePath)
	if err != nil {
		s.logger.Error("cached file unreadable", "path", entry.FilePath, "err", err)
		httpError(w, http.StatusInternalServerError, "cached file unreadable")
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		httpError(w, http.StatusInternalServerError, "cached file unreadable")
		return
	}
	size := info.Size()

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentTypeFor(entry.Extension))

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", size))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			metrics.RecordStream("full", 0)
			return
		}
		n, err := io.Copy(w, file)
		if err != nil {
			s.logger.Warn("stream interrupted", "trackId", trackID, "sent", n, "err", err)
		}
		metrics.RecordStream("full", n)
		return
	}

	start, end, err := parseByteRange(rangeHeader, size)
	if err != nil {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		metrics.RecordStream("unsatisfiable", 0)
		return
	}

	length := end - start + 1
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", length))
	w.WriteHeader(http.StatusPartialContent)
	if r.Method == http.MethodHead {
		metrics.RecordStream("partial", 0)
		return
	}

	if _, err := file.Seek(start, io.SeekStart); err != nil {
		s.logger.Error("seek failed", "trackId", trackID, "offset", start, "err", err)
		return
	}
	n, err := io.CopyN(w, file, length)
	if err != nil {
		s.logger.Warn("stream interrupted", "trackId", trackID, "sent", n, "err", err)
	}
	metrics.RecordStream("partial", n)
}

// lookupEntry finds a live cache entry, preferring the requested
// quality when one was named and falling back to any stored tier.
func (s *Server) lookupEntry(trackID, qualityParam string) (*model.CacheEntry, error) {
	if qualityParam != "" {
		if quality, err := model.ParseQuality(qualityParam); err == nil {
			entry, err := s.cache.Check(trackID, quality)
			if err != nil {
				return nil, err
			}
			if entry != nil {
				return entry, nil
			}
		}
	}
	return s.cache.CheckAny(trackID)
}
