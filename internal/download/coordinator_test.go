package download

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ashwake/audiocache/internal/cache"
	"github.com/ashwake/audiocache/internal/config"
	"github.com/ashwake/audiocache/internal/dash"
	"github.com/ashwake/audiocache/internal/model"
	"github.com/ashwake/audiocache/internal/upstream"
)

var flacBytes = append([]byte("fLaC"), make([]byte, 16)...)

func newTestCoordinator(t *testing.T, settings *config.Settings) (*Coordinator, *cache.FileCache) {
	t.Helper()

	logger := log.New(io.Discard)
	if settings == nil {
		settings = config.DefaultSettings()
	}
	root := t.TempDir()
	settings.StorageRoot = root
	settings.CacheDBPath = filepath.Join(root, "cache.db")

	fileCache, err := cache.Open(settings.CacheDBPath, logger)
	if err != nil {
		t.Fatalf("cache.Open() error = %v", err)
	}
	t.Cleanup(func() { fileCache.Close() })

	client := upstream.NewClient(logger)
	client.RateLimitWait = 0
	client.NetworkWait = 0

	assembler := dash.NewAssembler(client, logger)
	co := NewCoordinator(settings, fileCache, client, assembler, nil, nil, logger)
	return co, fileCache
}

// newCatalogServer serves a track lookup whose manifest points back at
// the server's own /stream endpoint. lookups and streams count requests.
func newCatalogServer(t *testing.T, lookups, streams *atomic.Int64, gate chan struct{}) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	var server *httptest.Server

	mux.HandleFunc("/track/", func(w http.ResponseWriter, r *http.Request) {
		lookups.Add(1)
		manifest := base64.StdEncoding.EncodeToString(
			[]byte(fmt.Sprintf(`{"urls":["%s/stream"]}`, server.URL)))
		fmt.Fprintf(w, `{"data":{"id":101,"title":"Harbor Lights","artist":"The Moorings",
			"albumId":7,"albumTitle":"Tidewater","trackNumber":3,"duration":241.0,
			"manifest":"%s","manifestMimeType":"application/vnd.tidal.bts"}}`, manifest)
	})
	mux.HandleFunc("/stream", func(w http.ResponseWriter, r *http.Request) {
		if gate != nil {
			<-gate
		}
		streams.Add(1)
		w.Write(flacBytes)
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestDownloadFailsOverAndCaches(t *testing.T) {
	var lookups, streams atomic.Int64
	good := newCatalogServer(t, &lookups, &streams, nil)

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusInternalServerError)
	}))
	defer bad.Close()

	co, _ := newTestCoordinator(t, nil)
	instances := []string{bad.URL, good.URL}

	result, err := co.Download(context.Background(), "101", model.QualityLossless, instances)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if result.Status != model.StatusDownloaded {
		t.Fatalf("status = %q, want %q", result.Status, model.StatusDownloaded)
	}
	if filepath.Ext(result.Path) != ".flac" {
		t.Errorf("path = %q, want .flac extension", result.Path)
	}
	if data, err := os.ReadFile(result.Path); err != nil || len(data) != len(flacBytes) {
		t.Errorf("stored file: err=%v len=%d, want len=%d", err, len(data), len(flacBytes))
	}

	// Second trigger must be answered from the cache with no network.
	lookupsBefore, streamsBefore := lookups.Load(), streams.Load()
	result, err = co.Download(context.Background(), "101", model.QualityLossless, instances)
	if err != nil {
		t.Fatalf("second Download() error = %v", err)
	}
	if result.Status != model.StatusCached {
		t.Errorf("second status = %q, want %q", result.Status, model.StatusCached)
	}
	if lookups.Load() != lookupsBefore || streams.Load() != streamsBefore {
		t.Errorf("cache hit still reached upstream: lookups %d->%d streams %d->%d",
			lookupsBefore, lookups.Load(), streamsBefore, streams.Load())
	}
}

func TestDownloadDeduplicatesConcurrentTriggers(t *testing.T) {
	var lookups, streams atomic.Int64
	gate := make(chan struct{})
	server := newCatalogServer(t, &lookups, &streams, gate)

	co, _ := newTestCoordinator(t, nil)
	instances := []string{server.URL}

	type outcome struct {
		result *model.DownloadResult
		err    error
	}
	first := make(chan outcome, 1)
	go func() {
		result, err := co.Download(context.Background(), "101", model.QualityLossless, instances)
		first <- outcome{result, err}
	}()

	deadline := time.Now().Add(5 * time.Second)
	for !co.Downloading("101", model.QualityLossless) {
		if time.Now().After(deadline) {
			t.Fatal("first download never registered in the ledger")
		}
		time.Sleep(time.Millisecond)
	}

	result, err := co.Download(context.Background(), "101", model.QualityLossless, instances)
	if err != nil {
		t.Fatalf("concurrent Download() error = %v", err)
	}
	if result.Status != model.StatusDownloading {
		t.Errorf("concurrent status = %q, want %q", result.Status, model.StatusDownloading)
	}

	close(gate)
	got := <-first
	if got.err != nil {
		t.Fatalf("first Download() error = %v", got.err)
	}
	if got.result.Status != model.StatusDownloaded {
		t.Errorf("first status = %q, want %q", got.result.Status, model.StatusDownloaded)
	}
	if lookups.Load() != 1 || streams.Load() != 1 {
		t.Errorf("lookups=%d streams=%d, want exactly 1 each", lookups.Load(), streams.Load())
	}
	if co.Downloading("101", model.QualityLossless) {
		t.Error("ledger entry not released after completion")
	}
}

func TestDownloadForcedQualityOverride(t *testing.T) {
	var lookups, streams atomic.Int64
	server := newCatalogServer(t, &lookups, &streams, nil)

	settings := config.DefaultSettings()
	settings.ForcedQuality = string(model.QualityLow)
	co, fileCache := newTestCoordinator(t, settings)

	result, err := co.Download(context.Background(), "101", model.QualityHiResLossless, []string{server.URL})
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if result.Quality != model.QualityLow {
		t.Errorf("quality = %q, want %q", result.Quality, model.QualityLow)
	}

	entry, err := fileCache.Check("101", model.QualityLow)
	if err != nil || entry == nil {
		t.Fatalf("Check(LOW) = %v, %v; want hit", entry, err)
	}
}

func TestDownloadAssemblesDashManifest(t *testing.T) {
	mux := http.NewServeMux()
	var server *httptest.Server

	mux.HandleFunc("/track/", func(w http.ResponseWriter, r *http.Request) {
		mpd := fmt.Sprintf(`<?xml version="1.0"?>
<MPD mediaPresentationDuration="PT5S">
  <Period>
    <AdaptationSet>
      <Representation id="audio-96k">
        <SegmentTemplate initialization="%s/init.mp4" media="%s/seg-$Number$.m4s"
                         startNumber="1" timescale="1000">
          <SegmentTimeline><S d="1000" r="2"/></SegmentTimeline>
        </SegmentTemplate>
      </Representation>
    </AdaptationSet>
  </Period>
</MPD>`, server.URL, server.URL)
		manifest := base64.StdEncoding.EncodeToString([]byte(mpd))
		fmt.Fprintf(w, `{"data":{"id":202,"title":"Undertow","artist":"The Moorings",
			"duration":180.0,"manifest":"%s","manifestMimeType":"application/dash+xml"}}`, manifest)
	})
	mux.HandleFunc("/init.mp4", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "INIT")
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, filepath.Base(r.URL.Path))
	})

	server = httptest.NewServer(mux)
	defer server.Close()

	co, _ := newTestCoordinator(t, nil)
	result, err := co.Download(context.Background(), "202", model.QualityHigh, []string{server.URL})
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if filepath.Ext(result.Path) != ".m4a" {
		t.Errorf("path = %q, want .m4a extension", result.Path)
	}

	data, err := os.ReadFile(result.Path)
	if err != nil {
		t.Fatalf("read assembled file: %v", err)
	}
	want := "INITseg-1.m4sseg-2.m4sseg-3.m4s"
	if string(data) != want {
		t.Errorf("assembled = %q, want %q", data, want)
	}
}

func TestDownloadNoStreamURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		manifest := base64.StdEncoding.EncodeToString([]byte(`{"urls":[]}`))
		fmt.Fprintf(w, `{"data":{"id":303,"title":"Silent","duration":10.0,"manifest":"%s"}}`, manifest)
	}))
	defer server.Close()

	co, _ := newTestCoordinator(t, nil)
	_, err := co.Download(context.Background(), "303", model.QualityHigh, []string{server.URL})
	if !errors.Is(err, ErrNoStreamURL) {
		t.Errorf("Download() error = %v, want ErrNoStreamURL", err)
	}
}
