package upstream

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/ashwake/audiocache/internal/model"
	"github.com/charmbracelet/log"
)

func testClient() *Client {
	c := NewClient(log.New(io.Discard))
	c.RateLimitWait = 0
	c.NetworkWait = 0
	return c
}

func TestFetchWithRetry(t *testing.T) {
	t.Run("rate limited instance fails over", func(t *testing.T) {
		limited := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer limited.Close()

		ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("payload"))
		}))
		defer ok.Close()

		body, err := testClient().FetchWithRetry(context.Background(), []string{limited.URL, ok.URL}, "/x")
		if err != nil {
			t.Fatalf("FetchWithRetry() error = %v", err)
		}
		if string(body) != "payload" {
			t.Errorf("body = %q, want %q", body, "payload")
		}
	})

	t.Run("token invalid 401 advances instance", func(t *testing.T) {
		unauthorized := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"subStatus": 11002, "userMessage": "token invalid"}`))
		}))
		defer unauthorized.Close()

		ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("fine"))
		}))
		defer ok.Close()

		body, err := testClient().FetchWithRetry(context.Background(), []string{unauthorized.URL, ok.URL}, "/x")
		if err != nil {
			t.Fatalf("FetchWithRetry() error = %v", err)
		}
		if string(body) != "fine" {
			t.Errorf("body = %q, want %q", body, "fine")
		}
	})

	t.Run("server errors exhaust into ErrInstanceExhausted", func(t *testing.T) {
		var attempts atomic.Int32
		broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer broken.Close()

		_, err := testClient().FetchWithRetry(context.Background(), []string{broken.URL, broken.URL}, "/x")
		if !errors.Is(err, ErrInstanceExhausted) {
			t.Fatalf("error = %v, want ErrInstanceExhausted", err)
		}
		if got := attempts.Load(); got != 4 {
			t.Errorf("attempts = %d, want 2x instance count = 4", got)
		}
	})

	t.Run("second round retries the same instances", func(t *testing.T) {
		var attempts atomic.Int32
		flaky := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if attempts.Add(1) <= 1 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Write([]byte("recovered"))
		}))
		defer flaky.Close()

		body, err := testClient().FetchWithRetry(context.Background(), []string{flaky.URL}, "/x")
		if err != nil {
			t.Fatalf("FetchWithRetry() error = %v", err)
		}
		if string(body) != "recovered" {
			t.Errorf("body = %q, want %q", body, "recovered")
		}
	})

	t.Run("cancellation is returned immediately", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := testClient().FetchWithRetry(ctx, []string{server.URL}, "/x")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	})

	t.Run("empty instance pool", func(t *testing.T) {
		_, err := testClient().FetchWithRetry(context.Background(), nil, "/x")
		if !errors.Is(err, ErrInstanceExhausted) {
			t.Errorf("error = %v, want ErrInstanceExhausted", err)
		}
	})
}

func TestGetTrack_Normalization(t *testing.T) {
	t.Run("tagged array shape", func(t *testing.T) {
		payload := `[
			{"id": 123, "title": "Song", "artist": "Artist", "albumId": 9, "albumTitle": "Album", "duration": 215.0, "trackNumber": 3, "releaseDate": "2021-04-01", "cover": "https://img.example/cover.jpg"},
			{"manifest": "bWFuaWZlc3Q=", "manifestMimeType": "application/dash+xml"},
			{"OriginalTrackUrl": "https://cdn.example/raw.flac"}
		]`
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(payload))
		}))
		defer server.Close()

		result, err := testClient().GetTrack(context.Background(), []string{server.URL}, "123", model.QualityLossless)
		if err != nil {
			t.Fatalf("GetTrack() error = %v", err)
		}
		if result.Track.ID != "123" || result.Track.Title != "Song" {
			t.Errorf("track = %+v", result.Track)
		}
		if result.Track.Year != "2021" {
			t.Errorf("year = %q, want 2021", result.Track.Year)
		}
		if result.Info == nil || result.Info.Manifest != "bWFuaWZlc3Q=" {
			t.Errorf("info = %+v", result.Info)
		}
		if result.OriginalStreamURL != "https://cdn.example/raw.flac" {
			t.Errorf("originalStreamURL = %q", result.OriginalStreamURL)
		}
	})

	t.Run("wrapped object shape", func(t *testing.T) {
		payload := `{"data": {"id": "456", "title": "Other", "artist": "Someone", "duration": 100, "manifest": "eDQ=", "manifestMimeType": "application/vnd.tidal.bts"}}`
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(payload))
		}))
		defer server.Close()

		result, err := testClient().GetTrack(context.Background(), []string{server.URL}, "456", model.QualityHigh)
		if err != nil {
			t.Fatalf("GetTrack() error = %v", err)
		}
		if result.Track.Title != "Other" {
			t.Errorf("track = %+v", result.Track)
		}
		if result.Info == nil || result.Info.ManifestMimeType != "application/vnd.tidal.bts" {
			t.Errorf("info = %+v", result.Info)
		}
	})

	t.Run("unrecognized shape is malformed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`"just a string"`))
		}))
		defer server.Close()

		_, err := testClient().GetTrack(context.Background(), []string{server.URL}, "1", model.QualityLow)
		if !errors.Is(err, ErrMalformedResponse) {
			t.Errorf("error = %v, want ErrMalformedResponse", err)
		}
	})

	t.Run("array without track object is malformed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[{"manifest": "eA=="}]`))
		}))
		defer server.Close()

		_, err := testClient().GetTrack(context.Background(), []string{server.URL}, "1", model.QualityLow)
		if !errors.Is(err, ErrMalformedResponse) {
			t.Errorf("error = %v, want ErrMalformedResponse", err)
		}
	})
}

func TestDecodeManifest(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("<MPD></MPD>"))
	decoded, err := DecodeManifest(encoded)
	if err != nil {
		t.Fatalf("DecodeManifest() error = %v", err)
	}
	if decoded != "<MPD></MPD>" {
		t.Errorf("decoded = %q", decoded)
	}

	empty, err := DecodeManifest("")
	if err != nil || empty != "" {
		t.Errorf("DecodeManifest(\"\") = (%q, %v), want (\"\", nil)", empty, err)
	}

	if _, err := DecodeManifest("!!not base64!!"); err == nil {
		t.Error("expected error for invalid base64")
	}
}

func TestIsDashManifest(t *testing.T) {
	if !IsDashManifest(`<?xml version="1.0"?><MPD xmlns="urn:mpeg:dash:schema:mpd:2011"></MPD>`) {
		t.Error("MPD document should be recognized as DASH")
	}
	if IsDashManifest(`{"urls": ["https://x"]}`) {
		t.Error("JSON manifest should not be DASH")
	}
}

func TestExtractStreamURL(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"json urls array", `{"urls": ["https://cdn.example/a.flac", "https://cdn.example/b.flac"]}`, "https://cdn.example/a.flac"},
		{"bare json string", `"https://cdn.example/direct.m4a"`, "https://cdn.example/direct.m4a"},
		{"plain url text", "https://cdn.example/plain.mp3", "https://cdn.example/plain.mp3"},
		{"embedded url", `<something url="https://cdn.example/embedded.aac" />`, "https://cdn.example/embedded.aac"},
		{"nothing", "no urls here", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractStreamURL(tt.text); got != tt.want {
				t.Errorf("ExtractStreamURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractMimeType(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"bts with mime", `{"mimeType": "audio/flac", "urls": ["https://cdn.example/a.flac"]}`, "audio/flac"},
		{"bts without mime", `{"urls": ["https://cdn.example/a.flac"]}`, ""},
		{"not json", "plain text", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractMimeType(tt.text); got != tt.want {
				t.Errorf("ExtractMimeType() = %q, want %q", got, tt.want)
			}
		})
	}
}
