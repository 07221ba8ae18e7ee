package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/ashwake/audiocache/internal/model"
)

// StreamInfo carries the playback descriptor an upstream returned for a
// track: a base64-encoded manifest plus its declared MIME type.
type StreamInfo struct {
	Manifest         string `json:"manifest"`
	ManifestMimeType string `json:"manifestMimeType"`
}

// LookupResult is the canonical form every upstream track-lookup payload
// is normalized into, regardless of which wire shape the instance spoke.
type LookupResult struct {
	Track             *model.Track
	Info              *StreamInfo
	OriginalStreamURL string
}

// trackPayload mirrors the track object fields the upstreams agree on.
// Identifiers are json.Number because some instances send them as
// numbers and some as strings.
type trackPayload struct {
	ID          json.Number `json:"id"`
	Title       string      `json:"title"`
	Artist      string      `json:"artist"`
	AlbumID     json.Number `json:"albumId"`
	AlbumTitle  string      `json:"albumTitle"`
	AlbumArtist string      `json:"albumArtist"`
	ReleaseDate string      `json:"releaseDate"`
	TrackNumber int         `json:"trackNumber"`
	Duration    *float64    `json:"duration"`
	Cover       string      `json:"cover"`

	// Present only in the wrapped single-object shape, where track and
	// stream fields share one object.
	Manifest         string `json:"manifest"`
	ManifestMimeType string `json:"manifestMimeType"`
}

func (p *trackPayload) toTrack() *model.Track {
	year := ""
	if len(p.ReleaseDate) >= 4 {
		year = p.ReleaseDate[:4]
	}
	duration := 0.0
	if p.Duration != nil {
		duration = *p.Duration
	}
	return &model.Track{
		ID:          p.ID.String(),
		Title:       p.Title,
		Artist:      p.Artist,
		AlbumID:     p.AlbumID.String(),
		AlbumTitle:  p.AlbumTitle,
		AlbumArtist: p.AlbumArtist,
		Year:        year,
		TrackNumber: p.TrackNumber,
		Duration:    duration,
		CoverURL:    p.Cover,
	}
}

// GetTrack looks a track up across the instance pool and normalizes the
// heterogeneous response shapes into a LookupResult.
//
// Two shapes exist in the wild:
//
//   - an array of loosely-tagged objects, where the track object is
//     recognized by its duration field, the stream-info object by its
//     manifest field, and an optional object carries a raw stream URL
//   - a single wrapped object whose data field carries the track and
//     stream fields directly
//
// Anything else is ErrMalformedResponse.
func (c *Client) GetTrack(ctx context.Context, instances []string, trackID string, quality model.Quality) (*LookupResult, error) {
	path := fmt.Sprintf("/track/?id=%s&quality=%s", url.QueryEscape(trackID), url.QueryEscape(quality.String()))

	body, err := c.FetchWithRetry(ctx, instances, path)
	if err != nil {
		return nil, err
	}

	result, err := normalizeLookup(body)
	if err != nil {
		return nil, err
	}
	if result.Track.ID == "" {
		result.Track.ID = trackID
	}
	return result, nil
}

// normalizeLookup runs the ordered shape matchers over a raw lookup
// payload.
func normalizeLookup(body []byte) (*LookupResult, error) {
	trimmed := strings.TrimSpace(string(body))
	switch {
	case strings.HasPrefix(trimmed, "["):
		return matchTaggedArray(body)
	case strings.HasPrefix(trimmed, "{"):
		return matchWrappedObject(body)
	}
	return nil, fmt.Errorf("%w: not a JSON array or object", ErrMalformedResponse)
}

// matchTaggedArray handles the array-of-tagged-objects shape.
func matchTaggedArray(body []byte) (*LookupResult, error) {
	var elements []json.RawMessage
	if err := json.Unmarshal(body, &elements); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	result := &LookupResult{}
	for _, raw := range elements {
		var probe struct {
			Duration         *float64 `json:"duration"`
			Manifest         *string  `json:"manifest"`
			OriginalTrackURL string   `json:"OriginalTrackUrl"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			continue
		}

		switch {
		case probe.Duration != nil:
			var payload trackPayload
			if err := json.Unmarshal(raw, &payload); err != nil {
				return nil, fmt.Errorf("%w: track object: %v", ErrMalformedResponse, err)
			}
			result.Track = payload.toTrack()
		case probe.Manifest != nil:
			var info StreamInfo
			if err := json.Unmarshal(raw, &info); err != nil {
				return nil, fmt.Errorf("%w: info object: %v", ErrMalformedResponse, err)
			}
			result.Info = &info
		case probe.OriginalTrackURL != "":
			result.OriginalStreamURL = probe.OriginalTrackURL
		}
	}

	if result.Track == nil {
		return nil, fmt.Errorf("%w: no track object in array payload", ErrMalformedResponse)
	}
	return result, nil
}

// matchWrappedObject handles the single-object shape, where a data field
// wraps track and stream fields together.
func matchWrappedObject(body []byte) (*LookupResult, error) {
	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	inner := body
	if len(wrapper.Data) > 0 {
		inner = wrapper.Data
	}

	var payload trackPayload
	if err := json.Unmarshal(inner, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if payload.Duration == nil && payload.Manifest == "" {
		return nil, fmt.Errorf("%w: object carries neither track nor stream fields", ErrMalformedResponse)
	}

	result := &LookupResult{Track: payload.toTrack()}
	if payload.Manifest != "" {
		result.Info = &StreamInfo{
			Manifest:         payload.Manifest,
			ManifestMimeType: payload.ManifestMimeType,
		}
	}
	return result, nil
}
