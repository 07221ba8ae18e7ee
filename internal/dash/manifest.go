package dash

import (
	"encoding/xml"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
)

// ErrManifest means a DASH manifest is missing structure the downloader
// cannot work without.
var ErrManifest = errors.New("invalid DASH manifest")

// ContainerExtension is the file extension of assembled DASH audio.
// Tidal-style catalogs serve fragmented MP4 segments, so the joined
// buffer is an m4a container.
const ContainerExtension = "m4a"

// defaultPresentationSeconds is assumed when the MPD carries no
// mediaPresentationDuration and the segment count must be estimated.
const defaultPresentationSeconds = 300.0

var presentationDurationPattern = regexp.MustCompile(`^PT([0-9]+(?:\.[0-9]+)?)S$`)

// SegmentPlan is the ephemeral download plan derived from one manifest
// parse: where the init segment lives, how media segment URLs are
// templated, and how many of them exist. It is discarded once the
// buffer is assembled.
type SegmentPlan struct {
	InitTemplate     string
	MediaTemplate    string
	StartNumber      int
	SegmentCount     int
	RepresentationID string
}

type mpdDocument struct {
	XMLName                   xml.Name   `xml:"MPD"`
	MediaPresentationDuration string     `xml:"mediaPresentationDuration,attr"`
	Periods                   []struct { // navigation uses the first of everything
		AdaptationSets []struct {
			SegmentTemplate *segmentTemplate `xml:"SegmentTemplate"`
			Representations []struct {
				ID              string           `xml:"id,attr"`
				SegmentTemplate *segmentTemplate `xml:"SegmentTemplate"`
			} `xml:"Representation"`
		} `xml:"AdaptationSet"`
	} `xml:"Period"`
}

type segmentTemplate struct {
	Initialization string `xml:"initialization,attr"`
	Media          string `xml:"media,attr"`
	StartNumber    *int   `xml:"startNumber,attr"`
	Duration       *int64 `xml:"duration,attr"`
	Timescale      *int64 `xml:"timescale,attr"`
	Timeline       *struct {
		Segments []struct {
			Duration int64 `xml:"d,attr"`
			Repeat   int   `xml:"r,attr"`
		} `xml:"S"`
	} `xml:"SegmentTimeline"`
}

// Plan parses decoded manifest text and derives the segment plan.
//
// The first Period, AdaptationSet, and Representation are used; a
// Representation without its own SegmentTemplate inherits the
// AdaptationSet's. Segment count comes from the SegmentTimeline when
// present, else is estimated from the fixed segment duration against
// the MPD's presentation duration; having neither is fatal.
func Plan(manifest string) (*SegmentPlan, error) {
	var doc mpdDocument
	if err := xml.Unmarshal([]byte(manifest), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifest, err)
	}

	if len(doc.Periods) == 0 {
		return nil, fmt.Errorf("%w: no Period", ErrManifest)
	}
	period := doc.Periods[0]
	if len(period.AdaptationSets) == 0 {
		return nil, fmt.Errorf("%w: no AdaptationSet", ErrManifest)
	}
	set := period.AdaptationSets[0]
	if len(set.Representations) == 0 {
		return nil, fmt.Errorf("%w: no Representation", ErrManifest)
	}
	rep := set.Representations[0]

	template := rep.SegmentTemplate
	if template == nil {
		template = set.SegmentTemplate
	}
	if template == nil {
		return nil, fmt.Errorf("%w: no SegmentTemplate", ErrManifest)
	}

	count, err := segmentCount(template, doc.MediaPresentationDuration)
	if err != nil {
		return nil, err
	}

	start := 1
	if template.StartNumber != nil {
		start = *template.StartNumber
	}

	return &SegmentPlan{
		InitTemplate:     template.Initialization,
		MediaTemplate:    template.Media,
		StartNumber:      start,
		SegmentCount:     count,
		RepresentationID: rep.ID,
	}, nil
}

func segmentCount(template *segmentTemplate, presentationDuration string) (int, error) {
	if template.Timeline != nil && len(template.Timeline.Segments) > 0 {
		count := 0
		for _, s := range template.Timeline.Segments {
			count += 1 + s.Repeat
		}
		return count, nil
	}

	if template.Duration != nil && template.Timescale != nil && *template.Timescale > 0 {
		total := presentationSeconds(presentationDuration)
		segmentSeconds := float64(*template.Duration) / float64(*template.Timescale)
		if segmentSeconds <= 0 {
			return 0, fmt.Errorf("%w: cannot determine segment count", ErrManifest)
		}
		return int(math.Ceil(total / segmentSeconds)), nil
	}

	return 0, fmt.Errorf("%w: cannot determine segment count", ErrManifest)
}

func presentationSeconds(attr string) float64 {
	match := presentationDurationPattern.FindStringSubmatch(attr)
	if match == nil {
		return defaultPresentationSeconds
	}
	seconds, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return defaultPresentationSeconds
	}
	return seconds
}
