package model

import "fmt"

// Quality is a named audio fidelity tier.
type Quality string

const (
	// QualityHiResLossless is the highest tier (hi-res FLAC).
	QualityHiResLossless Quality = "HI_RES_LOSSLESS"

	// QualityLossless is CD-quality FLAC.
	QualityLossless Quality = "LOSSLESS"

	// QualityHigh is high-bitrate lossy audio.
	QualityHigh Quality = "HIGH"

	// QualityLow is low-bitrate lossy audio.
	QualityLow Quality = "LOW"

	// QualityPlayer is the passthrough sentinel: apply whatever quality
	// the caller requested, no server-side override. It is accepted only
	// as a server preference, never as a per-request or stored quality.
	QualityPlayer Quality = "player"
)

// DefaultQuality is used when a trigger request names no quality.
const DefaultQuality = QualityHiResLossless

// StoredQualities lists the storable tiers ordered by preference,
// best first.
func StoredQualities() []Quality {
	return []Quality{QualityHiResLossless, QualityLossless, QualityHigh, QualityLow}
}

// Stored reports whether q is a tier that can appear in the cache index.
// The passthrough sentinel is not storable.
func (q Quality) Stored() bool {
	switch q {
	case QualityHiResLossless, QualityLossless, QualityHigh, QualityLow:
		return true
	}
	return false
}

func (q Quality) String() string { return string(q) }

// ParseQuality validates a wire-level quality value. Only the four
// storable tiers are accepted; "player" and anything else is an error.
func ParseQuality(s string) (Quality, error) {
	q := Quality(s)
	if !q.Stored() {
		return "", fmt.Errorf("unknown quality %q", s)
	}
	return q, nil
}
