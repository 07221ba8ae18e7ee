// Package dash parses DASH/MPD manifests and reassembles their
// segmented audio into a single buffer.
//
// The reconstruction is best-effort: media segments that fail to
// download are skipped rather than retried, so a lossy upstream can
// yield a shorter file than the manifest advertised. Init segment
// failures abort the job.
package dash
