package server

import (
	"errors"
	"strconv"
	"strings"
)

// errUnsatisfiableRange covers both malformed Range headers and ranges
// that fall outside the resource. Either way the client gets a 416 with
// the resource size so it can retry with a valid range.
var errUnsatisfiableRange = errors.New("unsatisfiable byte range")

// parseByteRange parses a single-range Range header against a resource
// of the given size and returns the inclusive start and end offsets.
//
//	bytes=A-B  ->  (A, min(B, size-1))
//	bytes=A-   ->  (A, size-1)
//	bytes=-N   ->  (max(size-N, 0), size-1)
//
// Multi-range requests, garbage, and ranges starting at or beyond the
// end of the resource are errUnsatisfiableRange.
func parseByteRange(header string, size int64) (int64, int64, error) {
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok || strings.Contains(spec, ",") {
		return 0, 0, errUnsatisfiableRange
	}

	startText, endText, ok := strings.Cut(spec, "-")
	if !ok {
		return 0, 0, errUnsatisfiableRange
	}

	// Suffix form: last N bytes.
	if startText == "" {
		n, err := strconv.ParseInt(endText, 10, 64)
		if err != nil || n <= 0 {
			return 0, 0, errUnsatisfiableRange
		}
		start := size - n
		if start < 0 {
			start = 0
		}
		if start >= size {
			return 0, 0, errUnsatisfiableRange
		}
		return start, size - 1, nil
	}

	start, err := strconv.ParseInt(startText, 10, 64)
	if err != nil || start < 0 || start >= size {
		return 0, 0, errUnsatisfiableRange
	}

	end := size - 1
	if endText != "" {
		end, err = strconv.ParseInt(endText, 10, 64)
		if err != nil {
			return 0, 0, errUnsatisfiableRange
		}
		if end > size-1 {
			end = size - 1
		}
	}
	if start > end {
		return 0, 0, errUnsatisfiableRange
	}
	return start, end, nil
}
