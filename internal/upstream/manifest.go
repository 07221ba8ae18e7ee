package upstream

import (
	"encoding/base64"
	"encoding/json"
	"regexp"
	"strings"
)

var absoluteURLPattern = regexp.MustCompile(`https?://[^\s"'<>\\]+`)

// DecodeManifest base64-decodes a manifest to text. Missing input
// decodes to the empty string.
func DecodeManifest(manifest string) (string, error) {
	if manifest == "" {
		return "", nil
	}
	decoded, err := base64.StdEncoding.DecodeString(manifest)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

// IsDashManifest reports whether decoded manifest text is a DASH/MPD
// document.
func IsDashManifest(text string) bool {
	return strings.Contains(text, "<MPD")
}

// ExtractStreamURL pulls a direct stream URL out of decoded manifest
// text. Matchers run in order:
//
//  1. a JSON object with a urls array (the BTS manifest shape)
//  2. a bare string that is itself an absolute URL
//  3. the first embedded absolute URL anywhere in the text
//
// Returns "" when nothing matches.
func ExtractStreamURL(text string) string {
	if text == "" {
		return ""
	}

	var bts struct {
		URLs []string `json:"urls"`
	}
	if err := json.Unmarshal([]byte(text), &bts); err == nil && len(bts.URLs) > 0 {
		return bts.URLs[0]
	}

	var bare string
	if err := json.Unmarshal([]byte(text), &bare); err == nil {
		if strings.HasPrefix(bare, "http://") || strings.HasPrefix(bare, "https://") {
			return bare
		}
	}
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		if !strings.ContainsAny(trimmed, " \n\t") {
			return trimmed
		}
	}

	return absoluteURLPattern.FindString(text)
}

// ExtractMimeType pulls the declared audio MIME type out of a BTS
// manifest, or "" when none is declared.
func ExtractMimeType(text string) string {
	var bts struct {
		MimeType string `json:"mimeType"`
	}
	if err := json.Unmarshal([]byte(text), &bts); err != nil {
		return ""
	}
	return bts.MimeType
}
