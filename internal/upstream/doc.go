// Package upstream provides the multi-instance failover client for
// upstream media catalog services.
//
// Upstream instances are interchangeable mirrors of the same catalog,
// supplied per request by the trigger caller. The Client rotates through
// them, treating rate limits, auth hiccups, and server errors as reasons
// to move on to the next instance rather than to fail the request.
//
// # Failover
//
//	client := upstream.NewClient(logger)
//	body, err := client.FetchWithRetry(ctx, instances, "/track/?id=123&quality=LOSSLESS")
//	if errors.Is(err, upstream.ErrInstanceExhausted) {
//	    // every instance failed; err wraps the last failure
//	}
//
// # Payload normalization
//
// Track lookups come back in one of two shapes depending on the
// instance's vintage. GetTrack normalizes both into a LookupResult and
// rejects anything else with ErrMalformedResponse — there is no silent
// best-guess path.
//
// # Manifests
//
// Manifests arrive base64-encoded and are either DASH/MPD XML or a
// small JSON/plain-text descriptor carrying a direct URL. DecodeManifest,
// IsDashManifest, and ExtractStreamURL classify and unpack them.
package upstream
