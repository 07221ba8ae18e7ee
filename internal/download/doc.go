// Package download coordinates track downloads end to end.
//
// A Coordinator checks the persistent cache, deduplicates concurrent
// requests for the same (track, quality) key through an in-flight
// ledger, resolves the upstream manifest into audio bytes, and stores
// the result under a template-derived path. Cover art and ID3 tagging
// run as best-effort follow-ups after the audio file is on disk.
package download
