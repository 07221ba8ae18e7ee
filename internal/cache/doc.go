// Package cache implements the persistent file cache index backed by
// sqlite.
//
// One row maps a (trackId, quality) pair to an audio file under the
// storage root. The index self-heals lazily: a read whose file has been
// deleted out-of-band purges the row and reports a miss, so the next
// trigger simply re-downloads. Reads are point-in-time and
// side-effecting; callers must not assume a prior check remains valid
// after any intervening operation.
package cache
