// Package checkpoint records the state of a crawl run next to its cache.
//
// One crawl.checkpoint.json lives in every instance directory. It is written
// when the run starts and again when it ends, and tracks:
//   - the run id, seed file and worker count
//   - seed and fetch counters
//   - the final status and error, if any
//
// Files are replaced atomically (temp file, fsync, rename) so a reader never
// sees a partial record, and carry a version for future compatibility.
package checkpoint
