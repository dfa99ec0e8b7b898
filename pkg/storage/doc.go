// Package storage persists raw API responses in a sharded directory tree.
//
// Every target id owns one leaf directory, <d1>/<d2>/<d3>/<id>, where the
// three shard levels are the id's last digits, least-significant first.
// This keeps every directory level at ten entries no matter how many users
// are crawled. List-scoped records nest under <id>/lists/<name>/.
//
// Each stored page produces two gzip files named
//
//	<kind>.<format>.headers.<stamp>.<NNN>.gz
//	<kind>.<format>.data.<stamp>.<NNN>.gz
//
// where stamp is the UTC second and NNN a tie-break counter, so sorting a
// directory listing yields fetch order. Files are written to a temporary
// name and renamed, which makes each one atomic.
//
// The ETL side reads the tree back with WalkTargetIDs, ListFilesWithPrefix
// and ReadRecord:
//
//	for id, dir := range cache.WalkTargetIDs() {
//	    names, _ := cache.ListFilesWithPrefix(id, "", "friends.json.data")
//	    for _, name := range names {
//	        body, err := storage.ReadRecord(filepath.Join(dir, name))
//	        ...
//	    }
//	}
package storage
