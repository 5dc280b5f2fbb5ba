// Package storage persists finished SummaryRecords to SQLite.
//
// # Overview
//
// Only terminal batches are ever written here: a Store holds one row per
// completed (or cancelled, with its partial result folded into the final
// summary) batch. In-flight batch state is never persisted; it lives solely
// in the scheduler's in-memory registry for the lifetime of the process.
//
// # Usage
//
//	store, err := storage.NewSQLiteStore("./orchestrator.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	if err := store.Init(); err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := store.Save(record); err != nil {
//	    log.Fatal(err)
//	}
//
//	page, err := store.ListByUser(userID, 50, 0)
//
// # Caching
//
// CachedStore wraps a Store with a TTL-bounded page cache for ListByUser,
// the list endpoint's common access pattern. Any Save or Cleanup clears the
// cache wholesale, since a single write can shift every user's first page.
package storage
