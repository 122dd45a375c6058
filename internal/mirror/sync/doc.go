// Package sync mirrors markdown documents into the SQLite store.
//
// A Syncer maps each file under its root to a document type by base name,
// parses it and writes the records through a Store. Dated notes
// (YYYY-MM-DD.md) are recognized when they match the configured notes glob.
//
// Every attempt appends exactly one sync_log row with the outcome (ok,
// error or skipped). A failing file never aborts a full sync: SyncAll
// collects the messages in Result.Errors and moves on.
//
// Basic usage:
//
//	database, err := db.Open("mirror.db")
//	if err != nil {
//	    return err
//	}
//	defer database.Close()
//	if err := database.InitSchema(); err != nil {
//	    return err
//	}
//
//	s := sync.New(database, sync.Options{Root: "/home/me/notes"})
//	result, err := s.SyncAll(ctx)
package sync
