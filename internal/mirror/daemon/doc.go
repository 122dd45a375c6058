// Package daemon keeps the mirror current while the process runs.
//
// # Architecture
//
//   - FileWatcher: fsnotify on the parent directories of a fixed set of
//     globs, with a per-file debounce
//   - Daemon: startup full sync, the watcher, and a periodic full resync
//
// # Startup Ordering
//
// Start runs a full sync to completion before the watcher is started, so
// the first debounced callback always lands on a consistent baseline. The
// periodic resync is armed last.
//
//	d, err := daemon.New(syncer, daemon.Config{
//	    Root:  root,
//	    Globs: daemon.Globs(sync.DefaultFiles, sync.DefaultNotesGlob),
//	})
//	if err != nil {
//	    return err
//	}
//	return d.Run(ctx)
//
// # Debouncing
//
// Each path has its own timer. A new event for a path stops the old timer
// and arms a new one with a fresh generation; a timer only fires if its
// generation is still current. N writes inside the window produce one
// callback, measured from the last write.
//
// # Concurrency
//
// Watcher callbacks and the periodic resync run independently. Two triggers
// on the same file are not serialized; the store's single connection
// orders the writes and the last one wins.
//
// # Error Handling
//
// Callback errors and panics are logged by the watcher and never stop it.
// Per-file sync failures are recorded by the syncer, not returned.
package daemon
