// Package watcher reports changes to the annotation database made by other
// processes, so an open engine can reconcile with the store.
//
// fsnotify watches the database directory; when it cannot be used (network
// mounts, some container volumes) the watcher polls file stats instead.
// Events for the database file and its WAL/journal sidecars are debounced
// into batches keyed by the database path.
//
//	w, err := watcher.New(dbPath, watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//	go func() { _ = w.Start(ctx) }()
//	watcher.SyncOnChange(ctx, w, session, func(res annotation.SyncResult, err error) { ... })
package watcher
