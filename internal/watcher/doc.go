// Package watcher rebuilds the application when its sources change.
//
// The Watcher subscribes to file system notifications for the application
// directories, collapses bursts of events (an editor saving several files,
// a git checkout) into one rebuild after a quiet period, and runs rebuilds
// one at a time on its own goroutine.
//
// Example usage:
//
//	w, err := watcher.New([]string{appDir}, []string{buildRoot}, func() error {
//		_, err := builder.Run(cfg)
//		return err
//	})
//	if err != nil {
//		return err
//	}
//	if err := w.Start(); err != nil {
//		return err
//	}
//	defer w.Stop()
package watcher
