package store

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mwaldstein/qipu/internal/qipuerrors"
)

// quiescenceWindow batches a burst of filesystem events into a single
// incremental repair call instead of repairing on every write.
const quiescenceWindow = 500 * time.Millisecond

// Watch watches the notes directory and triggers an incremental Repair
// after a short quiescence window following a burst of changes. It
// returns once ctx is canceled or the watcher fails to start. This is a
// convenience over the baseline: callers may always call Repair
// explicitly instead.
func (s *Store) Watch(ctx context.Context) error {
	if !s.Config.AutoIndex.Enabled || s.Config.AutoIndex.Strategy == "quick" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return qipuerrors.Wrap(qipuerrors.Io, err, "start notes directory watcher")
	}
	defer watcher.Close()

	if err := watcher.Add(s.NotesPath); err != nil {
		return qipuerrors.Wrap(qipuerrors.Io, err, "watch notes directory").WithToken(s.NotesPath)
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if timer == nil {
				timer = time.NewTimer(quiescenceWindow)
			} else {
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(quiescenceWindow)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return qipuerrors.Wrap(qipuerrors.Io, err, "notes directory watcher")
		case <-timerChan(timer):
			if _, err := s.Repair(); err != nil {
				return err
			}
			timer = nil
		}
	}
}

// timerChan returns t's channel, or a nil channel (which blocks forever
// in a select) when t hasn't been started yet.
func timerChan(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}
