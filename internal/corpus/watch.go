package corpus

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "blastbot/pkg/logx"
)

const watchDebounce = 250 * time.Millisecond

// Watch reloads a category whenever its file changes. It watches the parent
// directories rather than the files so editors that replace files on save
// keep working. Watch blocks until ctx is done.
func (c *Corpus) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	byName := map[string]Category{}
	dirs := map[string]struct{}{}
	c.mu.RLock()
	for cat, path := range c.files {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		byName[strings.ToLower(abs)] = cat
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	c.mu.RUnlock()

	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			return err
		}
	}
	c.log.Debug("corpus watcher started", logx.Int("dirs", len(dirs)))

	pending := map[Category]*time.Timer{}
	fire := make(chan Category, 8)
	defer func() {
		for _, t := range pending {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			abs, err := filepath.Abs(ev.Name)
			if err != nil {
				abs = ev.Name
			}
			cat, ok := byName[strings.ToLower(abs)]
			if !ok || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if t := pending[cat]; t != nil {
				t.Reset(watchDebounce)
				continue
			}
			pending[cat] = time.AfterFunc(watchDebounce, func() {
				select {
				case fire <- cat:
				case <-ctx.Done():
				}
			})
		case cat := <-fire:
			delete(pending, cat)
			if err := c.Reload(cat); err != nil {
				c.log.Warn("corpus reload failed", logx.String("category", string(cat)), logx.Err(err))
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			c.log.Warn("corpus watch error", logx.Err(err))
		}
	}
}
