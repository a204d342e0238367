package main

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"github.com/maruel/natural"
)

// changeSet collects the files touched since the last recompilation.
type changeSet struct {
	lock  sync.Mutex
	paths map[string]struct{}
}

func (s *changeSet) add(path string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.paths == nil {
		s.paths = make(map[string]struct{})
	}
	s.paths[path] = struct{}{}
}

// drain empties the set and returns its content in natural order.
func (s *changeSet) drain() []string {
	s.lock.Lock()
	defer s.lock.Unlock()
	paths := make([]string, 0, len(s.paths))
	for path := range s.paths {
		paths = append(paths, path)
	}
	s.paths = nil
	sort.Slice(paths, func(i, j int) bool {
		return natural.Less(paths[i], paths[j])
	})
	return paths
}

// isSourceChange reports whether event should trigger a recompilation of
// its file.
func (d *Driver) isSourceChange(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}
	root := d.config.Source
	info, err := os.Stat(root)
	if err != nil {
		return false
	}
	if !info.IsDir() {
		return filepath.Clean(event.Name) == filepath.Clean(root)
	}
	return filepath.Ext(event.Name) == sourceExtension && matchesInclude(root, event.Name, d.config.Include)
}

func addWatchedDirs(watcher *fsnotify.Watcher, root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return watcher.Add(filepath.Dir(root))
	}
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}

// watch recompiles changed source files until ctx is done. Bursts of events
// are coalesced into one recompilation.
func (d *Driver) watch(ctx context.Context) error {
	delay, err := d.config.DebounceDuration()
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := addWatchedDirs(watcher, d.config.Source); err != nil {
		return err
	}

	var (
		changes   changeSet
		compiling sync.Mutex
		stopped   bool
	)
	debounced := debounce.New(delay)
	recompile := func() {
		compiling.Lock()
		defer compiling.Unlock()
		if stopped {
			return
		}
		for _, path := range changes.drain() {
			if err := d.compileFiles([]string{path}); err != nil {
				d.logger.Error().Err(err).Msg("recompilation failed")
			}
		}
	}

	// A recompilation still pending or running must not outlive the watch.
	defer func() {
		debounced(func() {})
		compiling.Lock()
		stopped = true
		compiling.Unlock()
	}()

	d.logger.Info().Str("source", d.config.Source).Msg("watching for changes")
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := addWatchedDirs(watcher, event.Name); err != nil {
						d.logger.Warn().Str("dir", event.Name).Err(err).Msg("could not watch directory")
					}
					continue
				}
			}
			if !d.isSourceChange(event) {
				continue
			}
			changes.add(event.Name)
			debounced(recompile)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			d.logger.Error().Err(err).Msg("watcher error")
		}
	}
}
