// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package driver

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/symtree/internal/debounce"
	"github.com/google/symtree/internal/plugin"
)

// watcher calls reload after a binary changes on disk. Linkers write a
// binary in many steps, so the changes are debounced.
type watcher struct {
	fw   *fsnotify.Watcher
	file string
	d    *debounce.Debouncer
	ui   plugin.UI
	done chan struct{}
}

// watchBinary starts watching file. The directory of file is watched
// rather than the file itself so that the binary can be replaced by a
// rename. A nil clock selects the wall clock.
func watchBinary(file string, quiescence time.Duration, clock debounce.Clock, reload func(), ui plugin.UI) (*watcher, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("could not watch %s: %v", file, err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("could not watch %s: %v", file, err)
	}
	w := &watcher{
		fw:   fw,
		file: abs,
		d:    debounce.New(quiescence, clock, reload),
		ui:   ui,
		done: make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *watcher) run() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.file {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				w.d.Signal()
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.ui.PrintErr("watching ", w.file, ": ", err)
		}
	}
}

// Close stops watching and cancels a pending reload.
func (w *watcher) Close() error {
	err := w.fw.Close()
	<-w.done
	w.d.Stop()
	return err
}
