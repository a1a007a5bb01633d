// Copyright 2025 The Where Is Teemo Authors
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

package teemo

import "sync"

// ModeBus distributes the stealth mode to relay sessions. It is a
// watch cell: a single writer (the orchestrator) publishes values,
// and any number of watchers read the latest one. Intermediate
// values may be coalesced; a watcher is only guaranteed to observe
// the most recent write.
type ModeBus struct {
	mu       sync.Mutex
	mode     Mode
	watchers map[*ModeWatcher]struct{}
}

// NewModeBus returns a bus holding the initial mode.
func NewModeBus(initial Mode) *ModeBus {
	return &ModeBus{
		mode:     initial,
		watchers: make(map[*ModeWatcher]struct{}),
	}
}

// Mode returns the current value.
func (b *ModeBus) Mode() Mode {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mode
}

// Set publishes a new mode and signals all watchers. Signals are
// non-blocking; a watcher that has not drained its previous signal
// simply observes the newer value when it next looks.
func (b *ModeBus) Set(m Mode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mode == m {
		return
	}
	b.mode = m
	for w := range b.watchers {
		select {
		case w.ch <- struct{}{}:
		default:
		}
	}
}

// Subscribe registers a new watcher. The caller must Close it.
func (b *ModeBus) Subscribe() *ModeWatcher {
	w := &ModeWatcher{bus: b, ch: make(chan struct{}, 1)}
	b.mu.Lock()
	b.watchers[w] = struct{}{}
	b.mu.Unlock()
	return w
}

// ModeWatcher is one subscriber's view of the bus. Reads are cheap
// (a mutex acquisition on the shared cell) and always return the
// latest published value.
type ModeWatcher struct {
	bus *ModeBus
	ch  chan struct{}
}

// Mode returns the latest published mode.
func (w *ModeWatcher) Mode() Mode { return w.bus.Mode() }

// Changed returns a channel that receives a signal after the value
// changes. Sessions that only sample between frames can ignore it.
func (w *ModeWatcher) Changed() <-chan struct{} { return w.ch }

// Close unregisters the watcher.
func (w *ModeWatcher) Close() {
	w.bus.mu.Lock()
	delete(w.bus.watchers, w)
	w.bus.mu.Unlock()
}
