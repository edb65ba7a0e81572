/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package history keeps full-resolution snapshots of the mask buffer and moves a cursor
// through them for linear undo/redo. A commit after an undo discards the undone entries.
package history

import (
	"image"
	"sync"
	"time"
)

// Entry is an immutable copy of the mask pixels at one point in time.
type Entry struct {
	Pix    []byte
	Stride int
	Rect   image.Rectangle
	TS     time.Time
}

// Config caps memory use. Zero values mean unlimited.
type Config struct {
	// MaxEntries limits how many snapshots are kept; the oldest are dropped first.
	MaxEntries int
	// MaxBytes is a soft cap on the summed snapshot sizes.
	MaxBytes int
}

// Stack is the undo/redo sequence. The cursor is -1 when empty, otherwise a valid index.
// It is safe for concurrent use.
type Stack struct {
	cfg     Config
	mu      sync.Mutex
	entries []Entry
	cursor  int
	bytes   int
	now     func() time.Time
}

func New(cfg Config) *Stack {
	return &Stack{cfg: cfg, cursor: -1, now: time.Now}
}

// Commit appends a copy of buf right after the cursor, discarding any redo entries first.
func (s *Stack) Commit(buf *image.NRGBA) {
	if buf == nil {
		return
	}
	e := Entry{
		Pix:    append([]byte(nil), buf.Pix...),
		Stride: buf.Stride,
		Rect:   buf.Rect,
		TS:     s.now(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.truncateLocked(s.cursor + 1)
	s.entries = append(s.entries, e)
	s.bytes += len(e.Pix)
	s.cursor = len(s.entries) - 1
	s.enforceCapsLocked()
}

// Undo steps the cursor back and restores that entry into buf.
// It reports false at the oldest entry.
func (s *Stack) Undo(buf *image.NRGBA) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor <= 0 {
		return false
	}
	s.cursor--
	restore(buf, s.entries[s.cursor])
	return true
}

// Redo steps the cursor forward and restores that entry into buf.
// It reports false when there is nothing to redo.
func (s *Stack) Redo(buf *image.NRGBA) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor >= len(s.entries)-1 {
		return false
	}
	s.cursor++
	restore(buf, s.entries[s.cursor])
	return true
}

// Reset replaces the whole sequence. A nil initial empties it.
func (s *Stack) Reset(initial *image.NRGBA) {
	s.mu.Lock()
	s.entries = nil
	s.bytes = 0
	s.cursor = -1
	s.mu.Unlock()
	if initial != nil {
		s.Commit(initial)
	}
}

// Current returns the entry at the cursor.
func (s *Stack) Current() (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor < 0 {
		return Entry{}, false
	}
	return s.entries[s.cursor], true
}

func (s *Stack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Stack) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

func (s *Stack) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor > 0
}

func (s *Stack) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor < len(s.entries)-1
}

// Stats returns current sizes for diagnostics.
func (s *Stack) Stats() (totalBytes int, entries int, cursor int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytes, len(s.entries), s.cursor
}

func (s *Stack) truncateLocked(n int) {
	for i := n; i < len(s.entries); i++ {
		s.bytes -= len(s.entries[i].Pix)
		s.entries[i] = Entry{}
	}
	if n < len(s.entries) {
		s.entries = s.entries[:n]
	}
}

// enforceCapsLocked drops the oldest entries while a cap is exceeded.
// The entry under the cursor always survives.
func (s *Stack) enforceCapsLocked() {
	drop := 0
	bytes := s.bytes
	for drop < s.cursor {
		over := (s.cfg.MaxEntries > 0 && len(s.entries)-drop > s.cfg.MaxEntries) ||
			(s.cfg.MaxBytes > 0 && bytes > s.cfg.MaxBytes)
		if !over {
			break
		}
		bytes -= len(s.entries[drop].Pix)
		drop++
	}
	if drop == 0 {
		return
	}
	s.entries = append([]Entry(nil), s.entries[drop:]...)
	s.bytes = bytes
	s.cursor -= drop
}

// restore copies e into buf. Buffers of another size are left untouched.
func restore(buf *image.NRGBA, e Entry) {
	if buf == nil || buf.Rect != e.Rect || buf.Stride != e.Stride || len(buf.Pix) != len(e.Pix) {
		return
	}
	copy(buf.Pix, e.Pix)
}
