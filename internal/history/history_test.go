/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package history

import (
	"bytes"
	"image"
	"testing"
	"time"
)

func newBuf() *image.NRGBA { return image.NewNRGBA(image.Rect(0, 0, 4, 4)) }

// paint sets the first pixel's alpha to v so commits are distinguishable.
func paint(b *image.NRGBA, v byte) { b.Pix[3] = v }

func TestUndoBackToInitialThenNoop(t *testing.T) {
	buf := newBuf()
	s := New(Config{})
	s.Reset(buf)
	const n = 6
	for i := 1; i <= n; i++ {
		paint(buf, byte(i*10))
		s.Commit(buf)
	}
	if s.Len() != n+1 || s.Cursor() != n {
		t.Fatalf("len=%d cursor=%d", s.Len(), s.Cursor())
	}
	for i := 0; i < n; i++ {
		if !s.Undo(buf) {
			t.Fatalf("undo %d failed", i)
		}
	}
	if !bytes.Equal(buf.Pix, newBuf().Pix) {
		t.Fatalf("buffer not back to blank after %d undos", n)
	}
	if s.Undo(buf) {
		t.Fatalf("undo past the first entry must report false")
	}
}

func TestCommitAfterUndoDropsFuture(t *testing.T) {
	buf := newBuf()
	s := New(Config{})
	s.Reset(buf)
	for i := 1; i <= 4; i++ {
		paint(buf, byte(i))
		s.Commit(buf)
	}
	s.Undo(buf)
	s.Undo(buf)
	paint(buf, 99)
	s.Commit(buf)
	if s.Redo(buf) {
		t.Fatalf("redo must fail after a commit discarded the future")
	}
	if s.Len() != 4 {
		t.Fatalf("len = %d, want 4", s.Len())
	}
	if !s.Undo(buf) || !s.Redo(buf) {
		t.Fatalf("undo+redo should work again after the new commit")
	}
	if buf.Pix[3] != 99 {
		t.Fatalf("redo restored %d, want 99", buf.Pix[3])
	}
}

func TestCommitUndoRedoRoundTrip(t *testing.T) {
	buf := newBuf()
	s := New(Config{})
	s.Reset(buf)
	for i := range buf.Pix {
		buf.Pix[i] = byte(i)
	}
	want := append([]byte(nil), buf.Pix...)
	s.Commit(buf)
	if !s.Undo(buf) {
		t.Fatal("undo failed")
	}
	if !s.Redo(buf) {
		t.Fatal("redo failed")
	}
	if !bytes.Equal(buf.Pix, want) {
		t.Fatalf("round trip changed pixels")
	}
}

func TestSnapshotsAreCopies(t *testing.T) {
	buf := newBuf()
	s := New(Config{})
	s.Reset(buf)
	paint(buf, 5)
	s.Commit(buf)
	paint(buf, 200) // uncommitted live edit
	e, ok := s.Current()
	if !ok || e.Pix[3] != 5 {
		t.Fatalf("snapshot aliased the live buffer: %+v", e.Pix[:4])
	}
}

func TestResetEmptyAndBoundaries(t *testing.T) {
	s := New(Config{})
	buf := newBuf()
	if s.Cursor() != -1 || s.Len() != 0 {
		t.Fatalf("new stack should be empty")
	}
	if s.Undo(buf) || s.Redo(buf) {
		t.Fatalf("undo/redo on empty stack must be false")
	}
	s.Commit(buf)
	s.Reset(nil)
	if s.Cursor() != -1 || s.Len() != 0 || s.CanUndo() || s.CanRedo() {
		t.Fatalf("reset(nil) did not empty the stack")
	}
	s.Reset(buf)
	if s.Cursor() != 0 || s.Len() != 1 {
		t.Fatalf("reset(initial) cursor=%d len=%d", s.Cursor(), s.Len())
	}
}

func TestCapsKeepCursorEntry(t *testing.T) {
	buf := newBuf() // 64 bytes per snapshot
	s := New(Config{MaxEntries: 3})
	s.now = func() time.Time { return time.Unix(0, 0) }
	for i := 0; i < 10; i++ {
		paint(buf, byte(i))
		s.Commit(buf)
	}
	if s.Len() != 3 || s.Cursor() != 2 {
		t.Fatalf("entries cap: len=%d cursor=%d", s.Len(), s.Cursor())
	}
	e, _ := s.Current()
	if e.Pix[3] != 9 {
		t.Fatalf("cursor entry should be the newest, got %d", e.Pix[3])
	}

	s2 := New(Config{MaxBytes: 100})
	for i := 0; i < 5; i++ {
		s2.Commit(buf)
	}
	total, n, cur := s2.Stats()
	if n != 1 || cur != 0 || total != len(buf.Pix) {
		t.Fatalf("bytes cap: total=%d n=%d cursor=%d", total, n, cur)
	}
}
