/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package mask

import (
	"image"
	"testing"

	"github.com/Gust4dev/VECT/internal/geom"
)

func TestRingLeavesInteriorUncovered(t *testing.T) {
	for _, ellipse := range []bool{false, true} {
		a := image.NewAlpha(image.Rect(0, 0, 40, 40))
		fillPath(a, a.Rect, ring(geom.Rect{X: 5, Y: 5, W: 30, H: 30}, geom.Rect{X: 9, Y: 9, W: 22, H: 22}, ellipse))
		if got := a.AlphaAt(20, 20).A; got != 0 {
			t.Fatalf("ellipse=%v: interior alpha=%d want 0", ellipse, got)
		}
		if got := a.AlphaAt(6, 20).A; got == 0 {
			t.Fatalf("ellipse=%v: band not covered", ellipse)
		}
	}
}

func TestCapsuleCoversSegmentAndCaps(t *testing.T) {
	a := image.NewAlpha(image.Rect(0, 0, 60, 20))
	fillPath(a, a.Rect, capsule(pt(10, 10), pt(50, 10), 4))
	for _, x := range []int{7, 30, 52} {
		if a.AlphaAt(x, 10).A != 0xff {
			t.Fatalf("x=%d not fully covered: %d", x, a.AlphaAt(x, 10).A)
		}
	}
	if a.AlphaAt(30, 16).A != 0 || a.AlphaAt(56, 10).A != 0 {
		t.Fatalf("capsule leaked past its radius")
	}
}

func TestFillPathHonoursClipOffset(t *testing.T) {
	a := image.NewAlpha(image.Rect(0, 0, 40, 40))
	clip := image.Rect(20, 20, 40, 40)
	fillPath(a, clip, outline(geom.Rect{X: 22, Y: 22, W: 10, H: 10}, false))
	if a.AlphaAt(25, 25).A != 0xff || a.AlphaAt(5, 5).A != 0 || a.AlphaAt(35, 35).A != 0 {
		t.Fatalf("rectangle not placed at its image-space position")
	}
}
