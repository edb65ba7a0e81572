/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package geom

import "testing"

func TestSpanIsOrderIndependent(t *testing.T) {
	a, b := Pt{60, 40}, Pt{10, 10}
	r1, r2 := Span(a, b), Span(b, a)
	if r1 != r2 {
		t.Fatalf("span differs: %+v vs %+v", r1, r2)
	}
	if r1.X != 10 || r1.Y != 10 || r1.W != 50 || r1.H != 30 {
		t.Fatalf("unexpected span: %+v", r1)
	}
	if !r1.Contains(Pt{35, 25}) || r1.Contains(Pt{61, 25}) {
		t.Fatalf("contains mismatch")
	}
}

func TestAffineInvertRoundTrip(t *testing.T) {
	m := Translate(120, -35).Mul(Scale(2.5, 2.5))
	inv, ok := m.Invert()
	if !ok {
		t.Fatalf("expected invertible")
	}
	p := Pt{13, 27}
	if got := inv.Apply(m.Apply(p)); !got.Eq(p, 1e-9) {
		t.Fatalf("round trip = %+v, want %+v", got, p)
	}
	if _, ok := Scale(0, 1).Invert(); ok {
		t.Fatalf("singular matrix reported invertible")
	}
}

func TestUnionAndInset(t *testing.T) {
	u := Rect{0, 0, 10, 10}.Union(Rect{5, 5, 10, 10})
	if u != (Rect{0, 0, 15, 15}) {
		t.Fatalf("union = %+v", u)
	}
	in := Rect{0, 0, 10, 10}.Inset(2)
	if in != (Rect{2, 2, 6, 6}) {
		t.Fatalf("inset = %+v", in)
	}
	if Clamp(9, 0, 5) != 5 || Clamp(-1, 0, 5) != 0 || Clamp(3, 0, 5) != 3 {
		t.Fatalf("clamp mismatch")
	}
}
