/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package viewport tracks the zoom scale and pan offset of the editor canvas and maps
// pointer positions between screen space and image space.
//
// A Controller is not safe for concurrent use; the editor session serializes access.
package viewport

import "github.com/Gust4dev/VECT/internal/geom"

const (
	MinScale = 0.1
	MaxScale = 5.0
	// ZoomStep is the increment used by ZoomIn and ZoomOut.
	ZoomStep = 0.2
	// WheelSensitivity converts one unit of vertical wheel delta into a scale delta.
	WheelSensitivity = 0.001
)

// Controller holds the viewport state: scale, pan offset and an in-progress drag.
type Controller struct {
	scale   float64
	offset  geom.Pt
	origin  geom.Pt
	panning bool
	anchor  geom.Pt
}

// New returns a controller at scale 1 with no offset.
func New() *Controller { return &Controller{scale: 1} }

func (c *Controller) Scale() float64  { return c.scale }
func (c *Controller) Offset() geom.Pt { return c.offset }
func (c *Controller) Panning() bool   { return c.panning }

// SetOrigin sets the screen position of the image's top-left corner at scale 1 and zero
// offset. UIs use it to centre the image in their container.
func (c *Controller) SetOrigin(p geom.Pt) { c.origin = p }

// HandleWheel applies a vertical wheel delta. Scrolling down (positive delta) zooms out.
func (c *Controller) HandleWheel(deltaY float64) {
	c.setScale(c.scale - deltaY*WheelSensitivity)
}

func (c *Controller) ZoomIn()  { c.setScale(c.scale + ZoomStep) }
func (c *Controller) ZoomOut() { c.setScale(c.scale - ZoomStep) }

// SetScale clamps and applies an absolute scale.
func (c *Controller) SetScale(s float64) { c.setScale(s) }

func (c *Controller) setScale(s float64) {
	if s != s { // NaN keeps the current scale
		return
	}
	c.scale = geom.Clamp(s, MinScale, MaxScale)
}

// StartPan begins a drag. The anchor keeps the image point under the pointer fixed
// while dragging.
func (c *Controller) StartPan(x, y float64) {
	c.panning = true
	c.anchor = geom.Pt{X: x, Y: y}.Sub(c.offset)
}

// DoPan moves the view to follow the pointer. No-op unless a pan is active.
func (c *Controller) DoPan(x, y float64) {
	if !c.panning {
		return
	}
	c.offset = geom.Pt{X: x, Y: y}.Sub(c.anchor)
}

func (c *Controller) StopPan() { c.panning = false }

// ResetView restores scale 1 and a zero offset.
func (c *Controller) ResetView() {
	c.scale = 1
	c.offset = geom.Pt{}
}

// Transform maps image space to screen space.
func (c *Controller) Transform() geom.Affine2D {
	t := c.origin.Add(c.offset)
	return geom.Translate(t.X, t.Y).Mul(geom.Scale(c.scale, c.scale))
}

// ToImage maps a screen point to image space, compensating both pan and scale.
func (c *Controller) ToImage(p geom.Pt) geom.Pt {
	return p.Sub(c.origin).Sub(c.offset).Mul(1 / c.scale)
}

// ToScreen maps an image point to screen space.
func (c *Controller) ToScreen(p geom.Pt) geom.Pt {
	return c.Transform().Apply(p)
}
