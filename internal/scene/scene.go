package scene

import (
	"slices"

	"gonum.org/v1/gonum/spatial/r3"
)

// Kind classifies scene objects.
type Kind string

const (
	KindText      Kind = "text"
	KindBalloon   Kind = "balloon"
	KindLight     Kind = "light"
	KindParticles Kind = "particles"
	KindHeart     Kind = "heart"
	KindSparkler  Kind = "sparkler"
	KindGround    Kind = "ground"
	KindRibbon    Kind = "ribbon"
	KindCake      Kind = "cake"

	KindMusicParticle Kind = "music-particle"
	KindFirework      Kind = "firework"
	KindConfetti      Kind = "confetti"
	KindFlash         Kind = "flash"
)

// Object is the renderer-facing state of one visual element.
type Object struct {
	ID       int
	Name     string
	Kind     Kind
	Position r3.Vec
	Rotation r3.Vec
	Scale    r3.Vec
	Velocity r3.Vec

	Color     HSL
	Emissive  float64
	Opacity   float64
	Size      float64
	Intensity float64
	Metalness float64

	destroyed bool
}

// Destroyed reports whether the object has been removed from its scene.
func (o *Object) Destroyed() bool {
	return o.destroyed
}

// SetScale sets a uniform scale on all three axes.
func (o *Object) SetScale(s float64) {
	o.Scale = r3.Vec{X: s, Y: s, Z: s}
}

// Camera is the orbiting scene camera.
type Camera struct {
	Position        r3.Vec
	AutoRotateSpeed float64
}

// Scene is an in-memory model of the birthday scene. It is owned by the frame loop and
// must not be mutated from other goroutines.
type Scene struct {
	Camera Camera

	objects []*Object
	nextID  int
}

// New returns an empty scene with the camera at its resting position.
func New() *Scene {
	return &Scene{
		Camera: Camera{Position: r3.Vec{Y: 5, Z: 20}, AutoRotateSpeed: 0.5},
	}
}

// Add places obj in the scene, assigning it an ID. Objects without a scale get unit scale
// and objects without opacity are fully opaque.
func (s *Scene) Add(obj *Object) *Object {
	s.nextID++
	obj.ID = s.nextID
	obj.destroyed = false
	if obj.Scale == (r3.Vec{}) {
		obj.SetScale(1)
	}
	if obj.Opacity == 0 {
		obj.Opacity = 1
	}
	s.objects = append(s.objects, obj)
	return obj
}

// Remove destroys obj and reports whether it was present.
func (s *Scene) Remove(obj *Object) bool {
	idx := slices.Index(s.objects, obj)
	if idx < 0 {
		return false
	}
	obj.destroyed = true
	s.objects = slices.Delete(s.objects, idx, idx+1)
	return true
}

// Find returns the first object with the given name, or nil.
func (s *Scene) Find(name string) *Object {
	for _, o := range s.objects {
		if o.Name == name {
			return o
		}
	}
	return nil
}

// Objects returns the live objects in insertion order.
func (s *Scene) Objects() []*Object {
	return slices.Clone(s.objects)
}

// Len returns the number of live objects.
func (s *Scene) Len() int {
	return len(s.objects)
}

// Count returns the number of live objects of the given kind.
func (s *Scene) Count(kind Kind) int {
	n := 0
	for _, o := range s.objects {
		if o.Kind == kind {
			n++
		}
	}
	return n
}

// ClearTransient removes every spawned effect object and returns how many were removed.
func (s *Scene) ClearTransient() int {
	n := 0
	for _, o := range slices.Clone(s.objects) {
		switch o.Kind {
		case KindMusicParticle, KindFirework, KindConfetti, KindFlash:
			s.Remove(o)
			n++
		}
	}
	return n
}
