package scene

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/cybre/birthday-visualizer/internal/effects"
)

// phasePerSecond converts engine time into the scene's animation phase, which advances
// 0.01 per frame at 60 fps.
const phasePerSecond = 0.6

// Layout controls how many of each decoration the birthday scene contains.
type Layout struct {
	Balloons  int
	Lights    int
	Hearts    int
	Sparklers int
	Ribbons   int
	Cakes     int
}

// DefaultLayout mirrors the classic party setup.
func DefaultLayout() Layout {
	return Layout{Balloons: 20, Lights: 4, Hearts: 12, Sparklers: 4, Ribbons: 6, Cakes: 1}
}

// Birthday is the decorated party scene and the handles its effect targets drive.
type Birthday struct {
	Scene *Scene

	Title     *Object
	Name      *Object
	Sparkles  *Object
	MagicDust *Object
	Ground    *Object
	Balloons  []*Object
	Lights    []*Object
	Hearts    []*Object
	Sparklers []*Object
	Ribbons   []*Object
	Cakes     []*Object
}

// NewBirthday populates a fresh scene. rng only affects initial placement.
func NewBirthday(layout Layout, rng *rand.Rand) *Birthday {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	s := New()
	b := &Birthday{Scene: s}

	b.Title = s.Add(&Object{Name: "title", Kind: KindText, Position: r3.Vec{Y: 8}, Color: NewHSL(0.9, 1, 0.5)})
	b.Name = s.Add(&Object{Name: "name", Kind: KindText, Position: r3.Vec{Y: 5}, Color: NewHSL(0.12, 1, 0.6), Emissive: 0.4})
	b.Sparkles = s.Add(&Object{Name: "sparkles", Kind: KindParticles, Size: 0.3, Opacity: 0.5})
	b.MagicDust = s.Add(&Object{Name: "magic-dust", Kind: KindParticles, Size: 0.2})
	b.Ground = s.Add(&Object{Name: "ground", Kind: KindGround, Color: NewHSL(0.75, 0.5, 0.2), Metalness: 0.8})

	spread := func(width float64) float64 { return (rng.Float64() - 0.5) * width }

	for i := range layout.Balloons {
		b.Balloons = append(b.Balloons, s.Add(&Object{
			Name:     fmt.Sprintf("balloon.%d", i),
			Kind:     KindBalloon,
			Position: r3.Vec{X: spread(30), Y: rng.Float64()*5 + 8, Z: spread(30)},
			Color:    NewHSL(float64(rng.Intn(6))/6, 1, 0.5),
		}))
	}
	for i := range layout.Lights {
		angle := float64(i) * math.Pi / 2
		b.Lights = append(b.Lights, s.Add(&Object{
			Name:      fmt.Sprintf("light.%d", i),
			Kind:      KindLight,
			Position:  r3.Vec{X: math.Cos(angle) * 15, Y: 5, Z: math.Sin(angle) * 15},
			Color:     NewHSL(float64(i)/float64(layout.Lights), 1, 0.5),
			Intensity: 0.5,
		}))
	}
	for i := range layout.Hearts {
		b.Hearts = append(b.Hearts, s.Add(&Object{
			Name:     fmt.Sprintf("heart.%d", i),
			Kind:     KindHeart,
			Position: r3.Vec{X: spread(20), Y: rng.Float64()*10 + 2, Z: spread(20)},
			Color:    NewHSL(0.95, 1, 0.6),
			Emissive: 0.3,
		}))
	}
	for i := range layout.Sparklers {
		b.Sparklers = append(b.Sparklers, s.Add(&Object{
			Name:     fmt.Sprintf("sparkler.%d", i),
			Kind:     KindSparkler,
			Position: r3.Vec{X: spread(16), Y: 1, Z: spread(16)},
			Size:     0.1,
			Opacity:  0.7,
		}))
	}
	for i := range layout.Ribbons {
		b.Ribbons = append(b.Ribbons, s.Add(&Object{
			Name:     fmt.Sprintf("ribbon.%d", i),
			Kind:     KindRibbon,
			Position: r3.Vec{X: spread(24), Y: rng.Float64()*6 + 4, Z: spread(24)},
			Color:    NewHSL(rng.Float64(), 1, 0.5),
		}))
	}
	for i := range layout.Cakes {
		b.Cakes = append(b.Cakes, s.Add(&Object{
			Name:     fmt.Sprintf("cake.%d", i),
			Kind:     KindCake,
			Position: r3.Vec{X: float64(i) * 4},
		}))
	}

	return b
}

// Register adds every scene target to reg in a fixed order.
func (b *Birthday) Register(reg *effects.Registry) error {
	for _, t := range b.Targets() {
		if err := reg.Register(t); err != nil {
			return eris.Wrap(err, "failed to register birthday scene target")
		}
	}
	return nil
}

// Targets builds the effect targets that map audio signals onto the scene.
func (b *Birthday) Targets() []effects.Target {
	targets := []effects.Target{
		objectTarget("title.scale", b.Title, func(o *Object, sig effects.Signals) {
			o.SetScale(1 + sig.Smoothed.Bass*0.3)
		}),
		objectTarget("title.rotation", b.Title, func(o *Object, sig effects.Signals) {
			o.Rotation.Y += sig.Smoothed.Mid * 0.05
		}),
		objectTarget("title.color", b.Title, func(o *Object, sig effects.Signals) {
			treble := sig.Smoothed.Treble
			o.Color = NewHSL(treble+phase(sig)*0.1, 1, 0.5+treble*0.5)
		}),
		objectTarget("name.scale", b.Name, func(o *Object, sig effects.Signals) {
			o.SetScale(1 + sig.Smoothed.Mid*0.4)
		}),
		objectTarget("name.emissive", b.Name, func(o *Object, sig effects.Signals) {
			o.Emissive = 0.4 + sig.Smoothed.Bass*0.6
		}),
	}

	for i, balloon := range b.Balloons {
		fi := float64(i)
		targets = append(targets, objectTarget(balloon.Name, balloon, func(o *Object, sig effects.Signals) {
			e, t := sig.Smoothed, phase(sig)
			o.Position.Y += math.Sin(t*2+fi) * e.Bass * 0.2
			o.Rotation.Y += e.Treble * 0.1
			o.Rotation.X = math.Sin(t+fi) * e.Mid * 0.5
			o.SetScale(1 + e.Volume*0.3)
		}))
	}
	for _, light := range b.Lights {
		targets = append(targets, objectTarget(light.Name, light, func(o *Object, sig effects.Signals) {
			e := sig.Smoothed
			o.Intensity = 0.5 + e.Bass*1.5
			o.Color = NewHSL((e.Mid+e.Treble)*0.5, 1, 0.5)
		}))
	}

	targets = append(targets,
		objectTarget("sparkles", b.Sparkles, func(o *Object, sig effects.Signals) {
			e := sig.Smoothed
			o.Rotation.Y += e.Mid * 0.02
			o.Rotation.X = math.Sin(phase(sig)) * e.Treble * 0.3
			o.Size = 0.3 + e.Bass*0.5
			o.Opacity = 0.5 + e.Volume*0.5
		}),
		objectTarget("magic-dust", b.MagicDust, func(o *Object, sig effects.Signals) {
			e := sig.Smoothed
			o.Rotation.Y += e.Treble * 0.05
			o.Rotation.Z = math.Sin(phase(sig)*2) * e.Mid * 0.5
			o.SetScale(1 + e.Bass*0.5)
		}),
	)

	for i, heart := range b.Hearts {
		fi := float64(i)
		targets = append(targets, objectTarget(heart.Name, heart, func(o *Object, sig effects.Signals) {
			e := sig.Smoothed
			o.SetScale(0.5 + e.Bass*0.8 + math.Sin(phase(sig)*3+fi*0.5)*e.Mid*0.2)
			o.Rotation.Z += e.Treble * 0.1
			o.Emissive = 0.3 + e.Bass*0.7
		}))
	}
	for _, sparkler := range b.Sparklers {
		targets = append(targets, objectTarget(sparkler.Name, sparkler, func(o *Object, sig effects.Signals) {
			e := sig.Smoothed
			o.Size = 0.1 + e.Treble*0.2
			o.Opacity = 0.7 + e.Volume*0.3
			o.Rotation.Y += e.Mid * 0.03
		}))
	}

	targets = append(targets,
		effects.NewTarget("camera", func(sig effects.Signals) error {
			e := sig.Smoothed
			cam := &b.Scene.Camera
			cam.AutoRotateSpeed = 0.5 + e.Mid*2
			cam.Position.Z += (20 - e.Bass*3 - cam.Position.Z) * 0.05
			return nil
		}),
		objectTarget("ground", b.Ground, func(o *Object, sig effects.Signals) {
			e := sig.Smoothed
			o.Color = NewHSL(e.Bass+e.Mid+phase(sig)*0.05, 0.5, 0.2+e.Volume*0.1)
			o.Metalness = 0.8 + e.Treble*0.2
		}),
	)

	for _, ribbon := range b.Ribbons {
		targets = append(targets, objectTarget(ribbon.Name, ribbon, func(o *Object, sig effects.Signals) {
			e := sig.Smoothed
			o.Rotation.X += e.Mid * 0.02
			o.Rotation.Y += e.Treble * 0.03
			o.Color = NewHSL(e.Volume+phase(sig)*0.1, 1, 0.5)
		}))
	}
	for _, cake := range b.Cakes {
		targets = append(targets, objectTarget(cake.Name, cake, func(o *Object, sig effects.Signals) {
			e := sig.Smoothed
			o.Rotation.Y += e.Mid * 0.1
			o.Position.Y = math.Sin(phase(sig)*5) * e.Bass * 0.5
		}))
	}

	return targets
}

// Rules returns the spawn rules of the birthday scene: beat reactions first, then the
// energy-driven ambient spawns.
func Rules() []effects.Rule {
	return []effects.Rule{
		{
			Name: "beat-flash",
			When: func(sig effects.Signals) bool { return sig.Beat },
			Request: func(sig effects.Signals) effects.SpawnRequest {
				return effects.SpawnRequest{Kind: effects.SpawnFlash, Intensity: sig.Raw.Bass * 0.3}
			},
		},
		{
			Name: "confetti-burst",
			When: func(sig effects.Signals) bool { return sig.Beat && sig.Raw.Bass > 0.6 },
			Request: func(sig effects.Signals) effects.SpawnRequest {
				return effects.SpawnRequest{
					Kind:      effects.SpawnConfetti,
					Intensity: sig.Raw.Bass,
					Count:     int(math.Floor(sig.Raw.Bass * 20)),
				}
			},
		},
		{
			Name: "camera-shake",
			When: func(sig effects.Signals) bool { return sig.Beat },
			Request: func(sig effects.Signals) effects.SpawnRequest {
				return effects.SpawnRequest{Kind: effects.SpawnCameraShake, Intensity: sig.Raw.Bass * 0.5}
			},
		},
		{
			Name:        "music-particle",
			When:        func(sig effects.Signals) bool { return sig.Smoothed.Volume > 0.7 },
			Probability: 0.1,
			Request: func(sig effects.Signals) effects.SpawnRequest {
				return effects.SpawnRequest{Kind: effects.SpawnMusicParticle, Intensity: sig.Smoothed.Bass, Count: 1}
			},
		},
		{
			Name:        "fireworks",
			When:        func(sig effects.Signals) bool { return sig.Smoothed.Treble > 0.8 },
			Probability: 0.02,
			Request: func(sig effects.Signals) effects.SpawnRequest {
				return effects.SpawnRequest{Kind: effects.SpawnFireworks, Intensity: sig.Smoothed.Treble, Count: fireworkParticles}
			},
		},
	}
}

func phase(sig effects.Signals) float64 {
	return sig.Seconds() * phasePerSecond
}

func objectTarget(name string, obj *Object, apply func(*Object, effects.Signals)) effects.Target {
	return effects.NewTarget(name, func(sig effects.Signals) error {
		if obj == nil || obj.Destroyed() {
			return eris.Wrapf(effects.ErrTargetInvalid, "%s has no live object", name)
		}
		apply(obj, sig)
		return nil
	})
}
