package scene

import (
	"log/slog"
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/cybre/birthday-visualizer/internal/effects"
)

const (
	fireworkParticles = 100
	confettiStagger   = 10 * time.Millisecond
	flashFade         = 300 * time.Millisecond
	shakeLeg          = 100 * time.Millisecond
	particleLifetime  = 2 * time.Second
	gravity           = 9.8

	// Fireworks are integrated in 60 fps frame units.
	framesPerSecond = 60
)

// Spawner turns spawn requests into transient scene objects and the tasks that animate
// and eventually remove them.
type Spawner struct {
	scene  *Scene
	rng    *rand.Rand
	logger *slog.Logger
}

// NewSpawner binds a spawner to a scene.
func NewSpawner(scene *Scene, rng *rand.Rand, logger *slog.Logger) *Spawner {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Spawner{scene: scene, rng: rng, logger: logger}
}

// Spawn implements effects.Spawner.
func (s *Spawner) Spawn(req effects.SpawnRequest) []effects.Task {
	switch req.Kind {
	case effects.SpawnMusicParticle:
		return []effects.Task{s.musicParticle(req)}
	case effects.SpawnFireworks:
		origin := r3.Vec{X: s.spread(30), Y: 15, Z: s.spread(30)}
		return []effects.Task{s.firework(origin, req.Count)}
	case effects.SpawnConfetti:
		if req.Count <= 0 {
			return nil
		}
		return []effects.Task{s.confetti(req.Count)}
	case effects.SpawnCameraShake:
		return []effects.Task{s.cameraShake(req.Intensity)}
	case effects.SpawnFlash:
		return []effects.Task{s.flash(req.Intensity)}
	default:
		s.logger.Debug("ignoring unknown spawn request", slog.String("kind", string(req.Kind)))
		return nil
	}
}

func (s *Spawner) spread(width float64) float64 {
	return (s.rng.Float64() - 0.5) * width
}

func (s *Spawner) musicParticle(req effects.SpawnRequest) effects.Task {
	obj := s.scene.Add(&Object{
		Kind:     KindMusicParticle,
		Position: r3.Vec{X: s.spread(40), Y: s.rng.Float64() * 20, Z: s.spread(40)},
		Size:     0.1 + req.Intensity*0.2,
		Color:    NewHSL(s.rng.Float64(), 1, 0.5),
	})
	startY := obj.Position.Y
	rise := particleLifetime + time.Duration(req.Signals.Smoothed.Mid*float64(2*time.Second))

	var elapsed time.Duration
	return effects.TaskFunc(func(dt time.Duration) bool {
		if obj.Destroyed() {
			return false
		}
		elapsed += dt
		if elapsed >= particleLifetime {
			s.scene.Remove(obj)
			return false
		}
		life := progress(elapsed, particleLifetime)
		obj.Position.Y = startY + 10*easeOutQuad(progress(elapsed, rise))
		obj.Opacity = 1 - life
		obj.SetScale(1 - easeInQuad(life))
		return true
	})
}

func (s *Spawner) firework(origin r3.Vec, count int) effects.Task {
	if count <= 0 {
		count = fireworkParticles
	}
	particles := make([]*Object, 0, count)
	for range count {
		theta := s.rng.Float64() * 2 * math.Pi
		phi := s.rng.Float64() * math.Pi
		speed := 5 + s.rng.Float64()*5
		particles = append(particles, s.scene.Add(&Object{
			Kind:     KindFirework,
			Position: origin,
			Velocity: r3.Vec{
				X: math.Sin(phi) * math.Cos(theta) * speed,
				Y: math.Cos(phi) * speed,
				Z: math.Sin(phi) * math.Sin(theta) * speed,
			},
			Size:     0.1,
			Color:    NewHSL(s.rng.Float64(), 1, 0.5),
			Emissive: 2,
		}))
	}

	return effects.TaskFunc(func(dt time.Duration) bool {
		frames := dt.Seconds() * framesPerSecond
		opacity := 0.0
		for _, p := range particles {
			p.Position = r3.Add(p.Position, r3.Scale(0.1*frames, p.Velocity))
			p.Velocity.Y -= 0.2 * frames
			p.Opacity -= 0.02 * frames
			opacity = math.Max(opacity, p.Opacity)
		}
		if opacity > 0 {
			return true
		}
		for _, p := range particles {
			s.scene.Remove(p)
		}
		return false
	})
}

func (s *Spawner) confetti(count int) effects.Task {
	var (
		elapsed time.Duration
		spawned int
		balls   []*Object
	)
	return effects.TaskFunc(func(dt time.Duration) bool {
		elapsed += dt
		for spawned < count && time.Duration(spawned)*confettiStagger <= elapsed {
			balls = append(balls, s.scene.Add(&Object{
				Kind:     KindConfetti,
				Position: r3.Vec{X: s.spread(10), Y: 15, Z: s.spread(10)},
				Size:     0.2,
				Color:    NewHSL(s.rng.Float64(), 1, 0.5),
			}))
			spawned++
		}

		live := balls[:0]
		for _, b := range balls {
			b.Velocity.Y -= gravity * dt.Seconds()
			b.Position = r3.Add(b.Position, r3.Scale(dt.Seconds(), b.Velocity))
			if b.Position.Y <= 0 {
				s.scene.Remove(b)
				continue
			}
			live = append(live, b)
		}
		balls = live
		return spawned < count || len(balls) > 0
	})
}

func (s *Spawner) cameraShake(amplitude float64) effects.Task {
	cam := &s.scene.Camera
	offset := r3.Vec{X: s.spread(amplitude), Y: s.spread(amplitude), Z: s.spread(amplitude)}
	var (
		elapsed time.Duration
		applied r3.Vec
	)
	return effects.TaskFunc(func(dt time.Duration) bool {
		elapsed += dt
		var f float64
		if elapsed < shakeLeg {
			f = easeInOutQuad(progress(elapsed, shakeLeg))
		} else {
			f = 1 - easeInOutQuad(progress(elapsed-shakeLeg, shakeLeg))
		}
		want := r3.Scale(f, offset)
		cam.Position = r3.Add(cam.Position, r3.Sub(want, applied))
		applied = want
		return elapsed < 2*shakeLeg
	})
}

func (s *Spawner) flash(alpha float64) effects.Task {
	obj := s.scene.Add(&Object{Kind: KindFlash, Intensity: alpha, Color: NewHSL(0, 0, 1)})
	var elapsed time.Duration
	return effects.TaskFunc(func(dt time.Duration) bool {
		elapsed += dt
		obj.Opacity = 1 - progress(elapsed, flashFade)
		if elapsed >= flashFade {
			s.scene.Remove(obj)
			return false
		}
		return true
	})
}

func progress(elapsed, total time.Duration) float64 {
	if total <= 0 {
		return 1
	}
	return math.Min(1, float64(elapsed)/float64(total))
}

func easeOutQuad(p float64) float64 {
	return 1 - (1-p)*(1-p)
}

func easeInQuad(p float64) float64 {
	return p * p
}

func easeInOutQuad(p float64) float64 {
	if p < 0.5 {
		return 2 * p * p
	}
	return 1 - math.Pow(-2*p+2, 2)/2
}
