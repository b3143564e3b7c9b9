package scene

import (
	"io"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/cybre/birthday-visualizer/internal/dsp"
	"github.com/cybre/birthday-visualizer/internal/effects"
)

const frame = time.Second / 60

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestHSLConversion(t *testing.T) {
	cases := []struct {
		name    string
		in      HSL
		r, g, b uint8
	}{
		{"red", NewHSL(0, 1, 0.5), 255, 0, 0},
		{"white", NewHSL(0.3, 1, 1), 255, 255, 255},
		{"black", NewHSL(0.3, 1, 0), 0, 0, 0},
		{"blue", NewHSL(2.0/3, 1, 0.5), 0, 0, 255},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, g, b := tc.in.RGB()
			assert.InDelta(t, tc.r, r, 1)
			assert.InDelta(t, tc.g, g, 1)
			assert.InDelta(t, tc.b, b, 1)
		})
	}
	assert.Equal(t, "#ff0000", NewHSL(1, 1, 0.5).Hex(), "hue wraps")
}

func TestSceneAddRemove(t *testing.T) {
	s := New()
	obj := s.Add(&Object{Name: "cake.0", Kind: KindCake})
	assert.Equal(t, r3.Vec{X: 1, Y: 1, Z: 1}, obj.Scale)
	assert.Equal(t, 1.0, obj.Opacity)
	assert.Same(t, obj, s.Find("cake.0"))

	assert.True(t, s.Remove(obj))
	assert.True(t, obj.Destroyed())
	assert.False(t, s.Remove(obj))
	assert.Nil(t, s.Find("cake.0"))
}

func TestBirthdayTargetsRegisterOnce(t *testing.T) {
	b := NewBirthday(DefaultLayout(), rand.New(rand.NewSource(1)))
	reg := effects.NewRegistry()
	require.NoError(t, b.Register(reg))

	l := DefaultLayout()
	want := 5 + 2 + 2 + l.Balloons + l.Lights + l.Hearts + l.Sparklers + l.Ribbons + l.Cakes
	assert.Equal(t, want, reg.Len())
	assert.Error(t, b.Register(reg), "names are unique per registry")
}

func TestBirthdayMappings(t *testing.T) {
	b := NewBirthday(Layout{Balloons: 1, Lights: 1, Hearts: 1, Sparklers: 1, Ribbons: 1, Cakes: 1}, nil)
	reg := effects.NewRegistry()
	require.NoError(t, b.Register(reg))

	sig := effects.Signals{Smoothed: dsp.BandEnergies{Bass: 1, Mid: 0.5, Treble: 0.25, Volume: 1}}
	report := effects.NewDispatcher(reg, nil, nil, nil, quietLogger).Dispatch(sig)
	assert.Zero(t, report.Failed)
	assert.Empty(t, report.Removed)

	assert.InDelta(t, 1.3, b.Title.Scale.X, 1e-12)
	assert.InDelta(t, 0.025, b.Title.Rotation.Y, 1e-12)
	assert.InDelta(t, 0.25, b.Title.Color.H, 1e-12)
	assert.InDelta(t, 0.625, b.Title.Color.L, 1e-12)
	assert.InDelta(t, 1.2, b.Name.Scale.X, 1e-12)
	assert.InDelta(t, 1.0, b.Name.Emissive, 1e-12)
	assert.InDelta(t, 1.3, b.Balloons[0].Scale.Y, 1e-12)
	assert.InDelta(t, 2.0, b.Lights[0].Intensity, 1e-12)
	assert.InDelta(t, 0.375, b.Lights[0].Color.H, 1e-12)
	assert.InDelta(t, 0.8, b.Sparkles.Size, 1e-12)
	assert.InDelta(t, 1.0, b.Sparkles.Opacity, 1e-12)
	assert.InDelta(t, 1.5, b.MagicDust.Scale.Z, 1e-12)
	assert.InDelta(t, 1.3, b.Hearts[0].Scale.X, 1e-12)
	assert.InDelta(t, 1.0, b.Hearts[0].Emissive, 1e-12)
	assert.InDelta(t, 0.15, b.Sparklers[0].Size, 1e-12)
	assert.InDelta(t, 1.5, b.Scene.Camera.AutoRotateSpeed, 1e-12)
	assert.InDelta(t, 20-0.15, b.Scene.Camera.Position.Z, 1e-12)
	assert.InDelta(t, 0.5, b.Ground.Color.H, 1e-12)
	assert.InDelta(t, 0.3, b.Ground.Color.L, 1e-12)
	assert.InDelta(t, 0.85, b.Ground.Metalness, 1e-12)
	assert.InDelta(t, 0.05, b.Cakes[0].Rotation.Y, 1e-12)
}

func TestDispatchIsDeterministic(t *testing.T) {
	sig := effects.Signals{
		Smoothed: dsp.BandEnergies{Bass: 0.7, Mid: 0.4, Treble: 0.9, Volume: 0.8},
		Raw:      dsp.BandEnergies{Bass: 0.9, Mid: 0.5, Treble: 0.95, Volume: 0.85},
		Beat:     true,
		Elapsed:  3 * time.Second,
		Delta:    frame,
	}

	run := func() (*Birthday, effects.Report) {
		b := NewBirthday(DefaultLayout(), rand.New(rand.NewSource(11)))
		reg := effects.NewRegistry()
		require.NoError(t, b.Register(reg))
		spawner := NewSpawner(b.Scene, rand.New(rand.NewSource(12)), quietLogger)
		d := effects.NewDispatcher(reg, spawner, effects.NewTaskRunner(quietLogger), rand.New(rand.NewSource(13)), quietLogger)
		for _, r := range Rules() {
			d.AddRule(r)
		}
		return b, d.Dispatch(sig)
	}

	first, firstReport := run()
	second, secondReport := run()

	assert.Equal(t, firstReport, secondReport)
	assert.Equal(t, first.Scene.Camera, second.Scene.Camera)
	assert.Equal(t, first.Scene.Objects(), second.Scene.Objects())
}

func TestStatelessTargetsRepeatWithoutPhaseAdvance(t *testing.T) {
	b := NewBirthday(Layout{Balloons: 1, Hearts: 1}, nil)
	reg := effects.NewRegistry()
	require.NoError(t, b.Register(reg))
	d := effects.NewDispatcher(reg, nil, nil, nil, quietLogger)

	sig := effects.Signals{Smoothed: dsp.BandEnergies{Bass: 0.6, Mid: 0.3, Treble: 0.2, Volume: 0.5}, Elapsed: time.Second}
	d.Dispatch(sig)
	title, name, balloon, heart := *b.Title, *b.Name, *b.Balloons[0], *b.Hearts[0]

	d.Dispatch(sig)
	assert.Equal(t, title.Scale, b.Title.Scale)
	assert.Equal(t, title.Color, b.Title.Color)
	assert.Equal(t, name, *b.Name)
	assert.Equal(t, balloon.Scale, b.Balloons[0].Scale)
	assert.Equal(t, heart.Scale, b.Hearts[0].Scale)
	assert.Equal(t, heart.Emissive, b.Hearts[0].Emissive)
}

func TestDestroyedObjectInvalidatesTarget(t *testing.T) {
	b := NewBirthday(Layout{Cakes: 1}, nil)
	reg := effects.NewRegistry()
	require.NoError(t, b.Register(reg))

	b.Scene.Remove(b.Cakes[0])
	report := effects.NewDispatcher(reg, nil, nil, nil, quietLogger).Dispatch(effects.Signals{})
	assert.Equal(t, []string{"cake.0"}, report.Removed)
	assert.NotContains(t, reg.Names(), "cake.0")
}

func TestRulesOnBeat(t *testing.T) {
	b := NewBirthday(Layout{}, nil)
	spawner := NewSpawner(b.Scene, rand.New(rand.NewSource(3)), quietLogger)
	tasks := effects.NewTaskRunner(quietLogger)
	d := effects.NewDispatcher(effects.NewRegistry(), spawner, tasks, rand.New(rand.NewSource(3)), quietLogger)
	for _, r := range Rules() {
		d.AddRule(r)
	}

	report := d.Dispatch(effects.Signals{Beat: true, Raw: dsp.BandEnergies{Bass: 0.8}})
	assert.Equal(t, []effects.SpawnKind{effects.SpawnFlash, effects.SpawnConfetti, effects.SpawnCameraShake}, report.Spawned)
	assert.Equal(t, 3, tasks.Len())

	assert.Equal(t, 1, b.Scene.Count(KindFlash))
	assert.InDelta(t, 0.24, findKind(b.Scene, KindFlash).Intensity, 1e-12)

	quiet := d.Dispatch(effects.Signals{Beat: true, Raw: dsp.BandEnergies{Bass: 0.5}})
	assert.NotContains(t, quiet.Spawned, effects.SpawnConfetti)
}

func TestConfettiStaggeredThenCleared(t *testing.T) {
	s := New()
	task := NewSpawner(s, nil, quietLogger).Spawn(effects.SpawnRequest{Kind: effects.SpawnConfetti, Count: 16})
	require.Len(t, task, 1)

	assert.True(t, task[0].Step(0))
	assert.Equal(t, 1, s.Count(KindConfetti))
	assert.True(t, task[0].Step(25*time.Millisecond))
	assert.Equal(t, 3, s.Count(KindConfetti))

	steps := 0
	for task[0].Step(frame) {
		steps++
		require.Less(t, steps, 600)
	}
	assert.Zero(t, s.Count(KindConfetti))
}

func TestFlashFadesOut(t *testing.T) {
	s := New()
	tasks := NewSpawner(s, nil, quietLogger).Spawn(effects.SpawnRequest{Kind: effects.SpawnFlash, Intensity: 0.3})
	require.Len(t, tasks, 1)

	assert.True(t, tasks[0].Step(150*time.Millisecond))
	assert.InDelta(t, 0.5, findKind(s, KindFlash).Opacity, 1e-9)
	assert.False(t, tasks[0].Step(150*time.Millisecond))
	assert.Zero(t, s.Len())
}

func TestCameraShakeReturnsHome(t *testing.T) {
	s := New()
	home := s.Camera.Position
	tasks := NewSpawner(s, rand.New(rand.NewSource(9)), quietLogger).Spawn(effects.SpawnRequest{Kind: effects.SpawnCameraShake, Intensity: 0.5})
	require.Len(t, tasks, 1)

	moved := false
	for tasks[0].Step(frame) {
		if s.Camera.Position != home {
			moved = true
		}
	}
	assert.True(t, moved)
	assert.InDelta(t, home.X, s.Camera.Position.X, 1e-9)
	assert.InDelta(t, home.Y, s.Camera.Position.Y, 1e-9)
	assert.InDelta(t, home.Z, s.Camera.Position.Z, 1e-9)
}

func TestMusicParticleRisesAndFades(t *testing.T) {
	s := New()
	tasks := NewSpawner(s, nil, quietLogger).Spawn(effects.SpawnRequest{Kind: effects.SpawnMusicParticle, Intensity: 0.5})
	require.Len(t, tasks, 1)
	p := findKind(s, KindMusicParticle)
	startY := p.Position.Y
	assert.InDelta(t, 0.2, p.Size, 1e-12)

	assert.True(t, tasks[0].Step(time.Second))
	assert.Greater(t, p.Position.Y, startY)
	assert.InDelta(t, 0.5, p.Opacity, 1e-9)
	assert.InDelta(t, 0.75, p.Scale.X, 1e-9)

	assert.False(t, tasks[0].Step(time.Second))
	assert.True(t, p.Destroyed())
}

func TestFireworkBurnsOut(t *testing.T) {
	s := New()
	tasks := NewSpawner(s, nil, quietLogger).Spawn(effects.SpawnRequest{Kind: effects.SpawnFireworks})
	require.Len(t, tasks, 1)
	assert.Equal(t, fireworkParticles, s.Count(KindFirework))

	steps := 0
	for tasks[0].Step(frame) {
		steps++
	}
	assert.Equal(t, 50, steps, "opacity drops 0.02 per frame")
	assert.Zero(t, s.Count(KindFirework))
}

func TestClearTransient(t *testing.T) {
	b := NewBirthday(Layout{Balloons: 2}, nil)
	before := b.Scene.Len()
	sp := NewSpawner(b.Scene, nil, quietLogger)
	sp.Spawn(effects.SpawnRequest{Kind: effects.SpawnFlash})
	sp.Spawn(effects.SpawnRequest{Kind: effects.SpawnFireworks, Count: 5})

	assert.Equal(t, 6, b.Scene.ClearTransient())
	assert.Equal(t, before, b.Scene.Len())
}

func findKind(s *Scene, kind Kind) *Object {
	for _, o := range s.Objects() {
		if o.Kind == kind {
			return o
		}
	}
	return nil
}
