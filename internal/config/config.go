package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/cybre/birthday-visualizer/internal/beat"
	"github.com/cybre/birthday-visualizer/internal/dsp"
	"github.com/cybre/birthday-visualizer/internal/utils"
)

// ErrInvalidConfiguration is returned for any configuration the engine cannot run with.
var ErrInvalidConfiguration = eris.New("invalid configuration")

// EnvPrefix prefixes every environment override, e.g. PARTYVIZ_BEAT_HOLD=80ms.
const EnvPrefix = "PARTYVIZ_"

// Config is the full set of tunables for the visual mapping engine.
type Config struct {
	FFTWindowSize           int           `yaml:"fft_window_size"`
	SmoothingWeights        dsp.Weights   `yaml:"smoothing_weights"`
	BeatDecayFactor         float64       `yaml:"beat_decay_factor"`
	BeatFloor               float64       `yaml:"beat_floor"`
	BeatHold                time.Duration `yaml:"beat_hold"`
	BeatThresholdMultiplier float64       `yaml:"beat_threshold_multiplier"`
	BeatThresholdOffset     float64       `yaml:"beat_threshold_offset"`

	// AnalyserSmoothing is the temporal smoothing applied by the PCM analyser before bins
	// are quantised, in [0,1).
	AnalyserSmoothing float64 `yaml:"analyser_smoothing"`
	FrameRate         int     `yaml:"frame_rate"`
	Preset            string  `yaml:"preset,omitempty"`
	// Seed drives the spawn-rule dice. Zero picks a time-based seed.
	Seed int64 `yaml:"seed"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		FFTWindowSize:           256,
		SmoothingWeights:        dsp.DefaultWeights(),
		BeatDecayFactor:         beat.DefaultDecayFactor,
		BeatFloor:               beat.DefaultFloor,
		BeatHold:                beat.DefaultHold,
		BeatThresholdMultiplier: beat.DefaultThresholdMultiplier,
		BeatThresholdOffset:     beat.DefaultThresholdOffset,
		AnalyserSmoothing:       dsp.DefaultSmoothingTimeConstant,
		FrameRate:               60,
	}
}

// Load builds a configuration from the defaults, the named preset, the YAML file and
// environment overrides, in that order, and validates the result. Explicit keys win over
// the preset. An empty path skips the file.
func Load(path string) (Config, error) {
	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return Config{}, eris.Wrapf(err, "failed to read config file %s", path)
		}
	}

	preset, err := presetFor(data, os.LookupEnv)
	if err != nil {
		return Config{}, eris.Wrapf(ErrInvalidConfiguration, "failed to parse %s: %v", path, err)
	}

	cfg := Default()
	if preset != "" {
		if err := cfg.ApplyPreset(preset); err != nil {
			return Config{}, err
		}
	}
	if data != nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, eris.Wrapf(ErrInvalidConfiguration, "failed to parse %s: %v", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	cfg.Preset = preset

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// presetFor names the preset a load starts from. The environment beats the file.
func presetFor(data []byte, lookup func(string) (string, bool)) (string, error) {
	if val, ok := lookup(EnvPrefix + "PRESET"); ok {
		return strings.TrimSpace(val), nil
	}
	var head struct {
		Preset string `yaml:"preset"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return "", err
	}
	return strings.TrimSpace(head.Preset), nil
}

// ApplyEnv overrides fields from PARTYVIZ_* variables read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	floats := map[string]*float64{
		"SMOOTHING_BASS":            &c.SmoothingWeights.Bass,
		"SMOOTHING_MID":             &c.SmoothingWeights.Mid,
		"SMOOTHING_TREBLE":          &c.SmoothingWeights.Treble,
		"SMOOTHING_VOLUME":          &c.SmoothingWeights.Volume,
		"BEAT_DECAY_FACTOR":         &c.BeatDecayFactor,
		"BEAT_FLOOR":                &c.BeatFloor,
		"BEAT_THRESHOLD_MULTIPLIER": &c.BeatThresholdMultiplier,
		"BEAT_THRESHOLD_OFFSET":     &c.BeatThresholdOffset,
		"ANALYSER_SMOOTHING":        &c.AnalyserSmoothing,
	}
	for key, dst := range floats {
		val, ok := lookup(EnvPrefix + key)
		if !ok {
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return eris.Wrapf(ErrInvalidConfiguration, "%s%s=%q: %v", EnvPrefix, key, val, err)
		}
		*dst = f
	}

	ints := map[string]*int{
		"FFT_WINDOW_SIZE": &c.FFTWindowSize,
		"FRAME_RATE":      &c.FrameRate,
	}
	for key, dst := range ints {
		val, ok := lookup(EnvPrefix + key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return eris.Wrapf(ErrInvalidConfiguration, "%s%s=%q: %v", EnvPrefix, key, val, err)
		}
		*dst = n
	}

	if val, ok := lookup(EnvPrefix + "BEAT_HOLD"); ok {
		d, err := time.ParseDuration(strings.TrimSpace(val))
		if err != nil {
			return eris.Wrapf(ErrInvalidConfiguration, "%sBEAT_HOLD=%q: %v", EnvPrefix, val, err)
		}
		c.BeatHold = d
	}
	if val, ok := lookup(EnvPrefix + "PRESET"); ok {
		c.Preset = strings.TrimSpace(val)
	}
	if val, ok := lookup(EnvPrefix + "SEED"); ok {
		seed, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil {
			return eris.Wrapf(ErrInvalidConfiguration, "%sSEED=%q: %v", EnvPrefix, val, err)
		}
		c.Seed = seed
	}
	return nil
}

// Validate rejects values the engine cannot run with.
func (c Config) Validate() error {
	if !utils.IsPowerOfTwo(c.FFTWindowSize) {
		return eris.Wrapf(ErrInvalidConfiguration, "fft_window_size %d is not a power of two", c.FFTWindowSize)
	}

	weights := []struct {
		band string
		w    float64
	}{
		{"bass", c.SmoothingWeights.Bass},
		{"mid", c.SmoothingWeights.Mid},
		{"treble", c.SmoothingWeights.Treble},
		{"volume", c.SmoothingWeights.Volume},
	}
	for _, w := range weights {
		if w.w <= 0 || w.w > 1 {
			return eris.Wrapf(ErrInvalidConfiguration, "smoothing_weights.%s %.3f must be in (0,1]", w.band, w.w)
		}
	}

	switch {
	case c.BeatDecayFactor <= 0 || c.BeatDecayFactor >= 1:
		return eris.Wrapf(ErrInvalidConfiguration, "beat_decay_factor %.3f must be in (0,1)", c.BeatDecayFactor)
	case c.BeatFloor <= 0 || c.BeatFloor >= 1:
		return eris.Wrapf(ErrInvalidConfiguration, "beat_floor %.3f must be in (0,1)", c.BeatFloor)
	case c.BeatHold <= 0:
		return eris.Wrapf(ErrInvalidConfiguration, "beat_hold %s must be positive", c.BeatHold)
	case c.BeatThresholdMultiplier <= 0:
		return eris.Wrapf(ErrInvalidConfiguration, "beat_threshold_multiplier %.3f must be positive", c.BeatThresholdMultiplier)
	case c.BeatThresholdOffset <= 0:
		return eris.Wrapf(ErrInvalidConfiguration, "beat_threshold_offset %.3f must be positive", c.BeatThresholdOffset)
	case c.AnalyserSmoothing < 0 || c.AnalyserSmoothing >= 1:
		return eris.Wrapf(ErrInvalidConfiguration, "analyser_smoothing %.3f must be in [0,1)", c.AnalyserSmoothing)
	case c.FrameRate <= 0 || c.FrameRate > 240:
		return eris.Wrapf(ErrInvalidConfiguration, "frame_rate %d must be in (0,240]", c.FrameRate)
	}

	if c.Preset != "" {
		if _, ok := LookupPreset(c.Preset); !ok {
			return eris.Wrapf(ErrInvalidConfiguration, "unknown preset %q", c.Preset)
		}
	}
	return nil
}

// BeatOptions converts the beat_* keys into detector options.
func (c Config) BeatOptions() beat.Options {
	return beat.Options{
		DecayFactor:         c.BeatDecayFactor,
		Floor:               c.BeatFloor,
		Hold:                c.BeatHold,
		ThresholdMultiplier: c.BeatThresholdMultiplier,
		ThresholdOffset:     c.BeatThresholdOffset,
	}
}

// FrameInterval is the tick period implied by FrameRate.
func (c Config) FrameInterval() time.Duration {
	if c.FrameRate <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(c.FrameRate)
}
