package config

import (
	"slices"

	"github.com/rotisserie/eris"
)

// Preset is a named bundle of responsiveness settings.
type Preset struct {
	Name              string
	AnalyserSmoothing float64
	ThresholdOffset   float64
}

const (
	PresetDefault    = "default"
	PresetIntense    = "intense"
	PresetSmooth     = "smooth"
	PresetResponsive = "responsive"
)

// LookupPreset returns the named preset.
func LookupPreset(name string) (Preset, bool) {
	switch name {
	case PresetDefault:
		return Preset{Name: name, AnalyserSmoothing: 0.8, ThresholdOffset: 0.15}, true
	case PresetIntense:
		return Preset{Name: name, AnalyserSmoothing: 0.6, ThresholdOffset: 0.10}, true
	case PresetSmooth:
		return Preset{Name: name, AnalyserSmoothing: 0.9, ThresholdOffset: 0.20}, true
	case PresetResponsive:
		return Preset{Name: name, AnalyserSmoothing: 0.7, ThresholdOffset: 0.125}, true
	default:
		return Preset{}, false
	}
}

// PresetNames lists the known presets in display order.
func PresetNames() []string {
	return []string{PresetDefault, PresetIntense, PresetSmooth, PresetResponsive}
}

// IsPreset reports whether name is a known preset.
func IsPreset(name string) bool {
	return slices.Contains(PresetNames(), name)
}

// ApplyPreset overwrites the preset-controlled fields.
func (c *Config) ApplyPreset(name string) error {
	p, ok := LookupPreset(name)
	if !ok {
		return eris.Wrapf(ErrInvalidConfiguration, "unknown preset %q", name)
	}
	c.Preset = p.Name
	c.AnalyserSmoothing = p.AnalyserSmoothing
	c.BeatThresholdOffset = p.ThresholdOffset
	return nil
}
