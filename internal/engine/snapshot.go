package engine

import (
	"time"

	"github.com/cybre/birthday-visualizer/internal/dsp"
	"github.com/cybre/birthday-visualizer/internal/effects"
)

// Snapshot is the observable outcome of one tick, suitable for streaming to renderers.
type Snapshot struct {
	Frame     uint64              `json:"frame"`
	Time      time.Time           `json:"time"`
	Running   bool                `json:"running"`
	Smoothed  dsp.BandEnergies    `json:"smoothed"`
	Raw       dsp.BandEnergies    `json:"raw"`
	Beat      bool                `json:"beat"`
	BeatLevel float64             `json:"beatLevel"`
	Threshold float64             `json:"threshold"`
	Targets   int                 `json:"targets"`
	Tasks     int                 `json:"tasks"`
	Spawned   []effects.SpawnKind `json:"spawned,omitempty"`
	Removed   []string            `json:"removed,omitempty"`
	Spectrum  dsp.Frame           `json:"-"`
}
