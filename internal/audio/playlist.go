package audio

import (
	"math/rand"
	"sync"

	"github.com/rotisserie/eris"
)

var (
	// ErrEmptyPlaylist is returned when a playlist has no tracks.
	ErrEmptyPlaylist = eris.New("playlist is empty")
	// ErrEmptyTrack is returned for a file that decodes to no audio.
	ErrEmptyTrack = eris.New("track has no audio")
)

// trackColors are the accent colours cycled through by track position.
func trackColors() []string {
	return []string{"#ff6b6b", "#4ecdc4", "#ffe66d"}
}

// Playlist is an ordered, wrap-around list of tracks.
type Playlist struct {
	mu     sync.Mutex
	tracks []*Track
	index  int
	rng    *rand.Rand
}

// NewPlaylist builds a playlist, assigning accent colours to tracks that have none.
func NewPlaylist(tracks []*Track, rng *rand.Rand) (*Playlist, error) {
	if len(tracks) == 0 {
		return nil, ErrEmptyPlaylist
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	colors := trackColors()
	for i, t := range tracks {
		if t.Color == "" {
			t.Color = colors[i%len(colors)]
		}
	}
	return &Playlist{tracks: tracks, rng: rng}, nil
}

// LoadPlaylist decodes every path in order. A file without audio is rejected, since it
// would end the moment it started.
func LoadPlaylist(paths []string, rng *rand.Rand) (*Playlist, error) {
	tracks := make([]*Track, 0, len(paths))
	for _, p := range paths {
		t, err := LoadTrack(p)
		if err != nil {
			return nil, err
		}
		if err := requireAudio(t); err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}
	return NewPlaylist(tracks, rng)
}

func requireAudio(t *Track) error {
	if t.Duration() <= 0 {
		return eris.Wrapf(ErrEmptyTrack, "%s", t.Path)
	}
	return nil
}

// Len returns the number of tracks.
func (p *Playlist) Len() int {
	return len(p.tracks)
}

// Index returns the position of the current track.
func (p *Playlist) Index() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.index
}

// Current returns the current track.
func (p *Playlist) Current() *Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tracks[p.index]
}

// Next advances to the following track, wrapping to the first.
func (p *Playlist) Next() *Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.index = (p.index + 1) % len(p.tracks)
	return p.tracks[p.index]
}

// Previous steps back one track, wrapping to the last.
func (p *Playlist) Previous() *Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.index = (p.index - 1 + len(p.tracks)) % len(p.tracks)
	return p.tracks[p.index]
}

// Shuffle jumps to a random track, which may be the current one.
func (p *Playlist) Shuffle() *Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.index = p.rng.Intn(len(p.tracks))
	return p.tracks[p.index]
}

// Select jumps to the track at idx.
func (p *Playlist) Select(idx int) (*Track, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if idx < 0 || idx >= len(p.tracks) {
		return nil, eris.Errorf("track %d out of range [0,%d)", idx, len(p.tracks))
	}
	p.index = idx
	return p.tracks[idx], nil
}
