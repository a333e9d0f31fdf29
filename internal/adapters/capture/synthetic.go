package capture

import (
	"context"
	"image"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/okian/vitalcam/internal/domain/model"
	"github.com/okian/vitalcam/internal/domain/session"
)

// Default synthetic finger-on-lens parameters.
const (
	DefaultSyntheticBPM       = 72
	DefaultSyntheticAmplitude = 24.0
	DefaultSyntheticNoise     = 1.0
	defaultSyntheticWidth     = 32
	defaultSyntheticHeight    = 24
	syntheticRed              = 190
	syntheticGreen            = 70
	syntheticBlue             = 45
)

// Generator renders frames of a finger pressed on an illuminated lens with
// a pulse in the green channel. Timestamps advance by one frame period per
// call, so output is independent of wall-clock scheduling.
type Generator struct {
	fps       float64
	bpm       float64
	amplitude float64
	noise     float64
	width     int
	height    int
	phase     float64
	origin    time.Time
	n         int
	rng       *rand.Rand
}

// NewGenerator creates a generator starting at origin.
func NewGenerator(origin time.Time, fps, bpm, amplitude, noise float64, seed int64) *Generator {
	return &Generator{
		fps:       fps,
		bpm:       bpm,
		amplitude: amplitude,
		noise:     noise,
		width:     defaultSyntheticWidth,
		height:    defaultSyntheticHeight,
		origin:    origin,
		rng:       rand.New(rand.NewSource(seed)), //nolint:gosec // synthetic signal
	}
}

// pulse is a PPG-like beat shape over one cycle: systolic peak plus a
// smaller diastolic wave.
func pulse(t float64) float64 {
	return gauss(t, 0.25, 0.08) + 0.35*gauss(t, 0.55, 0.07)
}

func gauss(x, mu, sigma float64) float64 {
	z := (x - mu) / sigma
	return math.Exp(-0.5 * z * z)
}

// Next returns the next frame.
func (g *Generator) Next() model.Frame {
	g.phase += g.bpm / 60 / g.fps
	if g.phase >= 1 {
		g.phase -= math.Floor(g.phase)
	}
	green := syntheticGreen + g.amplitude*pulse(g.phase) + g.noise*g.rng.NormFloat64()

	img := image.NewRGBA(image.Rect(0, 0, g.width, g.height))
	c := [4]uint8{syntheticRed, clampByte(green), syntheticBlue, 255}
	for i := 0; i < len(img.Pix); i += 4 {
		copy(img.Pix[i:i+4], c[:])
	}

	at := g.origin.Add(time.Duration(float64(g.n) * float64(time.Second) / g.fps))
	g.n++
	return model.Frame{Image: img, At: at}
}

func clampByte(v float64) uint8 {
	return uint8(math.Max(0, math.Min(255, math.Round(v))))
}

// SyntheticSource emits generated frames from a goroutine until stopped.
type SyntheticSource struct {
	frames   chan model.Frame
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func startSynthetic(gen *Generator, tick time.Duration, limit int) *SyntheticSource {
	s := &SyntheticSource{
		frames: make(chan model.Frame, 1),
		done:   make(chan struct{}),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		for sent := 0; limit <= 0 || sent < limit; sent++ {
			select {
			case <-s.done:
				return
			case <-ticker.C:
			}
			select {
			case s.frames <- gen.Next():
			case <-s.done:
				return
			}
		}
		close(s.frames)
	}()
	return s
}

// Frames implements session.Source.
func (s *SyntheticSource) Frames() <-chan model.Frame { return s.frames }

// Stop implements session.Source and waits for the generator to exit.
func (s *SyntheticSource) Stop() error {
	s.stopOnce.Do(func() { close(s.done) })
	s.wg.Wait()
	return nil
}

// SyntheticOption configures a SyntheticOpener.
type SyntheticOption func(*SyntheticOpener)

// WithBPM sets the simulated heart rate.
func WithBPM(bpm float64) SyntheticOption {
	return func(o *SyntheticOpener) {
		if bpm > 0 {
			o.bpm = bpm
		}
	}
}

// WithNoise sets the standard deviation of the green channel noise.
func WithNoise(noise float64) SyntheticOption {
	return func(o *SyntheticOpener) {
		if noise >= 0 {
			o.noise = noise
		}
	}
}

// WithTick overrides the emission interval. By default frames are emitted
// at the session frame rate.
func WithTick(d time.Duration) SyntheticOption {
	return func(o *SyntheticOpener) {
		if d > 0 {
			o.tick = d
		}
	}
}

// WithFrameLimit ends the feed after n frames.
func WithFrameLimit(n int) SyntheticOption {
	return func(o *SyntheticOpener) {
		o.limit = n
	}
}

// WithSeed sets the noise seed.
func WithSeed(seed int64) SyntheticOption {
	return func(o *SyntheticOpener) {
		o.seed = seed
	}
}

// SyntheticOpener opens generated sources. It stands in for a camera when
// no device is present.
type SyntheticOpener struct {
	bpm       float64
	amplitude float64
	noise     float64
	tick      time.Duration
	limit     int
	seed      int64
	now       func() time.Time
}

// NewSyntheticOpener creates a synthetic opener.
func NewSyntheticOpener(opts ...SyntheticOption) *SyntheticOpener {
	o := &SyntheticOpener{
		bpm:       DefaultSyntheticBPM,
		amplitude: DefaultSyntheticAmplitude,
		noise:     DefaultSyntheticNoise,
		seed:      1,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Open implements session.Opener.
func (o *SyntheticOpener) Open(_ context.Context, req session.OpenRequest) (session.Source, error) {
	fps := req.FrameRate
	if fps <= 0 {
		fps = session.DefaultFrameRate
	}
	tick := o.tick
	if tick <= 0 {
		tick = time.Second / time.Duration(fps)
	}
	gen := NewGenerator(o.now(), float64(fps), o.bpm, o.amplitude, o.noise, o.seed)
	return startSynthetic(gen, tick, o.limit), nil
}

// Method implements session.Opener.
func (o *SyntheticOpener) Method() string { return model.MethodSimulation }
