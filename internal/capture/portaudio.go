package capture

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/satindergrewal/cueline/internal/audio"
)

// DefaultStallTimeout is how long a PortAudio stream may go without a
// callback before it is reported as lost.
const DefaultStallTimeout = 2 * time.Second

// PortAudio captures from the host's default input device.
type PortAudio struct {
	SampleRate      float64
	FramesPerBuffer int
	StallTimeout    time.Duration

	guard exclusive
}

// NewPortAudio creates a PortAudio device capturing mono at sampleRate.
func NewPortAudio(sampleRate int) *PortAudio {
	return &PortAudio{
		SampleRate:      float64(sampleRate),
		FramesPerBuffer: sampleRate * int(audio.FrameDuration/time.Millisecond) / 1000,
		StallTimeout:    DefaultStallTimeout,
	}
}

func (p *PortAudio) Name() string { return "portaudio" }

// Acquire opens and starts a callback stream on the default input device.
func (p *PortAudio) Acquire(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !p.guard.claim() {
		return nil, Unavailable(p.Name(), errBusy)
	}

	if err := portaudio.Initialize(); err != nil {
		p.guard.release()
		return nil, p.classify(err)
	}
	if _, err := portaudio.DefaultInputDevice(); err != nil {
		portaudio.Terminate()
		p.guard.release()
		return nil, p.classify(err)
	}

	s := &paStream{
		owner: p,
		ring:  audio.NewRing(max(p.FramesPerBuffer, audio.WindowSize) * 4),
		stall: p.StallTimeout,
	}
	s.lastAt.Store(time.Now().UnixNano())

	st, err := portaudio.OpenDefaultStream(1, 0, p.SampleRate, p.FramesPerBuffer, s.process)
	if err != nil {
		portaudio.Terminate()
		p.guard.release()
		return nil, p.classify(err)
	}
	if err := st.Start(); err != nil {
		st.Close()
		portaudio.Terminate()
		p.guard.release()
		return nil, p.classify(err)
	}
	s.st = st
	return s, nil
}

func (p *PortAudio) classify(err error) error {
	switch {
	case errors.Is(err, portaudio.DeviceUnavailable),
		errors.Is(err, portaudio.InvalidDevice),
		errors.Is(err, portaudio.InvalidChannelCount):
		return Unavailable(p.Name(), err)
	case errors.As(err, new(portaudio.UnanticipatedHostError)):
		// CoreAudio and WASAPI report a blocked microphone this way.
		return Denied(p.Name(), err)
	default:
		return Unavailable(p.Name(), err)
	}
}

type paStream struct {
	owner  *PortAudio
	st     *portaudio.Stream
	ring   *audio.Ring
	stall  time.Duration
	lastAt atomic.Int64

	closeOnce sync.Once
}

// process runs on the PortAudio callback thread.
func (s *paStream) process(in []float32) {
	s.ring.Write(in)
	s.lastAt.Store(time.Now().UnixNano())
}

func (s *paStream) Window(dst []float32) (int, error) {
	if s.stall > 0 {
		if idle := time.Since(time.Unix(0, s.lastAt.Load())); idle > s.stall {
			return 0, Lost(s.owner.Name(), errors.New("no audio for "+idle.Truncate(time.Millisecond).String()))
		}
	}
	return s.ring.Latest(dst), nil
}

func (s *paStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if stopErr := s.st.Stop(); stopErr != nil {
			err = stopErr
		}
		if closeErr := s.st.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		portaudio.Terminate()
		s.owner.guard.release()
	})
	return err
}

// InputDevice describes a PortAudio device that can record.
type InputDevice struct {
	Index      int
	Name       string
	Channels   int
	SampleRate float64
	IsDefault  bool
}

// ListInputs returns the PortAudio devices with at least one input channel.
func ListInputs() ([]InputDevice, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	var defaultName string
	if def, err := portaudio.DefaultInputDevice(); err == nil {
		defaultName = def.Name
	}

	var inputs []InputDevice
	for i, d := range devices {
		if d.MaxInputChannels < 1 {
			continue
		}
		inputs = append(inputs, InputDevice{
			Index:      i,
			Name:       d.Name,
			Channels:   d.MaxInputChannels,
			SampleRate: d.DefaultSampleRate,
			IsDefault:  d.Name == defaultName,
		})
	}
	return inputs, nil
}
