package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/pion/webrtc/v4"
	"gopkg.in/hraban/opus.v2"

	"github.com/satindergrewal/cueline/internal/audio"
)

// maxOpusFrame is 120ms at 48kHz, the longest frame Opus can carry.
const maxOpusFrame = 5760

// WebRTC receives the presenter's microphone from a browser peer. The browser
// posts an SDP offer carrying an Opus audio track; decoded samples feed the
// stream handed out by Acquire.
type WebRTC struct {
	logger *slog.Logger
	config webrtc.Configuration
	guard  exclusive

	mu      sync.Mutex
	pc      *webrtc.PeerConnection
	gen     uint64
	ring    *audio.Ring
	live    bool
	changed chan struct{}

	// failure is the last capture error the browser reported. It holds until
	// a peer negotiated after the report starts delivering audio.
	failure   error
	failedGen uint64
}

// NewWebRTC creates a WebRTC capture device. No ICE servers are configured;
// the presenter's browser is expected on the same network.
func NewWebRTC(logger *slog.Logger) *WebRTC {
	return &WebRTC{
		logger:  logger,
		config:  webrtc.Configuration{},
		ring:    audio.NewRing(audio.FrameSize * 4),
		changed: make(chan struct{}),
	}
}

func (w *WebRTC) Name() string { return "webrtc" }

// notifyLocked wakes every pending Acquire. Must be called with mu held.
func (w *WebRTC) notifyLocked() {
	close(w.changed)
	w.changed = make(chan struct{})
}

// Acquire waits until a browser peer is delivering audio, the browser reports
// that capture failed, or ctx is done. A failure reported before the call
// fails it at once.
func (w *WebRTC) Acquire(ctx context.Context) (Stream, error) {
	if !w.guard.claim() {
		return nil, Unavailable(w.Name(), errBusy)
	}

	for {
		w.mu.Lock()
		if err := w.failure; err != nil {
			w.mu.Unlock()
			w.guard.release()
			return nil, err
		}
		if w.live {
			s := &rtcStream{owner: w, gen: w.gen, ring: w.ring}
			w.mu.Unlock()
			return s, nil
		}
		ch := w.changed
		w.mu.Unlock()

		select {
		case <-ctx.Done():
			w.guard.release()
			return nil, ctx.Err()
		case <-ch:
		}
	}
}

// Reject records a browser-side capture failure, typically Denied when
// getUserMedia was refused or Lost when the track was revoked. Pending and
// later Acquire calls fail with err, and an open stream reports it, until a
// new peer delivers audio.
func (w *WebRTC) Reject(err error) {
	w.mu.Lock()
	w.failure = err
	w.failedGen = w.gen
	w.live = false
	w.notifyLocked()
	w.mu.Unlock()
	w.logger.Warn("browser capture rejected", "error", err)
}

// Connected reports whether a peer is currently delivering audio.
func (w *WebRTC) Connected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.live
}

// Answer negotiates a new peer connection for the given offer, replacing any
// previous peer, and returns the local description once ICE gathering is done.
func (w *WebRTC) Answer(ctx context.Context, offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	pc, err := webrtc.NewPeerConnection(w.config)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	w.mu.Lock()
	old := w.pc
	w.gen++
	gen := w.gen
	w.pc = pc
	w.live = false
	w.ring = audio.NewRing(audio.FrameSize * 4)
	ring := w.ring
	w.notifyLocked()
	w.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			w.logger.Debug("close previous peer", "error", err)
		}
	}

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if track.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		if !strings.EqualFold(track.Codec().MimeType, webrtc.MimeTypeOpus) {
			w.logger.Warn("ignoring non-opus audio track", "codec", track.Codec().MimeType)
			return
		}
		w.logger.Info("browser microphone track received", "id", track.ID())
		go w.readTrack(gen, ring, track)
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		w.logger.Debug("capture peer state", "state", s.String())
		switch s {
		case webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateClosed,
			webrtc.PeerConnectionStateDisconnected:
			w.lose(gen)
		}
	})

	fail := func(what string, err error) (*webrtc.SessionDescription, error) {
		w.lose(gen)
		pc.Close()
		return nil, fmt.Errorf("%s: %w", what, err)
	}

	if err := pc.SetRemoteDescription(offer); err != nil {
		return fail("set remote description", err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return fail("create answer", err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		return fail("set local description", err)
	}

	select {
	case <-gatherComplete:
	case <-ctx.Done():
		return fail("ice gathering", ctx.Err())
	}
	return pc.LocalDescription(), nil
}

// readTrack decodes RTP Opus payloads into the ring until the track ends.
func (w *WebRTC) readTrack(gen uint64, ring *audio.Ring, track *webrtc.TrackRemote) {
	dec, err := opus.NewDecoder(audio.SampleRate, audio.Channels)
	if err != nil {
		w.logger.Error("opus decoder", "error", err)
		w.lose(gen)
		return
	}
	pcm := make([]float32, maxOpusFrame*audio.Channels)

	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			w.logger.Info("browser microphone track ended", "error", err)
			w.lose(gen)
			return
		}
		if len(pkt.Payload) == 0 {
			continue
		}
		n, err := dec.DecodeFloat32(pkt.Payload, pcm)
		if err != nil {
			w.logger.Debug("opus decode", "error", err)
			continue
		}
		ring.Write(pcm[:n*audio.Channels])
		w.markLive(gen)
	}
}

func (w *WebRTC) markLive(gen uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.gen || w.live {
		return
	}
	if w.failure != nil && w.failedGen == gen {
		// the peer the browser reported as failed
		return
	}
	w.failure = nil
	w.live = true
	w.notifyLocked()
}

func (w *WebRTC) lose(gen uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.gen || !w.live {
		return
	}
	w.live = false
	w.notifyLocked()
}

// release drops the peer that backs stream generation gen.
func (w *WebRTC) release(gen uint64) {
	w.mu.Lock()
	var pc *webrtc.PeerConnection
	if gen == w.gen {
		pc = w.pc
		w.pc = nil
		w.live = false
		w.gen++
		w.notifyLocked()
	}
	w.mu.Unlock()

	if pc != nil {
		if err := pc.Close(); err != nil {
			w.logger.Debug("close capture peer", "error", err)
		}
	}
	w.guard.release()
}

// Close drops any connected peer.
func (w *WebRTC) Close() error {
	w.mu.Lock()
	pc := w.pc
	w.pc = nil
	w.live = false
	w.gen++
	w.notifyLocked()
	w.mu.Unlock()
	if pc == nil {
		return nil
	}
	return pc.Close()
}

type rtcStream struct {
	owner *WebRTC
	gen   uint64
	ring  *audio.Ring
	once  sync.Once
}

var errPeerGone = errors.New("browser peer disconnected")

func (s *rtcStream) Window(dst []float32) (int, error) {
	s.owner.mu.Lock()
	ok := s.owner.gen == s.gen && s.owner.live
	failure := s.owner.failure
	s.owner.mu.Unlock()
	if !ok {
		if failure != nil {
			return 0, failure
		}
		return 0, Lost(s.owner.Name(), errPeerGone)
	}
	return s.ring.Latest(dst), nil
}

func (s *rtcStream) Close() error {
	s.once.Do(func() { s.owner.release(s.gen) })
	return nil
}
