package capture

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/satindergrewal/cueline/internal/audio"
)

func TestErrorIs(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"denied", Denied("mic", nil), ErrPermissionDenied, true},
		{"denied is not lost", Denied("mic", nil), ErrDeviceLost, false},
		{"wrapped lost", fmt.Errorf("tick: %w", Lost("mic", nil)), ErrDeviceLost, true},
		{"unavailable", Unavailable("mic", errors.New("no input")), ErrDeviceUnavailable, true},
		{"plain error", errors.New("boom"), ErrDeviceUnavailable, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.target))
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("host error")
	err := Denied("mic", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "mic: microphone access was denied (host error)", err.Error())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, PermissionDenied, KindOf(Denied("", nil)))
	assert.Equal(t, DeviceLost, KindOf(fmt.Errorf("x: %w", Lost("", nil))))
	assert.Equal(t, DeviceUnavailable, KindOf(errors.New("anything")))
}

func TestKindStrings(t *testing.T) {
	assert.Equal(t, "device_unavailable", DeviceUnavailable.String())
	assert.Equal(t, "permission_denied", PermissionDenied.String())
	assert.Equal(t, "device_lost", DeviceLost.String())
	assert.Equal(t, "unknown", Kind(0).String())
	assert.NotEmpty(t, DeviceLost.Message())
}

func TestNoneDevice(t *testing.T) {
	s, err := None{}.Acquire(context.Background())
	assert.Nil(t, s)
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
}

func TestExclusive(t *testing.T) {
	var g exclusive
	assert.True(t, g.claim())
	assert.False(t, g.claim())
	g.release()
	assert.True(t, g.claim())
}

func TestPortAudioBufferIsOneFrame(t *testing.T) {
	assert.Equal(t, audio.FrameSize, NewPortAudio(audio.SampleRate).FramesPerBuffer)
	assert.Equal(t, 320, NewPortAudio(16000).FramesPerBuffer)
}
