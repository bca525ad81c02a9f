package capture

import (
	"errors"
	"fmt"
)

// Kind classifies capture failures. All kinds are recoverable by the user.
type Kind int

const (
	DeviceUnavailable Kind = iota + 1
	PermissionDenied
	DeviceLost
)

func (k Kind) String() string {
	switch k {
	case DeviceUnavailable:
		return "device_unavailable"
	case PermissionDenied:
		return "permission_denied"
	case DeviceLost:
		return "device_lost"
	default:
		return "unknown"
	}
}

// Message is the human-readable text shown to the presenter.
func (k Kind) Message() string {
	switch k {
	case DeviceUnavailable:
		return "no microphone is available"
	case PermissionDenied:
		return "microphone access was denied"
	case DeviceLost:
		return "the microphone was disconnected"
	default:
		return "microphone error"
	}
}

// Error is a classified capture failure.
type Error struct {
	Kind   Kind
	Device string
	Err    error
}

// Sentinels for errors.Is.
var (
	ErrDeviceUnavailable = &Error{Kind: DeviceUnavailable}
	ErrPermissionDenied  = &Error{Kind: PermissionDenied}
	ErrDeviceLost        = &Error{Kind: DeviceLost}
)

func (e *Error) Error() string {
	msg := e.Kind.Message()
	if e.Device != "" {
		msg = e.Device + ": " + msg
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Unavailable wraps err as a DeviceUnavailable failure.
func Unavailable(device string, err error) error {
	return &Error{Kind: DeviceUnavailable, Device: device, Err: err}
}

// Denied wraps err as a PermissionDenied failure.
func Denied(device string, err error) error {
	return &Error{Kind: PermissionDenied, Device: device, Err: err}
}

// Lost wraps err as a DeviceLost failure.
func Lost(device string, err error) error {
	return &Error{Kind: DeviceLost, Device: device, Err: err}
}

// KindOf returns the failure kind of err. Unclassified errors count as
// DeviceUnavailable.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return DeviceUnavailable
}

var errBusy = errors.New("already in use by another capture session")
