package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/satindergrewal/cueline/internal/capture"
	"github.com/satindergrewal/cueline/internal/validation"
)

// negotiateTimeout bounds ICE gathering for one offer.
const negotiateTimeout = 10 * time.Second

// handleCaptureOffer answers the presenter browser's SDP offer. The offer
// carries the microphone track the monitor listens to.
func (s *Server) handleCaptureOffer(w http.ResponseWriter, r *http.Request) {
	var offer webrtc.SessionDescription
	if err := decode(r, &offer); err != nil {
		s.fail(w, r, err)
		return
	}
	if offer.Type != webrtc.SDPTypeOffer || offer.SDP == "" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "expected an SDP offer", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), negotiateTimeout)
	defer cancel()
	answer, err := s.browser.Answer(ctx, offer)
	if err != nil {
		s.logger.Warn("capture negotiation failed", "error", err)
		writeError(w, http.StatusBadGateway, CodeUnavailable, "negotiation failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

type captureErrorRequest struct {
	Reason  string `json:"reason" validate:"required,oneof=permission_denied device_unavailable device_lost"`
	Message string `json:"message,omitempty" validate:"max=500"`
}

// handleCaptureError records that the browser could not open its microphone,
// failing any pending arm.
func (s *Server) handleCaptureError(w http.ResponseWriter, r *http.Request) {
	var req captureErrorRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		s.fail(w, r, err)
		return
	}

	var cause error
	if req.Message != "" {
		cause = errors.New(req.Message)
	}
	name := s.browser.Name()
	switch req.Reason {
	case capture.PermissionDenied.String():
		s.browser.Reject(capture.Denied(name, cause))
	case capture.DeviceLost.String():
		s.browser.Reject(capture.Lost(name, cause))
	default:
		s.browser.Reject(capture.Unavailable(name, cause))
	}
	w.WriteHeader(http.StatusNoContent)
}
