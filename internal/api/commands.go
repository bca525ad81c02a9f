package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/satindergrewal/cueline/internal/session"
	"github.com/satindergrewal/cueline/internal/validation"
)

// Session command names, shared by the HTTP routes and the remote socket.
const (
	cmdLoad      = "load"
	cmdArm       = "arm"
	cmdDisarm    = "disarm"
	cmdStart     = "start"
	cmdPause     = "pause"
	cmdReset     = "reset"
	cmdExit      = "exit"
	cmdConfigure = "configure"
	cmdScroll    = "scroll"
	cmdViewport  = "viewport"
	cmdStatus    = "status"
)

// Command is a session control request.
type Command struct {
	Command string `json:"command" validate:"required,oneof=load arm disarm start pause reset exit configure scroll viewport status"`
	// ID is echoed in the remote reply.
	ID string `json:"id,omitempty"`

	SongID           string   `json:"song_id,omitempty" validate:"required_if=Command load"`
	Enabled          *bool    `json:"enabled,omitempty"`
	ThresholdDB      *float64 `json:"threshold_db,omitempty" validate:"omitempty,gte=-140,lte=0"`
	SpeedPxPerSecond *float64 `json:"speed_px_per_second,omitempty" validate:"omitempty,gt=0"`
	FontSizePx       *float64 `json:"font_size_px,omitempty" validate:"omitempty,gt=0"`
	OffsetPx         *float64 `json:"offset_px,omitempty" validate:"required_if=Command scroll"`
	Height           *float64 `json:"height,omitempty" validate:"required_if=Command viewport"`
	ContentHeight    float64  `json:"content_height,omitempty" validate:"gte=0"`
}

// run executes cmd on the session loop and returns the resulting status.
func (s *Server) run(ctx context.Context, cmd Command) (session.Status, error) {
	if err := validation.Struct(cmd); err != nil {
		return session.Status{}, err
	}

	var fn func(*session.Session) error
	switch cmd.Command {
	case cmdLoad:
		sg, err := s.songs.Get(ctx, cmd.SongID)
		if err != nil {
			return session.Status{}, err
		}
		fn = func(ss *session.Session) error { return ss.Load(sg) }
	case cmdArm:
		enabled := cmd.Enabled == nil || *cmd.Enabled
		fn = func(ss *session.Session) error { return ss.Arm(enabled, cmd.ThresholdDB) }
	case cmdDisarm:
		fn = func(ss *session.Session) error { return ss.Arm(false, nil) }
	case cmdStart:
		fn = (*session.Session).Start
	case cmdPause:
		fn = (*session.Session).Pause
	case cmdReset:
		fn = (*session.Session).Reset
	case cmdExit:
		fn = func(ss *session.Session) error {
			ss.Exit()
			return nil
		}
	case cmdConfigure:
		u := session.Update{
			SpeedPxPerSecond: cmd.SpeedPxPerSecond,
			FontSizePx:       cmd.FontSizePx,
			ThresholdDB:      cmd.ThresholdDB,
		}
		fn = func(ss *session.Session) error { return ss.Configure(u) }
	case cmdScroll:
		fn = func(ss *session.Session) error { return ss.ScrollTo(*cmd.OffsetPx) }
	case cmdViewport:
		fn = func(ss *session.Session) error { return ss.Resize(*cmd.Height, cmd.ContentHeight) }
	case cmdStatus:
		fn = func(*session.Session) error { return nil }
	default:
		return session.Status{}, fmt.Errorf("unknown command %q", cmd.Command)
	}

	var st session.Status
	err := s.loop.Do(ctx, func(ss *session.Session) error {
		if err := fn(ss); err != nil {
			return err
		}
		st = ss.Status()
		return nil
	})
	if err != nil {
		return session.Status{}, err
	}
	if cmd.Command != cmdStatus {
		s.logger.Debug("session command", "command", cmd.Command, "scroll", st.Scroll, "monitor", st.Monitor.State)
	}
	return st, nil
}

// sessionCommand serves one session command, taking its arguments from the
// JSON body.
func (s *Server) sessionCommand(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cmd Command
		if r.Method != http.MethodGet {
			if err := decode(r, &cmd); err != nil {
				s.fail(w, r, err)
				return
			}
		}
		cmd.Command = name

		st, err := s.run(r.Context(), cmd)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}
